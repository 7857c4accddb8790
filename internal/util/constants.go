package util

import "time"

// Upload limits.
const (
	MaxUploadSize = 10 << 20
	MimeImage     = "image/"
)

// Object storage folders.
const (
	FolderSubmissions = "challenge-submissions"
	FolderAvatars     = "avatars"
)

// Challenge bounds.
const (
	MinDurationMinutes     = 1
	MaxDurationMinutes     = 1440
	DefaultDurationMinutes = 30
	MinLifetimeHours       = 1
	MaxLifetimeHours       = 168
	DefaultLifetimeHours   = 48
	MaxTitleLength         = 200
	DefaultEmoji           = "🎯"
)

// FriendIDsCacheTTL bounds how stale a cached friend list may get.
const FriendIDsCacheTTL = 10 * time.Minute
