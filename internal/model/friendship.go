package model

import (
	"fmt"
	"time"
)

type FriendRequestStatus string

const (
	RequestPending  FriendRequestStatus = "pending"
	RequestAccepted FriendRequestStatus = "accepted"
	RequestRejected FriendRequestStatus = "rejected"
)

// Friendship is one undirected edge, stored with UserID1 < UserID2.
type Friendship struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID1 uint      `gorm:"column:user1_id;uniqueIndex:idx_friendship_pair,priority:1;not null" json:"user1Id"`
	UserID2 uint      `gorm:"column:user2_id;uniqueIndex:idx_friendship_pair,priority:2;index;not null" json:"user2Id"`
	Since   time.Time `gorm:"autoCreateTime" json:"since"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// NewFriendship builds the canonical edge for an unordered pair.
func NewFriendship(a, b uint) *Friendship {
	lo, hi := CanonicalPair(a, b)
	return &Friendship{UserID1: lo, UserID2: hi}
}

// Other returns the side of the edge that is not userID.
func (f *Friendship) Other(userID uint) uint {
	if f.UserID1 == userID {
		return f.UserID2
	}
	return f.UserID1
}

func CanonicalPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// PairKey identifies an unordered pair of users.
func PairKey(a, b uint) string {
	lo, hi := CanonicalPair(a, b)
	return fmt.Sprintf("%d:%d", lo, hi)
}

// FriendRequest is a directed proposal. ActivePair holds the pair key while the
// request is pending or accepted and is cleared on rejection; its unique index
// is what keeps at most one live request per pair.
type FriendRequest struct {
	ID          uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    uint                `gorm:"index;not null" json:"senderId"`
	Sender      User                `gorm:"foreignKey:SenderID;references:ID;constraint:false" json:"-"`
	ReceiverID  uint                `gorm:"index;not null" json:"receiverId"`
	Status      FriendRequestStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	ActivePair  *string             `gorm:"size:64;uniqueIndex" json:"-"`
	SentAt      time.Time           `gorm:"autoCreateTime" json:"sentAt"`
	RespondedAt *time.Time          `json:"respondedAt,omitempty"`
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}
