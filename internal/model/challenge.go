package model

import "time"

type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCancelled ChallengeStatus = "cancelled"
	// ChallengeEnded is never stored; it is derived from EndDate.
	ChallengeEnded ChallengeStatus = "ended"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

type Challenge struct {
	BaseModel
	CreatorID   uint            `gorm:"index;not null" json:"creatorId"`
	Creator     User            `gorm:"foreignKey:CreatorID;references:ID;constraint:false" json:"-"`
	Title       string          `gorm:"size:200;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Emoji       string          `gorm:"size:16;not null" json:"emoji"`
	Category    string          `gorm:"size:50;not null" json:"category"`
	Status      ChallengeStatus `gorm:"size:16;not null;default:'active';index" json:"-"`
	StartDate   time.Time       `gorm:"not null" json:"startDate"`
	EndDate     time.Time       `gorm:"not null;index" json:"endDate"`
	// Duration is the photo window in minutes, Lifetime the challenge length in hours.
	Duration int `gorm:"not null" json:"duration"`
	Lifetime int `gorm:"not null" json:"lifetime"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// IsActive is computed at read time so there is no stored flag to drift.
func (c *Challenge) IsActive(now time.Time) bool {
	return c.Status != ChallengeCancelled && now.Before(c.EndDate)
}

func (c *Challenge) EffectiveStatus(now time.Time) ChallengeStatus {
	switch {
	case c.Status == ChallengeCancelled:
		return ChallengeCancelled
	case !now.Before(c.EndDate):
		return ChallengeEnded
	default:
		return ChallengeActive
	}
}

// TimeLeft is zero once the challenge is over.
func (c *Challenge) TimeLeft(now time.Time) time.Duration {
	if !c.IsActive(now) {
		return 0
	}
	return c.EndDate.Sub(now)
}

type ChallengeInvitation struct {
	ID          uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	ChallengeID uint             `gorm:"uniqueIndex:idx_invitation_challenge_receiver,priority:1;not null" json:"challengeId"`
	Challenge   Challenge        `gorm:"foreignKey:ChallengeID;references:ID;constraint:false" json:"-"`
	SenderID    uint             `gorm:"not null" json:"senderId"`
	ReceiverID  uint             `gorm:"uniqueIndex:idx_invitation_challenge_receiver,priority:2;index;not null" json:"receiverId"`
	Receiver    User             `gorm:"foreignKey:ReceiverID;references:ID;constraint:false" json:"-"`
	Status      InvitationStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	SentAt      time.Time        `gorm:"autoCreateTime" json:"sentAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}

func (ChallengeInvitation) TableName() string {
	return "challenge_invitations"
}
