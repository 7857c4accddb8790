package model

import (
	"time"
)

// BaseModel carries no soft-delete column: cascades must actually remove rows
// so the composite unique indexes stay usable.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Device{},
		&Contact{},
		&FriendRequest{},
		&Friendship{},
		&Challenge{},
		&ChallengeInvitation{},
		&Submission{},
		&SubmissionView{},
	}
}
