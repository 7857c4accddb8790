package model

import "time"

// User is provisioned just-in-time from the identity provider.
// Nullable identifiers stay NULL rather than "" so the unique indexes hold.
type User struct {
	BaseModel
	Username       string  `gorm:"size:64;uniqueIndex;not null" json:"username"`
	DisplayName    string  `gorm:"size:100;index;not null" json:"displayName"`
	Email          *string `gorm:"size:128;uniqueIndex" json:"-"`
	PhoneNumber    *string `gorm:"size:20;uniqueIndex" json:"-"`
	GoogleID       *string `gorm:"size:64;uniqueIndex" json:"-"`
	ProfilePicture string  `gorm:"size:500" json:"profilePicture"`
}

func (User) TableName() string {
	return "users"
}

// UserPublic is the profile shape other users get to see.
type UserPublic struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	ProfilePicture string `json:"profilePicture"`
}

func (u *User) Public() UserPublic {
	return UserPublic{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		ProfilePicture: u.ProfilePicture,
	}
}

// Device is a push target registered by a client app.
type Device struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	FCMToken  string    `gorm:"size:255;uniqueIndex;not null" json:"fcmToken"`
	Brand     string    `gorm:"size:50" json:"brand"`
	ModelName string    `gorm:"size:100" json:"modelName"`
	OSName    string    `gorm:"size:20" json:"osName"`
	OSVersion string    `gorm:"size:20" json:"osVersion"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Device) TableName() string {
	return "devices"
}

// Contact is one entry of a user's uploaded address book.
type Contact struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:idx_contact_user_phone,priority:1;not null" json:"userId"`
	ContactName string    `gorm:"size:100" json:"contactName"`
	PhoneNumber string    `gorm:"size:20;uniqueIndex:idx_contact_user_phone,priority:2;index;not null" json:"phoneNumber"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Contact) TableName() string {
	return "contacts"
}
