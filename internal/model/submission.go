package model

import "time"

// Submission is immutable once written; only cascades remove it.
type Submission struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChallengeID uint      `gorm:"uniqueIndex:idx_submission_challenge_user,priority:1;not null" json:"challengeId"`
	UserID      uint      `gorm:"uniqueIndex:idx_submission_challenge_user,priority:2;index;not null" json:"userId"`
	User        User      `gorm:"foreignKey:UserID;references:ID;constraint:false" json:"-"`
	PhotoURL    string    `gorm:"size:500;not null" json:"photoUrl"`
	Caption     string    `gorm:"size:500" json:"caption"`
	SubmittedAt time.Time `gorm:"autoCreateTime" json:"submittedAt"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionView marks a submission as seen by one viewer. Rows are append-only.
type SubmissionView struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmissionID uint      `gorm:"uniqueIndex:idx_view_submission_viewer,priority:1;not null" json:"submissionId"`
	ViewerID     uint      `gorm:"uniqueIndex:idx_view_submission_viewer,priority:2;index;not null" json:"viewerId"`
	ViewedAt     time.Time `gorm:"autoCreateTime" json:"viewedAt"`
}

func (SubmissionView) TableName() string {
	return "submission_views"
}
