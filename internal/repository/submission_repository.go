package repository

import (
	"context"

	"challenge_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionRepository owns submissions and the per-viewer view log.
type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) WithTx(tx *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: tx}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) FindByChallengeAndUser(ctx context.Context, challengeID, userID uint) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		First(&s).Error
	return &s, err
}

func (r *SubmissionRepository) HasSubmitted(ctx context.Context, challengeID, userID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *SubmissionRepository) SubmitterIDs(ctx context.Context, challengeID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("challenge_id = ?", challengeID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *SubmissionRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("challenge_id = ?", challengeID).
		Order("submitted_at DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

// unseen selects submissions in the challenge by other users that the viewer
// has no view row for.
func (r *SubmissionRepository) unseen(ctx context.Context, challengeID, viewerID uint) *gorm.DB {
	seen := r.DB.Model(&model.SubmissionView{}).Select("submission_id").Where("viewer_id = ?", viewerID)
	return r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("challenge_id = ? AND user_id <> ?", challengeID, viewerID).
		Where("id NOT IN (?)", seen)
}

func (r *SubmissionRepository) HasUnseen(ctx context.Context, challengeID, viewerID uint) (bool, error) {
	var count int64
	err := r.unseen(ctx, challengeID, viewerID).Limit(1).Count(&count).Error
	return count > 0, err
}

func (r *SubmissionRepository) UnseenIDs(ctx context.Context, challengeID, viewerID uint) ([]uint, error) {
	var ids []uint
	err := r.unseen(ctx, challengeID, viewerID).Pluck("id", &ids).Error
	return ids, err
}

// MarkViewed records one view per submission. Existing rows are kept.
func (r *SubmissionRepository) MarkViewed(ctx context.Context, viewerID uint, submissionIDs []uint) error {
	if len(submissionIDs) == 0 {
		return nil
	}
	views := make([]model.SubmissionView, 0, len(submissionIDs))
	for _, id := range submissionIDs {
		views = append(views, model.SubmissionView{SubmissionID: id, ViewerID: viewerID})
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&views).Error
}

func (r *SubmissionRepository) CountViews(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.SubmissionView{}).Where("submission_id = ?", submissionID).Count(&count).Error
	return count, err
}

// DeleteViewsOfChallenge removes every view of the challenge's submissions.
func (r *SubmissionRepository) DeleteViewsOfChallenge(ctx context.Context, challengeID uint) error {
	ids := r.DB.Model(&model.Submission{}).Select("id").Where("challenge_id = ?", challengeID)
	return r.DB.WithContext(ctx).Where("submission_id IN (?)", ids).Delete(&model.SubmissionView{}).Error
}

// DeleteViewsByViewer removes the views viewerID recorded in the challenge.
func (r *SubmissionRepository) DeleteViewsByViewer(ctx context.Context, challengeID, viewerID uint) error {
	ids := r.DB.Model(&model.Submission{}).Select("id").Where("challenge_id = ?", challengeID)
	return r.DB.WithContext(ctx).
		Where("viewer_id = ? AND submission_id IN (?)", viewerID, ids).
		Delete(&model.SubmissionView{}).Error
}

func (r *SubmissionRepository) DeleteViewsOfSubmission(ctx context.Context, submissionID uint) error {
	return r.DB.WithContext(ctx).Where("submission_id = ?", submissionID).Delete(&model.SubmissionView{}).Error
}

func (r *SubmissionRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Submission{}, id).Error
}

func (r *SubmissionRepository) DeleteByChallenge(ctx context.Context, challengeID uint) error {
	return r.DB.WithContext(ctx).Where("challenge_id = ?", challengeID).Delete(&model.Submission{}).Error
}

func (r *SubmissionRepository) PhotoURLs(ctx context.Context, challengeID uint) ([]string, error) {
	var urls []string
	err := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("challenge_id = ?", challengeID).
		Pluck("photo_url", &urls).Error
	return urls, err
}
