package repository

import (
	"context"
	"time"

	"challenge_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeRepository owns challenges and their invitations.
type ChallengeRepository struct {
	DB *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: db}
}

func (r *ChallengeRepository) WithTx(tx *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: tx}
}

func (r *ChallengeRepository) Create(ctx context.Context, c *model.Challenge) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *ChallengeRepository) FindByID(ctx context.Context, id uint) (*model.Challenge, error) {
	var c model.Challenge
	err := r.DB.WithContext(ctx).Preload("Creator").First(&c, id).Error
	return &c, err
}

func (r *ChallengeRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Challenge{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ChallengeRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Challenge{}, id).Error
}

// ListEndingBetween returns non-cancelled challenges whose end date falls in
// (from, to].
func (r *ChallengeRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Challenge, error) {
	var cs []model.Challenge
	err := r.DB.WithContext(ctx).
		Where("status <> ? AND end_date > ? AND end_date <= ?", model.ChallengeCancelled, from, to).
		Order("end_date").
		Find(&cs).Error
	return cs, err
}

// ListActiveForParticipant returns active challenges the user holds an
// invitation with the given status for.
func (r *ChallengeRepository) ListActiveForParticipant(ctx context.Context, userID uint, status model.InvitationStatus, now time.Time) ([]model.Challenge, error) {
	var cs []model.Challenge
	err := r.DB.WithContext(ctx).
		Preload("Creator").
		Joins("JOIN challenge_invitations ci ON ci.challenge_id = challenges.id").
		Where("ci.receiver_id = ? AND ci.status = ?", userID, status).
		Where("challenges.status <> ? AND challenges.end_date > ?", model.ChallengeCancelled, now).
		Order("challenges.end_date").
		Find(&cs).Error
	return cs, err
}

// CreateInvitation inserts unless the receiver already holds an invitation for
// the challenge. The bool reports whether a row was written.
func (r *ChallengeRepository) CreateInvitation(ctx context.Context, inv *model.ChallengeInvitation) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(inv)
	return res.RowsAffected == 1, res.Error
}

func (r *ChallengeRepository) GetInvitation(ctx context.Context, id uint) (*model.ChallengeInvitation, error) {
	var inv model.ChallengeInvitation
	err := r.DB.WithContext(ctx).Preload("Challenge").First(&inv, id).Error
	return &inv, err
}

func (r *ChallengeRepository) FindInvitation(ctx context.Context, challengeID, receiverID uint) (*model.ChallengeInvitation, error) {
	var inv model.ChallengeInvitation
	err := r.DB.WithContext(ctx).
		Where("challenge_id = ? AND receiver_id = ?", challengeID, receiverID).
		First(&inv).Error
	return &inv, err
}

func (r *ChallengeRepository) AcceptedParticipantIDs(ctx context.Context, challengeID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.ChallengeInvitation{}).
		Where("challenge_id = ? AND status = ?", challengeID, model.InvitationAccepted).
		Order("id").
		Pluck("receiver_id", &ids).Error
	return ids, err
}

// ListInvitations returns the challenge's invitations with receivers loaded.
func (r *ChallengeRepository) ListInvitations(ctx context.Context, challengeID uint) ([]model.ChallengeInvitation, error) {
	var invs []model.ChallengeInvitation
	err := r.DB.WithContext(ctx).
		Preload("Receiver").
		Where("challenge_id = ?", challengeID).
		Order("id").
		Find(&invs).Error
	return invs, err
}

// ListPendingForReceiver returns pending invitations to still active challenges.
func (r *ChallengeRepository) ListPendingForReceiver(ctx context.Context, userID uint, now time.Time) ([]model.ChallengeInvitation, error) {
	var invs []model.ChallengeInvitation
	err := r.DB.WithContext(ctx).
		Preload("Challenge").
		Preload("Challenge.Creator").
		Joins("JOIN challenges ON challenges.id = challenge_invitations.challenge_id").
		Where("challenge_invitations.receiver_id = ? AND challenge_invitations.status = ?", userID, model.InvitationPending).
		Where("challenges.status <> ? AND challenges.end_date > ?", model.ChallengeCancelled, now).
		Order("challenge_invitations.sent_at DESC").
		Find(&invs).Error
	return invs, err
}

// TransitionInvitation moves a pending invitation to status and reports
// whether this call won the transition.
func (r *ChallengeRepository) TransitionInvitation(ctx context.Context, id uint, status model.InvitationStatus, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.ChallengeInvitation{}).
		Where("id = ? AND status = ?", id, model.InvitationPending).
		Updates(map[string]interface{}{"status": status, "responded_at": at})
	return res.RowsAffected == 1, res.Error
}

func (r *ChallengeRepository) SetInvitationStatus(ctx context.Context, id uint, status model.InvitationStatus, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.ChallengeInvitation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "responded_at": at}).Error
}

func (r *ChallengeRepository) DeleteInvitations(ctx context.Context, challengeID uint) error {
	return r.DB.WithContext(ctx).Where("challenge_id = ?", challengeID).Delete(&model.ChallengeInvitation{}).Error
}
