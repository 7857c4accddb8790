package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/logger"
	"challenge_backend/pkg/monitoring"
	"challenge_backend/pkg/security"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChallengeService struct {
	Challenges  *repository.ChallengeRepository
	Submissions *repository.SubmissionRepository
	Users       *repository.UserRepository
	Photos      PhotoStore
	Notifier    *NotificationService
	now         func() time.Time
}

func NewChallengeService(
	challenges *repository.ChallengeRepository,
	submissions *repository.SubmissionRepository,
	users *repository.UserRepository,
	photos PhotoStore,
	notifier *NotificationService,
) *ChallengeService {
	return &ChallengeService{
		Challenges:  challenges,
		Submissions: submissions,
		Users:       users,
		Photos:      photos,
		Notifier:    notifier,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateChallengeParams leaves Duration and Lifetime nil to take the defaults.
type CreateChallengeParams struct {
	Title       string
	Description string
	Emoji       string
	Category    string
	Duration    *int
	Lifetime    *int
}

func boundedOrDefault(v *int, def, min, max int, name string) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < min || *v > max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", util.ErrInvalidOperation, name, min, max)
	}
	return *v, nil
}

func cleanTitle(raw string) (string, error) {
	title := security.SanitizeText(raw)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", util.ErrInvalidOperation)
	}
	if utf8.RuneCountInString(title) > util.MaxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d characters", util.ErrInvalidOperation, util.MaxTitleLength)
	}
	return title, nil
}

func (s *ChallengeService) load(ctx context.Context, id uint) (*model.Challenge, error) {
	c, err := s.Challenges.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: challenge %d", util.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// loadOwned also requires userID to be the creator.
func (s *ChallengeService) loadOwned(ctx context.Context, id, userID uint) (*model.Challenge, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can do this", util.ErrForbidden)
	}
	return c, nil
}

// requireParticipant returns the user's accepted invitation.
func (s *ChallengeService) requireParticipant(ctx context.Context, challengeID, userID uint) (*model.ChallengeInvitation, error) {
	inv, err := s.Challenges.FindInvitation(ctx, challengeID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: not a participant", util.ErrForbidden)
		}
		return nil, err
	}
	if inv.Status != model.InvitationAccepted {
		return nil, fmt.Errorf("%w: not a participant", util.ErrForbidden)
	}
	return inv, nil
}

// Create stores the challenge together with the creator's accepted
// self-invitation.
func (s *ChallengeService) Create(ctx context.Context, creatorID uint, p CreateChallengeParams) (*model.Challenge, error) {
	title, err := cleanTitle(p.Title)
	if err != nil {
		return nil, err
	}
	category := security.SanitizeText(p.Category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", util.ErrInvalidOperation)
	}
	duration, err := boundedOrDefault(p.Duration, util.DefaultDurationMinutes, util.MinDurationMinutes, util.MaxDurationMinutes, "duration")
	if err != nil {
		return nil, err
	}
	lifetime, err := boundedOrDefault(p.Lifetime, util.DefaultLifetimeHours, util.MinLifetimeHours, util.MaxLifetimeHours, "lifetime")
	if err != nil {
		return nil, err
	}
	emoji := security.SanitizeText(p.Emoji)
	if emoji == "" {
		emoji = util.DefaultEmoji
	}

	now := s.now()
	c := &model.Challenge{
		CreatorID:   creatorID,
		Title:       title,
		Description: security.SanitizeText(p.Description),
		Emoji:       emoji,
		Category:    category,
		Status:      model.ChallengeActive,
		StartDate:   now,
		EndDate:     now.Add(time.Duration(lifetime) * time.Hour),
		Duration:    duration,
		Lifetime:    lifetime,
	}

	err = s.Challenges.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.Challenges.WithTx(tx)
		if err := repo.Create(ctx, c); err != nil {
			return err
		}
		_, err := repo.CreateInvitation(ctx, &model.ChallengeInvitation{
			ChallengeID: c.ID,
			SenderID:    creatorID,
			ReceiverID:  creatorID,
			Status:      model.InvitationAccepted,
			RespondedAt: &now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.Event("challenge_created")
	return c, nil
}

// Invite creates pending invitations for the given users and returns how many
// were sent. Unknown and already invited users are skipped.
func (s *ChallengeService) Invite(ctx context.Context, challengeID, senderID uint, receiverIDs []uint) (int, error) {
	c, err := s.loadOwned(ctx, challengeID, senderID)
	if err != nil {
		return 0, err
	}
	if !c.IsActive(s.now()) {
		return 0, fmt.Errorf("%w: challenge is not active", util.ErrInvalidState)
	}

	seen := make(map[uint]bool, len(receiverIDs))
	unique := make([]uint, 0, len(receiverIDs))
	for _, id := range receiverIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	existing, err := s.Users.ExistingIDs(ctx, unique)
	if err != nil {
		return 0, err
	}
	known := make(map[uint]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	// All rows commit together so a failed batch leaves nobody invited
	// without a notification.
	var sent []*model.ChallengeInvitation
	err = s.Challenges.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.Challenges.WithTx(tx)
		for _, id := range unique {
			if !known[id] {
				continue
			}
			inv := &model.ChallengeInvitation{
				ChallengeID: c.ID,
				SenderID:    senderID,
				ReceiverID:  id,
				Status:      model.InvitationPending,
			}
			created, err := repo.CreateInvitation(ctx, inv)
			if err != nil {
				return err
			}
			if created {
				sent = append(sent, inv)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	monitoring.DomainEvents.WithLabelValues("challenge_invitation_sent").Add(float64(len(sent)))
	for _, inv := range sent {
		s.Notifier.ChallengeInvite(ctx, inv.ReceiverID, c.Creator.DisplayName, c.Title, c.ID, inv.ID)
	}
	return len(sent), nil
}

// RespondToInvite accepts or declines a pending invitation. Accepting needs
// the challenge to still be active.
func (s *ChallengeService) RespondToInvite(ctx context.Context, invitationID, responderID uint, accept bool) (*model.ChallengeInvitation, error) {
	inv, err := s.Challenges.GetInvitation(ctx, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invitation %d", util.ErrNotFound, invitationID)
		}
		return nil, err
	}
	if inv.ReceiverID != responderID {
		return nil, fmt.Errorf("%w: invitation belongs to another user", util.ErrForbidden)
	}
	if inv.Status != model.InvitationPending {
		return nil, fmt.Errorf("%w: invitation is already %s", util.ErrInvalidState, inv.Status)
	}
	now := s.now()
	if accept && !inv.Challenge.IsActive(now) {
		return nil, fmt.Errorf("%w: challenge is not active", util.ErrInvalidState)
	}

	status := model.InvitationDeclined
	if accept {
		status = model.InvitationAccepted
	}
	won, err := s.Challenges.TransitionInvitation(ctx, inv.ID, status, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: invitation is no longer pending", util.ErrInvalidState)
	}
	inv.Status = status
	inv.RespondedAt = &now
	monitoring.Event("challenge_invitation_" + string(status))

	if accept {
		if u, err := s.Users.FindByID(ctx, responderID); err == nil {
			s.Notifier.ChallengeAccepted(ctx, inv.Challenge.CreatorID, u.DisplayName, inv.Challenge.Title, inv.ChallengeID)
		}
	}
	return inv, nil
}

// Submit stores the user's single photo for the challenge and tells the
// other participants.
func (s *ChallengeService) Submit(ctx context.Context, challengeID, userID uint, photo []byte, caption string) (*model.Submission, error) {
	c, err := s.load(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive(s.now()) {
		return nil, fmt.Errorf("%w: challenge is not active", util.ErrInvalidState)
	}
	if _, err := s.requireParticipant(ctx, challengeID, userID); err != nil {
		return nil, err
	}
	done, err := s.Submissions.HasSubmitted(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("%w: already submitted to this challenge", util.ErrConflict)
	}
	if _, err := util.DetectImage(photo); err != nil {
		return nil, err
	}

	caption = security.SanitizeText(caption)
	if utf8.RuneCountInString(caption) > 500 {
		return nil, fmt.Errorf("%w: caption exceeds 500 characters", util.ErrInvalidOperation)
	}

	folder := fmt.Sprintf("%s/%d", util.FolderSubmissions, challengeID)
	url, err := s.Photos.UploadImage(ctx, folder, idString(userID), photo, util.SubmissionImage)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		ChallengeID: challengeID,
		UserID:      userID,
		PhotoURL:    url,
		Caption:     caption,
	}
	if err := s.Submissions.Create(ctx, sub); err != nil {
		deletePhotos(ctx, s.Photos, url)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: already submitted to this challenge", util.ErrConflict)
		}
		return nil, err
	}
	monitoring.Event("submission_created")

	participants, err := s.Challenges.AcceptedParticipantIDs(ctx, challengeID)
	if err != nil {
		logger.Log.Warn("load participants for notification failed", zap.Uint("challenge_id", challengeID), zap.Error(err))
		return sub, nil
	}
	others := make([]uint, 0, len(participants))
	for _, id := range participants {
		if id != userID {
			others = append(others, id)
		}
	}
	if u, err := s.Users.FindByID(ctx, userID); err == nil {
		s.Notifier.ChallengeSubmission(ctx, others, u.DisplayName, c.Title, challengeID)
	}
	return sub, nil
}

// RemoveParticipant declines the participant's invitation and erases their
// submission and view history in the challenge.
func (s *ChallengeService) RemoveParticipant(ctx context.Context, challengeID, creatorID, participantID uint) error {
	c, err := s.loadOwned(ctx, challengeID, creatorID)
	if err != nil {
		return err
	}
	if participantID == c.CreatorID {
		return fmt.Errorf("%w: the creator cannot be removed", util.ErrInvalidOperation)
	}
	inv, err := s.Challenges.FindInvitation(ctx, challengeID, participantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d is not in this challenge", util.ErrNotFound, participantID)
		}
		return err
	}

	var photoURL string
	err = s.Challenges.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenges := s.Challenges.WithTx(tx)
		submissions := s.Submissions.WithTx(tx)

		if err := challenges.SetInvitationStatus(ctx, inv.ID, model.InvitationDeclined, s.now()); err != nil {
			return err
		}
		sub, err := submissions.FindByChallengeAndUser(ctx, challengeID, participantID)
		switch {
		case err == nil:
			if err := submissions.DeleteViewsOfSubmission(ctx, sub.ID); err != nil {
				return err
			}
			if err := submissions.Delete(ctx, sub.ID); err != nil {
				return err
			}
			photoURL = sub.PhotoURL
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return submissions.DeleteViewsByViewer(ctx, challengeID, participantID)
	})
	if err != nil {
		return err
	}

	monitoring.Event("participant_removed")
	deletePhotos(ctx, s.Photos, photoURL)
	return nil
}

// Delete removes the challenge and everything hanging off it, children
// first, then drops the photos from storage.
func (s *ChallengeService) Delete(ctx context.Context, challengeID, creatorID uint) error {
	if _, err := s.loadOwned(ctx, challengeID, creatorID); err != nil {
		return err
	}

	var urls []string
	err := s.Challenges.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenges := s.Challenges.WithTx(tx)
		submissions := s.Submissions.WithTx(tx)

		var err error
		if urls, err = submissions.PhotoURLs(ctx, challengeID); err != nil {
			return err
		}
		if err := submissions.DeleteViewsOfChallenge(ctx, challengeID); err != nil {
			return err
		}
		if err := submissions.DeleteByChallenge(ctx, challengeID); err != nil {
			return err
		}
		if err := challenges.DeleteInvitations(ctx, challengeID); err != nil {
			return err
		}
		return challenges.Delete(ctx, challengeID)
	})
	if err != nil {
		return err
	}

	monitoring.Event("challenge_deleted")
	deletePhotos(ctx, s.Photos, urls...)
	return nil
}

// Cancel ends an active challenge early.
func (s *ChallengeService) Cancel(ctx context.Context, challengeID, creatorID uint) error {
	c, err := s.loadOwned(ctx, challengeID, creatorID)
	if err != nil {
		return err
	}
	if !c.IsActive(s.now()) {
		return fmt.Errorf("%w: challenge is not active", util.ErrInvalidState)
	}
	if err := s.Challenges.UpdateFields(ctx, challengeID, map[string]interface{}{"status": model.ChallengeCancelled}); err != nil {
		return err
	}
	monitoring.Event("challenge_cancelled")
	return nil
}

func (s *ChallengeService) UpdateTitle(ctx context.Context, challengeID, creatorID uint, raw string) (*model.Challenge, error) {
	title, err := cleanTitle(raw)
	if err != nil {
		return nil, err
	}
	return s.updateActive(ctx, challengeID, creatorID, map[string]interface{}{"title": title})
}

func (s *ChallengeService) UpdateDescription(ctx context.Context, challengeID, creatorID uint, raw string) (*model.Challenge, error) {
	return s.updateActive(ctx, challengeID, creatorID, map[string]interface{}{"description": security.SanitizeText(raw)})
}

func (s *ChallengeService) updateActive(ctx context.Context, challengeID, creatorID uint, fields map[string]interface{}) (*model.Challenge, error) {
	c, err := s.loadOwned(ctx, challengeID, creatorID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive(s.now()) {
		return nil, fmt.Errorf("%w: challenge is not active", util.ErrInvalidState)
	}
	if err := s.Challenges.UpdateFields(ctx, challengeID, fields); err != nil {
		return nil, err
	}
	return s.load(ctx, challengeID)
}
