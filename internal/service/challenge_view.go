package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"challenge_backend/internal/model"
	"challenge_backend/internal/util"

	"gorm.io/gorm"
)

// Viewer statuses reported on challenge details.
const (
	ViewerCreator     = "creator"
	ViewerParticipant = "participant"
	ViewerSubmitted   = "submitted"
	ViewerInvited     = "invited"
)

// ChallengeInfo is the challenge as written, with the status derived at read
// time.
type ChallengeInfo struct {
	*model.Challenge
	Status          model.ChallengeStatus `json:"status"`
	TimeLeftSeconds int64                 `json:"timeLeftSeconds"`
}

func (s *ChallengeService) Info(c *model.Challenge) ChallengeInfo {
	now := s.now()
	return ChallengeInfo{
		Challenge:       c,
		Status:          c.EffectiveStatus(now),
		TimeLeftSeconds: int64(c.TimeLeft(now).Seconds()),
	}
}

type Participant struct {
	model.UserPublic
	HasSubmitted bool `json:"hasSubmitted"`
}

type ChallengeDetail struct {
	ID                uint                  `json:"id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Emoji             string                `json:"emoji"`
	Category          string                `json:"category"`
	Status            model.ChallengeStatus `json:"status"`
	StartDate         time.Time             `json:"startDate"`
	EndDate           time.Time             `json:"endDate"`
	Duration          int                   `json:"duration"`
	Lifetime          int                   `json:"lifetime"`
	TimeLeftSeconds   int64                 `json:"timeLeftSeconds"`
	Creator           model.UserPublic      `json:"creator"`
	Participants      []Participant         `json:"participants"`
	PendingInvites    int                   `json:"pendingInvites"`
	UserStatus        string                `json:"userStatus"`
	IsCreator         bool                  `json:"isCreator"`
	InvitationID      *uint                 `json:"invitationId,omitempty"`
	HasNewSubmissions bool                  `json:"hasNewSubmissions"`
}

type ChallengeSummary struct {
	ID                uint                  `json:"id"`
	Title             string                `json:"title"`
	Emoji             string                `json:"emoji"`
	Category          string                `json:"category"`
	Status            model.ChallengeStatus `json:"status"`
	EndDate           time.Time             `json:"endDate"`
	TimeLeftSeconds   int64                 `json:"timeLeftSeconds"`
	Creator           model.UserPublic      `json:"creator"`
	IsCreator         bool                  `json:"isCreator"`
	HasSubmitted      bool                  `json:"hasSubmitted"`
	HasNewSubmissions bool                  `json:"hasNewSubmissions"`
}

type InvitationSummary struct {
	InvitationID uint             `json:"invitationId"`
	Challenge    ChallengeSummary `json:"challenge"`
	SentAt       time.Time        `json:"sentAt"`
}

type ChallengeList struct {
	Active      []ChallengeSummary  `json:"active"`
	Invitations []InvitationSummary `json:"invitations"`
}

type SubmissionItem struct {
	ID          uint             `json:"id"`
	User        model.UserPublic `json:"user"`
	PhotoURL    string           `json:"photoUrl"`
	Caption     string           `json:"caption"`
	SubmittedAt time.Time        `json:"submittedAt"`
	IsNew       bool             `json:"isNew"`
}

func (s *ChallengeService) summarize(c *model.Challenge, viewerID uint, now time.Time) ChallengeSummary {
	return ChallengeSummary{
		ID:              c.ID,
		Title:           c.Title,
		Emoji:           c.Emoji,
		Category:        c.Category,
		Status:          c.EffectiveStatus(now),
		EndDate:         c.EndDate,
		TimeLeftSeconds: int64(c.TimeLeft(now).Seconds()),
		Creator:         c.Creator.Public(),
		IsCreator:       c.CreatorID == viewerID,
	}
}

// Get returns challenge details as seen by viewerID. Only the creator and
// users with a pending or accepted invitation may look.
func (s *ChallengeService) Get(ctx context.Context, challengeID, viewerID uint) (*ChallengeDetail, error) {
	c, err := s.load(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	invs, err := s.Challenges.ListInvitations(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	submitters, err := s.Submissions.SubmitterIDs(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	submitted := make(map[uint]bool, len(submitters))
	for _, id := range submitters {
		submitted[id] = true
	}

	now := s.now()
	d := &ChallengeDetail{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Emoji:           c.Emoji,
		Category:        c.Category,
		Status:          c.EffectiveStatus(now),
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		Duration:        c.Duration,
		Lifetime:        c.Lifetime,
		TimeLeftSeconds: int64(c.TimeLeft(now).Seconds()),
		Creator:         c.Creator.Public(),
		Participants:    []Participant{},
		IsCreator:       c.CreatorID == viewerID,
	}

	var mine *model.ChallengeInvitation
	for i := range invs {
		inv := &invs[i]
		if inv.ReceiverID == viewerID {
			mine = inv
		}
		switch inv.Status {
		case model.InvitationAccepted:
			d.Participants = append(d.Participants, Participant{
				UserPublic:   inv.Receiver.Public(),
				HasSubmitted: submitted[inv.ReceiverID],
			})
		case model.InvitationPending:
			d.PendingInvites++
		}
	}

	switch {
	case mine != nil && mine.Status == model.InvitationAccepted:
		d.UserStatus = ViewerParticipant
		if submitted[viewerID] {
			d.UserStatus = ViewerSubmitted
		}
		if d.HasNewSubmissions, err = s.Submissions.HasUnseen(ctx, challengeID, viewerID); err != nil {
			return nil, err
		}
	case mine != nil && mine.Status == model.InvitationPending:
		d.UserStatus = ViewerInvited
		d.InvitationID = &mine.ID
	case c.CreatorID == viewerID:
		d.UserStatus = ViewerCreator
	default:
		return nil, fmt.Errorf("%w: not invited to this challenge", util.ErrForbidden)
	}
	return d, nil
}

// ListForUser returns the active challenges the user takes part in, owned
// ones included, and pending invitations to active challenges.
func (s *ChallengeService) ListForUser(ctx context.Context, userID uint) (*ChallengeList, error) {
	now := s.now()
	active, err := s.Challenges.ListActiveForParticipant(ctx, userID, model.InvitationAccepted, now)
	if err != nil {
		return nil, err
	}
	list := &ChallengeList{
		Active:      make([]ChallengeSummary, 0, len(active)),
		Invitations: []InvitationSummary{},
	}
	for i := range active {
		c := &active[i]
		sum := s.summarize(c, userID, now)
		if sum.HasSubmitted, err = s.Submissions.HasSubmitted(ctx, c.ID, userID); err != nil {
			return nil, err
		}
		if sum.HasNewSubmissions, err = s.Submissions.HasUnseen(ctx, c.ID, userID); err != nil {
			return nil, err
		}
		list.Active = append(list.Active, sum)
	}

	pending, err := s.Challenges.ListPendingForReceiver(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		inv := &pending[i]
		list.Invitations = append(list.Invitations, InvitationSummary{
			InvitationID: inv.ID,
			Challenge:    s.summarize(&inv.Challenge, userID, now),
			SentAt:       inv.SentAt,
		})
	}
	return list, nil
}

// HasUnseen reports whether another participant submitted something the
// viewer has not listed yet.
func (s *ChallengeService) HasUnseen(ctx context.Context, challengeID, viewerID uint) (bool, error) {
	if _, err := s.load(ctx, challengeID); err != nil {
		return false, err
	}
	if _, err := s.requireParticipant(ctx, challengeID, viewerID); err != nil {
		return false, err
	}
	return s.Submissions.HasUnseen(ctx, challengeID, viewerID)
}

// ListSubmissions is only open to participants who submitted themselves.
// Listing marks every returned submission as seen by the viewer.
func (s *ChallengeService) ListSubmissions(ctx context.Context, challengeID, viewerID uint) ([]SubmissionItem, error) {
	if _, err := s.load(ctx, challengeID); err != nil {
		return nil, err
	}
	if _, err := s.requireParticipant(ctx, challengeID, viewerID); err != nil {
		return nil, err
	}
	if _, err := s.Submissions.FindByChallengeAndUser(ctx, challengeID, viewerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: submit a photo to see the others", util.ErrForbidden)
		}
		return nil, err
	}

	unseen, err := s.Submissions.UnseenIDs(ctx, challengeID, viewerID)
	if err != nil {
		return nil, err
	}
	isNew := make(map[uint]bool, len(unseen))
	for _, id := range unseen {
		isNew[id] = true
	}

	subs, err := s.Submissions.ListByChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if err := s.Submissions.MarkViewed(ctx, viewerID, unseen); err != nil {
		return nil, err
	}

	out := make([]SubmissionItem, 0, len(subs))
	for i := range subs {
		out = append(out, SubmissionItem{
			ID:          subs[i].ID,
			User:        subs[i].User.Public(),
			PhotoURL:    subs[i].PhotoURL,
			Caption:     subs[i].Caption,
			SubmittedAt: subs[i].SubmittedAt,
			IsNew:       isNew[subs[i].ID],
		})
	}
	return out, nil
}
