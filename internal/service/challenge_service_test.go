package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"challenge_backend/internal/model"
	"challenge_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestCreateChallengeDefaultsAndSelfInvitation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")

	c, err := h.challenges.Create(ctx, owner.ID, CreateChallengeParams{
		Title:       "  <b>Sunset</b> walk ",
		Description: "<script>x</script>golden hour",
		Category:    "outdoors",
	})
	require.NoError(t, err)

	assert.Equal(t, "Sunset walk", c.Title)
	assert.Equal(t, "golden hour", c.Description)
	assert.Equal(t, util.DefaultEmoji, c.Emoji)
	assert.Equal(t, util.DefaultDurationMinutes, c.Duration)
	assert.Equal(t, util.DefaultLifetimeHours, c.Lifetime)
	assert.True(t, c.EndDate.Equal(h.now.Add(48*time.Hour)))
	assert.True(t, c.IsActive(h.now))

	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, inv.Status)
}

func TestCreateChallengeValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")

	cases := []struct {
		name string
		p    CreateChallengeParams
	}{
		{"empty title", CreateChallengeParams{Title: "  ", Category: "x"}},
		{"missing category", CreateChallengeParams{Title: "t"}},
		{"zero duration", CreateChallengeParams{Title: "t", Category: "x", Duration: intPtr(0)}},
		{"long duration", CreateChallengeParams{Title: "t", Category: "x", Duration: intPtr(1441)}},
		{"zero lifetime", CreateChallengeParams{Title: "t", Category: "x", Lifetime: intPtr(0)}},
		{"long lifetime", CreateChallengeParams{Title: "t", Category: "x", Lifetime: intPtr(169)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.challenges.Create(ctx, owner.ID, tc.p)
			assert.ErrorIs(t, err, util.ErrInvalidOperation)
		})
	}

	c, err := h.challenges.Create(ctx, owner.ID, CreateChallengeParams{
		Title: "t", Category: "x", Duration: intPtr(1440), Lifetime: intPtr(168),
	})
	require.NoError(t, err)
	assert.Equal(t, 1440, c.Duration)
	assert.Equal(t, 168, c.Lifetime)
}

func TestInviteSkipsUnknownAndDuplicates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	y := h.user(t, "y")
	c := h.challenge(t, owner)

	n, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{x.ID, x.ID, 9999, owner.ID, y.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = h.challenges.Invite(ctx, c.ID, owner.ID, []uint{x.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "already invited")

	assert.Equal(t, 1, h.pusher.sent("tok-x", NotifyChallengeInvite))
	assert.Equal(t, 1, h.pusher.sent("tok-y", NotifyChallengeInvite))
	assert.Zero(t, h.pusher.sent("tok-owner", NotifyChallengeInvite))

	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationPending, inv.Status)
}

func TestInviteGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)

	_, err := h.challenges.Invite(ctx, 9999, owner.ID, []uint{x.ID})
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = h.challenges.Invite(ctx, c.ID, x.ID, []uint{owner.ID})
	assert.ErrorIs(t, err, util.ErrForbidden)

	h.advance(49 * time.Hour)
	_, err = h.challenges.Invite(ctx, c.ID, owner.ID, []uint{x.ID})
	assert.ErrorIs(t, err, util.ErrInvalidState)
}

func TestDeclinedInviteeCannotSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)

	_, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{x.ID})
	require.NoError(t, err)
	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, x.ID)
	require.NoError(t, err)

	_, err = h.challenges.RespondToInvite(ctx, inv.ID, owner.ID, false)
	assert.ErrorIs(t, err, util.ErrForbidden, "only the receiver responds")

	declined, err := h.challenges.RespondToInvite(ctx, inv.ID, x.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationDeclined, declined.Status)
	assert.Zero(t, h.pusher.sent("tok-owner", NotifyChallengeAccepted))

	_, err = h.challenges.RespondToInvite(ctx, inv.ID, x.ID, true)
	assert.ErrorIs(t, err, util.ErrInvalidState)

	_, err = h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	assert.ErrorIs(t, err, util.ErrForbidden)

	n, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{x.ID})
	require.NoError(t, err)
	assert.Zero(t, n, "a declined user is not re-invited")
}

func TestAcceptInviteNotifiesCreator(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)

	inv := h.join(t, c, x)
	assert.Equal(t, model.InvitationAccepted, inv.Status)
	require.NotNil(t, inv.RespondedAt)
	assert.Equal(t, 1, h.pusher.sent("tok-owner", NotifyChallengeAccepted))
}

func TestAcceptingAfterEndIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)

	_, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{x.ID})
	require.NoError(t, err)
	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, x.ID)
	require.NoError(t, err)

	h.advance(48 * time.Hour)
	_, err = h.challenges.RespondToInvite(ctx, inv.ID, x.ID, true)
	assert.ErrorIs(t, err, util.ErrInvalidState)

	declined, err := h.challenges.RespondToInvite(ctx, inv.ID, x.ID, false)
	require.NoError(t, err, "declining stays possible")
	assert.Equal(t, model.InvitationDeclined, declined.Status)
}

func TestSubmitOncePerUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)
	h.join(t, c, x)

	sub, err := h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "first <i>try</i>")
	require.NoError(t, err)
	assert.Equal(t, "first try", sub.Caption)
	assert.True(t, h.photos.has(sub.PhotoURL))
	assert.Equal(t, 1, h.pusher.sent("tok-owner", NotifyChallengeSubmission))
	assert.Zero(t, h.pusher.sent("tok-x", NotifyChallengeSubmission), "submitter is not notified")

	_, err = h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "again")
	assert.ErrorIs(t, err, util.ErrConflict)
	assert.Len(t, h.photos.objects, 1, "nothing uploaded for the rejected attempt")
}

func TestSubmitGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	stranger := h.user(t, "stranger")
	c := h.challenge(t, owner)

	_, err := h.challenges.Submit(ctx, 9999, owner.ID, pngBytes(t), "")
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = h.challenges.Submit(ctx, c.ID, stranger.ID, pngBytes(t), "")
	assert.ErrorIs(t, err, util.ErrForbidden)

	_, err = h.challenges.Submit(ctx, c.ID, owner.ID, []byte("plain text, not a photo"), "")
	assert.ErrorIs(t, err, util.ErrInvalidOperation)

	h.photos.uploadErr = errors.New("bucket unavailable")
	_, err = h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	require.Error(t, err)
	ok, err := h.submissions.HasSubmitted(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	h.photos.uploadErr = nil

	h.advance(48 * time.Hour)
	_, err = h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	assert.ErrorIs(t, err, util.ErrInvalidState)
}

func TestCancelledChallengeRejectsInvitesAndSubmissions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	y := h.user(t, "y")
	c := h.challenge(t, owner)
	h.join(t, c, x)

	assert.ErrorIs(t, h.challenges.Cancel(ctx, c.ID, x.ID), util.ErrForbidden)
	require.NoError(t, h.challenges.Cancel(ctx, c.ID, owner.ID))
	assert.ErrorIs(t, h.challenges.Cancel(ctx, c.ID, owner.ID), util.ErrInvalidState)

	_, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{y.ID})
	assert.ErrorIs(t, err, util.ErrInvalidState)
	_, err = h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	assert.ErrorIs(t, err, util.ErrInvalidState)
	_, err = h.challenges.UpdateTitle(ctx, c.ID, owner.ID, "new")
	assert.ErrorIs(t, err, util.ErrInvalidState)

	d, err := h.challenges.Get(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeCancelled, d.Status)
	assert.Zero(t, d.TimeLeftSeconds)
}

func TestUpdateTitleAndDescription(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)

	_, err := h.challenges.UpdateTitle(ctx, c.ID, x.ID, "hijack")
	assert.ErrorIs(t, err, util.ErrForbidden)
	_, err = h.challenges.UpdateTitle(ctx, c.ID, owner.ID, "")
	assert.ErrorIs(t, err, util.ErrInvalidOperation)

	updated, err := h.challenges.UpdateTitle(ctx, c.ID, owner.ID, "Evening coffee")
	require.NoError(t, err)
	assert.Equal(t, "Evening coffee", updated.Title)

	updated, err = h.challenges.UpdateDescription(ctx, c.ID, owner.ID, "decaf <b>only</b>")
	require.NoError(t, err)
	assert.Equal(t, "decaf only", updated.Description)
	assert.Equal(t, "Evening coffee", updated.Title)
}

func TestRemoveParticipantErasesTheirTrail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	p := h.user(t, "p")
	q := h.user(t, "q")
	c := h.challenge(t, owner)
	h.join(t, c, p)
	h.join(t, c, q)

	pSub, err := h.challenges.Submit(ctx, c.ID, p.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.Submit(ctx, c.ID, q.ID, pngBytes(t), "")
	require.NoError(t, err)

	// p has seen q's photo, owner has unseen photos from both.
	_, err = h.challenges.ListSubmissions(ctx, c.ID, p.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, h.challenges.RemoveParticipant(ctx, c.ID, p.ID, q.ID), util.ErrForbidden)
	assert.ErrorIs(t, h.challenges.RemoveParticipant(ctx, c.ID, owner.ID, owner.ID), util.ErrInvalidOperation)
	assert.ErrorIs(t, h.challenges.RemoveParticipant(ctx, c.ID, owner.ID, 9999), util.ErrNotFound)

	require.NoError(t, h.challenges.RemoveParticipant(ctx, c.ID, owner.ID, p.ID))

	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationDeclined, inv.Status)

	ok, err := h.submissions.HasSubmitted(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.photos.has(pSub.PhotoURL))

	var views int64
	require.NoError(t, h.db.Model(&model.SubmissionView{}).Where("viewer_id = ? OR submission_id = ?", p.ID, pSub.ID).Count(&views).Error)
	assert.Zero(t, views)

	// Only q's submission is left for the owner and q sees nothing new.
	items, err := h.challenges.ListSubmissions(ctx, c.ID, q.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	unseen, err := h.challenges.HasUnseen(ctx, c.ID, q.ID)
	require.NoError(t, err)
	assert.False(t, unseen)

	_, err = h.challenges.Submit(ctx, c.ID, p.ID, pngBytes(t), "")
	assert.ErrorIs(t, err, util.ErrForbidden)
}

func TestDeleteChallengeCascades(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)
	h.join(t, c, x)
	_, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{h.user(t, "pending").ID})
	require.NoError(t, err)

	ownSub, err := h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	require.NoError(t, err)
	xSub, err := h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.ListSubmissions(ctx, c.ID, x.ID)
	require.NoError(t, err)

	other := h.challenge(t, owner)

	assert.ErrorIs(t, h.challenges.Delete(ctx, c.ID, x.ID), util.ErrForbidden)
	require.NoError(t, h.challenges.Delete(ctx, c.ID, owner.ID))

	count := func(m interface{}, where string, args ...interface{}) int64 {
		var n int64
		require.NoError(t, h.db.Model(m).Where(where, args...).Count(&n).Error)
		return n
	}
	assert.Zero(t, count(&model.Challenge{}, "id = ?", c.ID))
	assert.Zero(t, count(&model.ChallengeInvitation{}, "challenge_id = ?", c.ID))
	assert.Zero(t, count(&model.Submission{}, "challenge_id = ?", c.ID))
	assert.Zero(t, count(&model.SubmissionView{}, "submission_id IN ?", []uint{ownSub.ID, xSub.ID}))
	assert.EqualValues(t, 1, count(&model.ChallengeInvitation{}, "challenge_id = ?", other.ID))

	assert.False(t, h.photos.has(ownSub.PhotoURL))
	assert.False(t, h.photos.has(xSub.PhotoURL))

	_, err = h.challenges.Get(ctx, c.ID, owner.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestInviteIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	p := h.user(t, "p")
	q := h.user(t, "q")
	c := h.challenge(t, owner)

	disarm := h.failWrite(t, "create", "challenge_invitations", 2)
	n, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{p.ID, q.ID})
	require.ErrorIs(t, err, errInjected)
	assert.Zero(t, n)

	// Only the creator's own invitation is left.
	assert.EqualValues(t, 1, h.count(t, &model.ChallengeInvitation{}, "challenge_id = ?", c.ID))
	assert.Zero(t, h.pusher.sent("tok-p", NotifyChallengeInvite))

	disarm()
	n, err = h.challenges.Invite(ctx, c.ID, owner.ID, []uint{p.ID, q.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, h.pusher.sent("tok-p", NotifyChallengeInvite))
	assert.Equal(t, 1, h.pusher.sent("tok-q", NotifyChallengeInvite))
}

func TestRemoveParticipantRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)
	h.join(t, c, x)

	xSub, err := h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.ListSubmissions(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	_, err = h.challenges.ListSubmissions(ctx, c.ID, x.ID)
	require.NoError(t, err)
	views := h.count(t, &model.SubmissionView{}, "1 = 1")
	require.EqualValues(t, 2, views)

	h.failWrite(t, "delete", "submissions", 1)
	err = h.challenges.RemoveParticipant(ctx, c.ID, owner.ID, x.ID)
	require.ErrorIs(t, err, errInjected)

	inv, err := h.challengeDB.FindInvitation(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationAccepted, inv.Status)
	assert.EqualValues(t, 1, h.count(t, &model.Submission{}, "id = ?", xSub.ID))
	assert.Equal(t, views, h.count(t, &model.SubmissionView{}, "1 = 1"))
	assert.True(t, h.photos.has(xSub.PhotoURL))
}

func TestDeleteChallengeRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	c := h.challenge(t, owner)
	h.join(t, c, x)

	sub, err := h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.ListSubmissions(ctx, c.ID, owner.ID)
	require.NoError(t, err)

	disarm := h.failWrite(t, "delete", "challenges", 1)
	require.ErrorIs(t, h.challenges.Delete(ctx, c.ID, owner.ID), errInjected)

	assert.EqualValues(t, 1, h.count(t, &model.Challenge{}, "id = ?", c.ID))
	assert.EqualValues(t, 2, h.count(t, &model.ChallengeInvitation{}, "challenge_id = ?", c.ID))
	assert.EqualValues(t, 2, h.count(t, &model.Submission{}, "challenge_id = ?", c.ID))
	assert.EqualValues(t, 1, h.count(t, &model.SubmissionView{}, "submission_id = ?", sub.ID))
	assert.True(t, h.photos.has(sub.PhotoURL))

	disarm()
	require.NoError(t, h.challenges.Delete(ctx, c.ID, owner.ID))
	assert.Zero(t, h.count(t, &model.Challenge{}, "id = ?", c.ID))
	assert.False(t, h.photos.has(sub.PhotoURL))
}
