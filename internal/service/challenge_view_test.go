package service

import (
	"context"
	"testing"
	"time"

	"challenge_backend/internal/model"
	"challenge_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChallengeViewerStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	invited := h.user(t, "invited")
	stranger := h.user(t, "stranger")
	c := h.challenge(t, owner)
	h.join(t, c, x)
	_, err := h.challenges.Invite(ctx, c.ID, owner.ID, []uint{invited.ID})
	require.NoError(t, err)

	d, err := h.challenges.Get(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, ViewerParticipant, d.UserStatus)
	assert.False(t, d.IsCreator)
	assert.Len(t, d.Participants, 2)
	assert.Equal(t, 1, d.PendingInvites)
	assert.Equal(t, "owner", d.Creator.Username)
	assert.EqualValues(t, (48 * time.Hour).Seconds(), d.TimeLeftSeconds)

	d, err = h.challenges.Get(ctx, c.ID, invited.ID)
	require.NoError(t, err)
	assert.Equal(t, ViewerInvited, d.UserStatus)
	require.NotNil(t, d.InvitationID)

	_, err = h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	require.NoError(t, err)

	d, err = h.challenges.Get(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, ViewerSubmitted, d.UserStatus)

	d, err = h.challenges.Get(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, d.IsCreator)
	assert.True(t, d.HasNewSubmissions)
	for _, p := range d.Participants {
		assert.Equal(t, p.ID == x.ID, p.HasSubmitted, p.Username)
	}

	_, err = h.challenges.Get(ctx, c.ID, stranger.ID)
	assert.ErrorIs(t, err, util.ErrForbidden)
	_, err = h.challenges.Get(ctx, 9999, owner.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	h.advance(48 * time.Hour)
	d, err = h.challenges.Get(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeEnded, d.Status)
}

func TestListForUserSplitsActiveAndInvitations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")

	mine := h.challenge(t, x)
	joined := h.challenge(t, owner)
	h.join(t, joined, x)
	pending := h.challenge(t, owner)
	_, err := h.challenges.Invite(ctx, pending.ID, owner.ID, []uint{x.ID})
	require.NoError(t, err)
	cancelled := h.challenge(t, owner)
	h.join(t, cancelled, x)
	require.NoError(t, h.challenges.Cancel(ctx, cancelled.ID, owner.ID))

	_, err = h.challenges.Submit(ctx, joined.ID, owner.ID, pngBytes(t), "")
	require.NoError(t, err)

	list, err := h.challenges.ListForUser(ctx, x.ID)
	require.NoError(t, err)

	active := map[uint]ChallengeSummary{}
	for _, s := range list.Active {
		active[s.ID] = s
	}
	require.Len(t, active, 2)
	assert.True(t, active[mine.ID].IsCreator)
	assert.False(t, active[joined.ID].IsCreator)
	assert.True(t, active[joined.ID].HasNewSubmissions)
	assert.False(t, active[joined.ID].HasSubmitted)

	require.Len(t, list.Invitations, 1)
	assert.Equal(t, pending.ID, list.Invitations[0].Challenge.ID)

	h.advance(49 * time.Hour)
	list, err = h.challenges.ListForUser(ctx, x.ID)
	require.NoError(t, err)
	assert.Empty(t, list.Active)
	assert.Empty(t, list.Invitations)
}

func TestListSubmissionsRequiresOwnSubmission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	stranger := h.user(t, "stranger")
	c := h.challenge(t, owner)
	h.join(t, c, x)

	_, err := h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	require.NoError(t, err)

	_, err = h.challenges.ListSubmissions(ctx, c.ID, x.ID)
	assert.ErrorIs(t, err, util.ErrForbidden, "must submit first")
	_, err = h.challenges.ListSubmissions(ctx, c.ID, stranger.ID)
	assert.ErrorIs(t, err, util.ErrForbidden)
	_, err = h.challenges.HasUnseen(ctx, c.ID, stranger.ID)
	assert.ErrorIs(t, err, util.ErrForbidden)

	unseen, err := h.challenges.HasUnseen(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.True(t, unseen, "listing is gated but the badge is not")
}

func TestHasUnseenAfterListing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	y := h.user(t, "y")
	c := h.challenge(t, owner)
	h.join(t, c, x)
	h.join(t, c, y)

	_, err := h.challenges.Submit(ctx, c.ID, owner.ID, pngBytes(t), "")
	require.NoError(t, err)
	_, err = h.challenges.Submit(ctx, c.ID, x.ID, pngBytes(t), "")
	require.NoError(t, err)

	unseen, err := h.challenges.HasUnseen(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.True(t, unseen)

	items, err := h.challenges.ListSubmissions(ctx, c.ID, x.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	newCount := 0
	for _, it := range items {
		if it.IsNew {
			newCount++
			assert.Equal(t, owner.ID, it.User.ID)
		}
	}
	assert.Equal(t, 1, newCount, "own photo is never new")

	unseen, err = h.challenges.HasUnseen(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.False(t, unseen)

	items, err = h.challenges.ListSubmissions(ctx, c.ID, x.ID)
	require.NoError(t, err)
	for _, it := range items {
		assert.False(t, it.IsNew)
	}

	_, err = h.challenges.Submit(ctx, c.ID, y.ID, pngBytes(t), "")
	require.NoError(t, err)
	unseen, err = h.challenges.HasUnseen(ctx, c.ID, x.ID)
	require.NoError(t, err)
	assert.True(t, unseen)
}

func TestInfoDerivesStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	c := h.challenge(t, owner)

	info := h.challenges.Info(c)
	assert.Equal(t, model.ChallengeActive, info.Status)
	assert.EqualValues(t, 48*3600, info.TimeLeftSeconds)

	h.advance(49 * time.Hour)
	info = h.challenges.Info(c)
	assert.Equal(t, model.ChallengeEnded, info.Status)
	assert.Zero(t, info.TimeLeftSeconds)

	other := h.challenge(t, owner)
	require.NoError(t, h.challenges.Cancel(ctx, other.ID, owner.ID))
	reloaded, err := h.challengeDB.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeCancelled, h.challenges.Info(reloaded).Status)
}
