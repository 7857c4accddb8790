package service

import (
	"context"
	"testing"

	"challenge_backend/internal/model"
	"challenge_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func friendIDs(t *testing.T, h *harness, userID uint) []uint {
	t.Helper()
	friends, err := h.friends.ListFriends(context.Background(), userID)
	require.NoError(t, err)
	ids := make([]uint, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	return ids
}

func TestSendRequestThenAcceptIsSymmetric(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	res, err := h.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, res.Status)
	assert.Equal(t, 1, h.pusher.sent("tok-alice", NotifyFriendRequest))

	res, err = h.friends.Respond(ctx, res.RequestID, alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, res.Status)
	assert.Equal(t, 1, h.pusher.sent("tok-bob", NotifyFriendAccept))

	assert.Equal(t, []uint{bob.ID}, friendIDs(t, h, alice.ID))
	assert.Equal(t, []uint{alice.ID}, friendIDs(t, h, bob.ID))

	for _, pair := range [][2]uint{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		n, err := h.friendRepo.CountFriendships(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	}
}

func TestSendRequestValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	_, err := h.friends.SendRequest(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, util.ErrInvalidOperation)

	_, err = h.friends.SendRequest(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = h.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = h.friends.SendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, util.ErrConflict, "duplicate pending request")
}

func TestSendRequestAlreadyFriends(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	h.befriend(t, alice, bob)

	_, err := h.friends.SendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, util.ErrConflict)
	_, err = h.friends.SendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, util.ErrConflict)
}

func TestReciprocalRequestAutoAccepts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	first, err := h.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	res, err := h.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.AutoAccepted)
	assert.Equal(t, first.RequestID, res.RequestID)
	assert.Equal(t, model.RequestAccepted, res.Status)

	var rows int64
	require.NoError(t, h.db.Model(&model.FriendRequest{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows, "no second request row")

	assert.Equal(t, []uint{bob.ID}, friendIDs(t, h, alice.ID))
	assert.Equal(t, 1, h.pusher.sent("tok-bob", NotifyFriendAccept))

	pending, err := h.friends.ListPendingIncoming(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRespondIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	res, err := h.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = h.friends.Respond(ctx, res.RequestID, bob.ID, true)
	require.NoError(t, err)
	_, err = h.friends.Respond(ctx, res.RequestID, bob.ID, true)
	assert.ErrorIs(t, err, util.ErrInvalidState)
	_, err = h.friends.Respond(ctx, res.RequestID, bob.ID, false)
	assert.ErrorIs(t, err, util.ErrInvalidState)
}

func TestRespondGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	_, err := h.friends.Respond(ctx, 424242, bob.ID, true)
	assert.ErrorIs(t, err, util.ErrNotFound)

	res, err := h.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = h.friends.Respond(ctx, res.RequestID, alice.ID, true)
	assert.ErrorIs(t, err, util.ErrForbidden, "sender cannot answer their own request")
}

func TestRejectedSenderCannotRetryButRejecterCan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	res, err := h.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	rejected, err := h.friends.Respond(ctx, res.RequestID, bob.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, rejected.Status)
	assert.Equal(t, 0, h.pusher.sent("tok-alice", NotifyFriendAccept))

	_, err = h.friends.SendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, util.ErrForbidden)

	again, err := h.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.NotEqual(t, res.RequestID, again.RequestID, "a fresh row keeps the history")

	_, err = h.friends.Respond(ctx, again.RequestID, alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, friendIDs(t, h, bob.ID))

	var rows int64
	require.NoError(t, h.db.Model(&model.FriendRequest{}).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)
}

func TestListPendingIncomingCarriesSender(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	carol := h.user(t, "carol")

	_, err := h.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = h.friends.SendRequest(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	_, err = h.friends.SendRequest(ctx, alice.ID, h.user(t, "dave").ID)
	require.NoError(t, err)

	pending, err := h.friends.ListPendingIncoming(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	senders := []string{pending[0].Sender.Username, pending[1].Sender.Username}
	assert.ElementsMatch(t, []string{"bob", "carol"}, senders)
}

func TestFriendIDsCacheInvalidatedOnAccept(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	ids, err := h.friends.FriendIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	h.befriend(t, alice, bob)

	ids, err = h.friends.FriendIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)
}

func TestAcceptRollsBackWhenFriendshipInsertFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.user(t, "a")
	b := h.user(t, "b")

	res, err := h.friends.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	disarm := h.failWrite(t, "create", "friendships", 1)
	_, err = h.friends.Respond(ctx, res.RequestID, b.ID, true)
	require.ErrorIs(t, err, errInjected)

	var req model.FriendRequest
	require.NoError(t, h.db.First(&req, res.RequestID).Error)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.Zero(t, h.count(t, &model.Friendship{}, "1 = 1"))
	assert.Zero(t, h.pusher.sent("tok-a", NotifyFriendAccept))

	// The request is still pending, so accepting again goes through.
	disarm()
	_, err = h.friends.Respond(ctx, res.RequestID, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, friendIDs(t, h, a.ID))
	assert.Equal(t, 1, h.pusher.sent("tok-a", NotifyFriendAccept))
}
