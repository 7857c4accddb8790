package service

import (
	"context"
	"testing"
	"time"

	"challenge_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderNotifiesParticipantsInsideWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.user(t, "owner")
	x := h.user(t, "x")
	invited := h.user(t, "invited")

	soon, err := h.challenges.Create(ctx, owner.ID, CreateChallengeParams{Title: "soon", Category: "c", Lifetime: intPtr(1)})
	require.NoError(t, err)
	h.join(t, soon, x)
	_, err = h.challenges.Invite(ctx, soon.ID, owner.ID, []uint{invited.ID})
	require.NoError(t, err)

	later := h.challenge(t, owner)
	h.join(t, later, x)

	cancelled, err := h.challenges.Create(ctx, owner.ID, CreateChallengeParams{Title: "off", Category: "c", Lifetime: intPtr(1)})
	require.NoError(t, err)
	require.NoError(t, h.challenges.Cancel(ctx, cancelled.ID, owner.ID))

	reminders := NewReminderService(h.challengeDB, h.notifier, 2*time.Hour)
	reminders.now = h.clock
	h.pusher.reset()

	n, err := reminders.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.pusher.sent("tok-owner", NotifyChallengeEnding))
	assert.Equal(t, 1, h.pusher.sent("tok-x", NotifyChallengeEnding))
	assert.Zero(t, h.pusher.sent("tok-invited", NotifyChallengeEnding), "pending invitees are not participants")

	// Without a sent log the next run repeats the reminder.
	_, err = reminders.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.pusher.sent("tok-x", NotifyChallengeEnding))

	h.advance(2 * time.Hour)
	n, err = reminders.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "ended challenges are past the window")
}

func TestReminderWindowReload(t *testing.T) {
	h := newHarness(t)
	reminders := NewReminderService(h.challengeDB, h.notifier, time.Hour)

	cfg := &config.Config{}
	cfg.Challenge.EndingSoonWindow = 6 * time.Hour
	reminders.ApplyConfig(cfg)
	assert.Equal(t, 6*time.Hour, reminders.Window())

	cfg.Challenge.EndingSoonWindow = 0
	reminders.ApplyConfig(cfg)
	assert.Equal(t, 6*time.Hour, reminders.Window(), "zero keeps the current window")
}

func TestReminderStartStopsWithContext(t *testing.T) {
	h := newHarness(t)
	reminders := NewReminderService(h.challengeDB, h.notifier, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reminders.Start(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder loop did not stop")
	}
}
