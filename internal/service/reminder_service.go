package service

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"challenge_backend/internal/config"
	"challenge_backend/internal/repository"
	"challenge_backend/pkg/logger"
	"challenge_backend/pkg/monitoring"
	"challenge_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReminderService tells participants when a challenge is about to end.
// There is no record of what was already sent, so a challenge that stays in
// the window across runs is announced again on each run.
type ReminderService struct {
	Challenges *repository.ChallengeRepository
	Notifier   *NotificationService
	window     atomic.Int64
	now        func() time.Time
}

func NewReminderService(challenges *repository.ChallengeRepository, notifier *NotificationService, window time.Duration) *ReminderService {
	s := &ReminderService{
		Challenges: challenges,
		Notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.SetWindow(window)
	return s
}

func (s *ReminderService) SetWindow(window time.Duration) {
	s.window.Store(int64(window))
}

func (s *ReminderService) Window() time.Duration {
	return time.Duration(s.window.Load())
}

// ApplyConfig is registered as a config reload callback.
func (s *ReminderService) ApplyConfig(cfg *config.Config) {
	if w := cfg.Challenge.EndingSoonWindow; w > 0 && w != s.Window() {
		logger.Log.Info("reminder window changed", zap.Duration("window", w))
		s.SetWindow(w)
	}
}

// RunOnce notifies every accepted participant of each challenge ending within
// the window and returns how many challenges were announced.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	monitoring.ReminderRuns.Inc()

	ctx, span := tracing.Tracer.Start(ctx, "reminder.run")
	defer span.End()

	now := s.now()
	challenges, err := s.Challenges.ListEndingBetween(ctx, now, now.Add(s.Window()))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("challenges", len(challenges)))

	for i := range challenges {
		c := &challenges[i]
		participants, err := s.Challenges.AcceptedParticipantIDs(ctx, c.ID)
		if err != nil {
			logger.Log.Warn("load participants for reminder failed", zap.Uint("challenge_id", c.ID), zap.Error(err))
			continue
		}
		hoursLeft := int(math.Round(c.EndDate.Sub(now).Hours()))
		s.Notifier.ChallengeEnding(ctx, participants, c.Title, c.ID, hoursLeft)
	}
	return len(challenges), nil
}

// Start runs the job on every tick until ctx is cancelled.
func (s *ReminderService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.RunOnce(ctx)
			if err != nil {
				logger.Log.Error("challenge reminder run failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("challenge reminders sent", zap.Int("challenges", n))
			}
		}
	}
}
