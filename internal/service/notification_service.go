package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"challenge_backend/internal/repository"
	"challenge_backend/pkg/logger"
	"challenge_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const (
	NotifyChallengeInvite     = "challenge_invite"
	NotifyChallengeAccepted   = "challenge_accepted"
	NotifyChallengeSubmission = "challenge_submission"
	NotifyChallengeEnding     = "challenge_ending"
	NotifyFriendRequest       = "friend_request"
	NotifyFriendAccept        = "friend_accept"
)

// NotificationService fans messages out to every device of a user. Delivery
// is best-effort: failures are logged and counted, never returned.
type NotificationService struct {
	Devices *repository.DeviceRepository
	Pusher  Pusher
	Timeout time.Duration
}

func NewNotificationService(devices *repository.DeviceRepository, pusher Pusher, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationService{Devices: devices, Pusher: pusher, Timeout: timeout}
}

// NotifyUsers sends msg to each user. The request context is detached so a
// finished HTTP request does not cut delivery short.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []uint, msg PushMessage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()

	for _, id := range userIDs {
		s.notifyUser(ctx, id, msg)
	}
}

func (s *NotificationService) notifyUser(ctx context.Context, userID uint, msg PushMessage) {
	tokens, err := s.Devices.TokensForUser(ctx, userID)
	if err != nil {
		logger.Log.Warn("load device tokens failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	stale, err := s.Pusher.Push(ctx, tokens, msg)
	result := "ok"
	if err != nil {
		result = "error"
		logger.Log.Warn("push failed",
			zap.String("driver", s.Pusher.Name()),
			zap.String("kind", msg.Kind),
			zap.Uint("user_id", userID),
			zap.Error(err))
	}
	monitoring.NotificationsSent.WithLabelValues(s.Pusher.Name(), msg.Kind, result).Inc()

	if len(stale) > 0 {
		if err := s.Devices.DeleteTokens(ctx, stale); err != nil {
			logger.Log.Warn("drop stale tokens failed", zap.Error(err))
		}
	}
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *NotificationService) ChallengeInvite(ctx context.Context, receiverID uint, senderName, title string, challengeID, invitationID uint) {
	s.NotifyUsers(ctx, []uint{receiverID}, PushMessage{
		Kind:  NotifyChallengeInvite,
		Title: "New Challenge Invitation!",
		Body:  fmt.Sprintf("%s invited you to '%s'", senderName, title),
		Data: map[string]string{
			"challenge_id":  idString(challengeID),
			"invitation_id": idString(invitationID),
		},
	})
}

func (s *NotificationService) ChallengeAccepted(ctx context.Context, creatorID uint, accepterName, title string, challengeID uint) {
	s.NotifyUsers(ctx, []uint{creatorID}, PushMessage{
		Kind:  NotifyChallengeAccepted,
		Title: "Challenge Accepted",
		Body:  fmt.Sprintf("%s joined '%s'", accepterName, title),
		Data:  map[string]string{"challenge_id": idString(challengeID)},
	})
}

func (s *NotificationService) ChallengeSubmission(ctx context.Context, userIDs []uint, submitterName, title string, challengeID uint) {
	s.NotifyUsers(ctx, userIDs, PushMessage{
		Kind:  NotifyChallengeSubmission,
		Title: "New Challenge Submission!",
		Body:  fmt.Sprintf("%s submitted to '%s'", submitterName, title),
		Data:  map[string]string{"challenge_id": idString(challengeID)},
	})
}

func (s *NotificationService) ChallengeEnding(ctx context.Context, userIDs []uint, title string, challengeID uint, hoursLeft int) {
	s.NotifyUsers(ctx, userIDs, PushMessage{
		Kind:  NotifyChallengeEnding,
		Title: "Challenge Ending Soon!",
		Body:  fmt.Sprintf("'%s' ends in %d hours", title, hoursLeft),
		Data:  map[string]string{"challenge_id": idString(challengeID)},
	})
}

func (s *NotificationService) FriendRequest(ctx context.Context, receiverID uint, senderName string, senderID, requestID uint) {
	s.NotifyUsers(ctx, []uint{receiverID}, PushMessage{
		Kind:  NotifyFriendRequest,
		Title: "New Friend Request",
		Body:  fmt.Sprintf("%s sent you a friend request", senderName),
		Data: map[string]string{
			"sender_id":  idString(senderID),
			"request_id": idString(requestID),
		},
	})
}

func (s *NotificationService) FriendAccept(ctx context.Context, receiverID uint, accepterName string, accepterID uint) {
	s.NotifyUsers(ctx, []uint{receiverID}, PushMessage{
		Kind:  NotifyFriendAccept,
		Title: "Friend Request Accepted",
		Body:  fmt.Sprintf("%s accepted your friend request", accepterName),
		Data:  map[string]string{"friend_id": idString(accepterID)},
	})
}
