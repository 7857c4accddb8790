package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/monitoring"

	"gorm.io/gorm"
)

type FriendshipService struct {
	FriendRepo *repository.FriendshipRepository
	UserRepo   *repository.UserRepository
	Notifier   *NotificationService
	now        func() time.Time
}

func NewFriendshipService(friendRepo *repository.FriendshipRepository, userRepo *repository.UserRepository, notifier *NotificationService) *FriendshipService {
	return &FriendshipService{
		FriendRepo: friendRepo,
		UserRepo:   userRepo,
		Notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// FriendRequestResult reports what a send or respond call did.
type FriendRequestResult struct {
	RequestID    uint                      `json:"requestId"`
	Status       model.FriendRequestStatus `json:"status"`
	AutoAccepted bool                      `json:"autoAccepted,omitempty"`
}

type IncomingRequest struct {
	ID     uint             `json:"id"`
	Sender model.UserPublic `json:"sender"`
	SentAt time.Time        `json:"sentAt"`
}

// SendRequest proposes a friendship from senderID to receiverID.
//
// A pending request in the opposite direction is accepted instead of creating
// a second row. After a rejection only the user who rejected may start over.
func (s *FriendshipService) SendRequest(ctx context.Context, senderID, receiverID uint) (*FriendRequestResult, error) {
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", util.ErrInvalidOperation)
	}
	exists, err := s.UserRepo.Exists(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", util.ErrNotFound, receiverID)
	}

	friends, err := s.FriendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, fmt.Errorf("%w: already friends", util.ErrConflict)
	}

	live, err := s.FriendRepo.FindLiveRequest(ctx, senderID, receiverID)
	switch {
	case err == nil:
		if live.Status == model.RequestPending && live.SenderID == receiverID {
			if err := s.accept(ctx, live); err != nil {
				return nil, err
			}
			monitoring.Event("friend_request_auto_accepted")
			return &FriendRequestResult{RequestID: live.ID, Status: model.RequestAccepted, AutoAccepted: true}, nil
		}
		return nil, fmt.Errorf("%w: a friend request already exists", util.ErrConflict)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	rejected, err := s.FriendRepo.FindLatestRejected(ctx, senderID, receiverID)
	switch {
	case err == nil:
		if rejected.SenderID == senderID {
			return nil, fmt.Errorf("%w: your last request to this user was declined", util.ErrForbidden)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	pair := model.PairKey(senderID, receiverID)
	req := &model.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.RequestPending,
		ActivePair: &pair,
	}
	if err := s.FriendRepo.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: a friend request already exists", util.ErrConflict)
		}
		return nil, err
	}
	monitoring.Event("friend_request_sent")

	if sender, err := s.UserRepo.FindByID(ctx, senderID); err == nil {
		s.Notifier.FriendRequest(ctx, receiverID, sender.DisplayName, senderID, req.ID)
	}
	return &FriendRequestResult{RequestID: req.ID, Status: model.RequestPending}, nil
}

// Respond accepts or rejects a pending request addressed to responderID.
func (s *FriendshipService) Respond(ctx context.Context, requestID, responderID uint, accept bool) (*FriendRequestResult, error) {
	req, err := s.FriendRepo.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: friend request %d", util.ErrNotFound, requestID)
		}
		return nil, err
	}
	if req.ReceiverID != responderID {
		return nil, fmt.Errorf("%w: only the receiver can respond", util.ErrForbidden)
	}
	if req.Status != model.RequestPending {
		return nil, fmt.Errorf("%w: request is already %s", util.ErrInvalidState, req.Status)
	}

	if accept {
		if err := s.accept(ctx, req); err != nil {
			return nil, err
		}
		monitoring.Event("friend_request_accepted")
		return &FriendRequestResult{RequestID: req.ID, Status: model.RequestAccepted}, nil
	}

	won, err := s.FriendRepo.TransitionRequest(ctx, req.ID, model.RequestRejected, s.now())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: request is no longer pending", util.ErrInvalidState)
	}
	monitoring.Event("friend_request_rejected")
	return &FriendRequestResult{RequestID: req.ID, Status: model.RequestRejected}, nil
}

// accept flips the request and writes the friendship edge in one transaction,
// then tells the original sender.
func (s *FriendshipService) accept(ctx context.Context, req *model.FriendRequest) error {
	err := s.FriendRepo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.FriendRepo.WithTx(tx)
		won, err := repo.TransitionRequest(ctx, req.ID, model.RequestAccepted, s.now())
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: request is no longer pending", util.ErrInvalidState)
		}
		return repo.CreateFriendship(ctx, req.SenderID, req.ReceiverID)
	})
	if err != nil {
		return err
	}

	s.FriendRepo.InvalidateFriendCache(ctx, req.SenderID, req.ReceiverID)
	if accepter, err := s.UserRepo.FindByID(ctx, req.ReceiverID); err == nil {
		s.Notifier.FriendAccept(ctx, req.SenderID, accepter.DisplayName, accepter.ID)
	}
	return nil
}

func (s *FriendshipService) ListFriends(ctx context.Context, userID uint) ([]model.UserPublic, error) {
	users, err := s.FriendRepo.GetFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserPublic, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (s *FriendshipService) ListPendingIncoming(ctx context.Context, userID uint) ([]IncomingRequest, error) {
	reqs, err := s.FriendRepo.GetPendingIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]IncomingRequest, 0, len(reqs))
	for i := range reqs {
		out = append(out, IncomingRequest{
			ID:     reqs[i].ID,
			Sender: reqs[i].Sender.Public(),
			SentAt: reqs[i].SentAt,
		})
	}
	return out, nil
}

// FriendIDs is served from the redis cache when one is configured.
func (s *FriendshipService) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.FriendRepo.GetFriendIDsCached(ctx, userID)
}
