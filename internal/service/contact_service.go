package service

import (
	"context"
	"fmt"
	"strings"

	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/security"
)

const (
	maxContactsPerUpload = 5000
	recommendationLimit  = 50
)

type ContactService struct {
	ContactRepo *repository.ContactRepository
	Friends     *FriendshipService
}

func NewContactService(contactRepo *repository.ContactRepository, friends *FriendshipService) *ContactService {
	return &ContactService{
		ContactRepo: contactRepo,
		Friends:     friends,
	}
}

type ContactEntry struct {
	ContactName string `json:"contactName"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

// normalizePhone keeps a leading '+' and the digits.
func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Upload replaces the caller's address book and returns how many distinct
// numbers were stored.
func (s *ContactService) Upload(ctx context.Context, userID uint, entries []ContactEntry) (int, error) {
	if len(entries) > maxContactsPerUpload {
		return 0, fmt.Errorf("%w: at most %d contacts per upload", util.ErrInvalidOperation, maxContactsPerUpload)
	}
	seen := make(map[string]bool, len(entries))
	contacts := make([]model.Contact, 0, len(entries))
	for _, e := range entries {
		phone := normalizePhone(e.PhoneNumber)
		if phone == "" || phone == "+" || seen[phone] {
			continue
		}
		seen[phone] = true
		contacts = append(contacts, model.Contact{
			ContactName: security.SanitizeText(e.ContactName),
			PhoneNumber: phone,
		})
	}
	if err := s.ContactRepo.Replace(ctx, userID, contacts); err != nil {
		return 0, err
	}
	return len(contacts), nil
}

// Recommendations lists users whose address books overlap the caller's,
// skipping existing friends.
func (s *ContactService) Recommendations(ctx context.Context, userID uint) ([]repository.Recommendation, error) {
	friends, err := s.Friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	recs, err := s.ContactRepo.Recommend(ctx, userID, friends, recommendationLimit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []repository.Recommendation{}
	}
	return recs, nil
}
