package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/security"

	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,64}$`)

type UserService struct {
	UserRepo *repository.UserRepository
	Photos   PhotoStore
}

func NewUserService(userRepo *repository.UserRepository, photos PhotoStore) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Photos:   photos,
	}
}

// Profile is what a user sees about their own account.
type Profile struct {
	model.UserPublic
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func profileOf(u *model.User) *Profile {
	return &Profile{
		UserPublic:  u.Public(),
		Email:       deref(u.Email),
		PhoneNumber: deref(u.PhoneNumber),
	}
}

func (s *UserService) find(ctx context.Context, id uint) (*model.User, error) {
	u, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", util.ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) Me(ctx context.Context, userID uint) (*Profile, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profileOf(u), nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*model.UserPublic, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// UpdateProfileParams leaves nil fields untouched.
type UpdateProfileParams struct {
	Username    *string
	DisplayName *string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, p UpdateProfileParams) (*Profile, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if p.Username != nil && *p.Username != u.Username {
		name := *p.Username
		if !usernamePattern.MatchString(name) {
			return nil, fmt.Errorf("%w: username must be 3-64 letters, digits, '_' or '.'", util.ErrInvalidOperation)
		}
		taken, err := s.UserRepo.UsernameTaken(ctx, name, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: username %q is taken", util.ErrConflict, name)
		}
		fields["username"] = name
		u.Username = name
	}
	if p.DisplayName != nil {
		display := security.SanitizeText(*p.DisplayName)
		if display == "" || utf8.RuneCountInString(display) > 100 {
			return nil, fmt.Errorf("%w: display name must be 1-100 characters", util.ErrInvalidOperation)
		}
		fields["display_name"] = display
		u.DisplayName = display
	}
	if len(fields) == 0 {
		return profileOf(u), nil
	}

	if err := s.UserRepo.UpdateFields(ctx, userID, fields); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q is taken", util.ErrConflict, u.Username)
		}
		return nil, err
	}
	return profileOf(u), nil
}

// UploadAvatar stores a square avatar and swaps it in. The previous picture is
// removed only when it lives in our storage.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, data []byte) (*Profile, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	url, err := s.Photos.UploadImage(ctx, util.FolderAvatars, idString(userID), data, util.AvatarImage)
	if err != nil {
		return nil, err
	}
	if err := s.UserRepo.UpdateFields(ctx, userID, map[string]interface{}{"profile_picture": url}); err != nil {
		deletePhotos(ctx, s.Photos, url)
		return nil, err
	}
	old := u.ProfilePicture
	u.ProfilePicture = url
	deletePhotos(ctx, s.Photos, old)
	return profileOf(u), nil
}
