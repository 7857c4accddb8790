package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"challenge_backend/internal/config"
	"challenge_backend/internal/model"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/util"
	"challenge_backend/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

// Identity is what the identity provider vouches for.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
	Phone   string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// GoogleVerifier checks Google ID tokens issued for ClientID.
type GoogleVerifier struct {
	ClientID string
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := idtoken.Validate(ctx, token, v.ClientID)
	if err != nil {
		return nil, err
	}
	phone := claimString(payload.Claims, "phone_number")
	if phone == "" {
		phone = claimString(payload.Claims, "phoneNumber")
	}
	return &Identity{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
		Phone:   phone,
	}, nil
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Verifier IdentityVerifier
	Cfg      *config.JWTConfig
}

func NewAuthService(userRepo *repository.UserRepository, verifier IdentityVerifier, cfg *config.JWTConfig) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Verifier: verifier,
		Cfg:      cfg,
	}
}

// LoginResult nests the token pair, which keeps the OAuth field names.
type LoginResult struct {
	User      model.UserPublic `json:"user"`
	Token     util.TokenPair   `json:"token"`
	IsNewUser bool             `json:"isNewUser"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GoogleLogin signs a user in with a Google ID token, creating the account on
// first sight or linking it to an existing account with the same email or
// phone number.
func (s *AuthService) GoogleLogin(ctx context.Context, token string) (*LoginResult, error) {
	id, err := s.Verifier.Verify(ctx, token)
	if err != nil {
		logger.Log.Info("identity token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: invalid identity token", util.ErrUnauthorized)
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("%w: identity token has no subject", util.ErrUnauthorized)
	}

	created := false
	user, err := s.UserRepo.FindByIdentity(ctx, id.Subject, id.Email, id.Phone)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.createFromIdentity(ctx, id)
		if err != nil {
			return nil, err
		}
		created = true
	case err != nil:
		return nil, err
	case user.GoogleID == nil:
		if err := s.link(ctx, user, id); err != nil {
			return nil, err
		}
	}

	pair, err := s.issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user.Public(), Token: *pair, IsNewUser: created}, nil
}

func (s *AuthService) createFromIdentity(ctx context.Context, id *Identity) (*model.User, error) {
	display := strings.TrimSpace(id.Name)
	if display == "" {
		display, _, _ = strings.Cut(id.Email, "@")
	}
	user := &model.User{
		Username:       "google_" + id.Subject,
		DisplayName:    display,
		Email:          optional(id.Email),
		PhoneNumber:    optional(id.Phone),
		GoogleID:       optional(id.Subject),
		ProfilePicture: id.Picture,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent login won the insert.
			return s.UserRepo.FindByIdentity(ctx, id.Subject, id.Email, id.Phone)
		}
		return nil, err
	}
	logger.Log.Info("user provisioned", zap.Uint("user_id", user.ID))
	return user, nil
}

func (s *AuthService) link(ctx context.Context, user *model.User, id *Identity) error {
	fields := map[string]interface{}{"google_id": id.Subject}
	user.GoogleID = optional(id.Subject)
	if user.Email == nil && id.Email != "" {
		fields["email"] = id.Email
		user.Email = optional(id.Email)
	}
	if user.PhoneNumber == nil && id.Phone != "" {
		fields["phone_number"] = id.Phone
		user.PhoneNumber = optional(id.Phone)
	}
	if user.ProfilePicture == "" && id.Picture != "" {
		fields["profile_picture"] = id.Picture
		user.ProfilePicture = id.Picture
	}
	return s.UserRepo.UpdateFields(ctx, user.ID, fields)
}

// Refresh trades a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*util.TokenPair, error) {
	claims, err := util.ParseTokenOfType(refreshToken, s.Cfg.Secret, util.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	exists, err := s.UserRepo.Exists(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", util.ErrNotFound, claims.UserID)
	}
	return s.issue(claims.UserID)
}

func (s *AuthService) issue(userID uint) (*util.TokenPair, error) {
	return util.GenerateTokenPair(userID, s.Cfg.Secret, s.Cfg.AccessExpire, s.Cfg.RefreshExpire)
}
