package service

import (
	"context"
	"testing"
	"time"

	"challenge_backend/internal/config"
	"challenge_backend/internal/model"
	"challenge_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuth(h *harness, ids stubVerifier) *AuthService {
	return NewAuthService(h.users, ids, &config.JWTConfig{
		Secret:        testSecret,
		AccessExpire:  15 * time.Minute,
		RefreshExpire: 7 * 24 * time.Hour,
	})
}

func TestGoogleLoginProvisionsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	auth := newAuth(h, stubVerifier{
		"good": {Subject: "g-1", Email: "ann@example.com", Name: "Ann", Picture: "https://img/ann.png"},
	})

	res, err := auth.GoogleLogin(ctx, "good")
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	assert.Equal(t, "google_g-1", res.User.Username)
	assert.Equal(t, "Ann", res.User.DisplayName)
	assert.Equal(t, "https://img/ann.png", res.User.ProfilePicture)

	claims, err := util.ParseTokenOfType(res.Token.AccessToken, testSecret, util.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	_, err = util.ParseTokenOfType(res.Token.AccessToken, testSecret, util.TokenTypeRefresh)
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	again, err := auth.GoogleLogin(ctx, "good")
	require.NoError(t, err)
	assert.False(t, again.IsNewUser)
	assert.Equal(t, res.User.ID, again.User.ID)

	var n int64
	require.NoError(t, h.db.Model(&model.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestGoogleLoginLinksExistingAccountByEmail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	email := "bo@example.com"
	existing := &model.User{Username: "bo", DisplayName: "Bo", Email: &email}
	require.NoError(t, h.db.Create(existing).Error)

	auth := newAuth(h, stubVerifier{
		"tok": {Subject: "g-2", Email: email, Phone: "+15550001", Picture: "https://img/bo.png"},
	})
	res, err := auth.GoogleLogin(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.Equal(t, "bo", res.User.Username)

	stored, err := h.users.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-2", *stored.GoogleID)
	require.NotNil(t, stored.PhoneNumber)
	assert.Equal(t, "+15550001", *stored.PhoneNumber)
	assert.Equal(t, "https://img/bo.png", stored.ProfilePicture)
}

func TestGoogleLoginFallsBackToEmailForDisplayName(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h, stubVerifier{"tok": {Subject: "g-3", Email: "cy@example.com"}})

	res, err := auth.GoogleLogin(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "cy", res.User.DisplayName)
}

func TestGoogleLoginRejectsBadToken(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h, stubVerifier{"blank": {}})

	_, err := auth.GoogleLogin(context.Background(), "forged")
	assert.ErrorIs(t, err, util.ErrUnauthorized)
	_, err = auth.GoogleLogin(context.Background(), "blank")
	assert.ErrorIs(t, err, util.ErrUnauthorized)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	auth := newAuth(h, stubVerifier{"tok": {Subject: "g-4", Name: "Dee"}})

	res, err := auth.GoogleLogin(ctx, "tok")
	require.NoError(t, err)

	pair, err := auth.Refresh(ctx, res.Token.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "bearer", pair.TokenType)

	_, err = auth.Refresh(ctx, res.Token.AccessToken)
	assert.ErrorIs(t, err, util.ErrUnauthorized, "access tokens cannot refresh")

	orphan, err := util.GenerateJWT(9999, util.TokenTypeRefresh, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = auth.Refresh(ctx, orphan)
	assert.ErrorIs(t, err, util.ErrNotFound)
}
