package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
)

var testClient = auth.ClientInfo{IPAddress: "203.0.113.7", UserAgent: "test"}

func TestAuthService_Setup(t *testing.T) {
	env := newBareEnv(t)
	ctx := context.Background()

	required, err := env.auth.IsSetupRequired(ctx)
	require.NoError(t, err)
	assert.True(t, required)

	req := SetupRequest{
		Username:  "Founder",
		Email:     "Founder@Example.org",
		Password:  "password123",
		FirstName: "Ada",
		LastName:  "Admin",
	}
	resp, err := env.auth.Setup(ctx, req, testClient)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "founder@example.org", resp.User.Email)
	assert.True(t, resp.User.IsAdmin())
	assert.True(t, resp.User.HasPermission(domain.PermContentCurator))

	_, err = env.auth.Setup(ctx, req, testClient)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyConfigured)

	required, err = env.auth.IsSetupRequired(ctx)
	require.NoError(t, err)
	assert.False(t, required)
}

func TestAuthService_SignIn(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	byName, err := env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "password123"}, testClient)
	require.NoError(t, err)
	assert.Equal(t, env.curator.UserID, byName.User.ID)
	assert.NotNil(t, byName.User.LastLoginAt)

	byEmail, err := env.auth.SignIn(ctx, SignInRequest{Login: "curator@example.org", Password: "password123"}, testClient)
	require.NoError(t, err)
	assert.NotEqual(t, byName.SessionID, byEmail.SessionID)

	_, err = env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "wrong-password"}, testClient)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = env.auth.SignIn(ctx, SignInRequest{Login: "nobody", Password: "password123"}, testClient)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	actor, err := env.auth.VerifyAccessToken(ctx, byName.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "curator", actor.Username)
	assert.True(t, actor.CanCurate())
	assert.False(t, actor.IsAdmin())
}

func TestAuthService_DisabledAccount(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.users.UpdateUserInformation(ctx, env.admin, env.curator.UserID, UpdateUserRequest{
		Enabled:     false,
		Permissions: []string{string(domain.PermContentCurator)},
	})
	require.NoError(t, err)

	_, err = env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "password123"}, testClient)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestAuthService_RefreshAndSignOut(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.SignIn(ctx, SignInRequest{Login: "admin", Password: "password123"}, testClient)
	require.NoError(t, err)

	rotated, err := env.auth.Refresh(ctx, first.RefreshToken, testClient)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, first.SessionID, rotated.SessionID)

	// The old refresh token is single use.
	_, err = env.auth.Refresh(ctx, first.RefreshToken, testClient)
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)

	_, err = env.auth.Refresh(ctx, "  ", testClient)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	actor, err := env.auth.VerifyAccessToken(ctx, rotated.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.auth.SignOut(ctx, actor))

	_, err = env.auth.VerifyAccessToken(ctx, rotated.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)

	_, err = env.auth.VerifyAccessToken(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestAuthService_PasswordReset(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	session, err := env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "password123"}, testClient)
	require.NoError(t, err)

	require.NoError(t, env.auth.RequestPasswordReset(ctx, " Curator@Example.org "))

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "curator@example.org", sent[0].To)

	var link string
	for _, line := range strings.Split(sent[0].Body, "\n") {
		if strings.HasPrefix(line, "https://") {
			link = line
		}
	}
	require.NotEmpty(t, link)
	assert.True(t, strings.HasPrefix(link, "https://stories.example.org/auth/changePassword?"))

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, itoa(env.curator.UserID), u.Query().Get("id"))
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	err = env.auth.ResetPassword(ctx, ResetPasswordRequest{UserID: env.curator.UserID, Token: "wrong", NewPassword: "new-password"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	require.NoError(t, env.auth.ResetPassword(ctx, ResetPasswordRequest{UserID: env.curator.UserID, Token: token, NewPassword: "new-password"}))

	// Single use, and outstanding sessions are revoked.
	err = env.auth.ResetPassword(ctx, ResetPasswordRequest{UserID: env.curator.UserID, Token: token, NewPassword: "other-password"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	_, err = env.auth.VerifyAccessToken(ctx, session.AccessToken)
	assert.Error(t, err)

	_, err = env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "new-password"}, testClient)
	require.NoError(t, err)
}

func TestAuthService_PasswordResetMailFailure(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.mailer.Err = errors.New("smtp down")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "curator@example.org"))
	assert.Empty(t, env.mailer.Sent())

	user, err := env.store.GetUser(ctx, env.curator.UserID)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ResetToken)

	err = env.auth.RequestPasswordReset(ctx, "ghost@example.org")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
