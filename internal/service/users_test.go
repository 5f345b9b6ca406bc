package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
)

func registerRequest(username string) RegisterUserRequest {
	return RegisterUserRequest{
		Username:    username,
		Email:       username + "@example.net",
		Password:    "password123",
		FirstName:   "Reg",
		LastName:    "User",
		Permissions: []string{string(domain.PermContentCurator)},
	}
}

func TestUserService_RegisterUser(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	user, err := env.users.RegisterUser(ctx, env.admin, registerRequest("newbie"))
	require.NoError(t, err)
	assert.Equal(t, env.admin.UserID, user.CreatorID)
	assert.True(t, user.CanCurate())
	assert.True(t, user.Enabled)

	_, err = env.users.RegisterUser(ctx, env.admin, registerRequest("newbie"))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	dupEmail := registerRequest("other")
	dupEmail.Email = "NEWBIE@example.net"
	_, err = env.users.RegisterUser(ctx, env.admin, dupEmail)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.users.RegisterUser(ctx, env.curator, registerRequest("sneaky"))
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	bad := registerRequest("perm")
	bad.Permissions = []string{"ROOT"}
	_, err = env.users.RegisterUser(ctx, env.admin, bad)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	plain := registerRequest("plain")
	plain.Permissions = nil
	user, err = env.users.RegisterUser(ctx, env.admin, plain)
	require.NoError(t, err)
	assert.Equal(t, []domain.Permission{domain.PermSiteUser}, user.Permissions)

	exists, err := env.users.UsernameExists(ctx, "newbie")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = env.users.EmailExists(ctx, "nobody@example.net")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserService_UpdateKeepsBlankFields(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	user, err := env.users.UpdateUserInformation(ctx, env.admin, env.curator.UserID, UpdateUserRequest{
		LastName:    "Renamed",
		Enabled:     true,
		Permissions: []string{string(domain.PermContentCurator)},
	})
	require.NoError(t, err)
	assert.Equal(t, "curator", user.FirstName)
	assert.Equal(t, "Renamed", user.LastName)

	_, err = env.users.UpdateUserInformation(ctx, env.admin, env.admin.UserID, UpdateUserRequest{
		Enabled:     true,
		Permissions: []string{string(domain.PermContentCurator)},
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestUserService_DeleteRevokesSessions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	session, err := env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "password123"}, testClient)
	require.NoError(t, err)

	assert.ErrorIs(t, env.users.DeleteUser(ctx, env.admin, env.admin.UserID), domainerrors.ErrValidation)
	require.NoError(t, env.users.DeleteUser(ctx, env.admin, env.curator.UserID))
	assert.ErrorIs(t, env.users.DeleteUser(ctx, env.admin, env.curator.UserID), domainerrors.ErrNotModified)

	_, err = env.auth.VerifyAccessToken(ctx, session.AccessToken)
	assert.Error(t, err)

	_, err = env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "password123"}, testClient)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	deleted, err := env.users.ListDeletedUsers(ctx, env.admin)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	restored, err := env.users.RestoreUser(ctx, env.admin, env.curator.UserID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())

	live, err := env.users.ListUsers(ctx, env.admin)
	require.NoError(t, err)
	assert.Len(t, live, 2)
}

func TestUserService_GetUser(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	me, err := env.users.GetCurrentUser(ctx, env.curator)
	require.NoError(t, err)
	assert.Equal(t, "curator", me.Username)

	_, err = env.users.GetUser(ctx, env.curator, env.admin.UserID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = env.users.GetUser(ctx, env.admin, env.curator.UserID)
	require.NoError(t, err)

	_, err = env.users.GetCurrentUser(ctx, nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestUserService_ChangePassword(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	err := env.users.ChangePassword(ctx, env.curator, ChangePasswordRequest{Username: "admin", OldPassword: "password123", NewPassword: "changed-123"})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	err = env.users.ChangePassword(ctx, env.curator, ChangePasswordRequest{Username: "curator", OldPassword: "nope-nope", NewPassword: "changed-123"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	require.NoError(t, env.users.ChangePassword(ctx, env.curator, ChangePasswordRequest{Username: "curator", OldPassword: "password123", NewPassword: "changed-123"}))

	_, err = env.auth.SignIn(ctx, SignInRequest{Login: "curator", Password: "changed-123"}, testClient)
	require.NoError(t, err)
}
