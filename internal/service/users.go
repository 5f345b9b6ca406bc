package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/store"
	"github.com/asylumproject/asylum-server/internal/validation"
)

// UserService manages accounts and their permissions.
type UserService struct {
	store     store.Store
	sessions  *SessionService
	events    *EventService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	store store.Store,
	sessions *SessionService,
	events *EventService,
	validator *validation.Validator,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:     store,
		sessions:  sessions,
		events:    events,
		validator: validator,
		logger:    logger,
	}
}

// RegisterUserRequest creates an account on behalf of an administrator.
type RegisterUserRequest struct {
	Username        string   `json:"username" validate:"required,username"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=8,max=1024"`
	FirstName       string   `json:"first_name" validate:"max=100"`
	LastName        string   `json:"last_name" validate:"max=100"`
	PhoneNumber     string   `json:"phone_number,omitempty" validate:"max=32"`
	DefaultLanguage string   `json:"default_language,omitempty" validate:"max=16"`
	Permissions     []string `json:"permissions" validate:"dive,required"`
}

// UpdateUserRequest is the "update user information" payload. Blank profile
// fields keep their stored value; Enabled and Permissions always apply.
type UpdateUserRequest struct {
	FirstName       string   `json:"first_name" validate:"max=100"`
	LastName        string   `json:"last_name" validate:"max=100"`
	PhoneNumber     string   `json:"phone_number" validate:"max=32"`
	DefaultLanguage string   `json:"default_language" validate:"max=16"`
	PhotoPath       string   `json:"photo_path" validate:"max=2048"`
	Enabled         bool     `json:"enabled"`
	Permissions     []string `json:"permissions" validate:"dive,required"`
}

// ChangePasswordRequest changes the signed-in user's password.
type ChangePasswordRequest struct {
	Username    string `json:"username" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=1024"`
}

// RegisterUser creates an account. Admin only.
func (s *UserService) RegisterUser(ctx context.Context, actor *Actor, req RegisterUserRequest) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	perms, err := parsePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}

	username := normalizeUsername(req.Username)
	email := normalizeEmail(req.Email)
	if taken, err := s.store.UsernameExists(ctx, username); err != nil {
		return nil, storeErr(err, "check username")
	} else if taken {
		return nil, domainerrors.Validation("username already in use")
	}
	if taken, err := s.store.EmailExists(ctx, email); err != nil {
		return nil, storeErr(err, "check email")
	} else if taken {
		return nil, domainerrors.Validation("email already in use")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		PhoneNumber:     strings.TrimSpace(req.PhoneNumber),
		DefaultLanguage: domain.NormalizeCode(req.DefaultLanguage),
		Enabled:         true,
		CreatorID:       actor.UserID,
	}
	user.SetPermissions(perms)
	user.InitTimestamps()

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return domainerrors.Validation("username or email already in use")
			}
			return storeErr(err, "create user")
		}
		return s.events.Record(ctx, actor, domain.OpCreated, domain.ItemUser, user.ID, user.Username, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username, "creator_id", actor.UserID)
	return user, nil
}

// UpdateUserInformation merges a profile update. Admin only.
func (s *UserService) UpdateUserInformation(ctx context.Context, actor *Actor, id int64, req UpdateUserRequest) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	perms, err := parsePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}
	if id == actor.UserID && !slices.Contains(perms, domain.PermSystemAdmin) {
		return nil, domainerrors.Validation("administrators cannot remove their own admin permission")
	}

	var user *domain.User
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		user, err = s.store.GetUser(ctx, id)
		if err != nil {
			return storeErr(err, "get user")
		}
		user.ApplyProfile(domain.ProfileUpdate{
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			PhoneNumber:     req.PhoneNumber,
			DefaultLanguage: req.DefaultLanguage,
			PhotoPath:       req.PhotoPath,
			Enabled:         req.Enabled,
			Permissions:     perms,
		})
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return storeErr(err, "update user")
		}
		if !user.Enabled {
			if err := s.store.DeleteAllUserSessions(ctx, user.ID); err != nil {
				return storeErr(err, "revoke sessions")
			}
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemUser, user.ID, user.Username, "")
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser moves an account to the recycle bin and signs it out everywhere.
func (s *UserService) DeleteUser(ctx context.Context, actor *Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return domainerrors.Validation("administrators cannot delete their own account")
	}
	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			return storeErr(err, "get user")
		}
		if user.IsDeleted() {
			return domainerrors.NotModified("user already deleted")
		}
		user.MarkDeleted()
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return storeErr(err, "delete user")
		}
		if err := s.sessions.RevokeUserSessions(ctx, user.ID); err != nil {
			return err
		}
		return s.events.Record(ctx, actor, domain.OpDeleted, domain.ItemUser, user.ID, user.Username, "")
	})
}

// RestoreUser brings an account back from the recycle bin.
func (s *UserService) RestoreUser(ctx context.Context, actor *Actor, id int64) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.GetUser(ctx, id)
		if err != nil {
			return storeErr(err, "get user")
		}
		if !user.IsDeleted() {
			return domainerrors.NotModified("user is not deleted")
		}
		user.Restore()
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return storeErr(err, "restore user")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemUser, user.ID, "restored", "")
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns live accounts.
func (s *UserService) ListUsers(ctx context.Context, actor *Actor) ([]*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, domain.RecordActive)
	return users, storeErr(err, "list users")
}

// ListDeletedUsers returns the account recycle bin.
func (s *UserService) ListDeletedUsers(ctx context.Context, actor *Actor) ([]*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, domain.RecordDeleted)
	return users, storeErr(err, "list deleted users")
}

// GetUser returns an account. Users may read their own; admins any.
func (s *UserService) GetUser(ctx context.Context, actor *Actor, id int64) (*domain.User, error) {
	if actor == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, domainerrors.Forbidden("system admin permission required")
	}
	user, err := s.store.GetUser(ctx, id)
	return user, storeErr(err, "get user")
}

// GetCurrentUser returns the token holder's profile.
func (s *UserService) GetCurrentUser(ctx context.Context, actor *Actor) (*domain.User, error) {
	if actor == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	return s.GetUser(ctx, actor, actor.UserID)
}

// UsernameExists reports whether an account uses the username.
func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	ok, err := s.store.UsernameExists(ctx, normalizeUsername(username))
	return ok, storeErr(err, "check username")
}

// EmailExists reports whether an account uses the email address.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	ok, err := s.store.EmailExists(ctx, normalizeEmail(email))
	return ok, storeErr(err, "check email")
}

// ChangePassword changes the actor's own password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, actor *Actor, req ChangePasswordRequest) error {
	if actor == nil {
		return domainerrors.Unauthorized("authentication required")
	}
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if normalizeUsername(req.Username) != actor.Username {
		return domainerrors.Forbidden("users can only change their own password")
	}

	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return storeErr(err, "get user")
	}
	ok, err := auth.VerifyPassword(user.PasswordHash, req.OldPassword)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domainerrors.InvalidCredentials("current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.Touch()

	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return storeErr(err, "update user")
		}
		return s.events.Record(ctx, actor, domain.OpPasswordChange, domain.ItemUser, user.ID, "", "")
	})
}

func parsePermissions(names []string) ([]domain.Permission, error) {
	perms := make([]domain.Permission, 0, len(names))
	for _, n := range names {
		p, ok := domain.ParsePermission(n)
		if !ok {
			return nil, domainerrors.Validationf("unknown permission %q", n)
		}
		perms = append(perms, p)
	}
	if len(perms) == 0 {
		perms = append(perms, domain.PermSiteUser)
	}
	return perms, nil
}

// normalizeUsername applies NFC so usernames typed on different keyboards
// compare equal.
func normalizeUsername(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
