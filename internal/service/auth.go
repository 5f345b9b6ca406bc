package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/store"
	"github.com/asylumproject/asylum-server/internal/validation"
)

// AuthService handles setup, sign-in, token verification and password
// resets. Session bookkeeping is delegated to SessionService.
type AuthService struct {
	store          store.Store
	tokenService   *auth.TokenService
	sessionService *SessionService
	events         *EventService
	mailer         mail.Mailer
	validator      *validation.Validator
	shareBaseURL   string
	logger         *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	events *EventService,
	mailer mail.Mailer,
	validator *validation.Validator,
	shareBaseURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:          store,
		tokenService:   tokenService,
		sessionService: sessionService,
		events:         events,
		mailer:         mailer,
		validator:      validator,
		shareBaseURL:   strings.TrimRight(shareBaseURL, "/"),
		logger:         logger,
	}
}

// SetupRequest contains the first administrator account.
type SetupRequest struct {
	Username  string `json:"username" validate:"required,username"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=1024"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// SignInRequest accepts a username or an email address as the login.
type SignInRequest struct {
	Login    string `json:"login" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=1024"`
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// IsSetupRequired reports whether no account exists yet.
func (s *AuthService) IsSetupRequired(ctx context.Context) (bool, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n == 0, nil
}

// Setup creates the first administrator. It only works while no users exist.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest, client auth.ClientInfo) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	required, err := s.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, domainerrors.AlreadyConfigured("server is already configured")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		Username:     normalizeUsername(req.Username),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Enabled:      true,
		LastLoginAt:  &now,
	}
	user.SetPermissions([]domain.Permission{domain.PermSystemAdmin, domain.PermContentCurator})
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, storeErr(err, "create user")
	}

	session, err := s.sessionService.CreateSession(ctx, user, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	actor := &Actor{UserID: user.ID, Username: user.Username}
	if err := s.events.Record(ctx, actor, domain.OpCreated, domain.ItemUser, user.ID, "initial setup", ""); err != nil {
		s.logger.Warn("failed to record setup event", "error", err)
	}

	s.logger.Info("server setup complete", "user_id", user.ID, "username", user.Username)
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// SignIn authenticates by username or email and opens a session.
// Disabled and deleted accounts cannot sign in.
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest, client auth.ClientInfo) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't leak whether the login exists
			return nil, domainerrors.InvalidCredentials("invalid username or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid username or password")
	}
	if !user.CanSignIn() {
		return nil, domainerrors.Forbidden("account is disabled")
	}

	now := time.Now()
	user.LastLoginAt = &now
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		// Log but don't fail sign-in
		s.logger.Warn("failed to update last login time", "user_id", user.ID, "error", err)
	}

	session, err := s.sessionService.CreateSession(ctx, user, client)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	actor := &Actor{UserID: user.ID, Username: user.Username, SessionID: session.SessionID}
	if err := s.events.Record(ctx, actor, domain.OpSignIn, domain.ItemUser, user.ID, "", ""); err != nil {
		s.logger.Warn("failed to record sign-in event", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user signed in", "user_id", user.ID, "ip", client.IPAddress)
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client auth.ClientInfo) (*AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domainerrors.Validation("refresh_token is required")
	}
	session, user, err := s.sessionService.RefreshSession(ctx, refreshToken, client)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// SignOut ends the actor's session.
func (s *AuthService) SignOut(ctx context.Context, actor *Actor) error {
	if actor == nil {
		return domainerrors.Unauthorized("authentication required")
	}
	if err := s.sessionService.DeleteSession(ctx, actor.SessionID); err != nil {
		return err
	}
	if err := s.events.Record(ctx, actor, domain.OpSignOut, domain.ItemUser, actor.UserID, "", ""); err != nil {
		s.logger.Warn("failed to record sign-out event", "user_id", actor.UserID, "error", err)
	}
	return nil
}

// VerifyAccessToken validates a bearer token and resolves the actor.
// The token's session must still exist, so signing out or deleting the user
// revokes outstanding access tokens.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*Actor, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}
	if err := s.sessionService.ValidateSession(ctx, claims.SessionID); err != nil {
		return nil, err
	}
	return ActorFromClaims(claims), nil
}

// RequestPasswordReset stores a reset token and emails a reset link.
// A failed email is logged; the caller still sees success.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domainerrors.Validation("email is required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return storeErr(err, "get user")
	}
	if user.IsDeleted() {
		return domainerrors.Validation("account has been deleted")
	}

	user.ResetToken = uuid.NewString()
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return storeErr(err, "store reset token")
	}

	actor := &Actor{UserID: user.ID, Username: user.Username}
	if err := s.events.Record(ctx, actor, domain.OpRequestPasswordReset, domain.ItemUser, user.ID, "", ""); err != nil {
		s.logger.Warn("failed to record reset request event", "user_id", user.ID, "error", err)
	}

	msg := mail.Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password:\n\n%s\n\nIf you did not ask for this, ignore this message.\n",
			user.FullName(), s.resetLink(user.ID, user.ResetToken)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send password reset email", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password when token matches the stored reset
// token. The token is single use.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return storeErr(err, "get user")
	}
	if user.ResetToken == "" || subtle.ConstantTimeCompare([]byte(user.ResetToken), []byte(req.Token)) != 1 {
		return domainerrors.Validation("invalid or expired reset token")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.Touch()

	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return storeErr(err, "update user")
		}
		if err := s.store.DeleteAllUserSessions(ctx, user.ID); err != nil {
			return storeErr(err, "revoke sessions")
		}
		actor := &Actor{UserID: user.ID, Username: user.Username}
		return s.events.Record(ctx, actor, domain.OpPasswordChange, domain.ItemUser, user.ID, "reset", "")
	})
}

func (s *AuthService) resetLink(userID int64, token string) string {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(userID, 10))
	q.Set("token", token)
	return s.shareBaseURL + "/auth/changePassword?" + q.Encode()
}
