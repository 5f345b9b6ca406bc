package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSetupStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/setup",
		Summary:     "Setup status",
		Description: "Reports whether the first administrator still has to be created",
		Tags:        []string{"Authentication"},
	}, s.handleSetupStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "setup",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/setup",
		Summary:     "Initial setup",
		Description: "Creates the first administrator. Only allowed while no account exists.",
		Tags:        []string{"Authentication"},
	}, s.handleSetup)

	huma.Register(s.api, huma.Operation{
		OperationID: "signIn",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/signin",
		Summary:     "Sign in",
		Description: "Authenticates with a username or email address and returns access and refresh tokens",
		Tags:        []string{"Authentication"},
	}, s.handleSignIn)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for a new token pair; the old refresh token stops working",
		Tags:        []string{"Authentication"},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "signOut",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/signout",
		Summary:     "Sign out",
		Description: "Ends the caller's session",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSignOut)

	huma.Register(s.api, huma.Operation{
		OperationID: "requestPasswordReset",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/password-reset/request",
		Summary:     "Request password reset",
		Description: "Emails a single-use reset link to the account's address",
		Tags:        []string{"Authentication"},
	}, s.handleRequestPasswordReset)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetPassword",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/password-reset",
		Summary:     "Reset password",
		Description: "Sets a new password using the token from the reset link",
		Tags:        []string{"Authentication"},
	}, s.handleResetPassword)
}

// === DTOs ===

// SetupStatusOutput reports whether setup is pending.
type SetupStatusOutput struct {
	Body struct {
		SetupRequired bool `json:"setup_required" doc:"True while no account exists"`
	}
}

// SetupRequest is the request body for initial setup.
type SetupRequest struct {
	Username  string `json:"username" minLength:"1" maxLength:"64" doc:"Administrator username"`
	Email     string `json:"email" format:"email" maxLength:"254" doc:"Administrator email address"`
	Password  string `json:"password" minLength:"8" maxLength:"1024" doc:"Administrator password"`
	FirstName string `json:"first_name" minLength:"1" maxLength:"100"`
	LastName  string `json:"last_name" minLength:"1" maxLength:"100"`
}

// SetupInput wraps the setup request for Huma.
type SetupInput struct {
	Body SetupRequest
}

// SignInRequest is the request body for sign-in.
type SignInRequest struct {
	Login    string `json:"login" minLength:"1" maxLength:"254" doc:"Username or email address"`
	Password string `json:"password" maxLength:"1024"`
}

// SignInInput wraps the sign-in request for Huma.
type SignInInput struct {
	Body SignInRequest
}

// RefreshInput carries the refresh token.
type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"`
	}
}

// AuthOutput returns a token pair and the signed-in user.
type AuthOutput struct {
	Body *service.AuthResponse
}

// PasswordResetRequestInput names the account to reset.
type PasswordResetRequestInput struct {
	Body struct {
		Email string `json:"email" maxLength:"254"`
	}
}

// ResetPasswordInput completes a reset.
type ResetPasswordInput struct {
	Body struct {
		UserID      int64  `json:"user_id" minimum:"1"`
		Token       string `json:"token" minLength:"1"`
		NewPassword string `json:"new_password" minLength:"8" maxLength:"1024"`
	}
}

// === Handlers ===

func (s *Server) handleSetupStatus(ctx context.Context, _ *struct{}) (*SetupStatusOutput, error) {
	required, err := s.services.Auth.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	out := &SetupStatusOutput{}
	out.Body.SetupRequired = required
	return out, nil
}

func (s *Server) handleSetup(ctx context.Context, input *SetupInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Setup(ctx, service.SetupRequest{
		Username:  input.Body.Username,
		Email:     input.Body.Email,
		Password:  input.Body.Password,
		FirstName: input.Body.FirstName,
		LastName:  input.Body.LastName,
	}, clientFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: resp}, nil
}

func (s *Server) handleSignIn(ctx context.Context, input *SignInInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.SignIn(ctx, service.SignInRequest{
		Login:    input.Body.Login,
		Password: input.Body.Password,
	}, clientFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: resp}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Refresh(ctx, input.Body.RefreshToken, clientFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: resp}, nil
}

func (s *Server) handleSignOut(ctx context.Context, _ *struct{}) (*struct{}, error) {
	actor, err := RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	return nil, s.services.Auth.SignOut(ctx, actor)
}

func (s *Server) handleRequestPasswordReset(ctx context.Context, input *PasswordResetRequestInput) (*struct{}, error) {
	return nil, s.services.Auth.RequestPasswordReset(ctx, input.Body.Email)
}

func (s *Server) handleResetPassword(ctx context.Context, input *ResetPasswordInput) (*struct{}, error) {
	return nil, s.services.Auth.ResetPassword(ctx, service.ResetPasswordRequest{
		UserID:      input.Body.UserID,
		Token:       input.Body.Token,
		NewPassword: input.Body.NewPassword,
	})
}
