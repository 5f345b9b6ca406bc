package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Get current user",
		Description: "Returns the profile of the token holder",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "changePassword",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/me/password",
		Summary:     "Change password",
		Description: "Changes the caller's password after verifying the old one",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleChangePassword)
}

func (s *Server) registerAdminUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users",
		Summary:     "List users",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeletedUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users/deleted",
		Summary:     "List deleted users",
		Description: "The user recycle bin",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDeletedUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkUserExists",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users/exists",
		Summary:     "Check username or email",
		Description: "Reports whether a username or email address is already taken",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUserExists)

	huma.Register(s.api, huma.Operation{
		OperationID:   "registerUser",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/users",
		Summary:       "Register user",
		Tags:          []string{"Admin", "Users"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleRegisterUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users/{id}",
		Summary:     "Get user",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateUser",
		Method:      http.MethodPut,
		Path:        "/api/v1/admin/users/{id}",
		Summary:     "Update user information",
		Description: "Blank profile fields keep their value; enabled and permissions always apply",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteUser",
		Method:      http.MethodDelete,
		Path:        "/api/v1/admin/users/{id}",
		Summary:     "Delete user",
		Description: "Soft-deletes the account and revokes its sessions",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/users/{id}/restore",
		Summary:     "Restore user",
		Tags:        []string{"Admin", "Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRestoreUser)
}

// === DTOs ===

// UserOutput is a single user.
type UserOutput struct {
	Body *domain.User
}

// UsersOutput lists users.
type UsersOutput struct {
	Body []*domain.User
}

// UserIDInput addresses a user.
type UserIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

// ChangePasswordInput changes the caller's password.
type ChangePasswordInput struct {
	Body struct {
		Username    string `json:"username" minLength:"1"`
		OldPassword string `json:"old_password" minLength:"1"`
		NewPassword string `json:"new_password" minLength:"8" maxLength:"1024"`
	}
}

// RegisterUserRequest creates an account.
type RegisterUserRequest struct {
	Username        string   `json:"username" minLength:"1" maxLength:"64"`
	Email           string   `json:"email" format:"email" maxLength:"254"`
	Password        string   `json:"password" minLength:"8" maxLength:"1024"`
	FirstName       string   `json:"first_name,omitempty" maxLength:"100"`
	LastName        string   `json:"last_name,omitempty" maxLength:"100"`
	PhoneNumber     string   `json:"phone_number,omitempty" maxLength:"32"`
	DefaultLanguage string   `json:"default_language,omitempty" maxLength:"16"`
	Permissions     []string `json:"permissions,omitempty" doc:"SYSTEM_ADMIN, CONTENT_CURATOR, TEACHER or SITE_USER"`
}

// RegisterUserInput wraps RegisterUserRequest.
type RegisterUserInput struct {
	Body RegisterUserRequest
}

// UpdateUserRequest replaces a user's profile.
type UpdateUserRequest struct {
	FirstName       string   `json:"first_name,omitempty" maxLength:"100"`
	LastName        string   `json:"last_name,omitempty" maxLength:"100"`
	PhoneNumber     string   `json:"phone_number,omitempty" maxLength:"32"`
	DefaultLanguage string   `json:"default_language,omitempty" maxLength:"16"`
	PhotoPath       string   `json:"photo_path,omitempty" maxLength:"2048"`
	Enabled         bool     `json:"enabled"`
	Permissions     []string `json:"permissions"`
}

// UpdateUserInput wraps UpdateUserRequest.
type UpdateUserInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body UpdateUserRequest
}

// UserExistsInput names what to look up.
type UserExistsInput struct {
	Username string `query:"username"`
	Email    string `query:"email"`
}

// UserExistsOutput reports taken names.
type UserExistsOutput struct {
	Body struct {
		UsernameTaken bool `json:"username_taken"`
		EmailTaken    bool `json:"email_taken"`
	}
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	u, err := s.services.Users.GetCurrentUser(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: u}, nil
}

func (s *Server) handleChangePassword(ctx context.Context, input *ChangePasswordInput) (*struct{}, error) {
	return nil, s.services.Users.ChangePassword(ctx, ActorFrom(ctx), service.ChangePasswordRequest{
		Username:    input.Body.Username,
		OldPassword: input.Body.OldPassword,
		NewPassword: input.Body.NewPassword,
	})
}

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*UsersOutput, error) {
	users, err := s.services.Users.ListUsers(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &UsersOutput{Body: users}, nil
}

func (s *Server) handleListDeletedUsers(ctx context.Context, _ *struct{}) (*UsersOutput, error) {
	users, err := s.services.Users.ListDeletedUsers(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &UsersOutput{Body: users}, nil
}

func (s *Server) handleUserExists(ctx context.Context, input *UserExistsInput) (*UserExistsOutput, error) {
	if !ActorFrom(ctx).IsAdmin() {
		return nil, domainerrors.Forbidden("system admin permission required")
	}
	if input.Username == "" && input.Email == "" {
		return nil, domainerrors.Validation("username or email is required")
	}

	out := &UserExistsOutput{}
	var err error
	if input.Username != "" {
		if out.Body.UsernameTaken, err = s.services.Users.UsernameExists(ctx, input.Username); err != nil {
			return nil, err
		}
	}
	if input.Email != "" {
		if out.Body.EmailTaken, err = s.services.Users.EmailExists(ctx, input.Email); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Server) handleRegisterUser(ctx context.Context, input *RegisterUserInput) (*UserOutput, error) {
	b := input.Body
	u, err := s.services.Users.RegisterUser(ctx, ActorFrom(ctx), service.RegisterUserRequest{
		Username:        b.Username,
		Email:           b.Email,
		Password:        b.Password,
		FirstName:       b.FirstName,
		LastName:        b.LastName,
		PhoneNumber:     b.PhoneNumber,
		DefaultLanguage: b.DefaultLanguage,
		Permissions:     b.Permissions,
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: u}, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *UserIDInput) (*UserOutput, error) {
	u, err := s.services.Users.GetUser(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: u}, nil
}

func (s *Server) handleUpdateUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	b := input.Body
	u, err := s.services.Users.UpdateUserInformation(ctx, ActorFrom(ctx), input.ID, service.UpdateUserRequest{
		FirstName:       b.FirstName,
		LastName:        b.LastName,
		PhoneNumber:     b.PhoneNumber,
		DefaultLanguage: b.DefaultLanguage,
		PhotoPath:       b.PhotoPath,
		Enabled:         b.Enabled,
		Permissions:     b.Permissions,
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: u}, nil
}

func (s *Server) handleDeleteUser(ctx context.Context, input *UserIDInput) (*struct{}, error) {
	return nil, s.services.Users.DeleteUser(ctx, ActorFrom(ctx), input.ID)
}

func (s *Server) handleRestoreUser(ctx context.Context, input *UserIDInput) (*UserOutput, error) {
	u, err := s.services.Users.RestoreUser(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: u}, nil
}
