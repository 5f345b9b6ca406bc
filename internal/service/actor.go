package service

import (
	"errors"
	"fmt"
	"slices"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/store"
)

// Actor is the authenticated caller a service acts for. Handlers resolve it
// from the bearer token; services never see the token itself.
type Actor struct {
	UserID      int64
	Username    string
	SessionID   string
	Permissions []domain.Permission
}

// ActorFromClaims builds an Actor from verified token claims.
func ActorFromClaims(c *auth.AccessClaims) *Actor {
	return &Actor{
		UserID:      c.UserID,
		Username:    c.Username,
		SessionID:   c.SessionID,
		Permissions: c.Permissions,
	}
}

// Has reports whether the actor holds p. A nil actor holds nothing.
func (a *Actor) Has(p domain.Permission) bool {
	return a != nil && slices.Contains(a.Permissions, p)
}

// IsAdmin reports whether the actor is a system administrator.
func (a *Actor) IsAdmin() bool { return a.Has(domain.PermSystemAdmin) }

// CanCurate reports whether the actor may mutate content.
func (a *Actor) CanCurate() bool {
	return a.IsAdmin() || a.Has(domain.PermContentCurator)
}

func requireCurator(a *Actor) error {
	if a == nil {
		return domainerrors.Unauthorized("authentication required")
	}
	if !a.CanCurate() {
		return domainerrors.Forbidden("content curator permission required")
	}
	return nil
}

func requireAdmin(a *Actor) error {
	if a == nil {
		return domainerrors.Unauthorized("authentication required")
	}
	if !a.IsAdmin() {
		return domainerrors.Forbidden("system admin permission required")
	}
	return nil
}

// storeErr converts store sentinels into domain errors; other errors are
// wrapped with op for the log.
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	var se *store.Error
	if errors.As(err, &se) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domainerrors.NotFound(se.Message).WithCause(err)
		case errors.Is(err, store.ErrAlreadyExists):
			return domainerrors.AlreadyExists(se.Message).WithCause(err)
		case errors.Is(err, store.ErrInvalidInput):
			return domainerrors.Validation(se.Message).WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
