package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/ratelimit"
	"github.com/asylumproject/asylum-server/internal/service"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	clientKey
)

// ActorFrom returns the authenticated caller, or nil for anonymous requests.
func ActorFrom(ctx context.Context) *service.Actor {
	a, _ := ctx.Value(actorKey).(*service.Actor)
	return a
}

// RequireActor returns the caller or a 401.
func RequireActor(ctx context.Context) (*service.Actor, error) {
	a := ActorFrom(ctx)
	if a == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	return a, nil
}

func clientFrom(ctx context.Context) auth.ClientInfo {
	c, _ := ctx.Value(clientKey).(auth.ClientInfo)
	return c
}

// authMiddleware resolves a bearer token into an Actor stored on the request
// context. Missing or invalid tokens leave the request anonymous; services
// decide whether that is allowed.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientKey, auth.ClientInfo{
				IPAddress: ratelimit.ClientIP(r),
				UserAgent: r.UserAgent(),
			})

			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				if actor, err := authService.VerifyAccessToken(ctx, token); err == nil {
					ctx = context.WithValue(ctx, actorKey, actor)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
