package providers

import (
	"encoding/hex"

	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
)

// AuthKey wraps the PASETO key bytes.
type AuthKey []byte

// ProvideAuthKey loads auth.key from the key directory, creating it on first
// start.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Auth.KeyDir)
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
		"refresh_token_duration", cfg.Auth.RefreshTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(hex.EncodeToString(authKey), cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
}
