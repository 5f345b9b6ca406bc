// Package providers contains dependency injection providers for the asylum
// stories server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting asylum stories server",
		"environment", cfg.App.Environment,
		"log_level", cfg.App.LogLevel,
		"data_path", cfg.Data.BasePath,
		"storage", cfg.Storage.Backend,
		"mail", cfg.Mail.Backend,
	)

	return log, nil
}
