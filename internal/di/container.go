// Package di wires the asylum stories server with samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/api"
	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/di/providers"
	"github.com/asylumproject/asylum-server/internal/logger"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/service"
	"github.com/asylumproject/asylum-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideValidator)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideReferenceData)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideObjectStore)
	do.Provide(injector, providers.ProvideMailer)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideSessionService)

	// Business services
	do.Provide(injector, providers.ProvideEventService)
	do.Provide(injector, providers.ProvideSynchronizer)
	do.Provide(injector, providers.ProvideContentService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideUploadService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideSharingService)
	do.Provide(injector, providers.ProvideReferenceService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideReportService)
	do.Provide(injector, providers.ProvideBackupService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideServices)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes every service, which starts the workers and the
// HTTP listener.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ReferenceData](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ObjectStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[mail.Mailer](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*auth.TokenService](injector)

	_ = do.MustInvoke[*api.Services](injector)
	_ = do.MustInvoke[*service.SessionService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
