package providers

import (
	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/backup"
	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/media"
	"github.com/asylumproject/asylum-server/internal/service"
	"github.com/asylumproject/asylum-server/internal/validation"
)

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideEventService provides the audit event log.
func ProvideEventService(i do.Injector) (*service.EventService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewEventService(storeHandle.Store, log.Logger), nil
}

// ProvideSynchronizer provides the story aggregate synchronizer.
func ProvideSynchronizer(i do.Injector) (*service.Synchronizer, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSynchronizer(storeHandle.Store, log.Logger), nil
}

// ProvideContentService provides the story, map point and element service.
func ProvideContentService(i do.Injector) (*service.ContentService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sync := do.MustInvoke[*service.Synchronizer](i)
	events := do.MustInvoke[*service.EventService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewContentService(storeHandle.Store, sync, events, indexHandle.Index, validator, log.Logger), nil
}

// ProvideUploadService provides element file uploads.
func ProvideUploadService(i do.Injector) (*service.UploadService, error) {
	content := do.MustInvoke[*service.ContentService](i)
	objects := do.MustInvoke[*ObjectStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUploadService(content, objects.Store, media.NewProber(log.Logger), log.Logger), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	events := do.MustInvoke[*service.EventService](i)
	content := do.MustInvoke[*service.ContentService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, events, content, log.Logger), nil
}

// ProvideSharingService provides share links.
func ProvideSharingService(i do.Injector) (*service.SharingService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSharingService(storeHandle.Store, cfg.Share.BaseURL, log.Logger), nil
}

// ProvideReferenceService provides languages and countries.
func ProvideReferenceService(i do.Injector) (*service.ReferenceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	_ = do.MustInvoke[*ReferenceData](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReferenceService(storeHandle.Store, log.Logger), nil
}

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	events := do.MustInvoke[*service.EventService](i)
	mailer := do.MustInvoke[mail.Mailer](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, sessions, events, mailer, validator, cfg.Share.BaseURL, log.Logger), nil
}

// ProvideUserService provides user administration.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	events := do.MustInvoke[*service.EventService](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, sessions, events, validator, log.Logger), nil
}

// ProvideReportService provides reports and workbook exports.
func ProvideReportService(i do.Injector) (*service.ReportService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	objects := do.MustInvoke[*ObjectStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReportService(storeHandle.Store, objects.Store, log.Logger), nil
}

// ProvideBackupService provides backup and restore.
func ProvideBackupService(i do.Injector) (*service.BackupService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	events := do.MustInvoke[*service.EventService](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	mailer := do.MustInvoke[mail.Mailer](i)
	log := do.MustInvoke[*logger.Logger](i)

	archives := backup.NewService(storeHandle.Store, cfg.Data.BackupPath(), Version, log.Logger)
	return service.NewBackupService(archives, storeHandle.Store, events, searchService, mailer, cfg.Server.PublicURL, log.Logger), nil
}
