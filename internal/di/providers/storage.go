package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/objectstore"
)

// ObjectStoreHandle holds the configured object store. Files is set for the
// local backend, which the API serves under /files.
type ObjectStoreHandle struct {
	objectstore.Store
	Files http.Handler
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *ObjectStoreHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideObjectStore provides the upload and report object store.
func ProvideObjectStore(i do.Injector) (*ObjectStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Storage.Backend {
	case config.StorageGCS:
		gcs, err := objectstore.NewGCS(context.Background(), objectstore.GCSConfig{
			Bucket:        cfg.Storage.GCSBucket,
			Credentials:   cfg.Storage.GCSCredentials,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs object store: %w", err)
		}
		log.Info("Object store ready", "backend", "gcs", "bucket", cfg.Storage.GCSBucket)
		return &ObjectStoreHandle{Store: gcs, close: gcs.Close}, nil

	default:
		local, err := objectstore.NewLocal(cfg.Storage.LocalPath, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("local object store: %w", err)
		}
		log.Info("Object store ready", "backend", "local", "path", cfg.Storage.LocalPath, "public_url", cfg.Storage.PublicBaseURL)
		return &ObjectStoreHandle{
			Store: local,
			Files: http.FileServer(http.Dir(cfg.Storage.LocalPath)),
		}, nil
	}
}

// ProvideMailer provides the notification mailer.
func ProvideMailer(i do.Injector) (mail.Mailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Mail.Backend != config.MailSendGrid {
		log.Info("Mail is logged, not delivered")
		return mail.NewLogMailer(log.Logger), nil
	}
	return mail.NewSendGrid(mail.SendGridConfig{
		APIKey:    cfg.Mail.APIKey,
		BaseURL:   cfg.Mail.BaseURL,
		FromEmail: cfg.Mail.FromEmail,
		FromName:  cfg.Mail.FromName,
	}, log.Logger)
}
