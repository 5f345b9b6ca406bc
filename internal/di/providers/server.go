package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/api"
	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
	"github.com/asylumproject/asylum-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideServices collects the services the handlers call.
func ProvideServices(i do.Injector) (*api.Services, error) {
	return &api.Services{
		Auth:      do.MustInvoke[*service.AuthService](i),
		Users:     do.MustInvoke[*service.UserService](i),
		Content:   do.MustInvoke[*service.ContentService](i),
		Uploads:   do.MustInvoke[*service.UploadService](i),
		Tags:      do.MustInvoke[*service.TagService](i),
		Sharing:   do.MustInvoke[*service.SharingService](i),
		Search:    do.MustInvoke[*service.SearchService](i),
		Reference: do.MustInvoke[*service.ReferenceService](i),
		Events:    do.MustInvoke[*service.EventService](i),
		Reports:   do.MustInvoke[*service.ReportService](i),
		Backups:   do.MustInvoke[*service.BackupService](i),
	}, nil
}

// ProvideHTTPServer builds the API and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	objects := do.MustInvoke[*ObjectStoreHandle](i)
	services := do.MustInvoke[*api.Services](i)
	log := do.MustInvoke[*logger.Logger](i)

	handler := api.NewServer(storeHandle.Store, services, api.Options{
		Version:        Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Files:          objects.Files,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr, "public_url", cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
