package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
	"github.com/asylumproject/asylum-server/internal/seed"
	"github.com/asylumproject/asylum-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the SQLite database and applies migrations.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Data.DatabasePath()
	db, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ReferenceData marks the language and country tables as seeded.
type ReferenceData struct{}

// ProvideReferenceData upserts the built-in languages and countries plus
// the optional override file.
func ProvideReferenceData(i do.Injector) (*ReferenceData, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	if err := seed.Load(context.Background(), storeHandle.Store, cfg.Seed.File, log.Logger); err != nil {
		return nil, err
	}
	return &ReferenceData{}, nil
}
