package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/store"
)

// ReferenceService serves the language and country registries.
type ReferenceService struct {
	store  store.Store
	logger *slog.Logger
}

// NewReferenceService creates a reference data service.
func NewReferenceService(store store.Store, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{store: store, logger: logger}
}

// GetLanguageByCode looks up a language; codes match case-insensitively.
func (s *ReferenceService) GetLanguageByCode(ctx context.Context, code string) (*domain.Language, error) {
	l, err := s.store.GetLanguage(ctx, domain.NormalizeCode(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("language %q not found", code)
	}
	return l, storeErr(err, "get language")
}

// ListLanguages returns every language ordered by name.
func (s *ReferenceService) ListLanguages(ctx context.Context) ([]domain.Language, error) {
	langs, err := s.store.ListLanguages(ctx)
	return langs, storeErr(err, "list languages")
}

// GetCountryByCode looks up a country; codes match case-insensitively.
func (s *ReferenceService) GetCountryByCode(ctx context.Context, code string) (*domain.Country, error) {
	c, err := s.store.GetCountry(ctx, domain.NormalizeCode(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("country %q not found", code)
	}
	return c, storeErr(err, "get country")
}

// ListCountries returns every country ordered by name.
func (s *ReferenceService) ListCountries(ctx context.Context) ([]domain.Country, error) {
	countries, err := s.store.ListCountries(ctx)
	return countries, storeErr(err, "list countries")
}
