package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/domain"
)

func (s *Server) registerReferenceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLanguages",
		Method:      http.MethodGet,
		Path:        "/api/v1/languages",
		Summary:     "List languages",
		Tags:        []string{"Reference"},
	}, s.handleListLanguages)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLanguage",
		Method:      http.MethodGet,
		Path:        "/api/v1/languages/{code}",
		Summary:     "Get language",
		Tags:        []string{"Reference"},
	}, s.handleGetLanguage)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCountries",
		Method:      http.MethodGet,
		Path:        "/api/v1/countries",
		Summary:     "List countries",
		Tags:        []string{"Reference"},
	}, s.handleListCountries)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCountry",
		Method:      http.MethodGet,
		Path:        "/api/v1/countries/{code}",
		Summary:     "Get country",
		Tags:        []string{"Reference"},
	}, s.handleGetCountry)
}

// CodeInput addresses a language or country by code.
type CodeInput struct {
	Code string `path:"code" maxLength:"16" doc:"ISO code, case-insensitive"`
}

// LanguagesOutput lists languages.
type LanguagesOutput struct {
	Body []domain.Language
}

// LanguageOutput is one language.
type LanguageOutput struct {
	Body *domain.Language
}

// CountriesOutput lists countries.
type CountriesOutput struct {
	Body []domain.Country
}

// CountryOutput is one country.
type CountryOutput struct {
	Body *domain.Country
}

func (s *Server) handleListLanguages(ctx context.Context, _ *struct{}) (*LanguagesOutput, error) {
	langs, err := s.services.Reference.ListLanguages(ctx)
	if err != nil {
		return nil, err
	}
	return &LanguagesOutput{Body: langs}, nil
}

func (s *Server) handleGetLanguage(ctx context.Context, input *CodeInput) (*LanguageOutput, error) {
	l, err := s.services.Reference.GetLanguageByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	return &LanguageOutput{Body: l}, nil
}

func (s *Server) handleListCountries(ctx context.Context, _ *struct{}) (*CountriesOutput, error) {
	countries, err := s.services.Reference.ListCountries(ctx)
	if err != nil {
		return nil, err
	}
	return &CountriesOutput{Body: countries}, nil
}

func (s *Server) handleGetCountry(ctx context.Context, input *CodeInput) (*CountryOutput, error) {
	c, err := s.services.Reference.GetCountryByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	return &CountryOutput{Body: c}, nil
}
