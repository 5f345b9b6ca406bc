// Package seed loads the language and country registries.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/asylumproject/asylum-server/internal/domain"
)

//go:embed seed.yaml
var defaultSeed []byte

// Data is the content of a seed file.
type Data struct {
	Languages []domain.Language `yaml:"languages"`
	Countries []domain.Country  `yaml:"countries"`
}

// Target receives seeded rows. The sqlite store implements it.
type Target interface {
	UpsertLanguage(ctx context.Context, l domain.Language) error
	UpsertCountry(ctx context.Context, c domain.Country) error
}

// Parse decodes a seed document, normalizing codes and rejecting blank ones.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i := range d.Languages {
		d.Languages[i].Code = domain.NormalizeCode(d.Languages[i].Code)
		if d.Languages[i].Code == "" {
			return nil, fmt.Errorf("seed language %d: code is required", i)
		}
	}
	for i := range d.Countries {
		d.Countries[i].Code = domain.NormalizeCode(d.Countries[i].Code)
		if d.Countries[i].Code == "" {
			return nil, fmt.Errorf("seed country %d: code is required", i)
		}
	}
	return &d, nil
}

// Default returns the embedded seed.
func Default() (*Data, error) {
	return Parse(defaultSeed)
}

// Load applies the embedded seed and then overridePath, if set. Rows are
// upserted, so running it on every start is safe.
func Load(ctx context.Context, t Target, overridePath string, logger *slog.Logger) error {
	d, err := Default()
	if err != nil {
		return err
	}
	if err := Apply(ctx, t, d); err != nil {
		return err
	}

	if overridePath != "" {
		raw, err := os.ReadFile(overridePath)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		extra, err := Parse(raw)
		if err != nil {
			return err
		}
		if err := Apply(ctx, t, extra); err != nil {
			return err
		}
		d.Languages = append(d.Languages, extra.Languages...)
		d.Countries = append(d.Countries, extra.Countries...)
	}

	logger.Info("reference data seeded",
		"languages", len(d.Languages),
		"countries", len(d.Countries),
		"override", overridePath,
	)
	return nil
}

// Apply upserts every row of d.
func Apply(ctx context.Context, t Target, d *Data) error {
	for _, l := range d.Languages {
		if err := t.UpsertLanguage(ctx, l); err != nil {
			return fmt.Errorf("seed language %s: %w", l.Code, err)
		}
	}
	for _, c := range d.Countries {
		if err := t.UpsertCountry(ctx, c); err != nil {
			return fmt.Errorf("seed country %s: %w", c.Code, err)
		}
	}
	return nil
}
