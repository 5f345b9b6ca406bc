package seed

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/domain"
)

type memTarget struct {
	languages map[string]string
	countries map[string]string
}

func newMemTarget() *memTarget {
	return &memTarget{languages: map[string]string{}, countries: map[string]string{}}
}

func (m *memTarget) UpsertLanguage(_ context.Context, l domain.Language) error {
	m.languages[l.Code] = l.Name
	return nil
}

func (m *memTarget) UpsertCountry(_ context.Context, c domain.Country) error {
	m.countries[c.Code] = c.Name
	return nil
}

func TestDefault(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, d.Languages)
	assert.NotEmpty(t, d.Countries)
}

func TestParse(t *testing.T) {
	d, err := Parse([]byte("languages:\n  - {code: ' EN ', name: English}\n"))
	require.NoError(t, err)
	assert.Equal(t, "en", d.Languages[0].Code)

	_, err = Parse([]byte("countries:\n  - {code: '', name: Nowhere}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("languages: [this is: not valid"))
	assert.Error(t, err)
}

func TestLoad_OverrideAndIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("languages:\n  - {code: en, name: English (UK)}\n  - {code: xx, name: Test}\n"), 0o600))

	target := newMemTarget()
	logger := slog.New(slog.DiscardHandler)

	require.NoError(t, Load(context.Background(), target, path, logger))
	n := len(target.languages)
	require.NoError(t, Load(context.Background(), target, path, logger))

	assert.Equal(t, n, len(target.languages))
	assert.Equal(t, "English (UK)", target.languages["en"])
	assert.Equal(t, "Test", target.languages["xx"])
	assert.Equal(t, "Syria", target.countries["sy"])
}

func TestLoad_MissingOverride(t *testing.T) {
	err := Load(context.Background(), newMemTarget(), "/does/not/exist.yaml", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
