package backup

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"encoding/json/v2"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/asylumproject/asylum-server/internal/backup/stream"
	"github.com/asylumproject/asylum-server/internal/domain"
)

// userRecord carries the password hash the public user JSON omits.
type userRecord struct {
	User         *domain.User `json:"user"`
	PasswordHash string       `json:"password_hash"`
}

// export writes the archive to a temp file, then renames it into place.
// It returns the blake3 checksum of the finished archive.
func (s *Service) export(ctx context.Context, path string, manifest *Manifest) (string, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath) //nolint:errcheck // gone after rename
	defer f.Close()          //nolint:errcheck // closed explicitly on success

	hash := blake3.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	counts := &manifest.Counts
	steps := []struct {
		name string
		fn   func(context.Context, *zip.Writer, *EntityCounts) error
	}{
		{"languages", s.exportLanguages},
		{"countries", s.exportCountries},
		{"users", s.exportUsers},
		{"tags", s.exportTags},
		{"stories", s.exportStories},
		{"events", s.exportEvents},
		{"short_urls", s.exportShortURLs},
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err := step.fn(ctx, zw, counts); err != nil {
			return "", fmt.Errorf("export %s: %w", step.name, err)
		}
	}

	// Written last so it carries the final counts.
	w, err := zw.Create(manifestName)
	if err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := json.MarshalWrite(w, manifest); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close zip: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("rename backup: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func (s *Service) exportLanguages(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileLanguages)
	if err != nil {
		return err
	}
	langs, err := s.store.ListLanguages(ctx)
	if err != nil {
		return err
	}
	for _, l := range langs {
		if err := w.Write(l); err != nil {
			return err
		}
	}
	counts.Languages = w.Count()
	return nil
}

func (s *Service) exportCountries(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileCountries)
	if err != nil {
		return err
	}
	countries, err := s.store.ListCountries(ctx)
	if err != nil {
		return err
	}
	for _, c := range countries {
		if err := w.Write(c); err != nil {
			return err
		}
	}
	counts.Countries = w.Count()
	return nil
}

func (s *Service) exportUsers(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileUsers)
	if err != nil {
		return err
	}
	for u, err := range s.store.StreamUsers(ctx) {
		if err != nil {
			return err
		}
		if err := w.Write(userRecord{User: u, PasswordHash: u.PasswordHash}); err != nil {
			return err
		}
	}
	counts.Users = w.Count()
	return nil
}

func (s *Service) exportTags(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileTags)
	if err != nil {
		return err
	}
	for t, err := range s.store.StreamTags(ctx) {
		if err != nil {
			return err
		}
		if err := w.Write(t); err != nil {
			return err
		}
	}
	counts.Tags = w.Count()
	return nil
}

func (s *Service) exportStories(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileStories)
	if err != nil {
		return err
	}
	for st, err := range s.store.StreamStories(ctx) {
		if err != nil {
			return err
		}
		if err := w.Write(st); err != nil {
			return err
		}
		counts.MapPoints += len(st.MapPoints)
		for _, mp := range st.MapPoints {
			counts.Elements += len(mp.Elements)
		}
	}
	counts.Stories = w.Count()
	return nil
}

func (s *Service) exportEvents(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileEvents)
	if err != nil {
		return err
	}
	for e, err := range s.store.StreamEvents(ctx) {
		if err != nil {
			return err
		}
		if err := w.Write(e); err != nil {
			return err
		}
	}
	counts.Events = w.Count()
	return nil
}

func (s *Service) exportShortURLs(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	w, err := stream.NewWriter(zw, fileShortURLs)
	if err != nil {
		return err
	}
	for u, err := range s.store.StreamShortURLs(ctx) {
		if err != nil {
			return err
		}
		if err := w.Write(u); err != nil {
			return err
		}
	}
	counts.ShortURLs = w.Count()
	return nil
}
