package backup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"encoding/json/v2"

	"github.com/klauspost/compress/zip"

	"github.com/asylumproject/asylum-server/internal/backup/stream"
	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// Restore imports a backup. Full mode clears content first; merge mode only
// adds rows missing locally. Writes run in one transaction, so a fatal
// error leaves the database untouched.
func (s *Service) Restore(ctx context.Context, backupID string, opts RestoreOptions) (*RestoreResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown restore mode %q", opts.Mode)
	}
	info, err := s.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.logger.Info("starting restore", "id", backupID, "mode", opts.Mode, "dry_run", opts.DryRun)

	zr, err := zip.OpenReader(info.Path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close() //nolint:errcheck // read only

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrVersionMismatch, manifest.Version, FormatVersion)
	}

	result := &RestoreResult{
		Mode:     opts.Mode,
		DryRun:   opts.DryRun,
		Imported: make(map[string]int),
		Skipped:  make(map[string]int),
	}
	r := &restorer{store: s.store, zr: &zr.Reader, opts: opts, result: result}

	run := func(ctx context.Context) error {
		if opts.Mode == RestoreModeFull && !opts.DryRun {
			if err := s.store.ClearContent(ctx); err != nil {
				return fmt.Errorf("clear content: %w", err)
			}
		}
		return r.run(ctx)
	}
	if opts.DryRun {
		err = run(ctx)
	} else {
		err = s.store.WithinTx(ctx, run)
	}
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	s.logger.Info("restore complete",
		"id", backupID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
		"duration", result.Duration)
	return result, nil
}

// Validate checks a backup's manifest and entity files without importing.
func (s *Service) Validate(ctx context.Context, backupID string) (*ValidationResult, error) {
	info, err := s.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(info.Path)
	if err != nil {
		return &ValidationResult{Errors: []string{fmt.Sprintf("failed to open backup: %v", err)}}, nil
	}
	defer zr.Close() //nolint:errcheck // read only

	result := &ValidationResult{Valid: true}
	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	result.Manifest = manifest

	if manifest.Version != FormatVersion {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("unsupported version %s (want %s)", manifest.Version, FormatVersion))
	}

	for _, name := range []string{fileLanguages, fileCountries, fileUsers, fileTags, fileStories, fileEvents, fileShortURLs} {
		rc, err := stream.OpenFile(&zr.Reader, name)
		if err != nil {
			result.Warnings = append(result.Warnings, "missing file: "+name)
			continue
		}
		_ = rc.Close()
	}
	return result, nil
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	rc, err := stream.OpenFile(zr, manifestName)
	if err != nil {
		return nil, ErrInvalidManifest
	}
	defer rc.Close() //nolint:errcheck // read only

	var m Manifest
	if err := json.UnmarshalRead(rc, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &m, nil
}

type restorer struct {
	store  store.Store
	zr     *zip.Reader
	opts   RestoreOptions
	result *RestoreResult
}

func (r *restorer) mode() store.ImportMode {
	if r.opts.Mode == RestoreModeMerge {
		return store.ImportKeepExisting
	}
	return store.ImportReplace
}

// run imports every entity file in dependency order.
func (r *restorer) run(ctx context.Context) error {
	steps := []func(context.Context) error{
		r.languages, r.countries, r.users, r.tags, r.stories, r.events, r.shortURLs,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// restoreFile streams one entity file through write. Parse and write
// failures are recorded per record; only an unreadable archive aborts.
func restoreFile[T any](ctx context.Context, r *restorer, name, entity string,
	key func(T) string, write func(context.Context, T) (bool, error),
) error {
	rc, err := stream.OpenFile(r.zr, name)
	if errors.Is(err, stream.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	for v, err := range stream.NewReader[T](rc).All() {
		if err != nil {
			r.fail(entity, "", err)
			continue
		}
		if r.opts.DryRun {
			r.result.Imported[entity]++
			continue
		}
		written, err := write(ctx, v)
		switch {
		case err != nil:
			r.fail(entity, key(v), err)
		case written:
			r.result.Imported[entity]++
		default:
			r.result.Skipped[entity]++
		}
	}
	return ctx.Err()
}

func (r *restorer) fail(entity, id string, err error) {
	r.result.Errors = append(r.result.Errors, RestoreError{EntityType: entity, EntityID: id, Error: err.Error()})
}

func int64Key(id int64) string { return strconv.FormatInt(id, 10) }

func (r *restorer) languages(ctx context.Context) error {
	return restoreFile(ctx, r, fileLanguages, "languages",
		func(l domain.Language) string { return l.Code },
		func(ctx context.Context, l domain.Language) (bool, error) {
			if r.mode() == store.ImportKeepExisting {
				if _, err := r.store.GetLanguage(ctx, l.Code); err == nil {
					return false, nil
				}
			}
			return true, r.store.UpsertLanguage(ctx, l)
		})
}

func (r *restorer) countries(ctx context.Context) error {
	return restoreFile(ctx, r, fileCountries, "countries",
		func(c domain.Country) string { return c.Code },
		func(ctx context.Context, c domain.Country) (bool, error) {
			if r.mode() == store.ImportKeepExisting {
				if _, err := r.store.GetCountry(ctx, c.Code); err == nil {
					return false, nil
				}
			}
			return true, r.store.UpsertCountry(ctx, c)
		})
}

func (r *restorer) users(ctx context.Context) error {
	return restoreFile(ctx, r, fileUsers, "users",
		func(rec userRecord) string {
			if rec.User == nil {
				return ""
			}
			return int64Key(rec.User.ID)
		},
		func(ctx context.Context, rec userRecord) (bool, error) {
			if rec.User == nil {
				return false, errors.New("empty user record")
			}
			rec.User.PasswordHash = rec.PasswordHash
			return r.store.ImportUser(ctx, rec.User, r.mode())
		})
}

func (r *restorer) tags(ctx context.Context) error {
	return restoreFile(ctx, r, fileTags, "tags",
		func(t *domain.Tag) string { return int64Key(t.ID) },
		func(ctx context.Context, t *domain.Tag) (bool, error) {
			return r.store.ImportTag(ctx, t, r.mode())
		})
}

func (r *restorer) stories(ctx context.Context) error {
	return restoreFile(ctx, r, fileStories, "stories",
		func(st *domain.Story) string { return int64Key(st.ID) },
		func(ctx context.Context, st *domain.Story) (bool, error) {
			return r.store.ImportStory(ctx, st, r.mode())
		})
}

func (r *restorer) events(ctx context.Context) error {
	return restoreFile(ctx, r, fileEvents, "events",
		func(e *domain.Event) string { return int64Key(e.ID) },
		func(ctx context.Context, e *domain.Event) (bool, error) {
			return r.store.ImportEvent(ctx, e, r.mode())
		})
}

func (r *restorer) shortURLs(ctx context.Context) error {
	return restoreFile(ctx, r, fileShortURLs, "short_urls",
		func(u *domain.ShortURL) string { return u.Token },
		func(ctx context.Context, u *domain.ShortURL) (bool, error) {
			return r.store.ImportShortURL(ctx, u, r.mode())
		})
}
