package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/asylumproject/asylum-server/internal/id"
	"github.com/asylumproject/asylum-server/internal/store"
)

const (
	archiveExt  = ".asylum.zip"
	checksumExt = ".blake3"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validID(id string) bool {
	return idPattern.MatchString(id)
}

// Service manages the backup directory: creating, listing and restoring archives.
type Service struct {
	store   store.Store
	dir     string
	version string
	logger  *slog.Logger
}

// NewService creates a Service writing archives to dir.
func NewService(s store.Store, dir, version string, logger *slog.Logger) *Service {
	return &Service{store: s, dir: dir, version: version, logger: logger}
}

// Create writes a new archive. The file appears under its final name only
// once complete.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*Result, error) {
	start := time.Now()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	backupID, err := id.Generate("backup-" + start.UTC().Format("20060102-150405"))
	if err != nil {
		return nil, err
	}
	path := s.Path(backupID)

	s.logger.Info("creating backup", "id", backupID, "created_by", opts.CreatedBy)

	manifest := &Manifest{
		Version:       FormatVersion,
		CreatedAt:     start.UTC(),
		CreatedBy:     opts.CreatedBy,
		ServerVersion: s.version,
	}
	checksum, err := s.export(ctx, path, manifest)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.checksumPath(backupID), []byte(checksum), 0o644); err != nil {
		s.logger.Warn("failed to write backup checksum", "id", backupID, "error", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	res := &Result{
		Info: Info{
			ID:        backupID,
			Path:      path,
			Size:      info.Size(),
			Checksum:  checksum,
			CreatedAt: info.ModTime(),
		},
		Counts:   manifest.Counts,
		Duration: time.Since(start),
	}
	s.logger.Info("backup complete",
		"id", backupID,
		"size", res.Size,
		"duration", res.Duration,
		"checksum", checksum)
	return res, nil
}

// List returns all available backups, newest first.
func (s *Service) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, err
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backupID := strings.TrimSuffix(entry.Name(), archiveExt)
		backups = append(backups, s.info(backupID, fi))
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Get returns a backup by ID.
func (s *Service) Get(_ context.Context, backupID string) (*Info, error) {
	if !validID(backupID) {
		return nil, ErrInvalidID
	}
	fi, err := os.Stat(s.Path(backupID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}
	info := s.info(backupID, fi)
	return &info, nil
}

// Delete removes a backup and its checksum.
func (s *Service) Delete(ctx context.Context, backupID string) error {
	if _, err := s.Get(ctx, backupID); err != nil {
		return err
	}
	if err := os.Remove(s.Path(backupID)); err != nil {
		return err
	}
	if err := os.Remove(s.checksumPath(backupID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove backup checksum", "id", backupID, "error", err)
	}
	return nil
}

// Path returns the file path for a backup ID.
func (s *Service) Path(backupID string) string {
	return filepath.Join(s.dir, backupID+archiveExt)
}

func (s *Service) checksumPath(backupID string) string {
	return filepath.Join(s.dir, backupID+checksumExt)
}

func (s *Service) info(backupID string, fi fs.FileInfo) Info {
	info := Info{
		ID:        backupID,
		Path:      s.Path(backupID),
		Size:      fi.Size(),
		CreatedAt: fi.ModTime(),
	}
	if sum, err := os.ReadFile(s.checksumPath(backupID)); err == nil {
		info.Checksum = strings.TrimSpace(string(sum))
	}
	return info
}
