package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/asylumproject/asylum-server/internal/backup"
	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/store"
)

// BackupService exposes archive management to administrators.
type BackupService struct {
	backups    *backup.Service
	store      store.Store
	events     *EventService
	search     *SearchService
	mailer     mail.Mailer
	apiBaseURL string
	logger     *slog.Logger
}

// NewBackupService creates a new backup service.
func NewBackupService(
	backups *backup.Service,
	store store.Store,
	events *EventService,
	search *SearchService,
	mailer mail.Mailer,
	apiBaseURL string,
	logger *slog.Logger,
) *BackupService {
	return &BackupService{
		backups:    backups,
		store:      store,
		events:     events,
		search:     search,
		mailer:     mailer,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		logger:     logger,
	}
}

// BackupCreated is the outcome of CreateBackup.
type BackupCreated struct {
	ID       string              `json:"id"`
	Link     string              `json:"link"`
	SendMail bool                `json:"send_mail"`
	Checksum string              `json:"checksum"`
	Size     int64               `json:"size"`
	Counts   backup.EntityCounts `json:"counts"`
}

// RestoreRequest selects how a backup is restored.
type RestoreRequest struct {
	Mode   string `json:"mode"` // full or merge
	DryRun bool   `json:"dry_run"`
}

// CreateBackup writes a new archive. With sendMail the acting admin is
// emailed the download link; a failed email does not fail the backup.
func (s *BackupService) CreateBackup(ctx context.Context, actor *Actor, sendMail bool) (*BackupCreated, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	res, err := s.backups.Create(ctx, backup.CreateOptions{CreatedBy: actor.Username})
	if err != nil {
		s.logger.Error("backup failed", "error", err)
		return nil, domainerrors.ExternalService("backup failed", err)
	}

	out := &BackupCreated{
		ID:       res.ID,
		Link:     s.downloadLink(res.ID),
		SendMail: sendMail,
		Checksum: res.Checksum,
		Size:     res.Size,
		Counts:   res.Counts,
	}
	if err := s.events.Record(ctx, actor, domain.OpCreated, domain.ItemBackup, 0, res.ID, ""); err != nil {
		s.logger.Warn("failed to record backup event", "id", res.ID, "error", err)
	}

	if sendMail {
		s.mailLink(ctx, actor, out)
	}
	return out, nil
}

func (s *BackupService) mailLink(ctx context.Context, actor *Actor, b *BackupCreated) {
	user, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		s.logger.Warn("backup mail skipped, user lookup failed", "user_id", actor.UserID, "error", err)
		return
	}
	msg := mail.Message{
		To:      user.Email,
		Subject: "Your backup is ready",
		Body: fmt.Sprintf("Hello %s,\n\nBackup %s is ready (%d bytes, blake3 %s).\n\nDownload it here:\n\n%s\n",
			user.FullName(), b.ID, b.Size, b.Checksum, b.Link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send backup email", "id", b.ID, "error", err)
	}
}

func (s *BackupService) downloadLink(id string) string {
	return s.apiBaseURL + "/api/v1/admin/backups/" + url.PathEscape(id) + "/download"
}

// ListBackups returns every archive, newest first.
func (s *BackupService) ListBackups(ctx context.Context, actor *Actor) ([]backup.Info, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.backups.List(ctx)
	if err != nil {
		return nil, backupErr(err, "list backups")
	}
	return list, nil
}

// GetBackup returns one archive's metadata.
func (s *BackupService) GetBackup(ctx context.Context, actor *Actor, id string) (*backup.Info, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	info, err := s.backups.Get(ctx, id)
	if err != nil {
		return nil, backupErr(err, "get backup")
	}
	return info, nil
}

// DeleteBackup removes an archive.
func (s *BackupService) DeleteBackup(ctx context.Context, actor *Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.backups.Delete(ctx, id); err != nil {
		return backupErr(err, "delete backup")
	}
	if err := s.events.Record(ctx, actor, domain.OpDeleted, domain.ItemBackup, 0, id, ""); err != nil {
		s.logger.Warn("failed to record backup event", "id", id, "error", err)
	}
	return nil
}

// OpenBackup opens the raw archive for download. The caller closes it.
func (s *BackupService) OpenBackup(ctx context.Context, actor *Actor, id string) (io.ReadCloser, *backup.Info, error) {
	info, err := s.GetBackup(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(info.Path)
	if err != nil {
		return nil, nil, backupErr(err, "open backup")
	}
	return f, info, nil
}

// ValidateBackup checks an archive's manifest and files.
func (s *BackupService) ValidateBackup(ctx context.Context, actor *Actor, id string) (*backup.ValidationResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	res, err := s.backups.Validate(ctx, id)
	if err != nil {
		return nil, backupErr(err, "validate backup")
	}
	return res, nil
}

// RestoreBackup imports an archive. After a real restore the search index
// is rebuilt from the restored stories.
func (s *BackupService) RestoreBackup(ctx context.Context, actor *Actor, id string, req RestoreRequest) (*backup.RestoreResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	mode := backup.RestoreMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if !mode.Valid() {
		return nil, domainerrors.Validationf("unknown restore mode %q", req.Mode)
	}

	res, err := s.backups.Restore(ctx, id, backup.RestoreOptions{Mode: mode, DryRun: req.DryRun})
	if err != nil {
		s.logger.Error("restore failed", "id", id, "mode", mode, "error", err)
		return nil, backupErr(err, "restore backup")
	}
	if req.DryRun {
		return res, nil
	}

	if _, err := s.search.Reindex(ctx, actor); err != nil {
		s.logger.Warn("reindex after restore failed", "error", err)
	}
	desc := fmt.Sprintf("%s restored (%s)", id, mode)
	if err := s.events.Record(ctx, actor, domain.OpModified, domain.ItemBackup, 0, desc, ""); err != nil {
		s.logger.Warn("failed to record restore event", "id", id, "error", err)
	}
	return res, nil
}

// backupErr maps archive errors: unknown ids are 404, bad ids 400 and
// everything else a 409 external failure.
func backupErr(err error, op string) error {
	switch {
	case errors.Is(err, backup.ErrBackupNotFound):
		return domainerrors.NotFound("backup not found")
	case errors.Is(err, backup.ErrInvalidID):
		return domainerrors.Validation("invalid backup id")
	default:
		return domainerrors.ExternalService(op+" failed", err)
	}
}
