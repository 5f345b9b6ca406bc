package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/backup"
	"github.com/asylumproject/asylum-server/internal/service"
)

func (s *Server) registerBackupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBackups",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/backups",
		Summary:     "List backups",
		Description: "Archives in the backup directory, newest first",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBackups)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBackup",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/backups",
		Summary:       "Create backup",
		Description:   "Writes a zip archive of every entity; optionally emails the download link",
		Tags:          []string{"Admin", "Backup"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBackup",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/backups/{id}",
		Summary:     "Get backup",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "downloadBackup",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/backups/{id}/download",
		Summary:     "Download backup",
		Description: "Streams the raw archive",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDownloadBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBackup",
		Method:      http.MethodDelete,
		Path:        "/api/v1/admin/backups/{id}",
		Summary:     "Delete backup",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/backups/{id}/validate",
		Summary:     "Validate backup",
		Description: "Checks the manifest version and that every entity file is present",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleValidateBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/backups/{id}/restore",
		Summary:     "Restore backup",
		Description: "full wipes content and imports the archive; merge only adds rows missing locally. dry_run counts without writing.",
		Tags:        []string{"Admin", "Backup"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRestoreBackup)
}

// === DTOs ===

// CreateBackupInput configures a new backup.
type CreateBackupInput struct {
	Body struct {
		SendMail bool `json:"send_mail,omitempty" doc:"Email the download link to the caller"`
	}
}

// BackupIDInput addresses a backup.
type BackupIDInput struct {
	ID string `path:"id" minLength:"1" maxLength:"128"`
}

// RestoreBackupInput restores a backup.
type RestoreBackupInput struct {
	ID   string `path:"id" minLength:"1" maxLength:"128"`
	Body struct {
		Mode   string `json:"mode" enum:"full,merge"`
		DryRun bool   `json:"dry_run,omitempty"`
	}
}

// BackupCreatedOutput is a new backup.
type BackupCreatedOutput struct {
	Body *service.BackupCreated
}

// BackupOutput describes one backup.
type BackupOutput struct {
	Body *backup.Info
}

// BackupsOutput lists backups.
type BackupsOutput struct {
	Body []backup.Info
}

// ValidateBackupOutput is a validation report.
type ValidateBackupOutput struct {
	Body *backup.ValidationResult
}

// RestoreBackupOutput reports restore counts.
type RestoreBackupOutput struct {
	Body *backup.RestoreResult
}

// === Handlers ===

func (s *Server) handleListBackups(ctx context.Context, _ *struct{}) (*BackupsOutput, error) {
	list, err := s.services.Backups.ListBackups(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &BackupsOutput{Body: list}, nil
}

func (s *Server) handleCreateBackup(ctx context.Context, input *CreateBackupInput) (*BackupCreatedOutput, error) {
	created, err := s.services.Backups.CreateBackup(ctx, ActorFrom(ctx), input.Body.SendMail)
	if err != nil {
		return nil, err
	}
	return &BackupCreatedOutput{Body: created}, nil
}

func (s *Server) handleGetBackup(ctx context.Context, input *BackupIDInput) (*BackupOutput, error) {
	info, err := s.services.Backups.GetBackup(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &BackupOutput{Body: info}, nil
}

func (s *Server) handleDownloadBackup(ctx context.Context, input *BackupIDInput) (*huma.StreamResponse, error) {
	f, info, err := s.services.Backups.OpenBackup(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer f.Close()
			hctx.SetHeader("Content-Type", "application/zip")
			hctx.SetHeader("Content-Length", strconv.FormatInt(info.Size, 10))
			hctx.SetHeader("Content-Disposition", `attachment; filename="`+info.ID+`.asylum.zip"`)
			if info.Checksum != "" {
				hctx.SetHeader("X-Checksum-Blake3", info.Checksum)
			}
			if _, err := io.Copy(hctx.BodyWriter(), f); err != nil {
				s.logger.Warn("backup download interrupted", "id", info.ID, "error", err)
			}
		},
	}, nil
}

func (s *Server) handleDeleteBackup(ctx context.Context, input *BackupIDInput) (*struct{}, error) {
	return nil, s.services.Backups.DeleteBackup(ctx, ActorFrom(ctx), input.ID)
}

func (s *Server) handleValidateBackup(ctx context.Context, input *BackupIDInput) (*ValidateBackupOutput, error) {
	res, err := s.services.Backups.ValidateBackup(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &ValidateBackupOutput{Body: res}, nil
}

func (s *Server) handleRestoreBackup(ctx context.Context, input *RestoreBackupInput) (*RestoreBackupOutput, error) {
	res, err := s.services.Backups.RestoreBackup(ctx, ActorFrom(ctx), input.ID, service.RestoreRequest{
		Mode:   input.Body.Mode,
		DryRun: input.Body.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return &RestoreBackupOutput{Body: res}, nil
}
