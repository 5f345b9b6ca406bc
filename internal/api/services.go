package api

import "github.com/asylumproject/asylum-server/internal/service"

// Services groups every service the handlers call.
type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Content   *service.ContentService
	Uploads   *service.UploadService
	Tags      *service.TagService
	Sharing   *service.SharingService
	Search    *service.SearchService
	Reference *service.ReferenceService
	Events    *service.EventService
	Reports   *service.ReportService
	Backups   *service.BackupService
}
