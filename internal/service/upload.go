package service

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/media"
	"github.com/asylumproject/asylum-server/internal/objectstore"
)

// MaxUploadSize bounds a single element file.
const MaxUploadSize = 512 << 20

// Upload is one multipart element file.
type Upload struct {
	FileName     string
	ContentType  string
	Data         []byte
	LanguageCode string
	Description  string
}

// UploadService stores element files and turns them into attached elements.
type UploadService struct {
	content *ContentService
	objects objectstore.Store
	prober  *media.Prober
	logger  *slog.Logger
}

// NewUploadService creates an upload service.
func NewUploadService(content *ContentService, objects objectstore.Store, prober *media.Prober, logger *slog.Logger) *UploadService {
	return &UploadService{content: content, objects: objects, prober: prober, logger: logger}
}

// UploadElementFile stores the file under story{S}/mapPoint{M}/{kind}/{name},
// probes it and attaches a new element to the map point.
//
// A file name already used in the map point and a failing object store both
// leave everything unchanged and return NotModified.
func (s *UploadService) UploadElementFile(ctx context.Context, actor *Actor, storyID, mapPointID int64, up Upload) (*domain.ContentElement, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}

	kind, ok := domain.KindFromContentType(up.ContentType)
	if !ok {
		return nil, domainerrors.Validation("invalid file type")
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(up.FileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, domainerrors.Validation("file name is required")
	}
	if len(up.Data) == 0 {
		return nil, domainerrors.Validation("file is empty")
	}
	if len(up.Data) > MaxUploadSize {
		return nil, domainerrors.Validation("file is too large")
	}

	mp, err := s.content.GetMapPoint(ctx, mapPointID)
	if err != nil {
		return nil, err
	}
	if mp.StoryID != storyID {
		return nil, domainerrors.NotFound("map point not found in story")
	}

	exists, err := s.content.CheckFileNameExists(ctx, name, mapPointID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domainerrors.NotModified("a file with this name already exists in the map point")
	}

	key := objectstore.ElementKey(storyID, mapPointID, kind, name)
	obj, err := s.objects.Put(ctx, key, bytes.NewReader(up.Data), up.ContentType)
	if err != nil {
		s.logger.Error("failed to store element file", "key", key, "error", err)
		return nil, domainerrors.NotModified("file could not be stored").WithCause(err)
	}

	e := &domain.ContentElement{
		Kind:         kind,
		LanguageCode: up.LanguageCode,
		Description:  strings.TrimSpace(up.Description),
		FilePath:     obj.URL,
		FileName:     name,
		FileSize:     int64(len(up.Data)),
		ContentType:  up.ContentType,
	}
	e.Image, e.Media = s.prober.Probe(ctx, kind, name, up.Data)
	e.Normalize()

	created, err := s.content.createAndAttach(ctx, actor, storyID, mapPointID, e)
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", "key", key, "error", delErr)
		}
		return nil, err
	}
	return created, nil
}
