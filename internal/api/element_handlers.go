package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/http/response"
	"github.com/asylumproject/asylum-server/internal/service"
	"github.com/asylumproject/asylum-server/internal/store"
)

func (s *Server) registerElementRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listElements",
		Method:      http.MethodGet,
		Path:        "/api/v1/map-points/{id}/elements",
		Summary:     "List elements",
		Description: "Live elements of a map point in display order",
		Tags:        []string{"Elements"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListElements)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkElementFileName",
		Method:      http.MethodGet,
		Path:        "/api/v1/map-points/{id}/files/exists",
		Summary:     "Check file name",
		Description: "Reports whether the map point already holds a file with this name",
		Tags:        []string{"Elements"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCheckFileName)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createElement",
		Method:        http.MethodPost,
		Path:          "/api/v1/stories/{storyID}/map-points/{mapPointID}/elements",
		Summary:       "Create element",
		Description:   "Creates an element and attaches it to the map point",
		Tags:          []string{"Elements"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateElement)

	huma.Register(s.api, huma.Operation{
		OperationID: "editElement",
		Method:      http.MethodPut,
		Path:        "/api/v1/stories/{storyID}/map-points/{mapPointID}/elements/{elementID}",
		Summary:     "Edit element",
		Description: "Replaces the element's mutable fields in place",
		Tags:        []string{"Elements"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEditElement)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteElement",
		Method:      http.MethodDelete,
		Path:        "/api/v1/stories/{storyID}/map-points/{mapPointID}/elements/{elementID}",
		Summary:     "Delete element",
		Description: "Detaches and deletes the element and returns the updated story",
		Tags:        []string{"Elements"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteElement)

	huma.Register(s.api, huma.Operation{
		OperationID: "getElement",
		Method:      http.MethodGet,
		Path:        "/api/v1/elements/{id}",
		Summary:     "Get element",
		Tags:        []string{"Elements"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetElement)

	huma.Register(s.api, huma.Operation{
		OperationID: "archiveElement",
		Method:      http.MethodPut,
		Path:        "/api/v1/elements/{id}/archive",
		Summary:     "Archive or unarchive element",
		Description: `Action "archive" archives the element; anything else returns it to draft`,
		Tags:        []string{"Elements"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleArchiveElement)
}

// Upload endpoint uses chi directly for multipart form handling.
func (s *Server) registerUploadRoutes() {
	s.router.Post("/api/v1/stories/{storyID}/map-points/{mapPointID}/upload",
		withExtendedTimeout(s.handleUploadElementFile, 10*time.Minute))
}

// === DTOs ===

// ElementBody carries an element's fields. Only the payload fields that
// match kind are kept.
type ElementBody struct {
	Kind         string `json:"kind" enum:"text,image,audio,video"`
	LanguageCode string `json:"language_code,omitempty" maxLength:"16"`
	Description  string `json:"description,omitempty" maxLength:"10000"`
	State        string `json:"state,omitempty" enum:"DRAFT,ARCHIVED"`

	FilePath    string `json:"file_path,omitempty" maxLength:"2048"`
	FileName    string `json:"file_name,omitempty" maxLength:"512"`
	FileSize    int64  `json:"file_size,omitempty" minimum:"0"`
	ContentType string `json:"content_type,omitempty" maxLength:"255"`

	Body          string  `json:"body,omitempty" doc:"Text body, HTML or plain"`
	Width         int     `json:"width,omitempty" minimum:"0"`
	Height        int     `json:"height,omitempty" minimum:"0"`
	Caption       string  `json:"caption,omitempty" maxLength:"2000"`
	BlurHash      string  `json:"blur_hash,omitempty" maxLength:"128"`
	LengthSeconds float64 `json:"length_seconds,omitempty" minimum:"0"`
}

func (b ElementBody) toService() service.ElementRequest {
	return service.ElementRequest{
		Kind:          b.Kind,
		LanguageCode:  b.LanguageCode,
		Description:   b.Description,
		State:         b.State,
		FilePath:      b.FilePath,
		FileName:      b.FileName,
		FileSize:      b.FileSize,
		ContentType:   b.ContentType,
		Body:          b.Body,
		Width:         b.Width,
		Height:        b.Height,
		Caption:       b.Caption,
		BlurHash:      b.BlurHash,
		LengthSeconds: b.LengthSeconds,
	}
}

// CreateElementInput adds an element to a map point.
type CreateElementInput struct {
	StoryID    int64 `path:"storyID" minimum:"1"`
	MapPointID int64 `path:"mapPointID" minimum:"1"`
	Body       ElementBody
}

// EditElementInput replaces an element.
type EditElementInput struct {
	StoryID    int64 `path:"storyID" minimum:"1"`
	MapPointID int64 `path:"mapPointID" minimum:"1"`
	ElementID  int64 `path:"elementID" minimum:"1"`
	Body       ElementBody
}

// DeleteElementInput addresses an element inside its map point.
type DeleteElementInput struct {
	StoryID    int64 `path:"storyID" minimum:"1"`
	MapPointID int64 `path:"mapPointID" minimum:"1"`
	ElementID  int64 `path:"elementID" minimum:"1"`
}

// ElementIDInput addresses an element.
type ElementIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

// ArchiveElementInput archives or unarchives an element.
type ArchiveElementInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body struct {
		Action string `json:"action" doc:"archive, or anything else to unarchive"`
	}
}

// ListElementsInput filters a map point's elements.
type ListElementsInput struct {
	ID       int64  `path:"id" minimum:"1"`
	Kind     string `query:"kind" doc:"text, image, audio or video"`
	Archived bool   `query:"archived" doc:"Only archived elements"`
}

// CheckFileNameInput names the file to look up.
type CheckFileNameInput struct {
	ID       int64  `path:"id" minimum:"1"`
	FileName string `query:"file_name" minLength:"1" required:"true"`
}

// CheckFileNameOutput reports whether the file name is taken.
type CheckFileNameOutput struct {
	Body struct {
		Exists bool `json:"exists"`
	}
}

// ElementOutput is one element.
type ElementOutput struct {
	Body *domain.ContentElement
}

// ElementsOutput lists elements.
type ElementsOutput struct {
	Body []*domain.ContentElement
}

// === Handlers ===

func (s *Server) handleListElements(ctx context.Context, input *ListElementsInput) (*ElementsOutput, error) {
	filter := store.ElementFilter{Archived: input.Archived}
	if input.Kind != "" {
		kind, err := domain.ParseElementKind(input.Kind)
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		filter.Kind = kind
	}

	elements, err := s.services.Content.ListElements(ctx, ActorFrom(ctx), input.ID, filter)
	if err != nil {
		return nil, err
	}
	return &ElementsOutput{Body: elements}, nil
}

func (s *Server) handleCheckFileName(ctx context.Context, input *CheckFileNameInput) (*CheckFileNameOutput, error) {
	if _, err := requireCuratorActor(ctx); err != nil {
		return nil, err
	}
	exists, err := s.services.Content.CheckFileNameExists(ctx, input.FileName, input.ID)
	if err != nil {
		return nil, err
	}
	out := &CheckFileNameOutput{}
	out.Body.Exists = exists
	return out, nil
}

func (s *Server) handleCreateElement(ctx context.Context, input *CreateElementInput) (*ElementOutput, error) {
	e, err := s.services.Content.CreateElement(ctx, ActorFrom(ctx), input.StoryID, input.MapPointID, input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &ElementOutput{Body: e}, nil
}

func (s *Server) handleEditElement(ctx context.Context, input *EditElementInput) (*ElementOutput, error) {
	e, err := s.services.Content.EditElement(ctx, ActorFrom(ctx), input.StoryID, input.MapPointID, input.ElementID, input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &ElementOutput{Body: e}, nil
}

func (s *Server) handleDeleteElement(ctx context.Context, input *DeleteElementInput) (*StoryOutput, error) {
	story, err := s.services.Content.DeleteElement(ctx, ActorFrom(ctx), input.StoryID, input.MapPointID, input.ElementID)
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}

func (s *Server) handleGetElement(ctx context.Context, input *ElementIDInput) (*ElementOutput, error) {
	if _, err := requireCuratorActor(ctx); err != nil {
		return nil, err
	}
	e, err := s.services.Content.GetElement(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ElementOutput{Body: e}, nil
}

func (s *Server) handleArchiveElement(ctx context.Context, input *ArchiveElementInput) (*ElementOutput, error) {
	e, err := s.services.Content.SetElementArchived(ctx, ActorFrom(ctx), input.ID, input.Body.Action)
	if err != nil {
		return nil, err
	}
	return &ElementOutput{Body: e}, nil
}

// withExtendedTimeout lifts the server read and write deadlines for slow
// uploads.
func withExtendedTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Now().Add(timeout))
		_ = rc.SetWriteDeadline(time.Now().Add(timeout))
		next(w, r)
	}
}

// handleUploadElementFile stores a multipart "file" and attaches it as a new
// element. Optional form fields: language, description.
func (s *Server) handleUploadElementFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := ActorFrom(ctx)
	if actor == nil {
		response.Error(w, http.StatusUnauthorized, "authentication required", s.logger)
		return
	}

	storyID, err1 := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	mapPointID, err2 := strconv.ParseInt(chi.URLParam(r, "mapPointID"), 10, 64)
	if err1 != nil || err2 != nil || storyID <= 0 || mapPointID <= 0 {
		response.Error(w, http.StatusBadRequest, "invalid story or map point id", s.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "file too large", s.logger)
			return
		}
		response.Error(w, http.StatusBadRequest, "failed to parse form data", s.logger)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "no file uploaded, use the 'file' field", s.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read uploaded file", "error", err, "map_point_id", mapPointID)
		response.Error(w, http.StatusBadRequest, "failed to read uploaded file", s.logger)
		return
	}

	e, err := s.services.Uploads.UploadElementFile(ctx, actor, storyID, mapPointID, service.Upload{
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Data:         data,
		LanguageCode: r.FormValue("language"),
		Description:  r.FormValue("description"),
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.logger.Info("element file uploaded",
		"story_id", storyID,
		"map_point_id", mapPointID,
		"element_id", e.ID,
		"file_name", header.Filename,
	)
	response.JSON(w, http.StatusCreated, e, s.logger)
}
