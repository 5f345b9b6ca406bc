package response

import (
	"encoding/json/v2"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"title": "Crossing"}, discard())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	body := decode(t, w)
	assert.Equal(t, float64(Version), body["v"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"title": "Crossing"}, body["data"])
	assert.NotContains(t, body, "error")
	assert.NotContains(t, body, "code")
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, nil, nil)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "data")
}

func TestStatusBoundary(t *testing.T) {
	tests := []struct {
		status  int
		success bool
	}{
		{200, true},
		{201, true},
		{302, true},
		{399, true},
		{400, false},
		{404, false},
		{500, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.success, Wrap(tt.status, nil).Success, "status %d", tt.status)
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	NotFound(w, "share link not found", discard())

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "share link not found", body["error"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, "slow down", nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "domain validation",
			err:        domainerrors.Validation("title is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
			wantMsg:    "title is required",
		},
		{
			name:       "wrapped domain error",
			err:        errors.Join(errors.New("ctx"), domainerrors.Forbidden("curators only")),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
			wantMsg:    "curators only",
		},
		{
			name:       "external service hides cause",
			err:        domainerrors.ExternalService("report export failed", errors.New("bucket gone")),
			wantStatus: http.StatusConflict,
			wantCode:   "EXTERNAL_SERVICE",
			wantMsg:    "report export failed",
		},
		{
			name:       "store not found",
			err:        store.ErrNotFound.WithMessage("story not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    "story not found",
		},
		{
			name:       "unknown",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
			wantMsg:    "internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Resolve(tt.err)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantCode, p.Code)
			assert.Equal(t, tt.wantMsg, p.Message)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, domainerrors.ValidationWithDetails("invalid", map[string]string{"title": "required"}), discard())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "VALIDATION", body["code"])
	assert.Equal(t, map[string]any{"title": "required"}, body["details"])
}

func TestHandleError_NotModifiedHasNoBody(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, domainerrors.NotModified("file already exists"), discard())

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}
