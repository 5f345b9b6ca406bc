// Package response formats the JSON envelope every endpoint answers with and
// maps service errors onto it.
package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/store"
)

// Version is the envelope format version sent as "v".
const Version = 1

// Envelope is the body of every JSON response.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Problem is an error resolved to a status and a client-safe message.
type Problem struct {
	Status  int
	Code    string
	Message string
	Details any
}

// Wrap builds the envelope for data, or for a failure when status >= 400.
func Wrap(status int, data any) Envelope {
	return Envelope{Version: Version, Success: status < http.StatusBadRequest, Data: data}
}

// Failure builds the error envelope for p.
func Failure(p Problem) Envelope {
	return Envelope{Version: Version, Error: p.Message, Code: p.Code, Details: p.Details}
}

// Resolve maps err to a Problem. Domain errors keep their code, store
// errors keep their status and anything else is a 500 with a generic
// message.
func Resolve(err error) Problem {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return Problem{
			Status:  domainErr.HTTPStatus(),
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return Problem{
			Status:  storeErr.HTTPCode(),
			Code:    StatusCode(storeErr.HTTPCode()),
			Message: storeErr.Message,
		}
	}
	return Problem{
		Status:  http.StatusInternalServerError,
		Code:    string(domainerrors.CodeInternal),
		Message: "internal server error",
	}
}

// StatusCode maps an HTTP status to the closest error code.
func StatusCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusUnauthorized:
		return string(domainerrors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(domainerrors.CodeForbidden)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusNotModified:
		return string(domainerrors.CodeNotModified)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return string(domainerrors.CodeInternal)
	}
}

// JSON writes data inside the envelope with the given status.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	write(w, status, Wrap(status, data), logger)
}

// Success writes a 200 envelope.
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// NoContent writes a 204 without a body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	write(w, status, Failure(Problem{Status: status, Code: StatusCode(status), Message: message}), logger)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, message, logger)
}

// TooManyRequests writes a 429.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, message, logger)
}

// HandleError resolves err and writes it. 304 carries no body. Unknown
// errors are logged before the generic 500 goes out.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	p := Resolve(err)
	if p.Status == http.StatusInternalServerError && logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	if p.Status == http.StatusNotModified {
		w.WriteHeader(p.Status)
		return
	}
	write(w, p.Status, Failure(p), logger)
}

func write(w http.ResponseWriter, status int, env Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, env); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
