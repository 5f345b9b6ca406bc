package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/http/response"
)

// APIError implements huma.StatusError with the fields of the error
// envelope.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler makes huma build every error through the domain
// error mapping. Huma's own request validation failures become 400
// VALIDATION with the offending fields as details.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		var fields []string
		for _, err := range errs {
			if err == nil {
				continue
			}
			var detail *huma.ErrorDetail
			if errors.As(err, &detail) {
				fields = append(fields, detail.Error())
				continue
			}
			p := response.Resolve(err)
			if p.Status != http.StatusInternalServerError {
				return &APIError{status: p.Status, Code: p.Code, Message: p.Message, Details: p.Details}
			}
		}

		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		apiErr := &APIError{status: status, Code: response.StatusCode(status), Message: message}
		if len(fields) > 0 {
			apiErr.Details = fields
		}
		return apiErr
	}
}

// EnvelopeTransformer wraps every huma response body in the standard
// envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, err := strconv.Atoi(status)
	if err != nil {
		code = http.StatusOK
	}

	switch body := v.(type) {
	case response.Envelope:
		return body, nil
	case *APIError:
		return response.Failure(response.Problem{Status: code, Code: body.Code, Message: body.Message, Details: body.Details}), nil
	case *domainerrors.Error:
		return response.Failure(response.Resolve(body)), nil
	case error:
		return response.Failure(response.Problem{Status: code, Code: response.StatusCode(code), Message: body.Error()}), nil
	}
	return response.Wrap(code, v), nil
}
