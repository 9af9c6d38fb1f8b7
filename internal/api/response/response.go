// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/verdict/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Total     *int      `json:"total,omitempty"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	})
}

// List writes a success response for one page of a larger collection.
func List(w http.ResponseWriter, data any, total int) {
	write(w, http.StatusOK, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC(), Total: &total},
	})
}

// Raw writes v as the whole body, without the envelope.
func Raw(w http.ResponseWriter, status int, v any) {
	write(w, status, v)
}

// Detail extracts the code, message and cause from err.
func Detail(err error) ErrorDetail {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}
	return detail
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	write(w, status, ErrorResponse{Error: Detail(err)})
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidRequest), errors.Is(err, core.ErrMalformedCall):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrLedgerConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrPriceUnavailable), errors.Is(err, core.ErrStalePrice):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrCycleTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
