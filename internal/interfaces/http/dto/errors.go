package dto

import (
	"net/http"

	"github.com/finbooks/backend/internal/domain/shared"
)

// Transport-level error codes. Service-level codes live in the shared
// package; these cover failures that happen before a service is reached.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps result error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidationError:      http.StatusBadRequest,
	shared.CodePermissionDenied:     http.StatusForbidden,
	shared.CodeAccountNotFound:      http.StatusNotFound,
	shared.CodeItemNotFound:         http.StatusNotFound,
	shared.CodeInsufficientQuantity: http.StatusUnprocessableEntity,
	shared.CodeDatabaseError:        http.StatusInternalServerError,
	shared.CodeCacheError:           http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeInternal:     http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500 Internal Server Error.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
