package dto

import (
	"net/http"
	"testing"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{shared.CodeValidationError, http.StatusBadRequest},
		{shared.CodePermissionDenied, http.StatusForbidden},
		{shared.CodeAccountNotFound, http.StatusNotFound},
		{shared.CodeItemNotFound, http.StatusNotFound},
		{shared.CodeInsufficientQuantity, http.StatusUnprocessableEntity},
		{shared.CodeDatabaseError, http.StatusInternalServerError},
		{shared.CodeCacheError, http.StatusInternalServerError},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GetHTTPStatus(tt.code), "code %q", tt.code)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(ErrCodeBadRequest, "malformed body")

	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, ErrCodeBadRequest, resp.Errors[0].Code)
	assert.NotNil(t, resp.Warnings, "warnings must serialize as [], not null")
	assert.Empty(t, resp.RequestID)
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeInternal, "boom", "req-1")
	assert.Equal(t, "req-1", resp.RequestID)
}
