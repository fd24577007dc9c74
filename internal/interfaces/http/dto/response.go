package dto

import "github.com/finbooks/backend/internal/domain/shared"

// ErrorResponse is the envelope returned for failures that occur before a
// service operation runs (auth, binding, routing). It mirrors the shape of
// the service result envelope so clients parse exactly one format.
type ErrorResponse struct {
	Success   bool                   `json:"success"`
	Errors    []shared.ResultError   `json:"errors"`
	Warnings  []shared.ResultWarning `json:"warnings"`
	RequestID string                 `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error envelope with a single error entry.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success:  false,
		Errors:   []shared.ResultError{{Code: code, Message: message}},
		Warnings: []shared.ResultWarning{},
	}
}

// NewErrorResponseWithRequestID creates an error envelope carrying the
// request ID for correlation.
func NewErrorResponseWithRequestID(code, message, requestID string) ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.RequestID = requestID
	return resp
}
