package shared

import "time"

// ResultMetadata carries per-call execution details alongside the payload.
type ResultMetadata struct {
	CacheHit   bool      `json:"cache_hit"`
	DurationMs int64     `json:"duration_ms"`
	ComputedAt time.Time `json:"computed_at"`
}

// ResultError is an error entry in a result envelope.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResultWarning is a non-fatal finding surfaced alongside a best-effort
// payload, e.g. a failed parallel sub-fetch during report generation.
type ResultWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform envelope returned by every public service
// operation. Errors never cross the public boundary as raw Go errors:
// callers are forced to inspect the Errors and Warnings slices, so partial
// failures can travel with a best-effort payload instead of aborting the
// whole call.
type Result[T any] struct {
	Success  bool            `json:"success"`
	Data     *T              `json:"data,omitempty"`
	Errors   []ResultError   `json:"errors"`
	Warnings []ResultWarning `json:"warnings"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`
}

// OK builds a successful result around data.
func OK[T any](data T) Result[T] {
	return Result[T]{
		Success:  true,
		Data:     &data,
		Errors:   []ResultError{},
		Warnings: []ResultWarning{},
	}
}

// Fail builds a failed result carrying a single error entry.
func Fail[T any](code, message string) Result[T] {
	return Result[T]{
		Success:  false,
		Errors:   []ResultError{{Code: code, Message: message}},
		Warnings: []ResultWarning{},
	}
}

// FailErr builds a failed result from an error value. DomainError codes
// are preserved; anything else is reported as a store-level failure.
func FailErr[T any](err error) Result[T] {
	if derr, ok := err.(*DomainError); ok {
		return Fail[T](derr.Code, derr.Message)
	}
	return Fail[T](CodeDatabaseError, err.Error())
}

// WithWarning appends a warning entry and returns the result.
func (r Result[T]) WithWarning(code, message string) Result[T] {
	r.Warnings = append(r.Warnings, ResultWarning{Code: code, Message: message})
	return r
}

// WithMetadata attaches execution metadata and returns the result.
func (r Result[T]) WithMetadata(meta ResultMetadata) Result[T] {
	r.Metadata = &meta
	return r
}

// FirstErrorCode returns the code of the first error, or "" when none.
func (r Result[T]) FirstErrorCode() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Code
}
