package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared across the balance and reporting services.
// VALIDATION_ERROR and PERMISSION_DENIED are terminal and never retried.
// BALANCE_MISMATCH is warning-level only. CACHE_ERROR must degrade to a
// cache miss and never fail the overall operation.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	CodeItemNotFound         = "ITEM_NOT_FOUND"
	CodeBalanceMismatch      = "BALANCE_MISMATCH"
	CodeDatabaseError        = "DATABASE_ERROR"
	CodeCacheError           = "CACHE_ERROR"
	CodeInsufficientQuantity = "INSUFFICIENT_QUANTITY"
)

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput         = NewDomainError(CodeValidationError, "Invalid input provided")
	ErrPermissionDenied     = NewDomainError(CodePermissionDenied, "Not authorized to perform this action")
	ErrAccountNotFound      = NewDomainError(CodeAccountNotFound, "Ledger account not found")
	ErrItemNotFound         = NewDomainError(CodeItemNotFound, "Inventory item not found")
	ErrInsufficientQuantity = NewDomainError(CodeInsufficientQuantity, "Insufficient available quantity")
)

// IsTerminal reports whether an error code should never be retried by
// callers. Store errors are deliberately excluded: retry policy for those
// belongs to the store adapter, not to this layer.
func IsTerminal(code string) bool {
	switch code {
	case CodeValidationError, CodePermissionDenied, CodeAccountNotFound, CodeItemNotFound:
		return true
	}
	return false
}
