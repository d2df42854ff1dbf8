package shared

// DomainError is a business-rule violation with a stable machine code.
// Handlers map the code to an HTTP status; the message is safe to show
// to callers.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string { return e.Message }

// NewDomainError builds a DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinel errors shared across the domain packages. Compare with
// errors.Is against the pointer identity.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrLockConflict        = NewDomainError("LOCK_CONFLICT", "Item is locked by another proposal")
	ErrImbalance           = NewDomainError("IMBALANCE", "Cycle exceeds maximum cash differential")
	ErrExecutionFailed     = NewDomainError("EXECUTION_FAILED", "Trade execution failed and was rolled back")
	ErrTimeout             = NewDomainError("TIMEOUT", "Operation exceeded its time budget")
)
