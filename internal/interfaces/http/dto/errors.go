package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Identity error codes
const (
	// ErrCodeUnauthorized is used when a caller identity is required but missing
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller is not allowed to act on the resource
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Barter business error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for the current status
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeLockConflict is used when an item is already locked by another proposal
	ErrCodeLockConflict = "ERR_LOCK_CONFLICT"
	// ErrCodeItemUnavailable is used when an item is not active or not barter-eligible
	ErrCodeItemUnavailable = "ERR_ITEM_UNAVAILABLE"
	// ErrCodeNotParticipant is used when the caller is not part of the proposal
	ErrCodeNotParticipant = "ERR_NOT_PARTICIPANT"
	// ErrCodeAlreadyAccepted is used when a participant accepts twice
	ErrCodeAlreadyAccepted = "ERR_ALREADY_ACCEPTED"
	// ErrCodeImbalance is used when a cycle exceeds the value imbalance cap
	ErrCodeImbalance = "ERR_IMBALANCE"
	// ErrCodeInvalidCandidate is used when a submitted cycle candidate is malformed
	ErrCodeInvalidCandidate = "ERR_INVALID_CANDIDATE"
	// ErrCodeExecutionFailed is used when a chain execution was rolled back
	ErrCodeExecutionFailed = "ERR_EXECUTION_FAILED"
	// ErrCodeTimeout is used when an operation exceeded its deadline
	ErrCodeTimeout = "ERR_TIMEOUT"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Identity errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:     http.StatusUnprocessableEntity,
	ErrCodeLockConflict:     http.StatusConflict,
	ErrCodeItemUnavailable:  http.StatusUnprocessableEntity,
	ErrCodeNotParticipant:   http.StatusForbidden,
	ErrCodeAlreadyAccepted:  http.StatusConflict,
	ErrCodeImbalance:        http.StatusUnprocessableEntity,
	ErrCodeInvalidCandidate: http.StatusUnprocessableEntity,
	ErrCodeExecutionFailed:  http.StatusUnprocessableEntity,
	ErrCodeTimeout:          http.StatusGatewayTimeout,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes.
// Domain errors carry short codes like NOT_FOUND or LOCK_CONFLICT; the
// API surface exposes the standardized ERR_* form.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"LOCK_CONFLICT":        ErrCodeLockConflict,
	"ITEM_UNAVAILABLE":     ErrCodeItemUnavailable,
	"NOT_PARTICIPANT":      ErrCodeNotParticipant,
	"ALREADY_ACCEPTED":     ErrCodeAlreadyAccepted,
	"IMBALANCE":            ErrCodeImbalance,
	"INVALID_CANDIDATE":    ErrCodeInvalidCandidate,
	"EXECUTION_FAILED":     ErrCodeExecutionFailed,
	"TIMEOUT":              ErrCodeTimeout,

	// Field-level domain validation codes collapse to the validation code;
	// the message carries the specifics.
	"INVALID_NAME":      ErrCodeValidation,
	"INVALID_CATEGORY":  ErrCodeValidation,
	"INVALID_CONDITION": ErrCodeValidation,
	"INVALID_KIND":      ErrCodeValidation,
	"INVALID_VALUE":     ErrCodeValidation,
	"INVALID_OWNER":     ErrCodeValidation,
	"INVALID_TTL":       ErrCodeValidation,

	"BAD_REQUEST":    ErrCodeBadRequest,
	"INTERNAL_ERROR": ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
