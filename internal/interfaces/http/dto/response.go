// Package dto defines the request and response shapes of the HTTP API.
package dto

import "time"

// defaultPageSize is applied when a caller supplies no usable page size.
const defaultPageSize = 20

// Response is the envelope every endpoint answers with: exactly one of
// Data or Error is set, and list endpoints add Meta.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo describes a failure to the client. RequestID ties the
// response back to server logs and traces.
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
	Help      string             `json:"help,omitempty"`
}

// ValidationDetail is one field-level validation failure.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta carries pagination bookkeeping for list responses.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta wraps a page of data with pagination
// meta. TotalPages rounds up so a trailing partial page counts.
func NewSuccessResponseWithMeta(data interface{}, total int64, page, pageSize int) Response {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	resp := NewSuccessResponse(data)
	resp.Meta = &Meta{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
	return resp
}

func newError(info ErrorInfo) Response {
	info.Code = NormalizeErrorCode(info.Code)
	info.Timestamp = time.Now()
	return Response{Success: false, Error: &info}
}

// NewErrorResponse builds an error envelope. Domain error codes are
// normalized to the ERR_* form.
func NewErrorResponse(code, message string) Response {
	return newError(ErrorInfo{Code: code, Message: message})
}

// NewErrorResponseWithRequestID builds an error envelope carrying the
// request ID for correlation.
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return newError(ErrorInfo{Code: code, Message: message, RequestID: requestID})
}

// NewValidationErrorResponse builds a validation error envelope with
// per-field details.
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return newError(ErrorInfo{
		Code:      ErrCodeValidation,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	})
}

// NewErrorResponseWithHelp builds an error envelope pointing at
// documentation for the failure.
func NewErrorResponseWithHelp(code, message, requestID, help string) Response {
	return newError(ErrorInfo{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Help:      help,
	})
}
