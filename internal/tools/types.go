package tools

// Status indicates whether a tool call succeeded.
type Status string

// Tool result statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrCode classifies tool-level failures for the model.
type ErrCode string

// Tool error codes. These reach the model as part of the tool result, so
// they are stable identifiers, not display strings.
const (
	ErrCodeValidation        ErrCode = "validation_error"
	ErrCodeInvalidExpression ErrCode = "invalid_expression"
	ErrCodeInvalidTimezone   ErrCode = "invalid_timezone"
	ErrCodeFetch             ErrCode = "fetch_error"
	ErrCodeSearch            ErrCode = "search_error"
)

// Error is the structured error carried inside a failed Result.
// It lets the model understand what went wrong and correct its call.
type Error struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Details string  `json:"details,omitempty"`
}

// Result is the uniform return shape for every tool handler.
//
// Business failures (bad expression, unknown timezone, unreachable URL)
// are returned as Result{Status: StatusError, Error: ...} with a nil Go
// error, so the agent receives a descriptive tool result instead of the
// request aborting. Only context cancellation propagates as a Go error.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// errorResult builds a failed Result.
func errorResult(code ErrCode, message string) Result {
	return Result{
		Status:  StatusError,
		Message: message,
		Error:   &Error{Code: code, Message: message},
	}
}

// errorResultDetails builds a failed Result with extra detail text.
func errorResultDetails(code ErrCode, message, details string) Result {
	return Result{
		Status:  StatusError,
		Message: message,
		Error:   &Error{Code: code, Message: message, Details: details},
	}
}
