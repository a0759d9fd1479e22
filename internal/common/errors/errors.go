package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies the kind of failure carried by an AppError.
type ErrorCode string

const (
	// Client-side taxonomy
	ErrCodeTransport  ErrorCode = "TRANSPORT_ERROR"
	ErrCodeHTTPStatus ErrorCode = "HTTP_STATUS_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeStorage    ErrorCode = "STORAGE_ERROR"
	ErrCodeDecode     ErrorCode = "DECODE_ERROR"

	// Server-side codes, used by the dev API
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
)

// User-facing messages for failures that do not carry a server message.
const (
	MsgUnauthorized = "Unauthorized. Please log in again."
	MsgBadRequest   = "Invalid data provided. Please check your inputs."
	MsgNetwork      = "Network error. Please check your connection."
	MsgStorage      = "Could not save your session on this device."
	MsgUnexpected   = "Something went wrong. Please try again."
)

// AppError is the typed error returned across component boundaries.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Status    int                    `json:"status,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code, so sentinel-style comparisons work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Status == 0 || t.Status == e.Status)
}

func (e *AppError) IsValidation() bool { return e.Code == ErrCodeValidation }

// IsUnauthorized reports a rejected credential, whichever side produced it.
func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized || (e.Code == ErrCodeHTTPStatus && e.Status == http.StatusUnauthorized)
}

func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound || (e.Code == ErrCodeHTTPStatus && e.Status == http.StatusNotFound)
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithStatus(status int) *AppError {
	e.Status = status
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// NewTransportError reports that no response was received.
func NewTransportError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTransport, fmt.Sprintf("Request failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewHTTPStatusError reports a response with a status the caller does not accept.
// serverMessage is the "message" field of the response body, if any.
func NewHTTPStatusError(operation string, status int, serverMessage string) *AppError {
	msg := serverMessage
	if msg == "" {
		msg = fmt.Sprintf("%s returned HTTP %d", operation, status)
	}
	return New(ErrCodeHTTPStatus, msg).
		WithStatus(status).
		WithDetail("operation", operation).
		WithDetail("server_message", serverMessage)
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("%s %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("Storage operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewDecodeError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDecode, fmt.Sprintf("Malformed response: %s", operation)).
		WithDetail("operation", operation)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, reason).WithStatus(http.StatusUnauthorized)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, reason).WithStatus(http.StatusForbidden)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithStatus(http.StatusNotFound).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewBadRequestError(message string) *AppError {
	return New(ErrCodeBadRequest, message).WithStatus(http.StatusBadRequest)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// UserMessage turns err into a message fit for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return err.Error()
	}
	switch appErr.Code {
	case ErrCodeTransport:
		return MsgNetwork
	case ErrCodeStorage:
		return MsgStorage
	case ErrCodeDecode:
		return MsgUnexpected
	case ErrCodeHTTPStatus:
		switch appErr.Status {
		case http.StatusUnauthorized:
			return MsgUnauthorized
		case http.StatusBadRequest:
			if sm, _ := appErr.Details["server_message"].(string); sm != "" {
				return sm
			}
			return MsgBadRequest
		}
		if sm, _ := appErr.Details["server_message"].(string); sm != "" {
			return sm
		}
		return MsgUnexpected
	}
	return appErr.Message
}
