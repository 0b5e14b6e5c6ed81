package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an APIError with the same code, so that
// errors.Is(err, ErrNotFound) matches any not-found error.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput  = NewAPIError("VALIDATION_ERROR", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized  = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound      = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal      = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict      = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrState         = NewAPIError("STATE_ERROR", "Operation not allowed in current state", http.StatusConflict)
	ErrPartialUpdate = NewAPIError("PARTIAL_UPDATE", "Update only partially applied", http.StatusInternalServerError)
	ErrStore         = NewAPIError("STORE_ERROR", "Datastore operation failed", http.StatusServiceUnavailable)
)

func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

func NotFound(format string, args ...any) *APIError {
	return NewAPIError(ErrNotFound.Code, fmt.Sprintf(format, args...), ErrNotFound.Status)
}

func Validation(format string, args ...any) *APIError {
	return NewAPIError(ErrInvalidInput.Code, fmt.Sprintf(format, args...), ErrInvalidInput.Status)
}

func State(format string, args ...any) *APIError {
	return NewAPIError(ErrState.Code, fmt.Sprintf(format, args...), ErrState.Status)
}

func Conflict(format string, args ...any) *APIError {
	return NewAPIError(ErrConflict.Code, fmt.Sprintf(format, args...), ErrConflict.Status)
}

// Store wraps a datastore failure. API errors pass through untouched.
func Store(err error, message string) *APIError {
	return Wrap(err, ErrStore.Code, message, ErrStore.Status)
}

// PartialUpdateError reports a multi-document operation that committed some
// of its steps. It names the operation, both documents and the failed step
// so the pair can be reconciled later.
type PartialUpdateError struct {
	Op          string `json:"op"`
	UserID      string `json:"user_id"`
	TargetID    string `json:"target_id"`
	Step        int    `json:"step"`
	StepName    string `json:"step_name"`
	Compensated bool   `json:"compensated"`
	Err         error  `json:"-"`
}

func (e *PartialUpdateError) Error() string {
	msg := fmt.Sprintf("%s: %s partially applied for user %s and %s: step %d (%s) failed",
		ErrPartialUpdate.Code, e.Op, e.UserID, e.TargetID, e.Step, e.StepName)
	if e.Compensated {
		msg += " (compensated)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrPartialUpdate only. Err is not unwrapped, so a partial
// update never reads as the kind of its cause.
func (e *PartialUpdateError) Is(target error) bool {
	return target == ErrPartialUpdate
}

// APIError renders the partial update for an HTTP response.
func (e *PartialUpdateError) APIError() *APIError {
	return NewAPIError(ErrPartialUpdate.Code, ErrPartialUpdate.Message, ErrPartialUpdate.Status,
		fmt.Sprintf("op=%s user=%s target=%s step=%d(%s) compensated=%t",
			e.Op, e.UserID, e.TargetID, e.Step, e.StepName, e.Compensated))
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsState(err error) bool      { return errors.Is(err, ErrState) }
func IsPartial(err error) bool    { return errors.Is(err, ErrPartialUpdate) }

// AsPartial returns the PartialUpdateError in err's chain, if any.
func AsPartial(err error) (*PartialUpdateError, bool) {
	var p *PartialUpdateError
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// ToAPIError converts any error into the APIError sent to clients.
func ToAPIError(err error) *APIError {
	if p, ok := AsPartial(err); ok {
		return p.APIError()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError("UNKNOWN_ERROR", "Unexpected error", ErrInternal.Status, err.Error())
}
