package apperrors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the single error type crossing package boundaries. Kind decides how
// callers react: validation and transition errors never reach the network, request
// errors are shown to the user, network errors degrade read paths, auth errors go
// back to the session guard.
type AppError struct {
	Kind    Kind      `json:"kind"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Status  int       `json:"-"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s (%v)", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// HTTPStatus is the status the local gateway answers with.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindTransition:
		return http.StatusConflict
	case KindRequest:
		if e.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case KindNetwork:
		return http.StatusBadGateway
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code ErrorCode, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Wrap(err error, kind Kind, code ErrorCode, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(message string, fields map[string]string) *AppError {
	e := New(KindValidation, CodeValidationFailed, message)
	if len(fields) > 0 {
		e.Details = fields
	}
	return e
}

// Rejected builds a RequestError from an upstream 4xx or a success:false envelope.
func Rejected(status int, message string) *AppError {
	code := CodeRequestRejected
	if status == http.StatusNotFound {
		code = CodeNotFound
	}
	return &AppError{Kind: KindRequest, Code: code, Message: message, Status: status}
}

func Network(err error, message string) *AppError {
	return Wrap(err, KindNetwork, CodeUnreachable, message)
}

func Upstream(status int, message string) *AppError {
	return &AppError{Kind: KindNetwork, Code: CodeUpstreamFailure, Message: message, Status: status}
}

func Unauthorized(status int, message string) *AppError {
	code := CodeUnauthorized
	if status == http.StatusForbidden {
		code = CodeForbidden
	}
	return &AppError{Kind: KindAuth, Code: code, Message: message, Status: status}
}

func Transition(code ErrorCode, message string) *AppError {
	return New(KindTransition, code, message)
}

func Internal(err error) *AppError {
	return Wrap(err, KindInternal, CodeInternalError, "Internal error")
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf reports the kind of the first AppError in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From returns err as an AppError, wrapping foreign errors as internal.
func From(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
