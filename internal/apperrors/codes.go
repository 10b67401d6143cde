package apperrors

type Kind string

const (
	KindValidation Kind = "validation"
	KindRequest    Kind = "request"
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindTransition Kind = "transition"
	KindInternal   Kind = "internal"
)

type ErrorCode string

const (
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeRequestRejected   ErrorCode = "REQUEST_REJECTED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeUpstreamFailure   ErrorCode = "UPSTREAM_FAILURE"
	CodeUnreachable       ErrorCode = "UNREACHABLE"
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	CodeNoSession         ErrorCode = "NO_SESSION"
	CodeInvalidStatus     ErrorCode = "INVALID_STATUS"
	CodeNotAssigned       ErrorCode = "NOT_ASSIGNED"
	CodeUnknownQuotation  ErrorCode = "UNKNOWN_QUOTATION"
	CodeAlreadyQuoted     ErrorCode = "ALREADY_QUOTED"
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"
)
