package core

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeNotFound   = "not_found"
	ErrCodeForbidden  = "forbidden"
	ErrCodeConflict   = "conflict"
	ErrCodeInvalid    = "invalid"
	ErrCodeCallEnded  = "call_ended"
	ErrCodeBadRequest = "bad_request"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
