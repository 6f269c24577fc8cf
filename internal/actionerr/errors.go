package actionerr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kinds of failure surfaced by the action. Match them with errors.Is.
var (
	ErrMissingParameter      = errors.New("missing parameter")
	ErrMissingAddress        = errors.New("missing address")
	ErrAuthConfiguration     = errors.New("auth configuration")
	ErrTokenAcquisition      = errors.New("token acquisition")
	ErrInvalidAttributes     = errors.New("invalid attributes")
	ErrIdentityConflict      = errors.New("identity conflict")
	ErrExistenceCheck        = errors.New("existence check")
	ErrUnreconciledDuplicate = errors.New("unreconciled duplicate")
	ErrCreateUser            = errors.New("create user")
)

var kindNames = map[error]string{
	ErrMissingParameter:      "MissingParameterError",
	ErrMissingAddress:        "MissingAddressError",
	ErrAuthConfiguration:     "AuthConfigurationError",
	ErrTokenAcquisition:      "TokenAcquisitionError",
	ErrInvalidAttributes:     "InvalidAttributesError",
	ErrIdentityConflict:      "IdentityConflictError",
	ErrExistenceCheck:        "ExistenceCheckError",
	ErrUnreconciledDuplicate: "UnreconciledDuplicateError",
	ErrCreateUser:            "CreateUserError",
}

// Error carries a failure kind together with the provider status code and raw body, when known.
type Error struct {
	Kind       error
	Message    string
	StatusCode int
	Body       json.RawMessage
	Err        error
}

// New constructs an Error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithStatus attaches the provider status code and body.
func (e *Error) WithStatus(statusCode int, body json.RawMessage) *Error {
	e.StatusCode = statusCode
	e.Body = body
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	unwrapped := make([]error, 0, 2)
	if e.Kind != nil {
		unwrapped = append(unwrapped, e.Kind)
	}
	if e.Err != nil {
		unwrapped = append(unwrapped, e.Err)
	}
	return unwrapped
}

// KindName returns the stable name of the error kind, e.g. "CreateUserError".
func (e *Error) KindName() string {
	if name, ok := kindNames[e.Kind]; ok {
		return name
	}
	return "Error"
}

// StatusCode reports the provider status code attached to err, if any.
func StatusCode(err error) (int, bool) {
	var actionErr *Error
	if errors.As(err, &actionErr) && actionErr.StatusCode != 0 {
		return actionErr.StatusCode, true
	}
	return 0, false
}

// IsRetryable reports whether the orchestrator should retry err based on its status code.
func IsRetryable(err error) bool {
	statusCode, ok := StatusCode(err)
	if !ok {
		return false
	}
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
