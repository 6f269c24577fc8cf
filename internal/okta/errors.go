package okta

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DuplicateValueErrorCode is the errorCode Okta returns for validation failures,
	// including a login that already exists.
	DuplicateValueErrorCode = "E0000001"
	loginCausePrefix        = "login:"
)

// ErrorCause is one entry of the errorCauses list in an Okta error body.
type ErrorCause struct {
	Summary string `json:"errorSummary"`
}

type errorDocument struct {
	ErrorCode    string       `json:"errorCode"`
	ErrorSummary string       `json:"errorSummary"`
	ErrorID      string       `json:"errorId"`
	ErrorCauses  []ErrorCause `json:"errorCauses"`
}

// APIError describes a non-success response from the Okta API.
type APIError struct {
	StatusCode int
	Code       string
	Summary    string
	RequestID  string
	Causes     []ErrorCause
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	if e.Summary != "" {
		return e.Summary
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsNotFound reports whether the API answered 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsDuplicateLogin reports whether the error is Okta's signal that the login is already taken.
func (e *APIError) IsDuplicateLogin() bool {
	if e.Code != DuplicateValueErrorCode {
		return false
	}
	for _, cause := range e.Causes {
		if strings.HasPrefix(cause.Summary, loginCausePrefix) {
			return true
		}
	}
	return false
}

// parseAPIError builds an APIError from a raw response body. The bool result is false when the
// body was not a JSON error document; the error is still usable with a status-only message.
func parseAPIError(statusCode int, payload []byte) (*APIError, bool) {
	apiErr := &APIError{StatusCode: statusCode}
	if len(payload) == 0 {
		return apiErr, false
	}
	var document errorDocument
	if err := json.Unmarshal(payload, &document); err != nil {
		return apiErr, false
	}
	apiErr.Code = document.ErrorCode
	apiErr.Summary = document.ErrorSummary
	apiErr.RequestID = document.ErrorID
	apiErr.Causes = document.ErrorCauses
	apiErr.Body = json.RawMessage(append([]byte(nil), payload...))
	return apiErr, true
}
