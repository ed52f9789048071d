package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes the API answers with.
const (
	CodeObjectNotFound      = "ObjectNotFound"
	CodeNotFound            = "NotFound"
	CodeObjectAlreadyExists = "ObjectAlreadyExists"
	CodeInvalidRequest      = "InvalidRequest"
	CodeForbidden           = "Forbidden"
	CodeNotImplemented      = "NotImplemented"
	CodeServiceUnavailable  = "ServiceUnavailable"
	CodeInternalError       = "InternalError"
	CodeTooManyRequests     = "TooManyRequests"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// newAPIError builds an APIError from a response body. Bodies that are not
// error documents still yield an error carrying the status.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{}
	if err := json.Unmarshal(body, e); err != nil || e.ErrorCode == "" {
		e = &APIError{Message: http.StatusText(status)}
		if len(body) > 0 && len(body) < 512 {
			e.Message = string(body)
		}
	}
	e.StatusCode = status
	return e
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// HasStatus reports whether err is an API error with the given status.
func HasStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode == status
}

// HasCode reports whether err is an API error with the given error code.
func HasCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.ErrorCode == code
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool { return HasStatus(err, http.StatusNotFound) }

// IsAlreadyExists reports whether err is a name collision.
func IsAlreadyExists(err error) bool { return HasCode(err, CodeObjectAlreadyExists) }

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
