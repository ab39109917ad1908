package core

import (
	"errors"
	"net/http"
)

// HTTPError is an HTTP error with a status code and a stable short code
// string that clients can branch on.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // machine-readable code, e.g. "invalid_credentials"
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnprocessableEntity = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
)

// NewHTTPError creates a custom HTTP error.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

// ValidationDetails is implemented by errors that expose per-field
// validation problems.
type ValidationDetails interface {
	error
	// Details returns field name -> problems.
	Details() map[string][]string
}

// JSONError maps err to a structured error response. HTTPError values
// keep their status and key; validation errors become 422 with field
// details; anything else is a 500 with no internal detail leaked.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{Code: "internal_error"}

	var httpErr HTTPError
	var valErr ValidationDetails
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Details = valErr.Details()
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(httpErr.Code)
	}

	return jsonResponse{
		status: status,
		body:   JSONResponse{Error: detail},
	}
}
