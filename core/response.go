// Package core defines the HTTP response envelope and the error
// taxonomy shared by every handler: stable status codes with short,
// machine-readable code strings instead of HTML error pages.
package core

import (
	"encoding/json"
	"net/http"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// JSONResponse is the standard JSON response body.
type JSONResponse struct {
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the machine-readable error code plus optional
// per-field details from validation.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	if j.body == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a 200 response with the given payload.
func JSON(data any) Response {
	return jsonResponse{status: http.StatusOK, body: data}
}

// JSONStatus creates a response with an explicit status code.
func JSONStatus(status int, data any) Response {
	return jsonResponse{status: status, body: data}
}

// Message creates a 200 response with only a message field. Used by
// enumeration-safe endpoints that always report generic success.
func Message(msg string) Response {
	return jsonResponse{status: http.StatusOK, body: JSONResponse{Message: msg}}
}

// NoContent creates an empty 204 response.
func NoContent() Response {
	return jsonResponse{status: http.StatusNoContent}
}

type redirectResponse struct {
	status int
	url    string
}

func (rr redirectResponse) Render(w http.ResponseWriter, r *http.Request) error {
	http.Redirect(w, r, rr.url, rr.status)
	return nil
}

// Redirect creates a 302 redirect response.
func Redirect(url string) Response {
	return redirectResponse{status: http.StatusFound, url: url}
}

// Render writes resp, falling back to a bare 500 if rendering fails.
func Render(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		http.Error(w, `{"error":{"code":"internal_error"}}`, http.StatusInternalServerError)
	}
}
