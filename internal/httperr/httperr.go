// Package httperr provides a small typed error used by every HTTP handler
// in this module, and the single helper that writes it to the wire.
//
// Handlers return (result, error) from their internal logic; the route
// function is the only place that knows how to translate an error into
// an HTTP status and a JSON envelope.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gastrolog/internal/wire"
)

// Error is a status-carrying error returned by handler logic.
type Error struct {
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with the given HTTP status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap creates an Error with the given HTTP status, message, and
// underlying cause, which is preserved for logging but never echoed to
// the client verbatim (message is the client-visible text).
func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, cause: cause}
}

// NotFound, Conflict, BadRequest, Unavailable, and Internal are
// shorthand constructors for the five statuses in the error taxonomy.
func NotFound(message string) *Error    { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error    { return New(http.StatusConflict, message) }
func BadRequest(message string) *Error  { return New(http.StatusBadRequest, message) }
func Unavailable(message string) *Error { return New(http.StatusServiceUnavailable, message) }
func Internal(message string) *Error    { return New(http.StatusInternalServerError, message) }

// Write translates err into an HTTP status and JSON error envelope. If
// err is not an *Error, it is treated as an unexpected 500. A nil
// logger is safe: nothing is logged then.
func Write(w http.ResponseWriter, logger *slog.Logger, err error) {
	var herr *Error
	if !errors.As(err, &herr) {
		herr = Internal("internal error")
		herr.cause = err
	}

	if logger != nil && herr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", herr.Status, "error", herr.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(herr.Status)
	_ = json.NewEncoder(w).Encode(wire.Error(herr.Message))
}

// WriteJSON writes a 200 response with the given JSON-encodable value.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into dst, returning a 400 Error on
// any parse failure (REDESIGN: spec.md §7 leaves this undefined;
// implementations SHOULD 400).
func DecodeJSON(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return BadRequest("invalid request body: " + err.Error())
	}
	return nil
}
