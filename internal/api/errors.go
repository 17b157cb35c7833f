package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/itemkeeper/internal/item"
)

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"
)

// Gate messages. Every rejected bearer token gets one of exactly these two.
const (
	msgMissingAuthHeader = "Missing or invalid Authorization header"
	msgInvalidToken      = "Invalid or expired token"
)

// Error is a failure classified for the wire. Handlers return it (or any
// other error, which becomes a 500) and Server.handle writes the envelope.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any

	cause error
	stack []string
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// errorBody is the JSON envelope for every failure.
type errorBody struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details any      `json:"details,omitempty"`
	Stack   []string `json:"stack,omitempty"`
}

func errBadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

func errValidation(message string, details any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: message, Details: details}
}

func errUnauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

func errNotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

func errInternal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: "Internal Server Error", cause: cause}
}

// classify turns any error into an *Error. Domain errors that have a wire
// meaning are mapped here; everything else is a 500.
func classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *item.ValidationError
	switch {
	case errors.As(err, &verr):
		return errValidation(verr.Message, map[string]string{"field": verr.Field})
	case errors.Is(err, item.ErrNotFound):
		return errNotFound("Item not found")
	}

	return errInternal(err)
}

// errorChain lists the messages of err and everything it wraps.
func errorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError normalises err into the failure envelope. Diagnostic detail
// is only attached in development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)

	if apiErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
	} else {
		s.logger.Debug("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", apiErr.Status,
			"error", err,
		)
	}

	body := errorBody{
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
	if s.devMode {
		switch {
		case apiErr.stack != nil:
			body.Stack = apiErr.stack
		case apiErr.cause != nil:
			body.Stack = errorChain(apiErr.cause)
		}
	}

	writeJSON(w, apiErr.Status, body)
}

// stackLines splits a goroutine dump into trimmed, non-empty lines.
func stackLines(stack []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
