package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dtadmin/internal/validate"
)

var (
	// ErrAccessDenied rejects a login for an account that is neither admin nor moderator.
	ErrAccessDenied = errors.New("access denied: admin or moderator privileges required")
	// ErrNoRefreshToken means a 401 could not be recovered because no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrNoSession is returned by calls that need a signed-in session when none is stored.
	ErrNoSession = errors.New("not signed in")
)

// AccessDeniedMessage is shown when ErrAccessDenied ends a login.
const AccessDeniedMessage = "Access denied. Admin or moderator privileges required."

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method    string
	Path      string
	Status    int
	Detail    string
	Message   string
	ErrorText string
	// Fields holds per-field validation messages keyed by field path.
	Fields    validate.FieldErrors
	RequestID string
}

func (e *APIError) Error() string {
	msg := e.ServerMessage()
	if msg == "" && len(e.Fields) > 0 {
		msg = e.Fields.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// ServerMessage returns the first of detail, message and error the server sent.
func (e *APIError) ServerMessage() string {
	for _, s := range []string{e.Detail, e.Message, e.ErrorText} {
		if s != "" {
			return s
		}
	}
	return ""
}

func newAPIError(method, path string, r *response) *APIError {
	e := &APIError{Method: method, Path: path, Status: r.status, RequestID: r.requestID}
	var raw map[string]json.RawMessage
	if json.Unmarshal(r.body, &raw) != nil {
		return e
	}
	e.Message = rawString(raw["message"])
	e.ErrorText = rawString(raw["error"])

	d := raw["detail"]
	if s := rawString(d); s != "" {
		e.Detail = s
		return e
	}
	// FastAPI-style validation: [{"loc": ["body", "email"], "msg": "..."}]
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(d, &items) == nil && len(items) > 0 {
		e.Fields = validate.FieldErrors{}
		for _, it := range items {
			field := fieldPath(it.Loc)
			if _, dup := e.Fields[field]; !dup {
				e.Fields[field] = it.Msg
			}
		}
		return e
	}
	var obj struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if json.Unmarshal(d, &obj) == nil {
		e.Detail = obj.Message
		if len(obj.Fields) > 0 {
			e.Fields = validate.FieldErrors(obj.Fields)
		}
	}
	return e
}

// fieldPath drops the leading "body"/"query" location and joins the rest.
func fieldPath(loc []any) string {
	parts := make([]string, 0, len(loc))
	for i, p := range loc {
		s := fmt.Sprint(p)
		if i == 0 && (s == "body" || s == "query" || s == "path") && len(loc) > 1 {
			continue
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "_"
	}
	return strings.Join(parts, ".")
}

func rawString(b json.RawMessage) string {
	if len(b) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(b, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// TransportError means no response was received.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status of an APIError, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// FieldErrorsOf returns per-field messages from client pre-validation or
// from a server validation response.
func FieldErrorsOf(err error) validate.FieldErrors {
	var fe validate.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}

// Message picks the best user-facing text for err: server detail, server
// message, server error, field errors, the transport error text, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAccessDenied) {
		return AccessDeniedMessage
	}
	var fe validate.FieldErrors
	if errors.As(err, &fe) {
		return fe.Error()
	}
	var ae *APIError
	if errors.As(err, &ae) {
		if m := ae.ServerMessage(); m != "" {
			return m
		}
		if len(ae.Fields) > 0 {
			return ae.Fields.Error()
		}
		return fallback
	}
	var te *TransportError
	if errors.As(err, &te) {
		if errors.Is(te.Err, context.DeadlineExceeded) {
			return "request timed out"
		}
		return te.Err.Error()
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}

// LoginMessage is Message with the login-specific 401 fallback.
func LoginMessage(err error) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.ServerMessage() == "" && ae.Status == http.StatusUnauthorized {
		return "Invalid credentials"
	}
	return Message(err, "Login failed")
}
