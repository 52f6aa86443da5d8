package web

// errors.go turns handler errors into responses.
//
// Every error is logged with its request id and mapped through core.MapError,
// so clients always get {error, message, action, code}. The HTTP status is
// derived from the code group.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/logging"
	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Action  string                 `json:"action,omitempty"`
	Code    string                 `json:"code"`
	Fields  []messaging.FieldError `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for a mapped error.
func statusFor(msg core.UserMessage) int {
	switch msg.Code {
	case "BAT002":
		return http.StatusServiceUnavailable
	case "BAT003", "BAT004":
		return http.StatusNotFound
	case "BAT006":
		return http.StatusGatewayTimeout
	case "REQ001":
		return http.StatusBadRequest
	case "RATE001":
		return http.StatusTooManyRequests
	case "GATE001":
		return http.StatusUnauthorized
	}
	switch {
	case strings.HasPrefix(msg.Code, "MSG00") && msg.Code != "MSG003",
		strings.HasPrefix(msg.Code, "TBL"),
		msg.Code == "BAT001":
		return http.StatusBadRequest
	case strings.HasPrefix(msg.Code, "SHEET"), msg.Code == "MSG003":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped error. status 0 derives the
// status from the error code.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	if status == 0 {
		status = statusFor(msg)
	}

	log := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if msg.Code == "BAT002" {
		w.Header().Set("Retry-After", "5")
	}

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.Page("Error", templates.ErrorAlert(msg)).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code}
	var verr *messaging.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSONStatus(w, status, resp)
}

// wantsJSON reports whether the client expects a JSON body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a small JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		return &badRequestError{err: err}
	}
	return nil
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "bad request: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }
