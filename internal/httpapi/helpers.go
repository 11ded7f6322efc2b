package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/certsherpa/quiz-app/internal/quiz"
)

// Error codes let remote clients map failures back to session errors.
const (
	codeNotFound          = "not_found"
	codeBusy              = "busy"
	codeInvalidTransition = "invalid_transition"
	codeNoSelection       = "no_selection"
	codeInvalidOption     = "invalid_option"
	codePersistFailed     = "persist_failed"
)

func statusForError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, codeNotFound, "session not found"
	case errors.Is(err, quiz.ErrBusy):
		return http.StatusConflict, codeBusy, "another operation is in progress"
	case errors.Is(err, quiz.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidTransition, "operation not allowed in the current state"
	case errors.Is(err, quiz.ErrNoSelection):
		return http.StatusBadRequest, codeNoSelection, "select an option first"
	case errors.Is(err, quiz.ErrInvalidOption):
		return http.StatusBadRequest, codeInvalidOption, "option must be one of A, B, C, D"
	case errors.Is(err, quiz.ErrPersistFailed):
		return http.StatusBadGateway, codePersistFailed, "failed to record response"
	default:
		return http.StatusInternalServerError, "", "request failed"
	}
}

// writeServiceError maps session errors to a status. When the session is
// known its snapshot rides along, so clients can render without a second call.
func writeServiceError(w http.ResponseWriter, err error, session *sessionResponse) {
	status, code, message := statusForError(err)
	if session != nil && session.ErrorMessage != "" && errors.Is(err, quiz.ErrPersistFailed) {
		message = session.ErrorMessage
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code, Session: session})
}

func parseBoolParam(r *http.Request, key string) bool {
	value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	return value == "1" || value == "true" || value == "yes"
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
