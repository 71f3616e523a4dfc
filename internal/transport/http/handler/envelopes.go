package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mystery-message-api/internal/domain"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SignUpEnvelope wraps the sign-up response.
type SignUpEnvelope struct {
	APIResponse
	User      *domain.User `json:"user,omitempty"`
	EmailSent bool         `json:"email_sent"`
}

// SignInEnvelope wraps the sign-in response.
type SignInEnvelope struct {
	APIResponse
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// AcceptanceEnvelope wraps acceptance gate reads and writes.
type AcceptanceEnvelope struct {
	APIResponse
	IsAcceptingMessage bool `json:"is_accepting_message"`
}

// MessagesEnvelope wraps an inbox listing.
type MessagesEnvelope struct {
	APIResponse
	Messages []domain.Message `json:"messages"`
}

// SuggestionsEnvelope wraps suggested conversation starters.
type SuggestionsEnvelope struct {
	APIResponse
	Suggestions []string `json:"suggestions"`
}

func ok(msg string) APIResponse { return APIResponse{Success: true, Message: msg} }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// httpError maps a service error onto a status code. Store and unknown
// failures are logged and answered with a generic message.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, publicMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyVerified), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRejected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage strips the trailing ": <sentinel>" so clients see the
// human-readable part only.
func publicMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrValidation, domain.ErrAlreadyVerified, domain.ErrConflict, domain.ErrNotFound,
		domain.ErrExpired, domain.ErrMismatch, domain.ErrUnauthorized, domain.ErrRejected, domain.ErrUpstream,
	} {
		suffix := ": " + sentinel.Error()
		msg := err.Error()
		if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
			return msg[:len(msg)-len(suffix)]
		}
	}
	return err.Error()
}
