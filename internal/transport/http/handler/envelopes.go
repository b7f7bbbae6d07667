package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-marketplace-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps every response that opens a session.
type AuthEnvelope struct {
	Bearer  string          `json:"Bearer,omitempty"`
	Session *domain.Session `json:"session,omitempty"`
	User    *domain.User    `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	User    *domain.User    `json:"user,omitempty"`
}

// PageEnvelope is what the page routes hand the front end once the redirect
// checks pass.
type PageEnvelope struct {
	Page  string `json:"page"`
	Email string `json:"email,omitempty"`
	Token string `json:"token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeResult maps an orchestrator result onto the wire.
func writeResult(w http.ResponseWriter, okStatus int, res domain.Result) {
	if res.Success {
		writeJSON(w, okStatus, MessageEnvelope{Message: res.Message})
		return
	}
	writeError(w, failureStatus(res.Kind), res.Message)
}

// failureStatus picks the status for a failed result.
func failureStatus(kind domain.FailureKind) int {
	switch kind {
	case domain.FailInternal:
		return http.StatusInternalServerError
	case domain.FailDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func authEnvelope(s *domain.AuthSession, msg string) AuthEnvelope {
	return AuthEnvelope{Bearer: s.Token, Session: sessionView(s.Session), User: s.User, Message: msg}
}

// sessionView drops the embedded user; envelopes carry it separately.
func sessionView(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	v := *s
	v.User = nil
	return &v
}
