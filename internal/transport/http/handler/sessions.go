package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-marketplace-auth/internal/transport/http/middleware"
)

type SignOuter interface {
	SignOut(ctx context.Context, sessionID string) error
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc     SignOuter
	cookies *SessionCookies
}

func NewSessionHandler(svc SignOuter, cookies *SessionCookies) *SessionHandler {
	return &SessionHandler{svc: svc, cookies: cookies}
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sessionView(sess.Session), User: sess.User})
}

func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.SignOut(r.Context(), sess.Session.SessionID); err != nil {
		slog.Error("sign-out failed", "session_id", sess.Session.SessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "signed out"})
}
