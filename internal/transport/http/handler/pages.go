package handler

import (
	"net/http"

	"github.com/go-marketplace-auth/internal/application/passwordreset"
	"github.com/go-marketplace-auth/internal/pkg/pending"
)

// PageHandler backs the two pages whose entry depends on request state.
// Rendering belongs to the front end; these routes only decide between a
// redirect and the data the page needs.
type PageHandler struct {
	pending *pending.Cookie
}

func NewPageHandler(pc *pending.Cookie) *PageHandler { return &PageHandler{pending: pc} }

func (h *PageHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	email, ok := h.pending.Get(r)
	if !ok {
		http.Redirect(w, r, passwordreset.SignInPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, PageEnvelope{Page: "verify-email", Email: email})
}

func (h *PageHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, passwordreset.SignInPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, PageEnvelope{Page: "reset-password", Token: token})
}
