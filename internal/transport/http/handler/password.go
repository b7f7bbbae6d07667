package handler

import (
	"net/http"

	"github.com/go-marketplace-auth/internal/application/passwordreset"
	"github.com/go-marketplace-auth/internal/transport/http/middleware"
)

// PasswordHandler handles password change and recovery endpoints.
type PasswordHandler struct {
	svc passwordreset.Service
}

func NewPasswordHandler(svc passwordreset.Service) *PasswordHandler {
	return &PasswordHandler{svc: svc}
}

func (h *PasswordHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordreset.LinkRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, h.svc.RequestResetLink(r.Context(), req))
}

func (h *PasswordHandler) ForgetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req passwordreset.LinkRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, h.svc.RequestResetOTP(r.Context(), req))
}

func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordreset.TokenResetRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	writeResult(w, http.StatusOK, h.svc.ResetWithToken(r.Context(), req))
}

func (h *PasswordHandler) ResetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req passwordreset.OTPResetRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, h.svc.ResetWithOTP(r.Context(), req))
}

func (h *PasswordHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req passwordreset.ChangeRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, h.svc.ChangePassword(r.Context(), sess.User.UserID, req))
}
