package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-marketplace-auth/internal/application/passwordreset"
	"github.com/go-marketplace-auth/internal/application/signin"
	"github.com/go-marketplace-auth/internal/application/signup"
	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-marketplace-auth/internal/pkg/pending"
)

// AuthHandler serves sign-up, sign-in and the email OTP endpoints.
type AuthHandler struct {
	signup   signup.Service
	signin   signin.Service
	reset    passwordreset.Service
	pending  *pending.Cookie
	sessions *SessionCookies
}

func NewAuthHandler(su signup.Service, si signin.Service, reset passwordreset.Service, pc *pending.Cookie, sc *SessionCookies) *AuthHandler {
	return &AuthHandler{signup: su, signin: si, reset: reset, pending: pc, sessions: sc}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signup.Request
	if !decode(w, r, &req) {
		return
	}
	res := h.signup.SignUp(r.Context(), req)
	if res.PendingEmail != "" {
		h.pending.Set(w, res.PendingEmail)
	}
	if !res.Success {
		writeError(w, failureStatus(res.Kind), res.Message)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string       `json:"message"`
		User    *domain.User `json:"user,omitempty"`
	}{res.Message, res.User})
}

// SignIn performs the redirect the orchestrator decided on. An unverified
// account leaves with the pending cookie set and a 303 to the verification page.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signin.Request
	if !decode(w, r, &req) {
		return
	}
	h.writeSignIn(w, r, h.signin.SignIn(r.Context(), req))
}

func (h *AuthHandler) SignInWithOTP(w http.ResponseWriter, r *http.Request) {
	var req signin.OTPSignInRequest
	if !decode(w, r, &req) {
		return
	}
	res := h.signin.SignInWithOTP(r.Context(), req)
	if res.Outcome == signin.OutcomeSignedIn {
		h.pending.Clear(w)
	}
	h.writeSignIn(w, r, res)
}

func (h *AuthHandler) writeSignIn(w http.ResponseWriter, r *http.Request, res signin.Result) {
	switch res.Outcome {
	case signin.OutcomeSignedIn:
		h.sessions.Set(w, res.Session)
		writeJSON(w, http.StatusOK, authEnvelope(res.Session, res.Message))
	case signin.OutcomeVerificationRequired:
		h.pending.Set(w, res.PendingEmail)
		http.Redirect(w, r, res.RedirectTo, http.StatusSeeOther)
	case signin.OutcomeCodeSent:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: res.Message})
	case signin.OutcomeRejected:
		writeError(w, http.StatusUnauthorized, res.Message)
	case signin.OutcomeUndelivered:
		writeError(w, http.StatusBadGateway, res.Message)
	default:
		writeError(w, http.StatusInternalServerError, res.Message)
	}
}

type otpBody struct {
	Email string         `json:"email"`
	Type  domain.Purpose `json:"type"`
	OTP   string         `json:"otp"`
}

// EmailOTP handles /email-otp/{action}: "send" issues a code for the given
// type, "verify" completes email verification. Both fall back to the pending
// cookie when the body carries no email.
func (h *AuthHandler) EmailOTP(w http.ResponseWriter, r *http.Request) {
	var body otpBody
	if !decode(w, r, &body) {
		return
	}
	if body.Email == "" {
		body.Email, _ = h.pending.Get(r)
	}
	switch chi.URLParam(r, "action") {
	case "send":
		h.sendOTP(w, r, body)
	case "verify":
		h.verifyEmail(w, r, body)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *AuthHandler) sendOTP(w http.ResponseWriter, r *http.Request, body otpBody) {
	switch body.Type {
	case domain.PurposeEmailVerification:
		res := h.signup.ResendVerification(r.Context(), signup.ResendRequest{Email: body.Email})
		if res.PendingEmail != "" {
			h.pending.Set(w, res.PendingEmail)
		}
		writeResult(w, http.StatusOK, res.Result)
	case domain.PurposeSignIn:
		h.writeSignIn(w, r, h.signin.RequestOTP(r.Context(), signin.OTPRequest{Email: body.Email}))
	case domain.PurposeForgetPassword:
		writeResult(w, http.StatusOK, h.reset.RequestResetOTP(r.Context(), passwordreset.LinkRequest{Email: body.Email}))
	default:
		writeError(w, http.StatusBadRequest, "unknown otp type")
	}
}

func (h *AuthHandler) verifyEmail(w http.ResponseWriter, r *http.Request, body otpBody) {
	res := h.signup.VerifyEmail(r.Context(), signup.VerifyRequest{Email: body.Email, OTP: body.OTP})
	if !res.Success {
		writeError(w, failureStatus(res.Kind), res.Message)
		return
	}
	h.pending.Clear(w)
	if res.Session == nil {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: res.Message})
		return
	}
	h.sessions.Set(w, res.Session)
	writeJSON(w, http.StatusOK, authEnvelope(res.Session, res.Message))
}

func (h *AuthHandler) ClearPending(w http.ResponseWriter, _ *http.Request) {
	h.pending.Clear(w)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pending identity cleared"})
}
