package handler

import (
	"net/http"
	"time"

	"github.com/go-marketplace-auth/internal/application/identity"
	"github.com/go-marketplace-auth/internal/domain"
)

// SessionCookies mirrors the bearer token into an HttpOnly cookie so browser
// navigation (and the route gate) sees the session.
type SessionCookies struct {
	Secure bool
}

func (c *SessionCookies) Set(w http.ResponseWriter, s *domain.AuthSession) {
	ck := &http.Cookie{
		Name:     identity.SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.Session != nil && s.Session.ExpiresAt > 0 {
		ck.Expires = time.Unix(s.Session.ExpiresAt, 0)
	}
	http.SetCookie(w, ck)
}

func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
