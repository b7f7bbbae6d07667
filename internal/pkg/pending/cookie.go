package pending

import (
	"net/http"
	"time"
)

const (
	// CookieName is fixed; the verification page reads it back.
	CookieName = "pending_verification_email"
	maxAge     = 24 * time.Hour
)

// Cookie remembers which email is mid-verification between the sign-in
// redirect and the verification page. It only carries an email address and is
// never consulted to decide whether an account is verified.
type Cookie struct {
	Secure bool
}

func New(secure bool) *Cookie {
	return &Cookie{Secure: secure}
}

// Set writes the raw email as an HttpOnly, path-scoped cookie valid for 24h.
func (c *Cookie) Set(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    email,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get returns the pending email, if any.
func (c *Cookie) Get(r *http.Request) (string, bool) {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Clear deletes the cookie.
func (c *Cookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
