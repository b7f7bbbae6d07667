package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/go-marketplace-auth/internal/application/challenge"
	"github.com/go-marketplace-auth/internal/application/identity"
	"github.com/go-marketplace-auth/internal/application/passwordreset"
	"github.com/go-marketplace-auth/internal/application/signin"
	"github.com/go-marketplace-auth/internal/application/signup"
	"github.com/go-marketplace-auth/internal/config"
	"github.com/go-marketplace-auth/internal/pkg/pending"
	"github.com/go-marketplace-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-marketplace-auth/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	identitySvc := identity.NewService(identity.ServiceDeps{
		Users:           deps.Users,
		Sessions:        deps.Sessions,
		ResetTokens:     deps.ResetTokens,
		Tokens:          deps.Tokens,
		Mailer:          deps.Mailer,
		BaseURL:         cfg.AppBaseURL,
		SessionExpiry:   cfg.JWTExpiry,
		ResetLinkExpiry: cfg.ResetLinkExpiry,
	})
	challengeSvc := challenge.NewService(challenge.ServiceDeps{
		Store:       deps.Challenges,
		Cipher:      deps.Cipher,
		Mailer:      deps.Mailer,
		Completer:   identitySvc,
		OTPDigits:   cfg.OTPDigits,
		MaxAttempts: cfg.OTPMaxAttempts,
		Expiry:      cfg.OTPExpiry,
	})
	signupSvc := signup.NewService(signup.ServiceDeps{Identity: identitySvc, Challenges: challengeSvc})
	signinSvc := signin.NewService(signin.ServiceDeps{Identity: identitySvc, Challenges: challengeSvc})
	resetSvc := passwordreset.NewService(passwordreset.ServiceDeps{Identity: identitySvc, Challenges: challengeSvc})

	pendingCookie := pending.New(cfg.IsProduction())
	sessionCookies := &handler.SessionCookies{Secure: cfg.IsProduction()}

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(signupSvc, signinSvc, resetSvc, pendingCookie, sessionCookies)
	pwH := handler.NewPasswordHandler(resetSvc)
	sessionH := handler.NewSessionHandler(identitySvc, sessionCookies)
	pageH := handler.NewPageHandler(pendingCookie)

	// Sign-in, OTP and reset endpoints share one per-IP bucket.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.Gate(identitySvc, cfg.ProtectedPrefixes))

	r.Get("/verify-email", pageH.VerifyEmail)
	r.Get("/reset-password", pageH.ResetPassword)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)

				r.Post("/sign-up", authH.SignUp)
				r.Post("/sign-in", authH.SignIn)
				r.Post("/sign-in/email-otp", authH.SignInWithOTP)
				r.Post("/email-otp/{action}", authH.EmailOTP)
				r.Post("/forget-password", pwH.ForgetPassword)
				r.Post("/forget-password/email-otp", pwH.ForgetPasswordOTP)
				r.Post("/reset-password", pwH.ResetPassword)
				r.Post("/reset-password/email-otp", pwH.ResetPasswordOTP)
			})
			r.Delete("/pending-identity", authH.ClearPending)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(identitySvc))

				r.Get("/session", sessionH.GetCurrent)
				r.Post("/sign-out", sessionH.SignOut)
				r.Post("/change-password", pwH.ChangePassword)
			})
		})
	})

	return r
}
