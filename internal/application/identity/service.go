package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-marketplace-auth/internal/domain"
	jwtinfra "github.com/go-marketplace-auth/internal/infrastructure/jwt"
	"github.com/go-marketplace-auth/internal/pkg/id"
	"github.com/go-marketplace-auth/internal/pkg/mailtmpl"
	pkgtoken "github.com/go-marketplace-auth/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookieName carries the session token for browser clients.
const SessionCookieName = "session_token"

// Messages surfaced verbatim to callers.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgUnverified         = "Email is not verified"
	msgAccountDisabled    = "Account is disabled"
	msgWrongPassword      = "Current password is incorrect"
	msgInvalidResetToken  = "Reset link is invalid or has expired"
)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkVerified(ctx context.Context, userID string, at time.Time) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

type ResetTokenStore interface {
	Put(ctx context.Context, t *domain.ResetToken) error
	Consume(ctx context.Context, tokenHash string) (*domain.ResetToken, error)
}

type TokenProvider interface {
	Sign(userID, role, sessionID string) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type Mailer interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}

// Service is the identity backend: it owns password hashing, session
// issuance and reset-token minting.
type Service interface {
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	MintResetLink(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, next string) error
	SetPassword(ctx context.Context, userID, next string) error
	GetSession(ctx context.Context, header http.Header) (*domain.AuthSession, error)
	CompleteChallenge(ctx context.Context, email string, purpose domain.Purpose) (*domain.AuthSession, error)
	LookupByEmail(ctx context.Context, email string) (*domain.User, error)
	SignOut(ctx context.Context, sessionID string) error
}

type ServiceDeps struct {
	Users           UserStore
	Sessions        SessionStore
	ResetTokens     ResetTokenStore
	Tokens          TokenProvider
	Mailer          Mailer
	BaseURL         string
	SessionExpiry   time.Duration
	ResetLinkExpiry time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost; tests lower it.
	BcryptCost int
	Now        func() time.Time
}

type service struct {
	deps ServiceDeps
	// dummyHash is compared against on unknown emails so that a miss costs
	// the same bcrypt work as a wrong password.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.BcryptCost == 0 {
		deps.BcryptCost = bcrypt.DefaultCost
	}
	if deps.SessionExpiry == 0 {
		deps.SessionExpiry = 7 * 24 * time.Hour
	}
	if deps.ResetLinkExpiry == 0 {
		deps.ResetLinkExpiry = time.Hour
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("no-such-account"), deps.BcryptCost)
	if err != nil {
		slog.Error("dummy password hash", "err", err)
	}
	return &service{deps: deps, dummyHash: dummy, compare: bcrypt.CompareHashAndPassword}
}

func (s *service) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	u, err := s.deps.Users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		_ = s.compare(s.dummyHash, []byte(password))
		return nil, &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgInvalidCredentials}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := s.compare([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgInvalidCredentials}
	}
	if !u.Enable {
		return nil, &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgAccountDisabled}
	}
	if !u.Verified {
		return nil, &domain.AuthError{Reason: domain.ReasonUnverified, Message: msgUnverified}
	}
	return s.issueSession(ctx, u)
}

func (s *service) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if _, err := s.deps.Users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.deps.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.deps.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", u.UserID)
	return u, nil
}

func (s *service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.deps.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.compare([]byte(u.PasswordHash), []byte(current)); err != nil {
		return &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgWrongPassword}
	}
	return s.SetPassword(ctx, userID, next)
}

// MintResetLink mails a single-use reset URL. Unknown addresses are ignored
// so the response never reveals whether an account exists.
func (s *service) MintResetLink(ctx context.Context, email string) error {
	u, err := s.deps.Users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		slog.Debug("reset link requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	tok, err := pkgtoken.NewOpaque()
	if err != nil {
		return err
	}
	rt := &domain.ResetToken{
		TokenHash: pkgtoken.Hash(tok),
		UserID:    u.UserID,
		ExpiresAt: s.deps.Now().Add(s.deps.ResetLinkExpiry).Unix(),
	}
	if err := s.deps.ResetTokens.Put(ctx, rt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	err = s.deps.Mailer.Send(ctx, domain.MailMessage{
		To:       u.Email,
		Subject:  "Reset your password",
		Template: domain.TemplateActionLink,
		Payload: domain.ActionLinkPayload{
			Description: "We received a request to reset your password. Open the link below to choose a new one.",
			URL:         s.deps.BaseURL + "/reset-password?token=" + tok,
			ExpiryLabel: mailtmpl.ExpiryLabel(s.deps.ResetLinkExpiry),
		},
	})
	if err != nil {
		slog.Warn("reset link delivery failed", "user_id", u.UserID, "err", err)
		return fmt.Errorf("%w: %v", domain.ErrMailDelivery, err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, next string) error {
	rt, err := s.deps.ResetTokens.Consume(ctx, pkgtoken.Hash(token))
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgInvalidResetToken}
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if s.deps.Now().Unix() >= rt.ExpiresAt {
		return &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgInvalidResetToken}
	}
	return s.SetPassword(ctx, rt.UserID, next)
}

// SetPassword replaces the hash and revokes every session of the user.
func (s *service) SetPassword(ctx context.Context, userID, next string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.deps.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.deps.Users.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	if err := s.deps.Sessions.DisableByUser(ctx, userID); err != nil {
		slog.Warn("failed to revoke sessions after password change", "user_id", userID, "err", err)
	}
	return nil
}

// GetSession resolves the caller from a Bearer Authorization header or the
// session cookie, in that order.
func (s *service) GetSession(ctx context.Context, header http.Header) (*domain.AuthSession, error) {
	tok := bearerToken(header)
	if tok == "" {
		return nil, fmt.Errorf("missing session token: %w", domain.ErrUnauthorized)
	}
	claims, err := s.deps.Tokens.Verify(tok)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", domain.ErrUnauthorized)
	}
	sess, err := s.deps.Sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !sess.Enable || s.deps.Now().Unix() >= sess.ExpiresAt {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.deps.Users.Get(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("session user: %w", domain.ErrUnauthorized)
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	sess.User = u
	return &domain.AuthSession{Token: tok, Session: sess, User: u}, nil
}

// CompleteChallenge runs after an OTP was consumed. Email verification and
// OTP sign-in both prove control of the mailbox, so both mark the account
// verified and open a session; a forget-password code opens nothing.
func (s *service) CompleteChallenge(ctx context.Context, email string, purpose domain.Purpose) (*domain.AuthSession, error) {
	if purpose == domain.PurposeForgetPassword {
		return nil, nil
	}
	u, err := s.deps.Users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.Enable {
		return nil, &domain.AuthError{Reason: domain.ReasonInvalidCredentials, Message: msgAccountDisabled}
	}
	if !u.Verified {
		now := s.deps.Now().UTC()
		if err := s.deps.Users.MarkVerified(ctx, u.UserID, now); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		u.Verified = true
		u.VerifiedAt = &now
		slog.Info("email verified", "user_id", u.UserID)
	}
	return s.issueSession(ctx, u)
}

func (s *service) LookupByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.deps.Users.GetByEmail(ctx, domain.NormalizeEmail(email))
}

func (s *service) SignOut(ctx context.Context, sessionID string) error {
	return s.deps.Sessions.Disable(ctx, sessionID)
}

func (s *service) issueSession(ctx context.Context, u *domain.User) (*domain.AuthSession, error) {
	now := s.deps.Now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		UserID:    u.UserID,
		Enable:    true,
		ExpiresAt: now.Add(s.deps.SessionExpiry).Unix(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	tok, err := s.deps.Tokens.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	sess.User = u
	return &domain.AuthSession{Token: tok, Session: sess, User: u}, nil
}

func bearerToken(header http.Header) string {
	if h := header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	c, err := (&http.Request{Header: header}).Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
