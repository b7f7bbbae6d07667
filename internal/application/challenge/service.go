package challenge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-marketplace-auth/internal/pkg/cipher"
	"github.com/go-marketplace-auth/internal/pkg/id"
	"github.com/go-marketplace-auth/internal/pkg/mailtmpl"
	pkgtoken "github.com/go-marketplace-auth/internal/pkg/token"
)

// Store persists at most one challenge per (email, purpose).
type Store interface {
	Put(ctx context.Context, c *domain.Challenge) error
	Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error)
	// Consume deletes the challenge only if it still has challengeID and
	// reports whether this caller was the one that deleted it.
	Consume(ctx context.Context, email string, purpose domain.Purpose, challengeID string) (bool, error)
	// RecordFailure counts one wrong code against challengeID and removes the
	// challenge once maxAttempts is reached. It returns the new count, or 0
	// when challengeID is no longer current.
	RecordFailure(ctx context.Context, email string, purpose domain.Purpose, challengeID string, maxAttempts int) (int, error)
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}

// Completer runs the account-side effect of a consumed challenge.
type Completer interface {
	CompleteChallenge(ctx context.Context, email string, purpose domain.Purpose) (*domain.AuthSession, error)
}

// ValidateResult is the outcome of a validation. A wrong, expired or missing
// code is Verified=false with a nil error.
type ValidateResult struct {
	Verified bool
	Session  *domain.AuthSession
}

type Service interface {
	Issue(ctx context.Context, email string, purpose domain.Purpose) error
	Validate(ctx context.Context, email string, purpose domain.Purpose, otp string) (*ValidateResult, error)
}

type ServiceDeps struct {
	Store     Store
	Cipher    Cipher
	Mailer    Mailer
	Completer Completer
	OTPDigits int
	// MaxAttempts is how many wrong codes a challenge survives.
	MaxAttempts int
	Expiry    time.Duration
	Now       func() time.Time
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	if deps.OTPDigits == 0 {
		deps.OTPDigits = 6
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 3
	}
	if deps.Expiry == 0 {
		deps.Expiry = 5 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{deps: deps}
}

type mailCopy struct {
	subject     string
	description string
}

var purposeCopy = map[domain.Purpose]mailCopy{
	domain.PurposeEmailVerification: {"Verify your email", "Use this code to verify your email address."},
	domain.PurposeSignIn:            {"Your sign-in code", "Use this code to finish signing in."},
	domain.PurposeForgetPassword:    {"Reset your password", "Use this code to reset your password."},
}

func (s *service) Issue(ctx context.Context, email string, purpose domain.Purpose) error {
	if !purpose.Valid() {
		return fmt.Errorf("unknown challenge purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	email = domain.NormalizeEmail(email)

	otp, err := pkgtoken.NewOTP(s.deps.OTPDigits)
	if err != nil {
		return err
	}
	envelope, err := s.deps.Cipher.Encrypt(otp)
	if err != nil {
		return fmt.Errorf("encrypt otp: %w", err)
	}
	now := s.deps.Now().UTC()
	c := &domain.Challenge{
		Email:       email,
		Purpose:     purpose,
		ChallengeID: id.New(),
		Envelope:    envelope,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.deps.Expiry).Unix(),
	}
	if err := s.deps.Store.Put(ctx, c); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}

	cp := purposeCopy[purpose]
	err = s.deps.Mailer.Send(ctx, domain.MailMessage{
		To:       email,
		Subject:  cp.subject,
		Template: domain.TemplateOTPCode,
		Payload: domain.OTPCodePayload{
			Description: cp.description,
			Code:        otp,
			ExpiryLabel: mailtmpl.ExpiryLabel(s.deps.Expiry),
		},
	})
	if err != nil {
		slog.Warn("otp delivery failed", "email", email, "purpose", purpose, "err", err)
		// An undelivered code must not stay redeemable. Conditional on the id
		// so a concurrent reissue survives.
		if _, cerr := s.deps.Store.Consume(ctx, email, purpose, c.ChallengeID); cerr != nil {
			slog.Warn("undelivered challenge not withdrawn", "email", email, "purpose", purpose, "err", cerr)
		}
		return fmt.Errorf("%w: %v", domain.ErrMailDelivery, err)
	}
	slog.Info("otp issued", "email", email, "purpose", purpose, "challenge_id", c.ChallengeID)
	return nil
}

func (s *service) Validate(ctx context.Context, email string, purpose domain.Purpose, otp string) (*ValidateResult, error) {
	email = domain.NormalizeEmail(email)
	notVerified := &ValidateResult{Verified: false}
	if otp == "" || !purpose.Valid() {
		return notVerified, nil
	}

	c, err := s.deps.Store.Get(ctx, email, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return notVerified, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	if c.Expired(s.deps.Now()) {
		if _, err := s.deps.Store.Consume(ctx, email, purpose, c.ChallengeID); err != nil {
			slog.Warn("failed to drop expired challenge", "email", email, "purpose", purpose, "err", err)
		}
		return notVerified, nil
	}

	if c.Attempts >= s.deps.MaxAttempts {
		if _, err := s.deps.Store.Consume(ctx, email, purpose, c.ChallengeID); err != nil {
			slog.Warn("failed to drop exhausted challenge", "email", email, "purpose", purpose, "err", err)
		}
		return notVerified, nil
	}

	expected, err := s.deps.Cipher.Decrypt(c.Envelope)
	if err != nil {
		var ce *cipher.Error
		if errors.As(err, &ce) {
			slog.Warn("stored challenge could not be decrypted", "email", email, "purpose", purpose, "challenge_id", c.ChallengeID)
			return notVerified, nil
		}
		return nil, fmt.Errorf("decrypt challenge: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(otp)) != 1 {
		n, err := s.deps.Store.RecordFailure(ctx, email, purpose, c.ChallengeID, s.deps.MaxAttempts)
		if err != nil {
			return nil, fmt.Errorf("record wrong code: %w", err)
		}
		if n >= s.deps.MaxAttempts {
			slog.Warn("challenge locked after wrong codes", "email", email, "purpose", purpose, "challenge_id", c.ChallengeID, "attempts", n)
		}
		return notVerified, nil
	}

	consumed, err := s.deps.Store.Consume(ctx, email, purpose, c.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	if !consumed {
		return notVerified, nil
	}

	res := &ValidateResult{Verified: true}
	if s.deps.Completer != nil {
		sess, err := s.deps.Completer.CompleteChallenge(ctx, email, purpose)
		if err != nil {
			return nil, fmt.Errorf("complete challenge: %w", err)
		}
		res.Session = sess
	}
	return res, nil
}
