package signup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-marketplace-auth/internal/application/challenge"
	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-marketplace-auth/internal/pkg/validate"
)

const (
	msgInternal      = domain.MsgInternal
	msgEmailTaken    = "An account with this email already exists"
	msgCheckInbox    = "Account created. Check your email for a verification code"
	msgCodeSent      = "If the account needs verification, a code has been sent"
	msgInvalidCode   = "Invalid or expired code"
	msgEmailVerified = "Email verified"
)

// Request fields are validated in declaration order; the first failure wins.
type Request struct {
	Name     string `json:"name" validate:"required,personname"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
}

type ResendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type Result struct {
	domain.Result
	User *domain.User `json:"user,omitempty"`
	// PendingEmail is the address now awaiting verification.
	PendingEmail string              `json:"-"`
	Session      *domain.AuthSession `json:"-"`
}

type Identity interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	LookupByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Challenges interface {
	Issue(ctx context.Context, email string, purpose domain.Purpose) error
	Validate(ctx context.Context, email string, purpose domain.Purpose, otp string) (*challenge.ValidateResult, error)
}

type Service interface {
	SignUp(ctx context.Context, req Request) Result
	ResendVerification(ctx context.Context, req ResendRequest) Result
	VerifyEmail(ctx context.Context, req VerifyRequest) Result
}

type ServiceDeps struct {
	Identity   Identity
	Challenges Challenges
}

type service struct {
	identity   Identity
	challenges Challenges
}

func NewService(deps ServiceDeps) Service {
	return &service{identity: deps.Identity, challenges: deps.Challenges}
}

// SignUp registers the credential and sends the first verification code.
func (s *service) SignUp(ctx context.Context, req Request) Result {
	if err := validate.Struct(req); err != nil {
		return fail(err.Error())
	}
	email := domain.NormalizeEmail(req.Email)

	u, err := s.identity.Register(ctx, req.Name, email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fail(msgEmailTaken)
		}
		if ae, ok := domain.AsAuthError(err); ok && ae.Reason != domain.ReasonUnknown {
			return fail(ae.Message)
		}
		slog.Error("sign-up failed", "email", email, "err", err)
		return internalFailure()
	}

	if err := s.challenges.Issue(ctx, email, domain.PurposeEmailVerification); err != nil {
		if errors.Is(err, domain.ErrMailDelivery) {
			return Result{Result: domain.FailUndelivered(domain.ErrMailDelivery.Error()), User: u, PendingEmail: email}
		}
		slog.Error("verification issue after sign-up failed", "user_id", u.UserID, "err", err)
		return Result{Result: domain.FailInternalError(), User: u, PendingEmail: email}
	}
	return Result{Result: domain.Ok(msgCheckInbox), User: u, PendingEmail: email}
}

// ResendVerification reissues the email-verification code. The answer is the
// same whether or not the address exists or is already verified.
func (s *service) ResendVerification(ctx context.Context, req ResendRequest) Result {
	if err := validate.Struct(req); err != nil {
		return fail(err.Error())
	}
	email := domain.NormalizeEmail(req.Email)

	u, err := s.identity.LookupByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && (u.Verified || !u.Enable)) {
		return Result{Result: domain.Ok(msgCodeSent)}
	}
	if err != nil {
		slog.Error("resend verification lookup failed", "email", email, "err", err)
		return internalFailure()
	}
	if err := s.challenges.Issue(ctx, email, domain.PurposeEmailVerification); err != nil {
		if errors.Is(err, domain.ErrMailDelivery) {
			return Result{Result: domain.FailUndelivered(domain.ErrMailDelivery.Error())}
		}
		slog.Error("resend verification issue failed", "email", email, "err", err)
		return internalFailure()
	}
	return Result{Result: domain.Ok(msgCodeSent), PendingEmail: email}
}

// VerifyEmail consumes an email-verification code and opens a session.
func (s *service) VerifyEmail(ctx context.Context, req VerifyRequest) Result {
	if err := validate.Struct(req); err != nil {
		return fail(err.Error())
	}
	email := domain.NormalizeEmail(req.Email)

	res, err := s.challenges.Validate(ctx, email, domain.PurposeEmailVerification, req.OTP)
	if err != nil {
		if ae, ok := domain.AsAuthError(err); ok && ae.Reason != domain.ReasonUnknown {
			return fail(ae.Message)
		}
		slog.Error("email verification failed", "email", email, "err", err)
		return internalFailure()
	}
	if !res.Verified {
		return fail(msgInvalidCode)
	}
	out := Result{Result: domain.Ok(msgEmailVerified), Session: res.Session}
	if res.Session != nil {
		out.User = res.Session.User
	}
	return out
}

func fail(msg string) Result {
	return Result{Result: domain.Fail(msg)}
}

func internalFailure() Result {
	return Result{Result: domain.FailInternalError()}
}
