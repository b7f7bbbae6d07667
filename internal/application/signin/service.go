package signin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-marketplace-auth/internal/application/challenge"
	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-marketplace-auth/internal/pkg/validate"
)

// VerifyEmailPath is where an unverified sign-in is sent.
const VerifyEmailPath = "/verify-email"

const (
	msgInternal    = domain.MsgInternal
	msgInvalidCode = "Invalid or expired code"
	msgCodeSent    = "If the account exists, a sign-in code has been sent"
)

// Outcome tags the branch a sign-in took. The transport layer decides what
// a branch means on the wire.
type Outcome int

const (
	OutcomeSignedIn Outcome = iota
	OutcomeVerificationRequired
	OutcomeCodeSent
	OutcomeRejected
	OutcomeUndelivered
	OutcomeInternalError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSignedIn:
		return "signed-in"
	case OutcomeVerificationRequired:
		return "verification-required"
	case OutcomeCodeSent:
		return "code-sent"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUndelivered:
		return "undelivered"
	default:
		return "internal-error"
	}
}

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPSignInRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type Result struct {
	Outcome      Outcome
	Success      bool
	Message      string
	Session      *domain.AuthSession
	PendingEmail string
	RedirectTo   string
}

type Identity interface {
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	LookupByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Challenges interface {
	Issue(ctx context.Context, email string, purpose domain.Purpose) error
	Validate(ctx context.Context, email string, purpose domain.Purpose, otp string) (*challenge.ValidateResult, error)
}

type Service interface {
	SignIn(ctx context.Context, req Request) Result
	RequestOTP(ctx context.Context, req OTPRequest) Result
	SignInWithOTP(ctx context.Context, req OTPSignInRequest) Result
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

// SignIn checks the password. An unverified account gets a fresh
// email-verification challenge before the caller is told to redirect; if
// that issue fails no redirect is returned.
func (s *service) SignIn(ctx context.Context, req Request) Result {
	if err := validate.Struct(req); err != nil {
		return rejected(err)
	}
	email := domain.NormalizeEmail(req.Email)

	sess, err := s.identity.SignIn(ctx, email, req.Password)
	if err == nil {
		return Result{Outcome: OutcomeSignedIn, Success: true, Session: sess}
	}

	ae, ok := domain.AsAuthError(err)
	if !ok || ae.Reason == domain.ReasonUnknown {
		slog.Error("sign-in failed", "email", email, "err", err)
		return internalError()
	}
	if ae.Reason != domain.ReasonUnverified {
		return Result{Outcome: OutcomeRejected, Message: ae.Message}
	}

	if err := s.challenges.Issue(ctx, email, domain.PurposeEmailVerification); err != nil {
		if errors.Is(err, domain.ErrMailDelivery) {
			return Result{Outcome: OutcomeUndelivered, Message: domain.ErrMailDelivery.Error()}
		}
		slog.Error("re-verification issue failed", "email", email, "err", err)
		return internalError()
	}
	return Result{
		Outcome:      OutcomeVerificationRequired,
		Success:      false,
		Message:      ae.Message,
		PendingEmail: email,
		RedirectTo:   VerifyEmailPath,
	}
}

// RequestOTP mails a sign-in code. Unknown addresses get the same answer as
// known ones.
func (s *service) RequestOTP(ctx context.Context, req OTPRequest) Result {
	if err := validate.Struct(req); err != nil {
		return rejected(err)
	}
	email := domain.NormalizeEmail(req.Email)

	u, err := s.identity.LookupByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !u.Enable) {
		return Result{Outcome: OutcomeCodeSent, Success: true, Message: msgCodeSent}
	}
	if err != nil {
		slog.Error("sign-in otp lookup failed", "email", email, "err", err)
		return internalError()
	}
	if err := s.challenges.Issue(ctx, email, domain.PurposeSignIn); err != nil {
		if errors.Is(err, domain.ErrMailDelivery) {
			return Result{Outcome: OutcomeUndelivered, Message: domain.ErrMailDelivery.Error()}
		}
		slog.Error("sign-in otp issue failed", "email", email, "err", err)
		return internalError()
	}
	return Result{Outcome: OutcomeCodeSent, Success: true, Message: msgCodeSent}
}

func (s *service) SignInWithOTP(ctx context.Context, req OTPSignInRequest) Result {
	if err := validate.Struct(req); err != nil {
		return rejected(err)
	}
	email := domain.NormalizeEmail(req.Email)

	res, err := s.challenges.Validate(ctx, email, domain.PurposeSignIn, req.OTP)
	if err != nil {
		if ae, ok := domain.AsAuthError(err); ok && ae.Reason != domain.ReasonUnknown {
			return Result{Outcome: OutcomeRejected, Message: ae.Message}
		}
		slog.Error("sign-in otp validation failed", "email", email, "err", err)
		return internalError()
	}
	if !res.Verified || res.Session == nil {
		return Result{Outcome: OutcomeRejected, Message: msgInvalidCode}
	}
	return Result{Outcome: OutcomeSignedIn, Success: true, Session: res.Session}
}

func rejected(err error) Result {
	return Result{Outcome: OutcomeRejected, Message: err.Error()}
}

func internalError() Result {
	return Result{Outcome: OutcomeInternalError, Message: msgInternal}
}
