package passwordreset

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-marketplace-auth/internal/application/challenge"
	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-marketplace-auth/internal/pkg/validate"
)

// SignInPath is where a reset page without a token sends the browser.
const SignInPath = "/sign-in"

const (
	msgInternal      = domain.MsgInternal
	msgChanged       = "Password updated"
	msgLinkSent      = "If the account exists, a reset link has been sent"
	msgCodeSent      = "If the account exists, a reset code has been sent"
	msgInvalidCode   = "Invalid or expired code"
	msgTokenRequired = "reset token is required"
)

type ChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strongpassword"`
}

type LinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type TokenResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password" validate:"required,strongpassword"`
}

type OTPResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric"`
	NewPassword string `json:"new_password" validate:"required,strongpassword"`
}

type Identity interface {
	ChangePassword(ctx context.Context, userID, current, next string) error
	MintResetLink(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, next string) error
	SetPassword(ctx context.Context, userID, next string) error
	LookupByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Challenges interface {
	Issue(ctx context.Context, email string, purpose domain.Purpose) error
	Validate(ctx context.Context, email string, purpose domain.Purpose, otp string) (*challenge.ValidateResult, error)
}

type Service interface {
	ChangePassword(ctx context.Context, userID string, req ChangeRequest) domain.Result
	RequestResetLink(ctx context.Context, req LinkRequest) domain.Result
	ResetWithToken(ctx context.Context, req TokenResetRequest) domain.Result
	RequestResetOTP(ctx context.Context, req LinkRequest) domain.Result
	ResetWithOTP(ctx context.Context, req OTPResetRequest) domain.Result
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

// ChangePassword swaps the credential of a signed-in user. Backend
// rejections are passed through verbatim.
func (s *service) ChangePassword(ctx context.Context, userID string, req ChangeRequest) domain.Result {
	if err := validate.Struct(req); err != nil {
		return domain.Fail(err.Error())
	}
	if err := s.identity.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		return backendFailure("change password", err)
	}
	return domain.Ok(msgChanged)
}

func (s *service) RequestResetLink(ctx context.Context, req LinkRequest) domain.Result {
	if err := validate.Struct(req); err != nil {
		return domain.Fail(err.Error())
	}
	if err := s.identity.MintResetLink(ctx, domain.NormalizeEmail(req.Email)); err != nil {
		if errors.Is(err, domain.ErrMailDelivery) {
			return domain.FailUndelivered("failed to send reset link")
		}
		return backendFailure("mint reset link", err)
	}
	return domain.Ok(msgLinkSent)
}

func (s *service) ResetWithToken(ctx context.Context, req TokenResetRequest) domain.Result {
	if req.Token == "" {
		return domain.Fail(msgTokenRequired)
	}
	if err := validate.Struct(req); err != nil {
		return domain.Fail(err.Error())
	}
	if err := s.identity.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return backendFailure("reset password", err)
	}
	return domain.Ok(msgChanged)
}

// RequestResetOTP mails a forget-password code. Unknown addresses are not
// revealed.
func (s *service) RequestResetOTP(ctx context.Context, req LinkRequest) domain.Result {
	if err := validate.Struct(req); err != nil {
		return domain.Fail(err.Error())
	}
	email := domain.NormalizeEmail(req.Email)

	u, err := s.identity.LookupByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !u.Enable) {
		return domain.Ok(msgCodeSent)
	}
	if err != nil {
		return backendFailure("reset otp lookup", err)
	}
	if err := s.challenges.Issue(ctx, email, domain.PurposeForgetPassword); err != nil {
		if errors.Is(err, domain.ErrMailDelivery) {
			return domain.FailUndelivered(domain.ErrMailDelivery.Error())
		}
		return backendFailure("reset otp issue", err)
	}
	return domain.Ok(msgCodeSent)
}

func (s *service) ResetWithOTP(ctx context.Context, req OTPResetRequest) domain.Result {
	if err := validate.Struct(req); err != nil {
		return domain.Fail(err.Error())
	}
	email := domain.NormalizeEmail(req.Email)

	res, err := s.challenges.Validate(ctx, email, domain.PurposeForgetPassword, req.OTP)
	if err != nil {
		return backendFailure("reset otp validate", err)
	}
	if !res.Verified {
		return domain.Fail(msgInvalidCode)
	}
	u, err := s.identity.LookupByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Fail(msgInvalidCode)
	}
	if err != nil {
		return backendFailure("reset otp lookup", err)
	}
	if !u.Enable {
		return domain.Fail(msgInvalidCode)
	}
	if err := s.identity.SetPassword(ctx, u.UserID, req.NewPassword); err != nil {
		return backendFailure("reset otp set password", err)
	}
	return domain.Ok(msgChanged)
}

// backendFailure passes tagged backend messages through and hides anything else.
func backendFailure(op string, err error) domain.Result {
	if ae, ok := domain.AsAuthError(err); ok && ae.Reason != domain.ReasonUnknown {
		return domain.Fail(ae.Message)
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return domain.Fail(ve.Message)
	}
	slog.Error("password flow failed", "op", op, "err", err)
	return domain.FailInternalError()
}
