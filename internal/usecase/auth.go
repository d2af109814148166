package usecase

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/agentgate/internal/audit"
	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/email"
)

// CredentialGateway is the upstream side of signup and login.
type CredentialGateway interface {
	Signup(ctx context.Context, profile domain.SignupProfile) (*domain.SignupResult, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
}

type CredentialUsecase struct {
	upstream CredentialGateway
	audit    audit.Recorder
	email    email.Sender
	logger   *slog.Logger
}

func NewCredentialUsecase(upstream CredentialGateway, recorder audit.Recorder, sender email.Sender, logger *slog.Logger) *CredentialUsecase {
	return &CredentialUsecase{
		upstream: upstream,
		audit:    recorder,
		email:    sender,
		logger:   logger.With("component", "credentials"),
	}
}

// Signup creates the account upstream. Missing fields fail before any
// network call. A failed welcome mail does not fail the signup.
func (u *CredentialUsecase) Signup(ctx context.Context, profile domain.SignupProfile) (*domain.SignupResult, error) {
	if err := domain.RequireProfile(profile); err != nil {
		return nil, err
	}

	res, err := u.upstream.Signup(ctx, profile)
	u.audit.Record(ctx, audit.OpSignup, profile.Email, err)
	if err != nil {
		return nil, err
	}

	u.sendWelcome(ctx, profile)
	return res, nil
}

func (u *CredentialUsecase) Login(ctx context.Context, emailAddr, password string) (*domain.Session, error) {
	if err := domain.RequireCredentials(emailAddr, password); err != nil {
		return nil, err
	}

	sess, err := u.upstream.Login(ctx, emailAddr, password)
	u.audit.Record(ctx, audit.OpLogin, emailAddr, err)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (u *CredentialUsecase) sendWelcome(ctx context.Context, profile domain.SignupProfile) {
	body, err := email.WelcomeBody(profile.Name, profile.Email)
	if err == nil {
		err = u.email.Send(ctx, profile.Email, email.WelcomeSubject, body)
	}
	if err != nil {
		u.logger.WarnContext(ctx, "welcome mail not sent", "error", err)
	}
}
