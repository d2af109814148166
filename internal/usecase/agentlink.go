package usecase

import (
	"context"

	"github.com/ErlanBelekov/agentgate/internal/audit"
	"github.com/ErlanBelekov/agentgate/internal/domain"
)

type AgentLinkGateway interface {
	AgentLink(ctx context.Context, token, userTime string) (*domain.AgentLink, error)
}

type AgentLinkUsecase struct {
	upstream AgentLinkGateway
	audit    audit.Recorder
}

func NewAgentLinkUsecase(upstream AgentLinkGateway, recorder audit.Recorder) *AgentLinkUsecase {
	return &AgentLinkUsecase{upstream: upstream, audit: recorder}
}

// FetchAgentLink exchanges a bearer session for a signed agent URL.
// userTime is passed through verbatim.
func (u *AgentLinkUsecase) FetchAgentLink(ctx context.Context, sess domain.Session, userTime string) (*domain.AgentLink, error) {
	if sess.AccessToken == "" {
		return nil, domain.NewAuthError(domain.MsgTokenRequired)
	}
	if userTime == "" {
		return nil, domain.NewValidationError(domain.MsgUserTimeRequired)
	}

	link, err := u.upstream.AgentLink(ctx, sess.AccessToken, userTime)
	u.audit.Record(ctx, audit.OpAgentLink, "", err)
	if err != nil {
		return nil, err
	}
	return link, nil
}
