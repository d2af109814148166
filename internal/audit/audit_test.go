package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/audit"
	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/reqctx"
	"github.com/stretchr/testify/require"
)

type fakeAuditRepo struct {
	insert func(ctx context.Context, e *domain.AuditEvent) error
}

func (r *fakeAuditRepo) Insert(ctx context.Context, e *domain.AuditEvent) error {
	return r.insert(ctx, e)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewEvent_Success(t *testing.T) {
	ctx := reqctx.WithRequestID(context.Background(), "req-1")
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	e := audit.NewEvent(ctx, audit.OpLogin, "Ana@Example.com ", nil, at)

	require.Equal(t, "req-1", e.RequestID)
	require.Equal(t, domain.OutcomeSuccess, e.Outcome)
	require.Equal(t, audit.HashEmail("ana@example.com"), e.EmailHash)
	require.NotContains(t, e.EmailHash, "@")
	require.Equal(t, at, e.CreatedAt)
}

func TestNewEvent_DomainError(t *testing.T) {
	err := domain.NewUpstreamError("boom", 503, nil)
	e := audit.NewEvent(context.Background(), audit.OpSignup, "a@b.co", err, time.Now())

	require.Equal(t, "upstream", e.Outcome)
	require.Equal(t, 503, e.Status)
}

func TestNewEvent_PlainError(t *testing.T) {
	e := audit.NewEvent(context.Background(), audit.OpSignup, "", errors.New("x"), time.Now())
	require.Equal(t, "internal", e.Outcome)
	require.Empty(t, e.EmailHash)
}

func TestTrail_WriteFailureIsSwallowed(t *testing.T) {
	var got *domain.AuditEvent
	repo := &fakeAuditRepo{insert: func(_ context.Context, e *domain.AuditEvent) error {
		got = e
		return errors.New("db down")
	}}

	audit.NewTrail(repo, discard).Record(context.Background(), audit.OpAgentLink, "a@b.co", domain.NewAuthError(domain.MsgSessionExpired))

	require.NotNil(t, got)
	require.Equal(t, audit.OpAgentLink, got.Operation)
	require.Equal(t, "auth", got.Outcome)
}

func TestLogRepository_Insert(t *testing.T) {
	e := audit.NewEvent(context.Background(), audit.OpLogin, "a@b.co", nil, time.Now())
	require.NoError(t, audit.NewLogRepository(discard).Insert(context.Background(), &e))
}
