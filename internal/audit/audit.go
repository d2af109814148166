// Package audit keeps a trail of credential and agent-link calls.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/reqctx"
	"github.com/ErlanBelekov/agentgate/internal/repository"
	"github.com/google/uuid"
)

const (
	OpSignup    = "signup"
	OpLogin     = "login"
	OpAgentLink = "agent_link"
)

type Recorder interface {
	Record(ctx context.Context, op, email string, err error)
}

// Trail writes events to a repository. Write failures are logged and never
// reach the caller.
type Trail struct {
	repo   repository.AuditRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewTrail(repo repository.AuditRepository, logger *slog.Logger) *Trail {
	return &Trail{
		repo:   repo,
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}
}

func (t *Trail) Record(ctx context.Context, op, email string, err error) {
	e := NewEvent(ctx, op, email, err, t.now())
	if werr := t.repo.Insert(ctx, &e); werr != nil {
		t.logger.WarnContext(ctx, "audit write failed", "operation", op, "error", werr)
	}
}

// NewEvent builds the event for one call outcome.
func NewEvent(ctx context.Context, op, email string, err error, at time.Time) domain.AuditEvent {
	e := domain.AuditEvent{
		ID:        uuid.New(),
		RequestID: reqctx.RequestID(ctx),
		Operation: op,
		Outcome:   domain.OutcomeSuccess,
		EmailHash: HashEmail(email),
		CreatedAt: at.UTC(),
	}
	if err != nil {
		e.Outcome = "internal"
		if de, ok := domain.AsError(err); ok {
			e.Outcome = string(de.Kind)
			e.Status = de.Status
		}
	}
	return e
}

// HashEmail normalises and hashes an address. Empty in, empty out.
func HashEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// LogRepository stands in for postgres when no database is configured.
type LogRepository struct {
	logger *slog.Logger
}

func NewLogRepository(logger *slog.Logger) *LogRepository {
	return &LogRepository{logger: logger.With("component", "audit")}
}

func (r *LogRepository) Insert(ctx context.Context, e *domain.AuditEvent) error {
	r.logger.InfoContext(ctx, "audit",
		"event_id", e.ID.String(),
		"operation", e.Operation,
		"outcome", e.Outcome,
		"status", e.Status,
	)
	return nil
}
