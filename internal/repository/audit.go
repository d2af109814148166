package repository

import (
	"context"

	"github.com/ErlanBelekov/agentgate/internal/domain"
)

type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
}
