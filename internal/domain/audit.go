package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeSuccess = "success"
)

// AuditEvent records one credential or link call. The email is stored only
// as a SHA-256 hex digest.
type AuditEvent struct {
	ID        uuid.UUID
	RequestID string
	Operation string
	// Outcome is OutcomeSuccess or the Kind of the failure.
	Outcome   string
	EmailHash string
	Status    int
	CreatedAt time.Time
}
