package audit

import (
	"context"

	"github.com/google/uuid"
)

// LogRepository persists access log entries. Append-only: there is no
// update or delete.
type LogRepository interface {
	Append(ctx context.Context, e *AccessLogEntry) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error)
}

// AuditRepository persists per-patient compliance aggregates.
type AuditRepository interface {
	// GetByPatient returns the patient's audit row, or RecordNotFound when
	// the patient has a clean history.
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*ComplianceAudit, error)
	Upsert(ctx context.Context, a *ComplianceAudit) error
}
