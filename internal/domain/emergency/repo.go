package emergency

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists emergency episodes.
type Repository interface {
	Create(ctx context.Context, e *Episode) error
	GetByID(ctx context.Context, id int64) (*Episode, error)
	// Update rewrites the mutable fields of an existing episode:
	// records_accessed, notification_sent and is_active.
	Update(ctx context.Context, e *Episode) error
	// LatestByPair returns the most recently opened episode for the pair,
	// or RecordNotFound when the pair has never had one.
	LatestByPair(ctx context.Context, patientID, providerID uuid.UUID) (*Episode, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Episode, int, error)
}
