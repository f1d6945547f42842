package grant

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only grant store. Create assigns the next id in
// the table's monotonic sequence.
type Repository interface {
	Create(ctx context.Context, g *Grant) error
	GetByID(ctx context.Context, id int64) (*Grant, error)
	Deactivate(ctx context.Context, id int64) error
	ListByPair(ctx context.Context, patientID, providerID uuid.UUID) ([]*Grant, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Grant, int, error)
}
