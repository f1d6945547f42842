package sharing

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists sharing agreements.
type Repository interface {
	Create(ctx context.Context, a *Agreement) error
	GetByID(ctx context.Context, id int64) (*Agreement, error)
	Deactivate(ctx context.Context, id int64) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Agreement, int, error)
	ListByPair(ctx context.Context, patientID, recipientID uuid.UUID) ([]*Agreement, error)
}
