package emergency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medconsent/medconsent/internal/platform/db"
	"github.com/medconsent/medconsent/internal/platform/errcode"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const episodeCols = `id, patient_id, provider_id, emergency_type, granted_at, expires_at,
	records_accessed, notification_sent, is_active`

func scanEpisode(row pgx.Row) (*Episode, error) {
	var e Episode
	err := row.Scan(&e.ID, &e.PatientID, &e.ProviderID, &e.EmergencyType,
		&e.GrantedAt, &e.ExpiresAt, &e.RecordsAccessed, &e.NotificationSent, &e.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errcode.New(errcode.RecordNotFound, "episode not found")
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Episode) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_episodes (patient_id, provider_id, emergency_type,
			granted_at, expires_at, records_accessed, notification_sent, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		e.PatientID, e.ProviderID, e.EmergencyType,
		e.GrantedAt, e.ExpiresAt, e.RecordsAccessed, e.NotificationSent, e.IsActive,
	).Scan(&e.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Episode, error) {
	return scanEpisode(r.conn(ctx).QueryRow(ctx,
		`SELECT `+episodeCols+` FROM emergency_episodes WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, e *Episode) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE emergency_episodes
		SET records_accessed = $2, notification_sent = $3, is_active = $4
		WHERE id = $1`,
		e.ID, e.RecordsAccessed, e.NotificationSent, e.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errcode.New(errcode.RecordNotFound, "episode not found")
	}
	return nil
}

func (r *repoPG) LatestByPair(ctx context.Context, patientID, providerID uuid.UUID) (*Episode, error) {
	return scanEpisode(r.conn(ctx).QueryRow(ctx, `
		SELECT `+episodeCols+` FROM emergency_episodes
		WHERE patient_id = $1 AND provider_id = $2
		ORDER BY granted_at DESC, id DESC
		LIMIT 1`,
		patientID, providerID))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Episode, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM emergency_episodes WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+episodeCols+` FROM emergency_episodes
		WHERE patient_id = $1
		ORDER BY granted_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.ID, &e.PatientID, &e.ProviderID, &e.EmergencyType,
			&e.GrantedAt, &e.ExpiresAt, &e.RecordsAccessed, &e.NotificationSent, &e.IsActive); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
