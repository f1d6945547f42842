package grant

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

const grantCols = `id, patient_id, provider_id, categories, level, granted_at, expires_at,
	purpose, conditions, is_active, auto_revoke`

func scanGrant(row pgx.Row) (*Grant, error) {
	var g Grant
	var level int
	err := row.Scan(&g.ID, &g.PatientID, &g.ProviderID, &g.Categories, &level,
		&g.GrantedAt, &g.ExpiresAt, &g.Purpose, &g.Conditions, &g.IsActive, &g.AutoRevoke)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errcode.New(errcode.RecordNotFound, "grant not found")
	}
	g.Level = Level(level)
	return &g, err
}

func (r *repoPG) Create(ctx context.Context, g *Grant) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO permission_grants (patient_id, provider_id, categories, level,
			granted_at, expires_at, purpose, conditions, is_active, auto_revoke)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		g.PatientID, g.ProviderID, g.Categories, int(g.Level),
		g.GrantedAt, g.ExpiresAt, g.Purpose, g.Conditions, g.IsActive, g.AutoRevoke,
	).Scan(&g.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Grant, error) {
	return scanGrant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+grantCols+` FROM permission_grants WHERE id = $1`, id))
}

func (r *repoPG) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE permission_grants SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errcode.New(errcode.RecordNotFound, "grant not found")
	}
	return nil
}

func (r *repoPG) ListByPair(ctx context.Context, patientID, providerID uuid.UUID) ([]*Grant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+grantCols+` FROM permission_grants
		WHERE patient_id = $1 AND provider_id = $2
		ORDER BY granted_at DESC, id DESC`,
		patientID, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Grant, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM permission_grants WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+grantCols+` FROM permission_grants
		WHERE patient_id = $1
		ORDER BY granted_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectGrants(rows)
	return items, total, err
}

func collectGrants(rows pgx.Rows) ([]*Grant, error) {
	var items []*Grant
	for rows.Next() {
		var g Grant
		var level int
		if err := rows.Scan(&g.ID, &g.PatientID, &g.ProviderID, &g.Categories, &level,
			&g.GrantedAt, &g.ExpiresAt, &g.Purpose, &g.Conditions, &g.IsActive, &g.AutoRevoke); err != nil {
			return nil, err
		}
		g.Level = Level(level)
		items = append(items, &g)
	}
	return items, rows.Err()
}
