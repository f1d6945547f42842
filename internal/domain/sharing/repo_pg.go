package sharing

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

const agreementCols = `id, patient_id, recipient_id, data_categories, purpose,
	compensation_amount, agreed_at, expires_at, anonymization_level, is_revocable, is_active`

func scanAgreement(row pgx.Row) (*Agreement, error) {
	var a Agreement
	err := row.Scan(&a.ID, &a.PatientID, &a.RecipientID, &a.DataCategories, &a.Purpose,
		&a.CompensationAmount, &a.AgreedAt, &a.ExpiresAt, &a.AnonymizationLevel,
		&a.IsRevocable, &a.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errcode.New(errcode.RecordNotFound, "agreement not found")
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Agreement) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sharing_agreements (patient_id, recipient_id, data_categories,
			purpose, compensation_amount, agreed_at, expires_at, anonymization_level,
			is_revocable, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		a.PatientID, a.RecipientID, a.DataCategories, a.Purpose, a.CompensationAmount,
		a.AgreedAt, a.ExpiresAt, a.AnonymizationLevel, a.IsRevocable, a.IsActive,
	).Scan(&a.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Agreement, error) {
	return scanAgreement(r.conn(ctx).QueryRow(ctx,
		`SELECT `+agreementCols+` FROM sharing_agreements WHERE id = $1`, id))
}

func (r *repoPG) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE sharing_agreements SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errcode.New(errcode.RecordNotFound, "agreement not found")
	}
	return nil
}

func (r *repoPG) ListByPair(ctx context.Context, patientID, recipientID uuid.UUID) ([]*Agreement, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+agreementCols+` FROM sharing_agreements
		WHERE patient_id = $1 AND recipient_id = $2
		ORDER BY agreed_at DESC, id DESC`,
		patientID, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAgreements(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Agreement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sharing_agreements WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+agreementCols+` FROM sharing_agreements
		WHERE patient_id = $1
		ORDER BY agreed_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectAgreements(rows)
	return items, total, err
}

func collectAgreements(rows pgx.Rows) ([]*Agreement, error) {
	var items []*Agreement
	for rows.Next() {
		var a Agreement
		if err := rows.Scan(&a.ID, &a.PatientID, &a.RecipientID, &a.DataCategories, &a.Purpose,
			&a.CompensationAmount, &a.AgreedAt, &a.ExpiresAt, &a.AnonymizationLevel,
			&a.IsRevocable, &a.IsActive); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
