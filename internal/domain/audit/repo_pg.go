package audit

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Access log --

type logRepoPG struct{ pool *pgxpool.Pool }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository { return &logRepoPG{pool: pool} }

func (r *logRepoPG) Append(ctx context.Context, e *AccessLogEntry) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO access_log (patient_id, provider_id, record_ref, accessed_at,
			access_type, reason, was_emergency, patient_notified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		e.PatientID, e.ProviderID, e.RecordRef, e.AccessedAt,
		e.AccessType, e.Reason, e.WasEmergency, e.PatientNotified,
	).Scan(&e.ID)
}

func (r *logRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_log WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, patient_id, provider_id, record_ref, accessed_at,
			access_type, reason, was_emergency, patient_notified
		FROM access_log
		WHERE patient_id = $1
		ORDER BY accessed_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessLogEntry
	for rows.Next() {
		var e AccessLogEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.ProviderID, &e.RecordRef, &e.AccessedAt,
			&e.AccessType, &e.Reason, &e.WasEmergency, &e.PatientNotified); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}

// -- Compliance audits --

type auditRepoPG struct{ pool *pgxpool.Pool }

func NewAuditRepoPG(pool *pgxpool.Pool) AuditRepository { return &auditRepoPG{pool: pool} }

func (r *auditRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*ComplianceAudit, error) {
	var a ComplianceAudit
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, patient_id, violations, unauthorized_attempts, breaches, updated_at
		FROM compliance_audits
		WHERE patient_id = $1`,
		patientID,
	).Scan(&a.ID, &a.PatientID, &a.Violations, &a.UnauthorizedAttempts, &a.Breaches, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errcode.New(errcode.RecordNotFound, "no audit history for patient")
	}
	return &a, err
}

func (r *auditRepoPG) Upsert(ctx context.Context, a *ComplianceAudit) error {
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO compliance_audits (patient_id, violations, unauthorized_attempts, breaches, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (patient_id) DO UPDATE SET
			violations = EXCLUDED.violations,
			unauthorized_attempts = EXCLUDED.unauthorized_attempts,
			breaches = EXCLUDED.breaches,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		a.PatientID, a.Violations, a.UnauthorizedAttempts, a.Breaches, a.UpdatedAt,
	).Scan(&a.ID)
}
