package registry

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

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// isUniqueViolation reports whether err is the postgres duplicate-key error.
// The service's duplicate check races with concurrent registrations, so the
// insert itself is the authority on uniqueness.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const patientCols = `id, name, privacy_level, data_sharing_consent, research_consent, is_active, registered_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.PrivacyLevel, &p.DataSharingConsent,
		&p.ResearchConsent, &p.IsActive, &p.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errcode.New(errcode.PatientNotFound, "patient not found")
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, name, privacy_level, data_sharing_consent, research_consent, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Name, p.PrivacyLevel, p.DataSharingConsent, p.ResearchConsent, p.IsActive)
	if isUniqueViolation(err) {
		return errcode.New(errcode.AlreadyRegistered, "patient %s already registered", p.ID)
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, privacy_level=$3, data_sharing_consent=$4,
			research_consent=$5, is_active=$6
		WHERE id = $1`,
		p.ID, p.Name, p.PrivacyLevel, p.DataSharingConsent, p.ResearchConsent, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errcode.New(errcode.PatientNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients ORDER BY registered_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.PrivacyLevel, &p.DataSharingConsent,
			&p.ResearchConsent, &p.IsActive, &p.RegisteredAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
	}
	return items, total, rows.Err()
}

// =========== Provider Repository ===========

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository { return &providerRepoPG{pool: pool} }

func (r *providerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const providerCols = `id, name, organization, verification_status, is_active, registered_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Organization, &p.VerificationStatus, &p.IsActive, &p.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errcode.New(errcode.ProviderNotFound, "provider not found")
	}
	return &p, err
}

func (r *providerRepoPG) Create(ctx context.Context, p *Provider) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO providers (id, name, organization, verification_status, is_active)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Organization, p.VerificationStatus, p.IsActive)
	if isUniqueViolation(err) {
		return errcode.New(errcode.AlreadyRegistered, "provider %s already registered", p.ID)
	}
	return err
}

func (r *providerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return scanProvider(r.conn(ctx).QueryRow(ctx, `SELECT `+providerCols+` FROM providers WHERE id = $1`, id))
}

func (r *providerRepoPG) Update(ctx context.Context, p *Provider) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE providers SET name=$2, organization=$3, verification_status=$4, is_active=$5
		WHERE id = $1`,
		p.ID, p.Name, p.Organization, p.VerificationStatus, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errcode.New(errcode.ProviderNotFound, "provider not found")
	}
	return nil
}

func (r *providerRepoPG) List(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM providers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+providerCols+` FROM providers ORDER BY registered_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Organization, &p.VerificationStatus, &p.IsActive, &p.RegisteredAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
	}
	return items, total, rows.Err()
}
