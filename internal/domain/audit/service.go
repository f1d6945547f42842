package audit

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medconsent/medconsent/internal/domain/registry"
	"github.com/medconsent/medconsent/internal/platform/clock"
	"github.com/medconsent/medconsent/internal/platform/errcode"
	"github.com/medconsent/medconsent/internal/platform/lock"
)

// Directory answers whether an identity is on file at all. Inactive or
// unverified identities may still report violations.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*registry.Patient, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*registry.Provider, error)
}

type Service struct {
	logs   LogRepository
	audits AuditRepository
	dir    Directory
	clock  clock.Source
	locks  *lock.Keyed
	logger zerolog.Logger

	totalViolations atomic.Int64
}

func NewService(logs LogRepository, audits AuditRepository, dir Directory, clk clock.Source, logger zerolog.Logger) *Service {
	return &Service{logs: logs, audits: audits, dir: dir, clock: clk, locks: lock.NewKeyed(), logger: logger}
}

// LogParams carries the fields of a new access log entry.
type LogParams struct {
	PatientID    uuid.UUID
	ProviderID   uuid.UUID
	RecordRef    string
	AccessType   string
	Reason       string
	WasEmergency bool
}

// LogAccess appends an immutable access log entry. The notified flag is
// derived, not caller-supplied: emergency accesses always notify the
// patient, ordinary ones do not.
func (s *Service) LogAccess(ctx context.Context, p LogParams) (*AccessLogEntry, error) {
	if p.PatientID == uuid.Nil || p.ProviderID == uuid.Nil {
		return nil, errcode.New(errcode.InvalidAmount, "patient and provider are required")
	}
	if !ValidAccessType(p.AccessType) {
		return nil, errcode.New(errcode.InvalidAmount, "unknown access type %q", p.AccessType)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	e := &AccessLogEntry{
		PatientID:       p.PatientID,
		ProviderID:      p.ProviderID,
		RecordRef:       p.RecordRef,
		AccessedAt:      now,
		AccessType:      p.AccessType,
		Reason:          p.Reason,
		WasEmergency:    p.WasEmergency,
		PatientNotified: p.WasEmergency,
	}
	if err := s.logs.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ReportViolation records a violation against the counterparty patient's
// compliance history. The caller must be a known patient or provider.
func (s *Service) ReportViolation(ctx context.Context, callerID, counterpartyID uuid.UUID, kind, details string) (*ComplianceAudit, error) {
	if !s.knownIdentity(ctx, callerID) {
		return nil, errcode.New(errcode.NotAuthorized, "caller is not a known patient or provider")
	}
	if !ValidKind(kind) {
		return nil, errcode.New(errcode.InvalidAmount, "unknown violation kind %q", kind)
	}
	if _, err := s.dir.GetPatient(ctx, counterpartyID); err != nil {
		return nil, err
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(counterpartyID.String())
	defer unlock()

	a, err := s.audits.GetByPatient(ctx, counterpartyID)
	if errcode.Is(err, errcode.RecordNotFound) {
		a = &ComplianceAudit{PatientID: counterpartyID}
	} else if err != nil {
		return nil, err
	}

	switch kind {
	case KindViolation:
		a.Violations++
	case KindUnauthorizedAttempt:
		a.UnauthorizedAttempts++
	case KindBreach:
		a.Breaches++
	}
	a.UpdatedAt = now
	if err := s.audits.Upsert(ctx, a); err != nil {
		return nil, err
	}

	total := s.totalViolations.Add(1)
	s.logger.Warn().
		Str("kind", kind).
		Str("patient_id", counterpartyID.String()).
		Str("reported_by", callerID.String()).
		Str("details", details).
		Int64("total_reports", total).
		Msg("violation reported")
	return a, nil
}

// ComplianceScore derives the patient's 0-100 score over their full audit
// history. A patient with no reported violations scores exactly 100.
func (s *Service) ComplianceScore(ctx context.Context, patientID uuid.UUID) (*ComplianceAudit, int, error) {
	if _, err := s.dir.GetPatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	a, err := s.audits.GetByPatient(ctx, patientID)
	if errcode.Is(err, errcode.RecordNotFound) {
		a = &ComplianceAudit{PatientID: patientID}
	} else if err != nil {
		return nil, 0, err
	}
	return a, a.Score(), nil
}

// ListAccessLog returns the patient's access history, most recent first.
func (s *Service) ListAccessLog(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AccessLogEntry, int, error) {
	return s.logs.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) knownIdentity(ctx context.Context, id uuid.UUID) bool {
	if _, err := s.dir.GetPatient(ctx, id); err == nil {
		return true
	}
	if _, err := s.dir.GetProvider(ctx, id); err == nil {
		return true
	}
	return false
}
