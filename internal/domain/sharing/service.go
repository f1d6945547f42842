package sharing

import (
	"context"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/domain/grant"
	"github.com/medconsent/medconsent/internal/domain/registry"
	"github.com/medconsent/medconsent/internal/platform/clock"
	"github.com/medconsent/medconsent/internal/platform/errcode"
	"github.com/medconsent/medconsent/internal/platform/ledger"
	"github.com/medconsent/medconsent/internal/platform/lock"
)

// Directory is the slice of the identity registry the manager needs.
type Directory interface {
	ActivePatient(ctx context.Context, id uuid.UUID) (*registry.Patient, error)
}

// TxRunner executes fn atomically: fn returning an error must leave no
// trace of any write it performed. The production runner wraps
// db.RunInTx over the pgx pool; tests substitute a passthrough.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Passthrough is a TxRunner without transactional scope, for stores that
// are atomic per call (memory repositories in tests).
func Passthrough(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	repo   Repository
	dir    Directory
	clock  clock.Source
	ledger ledger.Ledger
	inTx   TxRunner
	locks  *lock.Keyed
}

func NewService(repo Repository, dir Directory, clk clock.Source, lg ledger.Ledger, inTx TxRunner) *Service {
	return &Service{repo: repo, dir: dir, clock: clk, ledger: lg, inTx: inTx, locks: lock.NewKeyed()}
}

// CreateParams carries the caller-supplied fields of a new agreement.
type CreateParams struct {
	PatientID          uuid.UUID
	RecipientID        uuid.UUID
	DataCategories     []string
	Purpose            string
	DurationDays       uint64
	AnonymizationLevel int
	CompensationAmount int64
	IsRevocable        bool
}

// Create persists a new sharing agreement. The patient must have data
// sharing consent on file. When the agreement is compensated, the ledger
// transfer from recipient to patient runs as the last step inside the same
// transaction as the insert, so a failed payment leaves no agreement behind.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Agreement, error) {
	patient, err := s.dir.ActivePatient(ctx, p.PatientID)
	if err != nil {
		return nil, err
	}
	if !patient.DataSharingConsent {
		return nil, errcode.New(errcode.NotAuthorized, "patient has not consented to data sharing")
	}
	if p.RecipientID == uuid.Nil || p.RecipientID == p.PatientID {
		return nil, errcode.New(errcode.InvalidAmount, "recipient must be a distinct identity")
	}
	if p.DurationDays == 0 {
		return nil, errcode.New(errcode.InvalidAmount, "agreement duration must be positive")
	}
	if p.DurationDays > grant.MaxDurationDays {
		return nil, errcode.New(errcode.InvalidAmount, "agreement duration exceeds %d days", grant.MaxDurationDays)
	}
	if p.AnonymizationLevel < MinAnonymizationLevel || p.AnonymizationLevel > MaxAnonymizationLevel {
		return nil, errcode.New(errcode.InvalidAmount, "anonymization level must be between %d and %d",
			MinAnonymizationLevel, MaxAnonymizationLevel)
	}
	if p.CompensationAmount < 0 {
		return nil, errcode.New(errcode.InvalidAmount, "compensation cannot be negative")
	}
	if len(p.DataCategories) == 0 {
		return nil, errcode.New(errcode.InvalidAmount, "at least one data category is required")
	}
	if len(p.DataCategories) > grant.MaxCategories {
		return nil, errcode.New(errcode.InvalidAmount, "at most %d data categories per agreement", grant.MaxCategories)
	}
	for _, c := range p.DataCategories {
		if !grant.ValidCategory(c) {
			return nil, errcode.New(errcode.InvalidAmount, "unknown data category %q", c)
		}
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(p.PatientID.String() + "/" + p.RecipientID.String())
	defer unlock()

	a := &Agreement{
		PatientID:          p.PatientID,
		RecipientID:        p.RecipientID,
		DataCategories:     p.DataCategories,
		Purpose:            p.Purpose,
		CompensationAmount: p.CompensationAmount,
		AgreedAt:           now,
		ExpiresAt:          now + p.DurationDays*clock.BlocksPerDay,
		AnonymizationLevel: p.AnonymizationLevel,
		IsRevocable:        p.IsRevocable,
		IsActive:           true,
	}

	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, a); err != nil {
			return err
		}
		// Payment runs last so a failed transfer aborts the insert and a
		// failed insert never moves money.
		if a.CompensationAmount > 0 {
			return s.ledger.Transfer(txCtx, a.RecipientID, a.PatientID, a.CompensationAmount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Revoke deactivates an agreement. Only the owning patient may revoke, and
// only agreements marked revocable at creation time.
func (s *Service) Revoke(ctx context.Context, agreementID int64, callerID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, agreementID)
	if err != nil {
		return err
	}
	if a.PatientID != callerID {
		return errcode.New(errcode.NotAuthorized, "only the owning patient may revoke agreement %d", agreementID)
	}
	if !a.IsRevocable {
		return errcode.New(errcode.NotAuthorized, "agreement %d is not revocable", agreementID)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(a.PatientID.String() + "/" + a.RecipientID.String())
	defer unlock()

	a, err = s.repo.GetByID(ctx, agreementID)
	if err != nil {
		return err
	}
	if !a.LiveAt(now) {
		return errcode.New(errcode.DataExpired, "agreement %d is no longer active", agreementID)
	}
	return s.repo.Deactivate(ctx, agreementID)
}

// Get returns an agreement by id.
func (s *Service) Get(ctx context.Context, id int64) (*Agreement, error) {
	return s.repo.GetByID(ctx, id)
}

// FindActiveAgreements returns the agreements in force between the pair at
// the current height.
func (s *Service) FindActiveAgreements(ctx context.Context, patientID, recipientID uuid.UUID) ([]*Agreement, error) {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListByPair(ctx, patientID, recipientID)
	if err != nil {
		return nil, err
	}
	var live []*Agreement
	for _, a := range all {
		if a.LiveAt(now) {
			live = append(live, a)
		}
	}
	return live, nil
}

// ListByPatient returns every agreement, active or not, owned by the patient.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Agreement, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
