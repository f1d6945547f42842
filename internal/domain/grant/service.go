package grant

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/domain/registry"
	"github.com/medconsent/medconsent/internal/platform/clock"
	"github.com/medconsent/medconsent/internal/platform/errcode"
	"github.com/medconsent/medconsent/internal/platform/lock"
)

// Directory is the slice of the identity registry the grant store needs.
type Directory interface {
	ActivePatient(ctx context.Context, id uuid.UUID) (*registry.Patient, error)
	VerifiedProvider(ctx context.Context, id uuid.UUID) (*registry.Provider, error)
}

type Service struct {
	repo  Repository
	dir   Directory
	clock clock.Source
	locks *lock.Keyed
}

func NewService(repo Repository, dir Directory, clk clock.Source) *Service {
	return &Service{repo: repo, dir: dir, clock: clk, locks: lock.NewKeyed()}
}

func pairKey(patientID, providerID uuid.UUID) string {
	return patientID.String() + "/" + providerID.String()
}

// GrantParams carries the caller-supplied fields of a new grant.
type GrantParams struct {
	PatientID    uuid.UUID
	ProviderID   uuid.UUID
	Categories   []string
	Level        Level
	DurationDays uint64
	Purpose      string
	Conditions   string
	AutoRevoke   bool
}

// Grant creates a new active grant and returns it. Writes for the same
// (patient, provider) pair serialize so concurrent grant/revoke calls never
// interleave partially.
func (s *Service) Grant(ctx context.Context, p GrantParams) (*Grant, error) {
	if _, err := s.dir.ActivePatient(ctx, p.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.dir.VerifiedProvider(ctx, p.ProviderID); err != nil {
		return nil, err
	}
	if !p.Level.Valid() {
		return nil, errcode.New(errcode.InvalidPermission, "permission level %d outside defined range", p.Level)
	}
	if p.DurationDays == 0 {
		return nil, errcode.New(errcode.InvalidAmount, "grant duration must be positive")
	}
	if p.DurationDays > MaxDurationDays {
		return nil, errcode.New(errcode.InvalidAmount, "grant duration exceeds %d days", MaxDurationDays)
	}
	if len(p.Categories) == 0 {
		return nil, errcode.New(errcode.InvalidAmount, "at least one data category is required")
	}
	if len(p.Categories) > MaxCategories {
		return nil, errcode.New(errcode.InvalidAmount, "at most %d data categories per grant", MaxCategories)
	}
	for _, c := range p.Categories {
		if !ValidCategory(c) {
			return nil, errcode.New(errcode.InvalidAmount, "unknown data category %q", c)
		}
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pairKey(p.PatientID, p.ProviderID))
	defer unlock()

	g := &Grant{
		PatientID:  p.PatientID,
		ProviderID: p.ProviderID,
		Categories: p.Categories,
		Level:      p.Level,
		GrantedAt:  now,
		ExpiresAt:  now + p.DurationDays*clock.BlocksPerDay,
		Purpose:    p.Purpose,
		Conditions: p.Conditions,
		IsActive:   true,
		AutoRevoke: p.AutoRevoke,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Revoke deactivates a grant. Only the owning patient may revoke, and a
// grant that is already inactive or past its expiry cannot be revoked twice.
func (s *Service) Revoke(ctx context.Context, grantID int64, callerID uuid.UUID) error {
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return err
	}
	if g.PatientID != callerID {
		return errcode.New(errcode.NotAuthorized, "only the owning patient may revoke grant %d", grantID)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(pairKey(g.PatientID, g.ProviderID))
	defer unlock()

	// Re-read under the lock so concurrent revokes cannot both succeed.
	g, err = s.repo.GetByID(ctx, grantID)
	if err != nil {
		return err
	}
	if !g.LiveAt(now) {
		return errcode.New(errcode.DataExpired, "grant %d is no longer active", grantID)
	}
	return s.repo.Deactivate(ctx, grantID)
}

// Get returns a grant by id.
func (s *Service) Get(ctx context.Context, id int64) (*Grant, error) {
	return s.repo.GetByID(ctx, id)
}

// FindActiveGrants returns the grants authorizing the provider for the
// category at the current height, most recent first. Expiry is evaluated
// here; no mutation happens.
func (s *Service) FindActiveGrants(ctx context.Context, patientID, providerID uuid.UUID, category string) ([]*Grant, error) {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListByPair(ctx, patientID, providerID)
	if err != nil {
		return nil, err
	}
	var live []*Grant
	for _, g := range all {
		if g.LiveAt(now) && g.Covers(category) {
			live = append(live, g)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].GrantedAt != live[j].GrantedAt {
			return live[i].GrantedAt > live[j].GrantedAt
		}
		return live[i].ID > live[j].ID
	})
	return live, nil
}

// ListByPatient returns every grant, active or not, owned by the patient.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Grant, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
