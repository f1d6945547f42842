// Package access implements the decision engine consulted before any data
// release. It owns no state of its own: it reads the grant store, the
// emergency controller and the identity registry, and answers allow/deny.
package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/domain/grant"
	"github.com/medconsent/medconsent/internal/domain/registry"
	"github.com/medconsent/medconsent/internal/platform/errcode"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed      bool        `json:"allowed"`
	AppliedLevel grant.Level `json:"applied_level"`
	ViaEmergency bool        `json:"via_emergency"`
}

// Grants is the read slice of the permission grant store.
type Grants interface {
	FindActiveGrants(ctx context.Context, patientID, providerID uuid.UUID, category string) ([]*grant.Grant, error)
}

// Emergencies is the read slice of the emergency access controller.
type Emergencies interface {
	CanAccess(ctx context.Context, patientID, providerID uuid.UUID) (bool, error)
}

// Directory is the slice of the identity registry the engine needs.
type Directory interface {
	ActivePatient(ctx context.Context, id uuid.UUID) (*registry.Patient, error)
	VerifiedProvider(ctx context.Context, id uuid.UUID) (*registry.Provider, error)
}

type Service struct {
	grants      Grants
	emergencies Emergencies
	dir         Directory
}

func NewService(grants Grants, emergencies Emergencies, dir Directory) *Service {
	return &Service{grants: grants, emergencies: emergencies, dir: dir}
}

// requiredLevel is the minimum grant level for the requested access.
// Sensitive material needs Full regardless of the record's nominal
// requirement.
func requiredLevel(category string, recordSensitivity bool) grant.Level {
	if recordSensitivity || grant.SensitiveCategory(category) {
		return grant.LevelFull
	}
	return grant.LevelView
}

// Authorize answers whether the requester may access the patient's data in
// the given category right now. It is a pure decision: nothing is written,
// no episode is opened, no audit entry is appended. The data-release path
// records the access and, for emergencies, invokes the controller.
func (s *Service) Authorize(ctx context.Context, requesterID, patientID uuid.UUID, category string, isEmergency, recordSensitivity bool) (*Decision, error) {
	if _, err := s.dir.VerifiedProvider(ctx, requesterID); err != nil {
		return nil, err
	}
	if _, err := s.dir.ActivePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if !grant.ValidCategory(category) {
		return nil, errcode.New(errcode.InvalidAmount, "unknown data category %q", category)
	}

	if isEmergency {
		ok, err := s.emergencies.CanAccess(ctx, patientID, requesterID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errcode.New(errcode.AccessDenied, "emergency episode exhausted for this pair")
		}
		return &Decision{Allowed: true, AppliedLevel: grant.LevelEmergency, ViaEmergency: true}, nil
	}

	live, err := s.grants.FindActiveGrants(ctx, patientID, requesterID, category)
	if err != nil {
		return nil, err
	}

	required := requiredLevel(category, recordSensitivity)
	best := grant.Level(0)
	for _, g := range live {
		if g.Level > best {
			best = g.Level
		}
	}
	if best < required {
		return nil, errcode.New(errcode.AccessDenied,
			"no active grant at level %s or above for category %q", required, category)
	}
	return &Decision{Allowed: true, AppliedLevel: best}, nil
}
