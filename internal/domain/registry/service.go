package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/platform/errcode"
)

// Service owns patient and provider identity records. The rest of the engine
// only reads through it; mutation is limited to registration and the consent
// and verification flags.
type Service struct {
	patients  PatientRepository
	providers ProviderRepository
}

func NewService(patients PatientRepository, providers ProviderRepository) *Service {
	return &Service{patients: patients, providers: providers}
}

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if p.PrivacyLevel < MinPrivacyLevel || p.PrivacyLevel > MaxPrivacyLevel {
		return errcode.New(errcode.InvalidAmount, "privacy level must be between %d and %d", MinPrivacyLevel, MaxPrivacyLevel)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	} else if existing, err := s.patients.GetByID(ctx, p.ID); err == nil && existing != nil {
		return errcode.New(errcode.AlreadyRegistered, "patient %s already registered", p.ID)
	}
	p.IsActive = true
	return s.patients.Create(ctx, p)
}

func (s *Service) RegisterProvider(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	} else if existing, err := s.providers.GetByID(ctx, p.ID); err == nil && existing != nil {
		return errcode.New(errcode.AlreadyRegistered, "provider %s already registered", p.ID)
	}
	p.IsActive = true
	return s.providers.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) ListProviders(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	return s.providers.List(ctx, limit, offset)
}

// UpdateConsent sets the patient's sharing and research consent flags. Only
// the patient may change their own consent.
func (s *Service) UpdateConsent(ctx context.Context, callerID, patientID uuid.UUID, dataSharing, research bool) error {
	if callerID != patientID {
		return errcode.New(errcode.NotAuthorized, "only the patient may change consent")
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	p.DataSharingConsent = dataSharing
	p.ResearchConsent = research
	return s.patients.Update(ctx, p)
}

// VerifyProvider marks a provider as verified.
func (s *Service) VerifyProvider(ctx context.Context, providerID uuid.UUID) error {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return err
	}
	p.VerificationStatus = true
	return s.providers.Update(ctx, p)
}

// ActivePatient loads a patient and requires the record to be active.
func (s *Service) ActivePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errcode.New(errcode.PatientNotFound, "patient %s is inactive", id)
	}
	return p, nil
}

// VerifiedProvider loads a provider and requires it to be verified and active.
func (s *Service) VerifiedProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	p, err := s.providers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive || !p.VerificationStatus {
		return nil, errcode.New(errcode.ProviderNotFound, "provider %s is not verified and active", id)
	}
	return p, nil
}
