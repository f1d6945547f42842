package emergency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medconsent/medconsent/internal/domain/registry"
	"github.com/medconsent/medconsent/internal/platform/clock"
	"github.com/medconsent/medconsent/internal/platform/errcode"
	"github.com/medconsent/medconsent/internal/platform/lock"
	"github.com/medconsent/medconsent/internal/platform/notify"
)

// Directory is the slice of the identity registry the controller needs.
type Directory interface {
	ActivePatient(ctx context.Context, id uuid.UUID) (*registry.Patient, error)
	VerifiedProvider(ctx context.Context, id uuid.UUID) (*registry.Provider, error)
}

type Service struct {
	repo     Repository
	dir      Directory
	clock    clock.Source
	notifier notify.Notifier
	locks    *lock.Keyed
	logger   zerolog.Logger
}

func NewService(repo Repository, dir Directory, clk clock.Source, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, clock: clk, notifier: notifier, locks: lock.NewKeyed(), logger: logger}
}

func pairKey(patientID, providerID uuid.UUID) string {
	return patientID.String() + "/" + providerID.String()
}

// Invoke records one emergency record access by the provider against the
// patient, opening a new episode when the pair has no live one. No prior
// grant is required: emergency access trades strict authorization for
// availability, bounded by the episode expiry and the per-episode record
// cap, and the patient is always notified.
func (s *Service) Invoke(ctx context.Context, providerID, patientID uuid.UUID, emergencyType, recordRef string) (*Episode, error) {
	if _, err := s.dir.VerifiedProvider(ctx, providerID); err != nil {
		return nil, err
	}
	if _, err := s.dir.ActivePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if recordRef == "" {
		return nil, errcode.New(errcode.InvalidAmount, "record reference is required")
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(pairKey(patientID, providerID))
	defer unlock()

	ep, err := s.repo.LatestByPair(ctx, patientID, providerID)
	if err != nil && !errcode.Is(err, errcode.RecordNotFound) {
		return nil, err
	}
	fresh := ep == nil || !ep.LiveAt(now)
	if fresh {
		ep = &Episode{
			PatientID:     patientID,
			ProviderID:    providerID,
			EmergencyType: emergencyType,
			GrantedAt:     now,
			ExpiresAt:     now + clock.EmergencyDuration,
			IsActive:      true,
		}
	}

	if len(ep.RecordsAccessed) >= MaxRecords {
		return nil, errcode.New(errcode.EmergencyRecordLimitExceeded,
			"episode %d already accessed %d records", ep.ID, MaxRecords)
	}
	ep.RecordsAccessed = append(ep.RecordsAccessed, recordRef)

	// The patient learns about the episode on its first access, and only
	// once. The flag flips under the pair lock before dispatch, so the
	// episode never emits twice.
	notifyNeeded := !ep.NotificationSent
	ep.NotificationSent = true

	if fresh {
		err = s.repo.Create(ctx, ep)
	} else {
		err = s.repo.Update(ctx, ep)
	}
	if err != nil {
		return nil, err
	}

	// Delivery runs off the request path. Emergency access must stay
	// available when the notification service is slow or down; a failure
	// is logged, never surfaced to the provider.
	if notifyNeeded {
		go s.deliverNotification(notify.Notification{
			PatientID:  patientID,
			ProviderID: providerID,
			Kind:       "emergency_access",
			Detail:     fmt.Sprintf("emergency access (%s) invoked", emergencyType),
			Height:     now,
		})
	}
	return ep, nil
}

// notifyTimeout bounds one background delivery, retries included.
const notifyTimeout = 2 * time.Minute

func (s *Service) deliverNotification(n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error().Err(err).
			Str("patient_id", n.PatientID.String()).
			Str("provider_id", n.ProviderID.String()).
			Msg("emergency notification delivery failed")
	}
}

// Status returns an episode together with its lifecycle state at the
// current height.
func (s *Service) Status(ctx context.Context, id int64) (*Episode, string, error) {
	ep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, "", err
	}
	return ep, ep.StateAt(now), nil
}

// CanAccess reports whether an emergency access by the provider would be
// permitted right now, without recording one. A pair with no live episode
// can always access (a fresh episode would open); the only refusal is a
// live episode that has exhausted its record cap.
func (s *Service) CanAccess(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return false, err
	}
	ep, err := s.repo.LatestByPair(ctx, patientID, providerID)
	if errcode.Is(err, errcode.RecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !ep.LiveAt(now) {
		return true, nil
	}
	return len(ep.RecordsAccessed) < MaxRecords, nil
}

// Revoke closes a live episode early. Only the patient under emergency
// access may cut it short.
func (s *Service) Revoke(ctx context.Context, id int64, callerID uuid.UUID) error {
	ep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ep.PatientID != callerID {
		return errcode.New(errcode.NotAuthorized, "only the patient may revoke episode %d", id)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(pairKey(ep.PatientID, ep.ProviderID))
	defer unlock()

	ep, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ep.LiveAt(now) {
		return errcode.New(errcode.DataExpired, "episode %d is no longer active", id)
	}
	ep.IsActive = false
	return s.repo.Update(ctx, ep)
}

// ListByPatient returns every episode, live or expired, for the patient.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Episode, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
