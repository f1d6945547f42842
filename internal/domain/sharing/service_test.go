package sharing

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/domain/grant"
	"github.com/medconsent/medconsent/internal/domain/registry"
	"github.com/medconsent/medconsent/internal/platform/clock"
	"github.com/medconsent/medconsent/internal/platform/errcode"
	"github.com/medconsent/medconsent/internal/platform/ledger"
)

// -- Mock Repository --

type mockRepo struct {
	items  map[int64]*Agreement
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[int64]*Agreement)}
}

func copyAgreement(a *Agreement) *Agreement {
	cp := *a
	cp.DataCategories = append([]string(nil), a.DataCategories...)
	return &cp
}

func (m *mockRepo) Create(_ context.Context, a *Agreement) error {
	m.nextID++
	a.ID = m.nextID
	m.items[a.ID] = copyAgreement(a)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Agreement, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, errcode.New(errcode.RecordNotFound, "agreement not found")
	}
	return copyAgreement(a), nil
}

func (m *mockRepo) Deactivate(_ context.Context, id int64) error {
	a, ok := m.items[id]
	if !ok {
		return errcode.New(errcode.RecordNotFound, "agreement not found")
	}
	a.IsActive = false
	return nil
}

func (m *mockRepo) ListByPair(_ context.Context, patientID, recipientID uuid.UUID) ([]*Agreement, error) {
	var items []*Agreement
	for _, a := range m.items {
		if a.PatientID == patientID && a.RecipientID == recipientID {
			items = append(items, copyAgreement(a))
		}
	}
	return items, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Agreement, int, error) {
	var items []*Agreement
	for _, a := range m.items {
		if a.PatientID == patientID {
			items = append(items, copyAgreement(a))
		}
	}
	return items, len(items), nil
}

// rollbackTx mimics transactional scope over the mock repo: any error from
// fn restores the repo to its pre-call state.
func (m *mockRepo) rollbackTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := make(map[int64]*Agreement, len(m.items))
	for id, a := range m.items {
		snapshot[id] = copyAgreement(a)
	}
	nextID := m.nextID
	if err := fn(ctx); err != nil {
		m.items = snapshot
		m.nextID = nextID
		return err
	}
	return nil
}

// -- Mock Directory --

type mockDirectory struct {
	patients map[uuid.UUID]*registry.Patient
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{patients: make(map[uuid.UUID]*registry.Patient)}
}

func (m *mockDirectory) addPatient(consent bool) uuid.UUID {
	id := uuid.New()
	m.patients[id] = &registry.Patient{ID: id, PrivacyLevel: 3, DataSharingConsent: consent, IsActive: true}
	return id
}

func (m *mockDirectory) ActivePatient(_ context.Context, id uuid.UUID) (*registry.Patient, error) {
	p, ok := m.patients[id]
	if !ok || !p.IsActive {
		return nil, errcode.New(errcode.PatientNotFound, "patient not found")
	}
	return p, nil
}

func newTestService() (*Service, *mockRepo, *mockDirectory, *ledger.Mem, *clock.Counter) {
	repo := newMockRepo()
	dir := newMockDirectory()
	lg := ledger.NewMem()
	clk := clock.NewCounter(1000)
	svc := NewService(repo, dir, clk, lg, repo.rollbackTx)
	return svc, repo, dir, lg, clk
}

func params(patientID, recipientID uuid.UUID) CreateParams {
	return CreateParams{
		PatientID:          patientID,
		RecipientID:        recipientID,
		DataCategories:     []string{grant.CategoryGeneral},
		Purpose:            "study",
		DurationDays:       30,
		AnonymizationLevel: 2,
		IsRevocable:        true,
	}
}

// -- Tests --

func TestCreate_RequiresConsent(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	patientID := dir.addPatient(false)
	recipientID := uuid.New()

	_, err := svc.Create(context.Background(), params(patientID, recipientID))
	if !errcode.Is(err, errcode.NotAuthorized) {
		t.Fatalf("expected NotAuthorized without consent, got %v", err)
	}

	// The identical call succeeds once the patient flips consent on.
	dir.patients[patientID].DataSharingConsent = true
	a, err := svc.Create(context.Background(), params(patientID, recipientID))
	if err != nil {
		t.Fatalf("unexpected error after consent: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected assigned agreement id")
	}
	if a.ExpiresAt != a.AgreedAt+30*clock.BlocksPerDay {
		t.Errorf("expected expiry %d, got %d", a.AgreedAt+30*clock.BlocksPerDay, a.ExpiresAt)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	patientID := dir.addPatient(true)
	recipientID := uuid.New()

	p := params(patientID, recipientID)
	p.DurationDays = 0
	if _, err := svc.Create(context.Background(), p); !errcode.Is(err, errcode.InvalidAmount) {
		t.Errorf("zero duration: expected InvalidAmount, got %v", err)
	}

	p = params(patientID, recipientID)
	p.DurationDays = grant.MaxDurationDays + 1
	if _, err := svc.Create(context.Background(), p); !errcode.Is(err, errcode.InvalidAmount) {
		t.Errorf("excessive duration: expected InvalidAmount, got %v", err)
	}

	for _, lvl := range []int{0, 4} {
		p = params(patientID, recipientID)
		p.AnonymizationLevel = lvl
		if _, err := svc.Create(context.Background(), p); !errcode.Is(err, errcode.InvalidAmount) {
			t.Errorf("anonymization %d: expected InvalidAmount, got %v", lvl, err)
		}
	}

	p = params(patientID, recipientID)
	p.CompensationAmount = -5
	if _, err := svc.Create(context.Background(), p); !errcode.Is(err, errcode.InvalidAmount) {
		t.Errorf("negative compensation: expected InvalidAmount, got %v", err)
	}

	p = params(patientID, recipientID)
	p.DataCategories = []string{"astrology"}
	if _, err := svc.Create(context.Background(), p); !errcode.Is(err, errcode.InvalidAmount) {
		t.Errorf("unknown category: expected InvalidAmount, got %v", err)
	}

	p = params(patientID, recipientID)
	p.RecipientID = patientID
	if _, err := svc.Create(context.Background(), p); !errcode.Is(err, errcode.InvalidAmount) {
		t.Errorf("self-share: expected InvalidAmount, got %v", err)
	}
}

func TestCreate_CompensatedTransfersPayment(t *testing.T) {
	svc, _, dir, lg, _ := newTestService()
	patientID := dir.addPatient(true)
	recipientID := uuid.New()
	lg.Fund(recipientID, 500)

	p := params(patientID, recipientID)
	p.CompensationAmount = 200
	a, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected persisted agreement")
	}
	if got := lg.Balance(patientID); got != 200 {
		t.Errorf("expected patient balance 200, got %d", got)
	}
	if got := lg.Balance(recipientID); got != 300 {
		t.Errorf("expected recipient balance 300, got %d", got)
	}
}

func TestCreate_PaymentFailureLeavesNothing(t *testing.T) {
	svc, repo, dir, lg, _ := newTestService()
	patientID := dir.addPatient(true)
	recipientID := uuid.New()
	lg.Fund(recipientID, 50)

	p := params(patientID, recipientID)
	p.CompensationAmount = 200
	_, err := svc.Create(context.Background(), p)
	if !errcode.Is(err, errcode.PaymentFailed) {
		t.Fatalf("expected PaymentFailed, got %v", err)
	}
	if len(repo.items) != 0 {
		t.Errorf("expected no agreement persisted, found %d", len(repo.items))
	}
	if got := lg.Balance(recipientID); got != 50 {
		t.Errorf("expected recipient balance untouched, got %d", got)
	}
}

func TestRevoke(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	patientID := dir.addPatient(true)
	a, _ := svc.Create(context.Background(), params(patientID, uuid.New()))

	if err := svc.Revoke(context.Background(), a.ID, patientID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), a.ID)
	if got.IsActive {
		t.Error("expected agreement inactive after revoke")
	}

	if err := svc.Revoke(context.Background(), a.ID, patientID); !errcode.Is(err, errcode.DataExpired) {
		t.Errorf("expected DataExpired on second revoke, got %v", err)
	}
}

func TestRevoke_NotOwner(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	a, _ := svc.Create(context.Background(), params(dir.addPatient(true), uuid.New()))
	if err := svc.Revoke(context.Background(), a.ID, uuid.New()); !errcode.Is(err, errcode.NotAuthorized) {
		t.Errorf("expected NotAuthorized, got %v", err)
	}
}

func TestRevoke_NotRevocable(t *testing.T) {
	svc, _, dir, _, _ := newTestService()
	patientID := dir.addPatient(true)
	p := params(patientID, uuid.New())
	p.IsRevocable = false
	a, _ := svc.Create(context.Background(), p)

	if err := svc.Revoke(context.Background(), a.ID, patientID); !errcode.Is(err, errcode.NotAuthorized) {
		t.Errorf("expected NotAuthorized for non-revocable agreement, got %v", err)
	}
}

func TestFindActiveAgreements_LazyExpiry(t *testing.T) {
	svc, _, dir, _, clk := newTestService()
	patientID := dir.addPatient(true)
	recipientID := uuid.New()

	p := params(patientID, recipientID)
	p.DurationDays = 1
	svc.Create(context.Background(), p)

	live, _ := svc.FindActiveAgreements(context.Background(), patientID, recipientID)
	if len(live) != 1 {
		t.Fatalf("expected 1 live agreement, got %d", len(live))
	}

	clk.Advance(clock.BlocksPerDay)
	live, _ = svc.FindActiveAgreements(context.Background(), patientID, recipientID)
	if len(live) != 0 {
		t.Errorf("expected expired agreement filtered out, got %d", len(live))
	}
}
