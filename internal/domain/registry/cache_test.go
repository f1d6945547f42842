package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	items map[string][]byte
	gets  int
	sets  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string][]byte)}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.gets++
	v, ok := f.items[key]
	return v, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.sets++
	f.items[key] = value
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.items, key)
	return nil
}

func TestCachedPatientRepo_ReadThrough(t *testing.T) {
	inner := newMockPatientRepo()
	store := newFakeStore()
	repo := NewCachedPatientRepo(inner, store, time.Minute)

	p := &Patient{ID: uuid.New(), Name: "Ana", PrivacyLevel: 3, IsActive: true}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	// First read misses the cache and fills it.
	got, err := repo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ana" {
		t.Errorf("expected Ana, got %s", got.Name)
	}
	if store.sets != 1 {
		t.Errorf("expected 1 cache fill, got %d", store.sets)
	}

	// Second read is served from the cache.
	delete(inner.items, p.ID)
	got, err = repo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected cached patient %s, got %s", p.ID, got.ID)
	}
}

func TestCachedPatientRepo_UpdateInvalidates(t *testing.T) {
	inner := newMockPatientRepo()
	store := newFakeStore()
	repo := NewCachedPatientRepo(inner, store, time.Minute)

	p := &Patient{ID: uuid.New(), Name: "Ana", PrivacyLevel: 3, IsActive: true}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), p.ID); err != nil {
		t.Fatalf("get: %v", err)
	}

	p.DataSharingConsent = true
	if err := repo.Update(context.Background(), p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !got.DataSharingConsent {
		t.Error("expected fresh consent flag after invalidation")
	}
}

func TestCachedProviderRepo_ReadThrough(t *testing.T) {
	inner := newMockProviderRepo()
	store := newFakeStore()
	repo := NewCachedProviderRepo(inner, store, time.Minute)

	p := &Provider{ID: uuid.New(), Name: "Dr. Silva", IsActive: true}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), p.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if store.sets != 1 {
		t.Errorf("expected 1 cache fill, got %d", store.sets)
	}

	delete(inner.items, p.ID)
	got, err := repo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if got.Name != "Dr. Silva" {
		t.Errorf("expected cached provider, got %s", got.Name)
	}
}
