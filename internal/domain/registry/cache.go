package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medconsent/medconsent/internal/platform/cache"
)

// cachedPatientRepo is a read-through cache in front of a PatientRepository.
// Writes invalidate; reads tolerate staleness up to the TTL.
type cachedPatientRepo struct {
	inner PatientRepository
	store cache.Store
	ttl   time.Duration
}

func NewCachedPatientRepo(inner PatientRepository, store cache.Store, ttl time.Duration) PatientRepository {
	return &cachedPatientRepo{inner: inner, store: store, ttl: ttl}
}

func patientKey(id uuid.UUID) string { return "registry:patient:" + id.String() }

func (r *cachedPatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if raw, ok, err := r.store.Get(ctx, patientKey(id)); err == nil && ok {
		var p Patient
		if json.Unmarshal(raw, &p) == nil {
			return &p, nil
		}
	}
	p, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = r.store.Set(ctx, patientKey(id), raw, r.ttl)
	}
	return p, nil
}

func (r *cachedPatientRepo) Create(ctx context.Context, p *Patient) error {
	return r.inner.Create(ctx, p)
}

func (r *cachedPatientRepo) Update(ctx context.Context, p *Patient) error {
	if err := r.inner.Update(ctx, p); err != nil {
		return err
	}
	_ = r.store.Delete(ctx, patientKey(p.ID))
	return nil
}

func (r *cachedPatientRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.inner.List(ctx, limit, offset)
}

type cachedProviderRepo struct {
	inner ProviderRepository
	store cache.Store
	ttl   time.Duration
}

func NewCachedProviderRepo(inner ProviderRepository, store cache.Store, ttl time.Duration) ProviderRepository {
	return &cachedProviderRepo{inner: inner, store: store, ttl: ttl}
}

func providerKey(id uuid.UUID) string { return "registry:provider:" + id.String() }

func (r *cachedProviderRepo) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	if raw, ok, err := r.store.Get(ctx, providerKey(id)); err == nil && ok {
		var p Provider
		if json.Unmarshal(raw, &p) == nil {
			return &p, nil
		}
	}
	p, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = r.store.Set(ctx, providerKey(id), raw, r.ttl)
	}
	return p, nil
}

func (r *cachedProviderRepo) Create(ctx context.Context, p *Provider) error {
	return r.inner.Create(ctx, p)
}

func (r *cachedProviderRepo) Update(ctx context.Context, p *Provider) error {
	if err := r.inner.Update(ctx, p); err != nil {
		return err
	}
	_ = r.store.Delete(ctx, providerKey(p.ID))
	return nil
}

func (r *cachedProviderRepo) List(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	return r.inner.List(ctx, limit, offset)
}
