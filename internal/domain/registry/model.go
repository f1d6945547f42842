package registry

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the registry's view of a patient identity. The consent engine
// only ever reads these attributes; the payload itself lives in the external
// content store.
type Patient struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	PrivacyLevel       int       `db:"privacy_level" json:"privacy_level"`
	DataSharingConsent bool      `db:"data_sharing_consent" json:"data_sharing_consent"`
	ResearchConsent    bool      `db:"research_consent" json:"research_consent"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	RegisteredAt       time.Time `db:"registered_at" json:"registered_at"`
}

// Provider is the registry's view of a healthcare provider identity.
type Provider struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Organization       string    `db:"organization" json:"organization"`
	VerificationStatus bool      `db:"verification_status" json:"verification_status"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	RegisteredAt       time.Time `db:"registered_at" json:"registered_at"`
}

const (
	MinPrivacyLevel = 1
	MaxPrivacyLevel = 5
)
