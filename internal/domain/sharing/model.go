package sharing

import "github.com/google/uuid"

// Anonymization level bounds. Level 1 is pseudonymized, 3 is fully
// de-identified.
const (
	MinAnonymizationLevel = 1
	MaxAnonymizationLevel = 3
)

// Agreement is a patient-initiated consent to release data to a
// non-treating recipient, optionally compensated.
type Agreement struct {
	ID                 int64     `db:"id" json:"id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	RecipientID        uuid.UUID `db:"recipient_id" json:"recipient_id"`
	DataCategories     []string  `db:"data_categories" json:"data_categories"`
	Purpose            string    `db:"purpose" json:"purpose"`
	CompensationAmount int64     `db:"compensation_amount" json:"compensation_amount"`
	AgreedAt           uint64    `db:"agreed_at" json:"agreed_at"`
	ExpiresAt          uint64    `db:"expires_at" json:"expires_at"`
	AnonymizationLevel int       `db:"anonymization_level" json:"anonymization_level"`
	IsRevocable        bool      `db:"is_revocable" json:"is_revocable"`
	IsActive           bool      `db:"is_active" json:"is_active"`
}

// LiveAt reports whether the agreement is in force at the given height.
// Expired agreements are reported inactive but never physically removed.
func (a *Agreement) LiveAt(now uint64) bool {
	return a.IsActive && a.ExpiresAt > now
}
