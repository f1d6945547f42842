package emergency

import "github.com/google/uuid"

// MaxRecords bounds how many record accesses one episode may authorize.
const MaxRecords = 10

// Episode states as reported by Status. An episode that was never opened
// has no row at all, which is the NONE state.
const (
	StateActive  = "active"
	StateExpired = "expired"
)

// Episode is one time-boxed emergency access window for a
// (patient, provider) pair. It is self-authorizing: no prior grant is
// required, but every access is recorded and the patient is always notified.
type Episode struct {
	ID               int64     `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID       uuid.UUID `db:"provider_id" json:"provider_id"`
	EmergencyType    string    `db:"emergency_type" json:"emergency_type"`
	GrantedAt        uint64    `db:"granted_at" json:"granted_at"`
	ExpiresAt        uint64    `db:"expires_at" json:"expires_at"`
	RecordsAccessed  []string  `db:"records_accessed" json:"records_accessed"`
	NotificationSent bool      `db:"notification_sent" json:"notification_sent"`
	IsActive         bool      `db:"is_active" json:"is_active"`
}

// LiveAt reports whether the episode still authorizes access at the given
// height. Expiry is a comparison, never a mutation; an episode past its
// expiry stays in the store but never authorizes again.
func (e *Episode) LiveAt(now uint64) bool {
	return e.IsActive && e.ExpiresAt > now
}

// StateAt maps the episode onto its lifecycle state at the given height.
func (e *Episode) StateAt(now uint64) string {
	if e.LiveAt(now) {
		return StateActive
	}
	return StateExpired
}
