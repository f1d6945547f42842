package audit

import "github.com/google/uuid"

// Access types recorded in the log.
const (
	AccessView   = "VIEW"
	AccessUpdate = "UPDATE"
	AccessShare  = "SHARE"
)

// ValidAccessType reports whether t is a defined access type.
func ValidAccessType(t string) bool {
	return t == AccessView || t == AccessUpdate || t == AccessShare
}

// Violation kinds, each weighted differently in the compliance score.
const (
	KindViolation           = "violation"
	KindUnauthorizedAttempt = "unauthorized_attempt"
	KindBreach              = "breach"
)

// ValidKind reports whether k is a defined violation kind.
func ValidKind(k string) bool {
	return k == KindViolation || k == KindUnauthorizedAttempt || k == KindBreach
}

// AccessLogEntry is one recorded data access. Entries are append-only and
// immutable once written.
type AccessLogEntry struct {
	ID              int64     `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID      uuid.UUID `db:"provider_id" json:"provider_id"`
	RecordRef       string    `db:"record_ref" json:"record_ref"`
	AccessedAt      uint64    `db:"accessed_at" json:"accessed_at"`
	AccessType      string    `db:"access_type" json:"access_type"`
	Reason          string    `db:"reason" json:"reason"`
	WasEmergency    bool      `db:"was_emergency" json:"was_emergency"`
	PatientNotified bool      `db:"patient_notified" json:"patient_notified"`
}

// ComplianceAudit aggregates a patient's violation history. One row per
// patient, covering their full history.
type ComplianceAudit struct {
	ID                   int64     `db:"id" json:"id"`
	PatientID            uuid.UUID `db:"patient_id" json:"patient_id"`
	Violations           int       `db:"violations" json:"violations"`
	UnauthorizedAttempts int       `db:"unauthorized_attempts" json:"unauthorized_attempts"`
	Breaches             int       `db:"breaches" json:"breaches"`
	UpdatedAt            uint64    `db:"updated_at" json:"updated_at"`
}

// Score derives the 0-100 compliance score. It only ever decreases as
// counters accrue, never below zero.
func (a *ComplianceAudit) Score() int {
	penalty := a.Violations*10 + a.UnauthorizedAttempts*5 + a.Breaches*20
	if penalty > 100 {
		penalty = 100
	}
	return 100 - penalty
}
