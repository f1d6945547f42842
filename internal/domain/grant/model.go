package grant

import (
	"github.com/google/uuid"
)

// Level is the ordinal trust level of a grant. Higher levels subsume lower
// ones.
type Level int

const (
	LevelView      Level = 1
	LevelUpdate    Level = 2
	LevelFull      Level = 3
	LevelEmergency Level = 4
)

// Valid reports whether the level is inside the defined ordinal range.
func (l Level) Valid() bool {
	return l >= LevelView && l <= LevelEmergency
}

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelUpdate:
		return "update"
	case LevelFull:
		return "full"
	case LevelEmergency:
		return "emergency"
	default:
		return "invalid"
	}
}

// Data category codes. A grant names up to MaxCategories of these.
const (
	CategoryGeneral      = "general"
	CategoryMedication   = "medication"
	CategoryLab          = "lab"
	CategoryImaging      = "imaging"
	CategoryDiagnostic   = "diagnostic"
	CategoryMentalHealth = "mental_health"
	CategoryGenetic      = "genetic"
	CategoryEmergency    = "emergency"
)

// MaxCategories bounds the category set of a single grant.
const MaxCategories = 8

// MaxDurationDays bounds how far ahead a grant or agreement may expire.
const MaxDurationDays = 3650

var validCategories = map[string]bool{
	CategoryGeneral:      true,
	CategoryMedication:   true,
	CategoryLab:          true,
	CategoryImaging:      true,
	CategoryDiagnostic:   true,
	CategoryMentalHealth: true,
	CategoryGenetic:      true,
	CategoryEmergency:    true,
}

// ValidCategory reports whether code is a defined data category.
func ValidCategory(code string) bool {
	return validCategories[code]
}

var sensitiveCategories = map[string]bool{
	CategoryMentalHealth: true,
	CategoryGenetic:      true,
	CategoryDiagnostic:   true,
}

// SensitiveCategory reports whether the category always demands Full-level
// trust regardless of the record's nominal requirement.
func SensitiveCategory(code string) bool {
	return sensitiveCategories[code]
}

// Grant is an explicit, patient-authorized, time-boxed permission for a
// provider to access the named data categories. Grants are append-only:
// revocation and expiry flip activity, records are never deleted.
type Grant struct {
	ID         int64     `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Categories []string  `db:"categories" json:"categories"`
	Level      Level     `db:"level" json:"level"`
	GrantedAt  uint64    `db:"granted_at" json:"granted_at"`
	ExpiresAt  uint64    `db:"expires_at" json:"expires_at"`
	Purpose    string    `db:"purpose" json:"purpose"`
	Conditions string    `db:"conditions" json:"conditions"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	AutoRevoke bool      `db:"auto_revoke" json:"auto_revoke"`
}

// Covers reports whether the grant names the category.
func (g *Grant) Covers(category string) bool {
	for _, c := range g.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// LiveAt reports whether the grant authorizes anything at the given height.
// Expiry is evaluated here, lazily, at every read; an expired grant is
// inactive without a separate mutation and never reactivates.
func (g *Grant) LiveAt(now uint64) bool {
	return g.IsActive && g.ExpiresAt > now
}
