// Package notify is the engine's view of the external Notification Service.
// The core only emits notification requests; delivery to the patient happens
// elsewhere.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notification is a single patient notification request.
type Notification struct {
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Kind       string    `json:"kind"` // "emergency_access"
	Detail     string    `json:"detail"`
	Height     uint64    `json:"height"`
}

// Notifier delivers a notification request. Errors are reported but the
// caller decides whether they are fatal; emergency access never fails just
// because a notification could not be sent.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Log is a Notifier that records notifications as structured WARN log
// entries. Used in development and as the fallback when no webhook is
// configured; emergency-access notifications must never be silent.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n Notification) error {
	l.logger.Warn().
		Str("type", "patient_notification").
		Str("kind", n.Kind).
		Str("patient_id", n.PatientID.String()).
		Str("provider_id", n.ProviderID.String()).
		Uint64("height", n.Height).
		Str("detail", n.Detail).
		Msg("patient_notification")
	return nil
}
