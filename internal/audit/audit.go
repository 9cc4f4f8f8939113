package audit

import (
	"context"
	"time"

	"fireguard/internal/logger"
	"fireguard/internal/metrics"
)

// Kind classifies an audit event.
type Kind string

const (
	KindReadingIngested    Kind = "reading-ingested"
	KindDeviceMoved        Kind = "device-moved"
	KindAlertCreated       Kind = "alert-created"
	KindNotificationSent   Kind = "notification-sent"
	KindNotificationFailed Kind = "notification-failed"
)

// Event is one append-only audit record.
type Event struct {
	DeviceID int64                  `json:"device_id"`
	Kind     Kind                   `json:"kind"`
	Details  map[string]interface{} `json:"details,omitempty"`
	At       time.Time              `json:"at"`
}

// Recorder is the append-only event sink the core writes to. Records are
// write-only from the core's perspective; sinks absorb their own failures.
type Recorder interface {
	Record(ctx context.Context, deviceID int64, kind Kind, details map[string]interface{})
}

// Fanout writes each record to every configured sink.
type Fanout struct {
	sinks []Recorder
}

// NewFanout builds a recorder over the given sinks.
func NewFanout(sinks ...Recorder) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Record(ctx context.Context, deviceID int64, kind Kind, details map[string]interface{}) {
	metrics.AuditRecordsTotal.WithLabelValues(string(kind)).Inc()
	for _, s := range f.sinks {
		s.Record(ctx, deviceID, kind, details)
	}
}

// LogRecorder writes audit records as structured log lines.
type LogRecorder struct{}

// NewLogRecorder creates the log-backed sink.
func NewLogRecorder() *LogRecorder { return &LogRecorder{} }

func (l *LogRecorder) Record(ctx context.Context, deviceID int64, kind Kind, details map[string]interface{}) {
	log := logger.WithComponent("audit")
	log.Info().
		Int64("device_id", deviceID).
		Str("kind", string(kind)).
		Fields(map[string]interface{}{"details": details}).
		Msg("audit event")
}
