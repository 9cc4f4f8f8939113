package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fireguard/internal/alerts"
	"fireguard/internal/audit"
	"fireguard/internal/live"
	"fireguard/internal/location"
	"fireguard/internal/logger"
	"fireguard/internal/metrics"
	"fireguard/internal/models"
	"fireguard/internal/notify"
	"fireguard/internal/store"
	"fireguard/internal/thresholds"
)

// Input is one ingestion call from a device.
type Input struct {
	DeviceID    int64
	Temperature *float64
	Humidity    *float64
	PM25        *float64
	PM10        *float64
	Lat         *float64
	Lng         *float64
	Accuracy    *float64
}

// Validate rejects malformed input before any state change.
func (in *Input) Validate() error {
	if in.DeviceID <= 0 {
		return models.ErrMissingDevice
	}
	hasPos := in.Lat != nil || in.Lng != nil
	if hasPos {
		if !models.IsFinite(in.Lat) || !models.IsFinite(in.Lng) {
			return models.ErrBadCoordinate
		}
	}
	if in.Temperature == nil && in.Humidity == nil && in.PM25 == nil && in.PM10 == nil && !hasPos {
		return models.ErrEmptyReading
	}
	return nil
}

// readingEvent is the live-channel payload for a new reading.
type readingEvent struct {
	DeviceID    int64     `json:"deviceId"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	PM25        *float64  `json:"pm25"`
	PM10        *float64  `json:"pm10"`
	CreatedAt   time.Time `json:"createdAt"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
}

// Service runs the ingestion pipeline: persist the reading, push it to live
// subscribers, run movement detection, evaluate and gate breaches, persist
// surviving alerts, and hand them to the dispatcher. Everything up to and
// including alert persistence and the live fan-out happens before Ingest
// returns; external notifications do not.
//
// Only a failure before the reading is durably stored surfaces as an
// ingestion error. Anything after that is logged and audited but never rolls
// back the reading or fails the call.
type Service struct {
	readings   store.ReadingStore
	resolver   *thresholds.Resolver
	gate       *alerts.Gate
	detector   *location.Detector
	dispatcher *notify.Dispatcher
	live       live.Publisher
	recorder   audit.Recorder
}

// Config wires the pipeline's collaborators.
type Config struct {
	Readings   store.ReadingStore
	Resolver   *thresholds.Resolver
	Gate       *alerts.Gate
	Detector   *location.Detector
	Dispatcher *notify.Dispatcher
	Live       live.Publisher
	Recorder   audit.Recorder
}

// NewService creates the pipeline.
func NewService(cfg Config) *Service {
	return &Service{
		readings:   cfg.Readings,
		resolver:   cfg.Resolver,
		gate:       cfg.Gate,
		detector:   cfg.Detector,
		dispatcher: cfg.Dispatcher,
		live:       cfg.Live,
		recorder:   cfg.Recorder,
	}
}

// Ingest processes one reading end to end and returns the persisted row.
func (s *Service) Ingest(ctx context.Context, in Input) (*models.Reading, error) {
	log := logger.WithComponent("ingest").With().Int64("device_id", in.DeviceID).Logger()

	if err := in.Validate(); err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	reading := &models.Reading{
		DeviceID:    in.DeviceID,
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		PM25:        in.PM25,
		PM10:        in.PM10,
	}
	if err := s.readings.CreateReading(ctx, reading); err != nil {
		metrics.ReadingsIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.ReadingsIngestedTotal.WithLabelValues("accepted").Inc()

	// From here on the reading is durable; nothing below may fail the call.

	if s.live != nil {
		s.live.Publish(live.Event{Name: live.EventReadingNew, Payload: readingEvent{
			DeviceID:    reading.DeviceID,
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			PM25:        reading.PM25,
			PM10:        reading.PM10,
			CreatedAt:   reading.CreatedAt,
			Lat:         in.Lat,
			Lng:         in.Lng,
		}})
	}

	if in.Lat != nil && in.Lng != nil && s.detector != nil {
		if _, err := s.detector.OnPosition(ctx, in.DeviceID, *in.Lat, *in.Lng, in.Accuracy, models.SourceAgent); err != nil {
			log.Warn().Err(err).Msg("movement detection failed")
		}
	}

	if reading.HasMetrics() {
		s.evaluate(ctx, reading, log)
	}

	s.recorder.Record(ctx, in.DeviceID, audit.KindReadingIngested, map[string]interface{}{
		"temperature": in.Temperature,
		"humidity":    in.Humidity,
		"pm25":        in.PM25,
		"pm10":        in.PM10,
	})

	return reading, nil
}

// evaluate runs the breach rules and suppression policy for one reading.
func (s *Service) evaluate(ctx context.Context, reading *models.Reading, log zerolog.Logger) {
	deviceID := reading.DeviceID
	limits, source := s.resolver.Resolve(ctx, &deviceID)

	for _, c := range alerts.Evaluate(reading, limits, source) {
		metrics.BreachesEvaluatedTotal.WithLabelValues(string(c.Type), string(c.Level)).Inc()

		alert, reason, err := s.gate.Admit(ctx, deviceID, c)
		if err != nil {
			log.Warn().Err(err).Str("type", string(c.Type)).Msg("suppression gate failed")
			continue
		}
		if reason != alerts.Admitted {
			metrics.AlertsSuppressedTotal.WithLabelValues(string(c.Type), string(reason)).Inc()
			log.Debug().Str("type", string(c.Type)).Str("reason", string(reason)).Msg("breach suppressed")
			continue
		}

		metrics.AlertsCreatedTotal.WithLabelValues(string(c.Type), string(c.Level)).Inc()
		s.recorder.Record(ctx, deviceID, audit.KindAlertCreated, map[string]interface{}{
			"alertId": alert.ID,
			"type":    alert.Type,
			"level":   alert.Level,
			"value":   c.Value,
		})

		if s.dispatcher != nil {
			s.dispatcher.Dispatch(alert)
		}
	}
}
