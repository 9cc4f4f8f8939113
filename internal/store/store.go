package store

import (
	"context"
	"errors"
	"time"

	"fireguard/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ReadingFilter narrows reading listings.
type ReadingFilter struct {
	DeviceID  *int64
	Since     *time.Time
	To        *time.Time
	Ascending bool
	Limit     int
}

// AlertFilter narrows alert listings. Results are always newest-first.
type AlertFilter struct {
	DeviceID     *int64
	Since        *time.Time
	Until        *time.Time
	Acknowledged *bool
	Limit        int
}

// ReadingStore persists immutable telemetry samples.
type ReadingStore interface {
	CreateReading(ctx context.Context, r *models.Reading) error
	ListReadings(ctx context.Context, f ReadingFilter) ([]models.Reading, error)
}

// AlertStore owns the Alert lifecycle and the lookups the suppression policy
// needs. The two Latest* lookups return (nil, nil) when no matching row exists.
type AlertStore interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	SaveAlert(ctx context.Context, a *models.Alert) error
	ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error)

	// LatestMuted returns the newest alert for the device and metric whose
	// mute covers the given instant.
	LatestMuted(ctx context.Context, deviceID int64, t models.MetricType, now time.Time) (*models.Alert, error)
	// LatestCreatedAfter returns the newest alert for the device and metric
	// created strictly after the cutoff.
	LatestCreatedAfter(ctx context.Context, deviceID int64, t models.MetricType, cutoff time.Time) (*models.Alert, error)
}

// ThresholdStore persists per-device and global threshold rows.
type ThresholdStore interface {
	DeviceThresholds(ctx context.Context, deviceID int64) (*models.ThresholdSet, error)
	GlobalThresholds(ctx context.Context) (*models.ThresholdSet, error)
	UpsertThresholds(ctx context.Context, t *models.ThresholdSet) error
}

// DeviceStore reads the device registry and updates position state.
type DeviceStore interface {
	CreateDevice(ctx context.Context, d *models.Device) error
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	UpdateDevicePosition(ctx context.Context, id int64, lat, lng float64) error
}

// LocationStore appends to the device location log. Samples are never mutated.
type LocationStore interface {
	AppendLocation(ctx context.Context, s *models.LocationSample) error
	ListLocations(ctx context.Context, deviceID int64, limit int) ([]models.LocationSample, error)
}

// Store bundles every persistence concern behind one handle.
type Store interface {
	ReadingStore
	AlertStore
	ThresholdStore
	DeviceStore
	LocationStore
	Close() error
}
