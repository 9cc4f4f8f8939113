package models

import (
	"errors"
	"math"
	"time"
)

// Reading is a single telemetry sample reported by a device. Readings are
// immutable facts: created once per ingestion call and never updated.
type Reading struct {
	ID          int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID    int64     `json:"deviceId" gorm:"column:device_id;index"`
	Temperature *float64  `json:"temperature" gorm:"column:temperature"`
	Humidity    *float64  `json:"humidity" gorm:"column:humidity"`
	PM25        *float64  `json:"pm25" gorm:"column:pm25"`
	PM10        *float64  `json:"pm10" gorm:"column:pm10"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:created_at;index"`
}

func (Reading) TableName() string { return "readings" }

// Validation errors
var (
	ErrMissingDevice = errors.New("device ID is required")
	ErrEmptyReading  = errors.New("reading carries neither metric values nor a position")
	ErrBadCoordinate = errors.New("latitude and longitude must be supplied together and be finite")
)

// Validate checks the reading before persistence.
func (r *Reading) Validate() error {
	if r.DeviceID <= 0 {
		return ErrMissingDevice
	}
	return nil
}

// HasMetrics reports whether any metric value is present.
func (r *Reading) HasMetrics() bool {
	return r.Temperature != nil || r.Humidity != nil || r.PM25 != nil || r.PM10 != nil
}

// Metric returns the value recorded for the given metric, if any.
func (r *Reading) Metric(t MetricType) *float64 {
	switch t {
	case MetricTemp:
		return r.Temperature
	case MetricHumidity:
		return r.Humidity
	case MetricPM25:
		return r.PM25
	case MetricPM10:
		return r.PM10
	}
	return nil
}

// IsFinite reports whether v holds a usable numeric value. Absent or
// non-finite values never participate in threshold evaluation.
func IsFinite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
