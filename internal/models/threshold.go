package models

import (
	"errors"
	"math"
	"time"
)

// ThresholdSource tags where an effective threshold set came from.
type ThresholdSource string

const (
	SourceDevice  ThresholdSource = "device"
	SourceGlobal  ThresholdSource = "global"
	SourceDefault ThresholdSource = "default"
)

// ThresholdSet is the limit set applied during evaluation. Temperature, PM2.5
// and PM10 are upper bounds; humidity is a lower bound. A nil DeviceID means
// the global scope; at most one row exists per scope.
type ThresholdSet struct {
	ID          int64     `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID    *int64    `json:"deviceId,omitempty" gorm:"column:device_id;unique"`
	Temperature float64   `json:"temperature" gorm:"column:temperature"`
	Humidity    float64   `json:"humidity" gorm:"column:humidity"`
	PM25        float64   `json:"pm25" gorm:"column:pm25"`
	PM10        float64   `json:"pm10" gorm:"column:pm10"`
	UpdatedAt   time.Time `json:"-" gorm:"column:updated_at"`
}

func (ThresholdSet) TableName() string { return "alert_thresholds" }

// ErrInvalidThresholds rejects threshold payloads with non-finite values.
var ErrInvalidThresholds = errors.New("threshold values must be finite numbers")

// Validate checks that every limit is a finite number.
func (t *ThresholdSet) Validate() error {
	for _, v := range []float64{t.Temperature, t.Humidity, t.PM25, t.PM10} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidThresholds
		}
	}
	return nil
}

// DefaultThresholds is the built-in limit set used when neither a device-scoped
// nor a global row exists. Never persisted.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		Temperature: 60,
		Humidity:    15,
		PM25:        200,
		PM10:        300,
	}
}
