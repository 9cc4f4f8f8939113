package models

import (
	"time"
)

// MetricType identifies which metric an alert was raised for.
type MetricType string

const (
	MetricTemp     MetricType = "TEMP"
	MetricHumidity MetricType = "HUMIDITY"
	MetricPM25     MetricType = "PM2.5"
	MetricPM10     MetricType = "PM10"
)

// MetricTypes lists all metrics in evaluation order.
var MetricTypes = []MetricType{MetricPM25, MetricPM10, MetricTemp, MetricHumidity}

// IsValid checks if the metric type is known
func (t MetricType) IsValid() bool {
	switch t {
	case MetricTemp, MetricHumidity, MetricPM25, MetricPM10:
		return true
	default:
		return false
	}
}

// Level represents alert severity levels
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// IsValid checks if the severity level is valid
func (l Level) IsValid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelCritical:
		return true
	default:
		return false
	}
}

// Alert is one raised condition for a device and metric. Acknowledgement and
// mute are independent axes: an alert can be both, neither, or either.
// Alerts are never deleted here; retention is an external concern.
type Alert struct {
	ID             int64      `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID       int64      `json:"deviceId" gorm:"column:device_id;index"`
	Type           MetricType `json:"type" gorm:"column:type"`
	Level          Level      `json:"level" gorm:"column:level"`
	Message        string     `json:"message" gorm:"column:message"`
	Acknowledged   bool       `json:"acknowledged" gorm:"column:acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt" gorm:"column:acknowledged_at"`
	MutedUntil     *time.Time `json:"mutedUntil" gorm:"column:muted_until"`
	CreatedAt      time.Time  `json:"createdAt" gorm:"column:created_at;index"`
}

func (Alert) TableName() string { return "alerts" }

// MutedAt reports whether the alert's mute covers the given instant.
func (a *Alert) MutedAt(now time.Time) bool {
	return a.MutedUntil != nil && a.MutedUntil.After(now)
}
