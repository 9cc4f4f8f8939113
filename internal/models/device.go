package models

import "time"

// Device is the registry entry for a field-deployed sensor. Registration and
// key issuance live outside this service; the row is read for auth and holds
// the device's current best-known position.
type Device struct {
	ID         int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Name       string    `json:"name" gorm:"column:name"`
	APIKeyHash string    `json:"-" gorm:"column:api_key_hash"`
	Lat        *float64  `json:"lat" gorm:"column:lat"`
	Lng        *float64  `json:"lng" gorm:"column:lng"`
	CreatedAt  time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"-" gorm:"column:updated_at"`
}

func (Device) TableName() string { return "devices" }

// LocationSource tags who reported a position.
type LocationSource string

const (
	SourceAgent  LocationSource = "agent"  // device-reported
	SourceManual LocationSource = "manual" // operator-entered
)

// LocationSample is an append-only log entry of a detected position change.
type LocationSample struct {
	ID        int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID  int64          `json:"deviceId" gorm:"column:device_id;index"`
	Lat       float64        `json:"lat" gorm:"column:lat"`
	Lng       float64        `json:"lng" gorm:"column:lng"`
	Accuracy  *float64       `json:"accuracy,omitempty" gorm:"column:accuracy"`
	Source    LocationSource `json:"source" gorm:"column:source"`
	CreatedAt time.Time      `json:"createdAt" gorm:"column:created_at"`
}

func (LocationSample) TableName() string { return "device_location_logs" }
