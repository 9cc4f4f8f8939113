package location

import (
	"context"
	"fmt"

	"fireguard/internal/audit"
	"fireguard/internal/metrics"
	"fireguard/internal/models"
	"fireguard/internal/store"
)

// Position is a lat/lng pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Movement is the detector's outcome for one position report.
type Movement struct {
	Moved    bool
	Previous *Position // nil when the device had no recorded position
	Next     Position
}

// Detector compares an incoming position against the device's last known one.
// Movement means the device had no prior position or either coordinate differs
// exactly; there is no distance tolerance. Only a movement writes anything:
// the device state is updated, a location sample appended, and a device-moved
// audit record emitted.
type Detector struct {
	devices   store.DeviceStore
	locations store.LocationStore
	recorder  audit.Recorder
}

// NewDetector creates a detector over the device and location stores.
func NewDetector(devices store.DeviceStore, locations store.LocationStore, recorder audit.Recorder) *Detector {
	return &Detector{devices: devices, locations: locations, recorder: recorder}
}

// OnPosition runs the comparison and, when the device moved, persists the new
// state. It runs for every position-bearing reading, breach or not.
func (d *Detector) OnPosition(ctx context.Context, deviceID int64, lat, lng float64, accuracy *float64, source models.LocationSource) (Movement, error) {
	dev, err := d.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return Movement{}, fmt.Errorf("load device %d: %w", deviceID, err)
	}

	next := Position{Lat: lat, Lng: lng}
	var prev *Position
	if dev.Lat != nil && dev.Lng != nil {
		prev = &Position{Lat: *dev.Lat, Lng: *dev.Lng}
	}

	if prev != nil && prev.Lat == lat && prev.Lng == lng {
		return Movement{Moved: false, Previous: prev, Next: next}, nil
	}

	if err := d.devices.UpdateDevicePosition(ctx, deviceID, lat, lng); err != nil {
		return Movement{}, fmt.Errorf("update device position: %w", err)
	}

	sample := &models.LocationSample{
		DeviceID: deviceID,
		Lat:      lat,
		Lng:      lng,
		Accuracy: accuracy,
		Source:   source,
	}
	if err := d.locations.AppendLocation(ctx, sample); err != nil {
		return Movement{}, fmt.Errorf("append location sample: %w", err)
	}

	details := map[string]interface{}{
		"prev":   prev,
		"next":   next,
		"source": source,
	}
	if accuracy != nil {
		details["accuracy"] = *accuracy
	}
	d.recorder.Record(ctx, deviceID, audit.KindDeviceMoved, details)
	metrics.MovementsDetectedTotal.Inc()

	return Movement{Moved: true, Previous: prev, Next: next}, nil
}
