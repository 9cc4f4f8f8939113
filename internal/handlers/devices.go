package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fireguard/internal/location"
	"fireguard/internal/models"
	"fireguard/internal/store"
)

// DevicesHandler serves the operator-facing location operations. Device
// registration and key issuance live elsewhere.
type DevicesHandler struct {
	devices   store.DeviceStore
	locations store.LocationStore
	detector  *location.Detector
}

// NewDevicesHandler creates the handler.
func NewDevicesHandler(devices store.DeviceStore, locations store.LocationStore, detector *location.Detector) *DevicesHandler {
	return &DevicesHandler{devices: devices, locations: locations, detector: detector}
}

// locationInput is the manual position payload.
type locationInput struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
}

// UpdateLocation handles PUT /api/devices/{id}/location: an operator-entered
// position, run through the same movement detector as device reports.
func (h *DevicesHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "device id must be numeric")
		return
	}

	var in locationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if !models.IsFinite(in.Lat) || !models.IsFinite(in.Lng) {
		writeError(w, http.StatusBadRequest, "lat and lng must be finite numbers")
		return
	}

	movement, err := h.detector.OnPosition(r.Context(), id, *in.Lat, *in.Lng, in.Accuracy, models.SourceManual)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update location")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"moved": movement.Moved,
	})
}

// LocationHistory handles GET /api/devices/{id}/locations.
func (h *DevicesHandler) LocationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "device id must be numeric")
		return
	}
	if _, err := h.devices.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load device")
		return
	}

	limit := 100
	if l, ok := queryInt64(r, "limit"); ok && l != nil && *l > 0 {
		limit = int(*l)
	}

	rows, err := h.locations.ListLocations(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}
