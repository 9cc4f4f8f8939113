package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fireguard/internal/ingest"
	"fireguard/internal/middleware"
	"fireguard/internal/models"
	"fireguard/internal/store"
)

// ReadingsHandler serves reading ingestion and listing.
type ReadingsHandler struct {
	service  *ingest.Service
	readings store.ReadingStore
	maxList  int
}

// NewReadingsHandler creates the handler.
func NewReadingsHandler(service *ingest.Service, readings store.ReadingStore, maxList int) *ReadingsHandler {
	if maxList <= 0 {
		maxList = 5000
	}
	return &ReadingsHandler{service: service, readings: readings, maxList: maxList}
}

// readingInput is the ingestion payload from a device.
type readingInput struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PM25        *float64 `json:"pm25"`
	PM10        *float64 `json:"pm10"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Accuracy    *float64 `json:"accuracy"`
}

// Ingest handles POST /api/readings. The device comes from the auth
// middleware. The 201 acknowledges that the reading is stored and evaluation
// ran; notification outcomes never show up here.
func (h *ReadingsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	device, ok := middleware.DeviceFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "device not authenticated")
		return
	}

	var in readingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	_, err := h.service.Ingest(r.Context(), ingest.Input{
		DeviceID:    device.ID,
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		PM25:        in.PM25,
		PM10:        in.PM10,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Accuracy:    in.Accuracy,
	})
	if err != nil {
		if errors.Is(err, models.ErrMissingDevice) || errors.Is(err, models.ErrEmptyReading) || errors.Is(err, models.ErrBadCoordinate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store reading")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

// List handles GET /api/readings.
func (h *ReadingsHandler) List(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := queryInt64(r, "deviceId")
	if !ok {
		writeError(w, http.StatusBadRequest, "deviceId must be numeric")
		return
	}
	since, ok := queryTime(r, "since")
	if !ok {
		writeError(w, http.StatusBadRequest, "since must be RFC3339")
		return
	}
	to, ok := queryTime(r, "to")
	if !ok {
		writeError(w, http.StatusBadRequest, "to must be RFC3339")
		return
	}

	limit := 100
	if l, ok := queryInt64(r, "limit"); ok && l != nil {
		limit = int(*l)
		if limit < 1 {
			limit = 1
		}
		if limit > h.maxList {
			limit = h.maxList
		}
	}

	ascending := strings.EqualFold(r.URL.Query().Get("order"), "asc")

	rows, err := h.readings.ListReadings(r.Context(), store.ReadingFilter{
		DeviceID:  deviceID,
		Since:     since,
		To:        to,
		Ascending: ascending,
		Limit:     limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}
