package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"fireguard/internal/models"
	"fireguard/internal/store"
	"fireguard/internal/thresholds"
)

// AlertsHandler serves alert listing, acknowledgement, mute, and the
// threshold query/update operations.
type AlertsHandler struct {
	alerts      store.AlertStore
	thresholds  store.ThresholdStore
	resolver    *thresholds.Resolver
	defaultMute time.Duration
	listLimit   int
}

// NewAlertsHandler creates the handler.
func NewAlertsHandler(alerts store.AlertStore, ts store.ThresholdStore, resolver *thresholds.Resolver, defaultMute time.Duration, listLimit int) *AlertsHandler {
	if defaultMute <= 0 {
		defaultMute = 60 * time.Minute
	}
	if listLimit <= 0 {
		listLimit = 200
	}
	return &AlertsHandler{
		alerts:      alerts,
		thresholds:  ts,
		resolver:    resolver,
		defaultMute: defaultMute,
		listLimit:   listLimit,
	}
}

// List handles GET /api/alerts. Newest first, capped.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
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
	until, ok := queryTime(r, "until")
	if !ok {
		writeError(w, http.StatusBadRequest, "until must be RFC3339")
		return
	}

	var acknowledged *bool
	switch r.URL.Query().Get("acknowledged") {
	case "true":
		v := true
		acknowledged = &v
	case "false":
		v := false
		acknowledged = &v
	case "":
	default:
		writeError(w, http.StatusBadRequest, "acknowledged must be true or false")
		return
	}

	rows, err := h.alerts.ListAlerts(r.Context(), store.AlertFilter{
		DeviceID:     deviceID,
		Since:        since,
		Until:        until,
		Acknowledged: acknowledged,
		Limit:        h.listLimit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// Ack handles POST /api/alerts/{id}/ack. Repeated acks just re-stamp.
func (h *AlertsHandler) Ack(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now
	if err := h.alerts.SaveAlert(r.Context(), alert); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// muteRequest is the mute payload; minutes wins only when until is absent.
type muteRequest struct {
	Minutes *float64 `json:"minutes"`
	Until   *string  `json:"until"`
}

// Mute handles POST /api/alerts/{id}/mute.
func (h *AlertsHandler) Mute(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	// an empty body means "default mute"; a malformed one is rejected
	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid mute payload")
		return
	}

	var mutedUntil time.Time
	switch {
	case req.Until != nil:
		t, err := time.Parse(time.RFC3339, *req.Until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		mutedUntil = t
	case req.Minutes != nil && !math.IsNaN(*req.Minutes) && !math.IsInf(*req.Minutes, 0):
		mutedUntil = time.Now().Add(time.Duration(*req.Minutes * float64(time.Minute)))
	default:
		mutedUntil = time.Now().Add(h.defaultMute)
	}

	mutedUntil = mutedUntil.UTC()
	alert.MutedUntil = &mutedUntil
	if err := h.alerts.SaveAlert(r.Context(), alert); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mute alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"mutedUntil": mutedUntil,
	})
}

func (h *AlertsHandler) loadAlert(w http.ResponseWriter, r *http.Request) (*models.Alert, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "alert id must be numeric")
		return nil, false
	}
	alert, err := h.alerts.GetAlert(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alert")
		return nil, false
	}
	return alert, true
}

// thresholdValues is the wire shape for threshold reads and writes.
type thresholdValues struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PM25        *float64 `json:"pm25"`
	PM10        *float64 `json:"pm10"`
}

// GetThresholds handles GET /api/alerts/thresholds?deviceId=. It returns the
// first existing scope's values; callers wanting the source tag use the
// effective variant.
func (h *AlertsHandler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := queryInt64(r, "deviceId")
	if !ok {
		writeError(w, http.StatusBadRequest, "deviceId must be numeric")
		return
	}

	t, _ := h.resolver.Resolve(r.Context(), deviceID)
	writeJSON(w, http.StatusOK, map[string]float64{
		"temperature": t.Temperature,
		"humidity":    t.Humidity,
		"pm25":        t.PM25,
		"pm10":        t.PM10,
	})
}

// GetEffectiveThresholds handles GET /api/alerts/thresholds/effective.
func (h *AlertsHandler) GetEffectiveThresholds(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := queryInt64(r, "deviceId")
	if !ok {
		writeError(w, http.StatusBadRequest, "deviceId must be numeric")
		return
	}

	t, source := h.resolver.Resolve(r.Context(), deviceID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":      source,
		"temperature": t.Temperature,
		"humidity":    t.Humidity,
		"pm25":        t.PM25,
		"pm10":        t.PM10,
	})
}

// PutThresholds handles PUT /api/alerts/thresholds?deviceId=. A missing
// deviceId updates the global scope. Absent fields fall back to the built-in
// defaults; non-finite values are rejected.
func (h *AlertsHandler) PutThresholds(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := queryInt64(r, "deviceId")
	if !ok {
		writeError(w, http.StatusBadRequest, "deviceId must be numeric")
		return
	}

	var in thresholdValues
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid thresholds payload")
		return
	}

	defaults := models.DefaultThresholds()
	row := models.ThresholdSet{
		DeviceID:    deviceID,
		Temperature: valueOr(in.Temperature, defaults.Temperature),
		Humidity:    valueOr(in.Humidity, defaults.Humidity),
		PM25:        valueOr(in.PM25, defaults.PM25),
		PM10:        valueOr(in.PM10, defaults.PM10),
	}
	if err := row.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.thresholds.UpsertThresholds(r.Context(), &row); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store thresholds")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
