package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fireguard/internal/logger"
	"fireguard/internal/models"
	"fireguard/internal/store"
	"fireguard/internal/thresholds"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	m.Run()
}

func newAlertsHandler(mem *store.Memory) *AlertsHandler {
	return NewAlertsHandler(mem, mem, thresholds.NewResolver(mem), 60*time.Minute, 200)
}

func seedAlert(t *testing.T, mem *store.Memory, deviceID int64, metric models.MetricType) *models.Alert {
	t.Helper()
	a := &models.Alert{DeviceID: deviceID, Type: metric, Level: models.LevelWarning, Message: "m"}
	if err := mem.CreateAlert(context.Background(), a); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	return a
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAlertsAck(t *testing.T) {
	mem := store.NewMemory()
	h := newAlertsHandler(mem)
	a := seedAlert(t, mem, 1, models.MetricTemp)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/1/ack", nil)
	req.SetPathValue("id", strconv.FormatInt(a.ID, 10))
	rec := httptest.NewRecorder()
	h.Ack(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got, err := mem.GetAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if !got.Acknowledged || got.AcknowledgedAt == nil {
		t.Errorf("alert not acknowledged: %+v", got)
	}

	// repeated ack just re-stamps
	first := *got.AcknowledgedAt
	time.Sleep(5 * time.Millisecond)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/alerts/1/ack", nil)
	req.SetPathValue("id", strconv.FormatInt(a.ID, 10))
	h.Ack(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", rec.Code)
	}
	got, _ = mem.GetAlert(context.Background(), a.ID)
	if !got.AcknowledgedAt.After(first) {
		t.Error("expected the ack timestamp to move forward")
	}
}

func TestAlertsAckMissing(t *testing.T) {
	h := newAlertsHandler(store.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/42/ack", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	h.Ack(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/alerts/abc/ack", nil)
	req.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	h.Ack(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestAlertsMuteDefault(t *testing.T) {
	mem := store.NewMemory()
	h := newAlertsHandler(mem)
	a := seedAlert(t, mem, 1, models.MetricPM25)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/1/mute", strings.NewReader("{}"))
	req.SetPathValue("id", strconv.FormatInt(a.ID, 10))
	rec := httptest.NewRecorder()
	h.Mute(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		OK         bool      `json:"ok"`
		MutedUntil time.Time `json:"mutedUntil"`
	}
	decodeBody(t, rec, &body)
	if !body.OK {
		t.Error("expected ok response")
	}

	want := time.Now().Add(60 * time.Minute)
	if diff := body.MutedUntil.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expected mute of roughly 60 minutes, got until %v", body.MutedUntil)
	}

	got, _ := mem.GetAlert(context.Background(), a.ID)
	if got.MutedUntil == nil || !got.MutedUntil.Equal(body.MutedUntil) {
		t.Errorf("stored mute does not match response: %+v vs %v", got.MutedUntil, body.MutedUntil)
	}
}

func TestAlertsMuteMinutesAndUntil(t *testing.T) {
	mem := store.NewMemory()
	h := newAlertsHandler(mem)
	a := seedAlert(t, mem, 1, models.MetricPM10)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/1/mute", strings.NewReader(`{"minutes": 15}`))
	req.SetPathValue("id", strconv.FormatInt(a.ID, 10))
	rec := httptest.NewRecorder()
	h.Mute(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got, _ := mem.GetAlert(context.Background(), a.ID)
	want := time.Now().Add(15 * time.Minute)
	if diff := got.MutedUntil.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expected 15 minute mute, got until %v", got.MutedUntil)
	}

	// an explicit until wins over minutes
	until := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Second)
	payload := `{"minutes": 5, "until": "` + until.Format(time.RFC3339) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/api/alerts/1/mute", strings.NewReader(payload))
	req.SetPathValue("id", strconv.FormatInt(a.ID, 10))
	rec = httptest.NewRecorder()
	h.Mute(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got, _ = mem.GetAlert(context.Background(), a.ID)
	if !got.MutedUntil.Equal(until) {
		t.Errorf("expected mute until %v, got %v", until, got.MutedUntil)
	}

	// malformed until is rejected
	req = httptest.NewRequest(http.MethodPost, "/api/alerts/1/mute", strings.NewReader(`{"until": "tomorrow"}`))
	req.SetPathValue("id", strconv.FormatInt(a.ID, 10))
	rec = httptest.NewRecorder()
	h.Mute(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed until, got %d", rec.Code)
	}
}

func TestAlertsMuteBodyHandling(t *testing.T) {
	mem := store.NewMemory()
	h := newAlertsHandler(mem)
	a := seedAlert(t, mem, 1, models.MetricTemp)
	id := strconv.FormatInt(a.ID, 10)

	// no body at all still means the default mute
	req := httptest.NewRequest(http.MethodPost, "/api/alerts/1/mute", nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.Mute(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got, _ := mem.GetAlert(context.Background(), a.ID)
	if got.MutedUntil == nil {
		t.Fatal("expected default mute to be applied")
	}

	// a body that is not JSON is rejected, not silently defaulted
	before := *got.MutedUntil
	req = httptest.NewRequest(http.MethodPost, "/api/alerts/1/mute", strings.NewReader(`minutes=15`))
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	h.Mute(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}
	got, _ = mem.GetAlert(context.Background(), a.ID)
	if !got.MutedUntil.Equal(before) {
		t.Error("malformed body must not change the stored mute")
	}
}

func TestAlertsListFilters(t *testing.T) {
	mem := store.NewMemory()
	h := newAlertsHandler(mem)

	a := seedAlert(t, mem, 1, models.MetricTemp)
	seedAlert(t, mem, 2, models.MetricTemp)
	now := time.Now().UTC()
	a.Acknowledged = true
	a.AcknowledgedAt = &now
	mem.SaveAlert(context.Background(), a)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?deviceId=1", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rows []models.Alert
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || rows[0].DeviceID != 1 {
		t.Errorf("expected only device 1 alerts, got %+v", rows)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/alerts?acknowledged=false", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	rows = nil
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || rows[0].DeviceID != 2 {
		t.Errorf("expected only the unacknowledged alert, got %+v", rows)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/alerts?acknowledged=maybe", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad acknowledged value, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/alerts?deviceId=abc", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad deviceId, got %d", rec.Code)
	}
}

func TestThresholdsPutAndGetEffective(t *testing.T) {
	mem := store.NewMemory()
	h := newAlertsHandler(mem)

	// before any row exists the defaults apply
	req := httptest.NewRequest(http.MethodGet, "/api/alerts/thresholds/effective?deviceId=1", nil)
	rec := httptest.NewRecorder()
	h.GetEffectiveThresholds(rec, req)
	var eff struct {
		Source      string  `json:"source"`
		Temperature float64 `json:"temperature"`
	}
	decodeBody(t, rec, &eff)
	if eff.Source != "default" || eff.Temperature != 60 {
		t.Errorf("expected built-in defaults, got %+v", eff)
	}

	// global update with a partial payload falls back to defaults elsewhere
	req = httptest.NewRequest(http.MethodPut, "/api/alerts/thresholds", strings.NewReader(`{"temperature": 48}`))
	rec = httptest.NewRecorder()
	h.PutThresholds(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/alerts/thresholds/effective?deviceId=1", nil)
	rec = httptest.NewRecorder()
	h.GetEffectiveThresholds(rec, req)
	decodeBody(t, rec, &eff)
	if eff.Source != "global" || eff.Temperature != 48 {
		t.Errorf("expected global scope with temperature 48, got %+v", eff)
	}

	// device-scoped row wins over global
	req = httptest.NewRequest(http.MethodPut, "/api/alerts/thresholds?deviceId=1", strings.NewReader(`{"temperature": 40, "humidity": 30, "pm25": 90, "pm10": 120}`))
	rec = httptest.NewRecorder()
	h.PutThresholds(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/alerts/thresholds/effective?deviceId=1", nil)
	rec = httptest.NewRecorder()
	h.GetEffectiveThresholds(rec, req)
	decodeBody(t, rec, &eff)
	if eff.Source != "device" || eff.Temperature != 40 {
		t.Errorf("expected device scope with temperature 40, got %+v", eff)
	}

	// another device still sees the global row
	req = httptest.NewRequest(http.MethodGet, "/api/alerts/thresholds?deviceId=2", nil)
	rec = httptest.NewRecorder()
	h.GetThresholds(rec, req)
	var vals map[string]float64
	decodeBody(t, rec, &vals)
	if vals["temperature"] != 48 {
		t.Errorf("expected global temperature 48 for device 2, got %+v", vals)
	}
}

func TestThresholdsPutRejectsNonFinite(t *testing.T) {
	h := newAlertsHandler(store.NewMemory())

	req := httptest.NewRequest(http.MethodPut, "/api/alerts/thresholds", strings.NewReader(`{"temperature": 1e999}`))
	rec := httptest.NewRecorder()
	h.PutThresholds(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-finite payload, got %d", rec.Code)
	}
}
