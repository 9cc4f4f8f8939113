package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fireguard/internal/alerts"
	"fireguard/internal/audit"
	"fireguard/internal/ingest"
	"fireguard/internal/middleware"
	"fireguard/internal/models"
	"fireguard/internal/store"
	"fireguard/internal/thresholds"
)

// nopRecorder satisfies audit.Recorder for handler tests.
type nopRecorder struct{}

func (nopRecorder) Record(ctx context.Context, deviceID int64, kind audit.Kind, details map[string]interface{}) {
}

// newIngestHandler wires a minimal pipeline behind the auth middleware the
// route uses in production.
func newIngestHandler(t *testing.T, mem *store.Memory) (http.Handler, *models.Device) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("device-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	d := &models.Device{Name: "sensor-1", APIKeyHash: string(hash)}
	if err := mem.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	service := ingest.NewService(ingest.Config{
		Readings: mem,
		Resolver: thresholds.NewResolver(mem),
		Gate:     alerts.NewGate(mem, 5*time.Minute, nil),
		Recorder: nopRecorder{},
	})
	h := NewReadingsHandler(service, mem, 5000)
	return middleware.DeviceAuth(mem)(http.HandlerFunc(h.Ingest)), d
}

func postReading(handler http.Handler, d *models.Device, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader(body))
	req.Header.Set("x-device-id", strconv.FormatInt(d.ID, 10))
	req.Header.Set("x-api-key", key)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestReadingsIngest(t *testing.T) {
	mem := store.NewMemory()
	handler, d := newIngestHandler(t, mem)

	rec := postReading(handler, d, "device-key", `{"temperature": 22.5, "humidity": 40}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rows, err := mem.ListReadings(context.Background(), store.ReadingFilter{})
	if err != nil {
		t.Fatalf("ListReadings: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 stored reading, got %d", len(rows))
	}
	if rows[0].DeviceID != d.ID || rows[0].Temperature == nil || *rows[0].Temperature != 22.5 {
		t.Errorf("reading not stored as sent: %+v", rows[0])
	}
}

func TestReadingsIngestRejections(t *testing.T) {
	mem := store.NewMemory()
	handler, d := newIngestHandler(t, mem)

	if rec := postReading(handler, d, "device-key", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: expected 400, got %d", rec.Code)
	}
	if rec := postReading(handler, d, "device-key", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty reading: expected 400, got %d", rec.Code)
	}
	if rec := postReading(handler, d, "device-key", `{"lat": 52.52}`); rec.Code != http.StatusBadRequest {
		t.Errorf("half a coordinate: expected 400, got %d", rec.Code)
	}
	if rec := postReading(handler, d, "bad-key", `{"temperature": 20}`); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: expected 403, got %d", rec.Code)
	}

	if rows, _ := mem.ListReadings(context.Background(), store.ReadingFilter{}); len(rows) != 0 {
		t.Errorf("expected no stored readings after rejections, got %d", len(rows))
	}
}

func TestReadingsList(t *testing.T) {
	mem := store.NewMemory()
	h := NewReadingsHandler(nil, mem, 5000)

	temp := 20.0
	for i := 0; i < 3; i++ {
		mem.CreateReading(context.Background(), &models.Reading{DeviceID: 1, Temperature: &temp})
	}
	mem.CreateReading(context.Background(), &models.Reading{DeviceID: 2, Temperature: &temp})

	var body struct {
		Data []models.Reading `json:"data"`
	}

	req := httptest.NewRequest(http.MethodGet, "/api/readings?deviceId=1", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &body)
	if len(body.Data) != 3 {
		t.Errorf("expected 3 readings for device 1, got %d", len(body.Data))
	}
	if body.Data[0].ID < body.Data[1].ID {
		t.Error("expected newest first by default")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/readings?deviceId=1&order=asc&limit=2", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	body.Data = nil
	decodeBody(t, rec, &body)
	if len(body.Data) != 2 || body.Data[0].ID > body.Data[1].ID {
		t.Errorf("expected ascending capped listing, got %+v", body.Data)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/readings?since=yesterday", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad since, got %d", rec.Code)
	}
}
