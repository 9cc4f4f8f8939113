package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"fireguard/internal/models"
)

// Memory is an in-memory Store used for local development and tests.
// All methods hold the mutex for the duration of the call; row-level
// atomicity per create/update follows from that.
type Memory struct {
	mu         sync.RWMutex
	readings   []models.Reading
	alerts     []models.Alert
	thresholds []models.ThresholdSet
	devices    map[int64]*models.Device
	locations  []models.LocationSample

	nextReadingID   int64
	nextAlertID     int64
	nextThresholdID int64
	nextDeviceID    int64
	nextLocationID  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{devices: make(map[int64]*models.Device)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateReading(ctx context.Context, r *models.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReadingID++
	r.ID = m.nextReadingID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.readings = append(m.readings, *r)
	return nil
}

func (m *Memory) ListReadings(ctx context.Context, f ReadingFilter) ([]models.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Reading, 0)
	for _, r := range m.readings {
		if f.DeviceID != nil && r.DeviceID != *f.DeviceID {
			continue
		}
		if f.Since != nil && r.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.To != nil && r.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.Ascending {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) CreateAlert(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAlertID++
	a.ID = m.nextAlertID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *Memory) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			a := m.alerts[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveAlert(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == a.ID {
			m.alerts[i] = *a
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Alert, 0)
	for _, a := range m.alerts {
		if f.DeviceID != nil && a.DeviceID != *f.DeviceID {
			continue
		}
		if f.Since != nil && a.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && a.CreatedAt.After(*f.Until) {
			continue
		}
		if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) LatestMuted(ctx context.Context, deviceID int64, t models.MetricType, now time.Time) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if a.DeviceID == deviceID && a.Type == t && a.MutedAt(now) {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) LatestCreatedAfter(ctx context.Context, deviceID int64, t models.MetricType, cutoff time.Time) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if a.DeviceID == deviceID && a.Type == t && a.CreatedAt.After(cutoff) {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) DeviceThresholds(ctx context.Context, deviceID int64) (*models.ThresholdSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.thresholds {
		t := m.thresholds[i]
		if t.DeviceID != nil && *t.DeviceID == deviceID {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GlobalThresholds(ctx context.Context) (*models.ThresholdSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.thresholds {
		t := m.thresholds[i]
		if t.DeviceID == nil {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpsertThresholds(ctx context.Context, t *models.ThresholdSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.UpdatedAt = time.Now().UTC()
	for i := range m.thresholds {
		existing := &m.thresholds[i]
		sameScope := (existing.DeviceID == nil && t.DeviceID == nil) ||
			(existing.DeviceID != nil && t.DeviceID != nil && *existing.DeviceID == *t.DeviceID)
		if sameScope {
			t.ID = existing.ID
			*existing = *t
			return nil
		}
	}
	m.nextThresholdID++
	t.ID = m.nextThresholdID
	m.thresholds = append(m.thresholds, *t)
	return nil
}

func (m *Memory) CreateDevice(ctx context.Context, d *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDeviceID++
	d.ID = m.nextDeviceID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *Memory) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) UpdateDevicePosition(ctx context.Context, id int64, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.Lat = &lat
	d.Lng = &lng
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) AppendLocation(ctx context.Context, s *models.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLocationID++
	s.ID = m.nextLocationID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.locations = append(m.locations, *s)
	return nil
}

func (m *Memory) ListLocations(ctx context.Context, deviceID int64, limit int) ([]models.LocationSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.LocationSample, 0)
	for i := len(m.locations) - 1; i >= 0; i-- {
		if m.locations[i].DeviceID == deviceID {
			out = append(out, m.locations[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
