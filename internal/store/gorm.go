package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fireguard/internal/models"
)

// Gorm is the SQL-backed Store. Production runs it on Postgres; tests open it
// on an in-memory sqlite database.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an open gorm handle and migrates the schema.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(
		&models.Device{},
		&models.Reading{},
		&models.Alert{},
		&models.ThresholdSet{},
		&models.LocationSample{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Gorm{db: db}, nil
}

// OpenPostgres connects to Postgres and returns a migrated store.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGorm(db)
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *Gorm) CreateReading(ctx context.Context, r *models.Reading) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return g.db.WithContext(ctx).Create(r).Error
}

func (g *Gorm) ListReadings(ctx context.Context, f ReadingFilter) ([]models.Reading, error) {
	q := g.db.WithContext(ctx).Model(&models.Reading{})
	if f.DeviceID != nil {
		q = q.Where("device_id = ?", *f.DeviceID)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if f.Ascending {
		q = q.Order("id ASC")
	} else {
		q = q.Order("id DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.Reading
	return out, q.Find(&out).Error
}

func (g *Gorm) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return g.db.WithContext(ctx).Create(a).Error
}

func (g *Gorm) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	var a models.Alert
	err := g.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *Gorm) SaveAlert(ctx context.Context, a *models.Alert) error {
	return g.db.WithContext(ctx).Save(a).Error
}

func (g *Gorm) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	q := g.db.WithContext(ctx).Model(&models.Alert{})
	if f.DeviceID != nil {
		q = q.Where("device_id = ?", *f.DeviceID)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("created_at <= ?", *f.Until)
	}
	if f.Acknowledged != nil {
		q = q.Where("acknowledged = ?", *f.Acknowledged)
	}
	q = q.Order("id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.Alert
	return out, q.Find(&out).Error
}

func (g *Gorm) LatestMuted(ctx context.Context, deviceID int64, t models.MetricType, now time.Time) (*models.Alert, error) {
	var a models.Alert
	err := g.db.WithContext(ctx).
		Where("device_id = ? AND type = ? AND muted_until > ?", deviceID, t, now).
		Order("id DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *Gorm) LatestCreatedAfter(ctx context.Context, deviceID int64, t models.MetricType, cutoff time.Time) (*models.Alert, error) {
	var a models.Alert
	err := g.db.WithContext(ctx).
		Where("device_id = ? AND type = ? AND created_at > ?", deviceID, t, cutoff).
		Order("id DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *Gorm) DeviceThresholds(ctx context.Context, deviceID int64) (*models.ThresholdSet, error) {
	var t models.ThresholdSet
	err := g.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (g *Gorm) GlobalThresholds(ctx context.Context) (*models.ThresholdSet, error) {
	var t models.ThresholdSet
	err := g.db.WithContext(ctx).Where("device_id IS NULL").First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (g *Gorm) UpsertThresholds(ctx context.Context, t *models.ThresholdSet) error {
	q := g.db.WithContext(ctx).Model(&models.ThresholdSet{})
	var existing models.ThresholdSet
	var err error
	if t.DeviceID != nil {
		err = q.Where("device_id = ?", *t.DeviceID).First(&existing).Error
	} else {
		err = q.Where("device_id IS NULL").First(&existing).Error
	}
	if err == nil {
		t.ID = existing.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return g.db.WithContext(ctx).Save(t).Error
}

func (g *Gorm) CreateDevice(ctx context.Context, d *models.Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return g.db.WithContext(ctx).Create(d).Error
}

func (g *Gorm) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	var d models.Device
	err := g.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (g *Gorm) UpdateDevicePosition(ctx context.Context, id int64, lat, lng float64) error {
	res := g.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"lat": lat, "lng": lng})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) AppendLocation(ctx context.Context, s *models.LocationSample) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return g.db.WithContext(ctx).Create(s).Error
}

func (g *Gorm) ListLocations(ctx context.Context, deviceID int64, limit int) ([]models.LocationSample, error) {
	q := g.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.LocationSample
	return out, q.Find(&out).Error
}
