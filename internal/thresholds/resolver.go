package thresholds

import (
	"context"

	"fireguard/internal/logger"
	"fireguard/internal/models"
	"fireguard/internal/store"
)

// Resolver resolves the effective threshold set for a device by trying an
// ordered chain of scopes: device row, then the global row, then the built-in
// defaults. Resolution never fails visibly; a missing or errored lookup just
// falls through to the next scope.
type Resolver struct {
	store store.ThresholdStore
}

// NewResolver creates a resolver backed by the given threshold store.
func NewResolver(s store.ThresholdStore) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the threshold set that applies to the device, together with
// the scope it came from. A nil deviceID skips the device-scoped lookup.
func (r *Resolver) Resolve(ctx context.Context, deviceID *int64) (models.ThresholdSet, models.ThresholdSource) {
	log := logger.WithComponent("thresholds")

	type lookup struct {
		source models.ThresholdSource
		fn     func() (*models.ThresholdSet, error)
	}

	chain := make([]lookup, 0, 2)
	if deviceID != nil {
		id := *deviceID
		chain = append(chain, lookup{models.SourceDevice, func() (*models.ThresholdSet, error) {
			return r.store.DeviceThresholds(ctx, id)
		}})
	}
	chain = append(chain, lookup{models.SourceGlobal, func() (*models.ThresholdSet, error) {
		return r.store.GlobalThresholds(ctx)
	}})

	for _, l := range chain {
		t, err := l.fn()
		if err == nil && t != nil {
			return *t, l.source
		}
		if err != nil && err != store.ErrNotFound {
			log.Debug().Err(err).Str("scope", string(l.source)).Msg("threshold lookup failed, falling through")
		}
	}

	return models.DefaultThresholds(), models.SourceDefault
}
