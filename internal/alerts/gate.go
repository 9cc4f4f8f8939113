package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"fireguard/internal/models"
	"fireguard/internal/store"
)

// SuppressReason says why a candidate was not admitted.
type SuppressReason string

const (
	// Admitted means no suppression rule matched.
	Admitted SuppressReason = ""
	// SuppressedMuted means the newest alert for the pair carries an active mute.
	SuppressedMuted SuppressReason = "muted"
	// SuppressedDedup means an alert for the pair was created inside the window.
	SuppressedDedup SuppressReason = "dedup"
)

// Gate filters candidate breaches through mute and dedup policy and persists
// the survivors as new alerts. The mute check runs first; only when no active
// mute exists does the dedup window apply.
//
// The check-then-create sequence is not globally atomic: two concurrent
// ingestions for the same device and metric can both pass the checks and each
// create an alert. That window is accepted; the 5-minute dedup granularity
// makes the duplication minor and self-limiting.
type Gate struct {
	alerts store.AlertStore
	window time.Duration
	clock  clock.Clock
}

// NewGate creates a gate with the given dedup window. A nil clk falls back to
// the wall clock; tests inject a mock clock to drive the window.
func NewGate(alerts store.AlertStore, window time.Duration, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.New()
	}
	return &Gate{alerts: alerts, window: window, clock: clk}
}

// Admit decides whether the candidate becomes a persisted alert. On admission
// it creates and returns the new alert; on suppression it returns the reason
// and a nil alert. The gate only ever creates new rows, never touching the
// record it suppressed against.
func (g *Gate) Admit(ctx context.Context, deviceID int64, c Candidate) (*models.Alert, SuppressReason, error) {
	now := g.clock.Now()

	muted, err := g.alerts.LatestMuted(ctx, deviceID, c.Type, now)
	if err != nil {
		return nil, Admitted, fmt.Errorf("mute lookup: %w", err)
	}
	if muted != nil {
		return nil, SuppressedMuted, nil
	}

	recent, err := g.alerts.LatestCreatedAfter(ctx, deviceID, c.Type, now.Add(-g.window))
	if err != nil {
		return nil, Admitted, fmt.Errorf("dedup lookup: %w", err)
	}
	if recent != nil {
		return nil, SuppressedDedup, nil
	}

	alert := &models.Alert{
		DeviceID:  deviceID,
		Type:      c.Type,
		Level:     c.Level,
		Message:   c.Message,
		CreatedAt: now.UTC(),
	}
	if err := g.alerts.CreateAlert(ctx, alert); err != nil {
		return nil, Admitted, fmt.Errorf("create alert: %w", err)
	}
	return alert, Admitted, nil
}
