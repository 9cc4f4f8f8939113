package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"fireguard/internal/models"
	"fireguard/internal/store"
)

func testCandidate() Candidate {
	return Candidate{
		Type:    models.MetricPM25,
		Value:   250,
		Level:   models.LevelWarning,
		Message: "PM2.5 high: 250 (threshold 200) [th:default]",
	}
}

func TestGate_AdmitCreatesAlert(t *testing.T) {
	mem := store.NewMemory()
	gate := NewGate(mem, 5*time.Minute, clock.NewMock())

	alert, reason, err := gate.Admit(context.Background(), 1, testCandidate())
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if reason != Admitted {
		t.Fatalf("expected admission, got %q", reason)
	}
	if alert == nil || alert.ID == 0 {
		t.Fatalf("expected a persisted alert, got %+v", alert)
	}
	if alert.Level != models.LevelWarning || alert.Type != models.MetricPM25 {
		t.Errorf("alert does not carry candidate fields: %+v", alert)
	}
}

func TestGate_DedupWindow(t *testing.T) {
	mem := store.NewMemory()
	clk := clock.NewMock()
	gate := NewGate(mem, 5*time.Minute, clk)
	ctx := context.Background()

	if _, reason, _ := gate.Admit(ctx, 1, testCandidate()); reason != Admitted {
		t.Fatalf("first breach should be admitted, got %q", reason)
	}

	// second breach inside the window is suppressed
	clk.Add(2 * time.Minute)
	alert, reason, err := gate.Admit(ctx, 1, testCandidate())
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if reason != SuppressedDedup || alert != nil {
		t.Fatalf("expected dedup suppression, got reason=%q alert=%+v", reason, alert)
	}

	// third breach after the window creates a second alert
	clk.Add(4 * time.Minute)
	if _, reason, _ := gate.Admit(ctx, 1, testCandidate()); reason != Admitted {
		t.Fatalf("breach after window should be admitted, got %q", reason)
	}

	rows, _ := mem.ListAlerts(ctx, store.AlertFilter{})
	if len(rows) != 2 {
		t.Errorf("expected exactly 2 persisted alerts, got %d", len(rows))
	}
}

func TestGate_DedupIsPerDeviceAndMetric(t *testing.T) {
	mem := store.NewMemory()
	clk := clock.NewMock()
	gate := NewGate(mem, 5*time.Minute, clk)
	ctx := context.Background()

	if _, reason, _ := gate.Admit(ctx, 1, testCandidate()); reason != Admitted {
		t.Fatal("first breach should be admitted")
	}

	// other device, same metric
	if _, reason, _ := gate.Admit(ctx, 2, testCandidate()); reason != Admitted {
		t.Errorf("other device should not be deduped, got %q", reason)
	}

	// same device, other metric
	c := testCandidate()
	c.Type = models.MetricTemp
	if _, reason, _ := gate.Admit(ctx, 1, c); reason != Admitted {
		t.Errorf("other metric should not be deduped, got %q", reason)
	}
}

func TestGate_MuteSuppressesUntilElapsed(t *testing.T) {
	mem := store.NewMemory()
	clk := clock.NewMock()
	gate := NewGate(mem, 5*time.Minute, clk)
	ctx := context.Background()

	first, reason, _ := gate.Admit(ctx, 1, testCandidate())
	if reason != Admitted {
		t.Fatal("first breach should be admitted")
	}

	// operator mutes for 60 minutes
	mutedUntil := clk.Now().Add(60 * time.Minute)
	first.MutedUntil = &mutedUntil
	if err := mem.SaveAlert(ctx, first); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	// well past the dedup window but inside the mute
	clk.Add(30 * time.Minute)
	_, reason, err := gate.Admit(ctx, 1, testCandidate())
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if reason != SuppressedMuted {
		t.Fatalf("expected mute suppression, got %q", reason)
	}

	// after the mute elapses the breach goes through again
	clk.Add(31 * time.Minute)
	if _, reason, _ := gate.Admit(ctx, 1, testCandidate()); reason != Admitted {
		t.Fatalf("breach after mute expiry should be admitted, got %q", reason)
	}
}

func TestGate_MuteCheckedBeforeDedup(t *testing.T) {
	mem := store.NewMemory()
	clk := clock.NewMock()
	gate := NewGate(mem, 5*time.Minute, clk)
	ctx := context.Background()

	first, _, _ := gate.Admit(ctx, 1, testCandidate())
	mutedUntil := clk.Now().Add(time.Hour)
	first.MutedUntil = &mutedUntil
	if err := mem.SaveAlert(ctx, first); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	// inside both the mute and the dedup window; mute wins
	clk.Add(time.Minute)
	_, reason, _ := gate.Admit(ctx, 1, testCandidate())
	if reason != SuppressedMuted {
		t.Fatalf("expected mute to be reported, got %q", reason)
	}
}
