package notify

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"fireguard/internal/audit"
	"fireguard/internal/live"
	"fireguard/internal/logger"
	"fireguard/internal/metrics"
	"fireguard/internal/models"
)

// ExternalSender delivers one alert over the external channel (e.g. email).
type ExternalSender interface {
	Send(ctx context.Context, a *models.Alert) error
}

// attemptTimeout bounds a single external-channel attempt.
const attemptTimeout = 10 * time.Second

// Dispatcher fans a newly admitted alert out to the live channel and, in a
// detached task, to the external channel. The live publish is synchronous and
// best-effort. The external send retries transient failures with exponential
// backoff, writes its terminal outcome to the audit sink, and is never awaited
// by the ingestion path: it runs on its own background context, so a caller
// hanging up cannot cancel an in-flight send. Independent alerts dispatch
// concurrently and cannot fail each other.
type Dispatcher struct {
	live     live.Publisher
	sender   ExternalSender
	recorder audit.Recorder
	retries  int
	initial  time.Duration

	mu       sync.Mutex
	inflight int
	idle     chan struct{} // non-nil while a Drain waits for inflight to reach zero
}

// Config holds dispatcher configuration.
type Config struct {
	Live     live.Publisher
	Sender   ExternalSender // nil disables the external channel
	Recorder audit.Recorder
	Retries  int           // attempts beyond the first
	Backoff  time.Duration // initial backoff between attempts
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Dispatcher{
		live:     cfg.Live,
		sender:   cfg.Sender,
		recorder: cfg.Recorder,
		retries:  cfg.Retries,
		initial:  cfg.Backoff,
	}
}

// Dispatch handles one newly persisted alert. It returns as soon as the live
// publish is done; the external send continues in the background.
func (d *Dispatcher) Dispatch(a *models.Alert) {
	if d.live != nil {
		d.live.Publish(live.Event{Name: live.EventAlertNew, Payload: a})
	}

	if d.sender == nil {
		return
	}

	d.begin()
	go d.sendExternal(a)
}

func (d *Dispatcher) begin() {
	d.mu.Lock()
	d.inflight++
	d.mu.Unlock()
}

func (d *Dispatcher) end() {
	d.mu.Lock()
	d.inflight--
	if d.inflight == 0 && d.idle != nil {
		close(d.idle)
		d.idle = nil
	}
	d.mu.Unlock()
}

// Drain waits up to timeout for in-flight external sends to finish. Used at
// shutdown; sends still running after the timeout are abandoned. Spawns
// nothing, so a timed-out drain leaves no waiter behind.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	d.mu.Lock()
	if d.inflight == 0 {
		d.mu.Unlock()
		return true
	}
	if d.idle == nil {
		d.idle = make(chan struct{})
	}
	ch := d.idle
	d.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// newBackoff builds the retry schedule: starts at initial, doubles every
// attempt, bounded by the retry count rather than wall time.
func newBackoff(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return b
}

func (d *Dispatcher) sendExternal(a *models.Alert) {
	defer d.end()

	log := logger.WithComponent("dispatcher").With().
		Int64("alert_id", a.ID).
		Int64("device_id", a.DeviceID).
		Str("type", string(a.Type)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("external send panic recovered")
			metrics.PanicsRecovered.WithLabelValues("dispatcher").Inc()
		}
	}()

	start := time.Now()

	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
		defer cancel()

		err := d.sender.Send(ctx, a)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := newBackoff(d.initial)

	notify := func(err error, next time.Duration) {
		metrics.NotificationRetriesTotal.Inc()
		log.Warn().Err(err).Dur("backoff", next).Msg("transient notification failure, retrying")
	}

	err := backoff.RetryNotify(op, backoff.WithMaxRetries(b, uint64(d.retries)), notify)
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())

	details := map[string]interface{}{
		"alertId": a.ID,
		"type":    a.Type,
		"level":   a.Level,
	}

	if err != nil {
		details["error"] = err.Error()
		d.recorder.Record(context.Background(), a.DeviceID, audit.KindNotificationFailed, details)
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("external notification failed")
		return
	}

	d.recorder.Record(context.Background(), a.DeviceID, audit.KindNotificationSent, details)
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	log.Info().Dur("duration", time.Since(start)).Msg("external notification sent")
}
