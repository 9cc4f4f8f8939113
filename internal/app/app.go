package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fireguard/internal/alerts"
	"fireguard/internal/audit"
	"fireguard/internal/config"
	"fireguard/internal/handlers"
	"fireguard/internal/ingest"
	"fireguard/internal/live"
	"fireguard/internal/location"
	"fireguard/internal/logger"
	"fireguard/internal/middleware"
	"fireguard/internal/notify"
	"fireguard/internal/store"
	"fireguard/internal/thresholds"
)

// App is the high-level coordinator wiring the store, the live hub, the
// ingestion pipeline and the HTTP server together.
type App struct {
	cfg        *config.Config
	store      store.Store
	hub        *live.Hub
	dispatcher *notify.Dispatcher
	kafkaAudit *audit.KafkaRecorder
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs an App with the given config.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run starts background goroutines and blocks until context cancelled.
func (a *App) Run(ctx context.Context) error {
	log := logger.WithComponent("app")
	log.Info().Msg("fireguard starting")

	if err := a.initStore(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	recorder, err := a.initAudit()
	if err != nil {
		return fmt.Errorf("failed to initialize audit sinks: %w", err)
	}

	a.hub = live.NewHub()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.hub.Run()
	}()

	sender, err := a.initSender()
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	a.dispatcher = notify.NewDispatcher(notify.Config{
		Live:     a.hub,
		Sender:   sender,
		Recorder: recorder,
		Retries:  a.cfg.NotifyRetries,
		Backoff:  a.cfg.NotifyBackoff,
	})

	resolver := thresholds.NewResolver(a.store)
	gate := alerts.NewGate(a.store, a.cfg.DedupWindow, nil)
	detector := location.NewDetector(a.store, a.store, recorder)

	service := ingest.NewService(ingest.Config{
		Readings:   a.store,
		Resolver:   resolver,
		Gate:       gate,
		Detector:   detector,
		Dispatcher: a.dispatcher,
		Live:       a.hub,
		Recorder:   recorder,
	})

	a.initHTTPServer(service, resolver, detector)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().Str("addr", a.cfg.ListenAddr).Msg("starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return a.shutdown()
}

// initStore opens Postgres when a DSN is configured, otherwise the in-memory
// store for local development.
func (a *App) initStore() error {
	log := logger.WithComponent("app")
	if a.cfg.DatabaseDSN == "" {
		log.Warn().Msg("no DATABASE_DSN configured, using in-memory store")
		a.store = store.NewMemory()
		return nil
	}
	g, err := store.OpenPostgres(a.cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	a.store = g
	log.Info().Msg("postgres store initialized")
	return nil
}

// initAudit builds the audit fan-out: always the log sink, plus Kafka when
// brokers are configured.
func (a *App) initAudit() (audit.Recorder, error) {
	sinks := []audit.Recorder{audit.NewLogRecorder()}
	if len(a.cfg.KafkaBrokers) > 0 {
		k, err := audit.NewKafkaRecorder(audit.KafkaConfig{
			Brokers: a.cfg.KafkaBrokers,
			Topic:   a.cfg.KafkaAuditTopic,
		})
		if err != nil {
			return nil, err
		}
		a.kafkaAudit = k
		sinks = append(sinks, k)
		log := logger.WithComponent("app")
		log.Info().
			Strs("brokers", a.cfg.KafkaBrokers).
			Str("topic", a.cfg.KafkaAuditTopic).
			Msg("kafka audit sink initialized")
	}
	return audit.NewFanout(sinks...), nil
}

// initSender builds the SMTP channel; unset SMTP config disables it.
func (a *App) initSender() (notify.ExternalSender, error) {
	if a.cfg.SMTPHost == "" {
		log := logger.WithComponent("app")
		log.Warn().Msg("no SMTP_HOST configured, external notifications disabled")
		return nil, nil
	}
	return notify.NewMailer(notify.MailerConfig{
		Host:       a.cfg.SMTPHost,
		Port:       a.cfg.SMTPPort,
		Username:   a.cfg.SMTPUsername,
		Password:   a.cfg.SMTPPassword,
		Sender:     a.cfg.SenderEmail,
		Recipients: a.cfg.AlertRecipients,
	})
}

// initHTTPServer registers routes with per-route middleware chains.
func (a *App) initHTTPServer(service *ingest.Service, resolver *thresholds.Resolver, detector *location.Detector) {
	mux := http.NewServeMux()

	readingsH := handlers.NewReadingsHandler(service, a.store, a.cfg.ReadingListLimit)
	alertsH := handlers.NewAlertsHandler(a.store, a.store, resolver, a.cfg.DefaultMute, a.cfg.AlertListLimit)
	devicesH := handlers.NewDevicesHandler(a.store, a.store, detector)

	base := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, middleware.Recovery, middleware.Logging)
	}

	mux.Handle("POST /api/readings", middleware.Chain(
		http.HandlerFunc(readingsH.Ingest),
		middleware.Recovery,
		middleware.Logging,
		middleware.DeviceAuth(a.store),
	))
	mux.Handle("GET /api/readings", base(readingsH.List))

	mux.Handle("GET /api/alerts", base(alertsH.List))
	mux.Handle("POST /api/alerts/{id}/ack", base(alertsH.Ack))
	mux.Handle("POST /api/alerts/{id}/mute", base(alertsH.Mute))
	mux.Handle("GET /api/alerts/thresholds", base(alertsH.GetThresholds))
	mux.Handle("PUT /api/alerts/thresholds", base(alertsH.PutThresholds))
	mux.Handle("GET /api/alerts/thresholds/effective", base(alertsH.GetEffectiveThresholds))

	mux.Handle("PUT /api/devices/{id}/location", base(devicesH.UpdateLocation))
	mux.Handle("GET /api/devices/{id}/locations", base(devicesH.LocationHistory))

	mux.HandleFunc("GET /ws/monitor", a.hub.ServeWS)

	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	a.httpServer = &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (a *App) shutdown() error {
	log := logger.WithComponent("app")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Let in-flight external notifications finish or fail naturally
	if a.dispatcher.Drain(15 * time.Second) {
		log.Info().Msg("notification dispatch drained")
	} else {
		log.Warn().Msg("notification drain timeout, abandoning in-flight sends")
	}

	// 3. Disconnect live subscribers
	log.Info().Msg("stopping live hub")
	a.hub.Stop()

	// 4. Flush the Kafka audit sink
	if a.kafkaAudit != nil {
		log.Info().Msg("closing kafka audit sink")
		if err := a.kafkaAudit.Close(); err != nil {
			log.Error().Err(err).Msg("kafka audit sink close error")
		}
	}

	// 5. Close the store and wait for goroutines
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("store close error")
	}
	a.wg.Wait()

	log.Info().Msg("fireguard stopped gracefully")
	return nil
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
