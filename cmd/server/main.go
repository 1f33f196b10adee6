// Command server runs the ledger HTTP API together with the outbox
// processor. Maintenance jobs are run by ledgerctl.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/erp/ledger/internal/application/event"
	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	base, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = base.Sync() }()

	if err := run(cfg, base); err != nil {
		base.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, base *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Telemetry comes first so every later component is instrumented
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, version, base)
	if err != nil {
		return err
	}
	mp, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, version, base)
	if err != nil {
		return err
	}
	lp, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, version, base)
	if err != nil {
		return err
	}
	log := lp.Bridge(base, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	defer shutdownTelemetry(log, tp, mp, lp)

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		return err
	}
	if _, reg, err := telemetry.RegisterDBMetrics(db.DB, mp, log); err != nil {
		return err
	} else if reg != nil {
		defer func() { _ = reg.Unregister() }()
	}
	log.Info("Database connected")

	serializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(serializer)
	scope := persistence.NewGormTransactionScope(db.DB, event.NewOutboxPublisher(serializer))
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	metrics, err := telemetry.NewSettlementMetrics(telemetry.SettlementMetricsConfig{
		Meter:  mp.Meter("ledger.settlement"),
		Logger: log,
	})
	if err != nil {
		return err
	}

	idempotency, err := cache.NewIdempotencyStore(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		return err
	}

	svc := newServices(cfg, scope, idempotency, metrics, log)

	engine, err := router.New(router.Config{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		Meter:          mp.Meter("ledger.http"),
		TracingEnabled: tp.Enabled(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		System:   handler.NewSystemHandler(db, version),
		Webhooks: handler.NewWebhookHandler(svc.settlement),
		API: []router.RouteRegistrar{
			handler.NewLedgerHandler(svc.ledger, svc.statements),
			handler.NewReceivableHandler(svc.receivables),
			handler.NewBoletoHandler(svc.boletos),
			handler.NewCreditHandler(svc.credit),
			handler.NewSettlementHandler(svc.settlement),
			handler.NewCommissionHandler(svc.commissions),
			handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log)),
		},
	})
	if err != nil {
		return err
	}

	if cfg.Event.ProcessorEnabled {
		stopEvents, err := startEventDelivery(ctx, cfg, outboxRepo, serializer, idempotency, log)
		if err != nil {
			return err
		}
		defer stopEvents()
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

type services struct {
	ledger      *financeapp.LedgerService
	statements  *financeapp.StatementReconciliationService
	receivables *financeapp.ReceivableService
	boletos     *financeapp.BoletoService
	credit      *financeapp.CreditService
	settlement  *financeapp.SettlementService
	commissions *financeapp.CommissionClosureService
}

func newServices(cfg *config.Config, scope financeapp.TransactionScope, idempotency shared.IdempotencyStore, metrics *telemetry.SettlementMetrics, log *zap.Logger) *services {
	return &services{
		ledger: financeapp.NewLedgerService(financeapp.LedgerServiceConfig{
			Scope: scope, Logger: log, Metrics: metrics,
		}),
		statements: financeapp.NewStatementReconciliationService(scope, log),
		receivables: financeapp.NewReceivableService(financeapp.ReceivableServiceConfig{
			Scope: scope, Logger: log, Metrics: metrics,
		}),
		boletos: financeapp.NewBoletoService(financeapp.BoletoServiceConfig{
			Scope: scope, Logger: log, Metrics: metrics,
		}),
		credit: financeapp.NewCreditService(financeapp.CreditServiceConfig{
			Scope: scope, Logger: log, Metrics: metrics,
		}),
		settlement: financeapp.NewSettlementService(financeapp.SettlementServiceConfig{
			Scope:            scope,
			Idempotency:      idempotency,
			IdempotencyTTL:   cfg.Settlement.IdempotencyTTL,
			DefaultAccountID: cfg.Settlement.DefaultAccountID(),
			StrictBatch:      cfg.Settlement.StrictBatch,
			Logger:           log,
			Metrics:          metrics,
		}),
		commissions: financeapp.NewCommissionClosureService(financeapp.CommissionClosureServiceConfig{
			Scope: scope, Logger: log, Metrics: metrics,
		}),
	}
}

// startEventDelivery drains the outbox into the in-process bus and, when
// Kafka is enabled, forwards every ledger event to the configured topic.
func startEventDelivery(ctx context.Context, cfg *config.Config, repo *event.GormOutboxRepository, serializer *event.EventSerializer, idempotency shared.IdempotencyStore, log *zap.Logger) (func(), error) {
	bus := event.NewInMemoryEventBus(log)

	var forwarder *event.KafkaForwarder
	if cfg.Kafka.Enabled {
		producer, err := event.NewSyncProducer(event.KafkaProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
			MaxRetry: cfg.Kafka.MaxRetry,
		})
		if err != nil {
			return nil, err
		}
		forwarder = event.NewKafkaForwarder(producer, cfg.Kafka.Topic, serializer, log)
		// Redelivered outbox entries must not reach the topic twice
		bus.Subscribe(event.NewIdempotentHandler("kafka-forwarder", forwarder, idempotency, 24*time.Hour, log))
		log.Info("Kafka forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	if err := bus.Start(ctx); err != nil {
		return nil, err
	}

	pc := event.DefaultOutboxProcessorConfig()
	if cfg.Event.BatchSize > 0 {
		pc.BatchSize = cfg.Event.BatchSize
	}
	if cfg.Event.PollInterval > 0 {
		pc.PollInterval = cfg.Event.PollInterval
	}
	pc.CleanupEnabled = cfg.Event.CleanupEnabled
	if cfg.Event.CleanupRetention > 0 {
		pc.CleanupRetention = cfg.Event.CleanupRetention
	}
	processor := event.NewOutboxProcessor(repo, bus, serializer, pc, log)
	if err := processor.Start(ctx); err != nil {
		_ = bus.Stop(ctx)
		return nil, err
	}
	log.Info("Outbox processor started",
		zap.Int("batch_size", pc.BatchSize),
		zap.Duration("poll_interval", pc.PollInterval),
	)

	return func() {
		stopCtx := context.Background()
		if err := processor.Stop(stopCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
		if err := bus.Stop(stopCtx); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
		if forwarder != nil {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing kafka producer", zap.Error(err))
			}
		}
	}, nil
}

type flusher interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, providers ...flusher) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
