// Command server runs the society ledger HTTP API.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	bulkbillapp "github.com/societyledger/backend/internal/application/bulkbill"
	ledgerapp "github.com/societyledger/backend/internal/application/ledger"
	memberapp "github.com/societyledger/backend/internal/application/member"
	notificationapp "github.com/societyledger/backend/internal/application/notification"
	sequenceapp "github.com/societyledger/backend/internal/application/sequence"
	"github.com/societyledger/backend/internal/domain/sequence"
	"github.com/societyledger/backend/internal/infrastructure/cache"
	"github.com/societyledger/backend/internal/infrastructure/config"
	"github.com/societyledger/backend/internal/infrastructure/logger"
	"github.com/societyledger/backend/internal/infrastructure/messaging"
	"github.com/societyledger/backend/internal/infrastructure/persistence"
	"github.com/societyledger/backend/internal/infrastructure/telemetry"
	"github.com/societyledger/backend/internal/interfaces/http/handler"
	"github.com/societyledger/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      cfg.Telemetry.ProfilingEnabled,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := telemetry.BridgeLogger(baseLog, providers, logger.ParseLevel(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	log.Info("Starting society ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileMutex:    true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracing.DBName = cfg.Database.DBName
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected")

	idempotency, err := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	var publisher messaging.JobPublisher = messaging.NopPublisher{}
	if cfg.Messaging.Enabled {
		publisher = messaging.NewKafkaJobPublisher(cfg.Messaging.Brokers, cfg.Messaging.Topic)
		log.Info("Publishing notification wake-ups to Kafka",
			zap.Strings("brokers", cfg.Messaging.Brokers),
			zap.String("topic", cfg.Messaging.Topic),
		)
	}

	metrics, err := telemetry.NewBillingMetrics(providers.Meter("society-ledger/billing"))
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	retry := persistence.RetryPolicy{MaxAttempts: cfg.Ledger.MaxRetries, Backoff: cfg.Ledger.RetryBackoff}
	formatter := sequence.Formatter{FYStartMonth: time.Month(cfg.Billing.FYStartMonth), Width: sequence.DefaultFormatter().Width}

	sequenceRepo := persistence.NewGormSequenceRepository(db.DB, retry)
	flatRepo := persistence.NewGormFlatRepository(db.DB)
	pendingJobRepo := persistence.NewGormPendingJobRepository(db.DB, retry)

	ledgerService := ledgerapp.NewService(persistence.NewGormLedgerRepository(db.DB, retry), metrics)
	bulkBillService := bulkbillapp.NewService(bulkbillapp.Dependencies{
		Directory:      flatRepo,
		Numbers:        sequenceapp.NewService(sequenceRepo, formatter, metrics),
		MasterBills:    persistence.NewGormMasterBillRepository(db.DB),
		RecipientBills: persistence.NewGormRecipientBillRepository(db.DB),
		Settler:        persistence.NewGormWalletSettlementRepository(db.DB, sequenceRepo, formatter),
		Ledger:         ledgerService,
		Notifications:  messaging.NewNotifyingQueue(pendingJobRepo, publisher),
		Idempotency:    idempotency,
		Metrics:        metrics,
	}, bulkbillapp.ConfigFrom(cfg.Billing, cfg.Ledger.RetryBackoff))

	checks := map[string]handler.Pinger{
		"database": handler.PingFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if p, ok := idempotency.(handler.Pinger); ok {
		checks["redis"] = p
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   cfg.Telemetry.Enabled,
		ProfilingEnabled: cfg.Telemetry.ProfilingEnabled,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		Meter:            providers.Meter("society-ledger/http"),
	}, log, router.Handlers{
		BulkBills:     handler.NewBulkBillHandler(bulkBillService),
		Ledgers:       handler.NewLedgerHandler(ledgerService),
		Flats:         handler.NewFlatHandler(memberapp.NewService(flatRepo)),
		Notifications: handler.NewNotificationHandler(notificationapp.NewService(pendingJobRepo)),
		System:        handler.NewSystemHandler(cfg.App.Name, version, checks),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// in-flight bulk bills finish their settlement before the stores close
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	closeQuietly(log, "kafka publisher", publisher)
	if c, ok := idempotency.(io.Closer); ok {
		closeQuietly(log, "idempotency store", c)
	}
	closeQuietly(log, "database", db)
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func closeQuietly(log *zap.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error("Error closing "+name, zap.Error(err))
	}
}
