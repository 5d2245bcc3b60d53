package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/defect-armada/internal/api"
	"github.com/ahrav/defect-armada/internal/api/debug"
	"github.com/ahrav/defect-armada/internal/api/health"
	"github.com/ahrav/defect-armada/internal/api/mux"
	"github.com/ahrav/defect-armada/internal/api/routes"
	appDefect "github.com/ahrav/defect-armada/internal/app/defect"
	"github.com/ahrav/defect-armada/internal/config"
	"github.com/ahrav/defect-armada/internal/config/fileloader"
	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/domain/events"
	"github.com/ahrav/defect-armada/internal/infra/eventbus/kafka"
	"github.com/ahrav/defect-armada/internal/infra/eventbus/memory"
	"github.com/ahrav/defect-armada/internal/infra/storage"
	memoryStore "github.com/ahrav/defect-armada/internal/infra/storage/defect/memory"
	defectStore "github.com/ahrav/defect-armada/internal/infra/storage/defect/postgres"
	"github.com/ahrav/defect-armada/pkg/common"
	"github.com/ahrav/defect-armada/pkg/common/logger"
	"github.com/ahrav/defect-armada/pkg/common/otel"
)

var build = "develop"

const (
	serviceType = "defect-api"
)

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	ctx := context.Background()

	cfg, err := fileloader.NewFileLoader(os.Getenv("DEFECT_CONFIG_FILE")).Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("DEFECT-API-%s", hostname)
	metadata := map[string]string{
		"service":   svcName,
		"hostname":  hostname,
		"pod":       os.Getenv("POD_NAME"),
		"namespace": os.Getenv("POD_NAMESPACE"),
		"app":       serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logger.ParseLevel(cfg.Log.Level), svcName, traceIDFn, logEvents, metadata)

	if err := run(ctx, log, cfg, hostname); err != nil {
		log.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, cfg *config.Config, hostname string) error {
	// -------------------------------------------------------------------------
	// GOMAXPROCS
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	// -------------------------------------------------------------------------
	// Start Tracing Support
	log.Info(ctx, "startup", "status", "initializing tracing support")

	providers, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/readiness": {},
			"/v1/liveness":  {},
			"/debug":        {},
			"/metrics":      {},
		},
		Probability: cfg.Telemetry.Probability,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"k8s.pod.name":     os.Getenv("POD_NAME"),
			"k8s.namespace":    os.Getenv("POD_NAMESPACE"),
			"k8s.container.id": hostname,
		},
		InsecureExporter: true,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer teardown(ctx)

	tracer := providers.Tracer.Tracer(cfg.Telemetry.ServiceName)

	// -------------------------------------------------------------------------
	// Database
	repo, db, closeDB, err := newRepository(ctx, log, cfg.DB, tracer)
	if err != nil {
		return err
	}
	defer closeDB()

	// -------------------------------------------------------------------------
	// Metrics
	metricCollector, err := api.NewAPIMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("creating metrics collector: %w", err)
	}

	batchMetrics, err := appDefect.NewBatchMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("creating batch metrics: %w", err)
	}

	// -------------------------------------------------------------------------
	// Initialize Event Bus
	log.Info(ctx, "startup", "status", "initializing event bus", "kafka", cfg.Kafka.Enabled)

	publisher, subscriber, closeBus, err := newPublisher(ctx, cfg.Kafka, log, metricCollector, tracer)
	if err != nil {
		return err
	}
	defer closeBus()

	if subscriber != nil {
		auditCtx, stopAudit := context.WithCancel(ctx)
		defer stopAudit()

		auditor := appDefect.NewBatchAuditor(log, tracer)
		if err := auditor.Subscribe(auditCtx, subscriber); err != nil {
			return err
		}
		log.Info(ctx, "startup", "status", "batch auditor subscribed")
	}

	// -------------------------------------------------------------------------
	// Batch Service
	batchService := appDefect.NewDefaultBatchService(appDefect.OperationDeps{
		Repo:      repo,
		Publisher: publisher,
		Metrics:   batchMetrics,
		Logger:    log,
		Tracer:    tracer,
	})

	var limiter *common.RateLimiter
	if cfg.Web.BatchRateLimit > 0 {
		limiter = common.NewRateLimiter(cfg.Web.BatchRateLimit, cfg.Web.BatchBurst)
	}

	// -------------------------------------------------------------------------
	// Start Debug Service

	go func() {
		debugHost := cfg.Web.DebugAddr()
		log.Info(ctx, "startup", "status", "debug router started", "host", debugHost)

		if err := http.ListenAndServe(debugHost, debug.Mux()); err != nil {
			log.Error(ctx, "shutdown", "status", "debug router closed", "host", debugHost, "msg", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start API Service

	log.Info(ctx, "startup", "status", "initializing API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	cfgMux := mux.Config{
		Build:        build,
		Log:          log,
		DB:           db,
		Tracer:       tracer,
		Metrics:      metricCollector,
		BatchService: batchService,
		Limiter:      limiter,
		MaxKeys:      cfg.Web.MaxDefectKeys,
	}

	webAPI := mux.WebAPI(cfgMux,
		routes.Routes(),
		mux.WithCORS(cfg.Web.CORSOrigins),
	)

	apiServer := http.Server{
		Addr:         cfg.Web.APIAddr(),
		Handler:      webAPI,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     logger.NewStdLogger(log, logger.LevelError),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info(ctx, "startup", "status", "api router started", "host", apiServer.Addr)
		serverErrors <- apiServer.ListenAndServe()
	}()

	// -------------------------------------------------------------------------
	// Shutdown

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info(ctx, "shutdown", "status", "shutdown started", "signal", sig)
		defer log.Info(ctx, "shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(ctx); err != nil {
			_ = apiServer.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// newPublisher returns the domain event publisher for batch results and, when
// the transport can consume, the bus the batch auditor subscribes to. Kafka is
// used when enabled; otherwise events stay in an in-process broker.
func newPublisher(
	ctx context.Context,
	cfg config.KafkaConfig,
	log *logger.Logger,
	metrics kafka.EventBusMetrics,
	tracer trace.Tracer,
) (events.DomainEventPublisher, events.EventBus, func(), error) {
	if !cfg.Enabled {
		broker := memory.NewBroker(0)
		return broker, broker, func() { _ = broker.Close() }, nil
	}

	client, err := kafka.NewClient(&kafka.ClientConfig{
		Brokers:  cfg.Brokers,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating kafka client: %w", err)
	}

	bus, err := kafka.ConnectEventBus(ctx, &kafka.EventBusConfig{
		DefectEventsTopic: cfg.DefectEventsTopic,
		GroupID:           cfg.GroupID,
		ClientID:          cfg.ClientID,
		ServiceType:       serviceType,
	}, client, log, metrics, tracer, cfg.ConnectTimeout)
	if err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("connecting event bus: %w", err)
	}

	closer := func() {
		if err := bus.Close(); err != nil {
			log.Error(ctx, "shutdown", "status", "closing event bus", "err", err)
		}
		client.Close()
	}

	var subscriber events.EventBus
	if cfg.GroupID != "" {
		subscriber = bus
	}

	return kafka.NewDomainEventPublisher(bus), subscriber, closer, nil
}

// newRepository returns the defect store and, for Postgres, the pool used by
// the readiness probe.
func newRepository(
	ctx context.Context,
	log *logger.Logger,
	cfg config.DBConfig,
	tracer trace.Tracer,
) (defect.DefectRepository, health.Pinger, func(), error) {
	if cfg.InMemory {
		log.Warn(ctx, "startup", "status", "using in-memory defect store")
		return memoryStore.NewDefectStore(), nil, func() {}, nil
	}

	log.Info(ctx, "startup", "status", "connecting to database")

	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		DSN:      cfg.DSN,
		MinConns: cfg.MinConns,
		MaxConns: cfg.MaxConns,
	}, cfg.ConnectTimeout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to db: %w", err)
	}

	if cfg.RunMigrations {
		log.Info(ctx, "startup", "status", "applying migrations", "dir", cfg.MigrationsDir)
		if err := storage.Migrate(pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrating db: %w", err)
		}
	}

	return defectStore.NewDefectStore(pool, tracer), pool, pool.Close, nil
}
