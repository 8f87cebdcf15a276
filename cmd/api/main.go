package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/MomPansy/seasense-ingest/config"
	"github.com/MomPansy/seasense-ingest/internal/repositories/rawrecord"
	"github.com/MomPansy/seasense-ingest/internal/repositories/staging"
	"github.com/MomPansy/seasense-ingest/internal/repositories/vesselevent"
	"github.com/MomPansy/seasense-ingest/pkg/database"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/events"
	"github.com/MomPansy/seasense-ingest/pkg/fetcher"
	"github.com/MomPansy/seasense-ingest/pkg/kafka"
	"github.com/MomPansy/seasense-ingest/pkg/locations"
	"github.com/MomPansy/seasense-ingest/pkg/middleware"
	"github.com/MomPansy/seasense-ingest/pkg/pipeline"
	"github.com/MomPansy/seasense-ingest/pkg/routes/health"
	"github.com/MomPansy/seasense-ingest/pkg/routes/ingestion"
	"github.com/MomPansy/seasense-ingest/pkg/startup"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
	"github.com/MomPansy/seasense-ingest/pkg/transform"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.PrettyLogs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newLogger(pretty bool) ectologger.Logger {
	marshal := json.Marshal
	if pretty {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		line, err := marshal(msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal log message: %v\n", err)
			return
		}
		fmt.Println(string(line))
	})
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	var db database.DB
	var producer *kafka.Producer
	var shutdownTracing func(context.Context) error
	var e *echo.Echo
	var checker *health.Checker

	manager := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	manager.AddDependency(&dependency{
		name: "tracing",
		start: func(ctx context.Context) error {
			if !cfg.TracingEnabled {
				return nil
			}
			var err error
			shutdownTracing, err = tracing.Setup(ctx, tracing.Config{
				ServiceName: cfg.AppName,
				Endpoint:    cfg.TracingOTLPEndpoint,
				Protocol:    cfg.TracingOTLPProtocol,
				Insecure:    cfg.TracingInsecure,
			})
			return err
		},
		stop: func(ctx context.Context) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(ctx)
		},
	})

	manager.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			var err error
			db, err = database.Connect(ctx, database.ConnectionConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			return migrateDatabase(cfg, db, logger)
		},
		stop: func(_ context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	manager.AddDependency(&dependency{
		name: "kafka",
		start: func(_ context.Context) error {
			if !cfg.KafkaEnabled {
				return nil
			}
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutputTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		stop: func(_ context.Context) error {
			if producer == nil {
				return nil
			}
			return producer.Close()
		},
	})

	manager.AddDependency(&dependency{
		name:      "http-server",
		dependsOn: []string{"database", "kafka"},
		start: func(_ context.Context) error {
			var err error
			e, checker, err = buildServer(cfg, db, producer, logger)
			if err != nil {
				return err
			}

			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if serveErr := e.Start(addr); serveErr != nil && serveErr != http.ErrServerClosed {
					logger.WithError(serveErr).Error("HTTP server stopped unexpectedly")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		stop: func(ctx context.Context) error {
			if e == nil {
				return nil
			}
			checker.SetReady(false)
			return e.Shutdown(ctx)
		},
	})

	if err := manager.Start(ctx); err != nil {
		return err
	}
	logger.WithField("port", cfg.Port).Info("Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return manager.Stop(stopCtx)
}

func migrateDatabase(cfg *config.Config, db database.DB, logger ectologger.Logger) error {
	driver, err := postgres.WithInstance(db.Unsafe().DB, &postgres.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return migrationService.Migrate(cfg.DatabaseName, driver)
}

func buildServer(cfg *config.Config, db database.DB, producer *kafka.Producer, logger ectologger.Logger) (*echo.Echo, *health.Checker, error) {
	civilLoc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		return nil, nil, err
	}

	rawRepo := rawrecord.NewRepository(db, logger)
	stagingRepo := staging.NewRepository(db, logger)
	mergeRepo := vesselevent.NewRepository(db, logger)

	transformer, err := transform.New(rawRepo, stagingRepo, logger)
	if err != nil {
		return nil, nil, err
	}

	var emitter pipeline.EventEmitter
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
	}

	f := fetcher.New(cfg.SourceAPIKey, cfg.SourceTimeout, logger)
	runner := pipeline.New(db, f, rawRepo, transformer, mergeRepo, emitter, cfg.SourceBaseURL, civilLoc, logger)
	dictSource := locations.NewClient(cfg.SourceBaseURL+cfg.LocationDictEndpoint, cfg.SourceAPIKey, cfg.SourceTimeout, logger)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(db, version)
	checker.RegisterRoutes(e)

	windows := map[string]int{
		datasets.VesselArrivals:     cfg.ArrivalsWindowHours,
		datasets.VesselDepartures:   cfg.DeparturesWindowHours,
		datasets.VesselsDueToArrive: cfg.DueToArriveWindowHours,
	}
	handler := ingestion.NewHandler(runner, dictSource, windows, logger)
	handler.Register(e.Group("/api/v1/ingestion", middleware.APIKeyAuth(cfg.ServiceAPIKey)))

	return e, checker, nil
}

// dependency adapts start/stop funcs to the startup manager.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
