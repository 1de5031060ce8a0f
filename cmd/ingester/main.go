package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/cursor"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fetcher"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/openfda"
	"github.com/Ramsey-B/fern/pkg/publisher"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName+"-ingester", cfg.PrettyLogs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var otlpCfg *exporters.OTLPConfig
	if cfg.OTLPEnabled {
		otlpCfg = &exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		}
	}
	shutdownTracing, err := tracing.Init(ctx, cfg.AppName+"-ingester", otlpCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	defaults := cursor.Defaults{
		WindowStart: cfg.WindowStart,
		WindowEnd:   cfg.WindowEnd,
		PageSize:    cfg.FetchPageSize,
	}

	var redisClient *redis.Client
	var db *database.DatabaseInstance
	var store cursor.Store

	switch cfg.CursorStore {
	case "postgres":
		db, err = database.Connect(ctx, database.Config{
			Driver:          cfg.DatabaseDriver,
			Host:            cfg.DatabaseHost,
			Port:            cfg.DatabasePort,
			User:            cfg.DatabaseUserName,
			Password:        cfg.DatabasePassword,
			Name:            cfg.DatabaseName,
			SSLMode:         cfg.DatabaseSSLMode,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to database")
			os.Exit(1)
		}
		defer db.Close()

		if err := database.Migrate(db, cfg.DatabaseName, database.MigrationConfig{
			MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
			Version:             uint(cfg.DatabaseMigrationVersion),
		}, logger); err != nil {
			logger.WithError(err).Error("Failed to run migrations")
			os.Exit(1)
		}

		store = cursor.NewPostgresStore(db, defaults, logger)
	default:
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer redisClient.Close()

		store = cursor.NewRedisStore(redisClient, defaults, logger)
	}

	producerCfg := kafka.DefaultProducerConfig()
	producerCfg.Brokers = strings.Split(cfg.KafkaBrokers, ",")
	producerCfg.Topic = cfg.KafkaRawReportTopic
	producer, err := kafka.NewProducer(producerCfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Kafka producer")
		os.Exit(1)
	}
	defer producer.Close()

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.ProviderTimeout
	provider := openfda.NewClient(httpclient.NewClient(httpCfg, logger), cfg.ProviderBaseURL, cfg.ProviderAPIKey, logger)

	retryCfg := retry.Config{
		MaxRetries:   cfg.FetchMaxRetries,
		BackoffType:  cfg.FetchBackoffType,
		InitialDelay: cfg.FetchBackoffInitialMs,
		MaxDelay:     cfg.FetchBackoffMaxMs,
	}

	runner := ingest.NewRunner(
		store,
		fetcher.New(provider, retryCfg, logger),
		publisher.New(producer, cfg.KafkaRawReportTopic, logger),
		logger,
	)

	// Admin surface
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	checker := health.NewChecker(sqlxDB(db), redisRaw(redisClient), version())
	checker.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Admin server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	checker.SetReady(true)
	logger.Infof("Ingester started: stream '%s' window %s..%s", cfg.StreamName, cfg.WindowStart, cfg.WindowEnd)

	if cfg.IngestRunOnce {
		if err := runOnce(ctx, runner, cfg.StreamName, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(cfg.IngestPollInterval)
	defer ticker.Stop()

	// Kick off the first run immediately
	_ = runOnce(ctx, runner, cfg.StreamName, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down ingester")
			return
		case <-ticker.C:
			_ = runOnce(ctx, runner, cfg.StreamName, logger)
		}
	}
}

// runOnce executes a single ingest run. A lost cursor race is routine
// when replicas overlap, so it logs without failing the process.
func runOnce(ctx context.Context, runner *ingest.Runner, stream string, logger ectologger.Logger) error {
	summary, err := runner.Run(ctx, stream)
	if err != nil {
		if errors.IsConflict(err) {
			logger.Warnf("Ingest run %s lost the cursor race, another replica is ingesting", summary.RunID)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Errorf("Ingest run %s failed: %v", summary.RunID, err)
		return err
	}
	logger.Infof("Ingest run %s: pages=%d records=%d completed=%t",
		summary.RunID, summary.PagesCommitted, summary.RecordsPublished, summary.Completed)
	return nil
}

func sqlxDB(db *database.DatabaseInstance) *sqlx.DB {
	if db == nil {
		return nil
	}
	return db.DB
}

func redisRaw(c *redis.Client) *goredis.Client {
	if c == nil {
		return nil
	}
	return c.Redis()
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}
