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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/fanout"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/sinks"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/transform"
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

	logger := logging.New(cfg.AppName+"-transformer", cfg.PrettyLogs)

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
	shutdownTracing, err := tracing.Init(ctx, cfg.AppName+"-transformer", otlpCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// The DLQ lives on Redis regardless of the sink backend
	redisClient, err := redis.NewClient(redis.Config{
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

	dlq := redis.NewDeadLetterQueue(redisClient, cfg.DLQStream, cfg.DLQMaxLen, logger)

	brokers := strings.Split(cfg.KafkaBrokers, ",")

	var db *database.DatabaseInstance
	var sink fanout.Sink

	switch cfg.SinkBackend {
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

		sink = sinks.NewPostgresSink(db, logger)
	default:
		producerCfg := kafka.DefaultProducerConfig()
		producerCfg.Brokers = brokers
		producer, err := kafka.NewProducer(producerCfg, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to create Kafka producer")
			os.Exit(1)
		}
		defer producer.Close()

		sink = sinks.NewKafkaSink(producer, sinks.KafkaTopics{
			Reports:       cfg.KafkaReportTopic,
			DrugFacts:     cfg.KafkaDrugFactTopic,
			ReactionFacts: cfg.KafkaReactionFactTopic,
		}, logger)
	}

	deliveryRetry := retry.Config{
		MaxRetries:   cfg.DeliveryMaxRetries,
		BackoffType:  cfg.FetchBackoffType,
		InitialDelay: cfg.DeliveryBackoffInitialMs,
		MaxDelay:     cfg.DeliveryBackoffMaxMs,
	}

	router := fanout.NewRouter(sink, dlq, deliveryRetry, logger)
	proc := processor.New(transform.New(cfg.TransformConcurrency, logger), router, logger)

	consumerCfg := kafka.DefaultConsumerConfig()
	consumerCfg.Brokers = brokers
	consumerCfg.Topic = cfg.KafkaRawReportTopic
	consumerCfg.GroupID = cfg.KafkaConsumerGroup
	consumer, err := kafka.NewConsumer(consumerCfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Kafka consumer")
		os.Exit(1)
	}

	if err := consumer.Start(ctx, proc.MessageHandler()); err != nil {
		logger.WithError(err).Error("Failed to start consumer")
		os.Exit(1)
	}

	// Admin surface
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	checker := health.NewChecker(sqlxDB(db), redisClient.Redis(), version())
	checker.RegisterRoutes(e)
	health.NewDLQHandler(dlq).RegisterRoutes(e)

	e.GET("/api/v1/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"processor":    proc.Stats(),
			"consumer_lag": consumer.Lag(),
		})
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Admin server stopped")
		}
	}()

	checker.SetReady(true)
	logger.Infof("Transformer started: topic '%s' group '%s' sink '%s'", cfg.KafkaRawReportTopic, cfg.KafkaConsumerGroup, cfg.SinkBackend)

	<-ctx.Done()
	logger.Info("Shutting down transformer")

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop consumer")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.Shutdown(shutdownCtx)
}

func sqlxDB(db *database.DatabaseInstance) *sqlx.DB {
	if db == nil {
		return nil
	}
	return db.DB
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}
