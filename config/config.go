package config

import "time"

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"fern"`
	Port       int    `env:"PORT" env-default:"3000"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// openFDA provider settings
	// Base URL of the drug event endpoint
	ProviderBaseURL string `env:"PROVIDER_BASE_URL" env-default:"https://api.fda.gov/drug/event.json"`
	// API key appended to every request (optional, raises rate limits)
	ProviderAPIKey string `env:"PROVIDER_API_KEY" env-default:""`
	// Per-request timeout
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" env-default:"30s"`
	// Page size for fetch requests
	FetchPageSize int `env:"FETCH_PAGE_SIZE" env-default:"100" validate:"min=1,max=1000"`
	// Max retries per page fetch
	FetchMaxRetries int `env:"FETCH_MAX_RETRIES" env-default:"3"`
	// Backoff strategy for fetch retries (fibonacci, exponential, linear)
	FetchBackoffType string `env:"FETCH_BACKOFF_TYPE" env-default:"fibonacci"`
	// Initial backoff delay in milliseconds
	FetchBackoffInitialMs int `env:"FETCH_BACKOFF_INITIAL_MS" env-default:"1000"`
	// Max backoff delay in milliseconds
	FetchBackoffMaxMs int `env:"FETCH_BACKOFF_MAX_MS" env-default:"60000"`

	// Ingest window and scheduling
	// Stream name identifying this ingest pipeline
	StreamName string `env:"STREAM_NAME" env-default:"openfda-drug-events"`
	// Receive date window start (yyyymmdd)
	WindowStart string `env:"WINDOW_START" env-default:"20040101" validate:"len=8"`
	// Receive date window end (yyyymmdd)
	WindowEnd string `env:"WINDOW_END" env-default:"20041231" validate:"len=8"`
	// Interval between ingest runs
	IngestPollInterval time.Duration `env:"INGEST_POLL_INTERVAL" env-default:"1m"`
	// Run the ingest loop once and exit
	IngestRunOnce bool `env:"INGEST_RUN_ONCE" env-default:"false"`

	// Cursor store backend (redis or postgres)
	CursorStore string `env:"CURSOR_STORE" env-default:"redis" validate:"oneof=redis postgres"`

	// Database settings
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic carrying raw adverse event reports
	KafkaRawReportTopic string `env:"KAFKA_RAW_REPORT_TOPIC" env-default:"adverse-events.raw"`
	// Kafka consumer group for the transformer
	KafkaConsumerGroup string `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-transformer"`
	// Kafka topic for normalized report dimension records
	KafkaReportTopic string `env:"KAFKA_REPORT_TOPIC" env-default:"adverse-events.reports"`
	// Kafka topic for drug fact records
	KafkaDrugFactTopic string `env:"KAFKA_DRUG_FACT_TOPIC" env-default:"adverse-events.drug-facts"`
	// Kafka topic for reaction fact records
	KafkaReactionFactTopic string `env:"KAFKA_REACTION_FACT_TOPIC" env-default:"adverse-events.reaction-facts"`

	// Transformer settings
	// Sink backend for normalized records (kafka or postgres)
	SinkBackend string `env:"SINK_BACKEND" env-default:"kafka" validate:"oneof=kafka postgres"`
	// Worker count for per-report transformation
	TransformConcurrency int `env:"TRANSFORM_CONCURRENCY" env-default:"8" validate:"min=1"`
	// Max retries per family delivery
	DeliveryMaxRetries int `env:"DELIVERY_MAX_RETRIES" env-default:"3"`
	// Initial delivery backoff delay in milliseconds
	DeliveryBackoffInitialMs int `env:"DELIVERY_BACKOFF_INITIAL_MS" env-default:"500"`
	// Max delivery backoff delay in milliseconds
	DeliveryBackoffMaxMs int `env:"DELIVERY_BACKOFF_MAX_MS" env-default:"30000"`

	// Redis stream holding records whose delivery exhausted retries
	DLQStream string `env:"DLQ_STREAM" env-default:"fern:dlq"`
	// Max entries retained on the DLQ stream
	DLQMaxLen int64 `env:"DLQ_MAX_LEN" env-default:"10000"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}
