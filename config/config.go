package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string
	Port                          int
	PrettyLogs                    bool
	HttpServerWriteTimeoutSeconds int
	HttpServerReadTimeoutSeconds  int
	HttpServerIdleTimeoutSeconds  int
	MaxHeaderBytes                int
	ReadHeaderTimeoutSeconds      int
	AllowOrigins                  []string
	AllowMethods                  []string
	StartupMaxAttempts            int

	// Service auth for the trigger endpoints.
	ServiceAPIKey string

	// PostgreSQL
	DatabaseDriver                string
	DatabaseHost                  string
	DatabasePort                  string
	DatabaseUserName              string
	DatabasePassword              string
	DatabaseName                  string
	DatabaseSSLMode               string
	DatabaseMaxOpenConns          int
	DatabaseMaxIdleConns          int
	DatabaseConnMaxLifetime       time.Duration
	DatabaseMigrationFolderPath   string
	DatabaseMigrationVersion      int
	DatabaseMigrationForce        int
	DatabaseMigrationAutoRollback bool

	// Upstream port-authority API
	SourceBaseURL        string
	SourceAPIKey         string
	SourceTimeout        time.Duration
	LocationDictEndpoint string

	// Default fetch windows, hours ahead/behind of trigger time
	ArrivalsWindowHours   int
	DeparturesWindowHours int
	DueToArriveWindowHours int

	// Kafka producer (run lifecycle events)
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaOutputTopic  string
	KafkaBatchSize    int
	KafkaBatchTimeout int
	KafkaRequiredAcks int
	KafkaCompression  string

	// Tracing
	TracingEnabled      bool
	TracingOTLPEndpoint string
	TracingOTLPProtocol string
	TracingInsecure     bool
}

// Load reads configuration from the environment, sourcing a local .env file
// first when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppName:                       getEnv("APP_NAME", "seasense-ingest"),
		Port:                          getEnvInt("PORT", 3004),
		PrettyLogs:                    getEnvBool("PRETTY_LOGS", false),
		HttpServerWriteTimeoutSeconds: getEnvInt("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 120),
		HttpServerReadTimeoutSeconds:  getEnvInt("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10),
		HttpServerIdleTimeoutSeconds:  getEnvInt("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 10),
		MaxHeaderBytes:                getEnvInt("HTTP_SERVER_MAX_HEADER_BYTES", 64000),
		ReadHeaderTimeoutSeconds:      getEnvInt("HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS", 10),
		AllowOrigins:                  getEnvSlice("HTTP_SERVER_ALLOW_ORIGINS", []string{"*"}),
		AllowMethods:                  getEnvSlice("HTTP_SERVER_ALLOW_METHODS", []string{"GET", "POST"}),
		StartupMaxAttempts:            getEnvInt("STARTUP_MAX_ATTEMPTS", 5),

		ServiceAPIKey: getEnv("SERVICE_API_KEY", ""),

		DatabaseDriver:                getEnv("DB_DRIVER", "postgres"),
		DatabaseHost:                  getEnv("DB_HOST", "localhost"),
		DatabasePort:                  getEnv("DB_PORT", "5432"),
		DatabaseUserName:              getEnv("DB_USER_NAME", ""),
		DatabasePassword:              getEnv("DB_PASSWORD", ""),
		DatabaseName:                  getEnv("DB_NAME", "seasense"),
		DatabaseSSLMode:               getEnv("DB_SSL_MODE", "disable"),
		DatabaseMaxOpenConns:          getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:          getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DatabaseConnMaxLifetime:       getEnvDuration("DB_CONN_MAX_LIFETIME", 10*time.Second),
		DatabaseMigrationFolderPath:   getEnv("DB_MIGRATION_FOLDER_PATH", "db/pg"),
		DatabaseMigrationVersion:      getEnvInt("DB_MIGRATION_VERSION", 0),
		DatabaseMigrationForce:        getEnvInt("DB_MIGRATION_FORCE", 0),
		DatabaseMigrationAutoRollback: getEnvBool("DB_MIGRATION_AUTO_ROLLBACK", true),

		SourceBaseURL:        getEnv("SOURCE_BASE_URL", ""),
		SourceAPIKey:         getEnv("SOURCE_API_KEY", ""),
		SourceTimeout:        getEnvDuration("SOURCE_TIMEOUT", 30*time.Second),
		LocationDictEndpoint: getEnv("SOURCE_LOCATION_DICT_ENDPOINT", "/v1/vessel/reference/locations/filetype/json"),

		ArrivalsWindowHours:    getEnvInt("ARRIVALS_WINDOW_HOURS", 24),
		DeparturesWindowHours:  getEnvInt("DEPARTURES_WINDOW_HOURS", 24),
		DueToArriveWindowHours: getEnvInt("DUE_TO_ARRIVE_WINDOW_HOURS", 73),

		KafkaEnabled:      getEnvBool("KAFKA_ENABLED", false),
		KafkaBrokers:      getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaOutputTopic:  getEnv("KAFKA_OUTPUT_TOPIC", "ingestion-events"),
		KafkaBatchSize:    getEnvInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout: getEnvInt("KAFKA_BATCH_TIMEOUT_MS", 100),
		KafkaRequiredAcks: getEnvInt("KAFKA_REQUIRED_ACKS", 1),
		KafkaCompression:  getEnv("KAFKA_COMPRESSION", "snappy"),

		TracingEnabled:      getEnvBool("TRACING_ENABLED", false),
		TracingOTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
		TracingOTLPProtocol: getEnv("TRACING_OTLP_PROTOCOL", "grpc"),
		TracingInsecure:     getEnvBool("TRACING_INSECURE", true),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
