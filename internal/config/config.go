package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Identity providers.
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Store    string
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Dispatch DispatchConfig
	NewRelic NewRelicConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigin      string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MongoConfig holds the document store configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the notification stream configuration.
// An empty broker list disables the Kafka sink.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
}

// AuthConfig selects and configures the identity verifier.
type AuthConfig struct {
	Provider            string
	JWTSecret           string
	JWTIssuer           string
	FirebaseProjectID   string
	FirebaseCredentials string
}

// RealtimeConfig tunes the websocket channel.
type RealtimeConfig struct {
	Backplane    bool
	Channel      string
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

// DispatchConfig controls pending-booking expiry.
type DispatchConfig struct {
	ExpiryWindow   time.Duration
	SweepInterval  time.Duration
	SweeperEnabled bool
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		},
		Store: strings.ToLower(getEnv("STORE_BACKEND", StorePostgres)),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ride_dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getBoolEnv("DB_MIGRATE", false),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "ride_dispatch"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:           getListEnv("KAFKA_BROKERS"),
			NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "ride-notifications"),
		},
		Auth: AuthConfig{
			Provider:            strings.ToLower(getEnv("AUTH_PROVIDER", AuthJWT)),
			JWTSecret:           getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:           getEnv("AUTH_JWT_ISSUER", ""),
			FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
			FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Realtime: RealtimeConfig{
			Backplane:    getBoolEnv("REALTIME_BACKPLANE", false),
			Channel:      getEnv("REALTIME_CHANNEL", "ride:events"),
			WriteTimeout: getDurationEnv("REALTIME_WRITE_TIMEOUT", 10*time.Second),
			PingInterval: getDurationEnv("REALTIME_PING_INTERVAL", 30*time.Second),
			SendBuffer:   getIntEnv("REALTIME_SEND_BUFFER", 64),
		},
		Dispatch: DispatchConfig{
			ExpiryWindow:   getDurationEnv("DISPATCH_EXPIRY_WINDOW", 10*time.Minute),
			SweepInterval:  getDurationEnv("DISPATCH_SWEEP_INTERVAL", 30*time.Second),
			SweeperEnabled: getBoolEnv("DISPATCH_SWEEPER_ENABLED", true),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ride-dispatch"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every impossible combination at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StorePostgres, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StorePostgres, StoreMongo, c.Store))
	}

	switch c.Auth.Provider {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required when AUTH_PROVIDER=jwt"))
		}
	case AuthFirebase:
		if c.Auth.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required when AUTH_PROVIDER=firebase"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_PROVIDER must be %q or %q, got %q", AuthJWT, AuthFirebase, c.Auth.Provider))
	}

	if c.Dispatch.SweeperEnabled {
		if c.Dispatch.ExpiryWindow <= 0 {
			errs = append(errs, errors.New("DISPATCH_EXPIRY_WINDOW must be positive"))
		}
		if c.Dispatch.SweepInterval <= 0 {
			errs = append(errs, errors.New("DISPATCH_SWEEP_INTERVAL must be positive"))
		}
	}

	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("REALTIME_SEND_BUFFER must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
