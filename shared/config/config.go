package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds the service configuration, read from the environment
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Kafka    KafkaConfig    `envconfig:"KAFKA"`
	Auth     AuthConfig     `envconfig:"AUTH"`
	Booking  BookingConfig  `envconfig:"BOOKING"`
	Log      LogConfig      `envconfig:"LOG"`
	CORS     CORSConfig     `envconfig:"CORS"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3000"`
	Mode string `envconfig:"MODE" default:"release"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string `envconfig:"HOST" default:"localhost"`
	Port         string `envconfig:"PORT" default:"5432"`
	User         string `envconfig:"USER" default:"postgres"`
	Password     string `envconfig:"PASSWORD" default:"password"`
	DBName       string `envconfig:"NAME" default:"gym_booking"`
	SSLMode      string `envconfig:"SSL_MODE" default:"disable"`
	MaxOpenConns int    `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int    `envconfig:"MAX_IDLE_CONNS" default:"10"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"true"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

// KafkaConfig holds the booking event relay settings
type KafkaConfig struct {
	Enabled          bool   `envconfig:"ENABLED" default:"true"`
	Broker           string `envconfig:"BROKER" default:"localhost:9092"`
	Topic            string `envconfig:"TOPIC" default:"booking-events"`
	RelaySchedule    string `envconfig:"RELAY_SCHEDULE" default:"@every 5s"`
	RelayBatch       int    `envconfig:"RELAY_BATCH" default:"100"`
	RelayMaxAttempts int    `envconfig:"RELAY_MAX_ATTEMPTS" default:"8"`
}

// AuthConfig selects how bearer tokens are verified
type AuthConfig struct {
	Provider          string `envconfig:"PROVIDER" default:"jwt"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	AWSRegion         string `envconfig:"AWS_REGION"`
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
}

// BookingConfig tunes the booking engine
type BookingConfig struct {
	LockBackend       string        `envconfig:"LOCK_BACKEND" default:"local"`
	LockWait          time.Duration `envconfig:"LOCK_WAIT" default:"2s"`
	LockTTL           time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	CancelCutoff      time.Duration `envconfig:"CANCEL_CUTOFF" default:"0s"`
	ReconcileSchedule string        `envconfig:"RECONCILE_SCHEDULE" default:"@every 5m"`
}

// LogConfig configures logrus output and rotation
type LogConfig struct {
	Level      string `envconfig:"LEVEL" default:"info"`
	Format     string `envconfig:"FORMAT" default:"text"`
	FilePath   string `envconfig:"FILE"`
	MaxSize    int    `envconfig:"MAX_SIZE" default:"100"`
	MaxBackups int    `envconfig:"MAX_BACKUPS" default:"5"`
	MaxAge     int    `envconfig:"MAX_AGE" default:"30"`
	Compress   bool   `envconfig:"COMPRESS" default:"true"`
}

// CORSConfig lists the origins allowed to call the API
type CORSConfig struct {
	AllowOrigins []string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

// Load reads .env (if present) and the environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	switch c.Auth.Provider {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET must be set when AUTH_PROVIDER=jwt")
		}
	case "cognito":
		if c.Auth.AWSRegion == "" || c.Auth.CognitoUserPoolID == "" {
			return fmt.Errorf("AUTH_AWS_REGION and AUTH_COGNITO_USER_POOL_ID must be set when AUTH_PROVIDER=cognito")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}

	switch c.Booking.LockBackend {
	case "local":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("BOOKING_LOCK_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown BOOKING_LOCK_BACKEND %q", c.Booking.LockBackend)
	}

	if c.Booking.LockWait <= 0 {
		return fmt.Errorf("BOOKING_LOCK_WAIT must be positive")
	}
	return nil
}
