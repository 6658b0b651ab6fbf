package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Auth:    AuthConfig{Provider: "jwt", JWTSecret: "secret"},
		Booking: BookingConfig{LockBackend: "local", LockWait: 2 * time.Second},
		Redis:   RedisConfig{Enabled: true},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "jwt without secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "AUTH_JWT_SECRET"},
		{name: "cognito without pool", mutate: func(c *Config) {
			c.Auth.Provider = "cognito"
			c.Auth.AWSRegion = "us-east-1"
		}, wantErr: "AUTH_COGNITO_USER_POOL_ID"},
		{name: "cognito", mutate: func(c *Config) {
			c.Auth.Provider = "cognito"
			c.Auth.AWSRegion = "us-east-1"
			c.Auth.CognitoUserPoolID = "us-east-1_abc"
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.Auth.Provider = "saml" }, wantErr: "unknown AUTH_PROVIDER"},
		{name: "redis locks without redis", mutate: func(c *Config) {
			c.Booking.LockBackend = "redis"
			c.Redis.Enabled = false
		}, wantErr: "REDIS_ENABLED"},
		{name: "unknown lock backend", mutate: func(c *Config) { c.Booking.LockBackend = "etcd" }, wantErr: "BOOKING_LOCK_BACKEND"},
		{name: "zero lock wait", mutate: func(c *Config) { c.Booking.LockWait = 0 }, wantErr: "BOOKING_LOCK_WAIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("AUTH_JWT_SECRET", "dev-secret")
	t.Setenv("BOOKING_LOCK_BACKEND", "local")
	t.Setenv("BOOKING_LOCK_WAIT", "750ms")
	t.Setenv("BOOKING_CANCEL_CUTOFF", "2h")
	t.Setenv("KAFKA_TOPIC", "gym-bookings")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 750*time.Millisecond, cfg.Booking.LockWait)
	assert.Equal(t, 2*time.Hour, cfg.Booking.CancelCutoff)
	assert.Equal(t, "@every 5m", cfg.Booking.ReconcileSchedule)
	assert.Equal(t, "gym-bookings", cfg.Kafka.Topic)
	assert.Equal(t, 8, cfg.Kafka.RelayMaxAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "gym", Password: "pw", DBName: "gym_booking", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=gym password=pw dbname=gym_booking sslmode=require", c.GetDSN())
}
