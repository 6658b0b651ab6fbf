package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/config"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

var (
	RedisClient *redis.Client

	// ErrCacheMiss is returned when a key is absent or Redis is not configured
	ErrCacheMiss = errors.New("cache miss")
)

// InitRedis initializes the Redis client
func InitRedis(cfg config.RedisConfig) error {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	RedisClient = client
	logrus.WithField("addr", addr).Info("Connected to Redis")
	return nil
}

// CacheSet stores a value in Redis with expiration
func CacheSet(ctx context.Context, key string, value string, expiration time.Duration) error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Set(ctx, key, value, expiration).Err()
}

// CacheGet retrieves a value from Redis
func CacheGet(ctx context.Context, key string) (string, error) {
	if RedisClient == nil {
		return "", ErrCacheMiss
	}
	val, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	return val, err
}

// CacheDelete removes a key from Redis
func CacheDelete(ctx context.Context, key string) error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Del(ctx, key).Err()
}

// CacheSetJSON marshals value and stores it with expiration
func CacheSetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return CacheSet(ctx, key, string(data), expiration)
}

// CacheGetJSON loads key into dest. ErrCacheMiss when absent.
func CacheGetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := CacheGet(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// GetRedisClient returns the Redis client instance (for advanced operations)
func GetRedisClient() *redis.Client {
	return RedisClient
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// generateTokenHash creates a SHA256 hash of the access token for use as Redis key
func generateTokenHash(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func tokenSessionKey(accessToken string) string {
	return fmt.Sprintf("token:session:%s", generateTokenHash(accessToken))
}

// CreateTokenSession caches a resolved identity under the token hash (the token itself is not stored)
func CreateTokenSession(ctx context.Context, accessToken string, identity models.Identity, ttl time.Duration) (*models.TokenSession, error) {
	now := time.Now()
	session := &models.TokenSession{
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := CacheSetJSON(ctx, tokenSessionKey(accessToken), session, ttl); err != nil {
		return nil, fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return session, nil
}

// GetTokenSession retrieves a cached identity for the token
func GetTokenSession(ctx context.Context, accessToken string) (*models.TokenSession, error) {
	key := tokenSessionKey(accessToken)

	var session models.TokenSession
	if err := CacheGetJSON(ctx, key, &session); err != nil {
		return nil, err
	}

	if session.IsExpired() {
		CacheDelete(ctx, key)
		return nil, ErrCacheMiss
	}
	return &session, nil
}
