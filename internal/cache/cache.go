package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Ошибки кэша.
var (
	// ErrMiss — результата по ключу нет.
	ErrMiss = errors.New("result not cached")

	// ErrInProgress — orchestration с этим ключом уже выполняется.
	ErrInProgress = errors.New("orchestration in progress")
)

// Значения по умолчанию.
const (
	DefaultTTL     = 24 * time.Hour
	DefaultLockTTL = 5 * time.Minute
	keyPrefix      = "vetflow:discharge:"
)

// ResultCache хранит результаты orchestration по Idempotency-Key.
//
// Ключи разделены по клиникам:
//
//	vetflow:discharge:{clinic}:{key}       — результат (JSON)
//	vetflow:discharge:{clinic}:{key}:lock  — маркер выполняющегося запроса
type ResultCache struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  *slog.Logger
}

// Config — конфигурация ResultCache.
type Config struct {
	Client  *redis.Client
	TTL     time.Duration // default: 24h
	LockTTL time.Duration // default: 5m
	Logger  *slog.Logger
}

// New создаёт ResultCache.
func New(cfg Config) (*ResultCache, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ResultCache{
		client:  cfg.Client,
		ttl:     cfg.TTL,
		lockTTL: cfg.LockTTL,
		logger:  cfg.Logger,
	}, nil
}

// Get возвращает сохранённый результат.
func (c *ResultCache) Get(ctx context.Context, clinicID, key string) (*domain.OrchestrationResult, error) {
	data, err := c.client.Get(ctx, resultKey(clinicID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var result domain.OrchestrationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Put сохраняет результат и снимает lock.
func (c *ResultCache) Put(ctx context.Context, clinicID, key string, result *domain.OrchestrationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resultKey(clinicID, key), data, c.ttl)
		pipe.Del(ctx, lockKey(clinicID, key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Acquire захватывает ключ перед запуском orchestration.
// Возвращает ErrInProgress, если ключ уже захвачен другим запросом.
func (c *ResultCache) Acquire(ctx context.Context, clinicID, key string) error {
	ok, err := c.client.SetNX(ctx, lockKey(clinicID, key), time.Now().UTC().Format(time.RFC3339), c.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrInProgress
	}
	return nil
}

// Release снимает lock без сохранения результата.
func (c *ResultCache) Release(ctx context.Context, clinicID, key string) {
	if err := c.client.Del(ctx, lockKey(clinicID, key)).Err(); err != nil {
		c.logger.Warn("failed to release idempotency lock", "key", key, "error", err)
	}
}

// Ping проверяет доступность Redis.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func resultKey(clinicID, key string) string {
	return keyPrefix + clinicID + ":" + key
}

func lockKey(clinicID, key string) string {
	return resultKey(clinicID, key) + ":lock"
}
