package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/rubric-backend/internal/learning/generation"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces continuity keys.
	Prefix string
	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration
}

// ContinuityStore keeps the last artifact per session in redis. A single SET is
// atomic, which gives last-write-wins without extra locking.
type ContinuityStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ generation.ContinuityStore = (*ContinuityStore)(nil)

func NewClient(cfg Config) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewContinuityStore(log *logger.Logger, rdb *goredis.Client, cfg Config) (*ContinuityStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "rubric:continuity"
	}
	return &ContinuityStore{
		log:    log.With("service", "RedisContinuityStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    cfg.TTL,
	}, nil
}

func (s *ContinuityStore) key(k generation.SessionKey) string {
	return s.prefix + ":" + strings.TrimSpace(string(k))
}

func (s *ContinuityStore) Get(ctx context.Context, k generation.SessionKey) (string, bool, error) {
	if s == nil || s.rdb == nil {
		return "", false, fmt.Errorf("redis continuity store not initialized")
	}
	v, err := s.rdb.Get(ctx, s.key(k)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *ContinuityStore) Put(ctx context.Context, k generation.SessionKey, artifact string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis continuity store not initialized")
	}
	if err := s.rdb.Set(ctx, s.key(k), artifact, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *ContinuityStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
