package app

import (
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/rubric-backend/internal/clients/redis"
	"github.com/yungbote/rubric-backend/internal/learning/generation"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type ContinuityConfigErrorCode string

const (
	ContinuityConfigErrorUnknownBackend ContinuityConfigErrorCode = "unknown_backend"
	ContinuityConfigErrorRedisConnect   ContinuityConfigErrorCode = "redis_connect"
)

type ContinuityConfigError struct {
	Code    ContinuityConfigErrorCode
	Backend string
	Cause   error
}

func (e *ContinuityConfigError) Error() string {
	if e == nil {
		return "invalid continuity config"
	}
	return fmt.Sprintf("invalid continuity config (code=%s backend=%q): %v", e.Code, e.Backend, e.Cause)
}

func (e *ContinuityConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// continuityProvider is the resolved continuity store plus the redis client
// behind it, if any.
type continuityProvider struct {
	Backend string
	Store   generation.ContinuityStore
	Redis   *goredis.Client
	closer  func() error
}

func (p *continuityProvider) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

func wireContinuity(log *logger.Logger, cfg Config) (*continuityProvider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.ContinuityBackend))
	switch backend {
	case "", ContinuityMemory:
		log.Info("Continuity store: memory")
		return &continuityProvider{Backend: ContinuityMemory, Store: generation.NewMemoryStore()}, nil
	case ContinuityRedis:
		rcfg := redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.ContinuityTTL(),
		}
		rdb, err := redis.NewClient(rcfg)
		if err != nil {
			return nil, &ContinuityConfigError{Code: ContinuityConfigErrorRedisConnect, Backend: backend, Cause: err}
		}
		store, err := redis.NewContinuityStore(log, rdb, rcfg)
		if err != nil {
			_ = rdb.Close()
			return nil, &ContinuityConfigError{Code: ContinuityConfigErrorRedisConnect, Backend: backend, Cause: err}
		}
		log.Info("Continuity store: redis", "addr", cfg.RedisAddr)
		return &continuityProvider{Backend: ContinuityRedis, Store: store, Redis: rdb, closer: store.Close}, nil
	}
	return nil, &ContinuityConfigError{
		Code:    ContinuityConfigErrorUnknownBackend,
		Backend: backend,
		Cause:   fmt.Errorf("want %s or %s", ContinuityMemory, ContinuityRedis),
	}
}
