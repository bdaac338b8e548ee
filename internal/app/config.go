package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
	"github.com/yungbote/rubric-backend/internal/vecindex"
)

const (
	configFileEnv = "RUBRIC_CONFIG"
	envPrefix     = "RUBRIC_"

	ContinuityMemory = "memory"
	ContinuityRedis  = "redis"
)

type Config struct {
	Addr        string `koanf:"addr"`
	LogMode     string `koanf:"log_mode"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`

	DBDriver         string `koanf:"db_driver"`
	DBDSN            string `koanf:"db_dsn"`
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     string `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresName     string `koanf:"postgres_name"`

	IndexPath         string `koanf:"index_path"`
	IndexDim          int    `koanf:"index_dim"`
	IndexCompactEvery int    `koanf:"index_compact_every"`
	// EmbedTimeoutSeconds bounds one embedding request.
	EmbedTimeoutSeconds int `koanf:"embed_timeout_seconds"`

	ContinuityBackend string `koanf:"continuity_backend"`
	RedisAddr         string `koanf:"redis_addr"`
	RedisPassword     string `koanf:"redis_password"`
	RedisDB           int    `koanf:"redis_db"`
	// ContinuityTTLSeconds expires redis continuity keys. Zero keeps them.
	ContinuityTTLSeconds int `koanf:"continuity_ttl_seconds"`

	CallTimeoutSeconds int    `koanf:"call_timeout_seconds"`
	MaxUnitChars       int    `koanf:"max_unit_chars"`
	MaxUploadBytes     int64  `koanf:"max_upload_bytes"`
	BookConcurrency    int    `koanf:"book_concurrency"`
	SegmentStrictness  string `koanf:"segment_strictness"`

	OtelEnabled     bool    `koanf:"otel_enabled"`
	OtelEndpoint    string  `koanf:"otel_endpoint"`
	OtelHeaders     string  `koanf:"otel_headers"`
	OtelInsecure    bool    `koanf:"otel_insecure"`
	OtelSampleRatio float64 `koanf:"otel_sample_ratio"`

	MetricsEnabled bool     `koanf:"metrics_enabled"`
	CORSOrigins    []string `koanf:"cors_origins"`
}

func defaultConfig() Config {
	return Config{
		Addr:                ":8080",
		LogMode:             "development",
		ServiceName:         "rubric-backend",
		Environment:         "development",
		DBDriver:            "postgres",
		PostgresHost:        "localhost",
		PostgresPort:        "5432",
		PostgresUser:        "postgres",
		PostgresName:        "rubric",
		IndexPath:           "data/lessons.idx",
		IndexDim:            vecindex.DefaultDim,
		IndexCompactEvery:   vecindex.DefaultCompactEvery,
		EmbedTimeoutSeconds: 30,
		ContinuityBackend:   ContinuityMemory,
		CallTimeoutSeconds:  300,
		MaxUnitChars:        extractor.MaxUnitChars,
		MaxUploadBytes:      20 << 20,
		BookConcurrency:     2,
		SegmentStrictness:   string(extractor.StrictnessLesson),
		OtelSampleRatio:     1,
		MetricsEnabled:      true,
	}
}

// LoadConfig layers defaults, the YAML file named by RUBRIC_CONFIG and
// RUBRIC_* environment variables, in increasing precedence.
func LoadConfig(log *logger.Logger) (Config, error) {
	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}

	// RUBRIC_INDEX_PATH -> index_path
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := defaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr must not be empty")
	}
	if c.IndexDim <= 0 {
		return fmt.Errorf("index_dim must be positive, got %d", c.IndexDim)
	}
	if c.MaxUnitChars <= 0 {
		return fmt.Errorf("max_unit_chars must be positive, got %d", c.MaxUnitChars)
	}
	switch c.ContinuityBackend {
	case ContinuityMemory:
	case ContinuityRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("continuity_backend redis needs redis_addr")
		}
	default:
		return fmt.Errorf("continuity_backend must be memory or redis, got %q", c.ContinuityBackend)
	}
	return nil
}

func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

func (c Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

func (c Config) ContinuityTTL() time.Duration {
	return time.Duration(c.ContinuityTTLSeconds) * time.Second
}

// splitList accepts both YAML lists and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
