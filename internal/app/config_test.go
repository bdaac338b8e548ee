package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(configFileEnv, "")
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, ContinuityMemory, cfg.ContinuityBackend)
	assert.Equal(t, extractor.MaxUnitChars, cfg.MaxUnitChars)
	assert.Equal(t, 1536, cfg.IndexDim)
	assert.Equal(t, 300*time.Second, cfg.CallTimeout())
	assert.True(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
db_driver: sqlite
index_dim: 8
book_concurrency: 4
cors_origins:
  - http://a.example
  - http://b.example
`), 0o600))

	t.Setenv(configFileEnv, path)
	t.Setenv("RUBRIC_INDEX_DIM", "16")
	t.Setenv("RUBRIC_CALL_TIMEOUT_SECONDS", "5")
	t.Setenv("RUBRIC_OTEL_ENABLED", "true")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 16, cfg.IndexDim, "env overrides file")
	assert.Equal(t, 4, cfg.BookConcurrency)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout())
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "postgres", cfg.PostgresUser, "unset keys keep defaults")
}

func TestLoadConfigCommaSeparatedOrigins(t *testing.T) {
	t.Setenv(configFileEnv, "")
	t.Setenv("RUBRIC_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv(configFileEnv, "")

	t.Run("redis without addr", func(t *testing.T) {
		t.Setenv("RUBRIC_CONTINUITY_BACKEND", "redis")
		_, err := LoadConfig(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis_addr")
	})
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("RUBRIC_CONTINUITY_BACKEND", "memcached")
		_, err := LoadConfig(nil)
		require.Error(t, err)
	})
	t.Run("bad index dim", func(t *testing.T) {
		t.Setenv("RUBRIC_INDEX_DIM", "0")
		_, err := LoadConfig(nil)
		require.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := LoadConfig(nil)
		require.Error(t, err)
	})
}

func TestWireContinuity(t *testing.T) {
	p, err := wireContinuity(logger.Nop(), Config{ContinuityBackend: "MEMORY"})
	require.NoError(t, err)
	assert.Equal(t, ContinuityMemory, p.Backend)
	assert.NotNil(t, p.Store)
	assert.NoError(t, p.Close())

	_, err = wireContinuity(logger.Nop(), Config{ContinuityBackend: "etcd"})
	var cerr *ContinuityConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ContinuityConfigErrorUnknownBackend, cerr.Code)

	_, err = wireContinuity(logger.Nop(), Config{ContinuityBackend: ContinuityRedis})
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, ContinuityConfigErrorRedisConnect, cerr.Code)
}

func TestOpenIndexCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lessons.idx")
	idx, err := openIndex(logger.Nop(), Config{IndexPath: path, IndexDim: 4, IndexCompactEvery: 8})
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Insert("a", []float32{1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}
