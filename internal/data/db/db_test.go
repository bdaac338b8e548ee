package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	svc, err := Open(logger.Nop(), Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, DriverSQLite, svc.Driver())
	require.NoError(t, svc.AutoMigrateAll())
	// idempotent
	require.NoError(t, svc.AutoMigrateAll())

	for _, table := range []string{"score_entry", "rubric_definition", "generation_record"} {
		assert.True(t, svc.DB().Migrator().HasTable(table), table)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(logger.Nop(), Config{Driver: "oracle"})
	assert.ErrorContains(t, err, "unknown db driver")
}

func TestPostgresDSN(t *testing.T) {
	c := Config{PostgresUser: "u", PostgresPassword: "p", PostgresHost: "h", PostgresPort: "5432", PostgresName: "rubric"}
	assert.Equal(t, "postgres://u:p@h:5432/rubric?sslmode=disable", c.postgresDSN())
	c.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", c.postgresDSN())
}
