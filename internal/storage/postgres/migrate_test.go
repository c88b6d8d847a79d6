package postgres

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainExplorer/internal/storage/postgres/migrations"
)

func readMigration(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(body)
}

func TestEmbeddedMigrations(t *testing.T) {
	source, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, identifier, err := source.ReadUp(first)
	require.NoError(t, err)
	assert.Equal(t, "init", identifier)
	upSQL := readMigration(t, up)
	for _, table := range []string{"blocks", "transactions", "logs"} {
		assert.Contains(t, upSQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, upSQL, "WHERE details IS NULL")

	down, _, err := source.ReadDown(first)
	require.NoError(t, err)
	downSQL := readMigration(t, down)
	assert.Equal(t, 3, strings.Count(downSQL, "DROP TABLE IF EXISTS"))

	_, err = source.Next(first)
	assert.ErrorIs(t, err, os.ErrNotExist, "0001 is the only version")
}

func TestMigrateIsRepeatable(t *testing.T) {
	dsn := os.Getenv("EXPLORER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("EXPLORER_TEST_PG_DSN not set")
	}
	cfg, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		version, err := Migrate(cfg)
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
	}
}
