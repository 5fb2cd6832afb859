package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		}
	}
	assert.NotZero(t, ups)
	assert.Equal(t, ups, downs)
}

func TestEmbeddedMigrationsCreateEveryModelTable(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init_studioledger.up.sql")
	require.NoError(t, err)

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+stmt.Schema.Table+" (")
	}
}

func TestMigrateAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(conn, true))
	for _, table := range []string{"studios", "invoices", "payments", "payment_webhook_events", "campaigns"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestMigrateRequiresConnection(t *testing.T) {
	assert.Error(t, Migrate(nil, true))
}
