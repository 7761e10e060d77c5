package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoad_Embedded(t *testing.T) {
	ms, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Contains(t, ms[0].SQL, "CREATE TABLE IF NOT EXISTS conversations")
}

func TestLoad_OrderAndValidation(t *testing.T) {
	t.Run("sorted by version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/010_later.sql":  {Data: []byte("SELECT 10;")},
			"m/002_second.sql": {Data: []byte("SELECT 2;")},
			"m/README.md":      {Data: []byte("ignored")},
		}
		ms, err := load(fsys, "m")
		require.NoError(t, err)
		require.Len(t, ms, 2)
		assert.Equal(t, 2, ms[0].Version)
		assert.Equal(t, 10, ms[1].Version)
	})

	t.Run("missing prefix", func(t *testing.T) {
		_, err := load(fstest.MapFS{"m/schema.sql": {Data: []byte("")}}, "m")
		assert.Error(t, err)
	})

	t.Run("non-numeric prefix", func(t *testing.T) {
		_, err := load(fstest.MapFS{"m/abc_schema.sql": {Data: []byte("")}}, "m")
		assert.Error(t, err)
	})

	t.Run("duplicate version", func(t *testing.T) {
		_, err := load(fstest.MapFS{
			"m/001_a.sql": {Data: []byte("")},
			"m/1_b.sql":   {Data: []byte("")},
		}, "m")
		assert.Error(t, err)
	})
}

func TestApply(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := Apply(ctx, db)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	for _, table := range []string{"accounts", "conversations", "messages", "rules", "flows"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}

	n, err = Apply(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run applies nothing")
}

func TestApply_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ms := []Migration{
		{Version: 1, Name: "001_ok.sql", SQL: "CREATE TABLE a (id INTEGER);"},
		{Version: 2, Name: "002_bad.sql", SQL: "CREATE TABLE b (id INTEGER); NOT VALID SQL;"},
	}

	n, err := apply(ctx, db, ms)
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, 1, version)
}

func TestSchema_FlowStateCheck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := Apply(ctx, db)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO accounts (id, user_id, phone_number_id, access_token, created_at, updated_at)
		VALUES ('a1', 'u1', 'pn1', 'tok', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO conversations (account_id, contact_number, last_message_at, current_flow_id, current_node_id, created_at, updated_at)
		VALUES ('a1', '15550001', CURRENT_TIMESTAMP, 'flow-1', NULL, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "half-set flow state must be rejected")

	_, err = db.Exec(`INSERT INTO conversations (account_id, contact_number, last_message_at, current_flow_id, current_node_id, created_at, updated_at)
		VALUES ('a1', '15550001', CURRENT_TIMESTAMP, 'flow-1', 'node-1', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.NoError(t, err)
}
