package dbfilter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spine.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE scenario (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tool (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO scenario (name) VALUES ('base'), ('archived')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tool (name) VALUES ('import')`)
	require.NoError(t, err)

	return path
}

func TestScenarioToolLookupReturnsSeededRows(t *testing.T) {
	path := seedDatabase(t)

	scenarios, tools, err := ScenarioToolLookup(context.Background(), path)
	require.NoError(t, err)

	names := func(items []Item) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Name
		}
		return out
	}

	assert.ElementsMatch(t, []string{"base", "archived"}, names(scenarios))
	assert.ElementsMatch(t, []string{"import"}, names(tools))
}
