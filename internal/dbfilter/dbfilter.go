// Package dbfilter implements the sqlite-backed scenario/tool discovery
// behind Connection.FetchDatabaseItems, mirroring
// project_item/connection.py's fetch_database_items querying
// spinedb_api.DatabaseMapping's scenario_sq/tool_sq.
package dbfilter

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Item is one discoverable scenario or tool filter a Connection can offer
// the user to toggle online/offline.
type Item struct {
	ID   int64
	Name string
}

// ScenarioToolLookup opens the sqlite database at url and returns its
// scenarios and tools, mirroring fetch_database_items's two queries against
// scenario_sq/tool_sq.
func ScenarioToolLookup(ctx context.Context, url string) (scenarios, tools []Item, err error) {
	db, err := sql.Open("sqlite", url)
	if err != nil {
		return nil, nil, fmt.Errorf("dbfilter: open %s: %w", url, err)
	}
	defer db.Close()

	scenarios, err = queryNamedRows(ctx, db, "SELECT id, name FROM scenario ORDER BY name")
	if err != nil {
		return nil, nil, fmt.Errorf("dbfilter: query scenarios: %w", err)
	}
	tools, err = queryNamedRows(ctx, db, "SELECT id, name FROM tool ORDER BY name")
	if err != nil {
		return nil, nil, fmt.Errorf("dbfilter: query tools: %w", err)
	}
	return scenarios, tools, nil
}

func queryNamedRows(ctx context.Context, db *sql.DB, query string) ([]Item, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
