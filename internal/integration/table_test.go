//go:build integration

package integration

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"reqlkit/internal/reql"
	"reqlkit/internal/response"
)

func TestDBAndTableLifecycle(t *testing.T) {
	t.Parallel()
	exec := newExecutor(t)
	dbName := sanitizeID(t.Name())
	setupTestDB(t, exec, dbName)

	var dbs []string
	rows := runAll(t, exec, reql.DBList())
	if err := json.Unmarshal(rows[0], &dbs); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(dbs, dbName) {
		t.Errorf("dbList %v does not contain %s", dbs, dbName)
	}

	createTestTable(t, exec, dbName, "docs")
	var tables []string
	rows = runAll(t, exec, mustBuild(t)(reql.DB(dbName).TableList()))
	if err := json.Unmarshal(rows[0], &tables); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(tables, []string{"docs"}) {
		t.Errorf("tableList = %v, want [docs]", tables)
	}

	var res struct {
		TablesDropped int `json:"tables_dropped"`
	}
	rows = runAll(t, exec, mustBuild(t)(reql.DB(dbName).TableDrop("docs")))
	if err := json.Unmarshal(rows[0], &res); err != nil {
		t.Fatal(err)
	}
	if res.TablesDropped != 1 {
		t.Errorf("tables_dropped = %d, want 1", res.TablesDropped)
	}
}

func TestTableCreatePrimaryKey(t *testing.T) {
	t.Parallel()
	exec := newExecutor(t)
	dbName := sanitizeID(t.Name())
	setupTestDB(t, exec, dbName)
	createTestTable(t, exec, dbName, "users", reql.Options{reql.Opt("primary_key", "email"), reql.Opt("durability", "soft")})

	seedTable(t, exec, dbName, "users", map[string]interface{}{"email": "a@example.com", "name": "alice"})
	rows := runAll(t, exec, mustBuild(t)(table(t, dbName, "users").Get("a@example.com")))
	var doc map[string]interface{}
	if err := json.Unmarshal(rows[0], &doc); err != nil {
		t.Fatal(err)
	}
	if doc["name"] != "alice" {
		t.Errorf("got %v", doc)
	}
}

func TestTableMissing(t *testing.T) {
	t.Parallel()
	exec := newExecutor(t)
	dbName := sanitizeID(t.Name())
	setupTestDB(t, exec, dbName)

	_, err := exec.Run(t.Context(), table(t, dbName, "nope"), nil)
	if !errors.Is(err, response.ErrNonExistence) {
		t.Fatalf("expected ErrNonExistence, got %v", err)
	}
	var se *response.ServerError
	if !errors.As(err, &se) || se.Msg == "" {
		t.Errorf("expected a populated ServerError, got %#v", err)
	}
}

func TestTableUseOutdated(t *testing.T) {
	t.Parallel()
	exec := newExecutor(t)
	dbName := sanitizeID(t.Name())
	setupTestDB(t, exec, dbName)
	createTestTable(t, exec, dbName, "docs")
	seedTable(t, exec, dbName, "docs", map[string]interface{}{"id": 1})

	q := mustBuild(t)(reql.Table(reql.DB(dbName), "docs", true))
	if rows := runAll(t, exec, q); len(rows) != 1 {
		t.Errorf("got %d rows, want 1", len(rows))
	}
}
