//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"reqlkit/internal/conn"
	"reqlkit/internal/connmgr"
	"reqlkit/internal/cursor"
	"reqlkit/internal/query"
	"reqlkit/internal/reql"
)

const rethinkImage = "rethinkdb:2.4.4"

var (
	containerHost string
	containerPort int
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        rethinkImage,
		ExposedPorts: []string{"28015/tcp"},
		WaitingFor:   wait.ForListeningPort("28015/tcp").WithStartupTimeout(2 * time.Minute),
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if ctr != nil {
			_ = ctr.Terminate(ctx)
		}
		_, _ = fmt.Fprintf(os.Stderr, "start rethinkdb container: %v\n", err)
		os.Exit(1)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		_, _ = fmt.Fprintf(os.Stderr, "container host: %v\n", err)
		os.Exit(1)
	}

	port, err := ctr.MappedPort(ctx, "28015")
	if err != nil {
		_ = ctr.Terminate(ctx)
		_, _ = fmt.Fprintf(os.Stderr, "container port: %v\n", err)
		os.Exit(1)
	}

	containerHost = host
	containerPort = port.Int()

	code := m.Run()
	_ = ctr.Terminate(ctx)
	os.Exit(code)
}

// defaultCfg returns a Config pointing at the shared test container.
func defaultCfg() conn.Config {
	return conn.Config{Host: containerHost, Port: containerPort, User: "admin"}
}

// newExecutor creates an Executor backed by the shared test container.
// The manager is closed after any cleanup registered later by setupTestDB
// (t.Cleanup runs LIFO).
func newExecutor(t *testing.T) *query.Executor {
	t.Helper()
	mgr := connmgr.NewFromConfig(defaultCfg())
	t.Cleanup(func() { _ = mgr.Close() })
	return query.New(mgr, nil)
}

// closeCursor closes a cursor if non-nil, discarding errors.
func closeCursor(cur cursor.Cursor) {
	if cur != nil {
		_ = cur.Close()
	}
}

// mustBuild fails the test on a builder error.
func mustBuild(t *testing.T) func(q reql.Query, err error) reql.Query {
	t.Helper()
	return func(q reql.Query, err error) reql.Query {
		t.Helper()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		return q
	}
}

// runAll runs q and returns every row.
func runAll(t *testing.T, exec *query.Executor, q reql.Query) []json.RawMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cur, err := exec.Run(ctx, q, nil)
	if err != nil {
		t.Fatalf("run %s: %v", q.Type(), err)
	}
	defer closeCursor(cur)
	rows, err := cur.All()
	if err != nil {
		t.Fatalf("read %s: %v", q.Type(), err)
	}
	return rows
}

// sanitizeID turns a test name into a valid database name.
func sanitizeID(name string) string {
	s := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	if len(s) > 62 {
		s = s[:62]
	}
	return s
}

// setupTestDB creates a database and registers cleanup to drop it.
func setupTestDB(t *testing.T, exec *query.Executor, dbName string) {
	t.Helper()
	runAll(t, exec, reql.DBCreate(dbName))
	t.Cleanup(func() {
		cur, _ := exec.Run(context.Background(), reql.DBDrop(dbName), nil)
		closeCursor(cur)
	})
}

// createTestTable creates a table inside dbName.
func createTestTable(t *testing.T, exec *query.Executor, dbName, tableName string, options ...interface{}) {
	t.Helper()
	runAll(t, exec, mustBuild(t)(reql.DB(dbName).TableCreate(tableName, options...)))
}

// table returns a reference to dbName.tableName.
func table(t *testing.T, dbName, tableName string) reql.Query {
	t.Helper()
	return mustBuild(t)(reql.DB(dbName).Table(tableName))
}

// seedTable inserts docs into dbName.tableName.
func seedTable(t *testing.T, exec *query.Executor, dbName, tableName string, docs ...map[string]interface{}) {
	t.Helper()
	runAll(t, exec, mustBuild(t)(table(t, dbName, tableName).Insert(docs)))
}
