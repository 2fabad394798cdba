//go:build integration

package integration

import (
	"encoding/json"
	"sort"
	"testing"

	"reqlkit/internal/query"
	"reqlkit/internal/reql"
)

// usersFixture creates dbName.users with five documents keyed 1..5.
func usersFixture(t *testing.T) (*query.Executor, reql.Query) {
	t.Helper()
	exec := newExecutor(t)
	dbName := sanitizeID(t.Name())
	setupTestDB(t, exec, dbName)
	createTestTable(t, exec, dbName, "users")
	seedTable(t, exec, dbName, "users",
		map[string]interface{}{"id": 1, "name": "alice", "age": 31, "active": true},
		map[string]interface{}{"id": 2, "name": "bob", "age": 17, "active": false},
		map[string]interface{}{"id": 3, "name": "carol", "age": 45, "active": true},
		map[string]interface{}{"id": 4, "name": "dave", "age": 22, "active": false},
		map[string]interface{}{"id": 5, "name": "erin", "age": 19, "active": true},
	)
	return exec, table(t, dbName, "users")
}

// ids decodes rows and returns their sorted ids.
func ids(t *testing.T, rows []json.RawMessage) []int {
	t.Helper()
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		var doc struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(r, &doc); err != nil {
			t.Fatal(err)
		}
		out = append(out, doc.ID)
	}
	sort.Ints(out)
	return out
}

func TestGet(t *testing.T) {
	t.Parallel()
	exec, users := usersFixture(t)

	rows := runAll(t, exec, mustBuild(t)(users.Get(3)))
	if got := ids(t, rows); len(got) != 1 || got[0] != 3 {
		t.Errorf("get(3) = %v", got)
	}

	rows = runAll(t, exec, mustBuild(t)(users.Get(99)))
	if len(rows) != 1 || string(rows[0]) != "null" {
		t.Errorf("get(99) = %s, want null", rows)
	}

	// numeric strings are sent as numbers
	rows = runAll(t, exec, mustBuild(t)(users.Get("3")))
	if got := ids(t, rows); len(got) != 1 || got[0] != 3 {
		t.Errorf(`get("3") = %v`, got)
	}
}

func TestGetAll(t *testing.T) {
	t.Parallel()
	exec, users := usersFixture(t)
	rows := runAll(t, exec, mustBuild(t)(users.GetAll(1, 4, 99)))
	if got := ids(t, rows); !equalInts(got, []int{1, 4}) {
		t.Errorf("getAll = %v, want [1 4]", got)
	}
}

func TestBetween(t *testing.T) {
	t.Parallel()
	exec, users := usersFixture(t)
	tests := []struct {
		name        string
		left, right interface{}
		want        []int
	}{
		{"closed_open", 2, 4, []int{2, 3}},
		{"open_left", nil, 3, []int{1, 2}},
		{"open_right", 4, nil, []int{4, 5}},
		{"minval_maxval", reql.MinVal(), reql.MaxVal(), []int{1, 2, 3, 4, 5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows := runAll(t, exec, mustBuild(t)(users.Between(tc.left, tc.right)))
			if got := ids(t, rows); !equalInts(got, tc.want) {
				t.Errorf("between = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()
	exec, users := usersFixture(t)
	adult := func(u reql.Query) (reql.Query, error) { return u.Field("age").Ge(18) }
	rowAdult := mustBuild(t)(reql.Row().Field("age").Ge(18))
	tests := []struct {
		name string
		pred interface{}
		want []int
	}{
		{"object", map[string]interface{}{"active": true}, []int{1, 3, 5}},
		{"go_func", adult, []int{1, 3, 4, 5}},
		{"row", rowAdult, []int{1, 3, 4, 5}},
		{"false", false, []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows := runAll(t, exec, mustBuild(t)(users.Filter(tc.pred)))
			if got := ids(t, rows); !equalInts(got, tc.want) {
				t.Errorf("filter = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterBetweenChain(t *testing.T) {
	t.Parallel()
	exec, users := usersFixture(t)
	sel := mustBuild(t)(users.Between(1, 5))
	q := mustBuild(t)(sel.Filter(map[string]interface{}{"active": false}))
	if got := ids(t, runAll(t, exec, q)); !equalInts(got, []int{2, 4}) {
		t.Errorf("got %v, want [2 4]", got)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
