package main

import (
	"encoding/json"
	"errors"
	"testing"

	"reqlkit/internal/reql"
)

func TestParseTableRef(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ref     string
		db      string
		table   string
		wantErr bool
	}{
		{"app.users", "app", "users", false},
		{"app.users.v2", "app", "users.v2", false},
		{"users", "", "", true},
		{".users", "", "", true},
		{"app.", "", "", true},
		{"", "", "", true},
	}
	for _, tc := range tests {
		db, table, err := parseTableRef(tc.ref)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseTableRef(%q): err = %v, wantErr %v", tc.ref, err, tc.wantErr)
			continue
		}
		if db != tc.db || table != tc.table {
			t.Errorf("parseTableRef(%q) = %q, %q", tc.ref, db, table)
		}
	}
}

func TestGetQuery(t *testing.T) {
	t.Parallel()
	const users = `[15,[[14,["app"]],"users"]]`
	tests := []struct {
		name        string
		key         string
		index       string
		useOutdated bool
		want        string
	}{
		{"string", "alice", "", false, `[16,[` + users + `,"alice"]]`},
		{"number", "42", "", false, `[16,[` + users + `,42]]`},
		{"quoted_number", `"42"`, "", false, `[16,[` + users + `,42]]`},
		{"quoted_string", `"bob"`, "", false, `[16,[` + users + `,"bob"]]`},
		{"index", "alice@example.com", "email", false, `[16,[` + users + `,"alice@example.com","email"]]`},
		{"use_outdated", "alice", "", true, `[16,[[15,[[14,["app"]],"users"],{"use_outdated":true}],"alice"]]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			q, err := getQuery("app.users", tc.key, tc.index, tc.useOutdated)
			if err != nil {
				t.Fatal(err)
			}
			got, err := json.Marshal(q)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tc.want {
				t.Errorf("got  %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestGetQueryErrors(t *testing.T) {
	t.Parallel()
	if _, err := getQuery("users", "k", "", false); err == nil {
		t.Error("expected error for missing db")
	}
	_, err := getQuery("app.users", `{"a":1}`, "", false)
	var te *reql.TypeError
	if !errors.As(err, &te) {
		t.Errorf("object key: expected TypeError, got %v", err)
	}
	if got := exitCode(err); got != exitQuery {
		t.Errorf("exit code: got %d, want %d", got, exitQuery)
	}
}

func TestGetCmdArgs(t *testing.T) {
	t.Parallel()
	cmd := newGetCmd(&rootConfig{})
	if err := cmd.Args(cmd, []string{"app.users"}); err == nil {
		t.Error("expected error for one arg")
	}
	if err := cmd.Args(cmd, []string{"app.users", "k"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetDryRun(t *testing.T) {
	t.Parallel()
	out, _, err := runCLI(t, "", "get", "app.users", "7", "--index", "seq", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	want := `[1,[16,[[15,[[14,["app"]],"users"]],7,"seq"]],{}]` + "\n"
	if out != want {
		t.Errorf("got  %s\nwant %s", out, want)
	}
}
