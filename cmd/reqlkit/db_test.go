package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func findSub(t *testing.T, parent *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, sub := range parent.Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	t.Fatalf("%s subcommand not registered on %s", name, parent.Name())
	return nil
}

func TestDBSubcommands(t *testing.T) {
	t.Parallel()
	db := findSub(t, newRootCmd(), "db")
	for _, name := range []string{"list", "create", "drop"} {
		findSub(t, db, name)
	}
}

func TestDBArgs(t *testing.T) {
	t.Parallel()
	db := newDBCmd(&rootConfig{})
	tests := []struct {
		name string
		ok   [][]string
		bad  [][]string
	}{
		{"list", [][]string{{}}, [][]string{{"extra"}}},
		{"create", [][]string{{"mydb"}}, [][]string{{}, {"mydb", "extra"}}},
		{"drop", [][]string{{"mydb"}}, [][]string{{}, {"mydb", "extra"}}},
	}
	for _, tc := range tests {
		sub := findSub(t, db, tc.name)
		for _, args := range tc.ok {
			if err := sub.Args(sub, args); err != nil {
				t.Errorf("db %s %v: unexpected error %v", tc.name, args, err)
			}
		}
		for _, args := range tc.bad {
			if err := sub.Args(sub, args); err == nil {
				t.Errorf("db %s %v: expected error", tc.name, args)
			}
		}
	}
}

func TestDBDryRun(t *testing.T) {
	t.Parallel()
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"db", "list"}, `[1,[59,[]],{}]`},
		{[]string{"db", "create", "app"}, `[1,[57,["app"]],{}]`},
		{[]string{"db", "drop", "app"}, `[1,[58,["app"]],{}]`},
	}
	for _, tc := range tests {
		t.Run(strings.Join(tc.args, "_"), func(t *testing.T) {
			t.Parallel()
			out, _, err := runCLI(t, "", append(tc.args, "--dry-run")...)
			if err != nil {
				t.Fatal(err)
			}
			if out != tc.want+"\n" {
				t.Errorf("got  %s\nwant %s", out, tc.want)
			}
		})
	}
}

func TestDBDropDeclined(t *testing.T) {
	t.Parallel()
	_, stderr, err := runCLI(t, "n\n", "db", "drop", "app")
	if !errors.Is(err, errAborted) {
		t.Fatalf("expected errAborted, got %v", err)
	}
	if !strings.Contains(stderr, `Drop database "app" on localhost:28015?`) {
		t.Errorf("expected prompt naming the server on stderr, got %q", stderr)
	}
}

func TestTableDropNeedsDBBeforeAsking(t *testing.T) {
	t.Parallel()
	_, stderr, err := runCLI(t, "y\n", "table", "drop", "users")
	if err == nil {
		t.Fatal("expected an error without --db")
	}
	if strings.Contains(stderr, "Drop table") {
		t.Errorf("prompted before the query could be built: %q", stderr)
	}
}

func TestConfirmer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		quiet   bool
		wantErr error
	}{
		{"yes", "y\n", false, nil},
		{"yes_word", "YES\n", false, nil},
		{"name", "users\n", false, nil},
		{"name_no_newline", "users", false, nil},
		{"other_name", "orders\n", false, errAborted},
		{"no", "n\n", false, errAborted},
		{"empty", "\n", false, errAborted},
		{"eof", "", false, errAborted},
		{"quiet", "y\n", true, errAborted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var prompt bytes.Buffer
			c := confirmer{in: strings.NewReader(tc.input), out: &prompt, quiet: tc.quiet, server: "db1:28015"}
			err := c.confirm("table", "users")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
			if tc.quiet {
				if prompt.Len() > 0 {
					t.Errorf("quiet mode printed a prompt: %q", prompt.String())
				}
				return
			}
			if want := `Drop table "users" on db1:28015?`; !strings.Contains(prompt.String(), want) {
				t.Errorf("prompt %q does not contain %q", prompt.String(), want)
			}
		})
	}
}
