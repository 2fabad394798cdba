package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"reqlkit/internal/conn"
	"reqlkit/internal/conn/conntest"
	"reqlkit/internal/reql"
	"reqlkit/internal/response"
)

// runCLI executes the root command with args and returns what it wrote.
func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// serverArgs points the CLI at srv.
func serverArgs(srv *conntest.Server, args ...string) []string {
	return append([]string{
		"--host", srv.Host,
		"--port", strconv.Itoa(srv.Port),
		"--user", srv.User,
		"--password", srv.Password,
		"--timeout", "5s",
	}, args...)
}

func TestRootFlagDefaults(t *testing.T) {
	t.Parallel()
	f := newRootCmd().PersistentFlags()
	tests := []struct {
		name string
		want string
	}{
		{"host", "localhost"},
		{"port", "28015"},
		{"db", ""},
		{"user", "admin"},
		{"password", ""},
		{"password-file", ""},
		{"timeout", (30 * time.Second).String()},
		{"tls", "false"},
		{"format", ""},
		{"log-level", "warn"},
		{"log-format", "text"},
		{"dry-run", "false"},
	}
	for _, tc := range tests {
		fl := f.Lookup(tc.name)
		if fl == nil {
			t.Errorf("flag --%s not registered", tc.name)
			continue
		}
		if fl.DefValue != tc.want {
			t.Errorf("--%s default: got %q, want %q", tc.name, fl.DefValue, tc.want)
		}
	}
}

func TestRootShorthands(t *testing.T) {
	t.Parallel()
	f := newRootCmd().PersistentFlags()
	for short, name := range map[string]string{"H": "host", "P": "port", "d": "db", "u": "user", "p": "password", "t": "timeout", "f": "format"} {
		fl := f.ShorthandLookup(short)
		if fl == nil || fl.Name != name {
			t.Errorf("-%s: expected shorthand for --%s", short, name)
		}
	}
}

func TestRootSubcommands(t *testing.T) {
	t.Parallel()
	want := map[string]bool{"query": false, "db": false, "table": false, "get": false, "insert": false, "status": false}
	for _, sub := range newRootCmd().Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s subcommand not registered", name)
		}
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"connection", errors.New("dial tcp: connection refused"), exitConnection},
		{"closed", conn.ErrClosed, exitConnection},
		{"auth", fmt.Errorf("dial: %w", conn.ErrReqlAuth), exitAuth},
		{"parse", &queryError{err: errors.New("query: unexpected token")}, exitQuery},
		{"driver", fmt.Errorf("query: build: %w", &reql.DriverError{Msg: "bad"}), exitQuery},
		{"type", &reql.TypeError{Value: 1, Msg: "bad"}, exitQuery},
		{"server", &response.ServerError{Msg: "Table `x` does not exist."}, exitQuery},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRootInvalidFormat(t *testing.T) {
	t.Parallel()
	_, _, err := runCLI(t, "", "--format", "table", "db", "list", "--dry-run")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestRootInvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, _, err := runCLI(t, "", "--log-level", "loud", "db", "list", "--dry-run")
	if err == nil || !strings.Contains(err.Error(), "unknown level") {
		t.Fatalf("expected unknown level error, got %v", err)
	}
}

// Environment tests mutate process state and cannot run in parallel.

func TestRootEnvDatabase(t *testing.T) {
	t.Setenv("RETHINKDB_DB", "fromenv")
	out, _, err := runCLI(t, "", "--dry-run", "table", "list")
	if err != nil {
		t.Fatal(err)
	}
	want := `[1,[62,[[14,["fromenv"]]]],{"db":[14,["fromenv"]]}]` + "\n"
	if out != want {
		t.Errorf("got  %s\nwant %s", out, want)
	}
}

func TestRootFlagOverridesEnv(t *testing.T) {
	t.Setenv("RETHINKDB_DATABASE", "fromenv")
	out, _, err := runCLI(t, "", "--dry-run", "-d", "fromflag", "table", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"fromflag"`) || strings.Contains(out, "fromenv") {
		t.Errorf("flag should override env: %s", out)
	}
}

func TestRootVerboseLogs(t *testing.T) {
	t.Parallel()
	srv := conntest.Start(t, "pw", func(r *conntest.Responder, token uint64, _ []byte) {
		r.Reply(token, map[string]interface{}{"t": 1, "r": []interface{}{[]string{"app"}}})
	})
	_, stderr, err := runCLI(t, "", serverArgs(srv, "--verbose", "db", "list")...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "handshake complete") {
		t.Errorf("expected debug connection logs on stderr, got %q", stderr)
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	if code := run([]string{"--dry-run", "db", "list"}, &stderr); code != exitOK {
		t.Errorf("dry run: exit %d, stderr %q", code, stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"query", "--dry-run", "r.nosuch()"}, &stderr); code != exitQuery {
		t.Errorf("parse error: exit %d, want %d", code, exitQuery)
	}
	if !strings.HasPrefix(stderr.String(), "Error: ") {
		t.Errorf("expected error on stderr, got %q", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"--quiet", "db", "drop", "app"}, &stderr); code != exitOK {
		t.Errorf("aborted drop: exit %d, want %d", code, exitOK)
	}
}
