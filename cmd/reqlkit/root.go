package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reqlkit/internal/config"
	"reqlkit/internal/conn"
	"reqlkit/internal/logger"
	"reqlkit/internal/output"
	"reqlkit/internal/reql"
	"reqlkit/internal/response"
)

// exit codes
const (
	exitOK         = 0
	exitConnection = 1
	exitQuery      = 2
	exitAuth       = 3
	exitINT        = 130
)

// configFlags are the persistent flags resolved through viper; the key is
// the flag name with dashes turned into underscores.
var configFlags = []string{
	"host", "port", "db", "user", "password", "password-file", "timeout",
	"tls", "tls-ca", "format", "log-level", "log-format",
}

type rootConfig struct {
	v          *viper.Viper
	configFile string
	quiet      bool
	verbose    bool
	dryRun     bool

	// set by PersistentPreRunE
	conf   *config.Config
	log    *slog.Logger
	format output.Format
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootConfig{v: config.New()})
}

func buildRootCmd(cfg *rootConfig) *cobra.Command {
	if cfg.v == nil {
		cfg.v = config.New()
	}
	cmd := &cobra.Command{
		Use:           "reqlkit",
		Short:         "Build and run RethinkDB queries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.load(cmd.ErrOrStderr())
		},
	}
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.AddCommand(
		newQueryCmd(cfg),
		newDBCmd(cfg),
		newTableCmd(cfg),
		newGetCmd(cfg),
		newInsertCmd(cfg),
		newStatusCmd(cfg),
	)

	f := cmd.PersistentFlags()
	f.StringVar(&cfg.configFile, "config", "", "config file (YAML, TOML or JSON)")
	f.StringP("host", "H", "localhost", "RethinkDB host")
	f.IntP("port", "P", 28015, "RethinkDB port")
	f.StringP("db", "d", "", "default database")
	f.StringP("user", "u", "admin", "RethinkDB user")
	f.StringP("password", "p", "", "RethinkDB password (or RETHINKDB_PASSWORD env)")
	f.String("password-file", "", "read password from file")
	f.DurationP("timeout", "t", 30*time.Second, "connection and query timeout")
	f.Bool("tls", false, "connect over TLS")
	f.String("tls-ca", "", "PEM file with CA certificates for TLS")
	f.StringP("format", "f", "", "output format: json, jsonl, raw (default: json on TTY, jsonl when piped)")
	f.String("log-level", "warn", "log level: debug, info, warn, error")
	f.String("log-format", "text", "log format: text, json")
	f.BoolVar(&cfg.quiet, "quiet", false, "suppress prompts and non-data output to stderr")
	f.BoolVar(&cfg.verbose, "verbose", false, "log connection and query details to stderr")
	f.BoolVar(&cfg.dryRun, "dry-run", false, "print the encoded query instead of running it")

	for _, name := range configFlags {
		_ = cfg.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), f.Lookup(name))
	}
	return cmd
}

// load resolves flags, environment and config file, then builds the logger.
func (c *rootConfig) load(stderr io.Writer) error {
	conf, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	lc := logger.Config{Level: conf.LogLevel, Format: conf.LogFormat}
	if c.verbose {
		lc.Level = "debug"
	}
	log, err := logger.New(stderr, lc)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(conf.Format)
	if err != nil {
		return err
	}
	c.conf, c.log, c.format = conf, log, format
	return nil
}

// exitCode maps an error to the appropriate process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, conn.ErrReqlAuth) {
		return exitAuth
	}
	if isQueryError(err) {
		return exitQuery
	}
	return exitConnection
}

func isQueryError(err error) bool {
	var q *queryError
	var d *reql.DriverError
	var t *reql.TypeError
	var s *response.ServerError
	return errors.As(err, &q) || errors.As(err, &d) || errors.As(err, &t) || errors.As(err, &s)
}
