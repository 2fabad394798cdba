package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reqlkit/internal/reql"
)

func newTableCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Table management commands",
	}
	cmd.AddCommand(
		newTableListCmd(cfg),
		newTableCreateCmd(cfg),
		newTableDropCmd(cfg),
	)
	return cmd
}

// tableDB returns a DB reference for the configured database, or an error if unset.
func tableDB(cfg *rootConfig) (reql.Query, error) {
	if cfg.conf.DB == "" {
		return reql.Query{}, fmt.Errorf("table commands require --db flag or RETHINKDB_DB env var")
	}
	return reql.DB(cfg.conf.DB), nil
}

func newTableListCmd(cfg *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tables in current database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := tableDB(cfg)
			if err != nil {
				return err
			}
			q, err := db.TableList()
			if err != nil {
				return err
			}
			return execQuery(cmd.Context(), cfg, q, cmd.OutOrStdout())
		},
	}
}

func newTableCreateCmd(cfg *rootConfig) *cobra.Command {
	var rawOpts []string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a table",
		Example: `  reqlkit -d app table create users --option primary_key=email --option shards=2
  reqlkit -d app table create logs --option durability=soft`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := tableDB(cfg)
			if err != nil {
				return err
			}
			opts, err := parseOptions(rawOpts)
			if err != nil {
				return err
			}
			q, err := db.TableCreate(args[0], opts)
			if err != nil {
				return err
			}
			return execQuery(cmd.Context(), cfg, q, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVarP(&rawOpts, "option", "o", nil, "table option as key=value (repeatable)")
	return cmd
}

func newTableDropCmd(cfg *rootConfig) *cobra.Command {
	return dropCmd(cfg, "table", func(name string) (reql.Query, error) {
		db, err := tableDB(cfg)
		if err != nil {
			return reql.Query{}, err
		}
		return db.TableDrop(name)
	})
}

// parseOptions turns key=value pairs into options, keeping their order.
// Values are read as JSON when they parse, else taken as plain strings,
// so shards=2 is a number and primary_key=email a string.
func parseOptions(pairs []string) (reql.Options, error) {
	var opts reql.Options
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", p)
		}
		opts = append(opts, reql.Opt(k, parseValue(v)))
	}
	return opts, nil
}

// parseValue decodes s as JSON, keeping numbers exact, or returns s itself.
func parseValue(s string) interface{} {
	if !json.Valid([]byte(s)) {
		return s
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return s
	}
	return v
}
