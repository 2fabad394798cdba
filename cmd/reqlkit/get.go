package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reqlkit/internal/reql"
)

func newGetCmd(cfg *rootConfig) *cobra.Command {
	var index string
	var useOutdated bool
	cmd := &cobra.Command{
		Use:   "get <db.table> <key>",
		Short: "Fetch one document by primary key or secondary index",
		Long: `Fetch one document by key. The key is read as JSON when it parses and
as a string otherwise. Keys that read as numbers, quoted or not, are sent as
numbers, so 42 and "42" fetch the same document.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := getQuery(args[0], args[1], index, useOutdated)
			if err != nil {
				return err
			}
			return execQuery(cmd.Context(), cfg, q, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&index, "index", "i", "", "secondary index to look the key up in")
	cmd.Flags().BoolVar(&useOutdated, "use-outdated", false, "allow reading outdated data from replicas")
	return cmd
}

// getQuery builds db.table(...).get(key[, index]).
func getQuery(ref, key, index string, useOutdated bool) (reql.Query, error) {
	dbName, tableName, err := parseTableRef(ref)
	if err != nil {
		return reql.Query{}, err
	}
	var outdated interface{}
	if useOutdated {
		outdated = true
	}
	tbl, err := reql.Table(reql.DB(dbName), tableName, outdated)
	if err != nil {
		return reql.Query{}, err
	}
	var idx interface{}
	if index != "" {
		idx = index
	}
	return reql.Get(tbl, parseValue(key), idx)
}

// parseTableRef splits "db.table" into db and table names.
func parseTableRef(ref string) (db, table string, err error) {
	db, table, ok := strings.Cut(ref, ".")
	if !ok || db == "" || table == "" {
		return "", "", fmt.Errorf("invalid table reference %q: expected db.table", ref)
	}
	return db, table, nil
}
