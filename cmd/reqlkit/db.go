package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reqlkit/internal/reql"
)

func newDBCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "List, create and drop databases",
	}
	cmd.AddCommand(
		queryCmd(cfg, "list", "List databases", cobra.NoArgs, func([]string) (reql.Query, error) {
			return reql.DBList(), nil
		}),
		queryCmd(cfg, "create <name>", "Create a database", cobra.ExactArgs(1), func(args []string) (reql.Query, error) {
			return reql.DBCreate(args[0]), nil
		}),
		dropCmd(cfg, "database", func(name string) (reql.Query, error) {
			return reql.DBDrop(name), nil
		}),
	)
	return cmd
}

// queryCmd is a subcommand that runs the query built from its arguments.
func queryCmd(cfg *rootConfig, use, short string, args cobra.PositionalArgs, build func([]string) (reql.Query, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := build(args)
			if err != nil {
				return err
			}
			return execQuery(cmd.Context(), cfg, q, cmd.OutOrStdout())
		},
	}
}

// dropCmd is a "drop <name>" subcommand for kind. The query is built before
// anything is asked, so a bad name fails without a prompt. A dry run only
// prints the envelope and never asks.
func dropCmd(cfg *rootConfig, kind string, build func(name string) (reql.Query, error)) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a " + kind,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := build(args[0])
			if err != nil {
				return err
			}
			if !yes && !cfg.dryRun {
				c := confirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr(), quiet: cfg.quiet, server: cfg.server()}
				if err := c.confirm(kind, args[0]); err != nil {
					return err
				}
			}
			return execQuery(cmd.Context(), cfg, q, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "drop without asking")
	return cmd
}

// server is the address queries go to, or "" before the config is loaded.
func (cfg *rootConfig) server() string {
	if cfg.conf == nil {
		return ""
	}
	return net.JoinHostPort(cfg.conf.Host, strconv.Itoa(cfg.conf.Port))
}

// errAborted means the user declined a drop; it is not a failure.
var errAborted = errors.New("aborted")

// confirmer asks before a destructive query. Quiet mode cannot ask, so it
// declines and --yes is required instead.
type confirmer struct {
	in     io.Reader
	out    io.Writer
	quiet  bool
	server string
}

// confirm accepts "y", "yes" or the name being dropped.
func (c confirmer) confirm(kind, name string) error {
	if c.quiet {
		return errAborted
	}
	where := ""
	if c.server != "" {
		where = " on " + c.server
	}
	_, _ = fmt.Fprintf(c.out, "Drop %s %q%s? Type y or the name to confirm: ", kind, name, where)

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.TrimSpace(line)
	switch {
	case answer == name, strings.EqualFold(answer, "y"), strings.EqualFold(answer, "yes"):
		return nil
	}
	return errAborted
}
