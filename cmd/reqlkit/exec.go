package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"reqlkit/internal/connmgr"
	"reqlkit/internal/output"
	"reqlkit/internal/query"
	"reqlkit/internal/reql"
)

// newExecutor creates a connection manager and query executor from the
// resolved config. Nothing is dialed until the first query. The returned
// cleanup func must be called to close the manager.
func newExecutor(cfg *rootConfig) (exec *query.Executor, cleanup func(), err error) {
	cc, err := cfg.conf.ConnConfig(cfg.log)
	if err != nil {
		return nil, nil, err
	}
	mgr := connmgr.NewFromConfig(cc)
	return query.New(mgr, cfg.log), func() { _ = mgr.Close() }, nil
}

// queryOpts returns the global options sent with every START query.
func (c *rootConfig) queryOpts() reql.OptArgs {
	opts := reql.OptArgs{}
	if c.conf.DB != "" {
		opts["db"] = c.conf.DB
	}
	return opts
}

func (c *rootConfig) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.conf.Timeout > 0 {
		return context.WithTimeout(ctx, c.conf.Timeout)
	}
	return context.WithCancel(ctx)
}

// outputFormat picks the configured format, falling back to json on a
// terminal and jsonl otherwise.
func (c *rootConfig) outputFormat(w io.Writer) output.Format {
	f, _ := w.(*os.File)
	return output.DetectFormat(f, c.format)
}

// execQuery runs q and writes every result row to w. With --dry-run it
// prints the encoded query instead.
func execQuery(ctx context.Context, cfg *rootConfig, q reql.Query, w io.Writer) error {
	if cfg.dryRun {
		return printQuery(cfg, q, w)
	}
	ctx, cancel := cfg.withTimeout(ctx)
	defer cancel()

	exec, cleanup, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	cur, err := exec.Run(ctx, q, cfg.queryOpts())
	if err != nil {
		return err
	}
	if cur == nil {
		return nil
	}
	defer func() { _ = cur.Close() }()
	return output.Write(w, cfg.outputFormat(w), cur)
}

// printQuery writes the START envelope for q to w without connecting.
func printQuery(cfg *rootConfig, q reql.Query, w io.Writer) error {
	exec, cleanup, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	payload, err := exec.Build(q, cfg.queryOpts())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", payload)
	return err
}
