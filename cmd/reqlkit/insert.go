package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"reqlkit/internal/query"
	"reqlkit/internal/reql"
)

type insertConfig struct {
	file      string
	format    string
	batchSize int
	conflict  string
	durable   string
}

type insertResult struct {
	Inserted   int64  `json:"inserted"`
	Replaced   int64  `json:"replaced"`
	Unchanged  int64  `json:"unchanged"`
	Errors     int64  `json:"errors"`
	FirstError string `json:"first_error,omitempty"`
}

func (r *insertResult) add(o insertResult) {
	r.Inserted += o.Inserted
	r.Replaced += o.Replaced
	r.Unchanged += o.Unchanged
	r.Errors += o.Errors
	if r.FirstError == "" {
		r.FirstError = o.FirstError
	}
}

func newInsertCmd(cfg *rootConfig) *cobra.Command {
	ic := &insertConfig{}
	cmd := &cobra.Command{
		Use:   "insert <db.table>",
		Short: "Bulk insert documents into a table",
		Long: `Bulk insert documents read from --file or stdin. Input is a JSON array
or JSON lines (one document per line); .json files are read as an array,
everything else as JSON lines unless --input-format says otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbName, tableName, err := parseTableRef(args[0])
			if err != nil {
				return err
			}
			src, closer, err := openInputSource(ic.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closer()
			return runInsert(cmd.Context(), cfg, ic, dbName, tableName, src, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&ic.file, "file", "F", "", "input file (default: stdin)")
	f.StringVar(&ic.format, "input-format", "", "input format: json or jsonl (default: by file extension, else jsonl)")
	f.IntVar(&ic.batchSize, "batch-size", 200, "documents per insert batch")
	f.StringVar(&ic.conflict, "conflict", "error", "conflict strategy: error, replace, update")
	f.StringVar(&ic.durable, "durability", "", "write durability: hard or soft (default: table setting)")
	return cmd
}

// openInputSource returns a reader for the named file, or stdin if file is empty.
func openInputSource(file string, stdin io.Reader) (io.Reader, func(), error) {
	if file == "" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// detectInputFormat infers format from the --input-format flag or file extension; defaults to jsonl.
func detectInputFormat(file, flagFormat string) string {
	if flagFormat == "json" || flagFormat == "jsonl" {
		return flagFormat
	}
	if filepath.Ext(file) == ".json" {
		return "json"
	}
	return "jsonl"
}

// insertOptions returns the optargs of every batch, in a fixed order.
func (ic *insertConfig) insertOptions() (reql.Options, error) {
	switch ic.conflict {
	case "error", "replace", "update":
	default:
		return nil, fmt.Errorf("invalid --conflict %q: want error, replace or update", ic.conflict)
	}
	opts := reql.Options{reql.Opt("conflict", ic.conflict)}
	switch ic.durable {
	case "":
	case "hard", "soft":
		opts = append(opts, reql.Opt("durability", ic.durable))
	default:
		return nil, fmt.Errorf("invalid --durability %q: want hard or soft", ic.durable)
	}
	return opts, nil
}

// batchInserter sends one insert per batch and sums the results.
type batchInserter struct {
	cfg   *rootConfig
	exec  *query.Executor
	tbl   reql.Query
	opts  reql.Options
	out   io.Writer
	total insertResult
}

// runInsert reads documents from r and bulk-inserts them into db.table.
func runInsert(ctx context.Context, cfg *rootConfig, ic *insertConfig, dbName, tableName string, r io.Reader, out io.Writer) error {
	if ic.batchSize < 1 {
		return fmt.Errorf("--batch-size must be >= 1")
	}
	opts, err := ic.insertOptions()
	if err != nil {
		return err
	}
	tbl, err := reql.DB(dbName).Table(tableName)
	if err != nil {
		return err
	}

	ctx, cancel := cfg.withTimeout(ctx)
	defer cancel()

	exec, cleanup, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	bi := &batchInserter{cfg: cfg, exec: exec, tbl: tbl, opts: opts, out: out}
	if detectInputFormat(ic.file, ic.format) == "json" {
		err = bi.readJSON(ctx, ic.batchSize, r)
	} else {
		err = bi.readJSONL(ctx, ic.batchSize, r)
	}
	if err != nil {
		return err
	}
	if cfg.dryRun {
		return nil
	}

	data, err := json.Marshal(bi.total)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

// readJSONL reads JSONL (one doc per line) and bulk-inserts in batches.
func (bi *batchInserter) readJSONL(ctx context.Context, batchSize int, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	var batch []json.RawMessage
	line := 0
	for scanner.Scan() {
		line++
		doc := bytes.TrimSpace(scanner.Bytes())
		if len(doc) == 0 {
			continue
		}
		if !json.Valid(doc) {
			return fmt.Errorf("line %d: invalid JSON document", line)
		}
		batch = append(batch, json.RawMessage(bytes.Clone(doc)))
		if len(batch) >= batchSize {
			if err := bi.insert(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if len(batch) > 0 {
		return bi.insert(ctx, batch)
	}
	return nil
}

// readJSON reads a JSON array of documents and bulk-inserts in batches.
func (bi *batchInserter) readJSON(ctx context.Context, batchSize int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing JSON input: %w", err)
	}
	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))
		if err := bi.insert(ctx, docs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// insert runs a single batch insert and accumulates totals.
func (bi *batchInserter) insert(ctx context.Context, batch []json.RawMessage) error {
	docs := make([]interface{}, len(batch))
	for i, d := range batch {
		docs[i] = d
	}
	q, err := bi.tbl.Insert(docs, bi.opts)
	if err != nil {
		return err
	}
	if bi.cfg.dryRun {
		return printQuery(bi.cfg, q, bi.out)
	}
	bi.cfg.log.Debug("insert batch", "docs", len(docs))

	cur, err := bi.exec.Run(ctx, q, bi.cfg.queryOpts())
	if err != nil {
		return err
	}
	if cur == nil {
		return nil
	}
	defer func() { _ = cur.Close() }()

	rows, err := cur.All()
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		var res insertResult
		if err := json.Unmarshal(rows[0], &res); err != nil {
			return fmt.Errorf("parsing insert response: %w", err)
		}
		bi.total.add(res)
	}
	return nil
}
