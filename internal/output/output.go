// Package output prints query results as pretty JSON, JSON lines, or raw
// text.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Format names an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatRaw   Format = "raw"
)

// ParseFormat validates a format name. The empty string is allowed and
// means "detect".
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "", FormatJSON, FormatJSONL, FormatRaw:
		return f, nil
	}
	return "", fmt.Errorf("output: unknown format %q (want json, jsonl or raw)", s)
}

// RowIterator yields rows until io.EOF.
type RowIterator interface {
	Next() (json.RawMessage, error)
}

// Write prints every row of iter to w in format f.
func Write(w io.Writer, f Format, iter RowIterator) error {
	switch f {
	case FormatJSON, "":
		return JSON(w, iter)
	case FormatJSONL:
		return each(iter, func(row json.RawMessage) error {
			_, err := fmt.Fprintln(w, compact(row))
			return err
		})
	case FormatRaw:
		return each(iter, func(row json.RawMessage) error {
			var s string
			if json.Unmarshal(row, &s) == nil {
				_, err := fmt.Fprintln(w, s)
				return err
			}
			_, err := fmt.Fprintln(w, compact(row))
			return err
		})
	}
	return fmt.Errorf("output: unknown format %q", f)
}

// JSON pretty-prints rows. A single row is printed on its own, several
// rows as an array, and no rows as [].
func JSON(w io.Writer, iter RowIterator) error {
	var rows []json.RawMessage
	err := each(iter, func(row json.RawMessage) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		_, err = fmt.Fprintln(w, "[]")
	case 1:
		_, err = fmt.Fprintln(w, indent(rows[0], ""))
	default:
		var buf bytes.Buffer
		buf.WriteString("[\n")
		for i, row := range rows {
			buf.WriteString("  ")
			buf.WriteString(indent(row, "  "))
			if i < len(rows)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString("]\n")
		_, err = w.Write(buf.Bytes())
	}
	return err
}

func each(iter RowIterator, fn func(json.RawMessage) error) error {
	for {
		row, err := iter.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// indent falls back to the input when it is not valid JSON.
func indent(row json.RawMessage, prefix string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, row, prefix, "  "); err != nil {
		return string(row)
	}
	return buf.String()
}

func compact(row json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, row); err != nil {
		return string(row)
	}
	return buf.String()
}
