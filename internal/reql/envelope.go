package reql

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"reqlkit/internal/proto"
)

// BuildQuery serializes a query envelope.
// START: [1, term, {opts}] where a "db" opt string is sent as a DB term.
// CONTINUE, STOP, NOREPLY_WAIT and SERVER_INFO: [type].
func BuildQuery(qt proto.QueryType, q Query, opts OptArgs) ([]byte, error) {
	switch qt {
	case proto.QueryContinue, proto.QueryStop, proto.QueryNoreplyWait, proto.QueryServerInfo:
		return []byte("[" + strconv.Itoa(int(qt)) + "]"), nil
	case proto.QueryStart:
	default:
		return nil, fmt.Errorf("reql: unsupported query type %d", qt)
	}

	global, err := globalOptArgs(opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("[1,")
	if err := q.Encode().writeJSON(&buf); err != nil {
		return nil, fmt.Errorf("reql: encode query: %w", err)
	}
	buf.WriteByte(',')
	if err := writeOptArgs(&buf, global); err != nil {
		return nil, fmt.Errorf("reql: encode options: %w", err)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func globalOptArgs(opts OptArgs) ([]OptArg, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]OptArg, 0, len(keys))
	for _, k := range keys {
		v := opts[k]
		if name, ok := v.(string); ok && k == "db" {
			v = DB(name)
		}
		q, err := Expr(v)
		if err != nil {
			return nil, fmt.Errorf("reql: option %q: %w", k, err)
		}
		out = append(out, OptArg{Key: k, Value: q.Encode()})
	}
	return out, nil
}
