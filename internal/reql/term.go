package reql

import (
	"bytes"
	"strconv"

	"reqlkit/internal/proto"
)

// Term is the encoded form of a query: an opcode, positional arguments whose
// meaning is fixed per opcode, and ordered named arguments. A Term with Type
// proto.TermDatum is a leaf carrying Datum.
type Term struct {
	Type    proto.TermType
	Datum   Datum
	Args    []Term
	OptArgs []OptArg
}

// OptArg is a named argument of a Term.
type OptArg struct {
	Key   string
	Value Term
}

// OptArg returns the named argument with the given key.
func (t Term) OptArg(key string) (Term, bool) {
	for _, o := range t.OptArgs {
		if o.Key == key {
			return o.Value, true
		}
	}
	return Term{}, false
}

// MarshalJSON serializes the term to the JSON wire format:
// datum leaves as raw values, MAKE_OBJ as a JSON object, everything else as
// [type,[args...]] or [type,[args...],{optargs}] with optargs in order.
func (t Term) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t Term) writeJSON(buf *bytes.Buffer) error {
	switch t.Type {
	case proto.TermDatum:
		return t.Datum.writeJSON(buf)
	case proto.TermMakeObj:
		return writeOptArgs(buf, t.OptArgs)
	}
	buf.WriteByte('[')
	buf.WriteString(strconv.Itoa(int(t.Type)))
	buf.WriteString(",[")
	for i, a := range t.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := a.writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	if len(t.OptArgs) > 0 {
		buf.WriteByte(',')
		if err := writeOptArgs(buf, t.OptArgs); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeOptArgs(buf *bytes.Buffer, opts []OptArg) error {
	buf.WriteByte('{')
	for i, o := range opts {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeScalar(buf, o.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := o.Value.writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
