package reql

import (
	"bytes"
	"encoding/json"
	"sort"

	"reqlkit/internal/proto"
)

// Datum is an immutable leaf value: null, bool, number, string, array or
// string-keyed object. The zero Datum is null.
type Datum struct {
	kind proto.DatumType
	b    bool
	n    float64
	s    string
	arr  []Datum
	obj  map[string]Datum
}

// Null returns the null datum.
func Null() Datum { return Datum{kind: proto.DatumNull} }

// Bool returns a boolean datum.
func Bool(b bool) Datum { return Datum{kind: proto.DatumBool, b: b} }

// Number returns a numeric datum. NaN and infinities cannot be serialized;
// use ToDatum to have them rejected at build time.
func Number(n float64) Datum { return Datum{kind: proto.DatumNum, n: n} }

// String returns a string datum.
func String(s string) Datum { return Datum{kind: proto.DatumStr, s: s} }

// Array returns an array datum holding a copy of items.
func Array(items ...Datum) Datum {
	arr := make([]Datum, len(items))
	copy(arr, items)
	return Datum{kind: proto.DatumArray, arr: arr}
}

// Object returns an object datum holding a copy of fields.
func Object(fields map[string]Datum) Datum {
	obj := make(map[string]Datum, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Datum{kind: proto.DatumObject, obj: obj}
}

// Kind reports the datum type.
func (d Datum) Kind() proto.DatumType {
	if d.kind == 0 {
		return proto.DatumNull
	}
	return d.kind
}

// Value returns the datum as a plain Go value: nil, bool, float64, string,
// []interface{} or map[string]interface{}.
func (d Datum) Value() interface{} {
	switch d.Kind() {
	case proto.DatumBool:
		return d.b
	case proto.DatumNum:
		return d.n
	case proto.DatumStr:
		return d.s
	case proto.DatumArray:
		out := make([]interface{}, len(d.arr))
		for i, v := range d.arr {
			out[i] = v.Value()
		}
		return out
	case proto.DatumObject:
		out := make(map[string]interface{}, len(d.obj))
		for k, v := range d.obj {
			out[k] = v.Value()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether d and other hold the same value.
func (d Datum) Equal(other Datum) bool {
	if d.Kind() != other.Kind() {
		return false
	}
	switch d.Kind() {
	case proto.DatumBool:
		return d.b == other.b
	case proto.DatumNum:
		return d.n == other.n
	case proto.DatumStr:
		return d.s == other.s
	case proto.DatumArray:
		if len(d.arr) != len(other.arr) {
			return false
		}
		for i := range d.arr {
			if !d.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case proto.DatumObject:
		if len(d.obj) != len(other.obj) {
			return false
		}
		for k, v := range d.obj {
			ov, ok := other.obj[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MarshalJSON writes the datum in wire form: arrays as MAKE_ARRAY terms,
// objects as JSON objects with sorted keys.
func (d Datum) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d Datum) writeJSON(buf *bytes.Buffer) error {
	switch d.Kind() {
	case proto.DatumBool:
		return writeScalar(buf, d.b)
	case proto.DatumNum:
		return writeScalar(buf, d.n)
	case proto.DatumStr:
		return writeScalar(buf, d.s)
	case proto.DatumArray:
		buf.WriteString("[2,[")
		for i, v := range d.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := v.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteString("]]")
		return nil
	case proto.DatumObject:
		buf.WriteByte('{')
		for i, k := range sortedKeys(d.obj) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := d.obj[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		buf.WriteString("null")
		return nil
	}
}

func writeScalar(buf *bytes.Buffer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func sortedKeys(m map[string]Datum) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
