package reql

import (
	"reqlkit/internal/proto"
)

// Query is a node of a query tree. Its kind is fixed when it is built and
// it is never modified afterwards, so a finished tree can be encoded from
// several goroutines at once. The zero Query encodes as null.
type Query struct {
	typ    proto.TermType
	datum  Datum
	v      *varToken
	params []*varToken
	args   []Query
	opts   []queryOpt
}

type queryOpt struct {
	key string
	val Query
}

func newQuery(typ proto.TermType, args []Query, opts []queryOpt) Query {
	return Query{typ: typ, args: args, opts: opts}
}

func datumQuery(d Datum) Query {
	return Query{typ: proto.TermDatum, datum: d}
}

// Type returns the opcode the query encodes to.
func (q Query) Type() proto.TermType {
	if q.typ == 0 {
		return proto.TermDatum
	}
	return q.typ
}

// IsZero reports whether q was never built.
func (q Query) IsZero() bool { return q.typ == 0 }

// Datum returns the leaf value of a datum query.
func (q Query) Datum() (Datum, bool) {
	if q.typ == 0 {
		return Null(), true
	}
	if q.typ != proto.TermDatum {
		return Datum{}, false
	}
	return q.datum, true
}

// Encode converts the tree rooted at q into its Term record. It never fails
// for a tree produced by this package. Function parameters are numbered in
// the order they are met, starting at 1 for each call.
func (q Query) Encode() Term {
	e := &encoder{ids: make(map[*varToken]int)}
	return e.encode(q)
}

type encoder struct {
	ids  map[*varToken]int
	next int
}

func (e *encoder) encode(q Query) Term {
	switch q.typ {
	case 0:
		return Term{Type: proto.TermDatum, Datum: Null()}
	case proto.TermDatum:
		return Term{Type: proto.TermDatum, Datum: q.datum}
	case proto.TermVar:
		return Term{Type: proto.TermVar, Args: []Term{e.varID(q.v)}}
	case proto.TermFunc:
		ids := make([]Term, len(q.params))
		for i, p := range q.params {
			e.next++
			e.ids[p] = e.next
			ids[i] = Term{Type: proto.TermDatum, Datum: Number(float64(e.next))}
		}
		return Term{
			Type: proto.TermFunc,
			Args: []Term{{Type: proto.TermMakeArray, Args: ids}, e.encode(q.args[0])},
		}
	}
	t := Term{Type: q.typ}
	if len(q.args) > 0 {
		t.Args = make([]Term, len(q.args))
		for i, a := range q.args {
			t.Args[i] = e.encode(a)
		}
	}
	if len(q.opts) > 0 {
		t.OptArgs = make([]OptArg, len(q.opts))
		for i, o := range q.opts {
			t.OptArgs[i] = OptArg{Key: o.key, Value: e.encode(o.val)}
		}
	}
	return t
}

// varID returns the wire id bound to v. A var used outside the function that
// declares it still gets a fresh id so encoding stays total; the server
// rejects it.
func (e *encoder) varID(v *varToken) Term {
	id, ok := e.ids[v]
	if !ok {
		e.next++
		id = e.next
		e.ids[v] = id
	}
	return Term{Type: proto.TermDatum, Datum: Number(float64(id))}
}

// MarshalJSON serializes the encoded query in wire form.
func (q Query) MarshalJSON() ([]byte, error) {
	return q.Encode().MarshalJSON()
}
