package reql

import "reqlkit/internal/proto"

// varToken identifies a function parameter. Identity is by pointer; the
// name is informational only.
type varToken struct {
	name string
}

// implicitName names the parameter of a function synthesized around a bare
// predicate.
const implicitName = "_"

// NewVar returns a reference to a fresh function parameter. It is bound by
// passing it to Func.
func NewVar(name string) Query {
	return Query{typ: proto.TermVar, v: &varToken{name: name}}
}

// VarName returns the name a var query was created with.
func (q Query) VarName() (string, bool) {
	if q.typ != proto.TermVar {
		return "", false
	}
	return q.v.name, true
}

// Row returns the implicit row variable (r.row). Inside a bare predicate it
// refers to the parameter of the function the predicate is wrapped in.
func Row() Query {
	return newQuery(proto.TermImplicitVar, nil, nil)
}

// Func builds a function node from its parameters and body. Every parameter
// must be a distinct var created by NewVar.
func Func(params []Query, body Query) (Query, error) {
	if len(params) == 0 {
		return Query{}, driverErrorf("function requires at least one parameter")
	}
	tokens := make([]*varToken, len(params))
	seen := make(map[*varToken]bool, len(params))
	for i, p := range params {
		if p.typ != proto.TermVar {
			return Query{}, driverErrorf("function parameter %d is not a var", i)
		}
		if seen[p.v] {
			return Query{}, driverErrorf("function parameter %q declared twice", p.v.name)
		}
		seen[p.v] = true
		tokens[i] = p.v
	}
	return Query{typ: proto.TermFunc, params: tokens, args: []Query{body}}, nil
}

// Arity returns the number of parameters of a function query.
func (q Query) Arity() int {
	if q.typ != proto.TermFunc {
		return 0
	}
	return len(q.params)
}

// wrapImplicit turns a non-function expression into a one-parameter function
// whose body is the expression itself. Functions are returned unchanged.
func wrapImplicit(q Query) Query {
	if q.typ == proto.TermFunc {
		return q
	}
	return Query{
		typ:    proto.TermFunc,
		params: []*varToken{{name: implicitName}},
		args:   []Query{q},
	}
}
