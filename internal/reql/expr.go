package reql

import "reqlkit/internal/proto"

// Field returns the named field of the object q.
func (q Query) Field(name string) Query {
	return newQuery(proto.TermGetField, []Query{q, datumQuery(String(name))}, nil)
}

// Bracket indexes q by a field name or array offset, as row("name") does.
func (q Query) Bracket(key interface{}) (Query, error) {
	k, err := Expr(key)
	if err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermBracket, []Query{q, k}, nil), nil
}

// Eq is true when q equals every value.
func (q Query) Eq(values ...interface{}) (Query, error) { return variadic(proto.TermEq, q, values) }

// Ne is true when q differs from the values.
func (q Query) Ne(values ...interface{}) (Query, error) { return variadic(proto.TermNe, q, values) }

// Lt is true when q and the values are strictly increasing.
func (q Query) Lt(values ...interface{}) (Query, error) { return variadic(proto.TermLt, q, values) }

// Le is true when q and the values are non-decreasing.
func (q Query) Le(values ...interface{}) (Query, error) { return variadic(proto.TermLe, q, values) }

// Gt is true when q and the values are strictly decreasing.
func (q Query) Gt(values ...interface{}) (Query, error) { return variadic(proto.TermGt, q, values) }

// Ge is true when q and the values are non-increasing.
func (q Query) Ge(values ...interface{}) (Query, error) { return variadic(proto.TermGe, q, values) }

// And is the logical conjunction of q and the values.
func (q Query) And(values ...interface{}) (Query, error) { return variadic(proto.TermAnd, q, values) }

// Or is the logical disjunction of q and the values.
func (q Query) Or(values ...interface{}) (Query, error) { return variadic(proto.TermOr, q, values) }

// Add sums numbers or concatenates strings and arrays.
func (q Query) Add(values ...interface{}) (Query, error) { return variadic(proto.TermAdd, q, values) }

// Sub subtracts each value from q in turn.
func (q Query) Sub(values ...interface{}) (Query, error) { return variadic(proto.TermSub, q, values) }

// Mul multiplies q by each value.
func (q Query) Mul(values ...interface{}) (Query, error) { return variadic(proto.TermMul, q, values) }

// Div divides q by each value in turn.
func (q Query) Div(values ...interface{}) (Query, error) { return variadic(proto.TermDiv, q, values) }

// Not negates a boolean.
func (q Query) Not() Query {
	return newQuery(proto.TermNot, []Query{q}, nil)
}

// Count returns the number of elements of a sequence.
func (q Query) Count() Query {
	return newQuery(proto.TermCount, []Query{q}, nil)
}

// Limit keeps the first n elements of a sequence.
func (q Query) Limit(n int) Query {
	return newQuery(proto.TermLimit, []Query{q, datumQuery(Number(float64(n)))}, nil)
}

// Skip drops the first n elements of a sequence.
func (q Query) Skip(n int) Query {
	return newQuery(proto.TermSkip, []Query{q, datumQuery(Number(float64(n)))}, nil)
}

// Pluck keeps only the named fields.
func (q Query) Pluck(fields ...string) Query {
	return newQuery(proto.TermPluck, fieldArgs(q, fields), nil)
}

// Without drops the named fields.
func (q Query) Without(fields ...string) Query {
	return newQuery(proto.TermWithout, fieldArgs(q, fields), nil)
}

// OrderBy sorts a sequence. Each key is a field name, Asc/Desc of one, or a
// function of the element.
func (q Query) OrderBy(keys ...interface{}) (Query, error) {
	if len(keys) == 0 {
		return Query{}, driverErrorf("orderBy requires at least one key")
	}
	args := make([]Query, 0, len(keys)+1)
	args = append(args, q)
	for _, key := range keys {
		k, err := exprOrFunc(key)
		if err != nil {
			return Query{}, err
		}
		if usesRow(k) {
			k = wrapImplicit(k)
		}
		args = append(args, k)
	}
	return newQuery(proto.TermOrderBy, args, nil), nil
}

// Asc orders by key ascending.
func Asc(key string) Query {
	return newQuery(proto.TermAsc, []Query{datumQuery(String(key))}, nil)
}

// Desc orders by key descending.
func Desc(key string) Query {
	return newQuery(proto.TermDesc, []Query{datumQuery(String(key))}, nil)
}

// MinVal is the bound below every value, for open-ended ranges.
func MinVal() Query { return newQuery(proto.TermMinVal, nil, nil) }

// MaxVal is the bound above every value.
func MaxVal() Query { return newQuery(proto.TermMaxVal, nil, nil) }

func variadic(typ proto.TermType, q Query, values []interface{}) (Query, error) {
	if len(values) == 0 {
		return Query{}, driverErrorf("%s requires at least one argument", typ)
	}
	args := make([]Query, 0, len(values)+1)
	args = append(args, q)
	for _, v := range values {
		a, err := Expr(v)
		if err != nil {
			return Query{}, err
		}
		args = append(args, a)
	}
	return newQuery(typ, args, nil), nil
}

func fieldArgs(q Query, fields []string) []Query {
	args := make([]Query, 0, len(fields)+1)
	args = append(args, q)
	for _, f := range fields {
		args = append(args, datumQuery(String(f)))
	}
	return args
}
