package reql

import "reqlkit/internal/proto"

// Get looks up a single document by key. Numeric keys are sent as numbers and
// anything else as its string form. When index is given (a string or a
// query) it is sent as the third positional argument.
func Get(table Query, key interface{}, index interface{}) (Query, error) {
	if table.typ != proto.TermTable {
		return Query{}, driverErrorf("get requires a table, got %s", table.Type())
	}
	k, err := keyDatum(key)
	if err != nil {
		return Query{}, err
	}
	args := []Query{table, k}
	if index != nil {
		idx, err := indexArg(index)
		if err != nil {
			return Query{}, err
		}
		args = append(args, idx)
	}
	return newQuery(proto.TermGet, args, nil), nil
}

// GetAll looks up every document matching one of keys, optionally through a
// secondary index.
func GetAll(table Query, keys []interface{}, index interface{}) (Query, error) {
	if table.typ != proto.TermTable {
		return Query{}, driverErrorf("getAll requires a table, got %s", table.Type())
	}
	args := make([]Query, 0, len(keys)+1)
	args = append(args, table)
	for _, key := range keys {
		k, err := Expr(key)
		if err != nil {
			return Query{}, err
		}
		args = append(args, k)
	}
	var opts []queryOpt
	if index != nil {
		idx, err := indexArg(index)
		if err != nil {
			return Query{}, err
		}
		opts = append(opts, queryOpt{key: "index", val: idx})
	}
	return newQuery(proto.TermGetAll, args, opts), nil
}

// Between selects the documents of sel whose key lies in a range. Either
// bound may be nil, in which case it is not sent at all; the optargs present
// are appended in order, left before right.
func Between(sel Query, left, right interface{}) (Query, error) {
	if sel.IsZero() {
		return Query{}, driverErrorf("between requires a selection")
	}
	var opts []queryOpt
	for _, b := range []struct {
		key string
		val interface{}
	}{{"left_bound", left}, {"right_bound", right}} {
		if b.val == nil {
			continue
		}
		q, err := Expr(b.val)
		if err != nil {
			return Query{}, err
		}
		opts = append(opts, queryOpt{key: b.key, val: q})
	}
	return newQuery(proto.TermBetween, []Query{sel}, opts), nil
}

// Filter keeps the elements of seq matching pred. pred is a query, a datum
// (matched against each element) or a Go function building a query from its
// argument; all three end up as a one-parameter function.
func Filter(seq Query, pred interface{}) (Query, error) {
	if seq.IsZero() {
		return Query{}, driverErrorf("filter requires a sequence")
	}
	fn, err := Predicate(pred)
	if err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermFilter, []Query{seq, fn}, nil), nil
}

func indexArg(index interface{}) (Query, error) {
	switch i := index.(type) {
	case string:
		return datumQuery(String(i)), nil
	case Query:
		return i, nil
	}
	return Query{}, driverErrorf("index must be a string, got %T", index)
}

// Get looks up a document of the table q by key, optionally through index.
func (q Query) Get(key interface{}, index ...interface{}) (Query, error) {
	return Get(q, key, firstOption(index))
}

// GetAll looks up the documents of the table q with any of keys.
func (q Query) GetAll(keys ...interface{}) (Query, error) {
	return GetAll(q, keys, nil)
}

// GetAllByIndex looks up the documents of the table q whose index value is
// one of keys.
func (q Query) GetAllByIndex(index string, keys ...interface{}) (Query, error) {
	return GetAll(q, keys, index)
}

// Between selects a key range of q. A nil bound is left open.
func (q Query) Between(left, right interface{}) (Query, error) {
	return Between(q, left, right)
}

// Filter keeps the elements of q matching pred.
func (q Query) Filter(pred interface{}) (Query, error) {
	return Filter(q, pred)
}
