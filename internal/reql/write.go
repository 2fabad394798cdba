package reql

import "reqlkit/internal/proto"

// Insert inserts doc, a single document or an array of them, into table.
// options (nil, Options or a string-keyed map) carries settings such as
// conflict, durability and return_changes.
func Insert(table Query, doc interface{}, options interface{}) (Query, error) {
	if table.typ != proto.TermTable {
		return Query{}, driverErrorf("insert requires a table, got %s", table.Type())
	}
	d, err := Expr(doc)
	if err != nil {
		return Query{}, err
	}
	opts, err := optionList(options)
	if err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermInsert, []Query{table, d}, opts), nil
}

// Update merges doc into every document of sel. doc may be data, a query
// (r.row is allowed) or a Go function of the old document.
func Update(sel Query, doc interface{}, options interface{}) (Query, error) {
	return rewrite(proto.TermUpdate, sel, doc, options)
}

// Replace replaces every document of sel with doc.
func Replace(sel Query, doc interface{}, options interface{}) (Query, error) {
	return rewrite(proto.TermReplace, sel, doc, options)
}

// Delete deletes every document of sel.
func Delete(sel Query, options interface{}) (Query, error) {
	if sel.IsZero() {
		return Query{}, driverErrorf("delete requires a selection")
	}
	opts, err := optionList(options)
	if err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermDelete, []Query{sel}, opts), nil
}

func rewrite(typ proto.TermType, sel Query, doc interface{}, options interface{}) (Query, error) {
	if sel.IsZero() {
		return Query{}, driverErrorf("%s requires a selection", typ)
	}
	d, err := exprOrFunc(doc)
	if err != nil {
		return Query{}, err
	}
	if usesRow(d) {
		d = wrapImplicit(d)
	}
	opts, err := optionList(options)
	if err != nil {
		return Query{}, err
	}
	return newQuery(typ, []Query{sel, d}, opts), nil
}

// usesRow reports whether q refers to r.row outside any nested function.
func usesRow(q Query) bool {
	switch q.typ {
	case proto.TermImplicitVar:
		return true
	case proto.TermFunc:
		return false
	}
	for _, a := range q.args {
		if usesRow(a) {
			return true
		}
	}
	for _, o := range q.opts {
		if usesRow(o.val) {
			return true
		}
	}
	return false
}

// Insert inserts doc into the table q.
func (q Query) Insert(doc interface{}, options ...interface{}) (Query, error) {
	return Insert(q, doc, firstOption(options))
}

// Update updates the documents of q.
func (q Query) Update(doc interface{}, options ...interface{}) (Query, error) {
	return Update(q, doc, firstOption(options))
}

// Replace replaces the documents of q.
func (q Query) Replace(doc interface{}, options ...interface{}) (Query, error) {
	return Replace(q, doc, firstOption(options))
}

// Delete deletes the documents of q.
func (q Query) Delete(options ...interface{}) (Query, error) {
	return Delete(q, firstOption(options))
}

func firstOption(options []interface{}) interface{} {
	if len(options) == 0 {
		return nil
	}
	return options[0]
}
