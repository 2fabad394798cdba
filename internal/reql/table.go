package reql

import "reqlkit/internal/proto"

// Table returns a table reference. db is nil, the zero Query, or a DB
// reference; when absent it is left out of the arguments altogether and the
// server falls back to the connection's default database. useOutdated is nil
// or a bool and, when set, is sent as the use_outdated optarg.
func Table(db interface{}, name interface{}, useOutdated interface{}) (Query, error) {
	var args []Query
	switch d := db.(type) {
	case nil:
	case Query:
		if !d.IsZero() {
			if err := checkDB(d); err != nil {
				return Query{}, err
			}
			args = append(args, d)
		}
	default:
		return Query{}, driverErrorf("expected a database reference, got %T", db)
	}
	n, err := tableName(name)
	if err != nil {
		return Query{}, err
	}
	args = append(args, n)

	var opts []queryOpt
	if useOutdated != nil {
		b, ok := useOutdated.(bool)
		if !ok {
			return Query{}, driverErrorf("use_outdated must be a bool, got %T", useOutdated)
		}
		opts = append(opts, queryOpt{key: "use_outdated", val: datumQuery(Bool(b))})
	}
	return newQuery(proto.TermTable, args, opts), nil
}

// TableList lists the tables of db.
func TableList(db Query) (Query, error) {
	if err := checkDB(db); err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermTableList, []Query{db}, nil), nil
}

// TableCreate creates a table in db. options is nil, Options, or a map with
// string keys; each option becomes one optarg, such as primary_key, shards,
// replicas or durability.
func TableCreate(db Query, name interface{}, options interface{}) (Query, error) {
	if err := checkDB(db); err != nil {
		return Query{}, err
	}
	n, err := tableName(name)
	if err != nil {
		return Query{}, err
	}
	opts, err := optionList(options)
	if err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermTableCreate, []Query{db, n}, opts), nil
}

// TableDrop drops a table from db.
func TableDrop(db Query, name interface{}) (Query, error) {
	if err := checkDB(db); err != nil {
		return Query{}, err
	}
	n, err := tableName(name)
	if err != nil {
		return Query{}, err
	}
	return newQuery(proto.TermTableDrop, []Query{db, n}, nil), nil
}

func tableName(name interface{}) (Query, error) {
	s, ok := name.(string)
	if !ok {
		return Query{}, driverErrorf("table name must be a string, got %T", name)
	}
	return datumQuery(String(s)), nil
}

// Table returns a reference to a table of the database q. An optional bool
// sets use_outdated.
func (q Query) Table(name interface{}, useOutdated ...interface{}) (Query, error) {
	return Table(q, name, firstOption(useOutdated))
}

// TableList lists the tables of the database q.
func (q Query) TableList() (Query, error) { return TableList(q) }

// TableCreate creates a table in the database q.
func (q Query) TableCreate(name interface{}, options ...interface{}) (Query, error) {
	return TableCreate(q, name, firstOption(options))
}

// TableDrop drops a table from the database q.
func (q Query) TableDrop(name interface{}) (Query, error) { return TableDrop(q, name) }
