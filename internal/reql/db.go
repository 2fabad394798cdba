package reql

import "reqlkit/internal/proto"

// DB returns a database reference.
func DB(name string) Query {
	return newQuery(proto.TermDB, []Query{datumQuery(String(name))}, nil)
}

// DBList lists all databases.
func DBList() Query {
	return newQuery(proto.TermDBList, nil, nil)
}

// DBCreate creates a database.
func DBCreate(name string) Query {
	return newQuery(proto.TermDBCreate, []Query{datumQuery(String(name))}, nil)
}

// DBDrop drops a database.
func DBDrop(name string) Query {
	return newQuery(proto.TermDBDrop, []Query{datumQuery(String(name))}, nil)
}

func checkDB(db Query) error {
	if db.typ != proto.TermDB {
		return driverErrorf("expected a database reference, got %s", db.Type())
	}
	return nil
}
