package reql

import "fmt"

// DriverError reports an argument of the wrong shape passed to a builder,
// such as a non-string table name or an options value that is not a map.
type DriverError struct {
	Msg string
}

func (e *DriverError) Error() string { return "reql: " + e.Msg }

func driverErrorf(format string, args ...interface{}) error {
	return &DriverError{Msg: fmt.Sprintf(format, args...)}
}

// TypeError reports a value that could not be coerced into a term: it has no
// datum representation and is not a usable function, or a function did not
// return a query.
type TypeError struct {
	Value interface{}
	Msg   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("reql: %s (got %T)", e.Msg, e.Value)
}
