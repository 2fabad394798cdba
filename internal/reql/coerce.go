package reql

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"reqlkit/internal/proto"
)

var (
	queryType = reflect.TypeOf(Query{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// ToDatum converts a plain Go value into a Datum. Accepted: nil, bool,
// numbers, strings, json.Number, json.RawMessage, Datum, slices and arrays,
// maps with string keys, and pointers to any of these. Anything else, or a
// structure that holds a Query, yields a *TypeError.
func ToDatum(v interface{}) (Datum, error) {
	q, err := Expr(v)
	if err != nil {
		return Datum{}, err
	}
	d, ok := q.Datum()
	if !ok {
		return Datum{}, &TypeError{Value: v, Msg: "value contains query expressions"}
	}
	return d, nil
}

// Expr converts v into a query. A Query is returned unchanged; plain data
// becomes a datum leaf; slices and maps holding queries become MAKE_ARRAY
// and MAKE_OBJ nodes. Values with no data representation, such as
// functions, channels and structs, yield a *TypeError, as does a map, slice
// or pointer that contains itself.
func Expr(v interface{}) (Query, error) {
	return (&converter{}).expr(v)
}

// converter tracks the maps, slices and pointers on the current path so a
// self-referencing value fails instead of recursing forever.
type converter struct {
	path map[refKey]struct{}
}

type refKey struct {
	ptr uintptr
	len int
	typ reflect.Type
}

func (c *converter) expr(v interface{}) (Query, error) {
	switch x := v.(type) {
	case nil:
		return datumQuery(Null()), nil
	case Query:
		return x, nil
	case Datum:
		return datumQuery(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Query{}, &TypeError{Value: v, Msg: "invalid json number " + strconv.Quote(string(x))}
		}
		return numberQuery(v, f)
	case json.RawMessage:
		return c.raw(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return datumQuery(Bool(rv.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return datumQuery(Number(float64(rv.Int()))), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return datumQuery(Number(float64(rv.Uint()))), nil
	case reflect.Float32, reflect.Float64:
		return numberQuery(v, rv.Float())
	case reflect.String:
		return datumQuery(String(rv.String())), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Query{}, &TypeError{Value: v, Msg: "binary data is not representable as data"}
		}
		if rv.IsNil() {
			return datumQuery(Null()), nil
		}
		return c.enter(rv, c.array)
	case reflect.Array:
		return c.array(rv)
	case reflect.Map:
		if rv.IsNil() {
			return datumQuery(Null()), nil
		}
		return c.enter(rv, c.object)
	case reflect.Ptr:
		if rv.IsNil() {
			return datumQuery(Null()), nil
		}
		return c.enter(rv, func(rv reflect.Value) (Query, error) {
			return c.expr(rv.Elem().Interface())
		})
	}
	return Query{}, &TypeError{Value: v, Msg: "value not representable as data"}
}

// enter runs fn with rv on the path, failing if rv is already on it.
func (c *converter) enter(rv reflect.Value, fn func(reflect.Value) (Query, error)) (Query, error) {
	key := refKey{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if _, ok := c.path[key]; ok {
		return Query{}, &TypeError{Value: rv.Interface(), Msg: "value refers to itself"}
	}
	if c.path == nil {
		c.path = make(map[refKey]struct{})
	}
	c.path[key] = struct{}{}
	defer delete(c.path, key)
	return fn(rv)
}

func numberQuery(v interface{}, f float64) (Query, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Query{}, &TypeError{Value: v, Msg: "NaN and infinite numbers are not representable as data"}
	}
	return datumQuery(Number(f)), nil
}

func (c *converter) raw(raw json.RawMessage) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Query{}, &TypeError{Value: raw, Msg: "invalid raw json: " + err.Error()}
	}
	return c.expr(v)
}

func (c *converter) array(rv reflect.Value) (Query, error) {
	items := make([]Query, rv.Len())
	pure := true
	for i := range items {
		q, err := c.expr(rv.Index(i).Interface())
		if err != nil {
			return Query{}, err
		}
		items[i] = q
		pure = pure && q.typ == proto.TermDatum
	}
	if !pure {
		return newQuery(proto.TermMakeArray, items, nil), nil
	}
	ds := make([]Datum, len(items))
	for i, q := range items {
		ds[i] = q.datum
	}
	return datumQuery(Datum{kind: proto.DatumArray, arr: ds}), nil
}

func (c *converter) object(rv reflect.Value) (Query, error) {
	keys, err := stringKeys(rv)
	if err != nil {
		return Query{}, &TypeError{Value: rv.Interface(), Msg: "object keys must be strings"}
	}
	opts := make([]queryOpt, len(keys))
	pure := true
	for i, k := range keys {
		q, err := c.expr(rv.MapIndex(k.val).Interface())
		if err != nil {
			return Query{}, err
		}
		opts[i] = queryOpt{key: k.name, val: q}
		pure = pure && q.typ == proto.TermDatum
	}
	if !pure {
		return newQuery(proto.TermMakeObj, nil, opts), nil
	}
	obj := make(map[string]Datum, len(opts))
	for _, o := range opts {
		obj[o.key] = o.val.datum
	}
	return datumQuery(Datum{kind: proto.DatumObject, obj: obj}), nil
}

type mapKey struct {
	name string
	val  reflect.Value
}

// stringKeys returns the keys of a map in sorted order. Key types of string
// kind are accepted, as are interface keys whose dynamic values are strings.
func stringKeys(rv reflect.Value) ([]mapKey, error) {
	keyKind := rv.Type().Key().Kind()
	if keyKind != reflect.String && keyKind != reflect.Interface {
		return nil, driverErrorf("keys of type %s are not strings", rv.Type().Key())
	}
	keys := make([]mapKey, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		if k.Kind() == reflect.Interface {
			k = k.Elem()
		}
		if !k.IsValid() || k.Kind() != reflect.String {
			return nil, driverErrorf("key %v is not a string", iter.Key().Interface())
		}
		keys = append(keys, mapKey{name: k.String(), val: iter.Key()})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].name < keys[j].name })
	return keys, nil
}

// ToFunc converts a Go function into a function query. fn must take one or
// more parameters, each able to hold a Query, and return a query, either
// alone or with an error. fn is called exactly once with a fresh var per
// parameter; it must only build queries from them, since whatever it returns
// becomes the function body.
func ToFunc(fn interface{}) (Query, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return Query{}, &TypeError{Value: fn, Msg: "value is neither data nor a function"}
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return Query{}, &TypeError{Value: fn, Msg: "variadic functions are not supported"}
	}
	if ft.NumIn() == 0 {
		return Query{}, &TypeError{Value: fn, Msg: "function must take at least one parameter"}
	}
	for i := 0; i < ft.NumIn(); i++ {
		if !queryType.AssignableTo(ft.In(i)) {
			return Query{}, &TypeError{Value: fn, Msg: "function parameter " + strconv.Itoa(i) + " cannot hold a query"}
		}
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return Query{}, &TypeError{Value: fn, Msg: "function must return a query, optionally with an error"}
	}

	params := make([]Query, ft.NumIn())
	in := make([]reflect.Value, ft.NumIn())
	for i := range params {
		params[i] = NewVar("arg" + strconv.Itoa(i))
		in[i] = reflect.ValueOf(params[i])
	}
	out := rv.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return Query{}, out[1].Interface().(error)
	}
	res := out[0].Interface()
	body, ok := res.(Query)
	if !ok {
		return Query{}, &TypeError{Value: res, Msg: "function did not return a query"}
	}
	return Func(params, body)
}

// Predicate resolves a predicate-like argument into a function query:
//  1. a Query is kept if it is already a function, otherwise wrapped in a
//     one-parameter function;
//  2. failing that, a value Expr accepts is wrapped the same way;
//  3. failing that, v is converted with ToFunc and its error returned.
func Predicate(v interface{}) (Query, error) {
	if q, ok := v.(Query); ok {
		return wrapImplicit(q), nil
	}
	if q, err := Expr(v); err == nil {
		return wrapImplicit(q), nil
	}
	return ToFunc(v)
}

// exprOrFunc converts a write argument: data or queries via Expr, Go
// functions via ToFunc.
func exprOrFunc(v interface{}) (Query, error) {
	q, err := Expr(v)
	if err == nil {
		return q, nil
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return ToFunc(v)
	}
	return Query{}, err
}

// keyDatum coerces a primary key: numbers, and strings that read as numbers,
// become numeric datums; anything else is converted to its string form.
func keyDatum(v interface{}) (Query, error) {
	if q, ok := v.(Query); ok {
		return q, nil
	}
	if isNumeric(v) {
		return Expr(v)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		if f, ok := numericString(rv.String()); ok {
			return datumQuery(Number(f)), nil
		}
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return Query{}, &TypeError{Value: v, Msg: "key is neither a number nor convertible to a string"}
	}
	return datumQuery(String(s)), nil
}

func isNumeric(v interface{}) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// numericString parses s as a finite decimal number. Leading and trailing
// whitespace is ignored; hex, underscores, NaN and infinities are not numbers.
func numericString(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsAny(t, "xX_pP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
