package reql

import (
	"reflect"
)

// Option is a single named argument.
type Option struct {
	Key   string
	Value interface{}
}

// Options is an ordered list of named arguments. Unlike a Go map it keeps
// the order the caller wrote, which is the order the optargs are sent in.
type Options []Option

// Opt is shorthand for an Option literal.
func Opt(key string, value interface{}) Option {
	return Option{Key: key, Value: value}
}

// OptArgs holds global query options such as db, durability or profile.
type OptArgs map[string]interface{}

// optionList validates an options argument and coerces its values. nil means
// no options. Options keep their order; maps are walked in sorted key order.
func optionList(options interface{}) ([]queryOpt, error) {
	switch o := options.(type) {
	case nil:
		return nil, nil
	case Options:
		return coerceOptions(o)
	case []Option:
		return coerceOptions(o)
	case Option:
		return coerceOptions(Options{o})
	}
	rv := reflect.ValueOf(options)
	if rv.Kind() != reflect.Map {
		return nil, driverErrorf("options must be a string-keyed map, got %T", options)
	}
	keys, err := stringKeys(rv)
	if err != nil {
		return nil, driverErrorf("option keys must be strings")
	}
	list := make(Options, len(keys))
	for i, k := range keys {
		list[i] = Option{Key: k.name, Value: rv.MapIndex(k.val).Interface()}
	}
	return coerceOptions(list)
}

func coerceOptions(list Options) ([]queryOpt, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]queryOpt, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, o := range list {
		if seen[o.Key] {
			return nil, driverErrorf("option %q given twice", o.Key)
		}
		seen[o.Key] = true
		q, err := Expr(o.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, queryOpt{key: o.Key, val: q})
	}
	return out, nil
}
