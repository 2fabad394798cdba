package parser

import (
	"fmt"

	"reqlkit/internal/reql"
)

type rBuilderFn = func(*parser, token) (reql.Query, error)

type chainFn = func(*parser, reql.Query) (reql.Query, error)

var (
	rBuilders     map[string]rBuilderFn
	chainBuilders map[string]chainFn
)

func init() {
	rBuilders = map[string]rBuilderFn{
		"db":       parseRDB,
		"table":    parseRTable,
		"row":      parseRRow,
		"expr":     parseRExprFn,
		"dbList":   noArgR(reql.DBList),
		"dbCreate": strArgR(reql.DBCreate),
		"dbDrop":   strArgR(reql.DBDrop),
		"asc":      strArgR(reql.Asc),
		"desc":     strArgR(reql.Desc),
		"minval":   constR(reql.MinVal),
		"maxval":   constR(reql.MaxVal),
	}

	chainBuilders = map[string]chainFn{
		"table":       chainTable,
		"tableList":   chainTableList,
		"tableCreate": chainTableCreate,
		"tableDrop":   chainTableDrop,

		"get":     chainGet,
		"getAll":  chainGetAll,
		"between": chainBetween,
		"filter":  chainFilter,

		"insert":  chainInsert,
		"update":  docChain(reql.Update),
		"replace": docChain(reql.Replace),
		"delete":  chainDelete,

		"getField": chainGetField,
		"pluck":    fieldsChain(reql.Query.Pluck),
		"without":  fieldsChain(reql.Query.Without),
		"orderBy":  chainOrderBy,
		"count":    noArgChain(reql.Query.Count),
		"not":      noArgChain(reql.Query.Not),
		"limit":    intArgChain(reql.Query.Limit),
		"skip":     intArgChain(reql.Query.Skip),

		"eq":  variadicChain(reql.Query.Eq),
		"ne":  variadicChain(reql.Query.Ne),
		"lt":  variadicChain(reql.Query.Lt),
		"le":  variadicChain(reql.Query.Le),
		"gt":  variadicChain(reql.Query.Gt),
		"ge":  variadicChain(reql.Query.Ge),
		"and": variadicChain(reql.Query.And),
		"or":  variadicChain(reql.Query.Or),
		"add": variadicChain(reql.Query.Add),
		"sub": variadicChain(reql.Query.Sub),
		"mul": variadicChain(reql.Query.Mul),
		"div": variadicChain(reql.Query.Div),
	}
}

// ---- r.* ----

func parseRDB(p *parser, _ token) (reql.Query, error) {
	name, err := p.stringArg()
	if err != nil {
		return reql.Query{}, err
	}
	return reql.DB(name), nil
}

// parseRTable parses r.table(name[, {useOutdated: bool}]); the table lives
// in the connection's default database.
func parseRTable(p *parser, _ token) (reql.Query, error) {
	args, err := p.parseArgs(1, 2)
	if err != nil {
		return reql.Query{}, err
	}
	return tableFromArgs(reql.Query{}, args)
}

func tableFromArgs(db reql.Query, args []argument) (reql.Query, error) {
	args, opts := splitOptions(args, 1)
	if len(args) != 1 {
		return reql.Query{}, fmt.Errorf("table options must be an object literal")
	}
	var useOutdated interface{}
	for _, o := range opts {
		switch o.Key {
		case "useOutdated", "use_outdated":
			useOutdated = argument{query: o.Value.(reql.Query)}.value()
		default:
			return reql.Query{}, fmt.Errorf("unknown table option %q", o.Key)
		}
	}
	return reql.Table(db, args[0].value(), useOutdated)
}

func parseRRow(p *parser, tok token) (reql.Query, error) {
	if len(p.scopes) > 0 {
		return reql.Query{}, fmt.Errorf("r.row inside arrow function at position %d: use the function parameter", tok.Pos)
	}
	return reql.Row(), nil
}

func parseRExprFn(p *parser, _ token) (reql.Query, error) {
	args, err := p.parseArgs(1, 1)
	if err != nil {
		return reql.Query{}, err
	}
	return args[0].query, nil
}

// noArgR accepts both r.name and r.name().
func noArgR(fn func() reql.Query) rBuilderFn {
	return func(p *parser, _ token) (reql.Query, error) {
		if p.peek().Type == tokenLParen {
			if _, err := p.parseArgs(0, 0); err != nil {
				return reql.Query{}, err
			}
		}
		return fn(), nil
	}
}

// constR is for r.minval and r.maxval, which are values, not calls.
func constR(fn func() reql.Query) rBuilderFn {
	return func(*parser, token) (reql.Query, error) { return fn(), nil }
}

func strArgR(fn func(string) reql.Query) rBuilderFn {
	return func(p *parser, _ token) (reql.Query, error) {
		s, err := p.stringArg()
		if err != nil {
			return reql.Query{}, err
		}
		return fn(s), nil
	}
}

// ---- tables ----

func chainTable(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, 2)
	if err != nil {
		return reql.Query{}, err
	}
	return tableFromArgs(q, args)
}

func chainTableList(p *parser, q reql.Query) (reql.Query, error) {
	if _, err := p.parseArgs(0, 0); err != nil {
		return reql.Query{}, err
	}
	return q.TableList()
}

// chainTableCreate parses tableCreate(name[, {option: value, ...}]); options
// are sent in the order written.
func chainTableCreate(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, 2)
	if err != nil {
		return reql.Query{}, err
	}
	args, opts := splitOptions(args, 1)
	if len(args) != 1 {
		return reql.Query{}, fmt.Errorf("tableCreate options must be an object literal")
	}
	if opts == nil {
		return q.TableCreate(args[0].value())
	}
	return q.TableCreate(args[0].value(), opts)
}

func chainTableDrop(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, 1)
	if err != nil {
		return reql.Query{}, err
	}
	return q.TableDrop(args[0].value())
}

// ---- selection ----

// chainGet parses get(key[, index]); a null index is the same as none.
func chainGet(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, 2)
	if err != nil {
		return reql.Query{}, err
	}
	if len(args) == 2 {
		return q.Get(args[0].value(), args[1].value())
	}
	return q.Get(args[0].value())
}

// chainGetAll parses getAll(key, ...[, {index: name}]).
func chainGetAll(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, -1)
	if err != nil {
		return reql.Query{}, err
	}
	args, opts := splitOptions(args, 1)
	keys := make([]interface{}, len(args))
	for i, a := range args {
		keys[i] = a.query
	}
	var index interface{}
	for _, o := range opts {
		if o.Key != "index" {
			return reql.Query{}, fmt.Errorf("unknown getAll option %q", o.Key)
		}
		index = argument{query: o.Value.(reql.Query)}.value()
	}
	return reql.GetAll(q, keys, index)
}

// chainBetween parses between(left, right); a null bound is left open.
func chainBetween(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(2, 2)
	if err != nil {
		return reql.Query{}, err
	}
	return q.Between(boundValue(args[0]), boundValue(args[1]))
}

func chainFilter(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, 1)
	if err != nil {
		return reql.Query{}, err
	}
	return q.Filter(args[0].query)
}

// ---- writes ----

func chainInsert(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, 2)
	if err != nil {
		return reql.Query{}, err
	}
	args, opts := splitOptions(args, 1)
	if len(args) != 1 {
		return reql.Query{}, fmt.Errorf("insert options must be an object literal")
	}
	return reql.Insert(q, args[0].query, optionsArg(opts))
}

func docChain(fn func(reql.Query, interface{}, interface{}) (reql.Query, error)) chainFn {
	return func(p *parser, q reql.Query) (reql.Query, error) {
		args, err := p.parseArgs(1, 2)
		if err != nil {
			return reql.Query{}, err
		}
		args, opts := splitOptions(args, 1)
		if len(args) != 1 {
			return reql.Query{}, fmt.Errorf("options must be an object literal")
		}
		return fn(q, args[0].query, optionsArg(opts))
	}
}

func chainDelete(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(0, 1)
	if err != nil {
		return reql.Query{}, err
	}
	args, opts := splitOptions(args, 0)
	if len(args) != 0 {
		return reql.Query{}, fmt.Errorf("delete options must be an object literal")
	}
	return reql.Delete(q, optionsArg(opts))
}

// optionsArg keeps "no options" as an untyped nil.
func optionsArg(opts reql.Options) interface{} {
	if opts == nil {
		return nil
	}
	return opts
}

// ---- documents and sequences ----

func chainGetField(p *parser, q reql.Query) (reql.Query, error) {
	name, err := p.stringArg()
	if err != nil {
		return reql.Query{}, err
	}
	return q.Field(name), nil
}

func chainOrderBy(p *parser, q reql.Query) (reql.Query, error) {
	args, err := p.parseArgs(1, -1)
	if err != nil {
		return reql.Query{}, err
	}
	keys := make([]interface{}, len(args))
	for i, a := range args {
		keys[i] = a.query
	}
	return q.OrderBy(keys...)
}

func noArgChain(fn func(reql.Query) reql.Query) chainFn {
	return func(p *parser, q reql.Query) (reql.Query, error) {
		if _, err := p.parseArgs(0, 0); err != nil {
			return reql.Query{}, err
		}
		return fn(q), nil
	}
}

func intArgChain(fn func(reql.Query, int) reql.Query) chainFn {
	return func(p *parser, q reql.Query) (reql.Query, error) {
		n, err := p.intArg()
		if err != nil {
			return reql.Query{}, err
		}
		return fn(q, n), nil
	}
}

func fieldsChain(fn func(reql.Query, ...string) reql.Query) chainFn {
	return func(p *parser, q reql.Query) (reql.Query, error) {
		args, err := p.parseArgs(1, -1)
		if err != nil {
			return reql.Query{}, err
		}
		fields := make([]string, len(args))
		for i, a := range args {
			s, ok := a.value().(string)
			if !ok {
				return reql.Query{}, fmt.Errorf("expected field name at position %d", a.pos)
			}
			fields[i] = s
		}
		return fn(q, fields...), nil
	}
}

func variadicChain(fn func(reql.Query, ...interface{}) (reql.Query, error)) chainFn {
	return func(p *parser, q reql.Query) (reql.Query, error) {
		args, err := p.parseArgs(1, -1)
		if err != nil {
			return reql.Query{}, err
		}
		values := make([]interface{}, len(args))
		for i, a := range args {
			values[i] = a.query
		}
		return fn(q, values...)
	}
}
