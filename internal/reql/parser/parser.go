// Package parser turns JavaScript-style ReQL text such as
//
//	r.db("app").table("users").filter((u) => u("age").gt(21))
//
// into a reql.Query. Every node is built through the reql builders, so a
// builder's validation error is reported as a parse error.
package parser

import (
	"encoding/json"
	"fmt"
	"strconv"

	"reqlkit/internal/proto"
	"reqlkit/internal/reql"
)

// Parse tokenizes and parses input into a query.
func Parse(input string) (reql.Query, error) {
	toks, err := newLexer(input).tokenize()
	if err != nil {
		return reql.Query{}, fmt.Errorf("parse: %w", err)
	}
	p := &parser{tokens: toks}
	q, err := p.parseExpr()
	if err != nil {
		return reql.Query{}, err
	}
	if tok := p.peek(); tok.Type != tokenEOF {
		return reql.Query{}, fmt.Errorf("unexpected token %q at position %d", tok.Value, tok.Pos)
	}
	return q, nil
}

type parser struct {
	tokens []token
	pos    int
	// scopes holds the parameters of the enclosing lambdas, innermost last.
	scopes []map[string]reql.Query
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(off int) token {
	if p.pos+off < len(p.tokens) {
		return p.tokens[p.pos+off]
	}
	return token{Type: tokenEOF}
}

func (p *parser) advance() token {
	tok := p.peek()
	if tok.Type != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tt tokenType) (token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return token{}, fmt.Errorf("expected %s, got %q at position %d", tt, tok.Value, tok.Pos)
	}
	return p.advance(), nil
}

func (p *parser) lookup(name string) (reql.Query, bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if v, ok := p.scopes[i][name]; ok {
			return v, true
		}
	}
	return reql.Query{}, false
}

func (p *parser) parseExpr() (reql.Query, error) {
	q, err := p.parsePrimary()
	if err != nil {
		return reql.Query{}, err
	}
	return p.parseChain(q)
}

func (p *parser) parsePrimary() (reql.Query, error) {
	tok := p.peek()
	switch tok.Type {
	case tokenLParen:
		if p.isArrowParams() {
			return p.parseArrow()
		}
		return p.parseParenExpr()
	case tokenIdent:
		if p.peekAt(1).Type == tokenArrow {
			return p.parseArrow()
		}
		if v, ok := p.lookup(tok.Value); ok {
			p.advance()
			return v, nil
		}
		switch tok.Value {
		case "r":
			p.advance()
			return p.parseRExpr()
		case "function":
			return p.parseFunction()
		}
		return reql.Query{}, fmt.Errorf("unexpected token %q at position %d", tok.Value, tok.Pos)
	case tokenLBrace:
		obj, err := p.parseObject()
		if err != nil {
			return reql.Query{}, err
		}
		return objectQuery(obj, tok.Pos)
	case tokenLBracket:
		return p.parseArray()
	}
	return p.parseDatum()
}

// isArrowParams reports whether the parenthesized group at the cursor is
// followed by "=>".
func (p *parser) isArrowParams() bool {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case tokenLParen:
			depth++
		case tokenRParen:
			depth--
			if depth == 0 {
				return i+1 < len(p.tokens) && p.tokens[i+1].Type == tokenArrow
			}
		case tokenEOF:
			return false
		}
	}
	return false
}

func (p *parser) parseParenExpr() (reql.Query, error) {
	p.advance()
	q, err := p.parseExpr()
	if err != nil {
		return reql.Query{}, err
	}
	if _, err := p.expect(tokenRParen); err != nil {
		return reql.Query{}, err
	}
	return q, nil
}

func (p *parser) parseRExpr() (reql.Query, error) {
	if _, err := p.expect(tokenDot); err != nil {
		return reql.Query{}, err
	}
	method, err := p.expect(tokenIdent)
	if err != nil {
		return reql.Query{}, err
	}
	fn, ok := rBuilders[method.Value]
	if !ok {
		return reql.Query{}, fmt.Errorf("unknown r.%s at position %d", method.Value, method.Pos)
	}
	q, err := fn(p, method)
	if err != nil {
		return reql.Query{}, wrapBuild("r."+method.Value, method.Pos, err)
	}
	return q, nil
}

func (p *parser) parseChain(q reql.Query) (reql.Query, error) {
	for {
		switch p.peek().Type {
		case tokenDot:
			p.advance()
			method, err := p.expect(tokenIdent)
			if err != nil {
				return reql.Query{}, err
			}
			fn, ok := chainBuilders[method.Value]
			if !ok {
				return reql.Query{}, fmt.Errorf("unknown method .%s at position %d", method.Value, method.Pos)
			}
			q, err = fn(p, q)
			if err != nil {
				return reql.Query{}, wrapBuild("."+method.Value, method.Pos, err)
			}
		case tokenLParen:
			// bracket notation: doc("field")
			pos := p.peek().Pos
			args, err := p.parseArgs(1, 1)
			if err != nil {
				return reql.Query{}, err
			}
			q, err = q.Bracket(args[0].query)
			if err != nil {
				return reql.Query{}, wrapBuild("()", pos, err)
			}
		default:
			return q, nil
		}
	}
}

// wrapBuild annotates a builder error with its source position. Errors
// from nested parsing already carry one and pass through.
func wrapBuild(what string, pos int, err error) error {
	switch err.(type) {
	case *reql.DriverError, *reql.TypeError:
		return fmt.Errorf("%s at position %d: %w", what, pos, err)
	}
	return err
}

// ---- lambdas ----

// parseArrow parses "(a, b) => body" or "a => body".
func (p *parser) parseArrow() (reql.Query, error) {
	start := p.peek()
	var names []token
	if start.Type == tokenLParen {
		var err error
		if names, err = p.parseParams(); err != nil {
			return reql.Query{}, err
		}
	} else {
		names = []token{p.advance()}
	}
	if _, err := p.expect(tokenArrow); err != nil {
		return reql.Query{}, err
	}
	return p.parseLambdaBody(names, start.Pos, func() (reql.Query, error) {
		return p.parseExpr()
	})
}

// parseFunction parses "function(a, b) { return body; }".
func (p *parser) parseFunction() (reql.Query, error) {
	start := p.advance()
	names, err := p.parseParams()
	if err != nil {
		return reql.Query{}, err
	}
	if _, err := p.expect(tokenLBrace); err != nil {
		return reql.Query{}, err
	}
	return p.parseLambdaBody(names, start.Pos, func() (reql.Query, error) {
		if tok := p.peek(); tok.Type == tokenIdent && tok.Value == "return" {
			p.advance()
		}
		body, err := p.parseExpr()
		if err != nil {
			return reql.Query{}, err
		}
		if p.peek().Type == tokenSemicolon {
			p.advance()
		}
		if _, err := p.expect(tokenRBrace); err != nil {
			return reql.Query{}, err
		}
		return body, nil
	})
}

func (p *parser) parseParams() ([]token, error) {
	open, err := p.expect(tokenLParen)
	if err != nil {
		return nil, err
	}
	var names []token
	seen := make(map[string]bool)
	for {
		tok := p.peek()
		if tok.Type == tokenRParen {
			if len(names) == 0 {
				return nil, fmt.Errorf("function at position %d needs at least one parameter", open.Pos)
			}
			p.advance()
			return names, nil
		}
		if len(names) > 0 {
			if _, err := p.expect(tokenComma); err != nil {
				return nil, err
			}
			if p.peek().Type == tokenRParen {
				return nil, fmt.Errorf("trailing comma in parameter list at position %d", p.peek().Pos)
			}
			tok = p.peek()
		}
		if tok.Type != tokenIdent {
			return nil, fmt.Errorf("expected identifier as parameter, got %q at position %d", tok.Value, tok.Pos)
		}
		if seen[tok.Value] {
			return nil, fmt.Errorf("duplicate parameter name %q at position %d", tok.Value, tok.Pos)
		}
		seen[tok.Value] = true
		names = append(names, p.advance())
	}
}

func (p *parser) parseLambdaBody(names []token, pos int, body func() (reql.Query, error)) (reql.Query, error) {
	scope := make(map[string]reql.Query, len(names))
	params := make([]reql.Query, len(names))
	for i, n := range names {
		params[i] = reql.NewVar(n.Value)
		scope[n.Value] = params[i]
	}
	p.scopes = append(p.scopes, scope)
	b, err := body()
	p.scopes = p.scopes[:len(p.scopes)-1]
	if err != nil {
		return reql.Query{}, err
	}
	fn, err := reql.Func(params, b)
	if err != nil {
		return reql.Query{}, wrapBuild("function", pos, err)
	}
	return fn, nil
}

// ---- literals ----

type field struct {
	key string
	val reql.Query
}

// parseObject parses {key: value, ...} keeping the keys in source order.
func (p *parser) parseObject() ([]field, error) {
	if _, err := p.expect(tokenLBrace); err != nil {
		return nil, err
	}
	var fields []field
	seen := make(map[string]bool)
	for p.peek().Type != tokenRBrace {
		if len(fields) > 0 {
			if _, err := p.expect(tokenComma); err != nil {
				return nil, err
			}
			if p.peek().Type == tokenRBrace {
				break
			}
		}
		tok := p.peek()
		if tok.Type != tokenIdent && tok.Type != tokenString {
			return nil, fmt.Errorf("expected object key at position %d, got %q", tok.Pos, tok.Value)
		}
		p.advance()
		if seen[tok.Value] {
			return nil, fmt.Errorf("duplicate key %q at position %d", tok.Value, tok.Pos)
		}
		seen[tok.Value] = true
		if _, err := p.expect(tokenColon); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field{key: tok.Value, val: val})
	}
	if _, err := p.expect(tokenRBrace); err != nil {
		return nil, err
	}
	return fields, nil
}

func objectQuery(fields []field, pos int) (reql.Query, error) {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.key] = f.val
	}
	q, err := reql.Expr(m)
	if err != nil {
		return reql.Query{}, wrapBuild("object", pos, err)
	}
	return q, nil
}

func optionsOf(fields []field) reql.Options {
	opts := make(reql.Options, len(fields))
	for i, f := range fields {
		opts[i] = reql.Opt(f.key, f.val)
	}
	return opts
}

func (p *parser) parseArray() (reql.Query, error) {
	open, err := p.expect(tokenLBracket)
	if err != nil {
		return reql.Query{}, err
	}
	items := []interface{}{}
	for p.peek().Type != tokenRBracket {
		if len(items) > 0 {
			if _, err := p.expect(tokenComma); err != nil {
				return reql.Query{}, err
			}
			if p.peek().Type == tokenRBracket {
				break
			}
		}
		item, err := p.parseExpr()
		if err != nil {
			return reql.Query{}, err
		}
		items = append(items, item)
	}
	if _, err := p.expect(tokenRBracket); err != nil {
		return reql.Query{}, err
	}
	q, err := reql.Expr(items)
	if err != nil {
		return reql.Query{}, wrapBuild("array", open.Pos, err)
	}
	return q, nil
}

func (p *parser) parseDatum() (reql.Query, error) {
	tok := p.peek()
	var v interface{}
	switch tok.Type {
	case tokenString:
		v = tok.Value
	case tokenNumber:
		v = json.Number(tok.Value)
	case tokenBool:
		v = tok.Value == "true"
	case tokenNull:
		v = nil
	default:
		return reql.Query{}, fmt.Errorf("unexpected token %q at position %d", tok.Value, tok.Pos)
	}
	p.advance()
	q, err := reql.Expr(v)
	if err != nil {
		return reql.Query{}, wrapBuild("literal", tok.Pos, err)
	}
	return q, nil
}

// ---- call arguments ----

// argument is one parsed call argument. Object literals also keep their
// fields in source order so they can serve as an options argument.
type argument struct {
	query  reql.Query
	fields []field
	object bool
	pos    int
}

// value returns the argument as a builder input: plain datums unwrapped to
// their Go value, everything else as the query itself.
func (a argument) value() interface{} {
	if d, ok := a.query.Datum(); ok {
		return d.Value()
	}
	return a.query
}

// parseArgs parses a parenthesized argument list with between min and max
// arguments; max < 0 means unbounded.
func (p *parser) parseArgs(min, max int) ([]argument, error) {
	open, err := p.expect(tokenLParen)
	if err != nil {
		return nil, err
	}
	var args []argument
	for p.peek().Type != tokenRParen {
		if len(args) > 0 {
			if _, err := p.expect(tokenComma); err != nil {
				return nil, err
			}
		}
		a := argument{pos: p.peek().Pos}
		if p.peek().Type == tokenLBrace {
			a.object = true
			if a.fields, err = p.parseObject(); err != nil {
				return nil, err
			}
			if a.query, err = objectQuery(a.fields, a.pos); err != nil {
				return nil, err
			}
			end := p.pos
			if a.query, err = p.parseChain(a.query); err != nil {
				return nil, err
			}
			a.object = p.pos == end
		} else if a.query, err = p.parseExpr(); err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	p.advance()
	if len(args) < min || (max >= 0 && len(args) > max) {
		return nil, fmt.Errorf("wrong number of arguments at position %d: got %d, %s", open.Pos, len(args), arity(min, max))
	}
	return args, nil
}

func arity(min, max int) string {
	switch {
	case min == max:
		return "want " + strconv.Itoa(min)
	case max < 0:
		return "want at least " + strconv.Itoa(min)
	}
	return fmt.Sprintf("want %d to %d", min, max)
}

// splitOptions separates a trailing object literal from the positional
// arguments once more than n positional arguments are present.
func splitOptions(args []argument, n int) ([]argument, reql.Options) {
	if len(args) > n {
		if last := args[len(args)-1]; last.object {
			return args[:len(args)-1], optionsOf(last.fields)
		}
	}
	return args, nil
}

// stringArg returns a literal string argument.
func (p *parser) stringArg() (string, error) {
	args, err := p.parseArgs(1, 1)
	if err != nil {
		return "", err
	}
	s, ok := args[0].value().(string)
	if !ok {
		return "", fmt.Errorf("expected string argument at position %d", args[0].pos)
	}
	return s, nil
}

// intArg returns a literal integer argument.
func (p *parser) intArg() (int, error) {
	args, err := p.parseArgs(1, 1)
	if err != nil {
		return 0, err
	}
	f, ok := args[0].value().(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("expected integer argument at position %d", args[0].pos)
	}
	return int(f), nil
}

// boundValue maps a null bound to nil, meaning "not given".
func boundValue(a argument) interface{} {
	if d, ok := a.query.Datum(); ok && d.Kind() == proto.DatumNull {
		return nil
	}
	return a.query
}
