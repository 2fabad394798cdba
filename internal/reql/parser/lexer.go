package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenDot
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenLBrace
	tokenRBrace
	tokenComma
	tokenColon
	tokenSemicolon
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenArrow
)

var tokenNames = [...]string{
	tokenEOF:       "end of input",
	tokenIdent:     "identifier",
	tokenDot:       "'.'",
	tokenLParen:    "'('",
	tokenRParen:    "')'",
	tokenLBracket:  "'['",
	tokenRBracket:  "']'",
	tokenLBrace:    "'{'",
	tokenRBrace:    "'}'",
	tokenComma:     "','",
	tokenColon:     "':'",
	tokenSemicolon: "';'",
	tokenString:    "string",
	tokenNumber:    "number",
	tokenBool:      "boolean",
	tokenNull:      "null",
	tokenArrow:     "'=>'",
}

func (t tokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("tokenType(%d)", int(t))
}

// token is a lexical unit; Pos is a rune offset into the input.
type token struct {
	Type  tokenType
	Value string
	Pos   int
}

type lexer struct {
	input []rune
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: []rune(input)}
}

// tokenize returns all tokens up to and including EOF.
func (l *lexer) tokenize() ([]token, error) {
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == tokenEOF {
			return tokens, nil
		}
	}
}

var punctTypes = map[rune]tokenType{
	'.': tokenDot,
	'(': tokenLParen,
	')': tokenRParen,
	'[': tokenLBracket,
	']': tokenRBracket,
	'{': tokenLBrace,
	'}': tokenRBrace,
	',': tokenComma,
	':': tokenColon,
	';': tokenSemicolon,
}

func (l *lexer) peekRune(off int) (rune, bool) {
	if l.pos+off >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos+off], true
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
	start := l.pos
	ch, ok := l.peekRune(0)
	if !ok {
		return token{Type: tokenEOF, Pos: start}, nil
	}
	if typ, ok := punctTypes[ch]; ok {
		l.pos++
		return token{Type: typ, Value: string(ch), Pos: start}, nil
	}
	switch {
	case ch == '=':
		if next, ok := l.peekRune(1); ok && next == '>' {
			l.pos += 2
			return token{Type: tokenArrow, Value: "=>", Pos: start}, nil
		}
	case ch == '"' || ch == '\'':
		return l.readString(ch)
	case ch == '-' || (ch >= '0' && ch <= '9'):
		return l.readNumber()
	case unicode.IsLetter(ch) || ch == '_' || ch == '$':
		return l.readIdent(), nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", string(ch), start)
}

func (l *lexer) readString(quote rune) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		l.pos++
		switch ch {
		case quote:
			return token{Type: tokenString, Value: sb.String(), Pos: start}, nil
		case '\\':
			if l.pos >= len(l.input) {
				return token{}, fmt.Errorf("unterminated string at position %d", start)
			}
			r, ok := unescape(l.input[l.pos])
			if !ok {
				return token{}, fmt.Errorf("unknown escape sequence '\\%c' at position %d", l.input[l.pos], l.pos-1)
			}
			sb.WriteRune(r)
			l.pos++
		default:
			sb.WriteRune(ch)
		}
	}
	return token{}, fmt.Errorf("unterminated string at position %d", start)
}

func unescape(ch rune) (rune, bool) {
	switch ch {
	case '"', '\'', '\\', '/':
		return ch, true
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	}
	return 0, false
}

func (l *lexer) digits() int {
	n := 0
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
		n++
	}
	return n
}

// readNumber accepts JSON-style numbers: -?digits(.digits)?([eE][+-]?digits)?
func (l *lexer) readNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	if l.digits() == 0 {
		return token{}, fmt.Errorf("malformed number at position %d", start)
	}
	if ch, ok := l.peekRune(0); ok && ch == '.' {
		l.pos++
		if l.digits() == 0 {
			return token{}, fmt.Errorf("malformed number at position %d", start)
		}
	}
	if ch, ok := l.peekRune(0); ok && (ch == 'e' || ch == 'E') {
		l.pos++
		if sign, ok := l.peekRune(0); ok && (sign == '+' || sign == '-') {
			l.pos++
		}
		if l.digits() == 0 {
			return token{}, fmt.Errorf("malformed number at position %d", start)
		}
	}
	return token{Type: tokenNumber, Value: string(l.input[start:l.pos]), Pos: start}, nil
}

func (l *lexer) readIdent() token {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '_' && ch != '$' {
			break
		}
		l.pos++
	}
	val := string(l.input[start:l.pos])
	switch val {
	case "true", "false":
		return token{Type: tokenBool, Value: val, Pos: start}
	case "null":
		return token{Type: tokenNull, Value: val, Pos: start}
	}
	return token{Type: tokenIdent, Value: val, Pos: start}
}
