package tablexpr

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// The expression grammar is deliberately closed: one expression, identifier
// and selector references, literals, comparison/arithmetic/boolean
// operators, and calls to the enumerated operation set. There are no
// statements, assignments, or escape hatches.

type node interface{}

type identNode struct{ name string }

type selectorNode struct {
	base  node
	field string
}

type numberNode struct{ val float64 }

type stringNode struct{ val string }

type boolNode struct{ val bool }

type unaryNode struct {
	op   string
	expr node
}

type binaryNode struct {
	op          string
	left, right node
}

type callNode struct {
	name string
	args []node
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(src string) ([]token, *Error) {
	var toks []token
	i := 0
	for i < len(src) {
		ch := src[i]
		r, width := utf8.DecodeRuneInString(src[i:])
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case ch == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case ch == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case ch == '.' && (i+1 >= len(src) || !isDigit(src[i+1])):
			toks = append(toks, token{tokDot, ".", i})
			i++
		case ch == '"' || ch == '\'':
			quote := ch
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				return nil, errf(ErrReference, "unterminated string literal at position %d", i)
			}
			toks = append(toks, token{tokString, src[i+1 : j], i})
			i = j + 1
		case isDigit(ch) || ch == '.':
			j := i
			for j < len(src) && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case isIdentStart(r):
			j := i + width
			for j < len(src) {
				r2, w2 := utf8.DecodeRuneInString(src[j:])
				if !isIdentPart(r2) {
					break
				}
				j += w2
			}
			toks = append(toks, token{tokIdent, src[i:j], i})
			i = j
		case strings.ContainsRune("+-*/><=!&|", rune(ch)):
			matched := ""
			for _, op := range []string{"&&", "||", ">=", "<=", "==", "!="} {
				if strings.HasPrefix(src[i:], op) {
					matched = op
					break
				}
			}
			if matched == "" && strings.ContainsRune("+-*/<>!", rune(ch)) {
				matched = string(ch)
			}
			if matched == "" {
				return nil, errf(ErrReference, "unexpected character %q at position %d", string(ch), i)
			}
			toks = append(toks, token{tokOp, matched, i})
			i += len(matched)
		default:
			return nil, errf(ErrReference, "unexpected character %q at position %d", string(ch), i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || unicode.IsDigit(r) }

type parser struct {
	toks []token
	pos  int
}

// parse compiles a single expression. Trailing tokens after the expression
// are an error: candidates must be exactly one expression.
func parse(src string) (node, *Error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errf(ErrReference, "empty expression")
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, perr := p.parseOr()
	if perr != nil {
		return nil, perr
	}
	if p.peek().kind != tokEOF {
		return nil, errf(ErrReference, "unexpected %q after expression", p.peek().text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, *Error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, *Error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) parseComparison() (node, *Error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := p.acceptOp("==", "!=", ">=", "<=", ">", "<"); ok {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, *Error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, *Error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, *Error) {
	if op, ok := p.acceptOp("-", "!"); ok {
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, expr: expr}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, *Error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if p.peek().kind != tokDot {
			return n, nil
		}
		p.next()
		field := p.next()
		if field.kind != tokIdent {
			return nil, errf(ErrReference, "expected column name after '.'")
		}
		n = selectorNode{base: n, field: field.text}
	}
}

func (p *parser) parsePrimary() (node, *Error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errf(ErrReference, "invalid number %q", t.text)
		}
		return numberNode{val: f}, nil
	case tokString:
		return stringNode{val: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return boolNode{val: true}, nil
		case "false":
			return boolNode{val: false}, nil
		}
		if p.peek().kind == tokLParen {
			p.next()
			var args []node
			if p.peek().kind != tokRParen {
				for {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.peek().kind == tokComma {
						p.next()
						continue
					}
					break
				}
			}
			if p.next().kind != tokRParen {
				return nil, errf(ErrReference, "expected ')' in call to %q", t.text)
			}
			return callNode{name: t.text, args: args}, nil
		}
		return identNode{name: t.text}, nil
	case tokLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, errf(ErrReference, "expected ')'")
		}
		return n, nil
	default:
		return nil, errf(ErrReference, "unexpected %q in expression", t.text)
	}
}
