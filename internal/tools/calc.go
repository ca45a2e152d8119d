package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// The calculator is a hand-written parser for a closed arithmetic grammar:
//
//	expr    = term  (("+" | "-") term)*
//	term    = unary (("*" | "/") unary)*
//	unary   = "-" unary | primary
//	primary = NUMBER | "(" expr ")"
//
// Nothing outside that grammar is accepted. Identifiers, function calls,
// exponent operators and every other token fail with invalid_expression,
// which is the whole safety contract: expressions are parsed here, never
// handed to any evaluator.

// maxExpressionLength bounds calculator input.
const maxExpressionLength = 512

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind  tokenKind
	value float64
	pos   int
}

type exprError struct {
	pos int
	msg string
}

func (e *exprError) Error() string {
	return fmt.Sprintf("%s (position %d)", e.msg, e.pos)
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+':
			toks = append(toks, token{kind: tokPlus, pos: i})
			i++
		case r == '-':
			toks = append(toks, token{kind: tokMinus, pos: i})
			i++
		case r == '*':
			// "**" is a deliberate reject: it looks like exponentiation
			// and must not silently parse as multiplication.
			if i+1 < len(runes) && runes[i+1] == '*' {
				return nil, &exprError{pos: i, msg: "operator ** is not supported"}
			}
			toks = append(toks, token{kind: tokStar, pos: i})
			i++
		case r == '/':
			toks = append(toks, token{kind: tokSlash, pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				if runes[i] == '.' {
					if seenDot {
						return nil, &exprError{pos: i, msg: "malformed number"}
					}
					seenDot = true
				}
				i++
			}
			text := string(runes[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &exprError{pos: start, msg: fmt.Sprintf("malformed number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, value: v, pos: start})
		default:
			return nil, &exprError{pos: i, msg: fmt.Sprintf("unexpected character %q", string(r))}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(runes)})
	return toks, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	p.i++
	return t
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek().kind {
		case tokPlus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case tokMinus:
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek().kind {
		case tokStar:
			p.next()
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case tokSlash:
			op := p.next()
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, &exprError{pos: op.pos, msg: "division by zero"}
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	if p.peek().kind == tokMinus {
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.value, nil
	case tokLParen:
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return 0, &exprError{pos: closing.pos, msg: "missing closing parenthesis"}
		}
		return v, nil
	default:
		return 0, &exprError{pos: t.pos, msg: "expected number or parenthesized expression"}
	}
}

// Evaluate parses and evaluates a restricted arithmetic expression.
// Accepts decimal numbers, + - * /, parentheses and unary minus only.
func Evaluate(expression string) (float64, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return 0, &exprError{pos: 0, msg: "empty expression"}
	}
	if len(expr) > maxExpressionLength {
		return 0, &exprError{pos: maxExpressionLength, msg: fmt.Sprintf("expression exceeds %d characters", maxExpressionLength)}
	}

	toks, err := lex(expr)
	if err != nil {
		return 0, err
	}

	p := &parser{toks: toks}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if trailing := p.peek(); trailing.kind != tokEOF {
		return 0, &exprError{pos: trailing.pos, msg: "unexpected trailing input"}
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &exprError{pos: 0, msg: "result is not a finite number"}
	}
	return v, nil
}

// formatNumber renders a result without a trailing ".000000" for integers.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
