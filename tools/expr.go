package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	errInvalidChars    = errors.New("Expression contains invalid characters. Only numbers and +, -, *, /, (, ), % are allowed.")
	errInvalidResult   = errors.New("Invalid calculation result")
	errUnexpectedEnd   = errors.New("Unexpected end of input")
	errEmptyExpression = errors.New("Expression is empty")
)

// evaluate computes an arithmetic expression over float64.
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/" | "%") unary }
//	unary  = { "+" | "-" } power
//	power  = atom [ "**" unary ]
//	atom   = number | "(" expr ")"
func evaluate(src string) (float64, error) {
	for _, r := range src {
		if !allowedRune(r) {
			return 0, errInvalidChars
		}
	}
	p := &exprParser{src: src}
	p.skipSpace()
	if p.pos == len(p.src) {
		return 0, errEmptyExpression
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("Unexpected token %q", p.src[p.pos])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errInvalidResult
	}
	return v, nil
}

func allowedRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\r':
		return true
	}
	switch r {
	case '+', '-', '*', '/', '(', ')', '.', '%':
		return true
	}
	return false
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v += r
		case '-':
			p.pos++
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' && op != '%' {
			return v, nil
		}
		if op == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
			return 0, fmt.Errorf("Unexpected token %q", "**")
		}
		p.pos++
		r, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			v *= r
		case '/':
			v /= r
		case '%':
			v = math.Mod(v, r)
		}
	}
}

func (p *exprParser) unary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.power()
}

func (p *exprParser) power() (float64, error) {
	base, err := p.atom()
	if err != nil {
		return 0, err
	}
	if p.peek() == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
		p.pos += 2
		exp, err := p.unary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) atom() (float64, error) {
	c := p.peek()
	switch {
	case c == 0:
		return 0, errUnexpectedEnd
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			if p.pos >= len(p.src) {
				return 0, errUnexpectedEnd
			}
			return 0, fmt.Errorf("Unexpected token %q", p.src[p.pos])
		}
		p.pos++
		return v, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}
	return 0, fmt.Errorf("Unexpected token %q", c)
}

func (p *exprParser) number() (float64, error) {
	start := p.pos
	dot := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' {
			if dot {
				break
			}
			dot = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if lit == "." {
		return 0, fmt.Errorf("Unexpected token %q", '.')
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid number %q", lit)
	}
	return v, nil
}
