package flatfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// Query filters rows by a boolean expression over column names, e.g.
// "(magnitude > 6) & (rrup < 10)". Supported syntax: comparisons
// (== != < <= > >=), conjunction '&', disjunction '|', negation '~',
// parentheses, quoted string literals, case-insensitive boolean literals and
// the convenience predicate notna(column), which is rewritten to the
// tautology-style self-comparison column == column. The source table is never
// mutated; the result is a new table.
func (t *Table) Query(expr string) (*Table, error) {
	mask, err := t.QueryMask(expr)
	if err != nil {
		return nil, err
	}
	return t.Filter(mask), nil
}

// QueryMask evaluates the expression and returns the per-row boolean mask.
func (t *Table) QueryMask(expr string) ([]bool, error) {
	toks, err := lexQuery(expr)
	if err != nil {
		return nil, err
	}
	p := &queryParser{table: t, expr: expr, toks: toks}
	v, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, &QueryError{Expr: expr, Msg: fmt.Sprintf("unexpected token %q", p.peek().text)}
	}
	mask, err := v.boolVec(t.nrows)
	if err != nil {
		return nil, &QueryError{Expr: expr, Msg: err.Error()}
	}
	return mask, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokBool
	tokOp     // == != < <= > >=
	tokAnd    // &
	tokOr     // |
	tokNot    // ~
	tokLParen // (
	tokRParen // )
)

type token struct {
	kind tokKind
	text string
	num  float64
	b    bool
}

func lexQuery(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '&':
			toks = append(toks, token{kind: tokAnd, text: "&"})
			i++
		case r == '|':
			toks = append(toks, token{kind: tokOr, text: "|"})
			i++
		case r == '~':
			toks = append(toks, token{kind: tokNot, text: "~"})
			i++
		case r == '=' || r == '!' || r == '<' || r == '>':
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" || op == "!" {
				return nil, &QueryError{Expr: expr, Msg: fmt.Sprintf("invalid operator %q", op)}
			}
			toks = append(toks, token{kind: tokOp, text: op})
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, &QueryError{Expr: expr, Msg: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: string(runes[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || r == '.' || r == '-' || r == '+':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.' ||
				runes[j] == 'e' || runes[j] == 'E' ||
				((runes[j] == '-' || runes[j] == '+') && (runes[j-1] == 'e' || runes[j-1] == 'E'))) {
				j++
			}
			text := string(runes[i:j])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &QueryError{Expr: expr, Msg: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			text := string(runes[i:j])
			// Boolean literals are accepted case-insensitively.
			if strings.EqualFold(text, "true") || strings.EqualFold(text, "false") {
				toks = append(toks, token{kind: tokBool, text: text, b: strings.EqualFold(text, "true")})
			} else {
				toks = append(toks, token{kind: tokIdent, text: text})
			}
			i = j
		default:
			return nil, &QueryError{Expr: expr, Msg: fmt.Sprintf("unexpected character %q", string(r))}
		}
	}
	return toks, nil
}

// qval is a partially evaluated query term: a boolean mask, a scalar literal,
// or a column reference.
type qval struct {
	mask []bool
	col  *Column

	isNum  bool
	num    float64
	isStr  bool
	str    string
	isBool bool
	b      bool
}

func (v qval) boolVec(n int) ([]bool, error) {
	switch {
	case v.mask != nil:
		return v.mask, nil
	case v.isBool:
		out := make([]bool, n)
		for i := range out {
			out[i] = v.b
		}
		return out, nil
	case v.col != nil && v.col.Kind == schema.KindBool:
		return append([]bool(nil), v.col.Bools...), nil
	default:
		return nil, fmt.Errorf("expression term is not boolean")
	}
}

type queryParser struct {
	table *Table
	expr  string
	toks  []token
	pos   int
}

func (p *queryParser) atEnd() bool   { return p.pos >= len(p.toks) }
func (p *queryParser) peek() token   { return p.toks[p.pos] }
func (p *queryParser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *queryParser) errf(format string, args ...any) error {
	return &QueryError{Expr: p.expr, Msg: fmt.Sprintf(format, args...)}
}

func (p *queryParser) parseOr() (qval, error) {
	left, err := p.parseAnd()
	if err != nil {
		return qval{}, err
	}
	for !p.atEnd() && p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return qval{}, err
		}
		lm, err := left.boolVec(p.table.nrows)
		if err != nil {
			return qval{}, p.errf("%v", err)
		}
		rm, err := right.boolVec(p.table.nrows)
		if err != nil {
			return qval{}, p.errf("%v", err)
		}
		out := make([]bool, len(lm))
		for i := range out {
			out[i] = lm[i] || rm[i]
		}
		left = qval{mask: out}
	}
	return left, nil
}

func (p *queryParser) parseAnd() (qval, error) {
	left, err := p.parseCmp()
	if err != nil {
		return qval{}, err
	}
	for !p.atEnd() && p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseCmp()
		if err != nil {
			return qval{}, err
		}
		lm, err := left.boolVec(p.table.nrows)
		if err != nil {
			return qval{}, p.errf("%v", err)
		}
		rm, err := right.boolVec(p.table.nrows)
		if err != nil {
			return qval{}, p.errf("%v", err)
		}
		out := make([]bool, len(lm))
		for i := range out {
			out[i] = lm[i] && rm[i]
		}
		left = qval{mask: out}
	}
	return left, nil
}

func (p *queryParser) parseCmp() (qval, error) {
	left, err := p.parseUnary()
	if err != nil {
		return qval{}, err
	}
	if p.atEnd() || p.peek().kind != tokOp {
		return left, nil
	}
	op := p.advance().text
	right, err := p.parseUnary()
	if err != nil {
		return qval{}, err
	}
	mask, err := p.compare(left, op, right)
	if err != nil {
		return qval{}, err
	}
	return qval{mask: mask}, nil
}

func (p *queryParser) parseUnary() (qval, error) {
	if !p.atEnd() && p.peek().kind == tokNot {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return qval{}, err
		}
		m, err := inner.boolVec(p.table.nrows)
		if err != nil {
			return qval{}, p.errf("%v", err)
		}
		out := make([]bool, len(m))
		for i := range out {
			out[i] = !m[i]
		}
		return qval{mask: out}, nil
	}
	if !p.atEnd() && p.peek().kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return qval{}, err
		}
		if p.atEnd() || p.peek().kind != tokRParen {
			return qval{}, p.errf("missing closing parenthesis")
		}
		p.advance()
		return inner, nil
	}
	return p.parseTerm()
}

func (p *queryParser) parseTerm() (qval, error) {
	if p.atEnd() {
		return qval{}, p.errf("unexpected end of expression")
	}
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		return qval{isNum: true, num: tok.num}, nil
	case tokString:
		return qval{isStr: true, str: tok.text}, nil
	case tokBool:
		return qval{isBool: true, b: tok.b}, nil
	case tokIdent:
		if tok.text == "notna" {
			return p.parseNotNA()
		}
		col, ok := p.table.Column(tok.text)
		if !ok {
			return qval{}, p.errf("unknown column %q", tok.text)
		}
		return qval{col: col}, nil
	default:
		return qval{}, p.errf("unexpected token %q", tok.text)
	}
}

// parseNotNA handles notna(column) by rewriting it to the self-comparison
// column == column: NaN never equals itself, and non-float kinds use their
// missing marker directly.
func (p *queryParser) parseNotNA() (qval, error) {
	if p.atEnd() || p.advance().kind != tokLParen {
		return qval{}, p.errf("notna requires a parenthesized column name")
	}
	if p.atEnd() {
		return qval{}, p.errf("notna requires a column name")
	}
	nameTok := p.advance()
	if nameTok.kind != tokIdent {
		return qval{}, p.errf("notna requires a column name, got %q", nameTok.text)
	}
	if p.atEnd() || p.advance().kind != tokRParen {
		return qval{}, p.errf("notna is missing its closing parenthesis")
	}
	col, ok := p.table.Column(nameTok.text)
	if !ok {
		return qval{}, p.errf("unknown column %q in notna", nameTok.text)
	}
	if col.Kind.Numeric() {
		mask, err := p.compare(qval{col: col}, "==", qval{col: col})
		if err != nil {
			return qval{}, err
		}
		return qval{mask: mask}, nil
	}
	mask := make([]bool, p.table.nrows)
	for i := range mask {
		mask[i] = !col.IsMissing(i)
	}
	return qval{mask: mask}, nil
}

func (p *queryParser) compare(left qval, op string, right qval) ([]bool, error) {
	n := p.table.nrows
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		ok, err := compareAt(left, op, right, i)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		out[i] = ok
	}
	return out, nil
}

func compareAt(left qval, op string, right qval, i int) (bool, error) {
	lf, lok := numericAt(left, i)
	rf, rok := numericAt(right, i)
	if lok && rok {
		return compareFloats(lf, op, rf), nil
	}
	ls, lok := stringAt(left, i)
	rs, rok := stringAt(right, i)
	if lok && rok {
		return compareStrings(ls, op, rs)
	}
	lb, lok := boolAt(left, i)
	rb, rok := boolAt(right, i)
	if lok && rok {
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		default:
			return false, fmt.Errorf("operator %q not defined for booleans", op)
		}
	}
	return false, fmt.Errorf("incomparable operands for %q", op)
}

// numericAt yields the numeric value of an operand at row i. Missing float
// cells yield NaN, which makes every comparison (including ==) false, the
// behavior the notna rewrite relies on.
func numericAt(v qval, i int) (float64, bool) {
	switch {
	case v.isNum:
		return v.num, true
	case v.col != nil && v.col.Kind == schema.KindFloat:
		return v.col.Floats[i], true
	case v.col != nil && v.col.Kind == schema.KindInt:
		return float64(v.col.Ints[i]), true
	default:
		return 0, false
	}
}

func stringAt(v qval, i int) (string, bool) {
	switch {
	case v.isStr:
		return v.str, true
	case v.col != nil && (v.col.Kind == schema.KindString || v.col.Kind == schema.KindCategorical):
		if v.col.IsMissing(i) {
			return "\x00missing", true // never equal to any literal or cell
		}
		return v.col.Strings[i], true
	default:
		return "", false
	}
}

func boolAt(v qval, i int) (bool, bool) {
	switch {
	case v.isBool:
		return v.b, true
	case v.col != nil && v.col.Kind == schema.KindBool:
		return v.col.Bools[i], true
	default:
		return false, false
	}
}

func compareFloats(l float64, op string, r float64) bool {
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

func compareStrings(l, op, r string) (bool, error) {
	switch op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}
