// Package grammar parses scalar and array parameter tokens.
//
// Parameter values arrive from forms and config files in several shapes: a
// plain number, a JSON array ("[1, 2.5]"), a shell-tokenized string
// ("1 2.5 'SA(0.1)'"), or a MATLAB-style numeric range ("0:0.1:2"). ParseArray
// accepts all of them and produces a flat float sequence with optional count
// and value bounds enforced. ExpandWildcards resolves glob patterns against a
// fixed vocabulary (model or column names).
package grammar

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Error reports a malformed token or a parsed result violating its bounds.
// The offending token is carried so callers can surface it verbatim.
type Error struct {
	Token  string
	Reason string
}

func (e *Error) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Token)
}

func errf(token, format string, args ...any) *Error {
	return &Error{Token: token, Reason: fmt.Sprintf(format, args...)}
}

// Values is a parsed parameter value: one or more floats.
type Values struct {
	Values []float64
	// Scalar is true when the input was a single bare numeric token.
	Scalar bool
	// Ints is true when every token parsed at integer precision, e.g. the
	// range "1:1:10". Callers may render such values without decimals.
	Ints bool
}

// String renders the values back into a parseable token: a bare number for a
// scalar, a bracketed list otherwise. Integer-precision values render without
// decimals, so ParseArray(v.String()) reproduces the same sequence.
func (v Values) String() string {
	if v.Scalar && len(v.Values) == 1 {
		return v.formatOne(v.Values[0])
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, val := range v.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.formatOne(val))
	}
	b.WriteByte(']')
	return b.String()
}

func (v Values) formatOne(val float64) string {
	if v.Ints {
		return strconv.FormatInt(int64(val), 10)
	}
	return strconv.FormatFloat(val, 'g', -1, 64)
}

type constraints struct {
	minCount  *int
	maxCount  *int
	minValues []float64
	maxValues []float64
}

// Option constrains the result of ParseArray.
type Option func(*constraints)

// MinCount requires at least n parsed elements.
func MinCount(n int) Option { return func(c *constraints) { c.minCount = &n } }

// MaxCount allows at most n parsed elements.
func MaxCount(n int) Option { return func(c *constraints) { c.maxCount = &n } }

// MinValue sets lower value bounds. A single bound applies to every element;
// multiple bounds apply position-wise, leaving trailing elements unchecked.
func MinValue(bounds ...float64) Option {
	return func(c *constraints) { c.minValues = bounds }
}

// MaxValue sets upper value bounds with the same broadcast rules as MinValue.
func MaxValue(bounds ...float64) Option {
	return func(c *constraints) { c.maxValues = bounds }
}

// Tokenize splits a parameter string into shell-style tokens, honoring
// quoted substrings: "PGA PGV 'SA(0.2)'" -> [PGA PGV SA(0.2)].
func Tokenize(s string) ([]string, error) {
	toks, err := shlex.Split(s)
	if err != nil {
		return nil, errf(s, "tokenize: %v", err)
	}
	return toks, nil
}

// ParseArray parses a parameter value into a float sequence. Accepted inputs:
// numeric Go values and slices of them (used as-is), or a string in any of
// the supported token forms. See the package comment for the grammar.
func ParseArray(input any, opts ...Option) (Values, error) {
	var cons constraints
	for _, opt := range opts {
		opt(&cons)
	}

	out, err := parseAny(input)
	if err != nil {
		return Values{}, err
	}
	if err := cons.check(out.Values); err != nil {
		return Values{}, err
	}
	return out, nil
}

func parseAny(input any) (Values, error) {
	switch v := input.(type) {
	case string:
		return parseString(v)
	case float64:
		return Values{Values: []float64{v}, Scalar: true, Ints: v == math.Trunc(v)}, nil
	case int:
		return Values{Values: []float64{float64(v)}, Scalar: true, Ints: true}, nil
	case []float64:
		return fromFloats(append([]float64(nil), v...)), nil
	case []int:
		vals := make([]float64, len(v))
		for i, n := range v {
			vals[i] = float64(n)
		}
		return Values{Values: vals, Ints: true}, nil
	case []string:
		return parseTokens(v, false)
	case []any:
		toks, err := tokensFromJSONValues(v)
		if err != nil {
			return Values{}, err
		}
		return parseTokens(toks, false)
	default:
		return Values{}, errf(fmt.Sprintf("%v", input), "unsupported value of type %T", input)
	}
}

func fromFloats(vals []float64) Values {
	ints := true
	for _, v := range vals {
		if v != math.Trunc(v) {
			ints = false
			break
		}
	}
	return Values{Values: vals, Ints: ints}
}

// parseString handles the string forms: bracketed JSON, bracket-stripped
// shell tokens, bare JSON-array-of-one, bare shell tokens. Unbalanced
// brackets fail before any parse attempt.
func parseString(s string) (Values, error) {
	trimmed := strings.TrimSpace(s)
	open := strings.HasPrefix(trimmed, "[")
	closed := strings.HasSuffix(trimmed, "]")
	if open != closed {
		return Values{}, errf(s, "unbalanced brackets")
	}

	if open {
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			toks, err := tokensFromJSONValues(arr)
			if err != nil {
				return Values{}, err
			}
			return parseTokens(toks, false)
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
		toks, err := shlex.Split(inner)
		if err != nil {
			return Values{}, errf(s, "tokenize: %v", err)
		}
		return parseTokens(toks, false)
	}

	var arr []any
	if err := json.Unmarshal([]byte("["+trimmed+"]"), &arr); err == nil {
		toks, err := tokensFromJSONValues(arr)
		if err != nil {
			return Values{}, err
		}
		return parseTokens(toks, len(arr) == 1)
	}
	toks, err := shlex.Split(trimmed)
	if err != nil {
		return Values{}, errf(s, "tokenize: %v", err)
	}
	return parseTokens(toks, len(toks) == 1)
}

// tokensFromJSONValues renders decoded JSON array elements back to string
// tokens so numbers and quoted range strings share one scalar-parsing path.
func tokensFromJSONValues(arr []any) ([]string, error) {
	toks := make([]string, len(arr))
	for i, el := range arr {
		switch v := el.(type) {
		case float64:
			toks[i] = strconv.FormatFloat(v, 'g', -1, 64)
		case string:
			toks[i] = v
		case json.Number:
			toks[i] = v.String()
		default:
			return nil, errf(fmt.Sprintf("%v", el), "non-numeric array element")
		}
	}
	return toks, nil
}

// parseTokens scalar-parses each token: plain number first, numeric range
// second. bareScalar marks a single unbracketed token, which keeps scalar
// semantics when it expands to exactly one value.
func parseTokens(toks []string, bareScalar bool) (Values, error) {
	var out Values
	out.Ints = true
	for _, tok := range toks {
		vals, ints, isRange, err := parseScalarToken(tok)
		if err != nil {
			return Values{}, err
		}
		if isRange {
			bareScalar = false
		}
		if !ints {
			out.Ints = false
		}
		out.Values = append(out.Values, vals...)
	}
	if len(out.Values) == 0 {
		return Values{}, errf(strings.Join(toks, " "), "empty value")
	}
	out.Scalar = bareScalar && len(out.Values) == 1
	return out, nil
}

// parseScalarToken parses one token as a float or as a start[:step]:stop
// range. The ints result is true when the token carries no fractional digits
// at its declared decimal precision.
func parseScalarToken(tok string) (vals []float64, ints, isRange bool, err error) {
	tok = strings.TrimSpace(tok)
	if v, ferr := strconv.ParseFloat(tok, 64); ferr == nil {
		return []float64{v}, decimalPrecision(tok) == 0, false, nil
	}
	if strings.Contains(tok, ":") {
		vals, prec, rerr := parseRange(tok)
		if rerr != nil {
			return nil, false, true, rerr
		}
		return vals, prec == 0, true, nil
	}
	return nil, false, false, errf(tok, "not a number or numeric range")
}

// parseRange expands a MATLAB-style "start:stop" or "start:step:stop" token.
// The sequence is generated at the maximum decimal precision declared by the
// three parts; the exact stop value is appended when the next increment
// rounds to it, compensating floating-point endpoint drift.
func parseRange(tok string) ([]float64, int, error) {
	parts := strings.Split(tok, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, 0, errf(tok, "range must be start:stop or start:step:stop")
	}
	startTok, stepTok, stopTok := parts[0], "1", parts[len(parts)-1]
	if len(parts) == 3 {
		stepTok = parts[1]
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(startTok), 64)
	if err != nil {
		return nil, 0, errf(tok, "invalid range start %q", startTok)
	}
	step, err := strconv.ParseFloat(strings.TrimSpace(stepTok), 64)
	if err != nil {
		return nil, 0, errf(tok, "invalid range step %q", stepTok)
	}
	stop, err := strconv.ParseFloat(strings.TrimSpace(stopTok), 64)
	if err != nil {
		return nil, 0, errf(tok, "invalid range stop %q", stopTok)
	}
	if step == 0 {
		return nil, 0, errf(tok, "zero range step")
	}

	prec := max(decimalPrecision(startTok), max(decimalPrecision(stepTok), decimalPrecision(stopTok)))

	var vals []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if (step > 0 && v >= stop) || (step < 0 && v <= stop) {
			break
		}
		vals = append(vals, roundTo(v, prec))
	}
	last := start
	if len(vals) > 0 {
		last = vals[len(vals)-1]
	}
	if roundTo(last+step, prec) == roundTo(stop, prec) {
		vals = append(vals, roundTo(stop, prec))
	}
	if len(vals) == 0 {
		return nil, 0, errf(tok, "empty range")
	}
	return vals, prec, nil
}

// decimalPrecision counts the significant decimal digits of a numeric token,
// accounting for a scientific-notation exponent: "0.05" -> 2, "2.5e-3" -> 4,
// "1e2" -> 0.
func decimalPrecision(tok string) int {
	tok = strings.ToLower(strings.TrimSpace(tok))
	mantissa, exp := tok, 0
	if i := strings.IndexByte(tok, 'e'); i >= 0 {
		e, err := strconv.Atoi(tok[i+1:])
		if err != nil {
			return 0
		}
		mantissa, exp = tok[:i], e
	}
	frac := 0
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		frac = len(mantissa) - i - 1
	}
	if p := frac - exp; p > 0 {
		return p
	}
	return 0
}

func roundTo(v float64, prec int) float64 {
	if prec <= 0 {
		return math.Round(v)
	}
	scale := math.Pow(10, float64(prec))
	return math.Round(v*scale) / scale
}

func (c *constraints) check(vals []float64) error {
	if c.minCount != nil && len(vals) < *c.minCount {
		return errf("", "expected at least %d values, got %d", *c.minCount, len(vals))
	}
	if c.maxCount != nil && len(vals) > *c.maxCount {
		return errf("", "expected at most %d values, got %d", *c.maxCount, len(vals))
	}
	for i, v := range vals {
		if lo, ok := boundAt(c.minValues, i); ok && v < lo {
			return errf(strconv.FormatFloat(v, 'g', -1, 64), "value below minimum %g", lo)
		}
		if hi, ok := boundAt(c.maxValues, i); ok && v > hi {
			return errf(strconv.FormatFloat(v, 'g', -1, 64), "value above maximum %g", hi)
		}
	}
	return nil
}

// boundAt resolves the bound for position i: a single bound broadcasts to all
// positions, a shorter bound list leaves trailing elements unchecked.
func boundAt(bounds []float64, i int) (float64, bool) {
	switch {
	case len(bounds) == 0:
		return 0, false
	case len(bounds) == 1:
		return bounds[0], true
	case i < len(bounds):
		return bounds[i], true
	default:
		return 0, false
	}
}
