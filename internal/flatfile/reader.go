package flatfile

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// ReadOptions tune a single flatfile read. The zero value reads every column
// with registry kinds and a sniffed dialect.
type ReadOptions struct {
	// Dialect skips delimiter inference when set.
	Dialect *Dialect
	// ColumnMapping renames raw header names to canonical ones before typed
	// parsing. A target name already present verbatim in the header is an
	// IncompatibleColumnError.
	ColumnMapping map[string]string
	// UseColumns restricts the read to the listed (post-rename) columns.
	UseColumns []string
	// UseColumnsFunc restricts the read by predicate; combined with
	// UseColumns when both are set.
	UseColumnsFunc func(name string) bool
	// KindOverrides forces a kind for unregistered (or registered) columns.
	KindOverrides map[string]schema.Kind
	// DefaultOverrides replaces or supplies per-column defaults.
	DefaultOverrides map[string]any
}

// ReadFile reads a flatfile from disk, transparently decompressing a ".gz"
// extension, and parses it with Read.
func ReadFile(path string, reg *schema.Registry, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flatfile: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip flatfile: %w", err)
		}
		defer gz.Close()
		src = gz
	}
	// Buffer in memory: the sniffer needs a rewindable stream and callers cap
	// upload sizes before invoking the read.
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read flatfile: %w", err)
	}
	return Read(bytes.NewReader(data), reg, opts)
}

// Read parses a flatfile into a typed Table: delimiter inference, header
// renaming, per-column type coercion (int/bool provisionally widened to
// NA-safe float), default injection, and structural validation requiring at
// least one intensity measure column.
func Read(r io.ReadSeeker, reg *schema.Registry, opts ReadOptions) (*Table, error) {
	dialect := opts.Dialect
	if dialect == nil {
		d, err := SniffDialect(r)
		if err != nil {
			return nil, err
		}
		dialect = &d
	}

	records := newRecordReader(r, *dialect)
	header, err := records.Read()
	if err != nil {
		return nil, &Error{Msg: "empty flatfile"}
	}
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	plans, err := buildPlans(header, reg, opts)
	if err != nil {
		return nil, err
	}

	if err := parseBody(records, plans); err != nil {
		return nil, err
	}

	cols := make([]*Column, 0, len(plans))
	for _, p := range plans {
		if !p.keep {
			continue
		}
		col, err := p.finish(opts)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	if err := validateIntensityColumns(cols); err != nil {
		return nil, err
	}
	return newTable(cols), nil
}

// colPlan is the per-column parse state: resolved kind, accumulated cells and
// the post-pass bookkeeping for widened int/bool columns.
type colPlan struct {
	name       string // post-rename header name
	meta       schema.Column
	registered bool
	kind       schema.Kind // effective parse kind; int/bool are widened
	widened    bool        // true kind is int/bool, read as float
	inferred   bool        // unregistered without override: kind decided after the pass
	keep       bool

	floats  []float64
	strs    []string
	times   []time.Time
	missing []bool
	raw     []string // inferred columns accumulate raw cells
}

func buildPlans(header []string, reg *schema.Registry, opts ReadOptions) ([]*colPlan, error) {
	renamed := make([]string, len(header))
	for i, raw := range header {
		target, mapped := opts.ColumnMapping[raw]
		if !mapped {
			renamed[i] = raw
			continue
		}
		if target != raw && slices.Contains(header, target) {
			return nil, &IncompatibleColumnError{Column: target}
		}
		renamed[i] = target
	}

	plans := make([]*colPlan, len(renamed))
	for i, name := range renamed {
		p := &colPlan{name: name}
		if meta, ok := reg.Lookup(name); ok {
			p.meta = meta
			p.registered = true
			p.name = meta.Name
			p.kind = meta.Kind
		} else if _, isMeasure := schema.CanonicalMeasure(name); isMeasure {
			p.kind = schema.KindFloat
		} else {
			p.inferred = true
			p.kind = schema.KindString
		}
		if kind, ok := opts.KindOverrides[p.name]; ok {
			p.kind = kind
			p.inferred = false
		}
		// int and bool cannot hold missing markers during the pass; read
		// them as float and narrow after defaults are injected.
		if p.kind == schema.KindInt || p.kind == schema.KindBool {
			p.widened = true
		}
		p.keep = keepColumn(p.name, opts)
		plans[i] = p
	}
	return plans, nil
}

func keepColumn(name string, opts ReadOptions) bool {
	if opts.UseColumns == nil && opts.UseColumnsFunc == nil {
		return true
	}
	if opts.UseColumns != nil && slices.Contains(opts.UseColumns, name) {
		return true
	}
	return opts.UseColumnsFunc != nil && opts.UseColumnsFunc(name)
}

// parseBody coerces every cell in one pass with the resolved kinds.
func parseBody(records recordReader, plans []*colPlan) error {
	for {
		rec, err := records.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &Error{Msg: fmt.Sprintf("malformed CSV: %v", err)}
		}
		if len(rec) != len(plans) {
			return &Error{Msg: fmt.Sprintf("row has %d fields, header has %d", len(rec), len(plans))}
		}
		for i, p := range plans {
			if !p.keep {
				continue
			}
			if err := p.appendCell(strings.TrimSpace(rec[i])); err != nil {
				return err
			}
		}
	}
}

func (p *colPlan) appendCell(cell string) error {
	if p.inferred {
		p.raw = append(p.raw, cell)
		p.missing = append(p.missing, cell == "")
		return nil
	}
	miss := cell == ""
	switch {
	case p.kind == schema.KindFloat || p.widened:
		v := math.NaN()
		if !miss {
			var err error
			v, err = parseNumericCell(cell, p.kind)
			if err != nil {
				return &Error{Column: p.name, Msg: fmt.Sprintf("cannot parse %q as %s", cell, p.kind)}
			}
		}
		p.floats = append(p.floats, v)
	case p.kind == schema.KindCategorical:
		// Values outside the closed domain convert to missing.
		if !miss && !slices.Contains(p.meta.Categories, cell) {
			cell, miss = "", true
		}
		p.strs = append(p.strs, cell)
	case p.kind == schema.KindString:
		p.strs = append(p.strs, cell)
	case p.kind == schema.KindDatetime:
		var t time.Time
		if !miss {
			var err error
			t, err = parseDatetimeCell(cell)
			if err != nil {
				return &Error{Column: p.name, Msg: fmt.Sprintf("cannot parse %q as datetime", cell)}
			}
		}
		p.times = append(p.times, t)
	}
	p.missing = append(p.missing, miss)
	return nil
}

// parseNumericCell parses a float cell, additionally accepting the textual
// booleans of widened bool columns as 0/1.
func parseNumericCell(cell string, kind schema.Kind) (float64, error) {
	if kind == schema.KindBool {
		switch strings.ToLower(cell) {
		case "true":
			return 1, nil
		case "false":
			return 0, nil
		}
	}
	return strconv.ParseFloat(cell, 64)
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDatetimeCell(cell string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime %q", cell)
}

// finish applies defaults, narrows widened columns to their true kind, and
// decides the kind of inferred columns.
func (p *colPlan) finish(opts ReadOptions) (*Column, error) {
	if p.inferred {
		return p.finishInferred(), nil
	}

	def, hasDefault := opts.DefaultOverrides[p.name]
	if !hasDefault && p.registered {
		def, hasDefault = p.meta.Default, p.meta.HasDefault()
	}

	col := &Column{Name: p.name, Kind: p.kind, Category: p.categoryOrUnknown(), Missing: p.missing}
	switch {
	case p.kind == schema.KindFloat || p.widened:
		// Widened columns always backfill: int and bool cannot represent
		// missing, so absent an explicit default the kind's zero applies.
		fill, fillMissing := 0.0, p.widened
		if hasDefault {
			f, err := defaultAsFloat(def)
			if err != nil {
				return nil, &Error{Column: p.name, Msg: err.Error()}
			}
			fill, fillMissing = f, true
		}
		if fillMissing {
			for i, v := range p.floats {
				if math.IsNaN(v) {
					p.floats[i] = fill
					p.missing[i] = false
				}
			}
		}
		if !p.widened {
			col.Floats = p.floats
			break
		}
		// Narrowing is safe now: no missing values remain.
		if p.kind == schema.KindInt {
			col.Ints = make([]int64, len(p.floats))
			for i, v := range p.floats {
				col.Ints[i] = int64(math.Round(v))
			}
		} else {
			col.Bools = make([]bool, len(p.floats))
			for i, v := range p.floats {
				col.Bools[i] = v != 0
			}
		}
		col.Missing = nil
	case p.kind == schema.KindString || p.kind == schema.KindCategorical:
		if s, ok := def.(string); ok && hasDefault {
			for i := range p.strs {
				if p.missing[i] {
					p.strs[i] = s
					p.missing[i] = false
				}
			}
		}
		col.Strings = p.strs
	case p.kind == schema.KindDatetime:
		if t, ok := def.(time.Time); ok && hasDefault {
			for i := range p.times {
				if p.missing[i] {
					p.times[i] = t
					p.missing[i] = false
				}
			}
		}
		col.Times = p.times
	}
	return col, nil
}

func (p *colPlan) categoryOrUnknown() schema.Category {
	if p.registered {
		return p.meta.Category
	}
	return schema.CategoryUnknown
}

func defaultAsFloat(def any) (float64, error) {
	switch v := def.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("default %v (%T) is not numeric", def, def)
	}
}

// finishInferred retains an unregistered column with an inferred kind: float
// when every present cell parses as a number, string otherwise.
func (p *colPlan) finishInferred() *Column {
	col := &Column{Name: p.name, Kind: schema.KindFloat, Category: schema.CategoryUnknown, Missing: p.missing}
	floats := make([]float64, len(p.raw))
	for i, cell := range p.raw {
		if p.missing[i] {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return &Column{Name: p.name, Kind: schema.KindString, Category: schema.CategoryUnknown,
				Strings: p.raw, Missing: p.missing}
		}
		floats[i] = v
	}
	col.Floats = floats
	return col
}

// validateIntensityColumns renames intensity measure columns to canonical
// case, rejects duplicate measures differing only in case, requires them to
// be numeric, and requires at least one to be present.
func validateIntensityColumns(cols []*Column) error {
	found := make(map[string]string) // canonical measure -> original column name
	for _, c := range cols {
		canonical, ok := schema.CanonicalMeasure(c.Name)
		if !ok {
			continue
		}
		if prev, dup := found[canonical]; dup {
			return &Error{Column: c.Name, Msg: fmt.Sprintf("duplicates intensity measure %q (also %q)", canonical, prev)}
		}
		if c.Kind != schema.KindFloat && c.Kind != schema.KindInt {
			return &Error{Column: c.Name, Msg: "intensity measure column is not numeric"}
		}
		found[canonical] = c.Name
		c.Name = canonical
		c.Category = schema.CategoryIntensity
	}
	if len(found) == 0 {
		return &Error{Msg: "no intensity measure column found (e.g. PGA, PGV, SA(0.1))"}
	}
	return nil
}

// recordReader yields one row of fields at a time, io.EOF at end of input.
type recordReader interface {
	Read() ([]string, error)
}

func newRecordReader(r io.Reader, d Dialect) recordReader {
	if d.Whitespace {
		return &whitespaceReader{scanner: newLineScanner(r)}
	}
	cr := csv.NewReader(r)
	cr.Comma = d.Delimiter
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // row widths are validated against the header
	return cr
}

// whitespaceReader splits lines on runs of spaces/tabs, skipping blank and
// comment lines. Quoting is not supported in the whitespace dialect.
type whitespaceReader struct {
	scanner *bufio.Scanner
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return s
}

func (w *whitespaceReader) Read() ([]string, error) {
	for w.scanner.Scan() {
		line := strings.TrimSpace(w.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Fields(line), nil
	}
	if err := w.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
