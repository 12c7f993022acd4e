package flatfile

import (
	"fmt"
	"math"
	"time"

	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// Column is one homogeneously-typed flatfile column. Exactly one of the value
// slices is populated, selected by Kind. Missing marks absent cells; float
// columns additionally carry NaN in missing positions. Int and bool columns
// never have missing cells after load (defaults are applied in a post-pass).
type Column struct {
	Name     string
	Kind     schema.Kind
	Category schema.Category

	Floats  []float64
	Ints    []int64
	Bools   []bool
	Strings []string
	Times   []time.Time
	Missing []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case schema.KindFloat:
		return len(c.Floats)
	case schema.KindInt:
		return len(c.Ints)
	case schema.KindBool:
		return len(c.Bools)
	case schema.KindString, schema.KindCategorical:
		return len(c.Strings)
	case schema.KindDatetime:
		return len(c.Times)
	}
	return 0
}

// IsMissing reports whether the cell at row i is absent.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == schema.KindFloat && math.IsNaN(c.Floats[i]) {
		return true
	}
	return len(c.Missing) > i && c.Missing[i]
}

// Float returns the numeric value at row i. ok is false when the column is
// not numeric or the cell is missing.
func (c *Column) Float(i int) (v float64, ok bool) {
	switch c.Kind {
	case schema.KindFloat:
		v = c.Floats[i]
		return v, !math.IsNaN(v)
	case schema.KindInt:
		return float64(c.Ints[i]), true
	default:
		return 0, false
	}
}

// StringAt returns the text value at row i for string-backed kinds.
func (c *Column) StringAt(i int) (string, bool) {
	switch c.Kind {
	case schema.KindString, schema.KindCategorical:
		return c.Strings[i], !c.IsMissing(i)
	default:
		return "", false
	}
}

// BoolAt returns the boolean value at row i.
func (c *Column) BoolAt(i int) (bool, bool) {
	if c.Kind != schema.KindBool {
		return false, false
	}
	return c.Bools[i], true
}

// TimeAt returns the datetime value at row i.
func (c *Column) TimeAt(i int) (time.Time, bool) {
	if c.Kind != schema.KindDatetime {
		return time.Time{}, false
	}
	return c.Times[i], !c.IsMissing(i)
}

// take copies the selected rows into a fresh column sharing no state with the
// receiver.
func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Category: c.Category}
	if c.Missing != nil {
		out.Missing = make([]bool, len(rows))
		for j, i := range rows {
			out.Missing[j] = c.Missing[i]
		}
	}
	switch c.Kind {
	case schema.KindFloat:
		out.Floats = takeSlice(c.Floats, rows)
	case schema.KindInt:
		out.Ints = takeSlice(c.Ints, rows)
	case schema.KindBool:
		out.Bools = takeSlice(c.Bools, rows)
	case schema.KindString, schema.KindCategorical:
		out.Strings = takeSlice(c.Strings, rows)
	case schema.KindDatetime:
		out.Times = takeSlice(c.Times, rows)
	}
	return out
}

func takeSlice[T any](src []T, rows []int) []T {
	out := make([]T, len(rows))
	for j, i := range rows {
		out[j] = src[i]
	}
	return out
}

// Table is a validated, typed flatfile: an ordered set of columns of equal
// length. Tables are never mutated after load; filtering produces a new
// table (copy-on-filter), so concurrent readers need no locking.
type Table struct {
	names []string
	cols  map[string]*Column
	nrows int
}

func newTable(cols []*Column) *Table {
	t := &Table{cols: make(map[string]*Column, len(cols))}
	for _, c := range cols {
		t.names = append(t.names, c.Name)
		t.cols[c.Name] = c
		t.nrows = c.Len()
	}
	return t
}

// NumRows returns the row count shared by all columns.
func (t *Table) NumRows() int { return t.nrows }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	return append([]string(nil), t.names...)
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// IntensityColumns returns the columns recognized as intensity measures, in
// table order.
func (t *Table) IntensityColumns() []*Column {
	var out []*Column
	for _, name := range t.names {
		if c := t.cols[name]; c.Category == schema.CategoryIntensity {
			out = append(out, c)
		}
	}
	return out
}

// Select copies the given rows into a new table.
func (t *Table) Select(rows []int) *Table {
	cols := make([]*Column, 0, len(t.names))
	for _, name := range t.names {
		cols = append(cols, t.cols[name].take(rows))
	}
	out := newTable(cols)
	out.nrows = len(rows)
	return out
}

// Filter copies the rows where mask is true into a new table. The mask length
// must equal the row count.
func (t *Table) Filter(mask []bool) *Table {
	rows := make([]int, 0, t.nrows)
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return t.Select(rows)
}

// MissingRequired returns the required registry columns absent from the
// table, in registry order.
func (t *Table) MissingRequired(reg *schema.Registry) []string {
	var out []string
	for _, name := range reg.Required() {
		if _, ok := t.cols[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// BoundsViolations checks every registered numeric column against its bounds
// and returns one message per violating column.
func (t *Table) BoundsViolations(reg *schema.Registry) []string {
	var out []string
	for _, name := range t.names {
		meta, ok := reg.Lookup(name)
		if !ok || meta.Bounds == nil {
			continue
		}
		c := t.cols[name]
		for i := 0; i < c.Len(); i++ {
			v, present := c.Float(i)
			if !present {
				continue
			}
			if meta.Bounds.Min != nil && v < *meta.Bounds.Min {
				out = append(out, boundsMsg(name, i, v, "below minimum", *meta.Bounds.Min))
				break
			}
			if meta.Bounds.Max != nil && v > *meta.Bounds.Max {
				out = append(out, boundsMsg(name, i, v, "above maximum", *meta.Bounds.Max))
				break
			}
		}
	}
	return out
}

func boundsMsg(name string, row int, v float64, dir string, bound float64) string {
	return fmt.Sprintf("column %q: row %d value %g %s %g", name, row, v, dir, bound)
}
