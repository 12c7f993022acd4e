package eventctx

import (
	"math"
	"strconv"

	"github.com/strongmotion/flatfile-etl/internal/flatfile"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// ContextSource is the per-event view a residual-computation consumer needs:
// grouping plus on-demand intensity measure extraction. Adapter is the one
// concrete implementation.
type ContextSource interface {
	GroupByEvent() ([]*EventContext, error)
	ExtractMeasure(records []int, measure string) ([]float64, error)
}

// Adapter adapts a typed flatfile table into event contexts. It reads the
// table but never mutates it, so one table can feed several adapters (and
// other consumers) concurrently.
type Adapter struct {
	table *flatfile.Table
	reg   *schema.Registry
}

// NewAdapter wraps a loaded table. The table must contain the event id
// column.
func NewAdapter(table *flatfile.Table, reg *schema.Registry) (*Adapter, error) {
	if _, ok := table.Column("event_id"); !ok {
		return nil, &flatfile.Error{Column: "event_id", Msg: "required for event grouping"}
	}
	return &Adapter{table: table, reg: reg}, nil
}

// GroupByEvent partitions the table rows by event id, exhaustively and
// disjointly, and fills each context's rupture, site and distance attributes.
// Event order follows first appearance in the table.
func (a *Adapter) GroupByEvent() ([]*EventContext, error) {
	idCol, _ := a.table.Column("event_id")
	groups := make(map[string][]int)
	var order []string
	for i := 0; i < a.table.NumRows(); i++ {
		key := cellKey(idCol, i)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]*EventContext, 0, len(order))
	for _, key := range order {
		rows := groups[key]
		if len(rows) == 0 {
			// Guards against an inconsistent group key with no matching rows
			// after upstream filtering.
			continue
		}
		ctx := &EventContext{EventID: key, Records: rows}
		a.fillRupture(ctx)
		a.fillSiteDistance(ctx)
		out = append(out, ctx)
	}
	return out, nil
}

// cellKey renders a grouping cell as a string key regardless of column kind.
func cellKey(c *flatfile.Column, i int) string {
	if s, ok := c.StringAt(i); ok {
		return s
	}
	if v, ok := c.Float(i); ok {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if t, ok := c.TimeAt(i); ok {
		return t.UTC().Format("2006-01-02T15:04:05")
	}
	return ""
}

// fillRupture reads the single-valued rupture attributes from the first row
// of the group. Top-of-rupture depth falls back to the hypocenter depth;
// rupture width falls back to the square root of the WC1994 median area at
// aspect ratio 0.
func (a *Adapter) fillRupture(ctx *EventContext) {
	row := ctx.Records[0]
	r := &ctx.Rupture
	r.Magnitude = a.floatAt("magnitude", row)
	r.Strike = a.floatAt("strike", row)
	r.Dip = a.floatAt("dip", row)
	r.Rake = a.floatAt("rake", row)
	r.HypoDepth = a.floatAt("hypocenter_depth", row)
	r.HypoLat = a.floatAt("hypocenter_latitude", row)
	r.HypoLon = a.floatAt("hypocenter_longitude", row)

	r.ZTOR = a.floatAt("depth_top_of_rupture", row)
	if math.IsNaN(r.ZTOR) {
		r.ZTOR = r.HypoDepth
	}
	r.Width = a.floatAt("rupture_width", row)
	if math.IsNaN(r.Width) && !math.IsNaN(r.Magnitude) {
		r.Width = math.Sqrt(wc1994MedianArea(r.Magnitude, r.Rake))
	}
}

// fillSiteDistance builds the per-record site and distance vectors, applying
// the record-wise fallback rules: rjb←repi, rrup←rhypo, rx←-repi, ry0←repi,
// z1.0/z2.5 from vs30, backarc false when absent.
func (a *Adapter) fillSiteDistance(ctx *EventContext) {
	rows := ctx.Records
	n := len(rows)

	ctx.Sites.Vs30 = a.floatVec("vs30", rows)
	ctx.Sites.Vs30Measured = a.boolVec("vs30measured", rows, true)
	ctx.Sites.Backarc = a.boolVec("backarc", rows, false)

	ctx.Sites.Z1pt0 = a.floatVec("z1pt0", rows)
	ctx.Sites.Z2pt5 = a.floatVec("z2pt5", rows)
	for i := 0; i < n; i++ {
		vs30 := ctx.Sites.Vs30[i]
		if math.IsNaN(ctx.Sites.Z1pt0[i]) && !math.IsNaN(vs30) {
			ctx.Sites.Z1pt0[i] = vs30ToZ1pt0(vs30)
		}
		if math.IsNaN(ctx.Sites.Z2pt5[i]) && !math.IsNaN(vs30) {
			ctx.Sites.Z2pt5[i] = vs30ToZ2pt5(vs30)
		}
	}

	d := &ctx.Distances
	d.Repi = a.floatVec("repi", rows)
	d.Rhypo = a.floatVec("rhypo", rows)
	d.Azimuth = a.floatVec("azimuth", rows)
	d.Rjb = a.floatVec("rjb", rows)
	d.Rrup = a.floatVec("rrup", rows)
	d.Rx = a.floatVec("rx", rows)
	d.Ry0 = a.floatVec("ry0", rows)
	for i := 0; i < n; i++ {
		if math.IsNaN(d.Rjb[i]) {
			d.Rjb[i] = d.Repi[i]
		}
		if math.IsNaN(d.Rrup[i]) {
			d.Rrup[i] = d.Rhypo[i]
		}
		if math.IsNaN(d.Rx[i]) {
			d.Rx[i] = -d.Repi[i]
		}
		if math.IsNaN(d.Ry0[i]) {
			d.Ry0[i] = d.Repi[i]
		}
	}
}

// floatAt reads one numeric cell by canonical column name, NaN when the
// column is absent or the cell missing.
func (a *Adapter) floatAt(name string, row int) float64 {
	col, ok := a.table.Column(name)
	if !ok {
		return math.NaN()
	}
	v, ok := col.Float(row)
	if !ok {
		return math.NaN()
	}
	return v
}

func (a *Adapter) floatVec(name string, rows []int) []float64 {
	col, ok := a.table.Column(name)
	if !ok {
		return nanVec(len(rows))
	}
	out := make([]float64, len(rows))
	for j, i := range rows {
		v, present := col.Float(i)
		if !present {
			v = math.NaN()
		}
		out[j] = v
	}
	return out
}

func (a *Adapter) boolVec(name string, rows []int, fallback bool) []bool {
	out := make([]bool, len(rows))
	col, ok := a.table.Column(name)
	if !ok {
		for j := range out {
			out[j] = fallback
		}
		return out
	}
	for j, i := range rows {
		b, present := col.BoolAt(i)
		if !present {
			b = fallback
		}
		out[j] = b
	}
	return out
}

// Table returns the underlying flatfile table.
func (a *Adapter) Table() *flatfile.Table { return a.table }

var _ ContextSource = (*Adapter)(nil)
