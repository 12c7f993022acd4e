package eventctx

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/interp"

	"github.com/strongmotion/flatfile-etl/internal/flatfile"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// ExtractMeasure returns the intensity measure values for the given record
// rows. Lookup order: exact column name, lowercase, uppercase; then, for a
// spectral acceleration at a period without a literal column, log-domain
// interpolation across the available SA columns. Anything else is a
// MeasureNotFoundError. Missing cells yield NaN.
func (a *Adapter) ExtractMeasure(records []int, measure string) ([]float64, error) {
	for _, name := range []string{measure, strings.ToLower(measure), strings.ToUpper(measure)} {
		if col, ok := a.table.Column(name); ok {
			return a.columnValues(col, records), nil
		}
	}
	// The reader canonicalizes measure columns, so "pga" also resolves here.
	if canonical, ok := schema.CanonicalMeasure(measure); ok {
		if col, ok := a.table.Column(canonical); ok {
			return a.columnValues(col, records), nil
		}
	}

	m, err := schema.ParseMeasure(measure)
	if err != nil || !m.IsSA() {
		return nil, &MeasureNotFoundError{Measure: measure}
	}
	return a.interpolateSA(records, m.Period)
}

func (a *Adapter) columnValues(col *flatfile.Column, records []int) []float64 {
	out := make([]float64, len(records))
	for j, i := range records {
		v, ok := col.Float(i)
		if !ok {
			v = math.NaN()
		}
		out[j] = v
	}
	return out
}

// saColumns returns the table's spectral acceleration columns sorted by
// ascending period.
func (a *Adapter) saColumns() (periods []float64, cols []*flatfile.Column) {
	type sa struct {
		period float64
		col    *flatfile.Column
	}
	var found []sa
	for _, name := range a.table.ColumnNames() {
		m, err := schema.ParseMeasure(name)
		if err != nil || !m.IsSA() {
			continue
		}
		col, _ := a.table.Column(name)
		found = append(found, sa{period: m.Period, col: col})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].period < found[j].period })
	for _, f := range found {
		periods = append(periods, f.period)
		cols = append(cols, f.col)
	}
	return periods, cols
}

// interpolateSA derives SA at the target period by log-log linear
// interpolation: log10(amplitude) fitted against log10(period), evaluated at
// the target and exponentiated back from log space. Targets outside the
// available period span clamp to the nearest endpoint. At least two SA
// columns are required.
func (a *Adapter) interpolateSA(records []int, period float64) ([]float64, error) {
	periods, cols := a.saColumns()
	if len(periods) < 2 {
		return nil, &MeasureNotFoundError{Measure: schema.Measure{Name: schema.MeasureSA, Period: period}.String()}
	}

	target := period
	if target < periods[0] {
		target = periods[0]
	}
	if target > periods[len(periods)-1] {
		target = periods[len(periods)-1]
	}
	logTarget := math.Log10(target)

	logPeriods := make([]float64, len(periods))
	for k, p := range periods {
		logPeriods[k] = math.Log10(p)
	}

	out := make([]float64, len(records))
	logAmps := make([]float64, len(periods))
	for j, row := range records {
		valid := true
		for k, col := range cols {
			v, ok := col.Float(row)
			if !ok || v <= 0 {
				valid = false
				break
			}
			logAmps[k] = math.Log10(v)
		}
		if !valid {
			out[j] = math.NaN()
			continue
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(logPeriods, logAmps); err != nil {
			return nil, &MeasureNotFoundError{Measure: schema.Measure{Name: schema.MeasureSA, Period: period}.String()}
		}
		out[j] = math.Pow(10, pl.Predict(logTarget))
	}
	return out, nil
}
