package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Intensity measure names supported by the pipeline. SA is period-dependent
// and always written with its period, e.g. "SA(0.1)".
const (
	MeasurePGA = "PGA"
	MeasurePGV = "PGV"
	MeasurePGD = "PGD"
	MeasureCAV = "CAV"
	MeasureIA  = "Ia"
	MeasureSA  = "SA"
)

// scalarMeasures are the period-independent measures, keyed by lowercase name.
var scalarMeasures = map[string]string{
	"pga": MeasurePGA,
	"pgv": MeasurePGV,
	"pgd": MeasurePGD,
	"cav": MeasureCAV,
	"ia":  MeasureIA,
}

// saRe matches a spectral acceleration column name such as "SA(0.1)" or
// "sa(1e-2)", capturing the period token.
var saRe = regexp.MustCompile(`^(?i:sa)\s*\(\s*([^)]+?)\s*\)$`)

// Measure identifies an intensity measure type. Period is meaningful only
// when Name == MeasureSA.
type Measure struct {
	Name   string
	Period float64
}

// String renders the canonical column name of the measure.
func (m Measure) String() string {
	if m.Name == MeasureSA {
		return fmt.Sprintf("SA(%s)", strconv.FormatFloat(m.Period, 'g', -1, 64))
	}
	return m.Name
}

// IsSA reports whether the measure is a spectral acceleration.
func (m Measure) IsSA() bool { return m.Name == MeasureSA }

// ParseMeasure parses an intensity measure name, case-insensitively. It
// returns an error for names that are not a known measure, including SA
// without a period or with a non-numeric or negative period.
func ParseMeasure(s string) (Measure, error) {
	trimmed := strings.TrimSpace(s)
	if canonical, ok := scalarMeasures[strings.ToLower(trimmed)]; ok {
		return Measure{Name: canonical}, nil
	}
	if m := saRe.FindStringSubmatch(trimmed); m != nil {
		period, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Measure{}, fmt.Errorf("invalid SA period %q in %q", m[1], s)
		}
		if period <= 0 {
			return Measure{}, fmt.Errorf("non-positive SA period in %q", s)
		}
		return Measure{Name: MeasureSA, Period: period}, nil
	}
	if strings.EqualFold(trimmed, MeasureSA) {
		return Measure{}, fmt.Errorf("spectral acceleration requires a period, e.g. SA(0.1)")
	}
	return Measure{}, fmt.Errorf("unknown intensity measure %q", s)
}

// CanonicalMeasure maps a raw column name to its canonical measure spelling.
// The second result is false when the name is not an intensity measure.
func CanonicalMeasure(raw string) (string, bool) {
	m, err := ParseMeasure(raw)
	if err != nil {
		return "", false
	}
	return m.String(), true
}
