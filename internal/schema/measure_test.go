package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		in   string
		want Measure
	}{
		{"PGA", Measure{Name: MeasurePGA}},
		{"pga", Measure{Name: MeasurePGA}},
		{" pgv ", Measure{Name: MeasurePGV}},
		{"ia", Measure{Name: MeasureIA}},
		{"CAV", Measure{Name: MeasureCAV}},
		{"SA(0.1)", Measure{Name: MeasureSA, Period: 0.1}},
		{"sa( 0.1 )", Measure{Name: MeasureSA, Period: 0.1}},
		{"SA(1e-2)", Measure{Name: MeasureSA, Period: 0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMeasure(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMeasure_Errors(t *testing.T) {
	for _, in := range []string{"SA", "SA()", "SA(abc)", "SA(-0.1)", "SA(0)", "PXA", ""} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMeasure(in)
			assert.Error(t, err)
		})
	}
}

func TestMeasure_String(t *testing.T) {
	assert.Equal(t, "PGA", Measure{Name: MeasurePGA}.String())
	assert.Equal(t, "SA(0.1)", Measure{Name: MeasureSA, Period: 0.1}.String())
	assert.Equal(t, "SA(1.5)", Measure{Name: MeasureSA, Period: 1.5}.String())
}

func TestCanonicalMeasure(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"pga", "PGA", true},
		{"Sa(0.10)", "SA(0.1)", true},
		{"sa(2)", "SA(2)", true},
		{"vs30", "", false},
		{"SA", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalMeasure(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
