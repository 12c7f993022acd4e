package gsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Select(t *testing.T) {
	reg := NewRegistry()

	t.Run("exact names keep request order", func(t *testing.T) {
		models, err := reg.Select([]string{"ChiouYoungs2014", "BooreEtAl2014"})
		require.NoError(t, err)
		require.Len(t, models, 2)
		assert.Equal(t, "ChiouYoungs2014", models[0].Name)
		assert.Equal(t, "BooreEtAl2014", models[1].Name)
	})

	t.Run("wildcard expands in registry order", func(t *testing.T) {
		models, err := reg.Select([]string{"*2014*"})
		require.NoError(t, err)
		var names []string
		for _, m := range models {
			names = append(names, m.Name)
		}
		assert.Equal(t, []string{
			"AbrahamsonEtAl2014",
			"AkkarEtAlRjb2014",
			"BindiEtAl2014Rjb",
			"BooreEtAl2014",
			"CampbellBozorgnia2014",
			"CauzziEtAl2014",
			"ChiouYoungs2014",
		}, names)
	})

	t.Run("wildcard with no matches yields nothing", func(t *testing.T) {
		models, err := reg.Select([]string{"DoesNotExist*"})
		require.NoError(t, err)
		assert.Empty(t, models)
	})

	t.Run("plain unknown name is an error", func(t *testing.T) {
		_, err := reg.Select([]string{"DoesNotExist2014"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown model")
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		models, err := reg.Select([]string{"BooreEtAl2014", "Boore*"})
		require.NoError(t, err)
		assert.Len(t, models, 1)
	})
}

func TestModel_SupportsMeasure(t *testing.T) {
	reg := NewRegistry()
	cy14, ok := reg.Lookup("ChiouYoungs2014")
	require.True(t, ok)
	zhao, ok := reg.Lookup("ZhaoEtAl2006Asc")
	require.True(t, ok)

	tests := []struct {
		model   Model
		measure string
		want    bool
	}{
		{cy14, "PGA", true},
		{cy14, "PGV", true},
		{cy14, "SA(0.2)", true},
		{cy14, "SA(10)", true},
		{cy14, "SA(12)", false},
		{zhao, "PGV", false},
		{zhao, "SA(0.05)", true},
		{zhao, "SA(0.01)", false},
		{cy14, "CAV", false},
	}
	for _, tt := range tests {
		t.Run(tt.model.Name+"/"+tt.measure, func(t *testing.T) {
			got, err := tt.model.SupportsMeasure(tt.measure)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("malformed measure name", func(t *testing.T) {
		_, err := cy14.SupportsMeasure("SA(abc)")
		assert.Error(t, err)
	})
}

func TestRequiredColumns(t *testing.T) {
	reg := NewRegistry()
	akkar, _ := reg.Lookup("AkkarEtAlRjb2014")
	cauzzi, _ := reg.Lookup("CauzziEtAl2014")

	got := RequiredColumns([]Model{akkar, cauzzi})
	assert.Equal(t, []string{"magnitude", "rake", "vs30", "rjb", "rrup"}, got)

	assert.Empty(t, RequiredColumns(nil))
}
