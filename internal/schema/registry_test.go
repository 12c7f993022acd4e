package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedRegistry(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	t.Run("known columns present", func(t *testing.T) {
		for _, name := range []string{"event_id", "magnitude", "vs30", "rjb", "rrup", "rx", "ry0"} {
			_, ok := reg.Lookup(name)
			assert.True(t, ok, "column %q not registered", name)
		}
	})

	t.Run("categorical domains are non-empty", func(t *testing.T) {
		for _, col := range reg.Columns() {
			if col.Kind == KindCategorical {
				assert.NotEmpty(t, col.Categories, "column %q", col.Name)
			}
		}
	})

	t.Run("aliases include canonical name", func(t *testing.T) {
		for _, col := range reg.Columns() {
			assert.Contains(t, col.Aliases, col.Name)
		}
	})

	t.Run("int and bool columns always have defaults", func(t *testing.T) {
		for _, col := range reg.Columns() {
			if col.Kind == KindInt || col.Kind == KindBool {
				assert.True(t, col.HasDefault(), "column %q", col.Name)
			}
		}
	})
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	tests := []struct {
		raw       string
		canonical string
		ok        bool
	}{
		{"magnitude", "magnitude", true},
		{"Mw", "magnitude", true},
		{"MAG", "magnitude", true},
		{"  vs30_m_sec ", "vs30", true},
		{"epicentral_distance", "repi", true},
		{"ztor", "depth_top_of_rupture", true},
		{"no_such_column", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := reg.Resolve(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.canonical, got)
		})
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Run("categorical without domain", func(t *testing.T) {
		_, err := NewRegistry([]Column{{Name: "c", Kind: KindCategorical}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-empty domain")
	})

	t.Run("inverted bounds", func(t *testing.T) {
		lo, hi := 10.0, 1.0
		_, err := NewRegistry([]Column{{Name: "c", Kind: KindFloat, Bounds: &Bounds{Min: &lo, Max: &hi}}})
		require.Error(t, err)
	})

	t.Run("bounds on non-numeric kind", func(t *testing.T) {
		lo := 0.0
		_, err := NewRegistry([]Column{{Name: "c", Kind: KindString, Bounds: &Bounds{Min: &lo}}})
		require.Error(t, err)
	})

	t.Run("default type mismatch", func(t *testing.T) {
		_, err := NewRegistry([]Column{{Name: "c", Kind: KindFloat, Default: "oops"}})
		require.Error(t, err)
	})

	t.Run("duplicate alias", func(t *testing.T) {
		_, err := NewRegistry([]Column{
			{Name: "a", Kind: KindFloat, Aliases: []string{"a", "shared"}},
			{Name: "b", Kind: KindFloat, Aliases: []string{"b", "shared"}},
		})
		require.Error(t, err)
	})

	t.Run("int zero default injected", func(t *testing.T) {
		reg, err := NewRegistry([]Column{{Name: "n", Kind: KindInt}})
		require.NoError(t, err)
		col, ok := reg.Lookup("n")
		require.True(t, ok)
		assert.Equal(t, int64(0), col.Default)
	})
}
