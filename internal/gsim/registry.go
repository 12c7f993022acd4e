// Package gsim holds the registry of supported ground-shaking intensity
// models (GSIMs): for each model, the context properties it requires and the
// intensity measures it is defined for. The actual model mathematics lives in
// an external residual-computation collaborator; this registry only answers
// "which columns must the flatfile provide" and "is this measure valid for
// this model".
package gsim

import (
	"fmt"

	"github.com/strongmotion/flatfile-etl/internal/grammar"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// PeriodRange bounds the spectral acceleration periods a model is defined
// for, in seconds.
type PeriodRange struct {
	Min float64
	Max float64
}

// Model describes one registered GSIM.
type Model struct {
	Name             string
	RuptureParams    []string // required rupture columns
	SiteParams       []string // required site columns
	DistanceMeasures []string // required distance columns
	Measures         []string // defined intensity measures; "SA" marks period-dependent support
	SAPeriods        *PeriodRange
}

// Registry is the immutable set of registered models, built once at process
// start and passed to every component needing model metadata.
type Registry struct {
	names  []string
	models map[string]Model
}

// NewRegistry builds the registry from the built-in model table.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Model, len(builtinModels))}
	for _, m := range builtinModels {
		r.names = append(r.names, m.Name)
		r.models[m.Name] = m
	}
	return r
}

// Names returns all registered model names in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Lookup returns a model by exact name.
func (r *Registry) Lookup(name string) (Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Select resolves model name tokens, expanding glob wildcards against the
// registry vocabulary. A plain token naming an unregistered model is an
// error; a wildcard with no matches contributes nothing.
func (r *Registry) Select(patterns []string) ([]Model, error) {
	names, err := grammar.ExpandWildcards(patterns, r.names)
	if err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(names))
	for _, name := range names {
		m, ok := r.models[name]
		if !ok {
			return nil, fmt.Errorf("unknown model %q", name)
		}
		out = append(out, m)
	}
	return out, nil
}

// SupportsMeasure reports whether the model is defined for the measure,
// checking SA period bounds when present.
func (m Model) SupportsMeasure(measure string) (bool, error) {
	parsed, err := schema.ParseMeasure(measure)
	if err != nil {
		return false, err
	}
	for _, name := range m.Measures {
		if name != parsed.Name {
			continue
		}
		if !parsed.IsSA() || m.SAPeriods == nil {
			return true, nil
		}
		return parsed.Period >= m.SAPeriods.Min && parsed.Period <= m.SAPeriods.Max, nil
	}
	return false, nil
}

// RequiredColumns returns the union of the context columns the given models
// require, deduplicated in first-seen order.
func RequiredColumns(models []Model) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(names []string) {
		for _, n := range names {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	for _, m := range models {
		add(m.RuptureParams)
		add(m.SiteParams)
		add(m.DistanceMeasures)
	}
	return out
}
