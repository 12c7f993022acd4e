package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed columns.yaml
var columnsYAML []byte

// Registry is the immutable set of registered flatfile columns. It is built
// once by Load (or NewRegistry in tests) and passed by reference to every
// component that resolves column names; nothing mutates it after construction.
type Registry struct {
	order   []string          // canonical names in registry order
	columns map[string]Column // canonical name -> metadata
	aliases map[string]string // lowercased alias -> canonical name
}

// Load builds the Registry from the embedded columns.yaml.
func Load() (*Registry, error) {
	return loadYAML(columnsYAML)
}

// NewRegistry builds a Registry from explicit column metadata. Intended for
// tests and for callers that assemble registries from a persistence layer.
func NewRegistry(cols []Column) (*Registry, error) {
	r := &Registry{
		columns: make(map[string]Column, len(cols)),
		aliases: make(map[string]string),
	}
	for _, c := range cols {
		c = withKindDefaults(c)
		if err := c.validate(); err != nil {
			return nil, err
		}
		if !containsFold(c.Aliases, c.Name) {
			c.Aliases = append([]string{c.Name}, c.Aliases...)
		}
		if _, dup := r.columns[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		r.columns[c.Name] = c
		r.order = append(r.order, c.Name)
		for _, a := range c.Aliases {
			key := strings.ToLower(a)
			if prev, dup := r.aliases[key]; dup && prev != c.Name {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", a, prev, c.Name)
			}
			r.aliases[key] = c.Name
		}
	}
	return r, nil
}

// withKindDefaults applies the int/bool zero-value rule: kinds that cannot
// represent missing values always get a default.
func withKindDefaults(c Column) Column {
	if c.Default != nil {
		return c
	}
	switch c.Kind {
	case KindInt:
		c.Default = int64(0)
	case KindBool:
		c.Default = false
	}
	return c
}

// Resolve maps a raw incoming column name to its canonical registered name.
// Resolution is a pure lookup over the alias table (case-insensitive); the
// second result is false for unregistered names.
func (r *Registry) Resolve(raw string) (string, bool) {
	name, ok := r.aliases[strings.ToLower(strings.TrimSpace(raw))]
	return name, ok
}

// Lookup returns the metadata for a raw or canonical column name.
func (r *Registry) Lookup(name string) (Column, bool) {
	canonical, ok := r.Resolve(name)
	if !ok {
		return Column{}, false
	}
	return r.columns[canonical], true
}

// Columns returns all registered columns in registry order.
func (r *Registry) Columns() []Column {
	out := make([]Column, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.columns[name])
	}
	return out
}

// Names returns the canonical column names in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Required returns the canonical names of all required columns.
func (r *Registry) Required() []string {
	var out []string
	for _, name := range r.order {
		if r.columns[name].Required {
			out = append(out, name)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// yamlColumn mirrors one columns.yaml entry.
type yamlColumn struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Category   string   `yaml:"category"`
	Aliases    []string `yaml:"aliases"`
	Default    any      `yaml:"default"`
	Bounds     *struct {
		Min *float64 `yaml:"min"`
		Max *float64 `yaml:"max"`
	} `yaml:"bounds"`
	Categories []string `yaml:"categories"`
	Required   bool     `yaml:"required"`
}

type yamlFile struct {
	Columns []yamlColumn `yaml:"columns"`
}

func loadYAML(data []byte) (*Registry, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse column registry: %w", err)
	}
	cols := make([]Column, 0, len(f.Columns))
	for _, yc := range f.Columns {
		kind, err := parseKind(yc.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", yc.Name, err)
		}
		category := CategoryUnknown
		if yc.Category != "" {
			category, err = parseCategory(yc.Category)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", yc.Name, err)
			}
		}
		def, err := coerceDefault(kind, yc.Default)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", yc.Name, err)
		}
		col := Column{
			Name:       yc.Name,
			Aliases:    yc.Aliases,
			Kind:       kind,
			Category:   category,
			Default:    def,
			Categories: yc.Categories,
			Required:   yc.Required,
		}
		if yc.Bounds != nil {
			col.Bounds = &Bounds{Min: yc.Bounds.Min, Max: yc.Bounds.Max}
		}
		cols = append(cols, col)
	}
	return NewRegistry(cols)
}

// coerceDefault converts the loosely-typed YAML default into the Go type
// matching the column kind.
func coerceDefault(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindString, KindCategorical:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindDatetime:
		if s, ok := v.(string); ok {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("datetime default %q: %w", s, err)
			}
			return t, nil
		}
	}
	return nil, fmt.Errorf("default %v (%T) incompatible with kind %s", v, v, kind)
}
