package schema

import (
	"fmt"
	"time"
)

// Kind is the data kind of a flatfile column. It is a closed enum: every
// switch over Kind handles all values and registry load rejects anything else.
type Kind string

const (
	KindInt         Kind = "int"
	KindFloat       Kind = "float"
	KindBool        Kind = "bool"
	KindString      Kind = "str"
	KindDatetime    Kind = "datetime"
	KindCategorical Kind = "categorical"
)

// Numeric reports whether the kind holds numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

func parseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindInt, KindFloat, KindBool, KindString, KindDatetime, KindCategorical:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown column kind %q", s)
	}
}

// Category classifies what a column describes. Unregistered flatfile columns
// are retained with CategoryUnknown.
type Category string

const (
	CategoryRupture   Category = "rupture_parameter"
	CategorySite      Category = "site_parameter"
	CategoryDistance  Category = "distance_measure"
	CategoryIntensity Category = "intensity_measure"
	CategoryUnknown   Category = "unknown"
)

func parseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryRupture, CategorySite, CategoryDistance, CategoryIntensity, CategoryUnknown:
		return Category(s), nil
	default:
		return "", fmt.Errorf("unknown column category %q", s)
	}
}

// Bounds is an optional numeric validity interval. Nil endpoints are open.
type Bounds struct {
	Min *float64
	Max *float64
}

// Column is the metadata of one logical flatfile column. Values are
// constructed by Load and never mutated afterwards.
type Column struct {
	Name       string
	Aliases    []string // always contains Name
	Kind       Kind
	Category   Category
	Default    any // nil when the column has no default; type matches Kind
	Bounds     *Bounds
	Categories []string // allowed values, only when Kind == KindCategorical
	Required   bool
}

// HasDefault reports whether missing cells of this column are replaced after
// load.
func (c Column) HasDefault() bool {
	return c.Default != nil
}

// validate checks the cross-field invariants of a registry entry.
func (c Column) validate() error {
	if c.Name == "" {
		return fmt.Errorf("column with empty name")
	}
	if c.Kind == KindCategorical && len(c.Categories) == 0 {
		return fmt.Errorf("column %q: categorical kind requires a non-empty domain", c.Name)
	}
	if c.Kind != KindCategorical && len(c.Categories) > 0 {
		return fmt.Errorf("column %q: categories given for non-categorical kind %s", c.Name, c.Kind)
	}
	if c.Bounds != nil {
		if !c.Kind.Numeric() {
			return fmt.Errorf("column %q: bounds given for non-numeric kind %s", c.Name, c.Kind)
		}
		if c.Bounds.Min != nil && c.Bounds.Max != nil && *c.Bounds.Min >= *c.Bounds.Max {
			return fmt.Errorf("column %q: bounds min %g >= max %g", c.Name, *c.Bounds.Min, *c.Bounds.Max)
		}
	}
	if c.Default != nil {
		if err := c.checkDefaultType(); err != nil {
			return err
		}
	}
	return nil
}

func (c Column) checkDefaultType() error {
	ok := false
	switch c.Kind {
	case KindInt:
		_, ok = c.Default.(int64)
	case KindFloat:
		_, ok = c.Default.(float64)
	case KindBool:
		_, ok = c.Default.(bool)
	case KindString, KindCategorical:
		_, ok = c.Default.(string)
	case KindDatetime:
		_, ok = c.Default.(time.Time)
	}
	if !ok {
		return fmt.Errorf("column %q: default %v (%T) incompatible with kind %s",
			c.Name, c.Default, c.Default, c.Kind)
	}
	return nil
}
