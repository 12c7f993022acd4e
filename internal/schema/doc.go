// Package schema defines the flatfile column registry.
//
// # Flatfiles
//
// A flatfile is a denormalized CSV table of ground-motion observations: each
// row is one station recording of one earthquake, and the columns mix rupture
// parameters (magnitude, fault geometry), site parameters (vs30, basin
// depths), source-to-site distance measures (repi, rjb, rrup, ...) and
// observed intensity measures (PGA, PGV, spectral acceleration at fixed
// periods).
//
// # Column registry
//
// The registry maps every known logical column to its metadata: data kind,
// category, default value, numeric bounds, categorical domain, aliases and
// required flag. It is loaded once at process start from the embedded
// columns.yaml and is immutable afterwards; components receive it by value
// and never re-derive it from ambient state.
//
// Columns whose kind is int or bool cannot represent missing values, so a
// registered int/bool column without an explicit default gets the zero value
// of its kind (0, false). The flatfile reader relies on this when narrowing
// provisionally widened columns after default injection.
//
// # Intensity measure names
//
// Intensity measure columns are named by their measure: "PGA", "PGV", "SA(T)"
// where T is the period in seconds. Spectral acceleration columns are open
// ended (any positive period), so they are recognized by the measure-name
// parser rather than enumerated in columns.yaml. Matching is case-insensitive
// with canonical casing restored on load: "pga" and "Sa(0.1)" resolve to
// "PGA" and "SA(0.1)".
package schema
