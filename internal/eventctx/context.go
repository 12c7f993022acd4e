// Package eventctx groups flatfile rows into per-event contexts.
//
// A context is the bundle a ground-motion model needs to be evaluated against
// the observations of one earthquake: single-valued rupture attributes plus
// per-record site and distance vectors. Missing attributes are derived by the
// standard fallback rules (rjb from repi, rrup from rhypo, rupture width from
// the WC1994 magnitude-area scaling relation, basin depths from vs30) so that
// downstream residual computation always sees complete arrays.
package eventctx

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float serializes like float64 but renders NaN as JSON null, the wire form
// of a missing context attribute.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(f), 'g', -1, 64)), nil
}

// FloatVec is a float64 slice whose NaN elements serialize as JSON null.
type FloatVec []float64

func (v FloatVec) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 2+len(v)*8)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(f) {
			buf = append(buf, "null"...)
		} else {
			buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
		}
	}
	return append(buf, ']'), nil
}

// MeasureNotFoundError means a requested intensity measure is absent from the
// flatfile and not derivable by spectral interpolation.
type MeasureNotFoundError struct {
	Measure string
}

func (e *MeasureNotFoundError) Error() string {
	return fmt.Sprintf("intensity measure %q not found in flatfile and not derivable", e.Measure)
}

// Rupture holds the single-valued rupture attributes of one event, taken from
// the first row of its group. Absent values are NaN unless a fallback rule
// fills them.
type Rupture struct {
	Magnitude float64 `json:"magnitude"`
	Strike    float64 `json:"strike"`
	Dip       float64 `json:"dip"`
	Rake      float64 `json:"rake"`
	HypoDepth float64 `json:"hypocenter_depth"`
	HypoLat   float64 `json:"hypocenter_latitude"`
	HypoLon   float64 `json:"hypocenter_longitude"`
	ZTOR      float64 `json:"depth_top_of_rupture"`
	Width     float64 `json:"rupture_width"`
}

// MarshalJSON renders absent attributes (NaN) as null.
func (r Rupture) MarshalJSON() ([]byte, error) {
	type wire struct {
		Magnitude Float `json:"magnitude"`
		Strike    Float `json:"strike"`
		Dip       Float `json:"dip"`
		Rake      Float `json:"rake"`
		HypoDepth Float `json:"hypocenter_depth"`
		HypoLat   Float `json:"hypocenter_latitude"`
		HypoLon   Float `json:"hypocenter_longitude"`
		ZTOR      Float `json:"depth_top_of_rupture"`
		Width     Float `json:"rupture_width"`
	}
	return json.Marshal(wire{
		Magnitude: Float(r.Magnitude),
		Strike:    Float(r.Strike),
		Dip:       Float(r.Dip),
		Rake:      Float(r.Rake),
		HypoDepth: Float(r.HypoDepth),
		HypoLat:   Float(r.HypoLat),
		HypoLon:   Float(r.HypoLon),
		ZTOR:      Float(r.ZTOR),
		Width:     Float(r.Width),
	})
}

// Sites holds the per-record site parameter vectors of one context.
type Sites struct {
	Vs30         FloatVec `json:"vs30"`
	Vs30Measured []bool   `json:"vs30measured"`
	Z1pt0        FloatVec `json:"z1pt0"`
	Z2pt5        FloatVec `json:"z2pt5"`
	Backarc      []bool   `json:"backarc"`
}

// Distances holds the per-record distance measure vectors of one context.
type Distances struct {
	Repi    FloatVec `json:"repi"`
	Rhypo   FloatVec `json:"rhypo"`
	Rjb     FloatVec `json:"rjb"`
	Rrup    FloatVec `json:"rrup"`
	Rx      FloatVec `json:"rx"`
	Ry0     FloatVec `json:"ry0"`
	Azimuth FloatVec `json:"azimuth"`
}

// EventContext is the per-event view of a flatfile: the rupture attributes
// and, for each record (station recording), the site and distance values.
// All vectors have length len(Records). Contexts are read-only snapshots;
// they share no mutable state with the source table.
type EventContext struct {
	EventID   string    `json:"event_id"`
	Rupture   Rupture   `json:"rupture"`
	Records   []int     `json:"records"`
	Sites     Sites     `json:"sites"`
	Distances Distances `json:"distances"`
}

// NumRecords returns the number of records (rows) in the context.
func (c *EventContext) NumRecords() int { return len(c.Records) }

func nanVec(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
