// Command genflatfile generates a synthetic ground-motion flatfile for test
// fixtures and local pipeline runs. It parses its own output with the actual
// reader and context adapter so the fixture is guaranteed to survive the real
// pipeline, then prints aggregate stats for updating test assertions.
//
// Usage:
//
//	go run ./cmd/genflatfile \
//	  -out testdata/synthetic.csv \
//	  -events 12 -stations 40 -seed 1
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/strongmotion/flatfile-etl/internal/eventctx"
	"github.com/strongmotion/flatfile-etl/internal/flatfile"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

var saPeriods = []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1.0, 2.0}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated flatfile CSV")
	events := flag.Int("events", 10, "number of events")
	stations := flag.Int("stations", 30, "number of recording stations per event")
	missing := flag.Float64("missing", 0.05, "fraction of optional cells left empty")
	seed := flag.Int64("seed", 1, "random seed for reproducible fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	rng := rand.New(rand.NewSource(*seed))

	if err := writeFlatfile(*out, *events, *stations, *missing, rng); err != nil {
		return fmt.Errorf("writing flatfile: %w", err)
	}
	log.Printf("wrote %d events x %d stations: %s", *events, *stations, *out)

	// Round-trip through the real reader and adapter so a broken fixture is
	// caught here, not in a test run.
	registry, err := schema.Load()
	if err != nil {
		return err
	}
	table, err := flatfile.ReadFile(*out, registry, flatfile.ReadOptions{})
	if err != nil {
		return fmt.Errorf("generated flatfile does not parse: %w", err)
	}
	adapter, err := eventctx.NewAdapter(table, registry)
	if err != nil {
		return err
	}
	contexts, err := adapter.GroupByEvent()
	if err != nil {
		return fmt.Errorf("generated flatfile does not group: %w", err)
	}

	printStats(table, contexts, registry)
	return nil
}

func header() []string {
	cols := []string{
		"event_id", "magnitude", "rake", "dip", "strike",
		"hypocenter_depth", "hypocenter_latitude", "hypocenter_longitude",
		"vs30", "vs30measured", "repi", "rhypo", "rjb", "rrup",
		"PGA", "PGV",
	}
	for _, t := range saPeriods {
		cols = append(cols, fmt.Sprintf("SA(%g)", t))
	}
	return cols
}

func writeFlatfile(path string, events, stations int, missing float64, rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header()); err != nil {
		return err
	}

	for e := 0; e < events; e++ {
		ev := randomEvent(e, rng)
		for s := 0; s < stations; s++ {
			if err := w.Write(synthRow(ev, rng, missing)); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// synthEvent holds the per-event source parameters shared by all its rows.
type synthEvent struct {
	id        string
	magnitude float64
	rake      float64
	dip       float64
	strike    float64
	depth     float64
	lat, lon  float64
}

func randomEvent(n int, rng *rand.Rand) synthEvent {
	return synthEvent{
		id:        fmt.Sprintf("EV%04d", n),
		magnitude: 4.0 + 3.5*rng.Float64(),
		rake:      -180 + 360*rng.Float64(),
		dip:       30 + 60*rng.Float64(),
		strike:    360 * rng.Float64(),
		depth:     2 + 18*rng.Float64(),
		lat:       35 + 10*rng.Float64(),
		lon:       20 + 10*rng.Float64(),
	}
}

func synthRow(ev synthEvent, rng *rand.Rand, missing float64) []string {
	repi := 1 + 199*rng.Float64()
	rhypo := math.Sqrt(repi*repi + ev.depth*ev.depth)
	vs30 := 180 + 1200*rng.Float64()

	// A crude attenuation: log amplitude falls off with distance, scales with
	// magnitude, plus lognormal scatter.
	amp := func(period float64) float64 {
		lnA := -1.5 + 1.1*ev.magnitude - 1.6*math.Log(rhypo+10) - 0.3*period + 0.6*rng.NormFloat64()
		return math.Exp(lnA)
	}

	blank := func(v string) string {
		if rng.Float64() < missing {
			return ""
		}
		return v
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

	row := []string{
		ev.id,
		f(ev.magnitude),
		blank(f(ev.rake)),
		blank(f(ev.dip)),
		blank(f(ev.strike)),
		f(ev.depth),
		f(ev.lat),
		f(ev.lon),
		blank(f(vs30)),
		blank(strconv.FormatBool(rng.Float64() < 0.7)),
		f(repi),
		f(rhypo),
		blank(f(math.Max(0, repi-5*rng.Float64()))),
		blank(f(rhypo * (0.9 + 0.1*rng.Float64()))),
		f(amp(0)),
		f(amp(0) * 50),
	}
	for _, t := range saPeriods {
		row = append(row, blank(f(amp(t))))
	}
	return row
}

func printStats(table *flatfile.Table, contexts []*eventctx.EventContext, registry *schema.Registry) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d, Columns: %d, Intensity measures: %d\n",
		table.NumRows(), len(table.ColumnNames()), len(table.IntensityColumns()))
	fmt.Printf("Events: %d\n", len(contexts))

	var minMag, maxMag = math.Inf(1), math.Inf(-1)
	for _, ec := range contexts {
		m := ec.Rupture.Magnitude
		minMag = math.Min(minMag, m)
		maxMag = math.Max(maxMag, m)
	}
	fmt.Printf("Magnitude range: %.2f .. %.2f\n", minMag, maxMag)

	if violations := table.BoundsViolations(registry); len(violations) > 0 {
		fmt.Printf("Bounds violations: %d\n", len(violations))
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
	} else {
		fmt.Println("Bounds violations: none")
	}

	filtered, err := table.Query("magnitude > 6")
	if err == nil {
		fmt.Printf("Rows with magnitude > 6: %d\n", filtered.NumRows())
	}
}
