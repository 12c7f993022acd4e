// Command validate performs offline integrity checks on one flatfile: dialect
// inference, typed parsing, required columns and bounds, optional row
// filtering, event grouping, and intensity measure extraction for a set of
// models. It prints a per-phase pass/fail report and exits non-zero when any
// phase fails.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -flatfile data/esm_2019.csv \
//	  -query "(magnitude > 4) & notna(vs30)" \
//	  -measures "PGA 'SA(0.3)'" \
//	  -models "BooreEtAl2014 Akkar*"
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/strongmotion/flatfile-etl/internal/eventctx"
	"github.com/strongmotion/flatfile-etl/internal/flatfile"
	"github.com/strongmotion/flatfile-etl/internal/grammar"
	"github.com/strongmotion/flatfile-etl/internal/gsim"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	flatfilePath := flag.String("flatfile", "", "path to the flatfile CSV (optionally .gz)")
	query := flag.String("query", "", "optional row-filter expression, e.g. \"(magnitude > 6) & (rrup < 10)\"")
	measures := flag.String("measures", "", "optional intensity measures to extract, shell-tokenized")
	models := flag.String("models", "", "optional model name tokens (wildcards allowed)")
	flag.Parse()

	if *flatfilePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*flatfilePath, *query, *measures, *models); code != 0 {
		os.Exit(code)
	}
}

func run(path, query, measures, models string) int {
	registry, err := schema.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "column registry: %v\n", err)
		return 2
	}

	var phases []*phase

	read := &phase{name: "read flatfile"}
	phases = append(phases, read)
	table, err := flatfile.ReadFile(path, registry, flatfile.ReadOptions{})
	if err != nil {
		read.errorf("%v", err)
		return report(phases)
	}
	fmt.Printf("read %d rows, %d columns, %d intensity measures\n",
		table.NumRows(), len(table.ColumnNames()), len(table.IntensityColumns()))

	structural := &phase{name: "required columns and bounds"}
	phases = append(phases, structural)
	for _, name := range table.MissingRequired(registry) {
		structural.errorf("required column %q missing", name)
	}
	for _, msg := range table.BoundsViolations(registry) {
		structural.errorf("%s", msg)
	}

	if query != "" {
		filter := &phase{name: "row filter"}
		phases = append(phases, filter)
		filtered, err := table.Query(query)
		if err != nil {
			filter.errorf("%v", err)
		} else {
			fmt.Printf("query kept %d of %d rows\n", filtered.NumRows(), table.NumRows())
			table = filtered
		}
	}

	grouping := &phase{name: "event grouping"}
	phases = append(phases, grouping)
	adapter, err := eventctx.NewAdapter(table, registry)
	var contexts []*eventctx.EventContext
	if err != nil {
		grouping.errorf("%v", err)
	} else if contexts, err = adapter.GroupByEvent(); err != nil {
		grouping.errorf("%v", err)
	} else {
		fmt.Printf("grouped into %d event contexts\n", len(contexts))
	}

	if measures != "" && grouping.passed() {
		phases = append(phases, checkMeasures(adapter, contexts, measures))
	}
	if models != "" {
		phases = append(phases, checkModels(table, models))
	}

	return report(phases)
}

// checkMeasures extracts every requested measure for every context.
func checkMeasures(adapter *eventctx.Adapter, contexts []*eventctx.EventContext, measures string) *phase {
	p := &phase{name: "measure extraction"}
	toks, err := grammar.Tokenize(measures)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	for _, m := range toks {
		for _, ec := range contexts {
			if _, err := adapter.ExtractMeasure(ec.Records, m); err != nil {
				p.errorf("event %q: %v", ec.EventID, err)
				break
			}
		}
	}
	return p
}

// checkModels verifies the flatfile carries every column the selected models
// require.
func checkModels(table *flatfile.Table, models string) *phase {
	p := &phase{name: "model requirements"}
	toks, err := grammar.Tokenize(models)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	selected, err := gsim.NewRegistry().Select(toks)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(selected) == 0 {
		p.errorf("no models matched %q", models)
		return p
	}
	for _, name := range gsim.RequiredColumns(selected) {
		if _, ok := table.Column(name); !ok {
			p.errorf("column %q required by selected models is missing (a fallback rule may still cover it)", name)
		}
	}
	return p
}

func report(phases []*phase) int {
	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}
