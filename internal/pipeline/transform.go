package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/strongmotion/flatfile-etl/internal/eventctx"
	"github.com/strongmotion/flatfile-etl/internal/flatfile"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// ContextTransformer implements Transformer: it reads one flatfile into a
// typed table, groups it into event contexts and extracts the configured
// intensity measures per context.
type ContextTransformer struct {
	reg      *schema.Registry
	measures []string
	logger   *slog.Logger
}

// NewTransformer creates a ContextTransformer. measures are canonical
// intensity measure names; an empty list publishes contexts without measure
// vectors.
func NewTransformer(reg *schema.Registry, measures []string, logger *slog.Logger) (*ContextTransformer, error) {
	canonical := make([]string, 0, len(measures))
	for _, m := range measures {
		parsed, err := schema.ParseMeasure(m)
		if err != nil {
			return nil, fmt.Errorf("configured measure: %w", err)
		}
		canonical = append(canonical, parsed.String())
	}
	return &ContextTransformer{reg: reg, measures: canonical, logger: logger}, nil
}

func (t *ContextTransformer) Transform(_ context.Context, raw RawFlatfile) ([]ContextRecord, error) {
	table, err := flatfile.ReadFile(raw.Path, t.reg, flatfile.ReadOptions{})
	if err != nil {
		return nil, err
	}

	adapter, err := eventctx.NewAdapter(table, t.reg)
	if err != nil {
		return nil, err
	}
	contexts, err := adapter.GroupByEvent()
	if err != nil {
		return nil, err
	}

	records := make([]ContextRecord, 0, len(contexts))
	for _, ec := range contexts {
		rec := ContextRecord{
			EventID:     ec.EventID,
			SourceFile:  raw.Path,
			NumRecords:  ec.NumRecords(),
			Context:     ec,
			ProcessedAt: clock.Now(),
		}
		rec.Measures = t.extractMeasures(adapter, ec)
		records = append(records, rec)
	}
	return records, nil
}

// extractMeasures pulls the configured measures for one context. A measure
// absent from this flatfile (and not derivable by interpolation) is logged
// and omitted rather than failing the file: flatfiles legitimately differ in
// which measures they carry.
func (t *ContextTransformer) extractMeasures(adapter *eventctx.Adapter, ec *eventctx.EventContext) map[string]eventctx.FloatVec {
	if len(t.measures) == 0 {
		return nil
	}
	out := make(map[string]eventctx.FloatVec, len(t.measures))
	for _, m := range t.measures {
		vals, err := adapter.ExtractMeasure(ec.Records, m)
		if err != nil {
			var notFound *eventctx.MeasureNotFoundError
			if errors.As(err, &notFound) {
				t.logger.Debug("measure unavailable", "measure", m, "event", ec.EventID)
				continue
			}
			t.logger.Warn("measure extraction failed", "measure", m, "event", ec.EventID, "error", err)
			continue
		}
		out[m] = vals
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
