package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/strongmotion/flatfile-etl/internal/observability"
)

// Extractor yields the next incoming flatfile, blocking until one appears or
// the context is cancelled.
type Extractor interface {
	Next(ctx context.Context) (RawFlatfile, error)
}

// Transformer converts one flatfile into per-event context records.
type Transformer interface {
	Transform(ctx context.Context, raw RawFlatfile) ([]ContextRecord, error)
}

// Loader writes context records to the destination.
type Loader interface {
	LoadBatch(ctx context.Context, records []ContextRecord) error
}

// Pipeline orchestrates the extract-transform-load loop over incoming
// flatfiles.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	lastFile    atomic.Value // string: path of the last processed flatfile
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, l Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once the pipeline has processed at least one
// flatfile, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any flatfile yet")
	}
	return nil
}

// LastProcessed returns the path of the most recently processed flatfile,
// false until the first file has been loaded.
func (p *Pipeline) LastProcessed() (string, bool) {
	path, ok := p.lastFile.Load().(string)
	return path, ok
}

// Run executes the ETL loop until the context is cancelled. A flatfile that
// fails to parse is logged and skipped; the same malformed input would fail
// identically on retry, so there is none. Loader failures back off
// exponentially (200ms doubling to a 5s cap) because the sink, unlike the
// input, can recover.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		raw, err := p.extractor.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("extract failed", "error", err)
			continue
		}
		p.processFile(ctx, raw)
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func (p *Pipeline) processFile(ctx context.Context, raw RawFlatfile) {
	start := time.Now()

	records, err := p.transformer.Transform(ctx, raw)
	if err != nil {
		p.logger.Warn("flatfile rejected", "error", err, "path", raw.Path)
		p.metrics.FilesFailed.Inc()
		return
	}

	if !p.loadWithBackoff(ctx, records, raw.Path) {
		return
	}

	rows := 0
	for _, rec := range records {
		rows += rec.NumRecords
	}
	p.metrics.FilesProcessed.Inc()
	p.metrics.RowsRead.Add(float64(rows))
	p.metrics.ContextsProduced.Add(float64(len(records)))
	p.metrics.ContextsPerFile.Observe(float64(len(records)))
	p.metrics.ReadDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.lastFile.Store(raw.Path)
	p.logger.Info("flatfile processed", "path", raw.Path, "rows", rows, "contexts", len(records))
}

// loadWithBackoff retries the loader with exponential backoff until it
// succeeds or the context is cancelled. Returns false when cancelled.
func (p *Pipeline) loadWithBackoff(ctx context.Context, records []ContextRecord, path string) bool {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		err := p.loader.LoadBatch(ctx, records)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load batch failed", "error", err, "path", path, "contexts", len(records))
		if !sleepWithContext(ctx, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
