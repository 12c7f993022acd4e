package pipeline_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongmotion/flatfile-etl/internal/eventctx"
	"github.com/strongmotion/flatfile-etl/internal/observability"
	"github.com/strongmotion/flatfile-etl/internal/pipeline"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

// --- mocks ---

type mockExtractor struct {
	files []pipeline.RawFlatfile
	index atomic.Int64
}

func (m *mockExtractor) Next(ctx context.Context) (pipeline.RawFlatfile, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.files) {
		// block until context cancelled to simulate waiting for new files
		<-ctx.Done()
		return pipeline.RawFlatfile{}, ctx.Err()
	}
	return m.files[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw pipeline.RawFlatfile) ([]pipeline.ContextRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []pipeline.ContextRecord{
		{EventID: "e1", SourceFile: raw.Path, NumRecords: 2},
		{EventID: "e2", SourceFile: raw.Path, NumRecords: 1},
	}, nil
}

type mockLoader struct {
	batches  [][]pipeline.ContextRecord
	failures int // number of initial LoadBatch calls that fail
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, records []pipeline.ContextRecord) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("sink unavailable")
	}
	m.batches = append(m.batches, records)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- pipeline loop ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{files: []pipeline.RawFlatfile{{Path: "/in/a.csv"}}}
	tfm := &mockTransformer{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, ldr.batches, 1)
	assert.Len(t, ldr.batches[0], 2)
	assert.Equal(t, "/in/a.csv", ldr.batches[0][0].SourceFile)
	assert.NoError(t, p.CheckReadiness(context.Background()))

	last, ok := p.LastProcessed()
	require.True(t, ok)
	assert.Equal(t, "/in/a.csv", last)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no files — will block
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
}

func TestPipeline_Run_TransformErrorSkipsFile(t *testing.T) {
	ext := &mockExtractor{files: []pipeline.RawFlatfile{{Path: "/in/bad.csv"}}}
	tfm := &mockTransformer{err: errors.New("no intensity measure column")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, tfm, ldr, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.batches)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoaderRetriesWithBackoff(t *testing.T) {
	ext := &mockExtractor{files: []pipeline.RawFlatfile{{Path: "/in/a.csv"}}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ldr.calls)
	require.Len(t, ldr.batches, 1)
}

// --- transformer ---

const transformCSV = `event_id,magnitude,vs30,repi,PGA,SA(0.1),SA(0.2)
e1,6.0,760,10,0.2,0.5,0.2
e1,6.0,450,20,0.1,0.4,0.3
e2,5.0,300,30,0.05,0.1,0.08
`

func writeFlatfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestTransformer(t *testing.T, measures []string) *pipeline.ContextTransformer {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	tfm, err := pipeline.NewTransformer(reg, measures, slog.Default())
	require.NoError(t, err)
	return tfm
}

func TestContextTransformer_Transform(t *testing.T) {
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	pipeline.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { pipeline.SetClock(nil) })

	path := writeFlatfile(t, transformCSV)
	tfm := newTestTransformer(t, []string{"pga", "SA(0.15)", "PGD"})

	records, err := tfm.Transform(context.Background(), pipeline.RawFlatfile{Path: path})
	require.NoError(t, err)
	require.Len(t, records, 2)

	e1 := records[0]
	assert.Equal(t, "e1", e1.EventID)
	assert.Equal(t, path, e1.SourceFile)
	assert.Equal(t, 2, e1.NumRecords)
	assert.Equal(t, now, e1.ProcessedAt)
	require.NotNil(t, e1.Context)
	assert.Equal(t, 6.0, e1.Context.Rupture.Magnitude)

	assert.Equal(t, eventctx.FloatVec{0.2, 0.1}, e1.Measures["PGA"])
	assert.Len(t, e1.Measures["SA(0.15)"], 2)
	assert.NotContains(t, e1.Measures, "PGD", "absent measure is omitted, not fatal")

	e2 := records[1]
	assert.Equal(t, "e2", e2.EventID)
	assert.Equal(t, 1, e2.NumRecords)
}

func TestContextTransformer_Transform_Errors(t *testing.T) {
	tfm := newTestTransformer(t, []string{"PGA"})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := tfm.Transform(context.Background(), pipeline.RawFlatfile{Path: "/does/not/exist.csv"})
		require.Error(t, err)
	})

	t.Run("no intensity measure column", func(t *testing.T) {
		path := writeFlatfile(t, "event_id,magnitude\ne1,6.0\n")
		_, err := tfm.Transform(context.Background(), pipeline.RawFlatfile{Path: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "intensity measure")
	})
}

func TestNewTransformer_InvalidMeasure(t *testing.T) {
	reg, err := schema.Load()
	require.NoError(t, err)
	_, err = pipeline.NewTransformer(reg, []string{"SA"}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period")
}

// --- sinks and sources ---

func TestNDJSONLoader(t *testing.T) {
	var buf bytes.Buffer
	ldr := pipeline.NewNDJSONLoader(&buf)

	records := []pipeline.ContextRecord{
		{EventID: "e1", NumRecords: 2},
		{EventID: "e2", NumRecords: 1},
	}
	require.NoError(t, ldr.LoadBatch(context.Background(), records))

	scanner := bufio.NewScanner(&buf)
	var ids []string
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		ids = append(ids, rec["event_id"].(string))
	}
	assert.Equal(t, []string{"e1", "e2"}, ids)
}

func TestDirExtractor(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "backlog.csv")
	require.NoError(t, os.WriteFile(existing, []byte(transformCSV), 0o644))

	ext, err := pipeline.NewDirExtractor(dir, slog.Default())
	require.NoError(t, err)
	defer ext.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("pre-existing file emitted first", func(t *testing.T) {
		raw, err := ext.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, existing, raw.Path)
		assert.False(t, raw.DetectedAt.IsZero())
	})

	t.Run("ignored extension never emitted", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
		arrived := filepath.Join(dir, "arrived.csv.gz")
		require.NoError(t, os.WriteFile(arrived, []byte("x"), 0o644))

		raw, err := ext.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, arrived, raw.Path)
	})

	t.Run("blocks until cancelled when idle", func(t *testing.T) {
		short, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := ext.Next(short)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
