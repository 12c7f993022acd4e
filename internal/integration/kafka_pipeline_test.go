//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/strongmotion/flatfile-etl/internal/adapter/kafka"
	"github.com/strongmotion/flatfile-etl/internal/config"
	"github.com/strongmotion/flatfile-etl/internal/observability"
	"github.com/strongmotion/flatfile-etl/internal/pipeline"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

const testSinkTopic = "test-event-contexts"

const testFlatfile = `event_id,magnitude,rake,hypocenter_depth,vs30,repi,rhypo,PGA,SA(0.1),SA(0.2)
e1,6.0,0,10,760,10,12,0.2,0.5,0.2
e1,6.0,0,10,450,20,22,0.1,0.4,0.3
e2,5.0,,8,300,30,31,0.05,0.1,0.08
`

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("flatfile-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sinkMessage is one deserialized context record read back from the sink.
type sinkMessage struct {
	Record  pipeline.ContextRecord
	Key     string
	Headers map[string]string
}

func readSink(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec pipeline.ContextRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal sink message")

	return sinkMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

// TestKafkaWriterRoundTrip verifies the loader adapter alone: records written
// through kafka.Writer come back intact from the sink topic.
func TestKafkaWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, writer.LoadBatch(ctx, []pipeline.ContextRecord{
		{EventID: "e1", SourceFile: "/in/a.csv", NumRecords: 2, ProcessedAt: now},
	}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	sm := readSink(ctx, t, consumer)
	assert.Equal(t, "e1", sm.Key)
	assert.Equal(t, "e1", sm.Record.EventID)
	assert.Equal(t, 2, sm.Record.NumRecords)
	assert.Equal(t, "/in/a.csv", sm.Headers["source_file"])
	assert.Equal(t, now.Format(time.RFC3339), sm.Headers["processed_at"])
}

// TestPipelineEndToEnd wires the full pipeline (directory watcher → context
// transformer → Kafka writer) against real Kafka and verifies the published
// contexts.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	inputDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "events.csv"), []byte(testFlatfile), 0o644))

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	reg, err := schema.Load()
	require.NoError(t, err)

	extractor, err := pipeline.NewDirExtractor(inputDir, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = extractor.Close() })

	transformer, err := pipeline.NewTransformer(reg, []string{"PGA", "SA(0.15)"}, discardLogger())
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(extractor, transformer, writer, discardLogger(), metrics)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byEvent := make(map[string]sinkMessage, 2)
	for len(byEvent) < 2 {
		sm := readSink(ctx, t, consumer)
		byEvent[sm.Record.EventID] = sm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	e1, ok := byEvent["e1"]
	require.True(t, ok)
	assert.Equal(t, "e1", e1.Key)
	assert.Equal(t, 2, e1.Record.NumRecords)
	require.NotNil(t, e1.Record.Context)
	assert.Equal(t, 6.0, e1.Record.Context.Rupture.Magnitude)
	assert.Len(t, e1.Record.Measures["PGA"], 2)
	assert.Len(t, e1.Record.Measures["SA(0.15)"], 2)
	assert.Contains(t, e1.Headers, "processed_at")
	_, err = time.Parse(time.RFC3339, e1.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	e2, ok := byEvent["e2"]
	require.True(t, ok)
	assert.Equal(t, 1, e2.Record.NumRecords)
}

// TestPipelineRejectsBadFlatfile verifies that a malformed flatfile (poison
// pill) is skipped and the pipeline continues with valid input.
func TestPipelineRejectsBadFlatfile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	inputDir := t.TempDir()
	// No intensity measure column: rejected at read time.
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "bad.csv"),
		[]byte("event_id,magnitude\ne9,6.0\n"), 0o644))

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	reg, err := schema.Load()
	require.NoError(t, err)

	extractor, err := pipeline.NewDirExtractor(inputDir, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = extractor.Close() })

	transformer, err := pipeline.NewTransformer(reg, []string{"PGA"}, discardLogger())
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(extractor, transformer, writer, discardLogger(), observability.NewMetricsForTesting())

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Drop a valid file after the bad one; only its contexts should arrive.
	time.Sleep(time.Second)
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "good.csv"), []byte(testFlatfile), 0o644))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readSink(ctx, t, consumer)
	second := readSink(ctx, t, consumer)
	assert.ElementsMatch(t, []string{"e1", "e2"},
		[]string{first.Record.EventID, second.Record.EventID})
	assert.NotEqual(t, "e9", first.Record.EventID)

	pipelineCancel()
	require.NoError(t, <-errCh)
}
