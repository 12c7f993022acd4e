// Command etl runs the flatfile ETL service: it watches a drop directory for
// ground-motion flatfiles, parses each into a typed table, groups the rows
// into per-event contexts and publishes them to Kafka (or NDJSON on stdout
// when no brokers are configured).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/strongmotion/flatfile-etl/internal/adapter/http"
	kafkaadapter "github.com/strongmotion/flatfile-etl/internal/adapter/kafka"
	"github.com/strongmotion/flatfile-etl/internal/config"
	"github.com/strongmotion/flatfile-etl/internal/grammar"
	"github.com/strongmotion/flatfile-etl/internal/observability"
	"github.com/strongmotion/flatfile-etl/internal/pipeline"
	"github.com/strongmotion/flatfile-etl/internal/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	registry, err := schema.Load()
	if err != nil {
		logger.Error("failed to load column registry", "error", err)
		os.Exit(1)
	}

	measures, err := grammar.Tokenize(cfg.Measures)
	if err != nil {
		logger.Error("invalid MEASURES", "error", err)
		os.Exit(1)
	}

	extractor, err := pipeline.NewDirExtractor(cfg.InputDir, logger)
	if err != nil {
		logger.Error("failed to watch input dir", "error", err, "dir", cfg.InputDir)
		os.Exit(1)
	}

	transformer, err := pipeline.NewTransformer(registry, measures, logger)
	if err != nil {
		logger.Error("invalid measure configuration", "error", err)
		os.Exit(1)
	}

	var loader pipeline.Loader
	var kafkaWriter *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		loader = kafkaWriter
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		loader = pipeline.NewNDJSONLoader(os.Stdout)
		logger.Info("no kafka brokers configured, writing NDJSON to stdout")
	}

	p := pipeline.New(extractor, transformer, loader, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := extractor.Close(); err != nil {
		logger.Error("watcher close error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
