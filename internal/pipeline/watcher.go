package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirExtractor implements Extractor by watching a drop directory for new
// flatfiles. Files already present at startup are emitted first, in directory
// order. Producers should move files into the directory atomically (write
// elsewhere, then rename) so a Create event sees complete content.
type DirExtractor struct {
	dir     string
	watcher *fsnotify.Watcher
	pending chan RawFlatfile
	logger  *slog.Logger
	done    chan struct{}
}

// NewDirExtractor watches dir for new ".csv" and ".csv.gz" files.
func NewDirExtractor(dir string, logger *slog.Logger) (*DirExtractor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	e := &DirExtractor{
		dir:     dir,
		watcher: watcher,
		pending: make(chan RawFlatfile, 1024),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go e.run()
	return e, nil
}

// run scans pre-existing files, then forwards watcher events. Deduplication
// by path keeps a file re-announced by multiple events from being processed
// twice.
func (e *DirExtractor) run() {
	defer close(e.done)
	seen := make(map[string]struct{})

	entries, err := os.ReadDir(e.dir)
	if err != nil {
		e.logger.Error("scan input dir failed", "dir", e.dir, "error", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		e.enqueue(filepath.Join(e.dir, entry.Name()), seen)
	}

	for {
		select {
		case ev, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				e.enqueue(ev.Name, seen)
			}
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error("watcher error", "error", err)
		}
	}
}

func (e *DirExtractor) enqueue(path string, seen map[string]struct{}) {
	if !isFlatfileName(path) {
		return
	}
	if _, dup := seen[path]; dup {
		return
	}
	seen[path] = struct{}{}
	select {
	case e.pending <- RawFlatfile{Path: path, DetectedAt: time.Now()}:
	default:
		e.logger.Warn("input queue full, dropping file", "path", path)
	}
}

func isFlatfileName(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".csv.gz")
}

// Next blocks until a new flatfile appears or the context is cancelled.
func (e *DirExtractor) Next(ctx context.Context) (RawFlatfile, error) {
	select {
	case <-ctx.Done():
		return RawFlatfile{}, ctx.Err()
	case raw := <-e.pending:
		return raw, nil
	}
}

// Close stops the watcher and its forwarding goroutine.
func (e *DirExtractor) Close() error {
	err := e.watcher.Close()
	<-e.done
	return err
}
