package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// NDJSONLoader writes one JSON line per context record. It is the sink used
// when no Kafka brokers are configured (offline runs, local debugging).
type NDJSONLoader struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNDJSONLoader writes records to w, one JSON object per line.
func NewNDJSONLoader(w io.Writer) *NDJSONLoader {
	return &NDJSONLoader{w: w}
}

func (l *NDJSONLoader) LoadBatch(_ context.Context, records []ContextRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	enc := json.NewEncoder(l.w)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode context record: %w", err)
		}
	}
	return nil
}
