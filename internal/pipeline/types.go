package pipeline

import (
	"time"

	"github.com/strongmotion/flatfile-etl/internal/eventctx"
)

// RawFlatfile is one incoming flatfile detected by the extractor.
type RawFlatfile struct {
	Path       string
	DetectedAt time.Time
}

// ContextRecord is the serialized form of one event context destined for the
// sink: the context itself plus the configured intensity measures extracted
// per record.
type ContextRecord struct {
	EventID     string                       `json:"event_id"`
	SourceFile  string                       `json:"source_file"`
	NumRecords  int                          `json:"num_records"`
	Context     *eventctx.EventContext       `json:"context"`
	Measures    map[string]eventctx.FloatVec `json:"measures,omitempty"`
	ProcessedAt time.Time                    `json:"processed_at"`
}
