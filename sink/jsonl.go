package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSONLinesBackend writes one JSON object per line, e.g. to stdout when a
// job runs under a supervisor that collects its output.
type JSONLinesBackend struct {
	mu  sync.Mutex
	enc *json.Encoder
	w   io.Writer
}

type jsonLine struct {
	Type    string   `json:"type"`
	Set     string   `json:"set"`
	Records []Record `json:"records,omitempty"`
}

// NewJSONLinesBackend writes to w.
func NewJSONLinesBackend(w io.Writer) *JSONLinesBackend {
	return &JSONLinesBackend{enc: json.NewEncoder(w), w: w}
}

func (b *JSONLinesBackend) Insert(_ context.Context, set string, records []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enc.Encode(jsonLine{Type: "insert_records", Set: set, Records: records})
}

func (b *JSONLinesBackend) Clear(_ context.Context, set string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enc.Encode(jsonLine{Type: "clear_records", Set: set})
}

// Close closes the underlying writer if it is an io.Closer other than stdout.
func (b *JSONLinesBackend) Close() error {
	if b.w == os.Stdout || b.w == os.Stderr {
		return nil
	}
	if c, ok := b.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
