// Package state persists a forecasting job between runs.
//
// A JobState is encoded as msgpack, compressed with zstd and base64-encoded
// so it can travel through line-oriented channels as well as files or Redis.
package state

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/forecast"
	"github.com/sartorproj/arimastream/source"
	"github.com/sartorproj/arimastream/timeseries"
)

// Version is the current JobState format version.
const Version = 1

// ErrMalformedState is returned when stored state cannot be decoded.
var ErrMalformedState = errors.New("malformed job state")

// ModelInfo describes the model a job forecasts with.
type ModelInfo struct {
	Order     arima.Order `msgpack:"order" json:"order"`
	Criterion string      `msgpack:"criterion" json:"criterion"`
	Value     float64     `msgpack:"value" json:"value"`
	TrainedAt time.Time   `msgpack:"trained_at" json:"trained_at"`
	RMSE      float64     `msgpack:"rmse" json:"rmse"`
}

// RunInfo describes the most recent run.
type RunInfo struct {
	ID       string    `msgpack:"id" json:"id"`
	Count    int       `msgpack:"count" json:"count"`
	Finished time.Time `msgpack:"finished" json:"finished"`
}

// JobState is everything a job needs to resume without retraining.
type JobState struct {
	Version   int              `msgpack:"version" json:"version"`
	Predictor forecast.State   `msgpack:"predictor" json:"predictor"`
	Delta     timeseries.Delta `msgpack:"delta" json:"delta"`
	Reader    source.Position  `msgpack:"reader" json:"reader"`
	Model     ModelInfo        `msgpack:"model" json:"model"`
	Run       RunInfo          `msgpack:"run" json:"run"`
}

// Validate checks the invariants a decoded state must hold.
func (s *JobState) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("unsupported version %d", s.Version)
	}
	if len(s.Predictor.Data) != len(s.Predictor.Residuals) {
		return fmt.Errorf("%d observations for %d residuals", len(s.Predictor.Data), len(s.Predictor.Residuals))
	}
	if s.Delta.Step < 0 {
		return fmt.Errorf("negative step %s", s.Delta.Step)
	}
	return s.Model.Order.Validate()
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Encode serializes s to a printable string, stamped with the current Version.
func Encode(s *JobState) (string, error) {
	v := *s
	v.Version = Version
	raw, err := msgpack.Marshal(&v)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(encoder.EncodeAll(raw, nil)), nil
}

// Decode parses a string produced by Encode. Any failure wraps ErrMalformedState.
func Decode(blob string) (*JobState, error) {
	compressed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrMalformedState, err)
	}
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrMalformedState, err)
	}

	var s JobState
	if err := msgpack.NewDecoder(bytes.NewReader(raw)).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: msgpack: %w", ErrMalformedState, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedState, err)
	}
	return &s, nil
}

// Store loads and saves job state. Load returns nil, nil when nothing has
// been stored yet.
type Store interface {
	Load(ctx context.Context) (*JobState, error)
	Save(ctx context.Context, s *JobState) error
}

func decodeFrom(r io.Reader) (*JobState, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, nil
	}
	return Decode(string(blob))
}
