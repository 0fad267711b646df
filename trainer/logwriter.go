package trainer

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// logWriter re-logs a worker's stderr. JSON lines written by the worker's
// zerolog logger keep their level, message and fields; anything else is
// logged verbatim at warn level.
type logWriter struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	buf     bytes.Buffer
	lastErr string
}

func newLogWriter(logger zerolog.Logger) *logWriter {
	return &logWriter{logger: logger}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, keep it for the next write.
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		w.relog(bytes.TrimSpace(line))
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.relog(bytes.TrimSpace(w.buf.Bytes()))
		w.buf.Reset()
	}
}

// LastError returns the message of the last error-level line.
func (w *logWriter) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *logWriter) relog(line []byte) {
	if len(line) == 0 {
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		w.logger.Warn().Str("output", string(line)).Msg("worker output")
		return
	}

	level := zerolog.InfoLevel
	if s, ok := fields[zerolog.LevelFieldName].(string); ok {
		if l, err := zerolog.ParseLevel(s); err == nil {
			level = l
		}
	}
	msg, _ := fields[zerolog.MessageFieldName].(string)
	delete(fields, zerolog.LevelFieldName)
	delete(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.TimestampFieldName)

	if level >= zerolog.ErrorLevel {
		w.lastErr = msg
		if e, ok := fields[zerolog.ErrorFieldName].(string); ok {
			w.lastErr = e
		}
	}
	w.logger.WithLevel(level).Fields(fields).Msg(msg)
}
