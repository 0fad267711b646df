package trainer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/sartorproj/arimastream/arima"
)

// RunWorker serves one fit request: it reads a Request from in, applies the
// memory ceiling to the current process, fits and writes a Response to out.
// It is meant to run in a dedicated child process; the caller should exit
// non-zero when it returns an error. A cancelled ctx returns at once and
// leaves the fit running, so the process must exit afterwards.
func RunWorker(ctx context.Context, in io.Reader, out io.Writer, logger zerolog.Logger) (err error) {
	req, err := readRequest(in)
	if err != nil {
		return err
	}
	logger = logger.With().Stringer("order", req.Order).Int("n", len(req.Values)).Logger()

	if req.MemoryCeiling > 0 {
		if err := limitAddressSpace(req.MemoryCeiling); err != nil {
			logger.Warn().Err(err).Msg("address space limit not applied")
		}
		debug.SetMemoryLimit(int64(min(req.MemoryCeiling, math.MaxInt64)))
	}

	type result struct {
		model *arima.Trained
		err   error
	}
	done := make(chan result, 1)
	go func() {
		m, err := fit(req.Values, req.Order, req.Options)
		done <- result{m, err}
	}()

	var model *arima.Trained
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		model = r.model
	}
	logger.Debug().Float64("aic", model.Criteria[string(arima.AIC)]).Msg("fit finished")

	w := bufio.NewWriter(out)
	if err := writeMessage(w, Response{Model: model}); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return w.Flush()
}

// fit runs a single fit, turning panics into errors.
func fit(values []float64, order arima.Order, opts arima.Options) (model *arima.Trained, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("fit %s panicked: %v", order, r)
		}
	}()

	m, err := arima.Fit(values, order, opts)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", order, err)
	}
	return m.Trained()
}
