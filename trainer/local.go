package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/sartorproj/arimastream/arima"
)

// Local fits in the calling goroutine's process. A fit that outlives its
// timeout is abandoned, not stopped: its goroutine runs to completion in the
// background and the result is discarded.
type Local struct{}

type localResult struct {
	model *arima.Trained
	err   error
}

// Train fits values with order, recovering panics as errors.
func (Local) Train(ctx context.Context, values []float64, order arima.Order, opts arima.Options, timeout time.Duration) (*arima.Trained, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fit %s: %w", order, err)
	}

	done := make(chan localResult, 1)
	go func() {
		model, err := fit(values, order, opts)
		done <- localResult{model, err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-done:
		return r.model, r.err
	case <-expired:
		return nil, fmt.Errorf("fit %s after %s: %w: %w", order, timeout, ErrTimeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, fmt.Errorf("fit %s: %w", order, ctx.Err())
	}
}
