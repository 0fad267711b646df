package trainer

import "errors"

var (
	// ErrTimeout is returned when a fit does not finish within its timeout.
	// It wraps context.DeadlineExceeded.
	ErrTimeout = errors.New("fit timed out")
	// ErrWorkerFailed is returned when the worker exits unsuccessfully.
	ErrWorkerFailed = errors.New("fit worker failed")
	// ErrMemoryCeiling is returned when the watchdog kills a worker over its ceiling.
	ErrMemoryCeiling = errors.New("fit worker exceeded memory ceiling")
	// ErrBadResponse is returned when the worker output cannot be decoded.
	ErrBadResponse = errors.New("malformed fit worker response")
)
