package trainer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/arimastream/arima"
)

// WorkerCommand is the hidden CLI command that runs RunWorker.
const WorkerCommand = "fit-worker"

const (
	// DefaultGracePeriod is how long a worker gets to exit after each signal.
	DefaultGracePeriod = 3 * time.Second
	// DefaultMemoryCeiling is the per-worker address-space ceiling.
	DefaultMemoryCeiling uint64 = 8192 << 20
)

// Trainer fits each candidate in a freshly started worker process.
type Trainer struct {
	path          string
	args          []string
	env           []string
	memoryCeiling uint64
	grace         time.Duration
	watchdog      bool
	logger        zerolog.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithCommand replaces the worker command line.
func WithCommand(path string, args ...string) Option {
	return func(t *Trainer) {
		t.path = path
		t.args = args
	}
}

// WithEnv appends variables to the worker environment.
func WithEnv(env ...string) Option {
	return func(t *Trainer) { t.env = append(t.env, env...) }
}

// WithMemoryCeiling sets the worker address-space ceiling in bytes, 0 for none.
func WithMemoryCeiling(bytes uint64) Option {
	return func(t *Trainer) { t.memoryCeiling = bytes }
}

// WithGracePeriod sets how long to wait after SIGTERM and after SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(t *Trainer) { t.grace = d }
}

// WithWatchdog forces the RSS watchdog on even where the worker can limit
// its own address space.
func WithWatchdog(on bool) Option {
	return func(t *Trainer) { t.watchdog = on }
}

// WithLogger sets the logger worker output is re-logged to.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// New creates a trainer that re-executes the current binary with the
// fit-worker command unless WithCommand says otherwise.
func New(opts ...Option) (*Trainer, error) {
	t := &Trainer{
		memoryCeiling: DefaultMemoryCeiling,
		grace:         DefaultGracePeriod,
		watchdog:      !addressSpaceLimitSupported,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate worker executable: %w", err)
		}
		t.path = exe
		t.args = []string{WorkerCommand}
	}
	return t, nil
}

// Train fits values with order in a new worker. A positive timeout bounds the
// fit; on expiry the worker is terminated and the error wraps ErrTimeout.
// The call returns at most two grace periods after the timeout.
func (t *Trainer) Train(ctx context.Context, values []float64, order arima.Order, opts arima.Options, timeout time.Duration) (*arima.Trained, error) {
	var stdin bytes.Buffer
	req := Request{Values: values, Order: order, Options: opts, MemoryCeiling: t.memoryCeiling}
	if err := writeMessage(&stdin, req); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	logger := t.logger.With().Str("component", "fit-worker").Stringer("order", order).Logger()
	stderr := newLogWriter(logger)
	var stdout bytes.Buffer

	cmd := exec.Command(t.path, t.args...)
	cmd.Env = append(os.Environ(), t.env...)
	cmd.Stdin = &stdin
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = t.grace

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %w", ErrWorkerFailed, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	var overCeiling atomic.Bool
	if t.watchdog && t.memoryCeiling > 0 {
		go watchRSS(watchCtx, cmd.Process.Pid, t.memoryCeiling, func(rss uint64) {
			overCeiling.Store(true)
			logger.Warn().Uint64("rss", rss).Uint64("ceiling", t.memoryCeiling).Msg("killing worker over memory ceiling")
			_ = cmd.Process.Kill()
		})
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		stderr.Flush()
		switch {
		case overCeiling.Load():
			return nil, fmt.Errorf("fit %s: %w", order, ErrMemoryCeiling)
		case err != nil:
			if msg := stderr.LastError(); msg != "" {
				return nil, fmt.Errorf("%w: fit %s: %s: %w", ErrWorkerFailed, order, msg, err)
			}
			return nil, fmt.Errorf("%w: fit %s: %w", ErrWorkerFailed, order, err)
		}
		return readResponse(&stdout, order)

	case <-expired:
		t.terminate(cmd, done, logger)
		return nil, fmt.Errorf("fit %s after %s: %w: %w", order, timeout, ErrTimeout, context.DeadlineExceeded)

	case <-ctx.Done():
		t.terminate(cmd, done, logger)
		return nil, fmt.Errorf("fit %s: %w", order, ctx.Err())
	}
}

// terminate sends SIGTERM, then SIGKILL once the grace period passes, and
// waits at most another grace period for the exit.
func (t *Trainer) terminate(cmd *exec.Cmd, done <-chan error, logger zerolog.Logger) {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Debug().Err(err).Msg("SIGTERM failed")
	}
	select {
	case <-done:
		return
	case <-time.After(t.grace):
	}

	logger.Warn().Dur("grace", t.grace).Msg("worker ignored SIGTERM, killing")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Error().Err(err).Msg("SIGKILL failed")
	}
	select {
	case <-done:
	case <-time.After(t.grace):
		logger.Error().Int("pid", cmd.Process.Pid).Msg("worker did not exit after SIGKILL")
	}
}
