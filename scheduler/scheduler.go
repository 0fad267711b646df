// Package scheduler runs jobs on cron schedules, one run of each job at a
// time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrBusy is returned by RunNow when the job is already running.
var ErrBusy = errors.New("job is already running")

// Func is a scheduled unit of work.
type Func func(ctx context.Context) error

// Status describes the most recent run of a job.
type Status struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Runs     int       `json:"runs"`
	Started  time.Time `json:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty"`
	Running  bool      `json:"running"`
	Error    string    `json:"error,omitempty"`
}

// Scheduler manages background jobs. A run that is still going when its
// next activation comes due makes that activation a no-op.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	status map[string]*Status
	locks  map[string]*sync.Mutex
	names  []string
}

// New creates a scheduler. Schedules use the standard five cron fields and
// descriptors such as "@hourly" or "@every 30s".
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		status: make(map[string]*Status),
		locks:  make(map[string]*sync.Mutex),
	}
}

// AddJob registers fn under name with a cron schedule.
func (s *Scheduler) AddJob(schedule, name string, fn Func) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(name, fn) }); err != nil {
		return err
	}

	s.update(name, func(st *Status) { st.Schedule = schedule })

	s.log.Info().Str("schedule", schedule).Str("job", name).Msg("job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule. It returns
// ErrBusy without running fn if a run of name is in progress.
func (s *Scheduler) RunNow(name string, fn Func) error {
	return s.run(name, fn)
}

func (s *Scheduler) run(name string, fn Func) error {
	lock := s.lock(name)
	if !lock.TryLock() {
		s.log.Warn().Str("job", name).Msg("job still running, skipped")
		return ErrBusy
	}
	defer lock.Unlock()

	started := time.Now()
	s.update(name, func(st *Status) {
		st.Running = true
		st.Started = started
	})
	s.log.Debug().Str("job", name).Msg("running job")

	err := fn(s.ctx)

	s.update(name, func(st *Status) {
		st.Running = false
		st.Runs++
		st.Finished = time.Now()
		st.Error = ""
		if err != nil {
			st.Error = err.Error()
		}
	})
	if err != nil {
		s.log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(started)).Msg("job failed")
	} else {
		s.log.Debug().Str("job", name).Dur("elapsed", time.Since(started)).Msg("job completed")
	}
	return err
}

func (s *Scheduler) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Scheduler) update(name string, fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[name]
	if !ok {
		st = &Status{Name: name}
		s.status[name] = st
		s.names = append(s.names, name)
	}
	fn(st)
}

// Status returns a snapshot of every job's last run, in registration order.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, *s.status[name])
	}
	return out
}

// Run starts the scheduler and blocks until ctx is done, then cancels
// running jobs and waits for them to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")

	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
