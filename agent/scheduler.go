package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/assistant/logging"
	"golang.org/x/sync/semaphore"
)

// Stepper is a unit of work driven by the Scheduler.
type Stepper interface {
	Name() string
	Step(ctx context.Context) (StepOutcome, error)
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// MaxConcurrentSteps bounds steps in flight across all agents.
	// Zero means unbounded.
	MaxConcurrentSteps int64
	Logger             logging.Logger
}

// Scheduler re-submits agent steps after each one settles. It keeps at most
// one step in flight per stepper name; a submission while a step is running
// is remembered and served right after.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	logger logging.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

type slot struct {
	pending bool
}

// NewScheduler creates a scheduler whose steps run under a context that is
// cancelled by Close.
func NewScheduler(optFns ...func(o *SchedulerOptions)) *Scheduler {
	opts := SchedulerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logging.OrNoOp(opts.Logger),
		slots:  make(map[string]*slot),
	}
	if opts.MaxConcurrentSteps > 0 {
		s.sem = semaphore.NewWeighted(opts.MaxConcurrentSteps)
	}
	return s
}

// Submit schedules a step for st. It returns false after Close.
func (s *Scheduler) Submit(st Stepper) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if sl, busy := s.slots[st.Name()]; busy {
		sl.pending = true
		return true
	}
	sl := &slot{}
	s.slots[st.Name()] = sl
	s.wg.Add(1)
	go s.run(st, sl)
	return true
}

// Busy reports whether a step for name is in flight or pending.
func (s *Scheduler) Busy(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[name]
	return ok
}

// Wait blocks until no steps are in flight or pending.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Close cancels in-flight steps, rejects new submissions and waits for all
// workers to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run(st Stepper, sl *slot) {
	defer s.wg.Done()
	for {
		outcome := Halt
		if err := s.acquire(); err == nil {
			outcome = s.step(st)
			s.release()
		}

		s.mu.Lock()
		if s.ctx.Err() == nil && (outcome == Continue || sl.pending) {
			sl.pending = false
			s.mu.Unlock()
			continue
		}
		delete(s.slots, st.Name())
		s.mu.Unlock()
		return
	}
}

func (s *Scheduler) step(st Stepper) (outcome StepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler.step.panic", "agent", st.Name(), "panic", fmt.Sprint(r))
			outcome = Halt
		}
	}()
	outcome, err := st.Step(s.ctx)
	if err != nil {
		s.logger.Debug("scheduler.step.halted", "agent", st.Name(), "error", err.Error())
	}
	return outcome
}

func (s *Scheduler) acquire() error {
	if s.sem == nil {
		return s.ctx.Err()
	}
	return s.sem.Acquire(s.ctx, 1)
}

func (s *Scheduler) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}
