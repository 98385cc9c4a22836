package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"ghrelay/internal/eventbus"
	logx "ghrelay/pkg/logx"
)

// Runner runs one cycle.
type Runner interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Scheduler runs a cycle immediately, then at every schedule tick. Cycles run
// inline in the scheduler loop, so two cycles never overlap.
type Scheduler struct {
	runner Runner
	sched  *Schedule
	log    logx.Logger
	now    func() time.Time

	inFlight atomic.Bool
	trigger  chan struct{}
	// after is called once per finished cycle.
	after func(CycleReport, error)
	// bus receives cycle.failed for cycles that panicked; the runner never
	// got to publish it.
	bus eventbus.Bus
}

type SchedulerOption func(*Scheduler)

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCycleHook registers fn to run after every cycle, success or not.
func WithCycleHook(fn func(CycleReport, error)) SchedulerOption {
	return func(s *Scheduler) { s.after = fn }
}

// WithBus publishes a cycle.failed event when a cycle panics.
func WithBus(bus eventbus.Bus) SchedulerOption {
	return func(s *Scheduler) { s.bus = bus }
}

func NewScheduler(r Runner, sched *Schedule, log logx.Logger, opts ...SchedulerOption) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{runner: r, sched: sched, log: log, now: time.Now, trigger: make(chan struct{}, 1)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool { return s.inFlight.Load() }

// Trigger asks for an extra cycle. It is refused while a cycle is running
// or another trigger is already pending.
func (s *Scheduler) Trigger() bool {
	if s.inFlight.Load() {
		s.log.Warn("manual cycle refused; a cycle is already running")
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		s.log.Info("manual cycle queued")
		return true
	default:
		s.log.Warn("manual cycle refused; one is already pending")
		return false
	}
}

// Run blocks until ctx is done. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.String("schedule", s.sched.String()))
	s.runOnce(ctx)

	next := s.sched.Next(s.now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.log.Info("next cycle scheduled", logx.Time("at", next))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-timer.C:
			s.runOnce(ctx)
			next = s.sched.Next(s.now())
			timer.Reset(time.Until(next))
			s.log.Info("next cycle scheduled", logx.Time("at", next))
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

// RunOnce runs a single cycle synchronously (CLI "once").
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (rep CycleReport, err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return CycleReport{}, errors.New("cycle already running")
	}
	defer s.inFlight.Store(false)

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
			s.log.Error("cycle panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			if rep.Started.IsZero() {
				rep.Started = start
			}
			rep.Duration = s.now().Sub(start)
			rep.Error = err.Error()
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleFailed, Data: rep})
			}
		}
		if s.after != nil {
			s.after(rep, err)
		}
	}()

	rep, err = s.runner.RunCycle(ctx)
	switch {
	case err == nil:
		s.log.Info("cycle finished",
			logx.Int("fetched", rep.Fetched),
			logx.Int("new", rep.New),
			logx.Int("blocks", rep.Blocks),
			logx.Duration("took", rep.Duration),
		)
	case errors.Is(err, context.Canceled):
		s.log.Info("cycle cancelled")
	default:
		s.log.Error("cycle failed; watermark unchanged", append([]logx.Field{logx.Err(err)}, errorFields(err)...)...)
	}
	return rep, err
}
