package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghrelay/internal/activity"
	"ghrelay/internal/eventbus"
	"ghrelay/internal/render"
	logx "ghrelay/pkg/logx"
)

// CycleReport summarizes one cycle. It is published on the event bus and
// written to the cycle journal.
type CycleReport struct {
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration_ns"`
	FirstRun    bool          `json:"first_run"`
	Fetched     int           `json:"fetched"`
	New         int           `json:"new"`
	Blocks      int           `json:"blocks"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	FailedRepos []string      `json:"failed_repos,omitempty"`
	Watermark   time.Time     `json:"watermark"`
	Error       string        `json:"error,omitempty"`
}

// Options wires a Relay. Account, Source, Schedule and Deliverer are required.
type Options struct {
	Account   string
	Repos     *RepoSet
	Source    activity.Source
	Schedule  *Schedule
	Formatter *render.Formatter
	Chunker   render.Chunker
	Deliverer *Deliverer

	// Heartbeat sends a summary every cycle, even with no new activity.
	Heartbeat   bool
	Concurrency int

	Bus     eventbus.Bus
	Metrics *Metrics
	Log     logx.Logger
	Now     func() time.Time
}

// Relay owns the watermark and runs cycles. RunCycle must not be called
// concurrently; Scheduler guarantees that.
type Relay struct {
	account   string
	repos     *RepoSet
	agg       *activity.Aggregator
	sched     *Schedule
	formatter *render.Formatter
	chunker   render.Chunker
	deliver   *Deliverer
	heartbeat bool
	bus       eventbus.Bus
	metrics   *Metrics
	log       logx.Logger
	now       func() time.Time

	wm *activity.Watermark
}

func New(o Options) (*Relay, error) {
	switch {
	case o.Account == "":
		return nil, errors.New("relay: account is required")
	case o.Source == nil:
		return nil, errors.New("relay: source is required")
	case o.Schedule == nil:
		return nil, errors.New("relay: schedule is required")
	case o.Deliverer == nil:
		return nil, errors.New("relay: deliverer is required")
	}
	log := o.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	repos := o.Repos
	if repos == nil {
		repos = NewRepoSet(o.Account, nil, nil, log)
	}
	f := o.Formatter
	if f == nil {
		f = render.NewFormatter()
	}
	return &Relay{
		account:   o.Account,
		repos:     repos,
		agg:       activity.NewAggregator(o.Source, log.With(logx.String("comp", "aggregate")), activity.WithConcurrency(o.Concurrency)),
		sched:     o.Schedule,
		formatter: f,
		chunker:   o.Chunker,
		deliver:   o.Deliverer,
		heartbeat: o.Heartbeat,
		bus:       o.Bus,
		metrics:   o.Metrics,
		log:       log,
		now:       now,
		wm:        activity.NewWatermark(now()),
	}, nil
}

// Watermark returns a copy of the current watermark.
func (r *Relay) Watermark() activity.Watermark { return *r.wm }

// RunCycle performs one poll cycle. On error the watermark is unchanged.
func (r *Relay) RunCycle(ctx context.Context) (CycleReport, error) {
	start := r.now()
	rep := CycleReport{Started: start, FirstRun: r.wm.FirstRun}
	r.publish(eventbus.TypeCycleStarted, rep)

	repos := r.repos.Refresh(ctx)
	res, err := r.agg.Collect(ctx, activity.Sources{Account: r.account, Repos: repos}, *r.wm)
	if err != nil {
		rep.Duration = r.now().Sub(start)
		rep.Watermark = r.wm.At
		rep.Error = err.Error()
		r.metrics.cycle("failed", rep.Duration)
		r.publish(eventbus.TypeCycleFailed, rep)
		return rep, fmt.Errorf("collect: %w", err)
	}
	rep.Fetched = res.Fetched()
	rep.New = len(res.Deliver)
	rep.FailedRepos = res.FailedRepos
	r.metrics.fetched(rep.Fetched, rep.New, len(res.FailedRepos))

	if len(res.Deliver) > 0 || r.wm.FirstRun || r.heartbeat {
		period := r.sched.Period(r.wm.FirstRun, r.wm.At)
		fragments := make([]string, 0, len(res.Deliver))
		for _, e := range res.Deliver {
			fragments = append(fragments, r.formatter.Format(e))
		}
		blocks := r.chunker.Chunk(fragments, render.Summary{
			Account: r.account,
			Period:  period,
			Total:   len(res.Deliver),
		})
		d := r.deliver.Deliver(ctx, blocks)
		rep.Blocks, rep.Sent, rep.Failed = d.Blocks, d.Sent, d.Failed
		r.log.Info("summary delivered",
			logx.String("period", period),
			logx.Int("activities", len(res.Deliver)),
			logx.Int("blocks", d.Blocks),
			logx.Int("sent", d.Sent),
			logx.Int("failed", d.Failed),
		)
	} else {
		r.log.Info("no new activity")
	}

	if r.wm.Advance(res) {
		r.metrics.setWatermark(r.wm.At)
	}
	rep.Watermark = r.wm.At
	rep.Duration = r.now().Sub(start)
	r.metrics.cycle("ok", rep.Duration)
	r.publish(eventbus.TypeCycleFinished, rep)
	return rep, nil
}

func (r *Relay) publish(typ string, rep CycleReport) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Time: r.now(), Data: rep})
}
