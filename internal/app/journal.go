package app

import (
	"context"
	"time"

	"ghrelay/internal/eventbus"
	"ghrelay/internal/relay"
	"ghrelay/internal/storage"
	logx "ghrelay/pkg/logx"
)

// cycleRecord converts a finished or failed cycle into a journal line.
func cycleRecord(rep relay.CycleReport, failed bool) storage.CycleRecord {
	result := "ok"
	if failed {
		result = "failed"
	}
	return storage.CycleRecord{
		At:          rep.Started,
		Result:      result,
		FirstRun:    rep.FirstRun,
		Fetched:     rep.Fetched,
		New:         rep.New,
		Blocks:      rep.Blocks,
		Sent:        rep.Sent,
		Failed:      rep.Failed,
		FailedRepos: rep.FailedRepos,
		Watermark:   rep.Watermark,
		TookMS:      rep.Duration.Milliseconds(),
		Error:       rep.Error,
	}
}

// journal appends terminal cycle events to the store (if any).
type journal struct {
	store storage.Store
	log   logx.Logger
}

func (j journal) handle(ctx context.Context, e eventbus.Event) {
	rep, ok := e.Data.(relay.CycleReport)
	if !ok {
		j.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		return
	}
	switch e.Type {
	case eventbus.TypeCycleFinished, eventbus.TypeCycleFailed:
		j.log.Debug("event",
			logx.String("type", e.Type),
			logx.Int("new", rep.New),
			logx.Int("sent", rep.Sent),
			logx.Int("failed", rep.Failed),
		)
		j.record(ctx, cycleRecord(rep, e.Type == eventbus.TypeCycleFailed))
	}
}

func (j journal) record(ctx context.Context, r storage.CycleRecord) {
	if j.store == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := j.store.AppendCycle(wctx, r); err != nil {
		j.log.Warn("cycle journal write failed", logx.Err(err))
	}
}

// run consumes bus events until ctx is done.
func (j journal) run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			j.handle(ctx, e)
		}
	}
}
