package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ghrelay/internal/eventbus"
	"ghrelay/internal/relay"
	"ghrelay/internal/storage"
	logx "ghrelay/pkg/logx"
)

func TestJournalRecordsTerminalEvents(t *testing.T) {
	t.Parallel()

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "cycles.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(8, eventbus.TypeCycleFinished, eventbus.TypeCycleFailed)
	defer unsub()
	done := make(chan struct{})
	go func() {
		defer close(done)
		journal{store: st, log: logx.Nop()}.run(ctx, events)
	}()

	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(eventbus.Event{Type: eventbus.TypeCycleStarted, Time: t0, Data: relay.CycleReport{Started: t0, FirstRun: true}})
	bus.Publish(eventbus.Event{Type: eventbus.TypeCycleFinished, Time: t0, Data: relay.CycleReport{
		Started: t0, FirstRun: true, Fetched: 3, New: 3, Blocks: 1, Sent: 1,
		Watermark: t0.Add(-time.Minute), Duration: 1500 * time.Millisecond,
	}})
	bus.Publish(eventbus.Event{Type: eventbus.TypeCycleFailed, Time: t0, Data: relay.CycleReport{
		Started: t0.Add(time.Hour), Error: "collect: boom", FailedRepos: []string{"a/b"},
	}})
	bus.Publish(eventbus.Event{Type: "other", Time: t0, Data: "ignored"})

	var recs []storage.CycleRecord
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		recs, err = st.RecentCycles(context.Background(), 10)
		if err != nil {
			t.Fatalf("RecentCycles: %v", err)
		}
		if len(recs) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if len(recs) != 2 {
		t.Fatalf("records=%d, want 2", len(recs))
	}
	failed, ok := recs[0], recs[1] // newest first
	if ok.Result != "ok" || !ok.FirstRun || ok.New != 3 || ok.TookMS != 1500 {
		t.Fatalf("ok record=%+v", ok)
	}
	if failed.Result != "failed" || failed.Error != "collect: boom" || len(failed.FailedRepos) != 1 {
		t.Fatalf("failed record=%+v", failed)
	}
}

func TestJournalWithoutStore(t *testing.T) {
	t.Parallel()

	// must not panic
	journal{log: logx.Nop()}.record(context.Background(), cycleRecord(relay.CycleReport{}, true))
	if r := cycleRecord(relay.CycleReport{Error: "x"}, true); r.Result != "failed" || r.Error != "x" {
		t.Fatalf("record=%+v", r)
	}
}
