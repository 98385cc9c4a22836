package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "ghrelay/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: st=%v err=%v", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if !Known(" SQLite3 ") || Known("postgres") || Known("none") {
		t.Fatalf("Known mismatch")
	}
	if got := Drivers(); len(got) != 3 || got[0] != "file" {
		t.Fatalf("Drivers() = %v", got)
	}
}

func TestJournalDrivers(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "journal", "cycles.db")
			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			recs := []CycleRecord{
				{At: at, Result: "ok", FirstRun: true, Fetched: 3, New: 3, Blocks: 1, Sent: 2, Watermark: at},
				{At: at.Add(time.Hour), Result: "failed", Error: "account feed octo: boom"},
				{At: at.Add(2 * time.Hour), Result: "ok", Fetched: 5, New: 1, FailedRepos: []string{"octo/x"}, TookMS: 42},
			}
			for _, r := range recs {
				if err := st.AppendCycle(ctx, r); err != nil {
					t.Fatalf("AppendCycle: %v", err)
				}
			}

			got, err := st.RecentCycles(ctx, 2)
			if err != nil {
				t.Fatalf("RecentCycles: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len=%d", len(got))
			}
			if got[0].Fetched != 5 || len(got[0].FailedRepos) != 1 || got[0].TookMS != 42 {
				t.Fatalf("newest=%+v", got[0])
			}
			if got[1].Result != "failed" || got[1].Error == "" {
				t.Fatalf("second=%+v", got[1])
			}
			if !got[0].At.Equal(at.Add(2 * time.Hour)) {
				t.Fatalf("at=%v", got[0].At)
			}
		})
	}
}
