package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	logx "ghrelay/pkg/logx"
)

// Store is the cycle journal.
type Store interface {
	AppendCycle(ctx context.Context, r CycleRecord) error
	// RecentCycles returns up to n records, newest first.
	RecentCycles(ctx context.Context, n int) ([]CycleRecord, error)
	Close() error
}

type opener func(cfg Config, log logx.Logger) (Store, error)

var drivers = map[string]opener{
	"file":    openFile,
	"sqlite":  openSQLite,
	"sqlite3": openSQLite,
}

// Disabled reports whether driver turns the journal off.
func Disabled(driver string) bool {
	d := normDriver(driver)
	return d == "" || d == "none"
}

// Known reports whether driver names a journal backend.
func Known(driver string) bool {
	_, ok := drivers[normDriver(driver)]
	return ok
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	out := make([]string, 0, len(drivers))
	for k := range drivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open returns the store for cfg.Driver, or (nil, nil) when the journal is
// disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if Disabled(cfg.Driver) {
		return nil, nil
	}
	open, ok := drivers[normDriver(cfg.Driver)]
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q (want one of %s)", cfg.Driver, strings.Join(Drivers(), ", "))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return open(cfg, log)
}

func normDriver(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
