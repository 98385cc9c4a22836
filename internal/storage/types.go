package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// CycleRecord is one journal line. Keep it compact and schema-stable.
type CycleRecord struct {
	At          time.Time `json:"at"`
	Result      string    `json:"result"` // "ok" | "failed"
	FirstRun    bool      `json:"first_run"`
	Fetched     int       `json:"fetched"`
	New         int       `json:"new"`
	Blocks      int       `json:"blocks"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	FailedRepos []string  `json:"failed_repos,omitempty"`
	Watermark   time.Time `json:"watermark"`
	TookMS      int64     `json:"took_ms"`
	Error       string    `json:"error,omitempty"`
}
