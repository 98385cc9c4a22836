package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "ghrelay/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	at           TEXT    NOT NULL,
	result       TEXT    NOT NULL,
	first_run    INTEGER NOT NULL,
	fetched      INTEGER NOT NULL,
	new_events   INTEGER NOT NULL,
	blocks       INTEGER NOT NULL,
	sent         INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	failed_repos TEXT,
	watermark    TEXT,
	took_ms      INTEGER NOT NULL,
	err          TEXT
);
CREATE INDEX IF NOT EXISTS cycles_at ON cycles(at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("cycle journal opened", logx.String("driver", "sqlite"), logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendCycle(ctx context.Context, r CycleRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	var repos any
	if len(r.FailedRepos) > 0 {
		b, err := json.Marshal(r.FailedRepos)
		if err != nil {
			return err
		}
		repos = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles(at, result, first_run, fetched, new_events, blocks, sent, failed, failed_repos, watermark, took_ms, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.Result, boolInt(r.FirstRun), r.Fetched, r.New, r.Blocks,
		r.Sent, r.Failed, repos, formatTime(r.Watermark), r.TookMS, nullStr(r.Error),
	)
	return err
}

func (s *sqliteStore) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, result, first_run, fetched, new_events, blocks, sent, failed, failed_repos, watermark, took_ms, err
		 FROM cycles ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var (
			r                     CycleRecord
			at                    string
			firstRun              int
			repos, wm, errMessage sql.NullString
		)
		if err := rows.Scan(&at, &r.Result, &firstRun, &r.Fetched, &r.New, &r.Blocks, &r.Sent, &r.Failed,
			&repos, &wm, &r.TookMS, &errMessage); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.FirstRun = firstRun != 0
		if repos.Valid {
			_ = json.Unmarshal([]byte(repos.String), &r.FailedRepos)
		}
		if wm.Valid {
			r.Watermark, _ = time.Parse(time.RFC3339Nano, wm.String)
		}
		r.Error = errMessage.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
