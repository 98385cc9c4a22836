package activity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	logx "ghrelay/pkg/logx"
)

// Source is a feed provider for one account and its repositories.
type Source interface {
	AccountEvents(ctx context.Context, account string) ([]Event, error)
	RepoEvents(ctx context.Context, repo string) ([]Event, error)
}

// Sources names what a cycle fetches: the account feed plus zero or more
// repository feeds ("owner/name").
type Sources struct {
	Account string
	Repos   []string
}

// Result is the outcome of one Collect call.
type Result struct {
	// Events is the merged batch: one entry per id, newest first.
	Events []Event
	// Deliver is the subset to send, oldest first.
	Deliver []Event
	// Newest is max(CreatedAt) over Events (zero when Events is empty).
	Newest time.Time
	// FailedRepos lists repository feeds that could not be fetched.
	FailedRepos []string
}

func (r Result) Fetched() int { return len(r.Events) }

// ErrAccountFeed wraps a failure of the account-level feed, which aborts the cycle.
var ErrAccountFeed = errors.New("account feed")

// Aggregator fetches feeds and computes the delivery set.
type Aggregator struct {
	src         Source
	log         logx.Logger
	concurrency int
}

type Option func(*Aggregator)

// WithConcurrency bounds parallel per-source fetches (default 4).
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func NewAggregator(src Source, log logx.Logger, opts ...Option) *Aggregator {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Aggregator{src: src, log: log, concurrency: 4}
	for _, o := range opts {
		o(a)
	}
	return a
}

type fetchResult struct {
	source string
	events []Event
	err    error
}

// Collect fetches every source, merges and deduplicates the batch, then
// selects what is new relative to wm.
//
// A repository feed failure is logged and skipped. An account feed failure
// returns an error wrapping ErrAccountFeed and no Result.
func (a *Aggregator) Collect(ctx context.Context, s Sources, wm Watermark) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repos := uniqueRepos(s.Repos)
	results := make([]fetchResult, 1+len(repos))
	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup

	run := func(i int, source string, fn func(context.Context) ([]Event, error)) {
		defer wg.Done()
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			results[i] = fetchResult{source: source, err: ctx.Err()}
			return
		}
		evs, err := fn(ctx)
		results[i] = fetchResult{source: source, events: evs, err: err}
		if err != nil && i == 0 {
			// The cycle is lost anyway; stop the repo fetches early.
			cancel()
		}
	}

	wg.Add(len(results))
	a.log.Debug("fetching account events", logx.String("account", s.Account))
	go run(0, s.Account, func(c context.Context) ([]Event, error) { return a.src.AccountEvents(c, s.Account) })
	for i, repo := range repos {
		repo := repo
		go run(i+1, repo, func(c context.Context) ([]Event, error) { return a.src.RepoEvents(c, repo) })
	}
	wg.Wait()

	if err := results[0].err; err != nil {
		return Result{}, fmt.Errorf("%w %s: %w", ErrAccountFeed, s.Account, err)
	}

	var res Result
	batches := make([][]Event, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			res.FailedRepos = append(res.FailedRepos, r.source)
			a.log.Warn("repository events fetch failed; skipping", append([]logx.Field{
				logx.String("repo", r.source), logx.Err(r.err),
			}, errorFields(r.err)...)...)
			continue
		}
		batches = append(batches, r.events)
	}

	res.Events = Merge(batches...)
	if len(res.Events) > 0 {
		res.Newest = res.Events[0].CreatedAt
	}
	res.Deliver = Select(res.Events, wm)

	a.log.Info("events fetched",
		logx.Int("total", len(res.Events)),
		logx.Int("new", len(res.Deliver)),
		logx.Int("sources", len(results)),
		logx.Int("failed_sources", len(res.FailedRepos)),
		logx.Bool("first_run", wm.FirstRun),
	)
	if len(res.Events) > 0 {
		a.log.Debug("event types", logx.String("types", strings.Join(Types(res.Events), ", ")))
	}
	return res, nil
}

// Merge concatenates batches, keeps one event per id (later batches win) and
// sorts newest first. Ties are ordered by id so the result is deterministic.
func Merge(batches ...[]Event) []Event {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	idx := make(map[string]int, n)
	out := make([]Event, 0, n)
	for _, b := range batches {
		for _, e := range b {
			if i, ok := idx[e.ID]; ok {
				out[i] = e
				continue
			}
			idx[e.ID] = len(out)
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(x, y Event) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(y.ID, x.ID)
	})
	return out
}

// Select returns the events of a newest-first batch that are new relative to
// wm, oldest first.
func Select(newestFirst []Event, wm Watermark) []Event {
	out := make([]Event, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if wm.IsNew(newestFirst[i]) {
			out = append(out, newestFirst[i])
		}
	}
	return out
}

// Types lists the distinct event tags in a batch.
func Types(events []Event) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range events {
		if !seen[e.Type] {
			seen[e.Type] = true
			out = append(out, e.Type)
		}
	}
	sort.Strings(out)
	return out
}

func uniqueRepos(repos []string) []string {
	seen := make(map[string]bool, len(repos))
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		r = strings.Trim(strings.TrimSpace(r), "/")
		key := strings.ToLower(r)
		if r == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// errorFields extracts transport details (status code, rate limit) when the
// error carries them.
func errorFields(err error) []logx.Field {
	var lf interface{ LogFields() []logx.Field }
	if errors.As(err, &lf) {
		return lf.LogFields()
	}
	return nil
}

// ErrorFields is errorFields for callers outside the package.
func ErrorFields(err error) []logx.Field { return errorFields(err) }
