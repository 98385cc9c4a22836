package relay

import (
	"context"
	"sync"

	logx "ghrelay/pkg/logx"
)

// RepoLister discovers the repositories owned by an account.
type RepoLister interface {
	ListRepos(ctx context.Context, account string) ([]string, error)
}

// RepoSet is the list of repositories polled next to the account feed:
// either a fixed list, or everything the account owns (refreshed per cycle).
type RepoSet struct {
	account string
	static  []string
	lister  RepoLister
	log     logx.Logger

	mu     sync.Mutex
	cached []string
}

// NewRepoSet uses static when non-empty; otherwise it lists via lister. A nil
// lister with no static repos polls the account feed alone.
func NewRepoSet(account string, static []string, lister RepoLister, log logx.Logger) *RepoSet {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RepoSet{account: account, static: append([]string(nil), static...), lister: lister, log: log}
}

func (r *RepoSet) Dynamic() bool { return len(r.static) == 0 && r.lister != nil }

// Refresh returns the repositories to poll this cycle. A failed listing keeps
// the previously cached list.
func (r *RepoSet) Refresh(ctx context.Context) []string {
	if !r.Dynamic() {
		return r.static
	}
	repos, err := r.lister.ListRepos(ctx, r.account)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.log.Warn("repository list refresh failed; keeping cached list", append([]logx.Field{
			logx.Err(err), logx.Int("cached", len(r.cached)),
		}, errorFields(err)...)...)
		return r.cached
	}
	if len(repos) != len(r.cached) {
		r.log.Info("repository list refreshed", logx.Int("count", len(repos)))
	}
	r.cached = repos
	return r.cached
}

// Current is the last known list without refreshing. It is safe to call
// while a cycle refreshes the set.
func (r *RepoSet) Current() []string {
	if !r.Dynamic() {
		return r.static
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cached...)
}
