package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ghrelay/internal/config"
	"ghrelay/internal/eventbus"
	"ghrelay/internal/github"
	"ghrelay/internal/observability/debug"
	"ghrelay/internal/relay"
	"ghrelay/internal/render"
	"ghrelay/internal/runtime/supervisor"
	"ghrelay/internal/storage"
	telegram "ghrelay/internal/transport/telegram/adapter"
	logx "ghrelay/pkg/logx"
	"ghrelay/pkg/systemd"
)

// Version is stamped by the build (-ldflags "-X ghrelay/internal/app.Version=...").
var Version = "dev"

type App struct {
	cfgm *config.Manager
	cfg  *config.Config
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	schedule *relay.Schedule
	repos    *relay.RepoSet
	sched    *relay.Scheduler
	dbg      *debug.Server
	sd       systemd.Notifier

	deliverTo []string

	mu        sync.Mutex
	startedAt time.Time
	last      *relay.CycleReport
	lastErr   string
	closeOnce sync.Once
}

// New builds the app from the manager's current config (loading it first if
// needed). Nothing runs until Start or RunOnce.
func New(cfgm *config.Manager) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}
	if err := CheckConfig(cfg); err != nil {
		return nil, err
	}

	ghCfg, err := mapGitHubConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched, err := mapSchedule(cfg)
	if err != nil {
		return nil, err
	}
	formatter, err := mapFormatter(cfg)
	if err != nil {
		return nil, err
	}
	blockDelay, err := mapBlockDelay(cfg)
	if err != nil {
		return nil, err
	}
	dbgCfg, err := mapDebugConfig(cfg)
	if err != nil {
		return nil, err
	}
	sc, storageOn, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}

	// The adapter is also the sender of the Telegram log sink, so it logs
	// through a bootstrap console logger.
	ad, err := telegram.New(mapTelegramConfig(cfg), logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg), ad)
	log = log.With(logx.String("comp", "app"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := relay.NewMetrics(reg)

	var store storage.Store
	if storageOn {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("cycle journal enabled", logx.String("driver", sc.Driver))
	}

	bus := eventbus.New()
	account := strings.TrimSpace(cfg.GitHub.Account)
	gh := github.NewClient(ghCfg, nil, log.With(logx.String("comp", "github")))
	repos := relay.NewRepoSet(account, cfg.GitHub.Repos, gh, log.With(logx.String("comp", "repos")))
	deliverer := relay.NewDeliverer(ad, mapDestinations(cfg), blockDelay, log.With(logx.String("comp", "deliver")), metrics)

	rl, err := relay.New(relay.Options{
		Account:     account,
		Repos:       repos,
		Source:      gh,
		Schedule:    sched,
		Formatter:   formatter,
		Chunker:     render.Chunker{MaxLen: cfg.Telegram.MaxMessageLen},
		Deliverer:   deliverer,
		Heartbeat:   cfg.Poll.Heartbeat,
		Concurrency: cfg.GitHub.Concurrency,
		Bus:         bus,
		Metrics:     metrics,
		Log:         log.With(logx.String("comp", "relay")),
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgm:     cfgm,
		cfg:      cfg,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		schedule: sched,
		repos:    repos,
		sd:       systemd.Notifier{Log: log.With(logx.String("comp", "systemd"))},
	}
	for _, d := range deliverer.Destinations() {
		a.deliverTo = append(a.deliverTo, d.Name)
	}
	a.sched = relay.NewScheduler(rl, sched, log.With(logx.String("comp", "scheduler")), relay.WithCycleHook(a.noteCycle), relay.WithBus(a.bus))
	a.dbg = debug.New(dbgCfg, debug.Hooks{
		Gatherer: reg,
		Status:   func() any { return a.Status() },
		Trigger:  a.sched.Trigger,
	}, log.With(logx.String("comp", "debug")))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Trigger requests an extra cycle; see relay.Scheduler.Trigger.
func (a *App) Trigger() bool { return a.sched.Trigger() }

func (a *App) noteCycle(rep relay.CycleReport, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = &rep
	a.lastErr = ""
	if err != nil {
		a.lastErr = err.Error()
	}
}

// Status is served on /status.
type Status struct {
	Version      string                 `json:"version"`
	Account      string                 `json:"account"`
	Repos        []string               `json:"repos,omitempty"`
	Schedule     string                 `json:"schedule"`
	Heartbeat    bool                   `json:"heartbeat"`
	Destinations []string               `json:"destinations"`
	StartedAt    time.Time              `json:"started_at"`
	Running      bool                   `json:"running"`
	LastCycle    *relay.CycleReport     `json:"last_cycle,omitempty"`
	LastError    string                 `json:"last_error,omitempty"`
	Tasks        []supervisor.TaskStats `json:"tasks,omitempty"`

	EventsDropped uint64 `json:"events_dropped"`
	AlertsDropped uint64 `json:"alerts_dropped"`
}

// Status is safe to call from any goroutine; cycle state comes from the last
// completed cycle rather than the live watermark.
func (a *App) Status() Status {
	a.mu.Lock()
	st := Status{
		Version:      Version,
		Account:      a.cfg.GitHub.Account,
		Repos:        a.repos.Current(),
		Schedule:     a.schedule.String(),
		Heartbeat:    a.cfg.Poll.Heartbeat,
		Destinations: a.deliverTo,
		StartedAt:    a.startedAt,
		LastError:    a.lastErr,
	}
	if a.last != nil {
		rep := *a.last
		st.LastCycle = &rep
	}
	a.mu.Unlock()
	st.Running = a.sched.Running()
	st.EventsDropped = a.bus.Dropped()
	st.AlertsDropped = a.logs.AlertsDropped()
	if a.sup != nil {
		st.Tasks = a.sup.Snapshot()
	}
	return st
}

func (a *App) logBanner() {
	repos := "all repos"
	if len(a.cfg.GitHub.Repos) > 0 {
		repos = strings.Join(a.cfg.GitHub.Repos, ",")
	}
	dests := "none"
	if len(a.deliverTo) > 0 {
		dests = strings.Join(a.deliverTo, ",")
	}
	a.log.Info("ghrelay starting",
		logx.String("version", Version),
		logx.String("account", a.cfg.GitHub.Account),
		logx.String("repos", repos),
		logx.String("schedule", a.schedule.String()),
		logx.Bool("heartbeat", a.cfg.Poll.Heartbeat),
		logx.String("destinations", dests),
		logx.Bool("github_token", a.cfg.GitHub.Token != ""),
	)
	if len(a.deliverTo) == 0 {
		a.log.Warn("no destination has a chat id; summaries will be dropped")
	}
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.mu.Lock()
	a.startedAt = time.Now()
	a.mu.Unlock()

	a.logBanner()

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return CheckConfig(cfg) })

	events, unsub := a.bus.Subscribe(64, eventbus.TypeCycleFinished, eventbus.TypeCycleFailed)
	j := journal{store: a.store, log: a.log.With(logx.String("comp", "journal"))}
	a.sup.Go0("cycle.journal", func(c context.Context) {
		defer unsub()
		j.run(c, events)
	})

	a.dbg.Start(a.sup)
	a.sup.Go("relay.scheduler", a.sched.Run)
	a.watchTriggerSignal()

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.sd.Ready() {
		a.sd.Status("polling " + a.cfg.GitHub.Account + " (" + a.schedule.String() + ")")
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		a.sd.Watchdog(c, func() bool { return a.sup.Err() == nil })
	})

	a.log.Info("app started")
	return nil
}

// reloadLoop applies logging changes live. Every other section is reported as
// needing a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}

			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}
			a.logs.Apply(mapLoggingConfig(newCfg))
			if pending := config.RestartRequired(sections); len(pending) > 0 {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("sections", strings.Join(pending, ",")))
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

// RunOnce runs a single cycle with first-run semantics and journals it.
// Call Close afterwards.
func (a *App) RunOnce(ctx context.Context) (relay.CycleReport, error) {
	a.logBanner()
	rep, err := a.sched.RunOnce(ctx)
	journal{store: a.store, log: a.log}.record(ctx, cycleRecord(rep, err != nil))
	return rep, err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// An in-flight cycle sees the cancellation through its context; give it
	// a bounded window to finish sending.
	a.step(ctx, "supervisor", 5*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	return a.Close()
}

// step runs a shutdown step with an upper bound so one component can't stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		// fn must honor stepCtx; if it doesn't, log when it eventually returns.
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// Close releases the journal and flushes log sinks. It is idempotent.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.closeStore()
		if a.logs != nil {
			if cerr := a.logs.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
