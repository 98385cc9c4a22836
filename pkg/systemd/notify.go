// Package systemd reports service state to systemd (Type=notify units).
// Every call is a no-op outside systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "ghrelay/pkg/logx"
)

// Notifier sends sd_notify messages. The zero value is usable.
type Notifier struct {
	Log logx.Logger
}

func (n Notifier) send(state string) bool {
	ok, err := daemon.SdNotify(false, state)
	if err != nil && !n.Log.IsZero() {
		n.Log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
	return ok
}

// Ready reports READY=1. It returns false when not running under systemd.
func (n Notifier) Ready() bool { return n.send(daemon.SdNotifyReady) }

func (n Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }

// Status sets the one-line status shown by systemctl status.
func (n Notifier) Status(msg string) bool { return n.send("STATUS=" + msg) }

// Watchdog pings WATCHDOG=1 at half the configured WatchdogSec until ctx is
// done. It returns immediately when the watchdog is not enabled. healthy is
// consulted before each ping; a false result skips the ping.
func (n Notifier) Watchdog(ctx context.Context, healthy func() bool) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	every := interval / 2
	if every < time.Second {
		every = time.Second
	}
	if !n.Log.IsZero() {
		n.Log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if healthy != nil && !healthy() {
				continue
			}
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
