//go:build unix

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logx "ghrelay/pkg/logx"
)

// watchTriggerSignal runs an extra cycle on SIGUSR1.
func (a *App) watchTriggerSignal() {
	a.sup.Go0("signal.trigger", func(c context.Context) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGUSR1)
		defer signal.Stop(ch)
		for {
			select {
			case <-c.Done():
				return
			case s := <-ch:
				a.log.Info("manual cycle requested", logx.String("signal", s.String()))
				a.sched.Trigger()
			}
		}
	})
}
