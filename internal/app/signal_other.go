//go:build !unix

package app

// watchTriggerSignal is a no-op without SIGUSR1; use POST /trigger instead.
func (a *App) watchTriggerSignal() {}
