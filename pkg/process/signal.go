package process

import (
	"os"
	"syscall"

	"github.com/fedsim/fedsim-go/pkg/status"
)

// LoadSignalHandler installs a handler for SIGINT and SIGTERM that aborts
// the federation, shuts the context down and exits the process. It
// replaces any handler installed before.
func (pc *Context) LoadSignalHandler() {
	pc.loadSignalHandler(false)
}

// LoadThreadedSignalHandler is like LoadSignalHandler but runs the cleanup
// on a detached goroutine. A second signal during the cleanup exits
// immediately.
func (pc *Context) LoadThreadedSignalHandler() {
	pc.loadSignalHandler(true)
}

// ClearSignalHandler removes the installed signal handler.
func (pc *Context) ClearSignalHandler() {
	pc.sigMu.Lock()
	stop := pc.sigStop
	pc.sigStop = nil
	pc.sigMu.Unlock()
	if stop != nil {
		stop()
	}
}

func (pc *Context) loadSignalHandler(threaded bool) {
	pc.ClearSignalHandler()

	signals := make(chan os.Signal, 2)
	stopped := make(chan struct{})
	pc.notify(signals, os.Interrupt, syscall.SIGTERM)

	pc.sigMu.Lock()
	pc.sigStop = func() {
		pc.stopNotify(signals)
		close(stopped)
	}
	pc.sigMu.Unlock()

	go func() {
		var sig os.Signal
		select {
		case sig = <-signals:
		case <-stopped:
			return
		}
		code := exitCode(sig)
		if !threaded {
			pc.terminate(sig)
			pc.exit(code)
			return
		}
		done := make(chan struct{})
		go func() {
			pc.terminate(sig)
			close(done)
		}()
		select {
		case <-done:
		case <-signals:
			pc.logger.Warn("second signal, exiting without cleanup")
		}
		pc.exit(code)
	}()
}

func (pc *Context) terminate(sig os.Signal) {
	pc.logger.Warn("signal received, shutting down", "signal", sig.String())
	if err := pc.Abort(int(status.UserAbort), "aborted by signal "+sig.String()); err != nil {
		pc.logger.Warn("abort failed", "error", err)
	}
	if err := pc.Shutdown(); err != nil {
		pc.logger.Warn("shutdown failed", "error", err)
	}
}

// exitCode follows the shell convention of 128 plus the signal number.
func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
