package federate

import (
	"context"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// operation is an outstanding asynchronous lifecycle request.
type operation struct {
	pending option.FederateState
	done    chan struct{}

	time   simtime.Time
	result option.IterationResult
	err    error
}

// start runs fn in the background as the federate's asynchronous operation.
func (f *Federate) start(ctx context.Context, pending option.FederateState, fn func(context.Context) (simtime.Time, option.IterationResult, error)) error {
	f.mu.Lock()
	if f.async != nil {
		f.mu.Unlock()
		return ErrAsyncOutstanding
	}
	op := &operation{pending: pending, done: make(chan struct{})}
	f.async = op
	f.mu.Unlock()

	go func() {
		op.time, op.result, op.err = fn(ctx)
		close(op.done)
	}()
	return nil
}

// complete waits for the outstanding operation started with pending.
func (f *Federate) complete(ctx context.Context, pending option.FederateState) (*operation, error) {
	f.mu.Lock()
	op := f.async
	f.mu.Unlock()
	if op == nil || op.pending != pending {
		return nil, ErrNoAsync
	}
	select {
	case <-op.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.async = nil
	f.mu.Unlock()
	return op, nil
}

// idle rejects blocking calls while an asynchronous operation is outstanding.
func (f *Federate) idle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.async != nil {
		return ErrAsyncOutstanding
	}
	return nil
}

// IsAsyncOperationCompleted reports whether the outstanding asynchronous
// operation has finished. It never blocks.
func (f *Federate) IsAsyncOperationCompleted() bool {
	f.mu.Lock()
	op := f.async
	f.mu.Unlock()
	if op == nil {
		return false
	}
	select {
	case <-op.done:
		return true
	default:
		return false
	}
}

// stateError is the error for an operation not allowed in state.
// Requires mu.
func (f *Federate) stateError(op string) error {
	if f.state == option.StateError && f.fatal != nil {
		return f.fatal
	}
	return status.Errorf(status.KindInvalidState, "cannot %s in state %s", op, f.state)
}

// sendError reports why the federate may not send. Observers never send.
// Requires mu.
func (f *Federate) sendError(op string) error {
	if !f.active() {
		return f.stateError(op)
	}
	if f.flags[option.FlagObserver] {
		return status.Errorf(status.KindInvalidState, "cannot %s from observer federate %q", op, f.name)
	}
	return nil
}

// active reports whether the federate may send. Requires mu.
func (f *Federate) active() bool {
	return f.state == option.StateInitializing || f.state == option.StateExecuting
}

// failLocked records a fatal lifecycle error. Requires mu.
func (f *Federate) failLocked(err error) {
	switch status.KindOf(err) {
	case status.KindFederationFatal, status.KindLocalFatal, status.KindConnection:
		f.state = option.StateError
		f.fatal = err
	}
}

// EnterInitializingMode blocks until every federate has entered
// initializing mode.
func (f *Federate) EnterInitializingMode(ctx context.Context) error {
	if err := f.idle(); err != nil {
		return err
	}
	return f.enterInit(ctx)
}

// EnterInitializingModeAsync starts entering initializing mode.
func (f *Federate) EnterInitializingModeAsync(ctx context.Context) error {
	return f.start(ctx, option.StatePendingInit, func(ctx context.Context) (simtime.Time, option.IterationResult, error) {
		return simtime.Zero, option.NextStep, f.enterInit(ctx)
	})
}

// EnterInitializingModeComplete waits for EnterInitializingModeAsync.
func (f *Federate) EnterInitializingModeComplete(ctx context.Context) error {
	op, err := f.complete(ctx, option.StatePendingInit)
	if err != nil {
		return err
	}
	return op.err
}

func (f *Federate) enterInit(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case option.StateCreated:
	case option.StateInitializing:
		f.mu.Unlock()
		return nil
	default:
		err := f.stateError("enter initializing mode")
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	err := f.session.EnterInitializing(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.failLocked(err)
		return err
	}
	f.state = option.StateInitializing
	f.logger.Load().Debug("entered initializing mode")
	return nil
}

// EnterExecutingMode blocks until every federate has entered executing
// mode. A federate still in created state enters initializing mode first.
func (f *Federate) EnterExecutingMode(ctx context.Context) error {
	if err := f.idle(); err != nil {
		return err
	}
	_, err := f.enterExec(ctx, option.NoIteration)
	return err
}

// EnterExecutingModeIterative requests executing mode with an iteration
// request. The result is option.Iterating while initialization iterates.
func (f *Federate) EnterExecutingModeIterative(ctx context.Context, iterate option.IterationRequest) (option.IterationResult, error) {
	if err := f.idle(); err != nil {
		return option.IterationError, err
	}
	return f.enterExec(ctx, iterate)
}

// EnterExecutingModeAsync starts entering executing mode.
func (f *Federate) EnterExecutingModeAsync(ctx context.Context) error {
	return f.EnterExecutingModeIterativeAsync(ctx, option.NoIteration)
}

// EnterExecutingModeComplete waits for EnterExecutingModeAsync.
func (f *Federate) EnterExecutingModeComplete(ctx context.Context) error {
	_, err := f.EnterExecutingModeIterativeComplete(ctx)
	return err
}

// EnterExecutingModeIterativeAsync starts an iterative executing mode
// request.
func (f *Federate) EnterExecutingModeIterativeAsync(ctx context.Context, iterate option.IterationRequest) error {
	return f.start(ctx, option.StatePendingExec, func(ctx context.Context) (simtime.Time, option.IterationResult, error) {
		result, err := f.enterExec(ctx, iterate)
		return simtime.Zero, result, err
	})
}

// EnterExecutingModeIterativeComplete waits for an asynchronous executing
// mode request.
func (f *Federate) EnterExecutingModeIterativeComplete(ctx context.Context) (option.IterationResult, error) {
	op, err := f.complete(ctx, option.StatePendingExec)
	if err != nil {
		return option.IterationError, err
	}
	return op.result, op.err
}

func (f *Federate) enterExec(ctx context.Context, iterate option.IterationRequest) (option.IterationResult, error) {
	if !iterate.IsValid() {
		return option.IterationError, status.Errorf(status.KindInvalidArgument, "invalid iteration request %d", int(iterate))
	}
	f.mu.Lock()
	state := f.state
	if state != option.StateCreated && state != option.StateInitializing {
		var err error
		if state != option.StateExecuting {
			err = f.stateError("enter executing mode")
		}
		f.mu.Unlock()
		if err != nil {
			return option.IterationError, err
		}
		return option.NextStep, nil
	}
	f.mu.Unlock()

	if state == option.StateCreated {
		if err := f.enterInit(ctx); err != nil {
			return option.IterationError, err
		}
	}
	g, err := f.session.EnterExecuting(ctx, iterate)
	f.applyGrant(g, err, true)
	return g.Result, err
}

// applyGrant records the outcome of an executing mode or time request.
func (f *Federate) applyGrant(g core.Grant, err error, exec bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case g.Result == option.Halted:
		f.current = simtime.MaxTime
		if err != nil {
			f.state = option.StateError
			f.fatal = err
		} else {
			f.state = option.StateFinalized
		}
		f.logger.Load().Info("federation halted", "error", err)
	case err != nil:
		f.failLocked(err)
	case exec:
		if g.Result == option.NextStep {
			f.state = option.StateExecuting
			f.current = simtime.Zero
			f.logger.Load().Debug("entered executing mode")
		}
	default:
		f.current = g.Time
	}
}

// RequestTime blocks until the federate is granted a time, at most t.
func (f *Federate) RequestTime(ctx context.Context, t simtime.Time) (simtime.Time, error) {
	if err := f.idle(); err != nil {
		return simtime.MaxTime, err
	}
	granted, _, err := f.requestTime(ctx, t, option.NoIteration)
	return granted, err
}

// RequestTimeAdvance requests the current time plus dt.
func (f *Federate) RequestTimeAdvance(ctx context.Context, dt simtime.Time) (simtime.Time, error) {
	if dt < 0 {
		return simtime.MaxTime, status.Errorf(status.KindInvalidArgument, "negative time advance %s", dt)
	}
	return f.RequestTime(ctx, simtime.Add(f.CurrentTime(), dt))
}

// RequestNextStep requests the next step after the current time allowed by
// the time delta and period.
func (f *Federate) RequestNextStep(ctx context.Context) (simtime.Time, error) {
	return f.RequestTime(ctx, f.nextStep())
}

func (f *Federate) nextStep() simtime.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	delta := simtime.Max(f.timeProps[option.PropertyTimeDelta], f.timeProps[option.PropertyPeriod])
	return simtime.Next(f.current, delta)
}

// RequestTimeIterative requests a time with an iteration request.
func (f *Federate) RequestTimeIterative(ctx context.Context, t simtime.Time, iterate option.IterationRequest) (simtime.Time, option.IterationResult, error) {
	if err := f.idle(); err != nil {
		return simtime.MaxTime, option.IterationError, err
	}
	return f.requestTime(ctx, t, iterate)
}

// RequestTimeAsync starts a time request.
func (f *Federate) RequestTimeAsync(ctx context.Context, t simtime.Time) error {
	return f.start(ctx, option.StatePendingTime, func(ctx context.Context) (simtime.Time, option.IterationResult, error) {
		return f.requestTime(ctx, t, option.NoIteration)
	})
}

// RequestTimeComplete waits for RequestTimeAsync.
func (f *Federate) RequestTimeComplete(ctx context.Context) (simtime.Time, error) {
	op, err := f.complete(ctx, option.StatePendingTime)
	if err != nil {
		return simtime.MaxTime, err
	}
	return op.time, op.err
}

// RequestTimeIterativeAsync starts an iterative time request.
func (f *Federate) RequestTimeIterativeAsync(ctx context.Context, t simtime.Time, iterate option.IterationRequest) error {
	return f.start(ctx, option.StatePendingIterativeTime, func(ctx context.Context) (simtime.Time, option.IterationResult, error) {
		return f.requestTime(ctx, t, iterate)
	})
}

// RequestTimeIterativeComplete waits for RequestTimeIterativeAsync.
func (f *Federate) RequestTimeIterativeComplete(ctx context.Context) (simtime.Time, option.IterationResult, error) {
	op, err := f.complete(ctx, option.StatePendingIterativeTime)
	if err != nil {
		return simtime.MaxTime, option.IterationError, err
	}
	return op.time, op.result, op.err
}

func (f *Federate) requestTime(ctx context.Context, t simtime.Time, iterate option.IterationRequest) (simtime.Time, option.IterationResult, error) {
	if !iterate.IsValid() {
		return simtime.MaxTime, option.IterationError, status.Errorf(status.KindInvalidArgument, "invalid iteration request %d", int(iterate))
	}
	f.mu.Lock()
	switch f.state {
	case option.StateExecuting:
	case option.StateFinalized:
		f.mu.Unlock()
		return simtime.MaxTime, option.Halted, nil
	default:
		err := f.stateError("request time")
		halted := status.KindOf(err) == status.KindFederationFatal
		f.mu.Unlock()
		if halted {
			return simtime.MaxTime, option.Halted, err
		}
		return simtime.MaxTime, option.IterationError, err
	}
	f.mu.Unlock()

	g, err := f.session.RequestTime(ctx, t, iterate)
	f.applyGrant(g, err, false)
	return g.Time, g.Result, err
}

// Finalize leaves the federation. Pending messages, commands and updates
// are dropped; the interface objects stay valid.
func (f *Federate) Finalize(ctx context.Context) error {
	if err := f.idle(); err != nil {
		return err
	}
	return f.finalize(ctx)
}

// FinalizeAsync starts finalizing.
func (f *Federate) FinalizeAsync(ctx context.Context) error {
	return f.start(ctx, option.StatePendingFinalize, func(ctx context.Context) (simtime.Time, option.IterationResult, error) {
		return simtime.MaxTime, option.Halted, f.finalize(ctx)
	})
}

// FinalizeComplete waits for FinalizeAsync.
func (f *Federate) FinalizeComplete(ctx context.Context) error {
	op, err := f.complete(ctx, option.StatePendingFinalize)
	if err != nil {
		return err
	}
	return op.err
}

func (f *Federate) finalize(ctx context.Context) error {
	f.mu.Lock()
	done := f.state == option.StateFinalized
	f.mu.Unlock()

	var err error
	if !done {
		err = f.session.Finalize(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != option.StateError {
		f.state = option.StateFinalized
	}
	for _, ep := range f.endpoints {
		ep.queue = nil
	}
	for _, in := range f.inputs {
		in.updated = false
	}
	f.commands = nil
	if f.logFile != nil {
		f.logFile.Close()
		f.logFile = nil
	}
	if !done {
		f.logger.Load().Debug("federate finalized")
	}
	return err
}

// Disconnect finalizes the federate. A core created by the federate is
// disconnected as well and awaited until ctx is done.
func (f *Federate) Disconnect(ctx context.Context) error {
	if err := f.Finalize(ctx); err != nil {
		return err
	}
	if !f.ownsCore {
		return nil
	}
	if err := f.core.Disconnect(); err != nil {
		return err
	}
	select {
	case <-f.core.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
