// Package status defines the error taxonomy shared by federates, cores and
// brokers.
//
// Every fallible operation returns a Go error. At the boundary, errors are
// captured into a Record ({code, message}) where code 0 means success and any
// other value mirrors the numeric taxonomy below.
//
// # Kinds
//
//   - InvalidArgument: unknown name, empty required string, bad index.
//   - InvalidState: operation not legal in the current lifecycle state.
//   - InvalidProperty: unknown property, flag or option, or a value out of range.
//   - Connection: a required connection is missing, or a disconnect wait timed out.
//   - FederationFatal: a global error; the whole federation halts.
//   - LocalFatal: a local error; only the calling federate is finalized.
//
// Kinds 1-4 are recoverable: the call returns a harmless default (nil object,
// -1 count, MAXTIME for a time) and the caller decides what to do. Kind 5 is
// observable by every later call of every federate.
//
// Errors compare by kind with errors.Is:
//
//	if errors.Is(err, status.ErrInvalidState) { ... }
package status
