// Package simtime defines simulated time for a federation.
//
// Simulated time is a double-precision number of seconds. A few values are
// reserved:
//
//   - Zero: the start of execution. Every federate's time is exactly Zero
//     when it enters executing mode.
//   - Epsilon: the minimum resolution. Two times closer than Epsilon are
//     considered equal, and a time advance smaller than Epsilon is a no-op.
//   - Invalid: a large negative sentinel meaning "no meaningful time".
//   - MaxTime: a large positive sentinel meaning the federation has
//     terminated (or the federate asked to run to the end).
//
// Time values are totally ordered. Grants handed out by a broker are always
// monotonically non-decreasing per federate.
package simtime
