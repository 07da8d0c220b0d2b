// Package core hosts federates on one process and connects them to a broker.
//
// A Core runs a single event loop fed by a two-priority mailbox, like a
// broker. Each federate reaches its core through a Session: registration,
// lifecycle and time requests, publications and messages are posted to the
// loop, and traffic released by the root broker is handed back to the
// federate's Handler on the loop in delivery order.
//
// Interface names are checked against the core's local registry before the
// registration is forwarded to the root, so duplicates fail without a round
// trip. Handle-level connection policy (required, single connection,
// connection counts, strict type checking) is enforced when the executing
// barrier is granted.
//
// A core created without a broker starts and owns an in-process root broker.
package core
