// Package broker implements the nodes that join cores into a federation.
//
// Brokers form a tree. The root broker assigns node and federate ids, owns
// the global directory of named interfaces, resolves links between them,
// runs the filter and translator pipeline, and computes every time grant.
// Sub-brokers forward traffic from their children to the root and route
// replies back down through their route table.
//
// Every broker runs a single event loop fed by a two-priority mailbox.
// Public methods are safe for concurrent use; they post work to the loop
// and wait for the answer.
//
// # Time coordination
//
// The root grants time conservatively. Every value and message passes
// through the root, so the root knows every undelivered event. For a
// waiting federate X with granted time g and requested time r the root
// computes a candidate
//
//	c = max(r, g + max(timeDelta, Epsilon)), aligned to X's period grid
//
// lowered to the earliest interrupting event after g, and capped by the
// time barrier. The candidate is granted once it does not exceed
//
//	LBTS_X = min over other active federates Y of (next_Y + outputDelay_Y) + inputDelay_X
//
// where next_Y is Y's granted time while Y executes and Y's own candidate
// while Y waits. Events due at or before the grant are delivered to the
// owning core ahead of the grant on the ordered channel.
package broker
