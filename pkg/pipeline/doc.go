// Package pipeline implements the operators that act on messages in flight.
//
// Filters are attached to endpoints either as source filters, which see a
// message when it is sent, or as destination filters, which see it before
// it is queued at the receiving endpoint. Filters on one endpoint run in the
// order they were attached. A filter may rewrite the message, drop it, or
// (for cloning filters) emit extra copies addressed to delivery endpoints.
//
// Translators convert between the value domain (publications and inputs)
// and the message domain (endpoints).
//
// Operators run on the root broker event loop and need no locking.
package pipeline
