// Package federate is the simulator-facing API of a federation.
//
// A Federate registers with a core.Core and owns publications, inputs,
// endpoints, filters and translators. Values published during a time step
// reach the linked inputs of other federates once those are granted a time
// at or after the value's timestamp. Messages sent from endpoints are
// queued on the receiving endpoint in time order.
//
// Every blocking lifecycle call has an asynchronous form: the Async method
// starts the request and the matching Complete method waits for it. Only
// one asynchronous operation may be outstanding per federate.
//
// Interface names registered with the non-global methods are prefixed with
// the federate name and the separator, '/' by default.
package federate
