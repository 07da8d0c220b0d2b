package federate

import (
	"context"
	"slices"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Endpoint sends and receives messages.
type Endpoint struct {
	iface
	targeted bool

	// Guarded by fed.mu.
	defaultDest  string
	destinations []string
	queue        []queued
	nextID       int32
}

type queued struct {
	msg *message.Message
	seq uint64
}

// RegisterEndpoint registers an endpoint with a local name.
func (f *Federate) RegisterEndpoint(ctx context.Context, name, typ string) (*Endpoint, error) {
	return f.registerEndpoint(ctx, f.localName(name), typ, false)
}

// RegisterGlobalEndpoint registers an endpoint with a global name.
func (f *Federate) RegisterGlobalEndpoint(ctx context.Context, name, typ string) (*Endpoint, error) {
	return f.registerEndpoint(ctx, name, typ, false)
}

// RegisterTargetedEndpoint registers an endpoint with a local name that
// only sends to its linked destinations.
func (f *Federate) RegisterTargetedEndpoint(ctx context.Context, name, typ string) (*Endpoint, error) {
	return f.registerEndpoint(ctx, f.localName(name), typ, true)
}

// RegisterGlobalTargetedEndpoint registers a targeted endpoint with a
// global name.
func (f *Federate) RegisterGlobalTargetedEndpoint(ctx context.Context, name, typ string) (*Endpoint, error) {
	return f.registerEndpoint(ctx, name, typ, true)
}

func (f *Federate) registerEndpoint(ctx context.Context, name, typ string, targeted bool) (*Endpoint, error) {
	base, err := f.register(ctx, core.Interface{Kind: wire.KindEndpoint, Name: name, Type: typ})
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{iface: base, targeted: targeted}
	f.mu.Lock()
	f.endpoints = append(f.endpoints, ep)
	f.adopt(ep.handle, ep)
	f.mu.Unlock()
	return ep, nil
}

// GetEndpoint returns an endpoint by global or local name, nil if there is
// none.
func (f *Federate) GetEndpoint(name string) *Endpoint {
	local := f.localName(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.endpoints {
		if ep.name == name || ep.name == local {
			return ep
		}
	}
	return nil
}

// GetEndpointByIndex returns the i-th registered endpoint, nil if i is out
// of range.
func (f *Federate) GetEndpointByIndex(i int) *Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.endpoints) {
		return nil
	}
	return f.endpoints[i]
}

// EndpointCount returns the number of registered endpoints.
func (f *Federate) EndpointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.endpoints)
}

// HasMessage reports whether any endpoint has a queued message.
func (f *Federate) HasMessage() bool {
	return f.PendingMessageCount() > 0
}

// PendingMessageCount returns the number of queued messages on all
// endpoints.
func (f *Federate) PendingMessageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ep := range f.endpoints {
		n += len(ep.queue)
	}
	return n
}

// GetMessage returns the next queued message, nil if there is none.
// Endpoints are drained in registration order, and each endpoint's queue
// is ordered by time, then source, then arrival.
func (f *Federate) GetMessage() *message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.endpoints {
		if m := ep.pop(); m != nil {
			return m
		}
	}
	return nil
}

// ClearMessages drops every queued message.
func (f *Federate) ClearMessages() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.endpoints {
		ep.queue = nil
	}
}

// IsTargeted reports whether the endpoint only sends to linked destinations.
func (ep *Endpoint) IsTargeted() bool {
	return ep.targeted
}

// SetDefaultDestination sets the destination of messages sent without one.
func (ep *Endpoint) SetDefaultDestination(dest string) {
	ep.fed.mu.Lock()
	ep.defaultDest = dest
	ep.fed.mu.Unlock()
}

// DefaultDestination returns the default destination.
func (ep *Endpoint) DefaultDestination() string {
	ep.fed.mu.Lock()
	defer ep.fed.mu.Unlock()
	return ep.defaultDest
}

// Destinations returns the destinations the endpoint is linked to.
func (ep *Endpoint) Destinations() []string {
	ep.fed.mu.Lock()
	defer ep.fed.mu.Unlock()
	return append([]string(nil), ep.destinations...)
}

// AddSourceTarget makes messages from the named endpoint without a
// destination arrive here.
func (ep *Endpoint) AddSourceTarget(name string) error {
	return ep.fed.session.Link(wire.LinkEndpoint, name, ep.name)
}

// AddDestinationTarget sends messages without a destination to the named
// endpoint as well.
func (ep *Endpoint) AddDestinationTarget(name string) error {
	if err := ep.fed.session.Link(wire.LinkEndpoint, ep.name, name); err != nil {
		return err
	}
	ep.fed.mu.Lock()
	ep.addDestination(name)
	ep.fed.mu.Unlock()
	return nil
}

// RemoveTarget removes every link between the endpoint and name.
func (ep *Endpoint) RemoveTarget(name string) error {
	if err := ep.fed.session.Unlink(wire.KindEndpoint, ep.name, name); err != nil {
		return err
	}
	ep.fed.mu.Lock()
	ep.destinations = slices.DeleteFunc(ep.destinations, func(d string) bool { return d == name })
	ep.fed.mu.Unlock()
	return nil
}

// AddSourceFilter attaches a named filter to messages sent by the endpoint.
func (ep *Endpoint) AddSourceFilter(filter string) error {
	return ep.fed.session.Link(wire.LinkSourceFilter, filter, ep.name)
}

// AddDestinationFilter attaches a named filter to messages received by the
// endpoint.
func (ep *Endpoint) AddDestinationFilter(filter string) error {
	return ep.fed.session.Link(wire.LinkDestinationFilter, filter, ep.name)
}

// Subscribe delivers the values of a named publication as messages.
func (ep *Endpoint) Subscribe(publication string) error {
	return ep.fed.session.Link(wire.LinkEndpointSubscription, publication, ep.name)
}

// CreateMessage returns a message from the endpoint to its default
// destination at the current time.
func (ep *Endpoint) CreateMessage() *message.Message {
	f := ep.fed
	f.mu.Lock()
	defer f.mu.Unlock()
	return message.New(ep.name, ep.defaultDest, f.current, nil)
}

// SendBytes sends data to the default destination, or to the linked
// destinations if there is none.
func (ep *Endpoint) SendBytes(data []byte) error {
	return ep.SendMessage(&message.Message{Data: data, Time: simtime.Invalid})
}

// SendBytesTo sends data to dest at the current time.
func (ep *Endpoint) SendBytesTo(data []byte, dest string) error {
	return ep.SendMessage(&message.Message{Destination: dest, Data: data, Time: simtime.Invalid})
}

// SendBytesToAt sends data to dest stamped with t. Times before the current
// time are raised to it.
func (ep *Endpoint) SendBytesToAt(data []byte, dest string, t simtime.Time) error {
	return ep.SendMessage(&message.Message{Destination: dest, Data: data, Time: t})
}

// SendString sends a string to the default destination.
func (ep *Endpoint) SendString(s string) error {
	return ep.SendBytes([]byte(s))
}

// SendStringTo sends a string to dest.
func (ep *Endpoint) SendStringTo(s, dest string) error {
	return ep.SendBytesTo([]byte(s), dest)
}

// SendStringToAt sends a string to dest stamped with t.
func (ep *Endpoint) SendStringToAt(s, dest string, t simtime.Time) error {
	return ep.SendBytesToAt([]byte(s), dest, t)
}

// SendMessage sends a copy of m from the endpoint. An empty destination
// uses the default destination.
func (ep *Endpoint) SendMessage(m *message.Message) error {
	if m == nil {
		return status.Errorf(status.KindInvalidArgument, "message is nil")
	}
	f := ep.fed
	out := m.Clone()

	f.mu.Lock()
	if err := f.sendError("send a message"); err != nil {
		f.mu.Unlock()
		return err
	}
	out.Source = ep.name
	if out.OriginalSource == "" {
		out.OriginalSource = ep.name
	}
	if out.Destination == "" {
		out.Destination = ep.defaultDest
	}
	if out.OriginalDestination == "" {
		out.OriginalDestination = out.Destination
	}
	if out.Time < f.current {
		out.Time = f.current
	}
	if ep.targeted && out.Destination != "" && !slices.Contains(ep.destinations, out.Destination) {
		f.mu.Unlock()
		return status.Errorf(status.KindInvalidArgument, "%q is not a destination of targeted endpoint %q", out.Destination, ep.name)
	}
	if out.MessageID == 0 {
		ep.nextID++
		out.MessageID = ep.nextID
	}
	f.mu.Unlock()
	return f.session.Send(ep.handle, out)
}

// GetMessage returns the next message queued on the endpoint, nil if there
// is none.
func (ep *Endpoint) GetMessage() *message.Message {
	ep.fed.mu.Lock()
	defer ep.fed.mu.Unlock()
	return ep.pop()
}

// HasMessage reports whether a message is queued on the endpoint.
func (ep *Endpoint) HasMessage() bool {
	return ep.PendingMessageCount() > 0
}

// PendingMessageCount returns the number of messages queued on the
// endpoint.
func (ep *Endpoint) PendingMessageCount() int {
	ep.fed.mu.Lock()
	defer ep.fed.mu.Unlock()
	return len(ep.queue)
}

// ClearMessages drops the messages queued on the endpoint.
func (ep *Endpoint) ClearMessages() {
	ep.fed.mu.Lock()
	ep.queue = nil
	ep.fed.mu.Unlock()
}

// pop requires fed.mu.
func (ep *Endpoint) pop() *message.Message {
	if len(ep.queue) == 0 {
		return nil
	}
	m := ep.queue[0].msg
	ep.queue = ep.queue[1:]
	return m
}

// enqueue inserts m in time, source, arrival order. Requires fed.mu.
func (ep *Endpoint) enqueue(m *message.Message, seq uint64) {
	q := queued{msg: m, seq: seq}
	i, _ := slices.BinarySearchFunc(ep.queue, q, func(a, b queued) int {
		switch {
		case a.msg.Time < b.msg.Time:
			return -1
		case a.msg.Time > b.msg.Time:
			return 1
		case a.msg.Source < b.msg.Source:
			return -1
		case a.msg.Source > b.msg.Source:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	ep.queue = slices.Insert(ep.queue, i, q)
}

// addDestination requires fed.mu.
func (ep *Endpoint) addDestination(name string) {
	if !slices.Contains(ep.destinations, name) {
		ep.destinations = append(ep.destinations, name)
	}
}
