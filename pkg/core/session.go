package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/transport"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Grant is the answer to a lifecycle or time request.
type Grant struct {
	Time   simtime.Time
	Result option.IterationResult
}

// Value is a publication value delivered to an input.
type Value struct {
	// Input is the receiving input.
	Input wire.GlobalHandle

	// Source is the sending publication or translator.
	Source wire.GlobalHandle

	// Name, Type and Units describe the source.
	Name  string
	Type  string
	Units string

	Time    simtime.Time
	Payload []byte
}

// LinkNotice reports that a local interface was linked to a remote one.
type LinkNotice struct {
	Local  wire.GlobalHandle
	Remote wire.GlobalHandle
	Name   string
	Type   string
	Units  string
	Kind   wire.InterfaceKind

	// Source is set when the remote interface sends to the local one.
	Source bool
}

// Handler receives the traffic delivered to one federate. Calls are made on
// the core's event loop in delivery order and must not call back into the
// core.
type Handler interface {
	// HandleValue receives a value for one of the federate's inputs.
	HandleValue(v Value)

	// HandleMessage receives a message for one of the federate's endpoints.
	HandleMessage(endpoint wire.GlobalHandle, m *message.Message)

	// HandleLink reports a resolved link.
	HandleLink(n LinkNotice)

	// HandleCommand receives a command sent to the federate.
	HandleCommand(source, command string)

	// HandleQuery answers a federate-specific query. It reports false for
	// queries it does not handle.
	HandleQuery(query string) (string, bool)
}

type nopHandler struct{}

func (nopHandler) HandleValue(Value)                                 {}
func (nopHandler) HandleMessage(wire.GlobalHandle, *message.Message) {}
func (nopHandler) HandleLink(LinkNotice)                             {}
func (nopHandler) HandleCommand(string, string)                      {}
func (nopHandler) HandleQuery(string) (string, bool)                 { return "", false }

// FederateConfig configures the registration of a federate.
type FederateConfig struct {
	// Flags are the wire flags describing the federate's timing role.
	Flags uint32

	// Properties are the initial time and integer properties.
	Properties map[option.Property]float64

	// DelayInitEntry holds the core's initialization requests until the
	// federate calls EnableInitEntry.
	DelayInitEntry bool

	// TerminateOnError turns a local error into a global error.
	TerminateOnError bool

	// Handler receives the federate's traffic. Nil discards it.
	Handler Handler
}

// Session is a federate's connection to its core.
type Session struct {
	core             *Core
	name             string
	handler          Handler
	logger           *slog.Logger
	terminateOnError bool

	// Owned by the core's event loop.
	id          wire.FederateID
	granted     simtime.Time
	requested   simtime.Time
	waitCounter int32
	nextHandle  int32
	delayInit   bool
	executing   bool
	checked     bool
	finalized   bool
	errored     bool
	closed      bool
}

// RegisterFederate registers a federate with the federation.
func (c *Core) RegisterFederate(ctx context.Context, name string, config FederateConfig) (*Session, error) {
	if name == "" {
		return nil, status.Errorf(status.KindInvalidArgument, "federate name is empty")
	}
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}
	s := &Session{
		core:             c,
		name:             name,
		handler:          config.Handler,
		logger:           c.logger.With(slog.String("federate", name)),
		terminateOnError: config.TerminateOnError,
		delayInit:        config.DelayInitEntry,
	}
	if s.handler == nil {
		s.handler = nopHandler{}
	}

	id, ch, err := c.pending.Add()
	if err != nil {
		return nil, ErrCoreStopped
	}
	msg := wire.New(wire.ActRegisterFederate)
	msg.Name = name
	msg.Flags = config.Flags
	msg.Counter = id
	msg.Props = propertyMap(config.Properties)

	var dup bool
	if err := c.do(ctx, func() {
		for _, other := range c.order {
			if other.name == name && !other.closed {
				dup = true
				return
			}
		}
		c.joining[id] = s
		c.up(msg)
	}); err != nil {
		c.pending.Cancel(id)
		return nil, err
	}
	if dup {
		c.pending.Cancel(id)
		return nil, status.Wrap(status.KindInvalidArgument, ErrDuplicateFederate, "federate %q", name)
	}

	ack, err := c.pending.Wait(ctx, id, ch)
	if err != nil {
		return nil, status.Wrap(status.KindConnection, err, "register federate %q", name)
	}
	if err := ack.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("federate registered", "id", ack.Dest.Fed)
	return s, nil
}

func propertyMap(props map[option.Property]float64) map[int]float64 {
	if len(props) == 0 {
		return nil
	}
	out := make(map[int]float64, len(props))
	for p, v := range props {
		out[p.Index()] = v
	}
	return out
}

// ID returns the federate id assigned by the root.
func (s *Session) ID() wire.FederateID {
	return s.id
}

// Name returns the federate name.
func (s *Session) Name() string {
	return s.name
}

// Core returns the core hosting the federate.
func (s *Session) Core() *Core {
	return s.core
}

func (s *Session) handle() wire.GlobalHandle {
	return wire.Handle(s.id, 0)
}

// usable reports why the session cannot issue requests. Runs on the loop.
func (s *Session) usable() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.errored:
		return status.Errorf(status.KindLocalFatal, "federate %q is in error state", s.name)
	}
	return nil
}

// Register registers an interface owned by the federate.
func (s *Session) Register(ctx context.Context, i Interface) (wire.GlobalHandle, error) {
	return s.core.register(ctx, s, i)
}

func (c *Core) register(ctx context.Context, s *Session, i Interface) (wire.GlobalHandle, error) {
	id, ch, err := c.pending.Add()
	if err != nil {
		return wire.GlobalHandle{}, ErrCoreStopped
	}
	var h wire.GlobalHandle
	var regErr error
	if err := c.do(ctx, func() {
		if s != nil {
			if regErr = s.usable(); regErr != nil {
				return
			}
			s.nextHandle++
			h = wire.Handle(s.id, s.nextHandle)
		} else {
			c.reg.next++
			h = wire.Handle(wire.FederateID(-int32(c.id)), c.reg.next)
			i.Flags |= wire.FlagCoreOwned
		}
		l := &local{
			kind:    i.Kind,
			name:    i.Name,
			handle:  h,
			typ:     i.Type,
			units:   i.Units,
			options: optionMap(i.Options),
			owner:   s,
		}
		if regErr = c.reg.add(l); regErr != nil {
			return
		}
		msg := wire.New(wire.ActRegisterInterface)
		msg.Source = h
		msg.Kind = i.Kind
		msg.Name = i.Name
		msg.Type = i.Type
		msg.Units = i.Units
		msg.Flags = i.Flags
		msg.Options = l.options
		msg.Operator = i.Operator
		msg.Counter = id
		c.up(msg)
	}); err != nil {
		c.pending.Cancel(id)
		return wire.GlobalHandle{}, err
	}
	if regErr != nil {
		c.pending.Cancel(id)
		return wire.GlobalHandle{}, regErr
	}
	ack, err := c.pending.Wait(ctx, id, ch)
	if err != nil {
		return wire.GlobalHandle{}, status.Wrap(status.KindConnection, err, "register %s %q", i.Kind, i.Name)
	}
	if err := ack.Err(); err != nil {
		return wire.GlobalHandle{}, err
	}
	return h, nil
}

func optionMap(opts map[option.HandleOption]int) map[int]int {
	out := make(map[int]int, len(opts))
	for o, v := range opts {
		out[o.Index()] = v
	}
	return out
}

// SetOption changes a handle option of one of the federate's interfaces.
func (s *Session) SetOption(h wire.GlobalHandle, o option.HandleOption, value int) error {
	if !o.IsValid() {
		return status.Errorf(status.KindInvalidProperty, "unknown handle option %d", int(o))
	}
	c := s.core
	return c.post(func() {
		l := c.reg.byHandle[h]
		if l == nil {
			return
		}
		l.options[o.Index()] = value
		msg := wire.New(wire.ActSetOption)
		msg.Dest = h
		msg.Options = map[int]int{o.Index(): value}
		c.up(msg)
	})
}

// SetTimeProperties replaces the federate's timing flags and updates the
// given properties at the root.
func (s *Session) SetTimeProperties(props map[option.Property]float64, flags uint32) error {
	c := s.core
	return c.post(func() {
		if s.usable() != nil {
			return
		}
		msg := wire.New(wire.ActSetTimeProps)
		msg.Source = s.handle()
		msg.Props = propertyMap(props)
		msg.Flags = flags
		c.up(msg)
	})
}

// EnableInitEntry clears the federate's hold on initialization.
func (s *Session) EnableInitEntry() error {
	c := s.core
	return c.post(func() {
		if s.delayInit {
			s.delayInit = false
			c.delay--
			c.flushInit()
		}
	})
}

// Link asks the root to link two named interfaces.
func (s *Session) Link(kind wire.LinkKind, source, target string) error {
	return s.core.link(kind, source, target)
}

// Unlink removes the links between the interface name of kind and target.
func (s *Session) Unlink(kind wire.InterfaceKind, name, target string) error {
	if name == "" || target == "" {
		return status.Errorf(status.KindInvalidArgument, "link names must not be empty")
	}
	msg := wire.New(wire.ActRemoveLink)
	msg.Kind = kind
	msg.Name = name
	msg.Target = target
	return s.core.forward(msg)
}

// EnterInitializing blocks until the initialization barrier is passed.
func (s *Session) EnterInitializing(ctx context.Context) error {
	reply, err := s.lifecycle(ctx, wire.New(wire.ActInitRequest))
	if err != nil {
		return err
	}
	if option.IterationResult(reply.Result) == option.Halted {
		if _, herr := s.core.haltState(); herr != nil {
			return herr
		}
		return status.Errorf(status.KindInvalidState, "federation terminated")
	}
	return reply.Err()
}

// EnterExecuting blocks until the executing barrier is passed or an
// iteration is granted.
func (s *Session) EnterExecuting(ctx context.Context, iterate option.IterationRequest) (Grant, error) {
	msg := wire.New(wire.ActExecRequest)
	msg.Iteration = uint8(iterate)
	reply, err := s.lifecycle(ctx, msg)
	if err != nil {
		return Grant{Time: simtime.MaxTime, Result: option.IterationError}, err
	}
	return s.result(reply)
}

// RequestTime blocks until the federate is granted a time.
func (s *Session) RequestTime(ctx context.Context, t simtime.Time, iterate option.IterationRequest) (Grant, error) {
	msg := wire.New(wire.ActTimeRequest)
	msg.Time = t
	msg.Iteration = uint8(iterate)
	reply, err := s.lifecycle(ctx, msg)
	if err != nil {
		return Grant{Time: simtime.MaxTime, Result: option.IterationError}, err
	}
	return s.result(reply)
}

// Finalize removes the federate from time coordination.
func (s *Session) Finalize(ctx context.Context) error {
	_, err := s.lifecycle(ctx, wire.New(wire.ActFinalize))
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (s *Session) result(reply *wire.ActionMessage) (Grant, error) {
	if option.IterationResult(reply.Result) == option.Halted {
		_, err := s.core.haltState()
		return Grant{Time: simtime.MaxTime, Result: option.Halted}, err
	}
	if err := reply.Err(); err != nil {
		return Grant{Time: simtime.MaxTime, Result: option.IterationError}, err
	}
	return Grant{Time: reply.Time, Result: option.IterationResult(reply.Result)}, nil
}

// lifecycle sends a lifecycle request and waits for its grant. Requests
// made after the federation stopped are answered with a halted grant.
func (s *Session) lifecycle(ctx context.Context, msg *wire.ActionMessage) (*wire.ActionMessage, error) {
	c := s.core
	id, ch, err := c.pending.Add()
	if err != nil {
		return c.haltedReply(0), nil
	}
	msg.Counter = id

	var early *wire.ActionMessage
	var refused error
	if err := c.do(ctx, func() {
		if msg.Action == wire.ActFinalize && (s.finalized || s.errored) {
			early = wire.New(wire.ActFinalizeAck)
			return
		}
		if refused = s.usable(); refused != nil {
			return
		}
		if halted, _ := c.haltState(); halted {
			if msg.Action == wire.ActFinalize {
				s.finalized = true
			}
			early = c.haltedReply(id)
			return
		}
		if msg.Action == wire.ActTimeRequest && !s.executing {
			refused = status.Errorf(status.KindInvalidState, "federate %q is not executing", s.name)
			return
		}
		msg.Source = s.handle()
		s.waitCounter = id
		if msg.Action == wire.ActTimeRequest {
			s.requested = msg.Time
		}
		if msg.Action == wire.ActInitRequest {
			c.requestInit(msg)
			return
		}
		c.up(msg)
	}); err != nil {
		c.pending.Cancel(id)
		if errors.Is(err, ErrCoreStopped) {
			return c.haltedReply(id), nil
		}
		return nil, err
	}
	if refused != nil || early != nil {
		c.pending.Cancel(id)
		return early, refused
	}

	reply, err := c.pending.Wait(ctx, id, ch)
	if errors.Is(err, transport.ErrPendingClosed) {
		return c.haltedReply(id), nil
	}
	return reply, err
}

// haltedReply is the grant returned once no further grants will come.
func (c *Core) haltedReply(counter int32) *wire.ActionMessage {
	m := wire.New(wire.ActTimeGrant)
	m.Counter = counter
	m.Time = simtime.MaxTime
	m.Result = uint8(option.Halted)
	return m
}

// LocalError finalizes the federate with an error. The session stays open
// for logging and queries during the local error window.
func (s *Session) LocalError(code int, msg string) error {
	if s.terminateOnError {
		return s.GlobalError(code, msg)
	}
	err := status.New(status.Code(code), status.KindLocalFatal, msg)
	return s.core.do(context.Background(), func() { s.core.localError(s, err) })
}

// GlobalError halts the whole federation.
func (s *Session) GlobalError(code int, msg string) error {
	m := wire.New(wire.ActGlobalError)
	m.Name = s.name
	m.SetError(status.New(status.Code(code), status.KindFederationFatal, msg))
	return s.core.forward(m)
}

// Publish sends a value from one of the federate's publications or
// translators, stamped with time t.
func (s *Session) Publish(h wire.GlobalHandle, t simtime.Time, payload []byte) error {
	c := s.core
	return c.post(func() {
		if s.usable() != nil || s.finalized {
			return
		}
		msg := wire.New(wire.ActPublish)
		msg.Source = h
		msg.Time = t
		msg.Payload = payload
		c.up(msg)
	})
}

// Send sends a message from one of the federate's endpoints.
func (s *Session) Send(h wire.GlobalHandle, m *message.Message) error {
	if m == nil {
		return status.Errorf(status.KindInvalidArgument, "message is nil")
	}
	c := s.core
	return c.post(func() {
		if s.usable() != nil || s.finalized {
			return
		}
		msg := wire.New(wire.ActSendMessage)
		msg.Source = h
		msg.Message = m
		c.up(msg)
	})
}

// SendCommand sends a command from the federate.
func (s *Session) SendCommand(target, command string, mode option.SequencingMode) error {
	return s.core.sendCommand(s.name, target, command, mode.Resolve(option.SequencingFast) == option.SequencingFast)
}

// SetGlobal stores a federation-wide global value.
func (s *Session) SetGlobal(name, value string) error {
	return s.core.SetGlobal(name, value)
}

// SetProperty sets a property of a filter or translator and waits for the
// root to apply it. Text values are used when text is not empty.
func (s *Session) SetProperty(ctx context.Context, name, property string, value float64, text string) error {
	return s.core.SetProperty(ctx, name, property, value, text)
}

// SetOperator replaces the operator of a custom filter or translator.
func (s *Session) SetOperator(ctx context.Context, name string, operator any) error {
	return s.core.SetOperator(ctx, name, operator)
}

// Query runs a query from the federate. Queries about the federate itself
// are answered by the caller.
func (s *Session) Query(ctx context.Context, target, query string, mode option.SequencingMode) (string, error) {
	c := s.core
	var refused error
	if err := c.do(ctx, func() {
		if s.closed {
			refused = ErrSessionClosed
		}
	}); err != nil {
		return "", err
	}
	if refused != nil {
		return "", refused
	}
	return c.Query(ctx, target, query, mode)
}

// SetTerminateOnError changes whether local errors escalate to global ones.
func (s *Session) SetTerminateOnError(on bool) error {
	return s.core.post(func() { s.terminateOnError = on })
}

// Sync waits until the core has handled everything queued before the call,
// including deliveries to the federate's handler.
func (s *Session) Sync(ctx context.Context) error {
	return s.core.do(ctx, func() {})
}
