package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/transport"
	"github.com/fedsim/fedsim-go/pkg/version"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// State is the lifecycle state of a broker.
type State uint8

const (
	// StateCreated - broker created but not connected.
	StateCreated State = iota

	// StateConnected - broker accepts children and routes traffic.
	StateConnected

	// StateOperating - the federation passed the executing barrier.
	StateOperating

	// StateTerminating - the broker waits for its children to leave.
	StateTerminating

	// StateDisconnected - the broker has stopped.
	StateDisconnected

	// StateErrored - a global error halted the federation.
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateOperating:
		return "operating"
	case StateTerminating:
		return "terminating"
	case StateDisconnected:
		return "disconnected"
	case StateErrored:
		return "error"
	default:
		return "unknown"
	}
}

// Broker joins cores and sub-brokers into a federation.
type Broker struct {
	config   Config
	name     string
	logger   *slog.Logger
	protocol log.Logger
	metrics  *metrics.Collectors
	clock    clock.Clock
	role     log.Role

	inbox   *transport.Mailbox
	pending *transport.Pending

	// Owned by the event loop.
	id     wire.NodeID
	state  State
	parent transport.Link
	server *transport.Server
	tree   *tree
	root   *rootState

	connected atomic.Bool
	started   atomic.Bool
	logFile   *os.File

	stopOnce sync.Once
	loopDone chan struct{}
	done     chan struct{}
}

// New creates a broker. Call Connect to start it.
func New(config Config) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &Broker{
		config:   config,
		name:     config.Name,
		logger:   logger.With(slog.String("broker", config.Name)),
		protocol: log.OrNoop(config.ProtocolLogger),
		metrics:  config.Metrics,
		clock:    config.Clock,
		role:     log.RoleBroker,
		inbox:    transport.NewMailbox(),
		pending:  transport.NewPending(),
		tree:     newTree(),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	if config.IsRoot() {
		b.role = log.RoleRoot
		b.id = wire.RootNode
		b.root = newRootState(config.MinFederates, config.Seed)
	}
	return b, nil
}

// Name returns the broker name.
func (b *Broker) Name() string {
	return b.name
}

// Identifier returns the broker name.
func (b *Broker) Identifier() string {
	return b.name
}

// IsRoot reports whether the broker is the root of its federation.
func (b *Broker) IsRoot() bool {
	return b.root != nil
}

// IsConnected reports whether the broker is running.
func (b *Broker) IsConnected() bool {
	return b.connected.Load()
}

// Address returns the TCP listen address, or an inproc address.
func (b *Broker) Address() string {
	if b.server != nil {
		if addr := b.server.Addr(); addr != nil {
			return addr.String()
		}
	}
	return "inproc://" + b.name
}

// Connect starts the event loop, opens the listener and, for sub-brokers,
// registers with the parent.
func (b *Broker) Connect(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go b.run()

	if b.config.Listen != "" {
		server, err := transport.NewServer(transport.ServerConfig{
			Node:           b.name,
			Address:        b.config.Listen,
			Inbox:          b.inbox,
			Logger:         b.logger,
			ProtocolLogger: b.config.ProtocolLogger,
		})
		if err != nil {
			b.stop()
			return err
		}
		if err := server.Start(ctx); err != nil {
			b.stop()
			return err
		}
		b.server = server
	}

	if !b.IsRoot() {
		if err := b.connectParent(ctx); err != nil {
			b.stop()
			return err
		}
	}

	if err := b.do(ctx, func() { b.setState(StateConnected, "") }); err != nil {
		return err
	}
	b.connected.Store(true)
	b.logger.Info("broker connected", "root", b.IsRoot(), "address", b.Address())
	return nil
}

func (b *Broker) connectParent(ctx context.Context) error {
	var link transport.Link
	if b.config.Parent != nil {
		l, err := b.config.Parent.Attach(b.name, b.inbox)
		if err != nil {
			return fmt.Errorf("attach to parent: %w", err)
		}
		link = l
	} else {
		l, err := transport.Dial(ctx, b.config.ParentAddress, b.inbox, transport.DialConfig{
			Node:           b.name,
			ConnectTimeout: b.config.ConnectTimeout,
			Logger:         b.logger,
			ProtocolLogger: b.config.ProtocolLogger,
		})
		if err != nil {
			return status.Wrap(status.KindConnection, err, "connect to %s", b.config.ParentAddress)
		}
		link = l
	}

	id, ch, err := b.pending.Add()
	if err != nil {
		return err
	}
	reg := wire.New(wire.ActRegisterNode)
	reg.Name = b.name
	reg.Type = version.Current
	reg.Counter = id
	reg.Set(wire.FlagBroker, true)

	if err := b.do(ctx, func() { b.parent = link }); err != nil {
		return err
	}
	if err := link.Send(reg); err != nil {
		b.pending.Cancel(id)
		return status.Wrap(status.KindConnection, err, "register with parent")
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.ConnectTimeout)
	defer cancel()
	ack, err := b.pending.Wait(ctx, id, ch)
	if err != nil {
		return status.Wrap(status.KindConnection, err, "register with parent")
	}
	if err := ack.Err(); err != nil {
		return err
	}
	return b.do(ctx, func() { b.id = ack.DestNode })
}

// Attach connects an in-process child. The returned link carries the
// child's messages into this broker.
func (b *Broker) Attach(child string, inbox *transport.Mailbox) (transport.Link, error) {
	if b.inbox.Closed() {
		return nil, ErrBrokerStopped
	}
	if inbox == nil {
		return nil, status.Errorf(status.KindInvalidArgument, "child inbox is required")
	}
	toBroker, _ := transport.Pipe(child, inbox, b.name, b.inbox)
	return toBroker, nil
}

// Disconnect terminates the children of this broker and stops it.
func (b *Broker) Disconnect() error {
	if !b.started.Load() {
		return nil
	}
	err := b.do(context.Background(), func() {
		if b.state == StateDisconnected {
			return
		}
		b.logger.Info("broker disconnecting")
		b.broadcast(wire.New(wire.ActTerminate))
		if b.parent != nil {
			msg := wire.New(wire.ActDisconnect)
			msg.SourceNode = b.id
			msg.Name = b.name
			b.parent.Send(msg)
		}
		b.shutdown()
	})
	if errors.Is(err, ErrBrokerStopped) {
		return nil
	}
	return err
}

// WaitForDisconnect blocks until the broker stops. A negative timeout waits
// indefinitely.
func (b *Broker) WaitForDisconnect(timeout time.Duration) error {
	if timeout < 0 {
		<-b.done
		return nil
	}
	timer := b.clock.Timer(timeout)
	defer timer.Stop()
	select {
	case <-b.done:
		return nil
	case <-timer.C:
		return status.Wrap(status.KindConnection, ErrDisconnectTimer, "waited %s", timeout)
	}
}

// Done is closed when the broker stops.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// State returns the broker state.
func (b *Broker) State() State {
	var s State
	if err := b.do(context.Background(), func() { s = b.state }); err != nil {
		return StateDisconnected
	}
	return s
}

// SetLogFile adds a text log handler writing to path.
func (b *Broker) SetLogFile(path string) error {
	handler, f, err := log.OpenTextLog(path, slog.LevelDebug)
	if err != nil {
		return err
	}
	return b.do(context.Background(), func() {
		if b.logFile != nil {
			b.logFile.Close()
		}
		b.logFile = f
		b.logger = slog.New(log.NewTeeHandler(b.logger.Handler(), handler))
	})
}

// SetTimeBarrier caps every grant at t until cleared.
func (b *Broker) SetTimeBarrier(t simtime.Time) error {
	msg := wire.New(wire.ActSetBarrier)
	msg.Time = t
	return b.submit(msg)
}

// ClearTimeBarrier removes the time barrier.
func (b *Broker) ClearTimeBarrier() error {
	return b.submit(wire.New(wire.ActClearBarrier))
}

// SetGlobal stores a federation-wide global value.
func (b *Broker) SetGlobal(name, value string) error {
	if name == "" {
		return status.Errorf(status.KindInvalidArgument, "global name is empty")
	}
	msg := wire.New(wire.ActSetGlobal)
	msg.Name = name
	msg.Payload = []byte(value)
	return b.submit(msg)
}

// DataLink links a publication to an input, endpoint or translator.
func (b *Broker) DataLink(source, target string) error {
	return b.link(wire.LinkData, source, target)
}

// AddSourceFilterToEndpoint attaches a named filter to the sending side of
// an endpoint.
func (b *Broker) AddSourceFilterToEndpoint(filter, endpoint string) error {
	return b.link(wire.LinkSourceFilter, filter, endpoint)
}

// AddDestinationFilterToEndpoint attaches a named filter to the receiving
// side of an endpoint.
func (b *Broker) AddDestinationFilterToEndpoint(filter, endpoint string) error {
	return b.link(wire.LinkDestinationFilter, filter, endpoint)
}

func (b *Broker) link(kind wire.LinkKind, source, target string) error {
	if source == "" || target == "" {
		return status.Errorf(status.KindInvalidArgument, "link names must not be empty")
	}
	msg := wire.New(wire.ActAddLink)
	msg.Link = kind
	msg.Name = source
	msg.Target = target
	return b.submit(msg)
}

// MakeConnections applies the links described in a JSON, YAML or TOML file.
func (b *Broker) MakeConnections(path string) error {
	links, err := LoadConnections(path)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := b.link(l.Kind, l.Source, l.Target); err != nil {
			return err
		}
	}
	return nil
}

// SendCommand sends a command on the priority channel.
func (b *Broker) SendCommand(target, command string) error {
	return b.sendCommand(target, command, true)
}

// SendOrderedCommand sends a command ordered with other traffic.
func (b *Broker) SendOrderedCommand(target, command string) error {
	return b.sendCommand(target, command, false)
}

func (b *Broker) sendCommand(target, command string, fast bool) error {
	if target == "" {
		return status.Errorf(status.KindInvalidArgument, "command target is empty")
	}
	msg := wire.New(wire.ActCommand)
	msg.Target = target
	msg.Name = b.name
	msg.Payload = []byte(command)
	msg.Set(wire.FlagFast, fast)
	return b.submit(msg)
}

// GlobalError halts the whole federation.
func (b *Broker) GlobalError(code int, message string) error {
	msg := wire.New(wire.ActGlobalError)
	msg.Name = b.name
	msg.SetError(status.New(status.Code(code), status.KindFederationFatal, message))
	return b.submit(msg)
}

// Query answers a query against this broker or routes it to its target.
func (b *Broker) Query(ctx context.Context, target, query string, mode option.SequencingMode) (string, error) {
	if query == "" {
		return "", status.Errorf(status.KindInvalidArgument, "query string is empty")
	}
	mode = mode.Resolve(option.SequencingFast)
	b.metrics.Query(mode.String())

	var answer string
	var answered bool
	if err := b.do(ctx, func() { answer, answered = b.answerLocal(target, query) }); err != nil {
		return "", err
	}
	if answered {
		return answer, nil
	}

	id, ch, err := b.pending.Add()
	if err != nil {
		return "", err
	}
	msg := wire.New(wire.ActQuery)
	msg.Target = target
	msg.Name = b.name
	msg.Payload = []byte(query)
	msg.Counter = id
	msg.Set(wire.FlagFast, mode == option.SequencingFast)
	if err := b.do(ctx, func() {
		msg.SourceNode = b.id
		b.dispatch(msg, nil)
	}); err != nil {
		b.pending.Cancel(id)
		return "", err
	}
	reply, err := b.pending.Wait(ctx, id, ch)
	if err != nil {
		return "", err
	}
	return string(reply.Payload), nil
}

// submit injects a request as if it came from a local child.
func (b *Broker) submit(msg *wire.ActionMessage) error {
	if !b.started.Load() {
		return ErrNotConnected
	}
	return b.do(context.Background(), func() {
		msg.SourceNode = b.id
		b.dispatch(msg, nil)
	})
}

// do runs fn on the event loop and waits for it to finish.
func (b *Broker) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !b.inbox.Run(func() {
		defer close(done)
		fn()
	}) {
		return ErrBrokerStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.loopDone:
		select {
		case <-done:
			return nil
		default:
			return ErrBrokerStopped
		}
	}
}

func (b *Broker) run() {
	defer close(b.loopDone)
	ctx := context.Background()
	for {
		env, err := b.inbox.Pop(ctx)
		if err != nil {
			return
		}
		if env.Fn != nil {
			env.Fn()
			continue
		}
		if env.Msg != nil {
			b.dispatch(env.Msg, env.From)
		}
	}
}

func (b *Broker) dispatch(m *wire.ActionMessage, from transport.Link) {
	if b.state == StateDisconnected {
		return
	}
	if b.root != nil {
		b.handleRoot(m, from)
		return
	}
	b.handleSub(m, from)
}

// shutdown stops the broker. Runs on the event loop.
func (b *Broker) shutdown() {
	if b.state == StateDisconnected {
		return
	}
	b.setState(StateDisconnected, "")
	b.stop()
}

func (b *Broker) stop() {
	b.stopOnce.Do(func() {
		b.connected.Store(false)
		b.pending.Close()
		if b.server != nil {
			server := b.server
			go server.Stop()
		}
		if b.parent != nil {
			b.parent.Close()
		}
		if b.logFile != nil {
			b.logFile.Close()
		}
		b.inbox.Close()
		close(b.done)
		b.logger.Info("broker stopped")
	})
}

func (b *Broker) setState(s State, reason string) {
	if b.state == s {
		return
	}
	old := b.state
	b.state = s
	b.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Node:      b.name,
		Direction: log.DirectionLocal,
		Layer:     log.LayerFederation,
		Category:  log.CategoryState,
		Role:      b.role,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityBroker,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}

// send delivers msg toward node id.
func (b *Broker) send(id wire.NodeID, msg *wire.ActionMessage) {
	msg.DestNode = id
	if id == b.id {
		b.handleOwn(msg)
		return
	}
	link := b.tree.route(id)
	if link == nil {
		if b.parent != nil {
			b.parent.Send(msg)
			return
		}
		b.logger.Debug("no route to node", "node", id, "action", msg.Action)
		return
	}
	if err := link.Send(msg); err != nil {
		b.logger.Warn("send failed", "node", id, "action", msg.Action, "error", err)
	}
}

// handleOwn processes a message addressed to this broker itself.
func (b *Broker) handleOwn(msg *wire.ActionMessage) {
	switch msg.Action {
	case wire.ActQueryReply:
		if err := b.pending.Complete(msg); err != nil {
			b.logger.Debug("dropping query reply", "counter", msg.Counter, "error", err)
		}
	case wire.ActQuery:
		b.replyQuery(msg, b.answerOwn(string(msg.Payload)))
	case wire.ActCommand:
		b.runCommand(msg)
	}
}

// broadcast sends a copy of msg to every direct child.
func (b *Broker) broadcast(msg *wire.ActionMessage) {
	for _, link := range b.tree.directLinks() {
		if err := link.Send(msg.Clone()); err != nil {
			b.logger.Debug("broadcast failed", "peer", link.Peer(), "action", msg.Action, "error", err)
		}
	}
}

// disconnectWhenIdle stops the broker once every child has left.
func (b *Broker) disconnectWhenIdle() {
	if !b.tree.everConnected || b.tree.connectedCount() > 0 {
		return
	}
	if b.parent != nil {
		msg := wire.New(wire.ActDisconnect)
		msg.SourceNode = b.id
		msg.Name = b.name
		b.parent.Send(msg)
	}
	b.logger.Info("all children disconnected")
	b.shutdown()
}
