package core

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

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/transport"
	"github.com/fedsim/fedsim-go/pkg/version"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// State is the lifecycle state of a core.
type State uint8

const (
	// StateCreated - core created but not connected.
	StateCreated State = iota

	// StateConnected - core registered with its broker.
	StateConnected

	// StateTerminating - the core is leaving the federation.
	StateTerminating

	// StateDisconnected - the core has stopped.
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

// Core aggregates the federates of one process and multiplexes their
// requests onto a broker.
type Core struct {
	config   Config
	name     string
	coreType string
	logger   *slog.Logger
	protocol log.Logger
	metrics  *metrics.Collectors
	clock    clock.Clock

	inbox   *transport.Mailbox
	pending *transport.Pending

	// Owned by the event loop.
	id       wire.NodeID
	state    State
	parent   transport.Link
	owned    *broker.Broker
	sessions map[wire.FederateID]*Session
	joining  map[int32]*Session
	order    []*Session
	reg      *registry
	heldInit []*wire.ActionMessage
	delay    int

	haltMu  sync.Mutex
	halted  bool
	haltErr error

	connected atomic.Bool
	started   atomic.Bool
	logFile   *os.File

	stopOnce sync.Once
	loopDone chan struct{}
	done     chan struct{}
}

// New creates a core. Call Connect to join the federation.
func New(config Config) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	coreType, _ := ParseType(config.Type)
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.LocalErrorWindow == 0 {
		config.LocalErrorWindow = DefaultLocalErrorWindow
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if coreType == TypeTCP && config.BrokerAddress == "" {
		config.BrokerAddress = fmt.Sprintf("localhost:%d", transport.DefaultPort)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Core{
		config:   config,
		name:     config.Name,
		coreType: coreType,
		logger:   logger.With(slog.String("core", config.Name)),
		protocol: log.OrNoop(config.ProtocolLogger),
		metrics:  config.Metrics,
		clock:    config.Clock,
		inbox:    transport.NewMailbox(),
		pending:  transport.NewPending(),
		sessions: make(map[wire.FederateID]*Session),
		joining:  make(map[int32]*Session),
		reg:      newRegistry(),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	if config.DelayInitEntry {
		c.delay = 1
	}
	return c, nil
}

// Name returns the core name.
func (c *Core) Name() string {
	return c.name
}

// Clock returns the clock driving the core's timers.
func (c *Core) Clock() clock.Clock {
	return c.clock
}

// Identifier returns the core name.
func (c *Core) Identifier() string {
	return c.name
}

// Type returns the resolved core type.
func (c *Core) Type() string {
	return c.coreType
}

// IsConnected reports whether the core is registered with its broker.
func (c *Core) IsConnected() bool {
	return c.connected.Load()
}

// Address returns the broker address for tcp cores and an inproc address
// otherwise.
func (c *Core) Address() string {
	if c.coreType == TypeTCP {
		return "tcp://" + c.config.BrokerAddress + "/" + c.name
	}
	return "inproc://" + c.name
}

// Broker returns the root broker started by this core, nil if the core
// attached to an existing broker.
func (c *Core) Broker() *broker.Broker {
	return c.owned
}

// Connect starts the event loop and registers the core with its broker. A
// core without a broker first starts an in-process root broker.
func (c *Core) Connect(ctx context.Context) (err error) {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go c.run()
	defer func() {
		if err != nil && c.owned != nil {
			_ = c.owned.Disconnect()
		}
	}()

	link, err := c.dial(ctx)
	if err != nil {
		c.stop()
		return err
	}

	id, ch, err := c.pending.Add()
	if err != nil {
		c.stop()
		return err
	}
	reg := wire.New(wire.ActRegisterNode)
	reg.Name = c.name
	reg.Type = version.Current
	reg.Counter = id

	if err := c.do(ctx, func() { c.parent = link }); err != nil {
		link.Close()
		c.stop()
		return err
	}
	if err := link.Send(reg); err != nil {
		c.pending.Cancel(id)
		c.stop()
		return status.Wrap(status.KindConnection, err, "register with broker")
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()
	ack, err := c.pending.Wait(waitCtx, id, ch)
	if err != nil {
		c.stop()
		return status.Wrap(status.KindConnection, err, "register with broker")
	}
	if err := ack.Err(); err != nil {
		c.stop()
		return err
	}
	if err := c.do(ctx, func() {
		c.id = ack.DestNode
		c.setState(StateConnected, "")
	}); err != nil {
		c.stop()
		return err
	}
	c.connected.Store(true)
	c.logger.Info("core connected", "id", ack.DestNode, "address", c.Address())
	return nil
}

func (c *Core) dial(ctx context.Context) (transport.Link, error) {
	if c.coreType == TypeTCP {
		link, err := transport.Dial(ctx, c.config.BrokerAddress, c.inbox, transport.DialConfig{
			Node:           c.name,
			ConnectTimeout: c.config.ConnectTimeout,
			Logger:         c.logger,
			ProtocolLogger: c.config.ProtocolLogger,
		})
		if err != nil {
			return nil, status.Wrap(status.KindConnection, err, "connect to %s", c.config.BrokerAddress)
		}
		return link, nil
	}

	parent := c.config.Broker
	if parent == nil {
		b, err := broker.New(broker.Config{
			Name:           c.name + "_broker",
			MinFederates:   c.config.MinFederates,
			Logger:         c.config.Logger,
			ProtocolLogger: c.config.ProtocolLogger,
			Metrics:        c.config.Metrics,
			Clock:          c.clock,
		})
		if err != nil {
			return nil, err
		}
		if err := b.Connect(ctx); err != nil {
			return nil, fmt.Errorf("start broker: %w", err)
		}
		c.owned = b
		parent = b
	}
	link, err := parent.Attach(c.name, c.inbox)
	if err != nil {
		return nil, status.Wrap(status.KindConnection, err, "attach to broker")
	}
	return link, nil
}

// Disconnect finalizes every federate of the core and leaves the federation.
func (c *Core) Disconnect() error {
	if !c.started.Load() {
		return nil
	}
	err := c.do(context.Background(), func() { c.leave("disconnect requested") })
	if errors.Is(err, ErrCoreStopped) {
		return nil
	}
	return err
}

// WaitForDisconnect blocks until the core stops. A negative timeout waits
// indefinitely.
func (c *Core) WaitForDisconnect(timeout time.Duration) error {
	if timeout < 0 {
		<-c.done
		return nil
	}
	timer := c.clock.Timer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return nil
	case <-timer.C:
		return status.Wrap(status.KindConnection, ErrDisconnectTimer, "waited %s", timeout)
	}
}

// Done is closed when the core stops.
func (c *Core) Done() <-chan struct{} {
	return c.done
}

// State returns the core state.
func (c *Core) State() State {
	var s State
	if err := c.do(context.Background(), func() { s = c.state }); err != nil {
		return StateDisconnected
	}
	return s
}

// SetLogFile adds a text log handler writing to path.
func (c *Core) SetLogFile(path string) error {
	handler, f, err := log.OpenTextLog(path, slog.LevelDebug)
	if err != nil {
		return err
	}
	return c.do(context.Background(), func() {
		if c.logFile != nil {
			c.logFile.Close()
		}
		c.logFile = f
		c.logger = slog.New(log.NewTeeHandler(c.logger.Handler(), handler))
	})
}

// SetReadyToInit releases initialization requests held by DelayInitEntry.
func (c *Core) SetReadyToInit() error {
	return c.post(func() {
		c.delay = 0
		c.flushInit()
	})
}

// SetTimeBarrier caps every grant in the federation at t until cleared.
func (c *Core) SetTimeBarrier(t simtime.Time) error {
	msg := wire.New(wire.ActSetBarrier)
	msg.Time = t
	return c.forward(msg)
}

// ClearTimeBarrier removes the time barrier.
func (c *Core) ClearTimeBarrier() error {
	return c.forward(wire.New(wire.ActClearBarrier))
}

// SetGlobal stores a federation-wide global value.
func (c *Core) SetGlobal(name, value string) error {
	if name == "" {
		return status.Errorf(status.KindInvalidArgument, "global name is empty")
	}
	msg := wire.New(wire.ActSetGlobal)
	msg.Name = name
	msg.Payload = []byte(value)
	return c.forward(msg)
}

// GlobalError halts the whole federation.
func (c *Core) GlobalError(code int, message string) error {
	msg := wire.New(wire.ActGlobalError)
	msg.Name = c.name
	msg.SetError(status.New(status.Code(code), status.KindFederationFatal, message))
	return c.forward(msg)
}

// SendCommand sends a command on the priority channel.
func (c *Core) SendCommand(target, command string) error {
	return c.sendCommand(c.name, target, command, true)
}

// SendOrderedCommand sends a command ordered with other traffic.
func (c *Core) SendOrderedCommand(target, command string) error {
	return c.sendCommand(c.name, target, command, false)
}

func (c *Core) sendCommand(source, target, command string, fast bool) error {
	if target == "" {
		return status.Errorf(status.KindInvalidArgument, "command target is empty")
	}
	msg := wire.New(wire.ActCommand)
	msg.Name = source
	msg.Target = target
	msg.Payload = []byte(command)
	msg.Set(wire.FlagFast, fast)
	return c.forward(msg)
}

// forward sends msg to the broker from the event loop.
func (c *Core) forward(msg *wire.ActionMessage) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	return c.post(func() { c.up(msg) })
}

// up sends msg toward the root. Runs on the event loop.
func (c *Core) up(msg *wire.ActionMessage) {
	if c.parent == nil {
		c.logger.Debug("no broker link", "action", msg.Action)
		return
	}
	msg.SourceNode = c.id
	if err := c.parent.Send(msg); err != nil {
		c.logger.Warn("send to broker failed", "action", msg.Action, "error", err)
	}
}

// do runs fn on the event loop and waits for it to finish.
func (c *Core) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !c.inbox.Run(func() {
		defer close(done)
		fn()
	}) {
		return ErrCoreStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.loopDone:
		select {
		case <-done:
			return nil
		default:
			return ErrCoreStopped
		}
	}
}

// post queues fn on the event loop without waiting.
func (c *Core) post(fn func()) error {
	if !c.started.Load() {
		return ErrNotConnected
	}
	if !c.inbox.Run(fn) {
		return ErrCoreStopped
	}
	return nil
}

func (c *Core) run() {
	defer close(c.loopDone)
	ctx := context.Background()
	for {
		env, err := c.inbox.Pop(ctx)
		if err != nil {
			return
		}
		if env.Fn != nil {
			env.Fn()
			continue
		}
		if env.Msg != nil && c.state != StateDisconnected {
			c.dispatch(env.Msg)
		}
	}
}

// leave halts every federate and disconnects from the broker. Runs on the
// event loop.
func (c *Core) leave(reason string) {
	if c.state == StateTerminating || c.state == StateDisconnected {
		return
	}
	c.logger.Info("core disconnecting", "reason", reason)
	c.setState(StateTerminating, reason)
	c.halt(nil)
	if c.parent == nil {
		c.shutdown()
		return
	}
	msg := wire.New(wire.ActDisconnect)
	msg.Name = c.name
	c.up(msg)

	// The broker may already be gone; do not wait for an ack forever.
	c.clock.AfterFunc(c.config.ConnectTimeout, func() {
		c.inbox.Run(c.shutdown)
	})
}

// shutdown stops the core. Runs on the event loop.
func (c *Core) shutdown() {
	if c.state == StateDisconnected {
		return
	}
	c.setState(StateDisconnected, "")
	c.stop()
}

func (c *Core) stop() {
	c.stopOnce.Do(func() {
		c.connected.Store(false)
		c.setHalted(nil)
		c.pending.Close()
		if c.parent != nil {
			c.parent.Close()
		}
		if c.logFile != nil {
			c.logFile.Close()
		}
		c.inbox.Close()
		close(c.done)
		c.logger.Info("core stopped")
	})
}

// setHalted records that no further grants will come. The first error wins.
func (c *Core) setHalted(err error) {
	c.haltMu.Lock()
	defer c.haltMu.Unlock()
	c.halted = true
	if c.haltErr == nil {
		c.haltErr = err
	}
}

// haltState reports whether the federation stopped granting, and why.
func (c *Core) haltState() (bool, error) {
	c.haltMu.Lock()
	defer c.haltMu.Unlock()
	return c.halted, c.haltErr
}

func (c *Core) setState(s State, reason string) {
	if c.state == s {
		return
	}
	old := c.state
	c.state = s
	c.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Node:      c.name,
		Direction: log.DirectionLocal,
		Layer:     log.LayerFederation,
		Category:  log.CategoryState,
		Role:      log.RoleCore,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityCore,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}
