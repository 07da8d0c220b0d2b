package broker

import (
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/transport"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// DefaultMaxIterations caps iterations at one time when a federate sets no
// MAX_ITERATIONS property.
const DefaultMaxIterations = 50

type fedState uint8

const (
	fedCreated fedState = iota
	fedInitRequested
	fedInitializing
	fedExecRequested
	fedExecuting
	fedFinalized
	fedErrored
)

func (s fedState) String() string {
	switch s {
	case fedCreated:
		return "created"
	case fedInitRequested:
		return "init_requested"
	case fedInitializing:
		return "initializing"
	case fedExecRequested:
		return "exec_requested"
	case fedExecuting:
		return "executing"
	case fedFinalized:
		return "finalized"
	case fedErrored:
		return "error"
	default:
		return "unknown"
	}
}

func (s fedState) terminal() bool {
	return s == fedFinalized || s == fedErrored
}

// federate is the root's view of one federate.
type federate struct {
	id    wire.FederateID
	name  string
	node  wire.NodeID
	state fedState

	observer        bool
	sourceOnly      bool
	uninterruptible bool
	waitForCurrent  bool

	timeDelta     simtime.Time
	period        simtime.Time
	offset        simtime.Time
	inputDelay    simtime.Time
	outputDelay   simtime.Time
	maxIterations int

	granted    simtime.Time
	waiting    bool
	request    simtime.Time
	iterate    option.IterationRequest
	iterations int
	counter    int32

	// deps are federates named by explicit dependency links.
	deps []string

	// events are undelivered values and messages, in arrival order.
	events []*event
}

func (f *federate) handle() wire.GlobalHandle {
	return wire.Handle(f.id, 0)
}

func (f *federate) active() bool {
	return f.state == fedExecuting
}

func (f *federate) applyTimeProps(props map[int]float64, flags uint32, hasFlags bool) {
	for k, v := range props {
		switch option.PropertyFromIndex(k) {
		case option.PropertyTimeDelta:
			f.timeDelta = simtime.Time(v)
		case option.PropertyPeriod:
			f.period = simtime.Time(v)
		case option.PropertyOffset:
			f.offset = simtime.Time(v)
		case option.PropertyInputDelay:
			f.inputDelay = simtime.Time(v)
		case option.PropertyOutputDelay:
			f.outputDelay = simtime.Time(v)
		case option.PropertyMaxIterations:
			if v > 0 {
				f.maxIterations = int(v)
			}
		}
	}
	if hasFlags {
		f.observer = flags&wire.FlagObserver != 0
		f.sourceOnly = flags&wire.FlagSourceOnly != 0
		f.uninterruptible = flags&wire.FlagUninterruptible != 0
		f.waitForCurrent = flags&wire.FlagWaitForCurrent != 0
	}
}

// rootState is the federation-wide state owned by the root broker.
type rootState struct {
	minFederates int

	feds    []*federate
	byName  map[string]*federate
	byID    map[wire.FederateID]*federate
	nextFed wire.FederateID

	dir *directory

	barrier    simtime.Time
	hasBarrier bool
	globals    map[string]string

	initDone bool
	execDone bool
	fatal    error
	seq      uint64
}

func newRootState(minFederates int, seed uint64) *rootState {
	return &rootState{
		minFederates: minFederates,
		byName:       make(map[string]*federate),
		byID:         make(map[wire.FederateID]*federate),
		nextFed:      1,
		dir:          newDirectory(seed),
		globals:      make(map[string]string),
	}
}

func (r *rootState) liveCount() int {
	n := 0
	for _, f := range r.feds {
		if !f.state.terminal() {
			n++
		}
	}
	return n
}

// handleRoot dispatches one message on the root broker.
func (b *Broker) handleRoot(m *wire.ActionMessage, from transport.Link) {
	switch m.Action {
	case wire.ActRegisterNode:
		b.registerNode(m, from)
	case wire.ActDisconnect:
		b.nodeDisconnect(m, from)
	case wire.ActRegisterFederate:
		b.registerFederate(m)
	case wire.ActRegisterInterface:
		b.registerInterface(m)
	case wire.ActAddLink:
		b.addLink(m)
	case wire.ActRemoveLink:
		b.removeLink(m)
	case wire.ActSetProperty:
		b.setProperty(m)
	case wire.ActSetOption:
		b.setOption(m)
	case wire.ActSetTimeProps:
		if f := b.federateFor(m.Source); f != nil {
			f.applyTimeProps(m.Props, m.Flags, true)
			b.grantPass()
		}
	case wire.ActInitRequest:
		b.initRequest(m)
	case wire.ActExecRequest:
		b.execRequest(m)
	case wire.ActTimeRequest:
		b.timeRequest(m)
	case wire.ActFinalize:
		b.finalize(m, fedFinalized)
	case wire.ActLocalError:
		b.finalize(m, fedErrored)
	case wire.ActGlobalError:
		b.globalError(m)
	case wire.ActPublish:
		b.routeValue(m)
	case wire.ActSendMessage:
		b.routeMessage(m)
	case wire.ActCommand:
		b.routeCommand(m)
	case wire.ActQuery:
		b.routeQuery(m)
	case wire.ActQueryReply:
		b.send(m.DestNode, m)
	case wire.ActSetGlobal:
		b.root.globals[m.Name] = string(m.Payload)
	case wire.ActSetBarrier:
		b.root.barrier = m.Time
		b.root.hasBarrier = true
		b.logger.Debug("time barrier set", "time", m.Time)
		b.grantPass()
	case wire.ActClearBarrier:
		b.root.hasBarrier = false
		b.logger.Debug("time barrier cleared")
		b.grantPass()
	default:
		b.logger.Debug("ignoring action", "action", m.Action)
	}
}

func (b *Broker) federateFor(h wire.GlobalHandle) *federate {
	return b.root.byID[h.Fed]
}

func (b *Broker) registerFederate(m *wire.ActionMessage) {
	r := b.root
	ack := m.Reply(wire.ActFederateAck)
	ack.SourceNode = b.id

	switch {
	case m.Name == "":
		ack.SetError(status.Errorf(status.KindInvalidArgument, "federate name is empty"))
	case r.byName[m.Name] != nil:
		ack.SetError(status.Errorf(status.KindInvalidArgument, "duplicate federate name %q", m.Name))
	case r.execDone:
		ack.SetError(status.Errorf(status.KindInvalidState, "federation already executing"))
	case r.fatal != nil:
		ack.SetError(status.Wrap(status.KindFederationFatal, r.fatal, "federation halted"))
	}
	if ack.Err() != nil {
		b.send(m.SourceNode, ack)
		return
	}

	f := &federate{
		id:            r.nextFed,
		name:          m.Name,
		node:          m.SourceNode,
		maxIterations: DefaultMaxIterations,
	}
	r.nextFed++
	f.applyTimeProps(m.Props, m.Flags, true)
	r.feds = append(r.feds, f)
	r.byName[f.name] = f
	r.byID[f.id] = f

	ack.Dest = f.handle()
	b.send(m.SourceNode, ack)

	b.logger.Info("federate registered", "federate", f.name, "id", f.id, "node", f.node)
	b.metrics.SetFederates(b.name, r.liveCount())
	b.logFederate(f, "", f.state.String(), "")
	b.retryPending()
}

func (b *Broker) initRequest(m *wire.ActionMessage) {
	f := b.federateFor(m.Source)
	if f == nil || f.state != fedCreated {
		return
	}
	b.setFedState(f, fedInitRequested)
	b.checkInit()
}

// checkInit grants initializing mode once every registered federate asked
// for it and enough federates have registered.
func (b *Broker) checkInit() {
	r := b.root
	if !r.initDone {
		live := 0
		for _, f := range r.feds {
			if f.state.terminal() {
				continue
			}
			live++
			if f.state != fedInitRequested {
				return
			}
		}
		if live == 0 || live < r.minFederates {
			return
		}
		r.initDone = true
		b.logger.Info("initialization barrier passed", "federates", live)
	}
	for _, f := range r.feds {
		if f.state == fedInitRequested {
			b.setFedState(f, fedInitializing)
			grant := wire.New(wire.ActInitGrant)
			grant.Dest = f.handle()
			b.send(f.node, grant)
		}
	}
	b.checkExec()
}

func (b *Broker) execRequest(m *wire.ActionMessage) {
	f := b.federateFor(m.Source)
	if f == nil || f.state != fedInitializing {
		return
	}
	f.counter = m.Counter
	iterate := option.IterationRequest(m.Iteration)
	if f.iterations < f.maxIterations {
		switch {
		case iterate == option.ForceIteration:
			b.grantExec(f, option.Iterating)
			return
		case iterate == option.IterateIfNeeded && f.hasEventsBy(simtime.Zero):
			b.grantExec(f, option.Iterating)
			return
		}
	}
	b.setFedState(f, fedExecRequested)
	b.checkExec()
}

// checkExec releases every federate into executing mode once all live
// federates asked for it.
func (b *Broker) checkExec() {
	r := b.root
	if r.execDone || !r.initDone {
		return
	}
	live := 0
	for _, f := range r.feds {
		if f.state.terminal() {
			continue
		}
		live++
		if f.state != fedExecRequested {
			return
		}
	}
	if live == 0 {
		return
	}
	r.execDone = true
	if n := r.dir.pendingCount(); n > 0 {
		b.logger.Warn("unresolved links at execution entry", "count", n)
	}
	b.logger.Info("executing barrier passed", "federates", live)
	b.setState(StateOperating, "")
	for _, f := range r.feds {
		if f.state == fedExecRequested {
			b.grantExec(f, option.NextStep)
		}
	}
	b.grantPass()
}

func (b *Broker) grantExec(f *federate, result option.IterationResult) {
	b.releaseEvents(f, simtime.Zero)
	if result == option.Iterating {
		f.iterations++
	} else {
		f.iterations = 0
		f.granted = simtime.Zero
		b.setFedState(f, fedExecuting)
	}
	grant := wire.New(wire.ActExecGrant)
	grant.Dest = f.handle()
	grant.Time = simtime.Zero
	grant.Result = uint8(result)
	grant.Counter = f.counter
	b.send(f.node, grant)
	b.logGrant(f, simtime.Zero, simtime.Zero, result, simtime.MaxTime)
}

func (b *Broker) timeRequest(m *wire.ActionMessage) {
	f := b.federateFor(m.Source)
	if f == nil || f.state != fedExecuting {
		return
	}
	f.waiting = true
	f.request = m.Time
	f.iterate = option.IterationRequest(m.Iteration)
	f.counter = m.Counter
	b.grantPass()
}

// finalize removes a federate from coordination.
func (b *Broker) finalize(m *wire.ActionMessage, to fedState) {
	f := b.federateFor(m.Source)
	if f == nil {
		return
	}
	if to == fedErrored {
		b.logger.Warn("federate local error", "federate", f.name, "error", m.Err())
	}
	b.retire(f, to)
	if to == fedFinalized {
		ack := wire.New(wire.ActFinalizeAck)
		ack.Dest = f.handle()
		ack.Counter = m.Counter
		b.send(f.node, ack)
	}
	b.checkInit()
	b.checkExec()
	b.grantPass()
}

func (b *Broker) retire(f *federate, to fedState) {
	if f.state.terminal() {
		return
	}
	f.waiting = false
	f.events = nil
	b.setFedState(f, to)
	b.metrics.SetFederates(b.name, b.root.liveCount())
}

// nodeGone retires every federate of a departed node.
func (b *Broker) nodeGone(id wire.NodeID, lost bool) {
	if b.root == nil {
		return
	}
	to := fedFinalized
	if lost {
		to = fedErrored
	}
	for _, f := range b.root.feds {
		if f.node == id {
			b.retire(f, to)
		}
	}
	b.checkInit()
	b.checkExec()
	b.grantPass()
}

func (b *Broker) globalError(m *wire.ActionMessage) {
	r := b.root
	err := m.Err()
	if err == nil {
		err = status.Errorf(status.KindFederationFatal, "global error")
	}
	if r.fatal == nil {
		r.fatal = err
		b.logger.Error("global error", "source", m.Name, "error", err)
	}
	b.setState(StateErrored, err.Error())
	for _, f := range r.feds {
		if !f.state.terminal() {
			f.waiting = false
			f.events = nil
			b.setFedState(f, fedErrored)
		}
	}
	out := wire.New(wire.ActGlobalError)
	out.SourceNode = b.id
	out.Name = m.Name
	out.Code = m.Code
	out.ErrorText = m.ErrorText
	out.Flags = m.Flags | wire.FlagError
	b.broadcast(out)
}

func (b *Broker) setFedState(f *federate, s fedState) {
	old := f.state
	f.state = s
	b.logFederate(f, old.String(), s.String(), "")
}

func (b *Broker) logFederate(f *federate, oldState, newState, reason string) {
	b.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Node:      b.name,
		Direction: log.DirectionLocal,
		Layer:     log.LayerFederation,
		Category:  log.CategoryState,
		Role:      b.role,
		Federate:  f.name,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityFederate,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
