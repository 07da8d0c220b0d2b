package broker

import (
	"sync"

	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// recorder is a link that keeps everything sent to it.
type recorder struct {
	mu   sync.Mutex
	peer string
	msgs []*wire.ActionMessage
}

func (r *recorder) Send(m *wire.ActionMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) Close() error { return nil }
func (r *recorder) Peer() string { return r.peer }
func (r *recorder) Local() bool  { return true }

func (r *recorder) take() []*wire.ActionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

// tester is satisfied by *testing.T and *rapid.T.
type tester interface {
	require.TestingT
	Helper()
}

// harness drives a root broker directly, without its event loop.
type harness struct {
	t     tester
	b     *Broker
	links map[wire.NodeID]*recorder
	nodes map[wire.FederateID]wire.NodeID
	next  map[wire.FederateID]int32
}

func newHarness(t tester, config Config) *harness {
	t.Helper()
	if config.Name == "" {
		config.Name = "root"
	}
	b, err := New(config)
	require.NoError(t, err)
	return &harness{
		t:     t,
		b:     b,
		links: make(map[wire.NodeID]*recorder),
		nodes: make(map[wire.FederateID]wire.NodeID),
		next:  make(map[wire.FederateID]int32),
	}
}

func (h *harness) addNode(name string) wire.NodeID {
	h.t.Helper()
	rec := &recorder{peer: name}
	reg := wire.New(wire.ActRegisterNode)
	reg.Name = name
	h.b.handleRoot(reg, rec)
	msgs := rec.take()
	require.Len(h.t, msgs, 1)
	require.Equal(h.t, wire.ActNodeAck, msgs[0].Action)
	require.NoError(h.t, msgs[0].Err())
	id := msgs[0].DestNode
	h.links[id] = rec
	return id
}

type fedOpts struct {
	flags uint32
	props map[int]float64
}

func (h *harness) addFederate(node wire.NodeID, name string, opts fedOpts) wire.FederateID {
	h.t.Helper()
	reg := wire.New(wire.ActRegisterFederate)
	reg.SourceNode = node
	reg.Name = name
	reg.Flags = opts.flags
	reg.Props = opts.props
	h.b.handleRoot(reg, h.links[node])
	msgs := h.links[node].take()
	require.Len(h.t, msgs, 1)
	require.Equal(h.t, wire.ActFederateAck, msgs[0].Action)
	require.NoError(h.t, msgs[0].Err())
	id := msgs[0].Dest.Fed
	h.nodes[id] = node
	return id
}

func (h *harness) register(fed wire.FederateID, kind wire.InterfaceKind, name, typ string) wire.GlobalHandle {
	h.t.Helper()
	h.next[fed]++
	handle := wire.Handle(fed, h.next[fed])
	reg := wire.New(wire.ActRegisterInterface)
	reg.SourceNode = h.nodes[fed]
	reg.Source = handle
	reg.Kind = kind
	reg.Name = name
	reg.Type = typ
	h.b.handleRoot(reg, nil)
	ack := h.expect(fed, wire.ActInterfaceAck)
	require.NoError(h.t, ack.Err())
	return handle
}

func (h *harness) link(kind wire.LinkKind, source, target string) {
	msg := wire.New(wire.ActAddLink)
	msg.Link = kind
	msg.Name = source
	msg.Target = target
	h.b.handleRoot(msg, nil)
}

func (h *harness) fedMsg(fed wire.FederateID, action wire.Action) *wire.ActionMessage {
	msg := wire.New(action)
	msg.SourceNode = h.nodes[fed]
	msg.Source = wire.Handle(fed, 0)
	return msg
}

func (h *harness) take(fed wire.FederateID) []*wire.ActionMessage {
	return h.links[h.nodes[fed]].take()
}

// expect takes everything queued for fed's node and requires the last
// message to be action.
func (h *harness) expect(fed wire.FederateID, action wire.Action) *wire.ActionMessage {
	h.t.Helper()
	msgs := h.take(fed)
	require.NotEmpty(h.t, msgs, "expected %s", action)
	last := msgs[len(msgs)-1]
	require.Equal(h.t, action, last.Action, last.String())
	return last
}

func (h *harness) drain() {
	for _, rec := range h.links {
		rec.take()
	}
}

// execute moves every federate into executing mode.
func (h *harness) execute(feds ...wire.FederateID) {
	h.t.Helper()
	for _, f := range feds {
		h.b.handleRoot(h.fedMsg(f, wire.ActInitRequest), nil)
	}
	for _, f := range feds {
		h.b.handleRoot(h.fedMsg(f, wire.ActExecRequest), nil)
	}
	for _, f := range feds {
		require.Equal(h.t, fedExecuting, h.b.root.byID[f].state)
	}
	h.drain()
}

func (h *harness) request(fed wire.FederateID, t simtime.Time, iterate option.IterationRequest) {
	msg := h.fedMsg(fed, wire.ActTimeRequest)
	msg.Time = t
	msg.Iteration = uint8(iterate)
	h.b.handleRoot(msg, nil)
}

// grants returns the time grants queued for fed, keeping the rest.
func (h *harness) grants(fed wire.FederateID) []*wire.ActionMessage {
	var out []*wire.ActionMessage
	for _, m := range h.take(fed) {
		if m.Action == wire.ActTimeGrant && m.Dest.Fed == fed {
			out = append(out, m)
		}
	}
	return out
}

func props(kv ...any) map[int]float64 {
	out := make(map[int]float64)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(option.Property).Index()] = kv[i+1].(float64)
	}
	return out
}
