package broker

import (
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/transport"
	"github.com/fedsim/fedsim-go/pkg/version"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// node is a core or broker below this broker.
type node struct {
	id        wire.NodeID
	name      string
	broker    bool
	parent    wire.NodeID
	link      transport.Link
	direct    bool
	connected bool
}

func (n *node) kind() string {
	if n.broker {
		return "broker"
	}
	return "core"
}

// tree is the route table of a broker.
type tree struct {
	nodes  map[wire.NodeID]*node
	byName map[string]*node
	order  []*node
	next   wire.NodeID

	// pending holds child registrations forwarded to the root, by name.
	pending map[string]transport.Link

	everConnected bool
}

func newTree() *tree {
	return &tree{
		nodes:   make(map[wire.NodeID]*node),
		byName:  make(map[string]*node),
		next:    wire.RootNode + 1,
		pending: make(map[string]transport.Link),
	}
}

func (t *tree) add(n *node) {
	t.nodes[n.id] = n
	t.byName[n.name] = n
	t.order = append(t.order, n)
	t.everConnected = true
}

func (t *tree) route(id wire.NodeID) transport.Link {
	if n, ok := t.nodes[id]; ok && n.connected {
		return n.link
	}
	return nil
}

// byLink returns the connected nodes reached through link.
func (t *tree) byLink(link transport.Link) []*node {
	var out []*node
	for _, n := range t.order {
		if n.connected && n.link == link {
			out = append(out, n)
		}
	}
	return out
}

// directLinks returns one link per connected direct child.
func (t *tree) directLinks() []transport.Link {
	seen := make(map[transport.Link]bool)
	var out []transport.Link
	for _, n := range t.order {
		if !n.connected || !n.direct || seen[n.link] {
			continue
		}
		seen[n.link] = true
		out = append(out, n.link)
	}
	return out
}

func (t *tree) connectedCount() int {
	count := 0
	for _, n := range t.order {
		if n.connected {
			count++
		}
	}
	return count
}

func (t *tree) count(broker bool) int {
	count := 0
	for _, n := range t.order {
		if n.connected && n.broker == broker {
			count++
		}
	}
	return count
}

// registerNode assigns an id to a new core or broker. Runs on the root.
func (b *Broker) registerNode(m *wire.ActionMessage, from transport.Link) {
	ack := m.Reply(wire.ActNodeAck)
	ack.SourceNode = b.id
	ack.Name = m.Name

	if from == nil {
		return
	}
	if m.Name == "" || m.Name == b.name {
		ack.SetError(status.Errorf(status.KindInvalidArgument, "invalid node name %q", m.Name))
		from.Send(ack)
		return
	}
	if err := version.CheckPeer(m.Type); err != nil {
		ack.SetError(status.Wrap(status.KindConnection, err, "node %q", m.Name))
		from.Send(ack)
		return
	}
	if existing, ok := b.tree.byName[m.Name]; ok && existing.connected {
		ack.SetError(status.Errorf(status.KindInvalidArgument, "duplicate node name %q", m.Name))
		from.Send(ack)
		return
	}

	parent := m.SourceNode
	if parent == wire.NoNode {
		parent = b.id
	}
	n := &node{
		id:        b.tree.next,
		name:      m.Name,
		broker:    m.Has(wire.FlagBroker),
		parent:    parent,
		link:      from,
		direct:    m.SourceNode == wire.NoNode,
		connected: true,
	}
	b.tree.next++
	b.tree.add(n)

	ack.DestNode = n.id
	b.logger.Info("node registered", "node", n.name, "id", n.id, "kind", n.kind())
	if err := from.Send(ack); err != nil {
		b.logger.Warn("node ack failed", "node", n.name, "error", err)
	}
}

// handleSub processes traffic on a sub-broker: own work is handled here,
// everything else goes up to the root or down toward its destination.
func (b *Broker) handleSub(m *wire.ActionMessage, from transport.Link) {
	if from != nil && from == b.parent {
		b.fromParent(m)
		return
	}

	switch m.Action {
	case wire.ActRegisterNode:
		if from != nil {
			b.tree.pending[m.Name] = from
			if m.SourceNode == wire.NoNode {
				m.SourceNode = b.id
			}
		}
	case wire.ActDisconnect:
		b.childDisconnect(m, from)
		return
	case wire.ActQuery:
		if answer, ok := b.answerAtSub(m); ok {
			b.replyQuery(m, answer)
			return
		}
	case wire.ActCommand:
		if m.Target == b.name {
			b.runCommand(m)
			return
		}
	}

	if m.DestNode == b.id && m.DestNode != wire.NoNode {
		b.handleOwn(m)
		return
	}
	if m.DestNode != wire.NoNode && b.tree.route(m.DestNode) != nil {
		b.send(m.DestNode, m)
		return
	}
	b.up(m)
}

func (b *Broker) fromParent(m *wire.ActionMessage) {
	switch m.Action {
	case wire.ActNodeAck:
		if link, ok := b.tree.pending[m.Name]; ok {
			delete(b.tree.pending, m.Name)
			if m.Err() == nil {
				b.tree.add(&node{
					id:        m.DestNode,
					name:      m.Name,
					link:      link,
					direct:    true,
					connected: true,
				})
			}
			link.Send(m)
			return
		}
		if err := b.pending.Complete(m); err != nil {
			b.logger.Debug("unexpected node ack", "name", m.Name, "error", err)
		}
		return
	case wire.ActGlobalError:
		b.setState(StateErrored, m.ErrorText)
		b.broadcast(m)
		return
	case wire.ActTerminate:
		b.setState(StateTerminating, "")
		b.broadcast(m)
		b.disconnectWhenIdle()
		return
	case wire.ActDisconnect:
		if m.Err() != nil {
			b.logger.Warn("parent link lost", "error", m.Err())
			b.broadcast(wire.New(wire.ActTerminate))
			b.shutdown()
		}
		return
	case wire.ActDisconnectAck:
		if n, ok := b.tree.nodes[m.DestNode]; ok {
			n.connected = false
			n.link.Send(m)
			b.disconnectWhenIdle()
		}
		return
	}

	if m.DestNode == b.id {
		b.handleOwn(m)
		return
	}
	b.send(m.DestNode, m)
}

func (b *Broker) childDisconnect(m *wire.ActionMessage, from transport.Link) {
	if m.Err() == nil {
		// Passes up; the route is dropped when the acknowledgement passes down.
		b.up(m)
		return
	}
	// The link itself failed: every node behind it is gone.
	for _, n := range b.tree.byLink(from) {
		n.connected = false
		lost := wire.New(wire.ActDisconnect)
		lost.SourceNode = n.id
		lost.Name = n.name
		lost.SetError(m.Err())
		b.up(lost)
	}
	b.disconnectWhenIdle()
}

func (b *Broker) up(m *wire.ActionMessage) {
	if b.parent == nil {
		b.logger.Debug("no parent link", "action", m.Action)
		return
	}
	if err := b.parent.Send(m); err != nil {
		b.logger.Warn("forward to parent failed", "action", m.Action, "error", err)
	}
}

// nodeDisconnect handles a child leaving the root, normally or by link loss.
func (b *Broker) nodeDisconnect(m *wire.ActionMessage, from transport.Link) {
	var gone []*node
	if m.SourceNode != wire.NoNode {
		if n, ok := b.tree.nodes[m.SourceNode]; ok && n.connected {
			gone = append(gone, n)
		}
	} else if from != nil {
		gone = b.tree.byLink(from)
	}

	lost := m.Err() != nil
	for _, n := range gone {
		if !lost {
			ack := wire.New(wire.ActDisconnectAck)
			ack.SourceNode = b.id
			ack.DestNode = n.id
			n.link.Send(ack)
		}
		n.connected = false
		b.logger.Info("node disconnected", "node", n.name, "lost", lost)
		b.nodeGone(n.id, lost)
	}
	b.disconnectWhenIdle()
}
