package broker

import (
	"strings"

	"github.com/fedsim/fedsim-go/pkg/query"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/version"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Command names handled by brokers.
const (
	CommandTerminate = "terminate"
	CommandEcho      = "echo"
	CommandEchoReply = "echo_reply"
	CommandLog       = "log"
)

// globalTarget addresses the global value table.
const globalTarget = "global_value"

type countsDoc struct {
	Brokers      int `json:"brokers"`
	Cores        int `json:"cores"`
	Federates    int `json:"federates"`
	Publications int `json:"publications"`
	Inputs       int `json:"inputs"`
	Endpoints    int `json:"endpoints"`
	Filters      int `json:"filters"`
	Translators  int `json:"translators"`
}

type federateTimeDoc struct {
	Name      string  `json:"name"`
	ID        int32   `json:"id"`
	Granted   float64 `json:"granted_time"`
	Requested float64 `json:"requested_time"`
	Waiting   bool    `json:"waiting"`
}

type globalTimeDoc struct {
	Time      float64           `json:"time"`
	Federates []federateTimeDoc `json:"federates"`
}

type stateEntry struct {
	Name  string `json:"name"`
	ID    int32  `json:"id"`
	State string `json:"state"`
}

type stateDoc struct {
	Name      string       `json:"name"`
	ID        int32        `json:"id"`
	State     string       `json:"state"`
	Brokers   []stateEntry `json:"brokers,omitempty"`
	Cores     []stateEntry `json:"cores,omitempty"`
	Federates []stateEntry `json:"federates,omitempty"`
}

type dependencyEntry struct {
	Name         string   `json:"name"`
	ID           int32    `json:"id"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

type flowLink struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type flowDoc struct {
	Links   []flowLink `json:"links"`
	Pending []flowLink `json:"pending"`
}

type barrierDoc struct {
	Time float64 `json:"time"`
}

func isRootTarget(b *Broker, target string) bool {
	switch target {
	case "", "root", "federation", "broker":
		return true
	}
	return target == b.name
}

// answerLocal answers query q for target without leaving this broker.
func (b *Broker) answerLocal(target, q string) (string, bool) {
	if b.root == nil {
		if target == "" || target == b.name {
			return b.answerSub(q)
		}
		return "", false
	}

	if target == globalTarget {
		return b.globalValue(q), true
	}
	if isRootTarget(b, target) {
		return b.answerRoot(q), true
	}
	if b.queryNode(target) == wire.NoNode {
		if q == "exists" {
			return "false", true
		}
		return query.ErrorResult(query.CodeNotFound, "target "+target+" not found"), true
	}
	if q == "exists" {
		return "true", true
	}
	return "", false
}

// answerOwn answers a query routed to this broker by name.
func (b *Broker) answerOwn(q string) string {
	if b.root != nil {
		return b.answerRoot(q)
	}
	if answer, ok := b.answerSub(q); ok {
		return answer
	}
	return query.ErrorResult(query.CodeBadRequest, "unrecognized broker query "+q)
}

// answerAtSub answers a child's query when it targets this sub-broker.
func (b *Broker) answerAtSub(m *wire.ActionMessage) (string, bool) {
	if m.Target != b.name {
		return "", false
	}
	return b.answerSub(string(m.Payload))
}

// queryNode returns the node a query for target must go to.
func (b *Broker) queryNode(target string) wire.NodeID {
	if f, ok := b.root.byName[target]; ok && !f.state.terminal() {
		return f.node
	}
	if n, ok := b.tree.byName[target]; ok && n.connected {
		return n.id
	}
	return wire.NoNode
}

// routeQuery answers or forwards a query arriving at the root.
func (b *Broker) routeQuery(m *wire.ActionMessage) {
	q := string(m.Payload)
	if answer, ok := b.answerLocal(m.Target, q); ok {
		b.replyQuery(m, answer)
		return
	}
	node := b.queryNode(m.Target)
	if node == wire.NoNode {
		b.replyQuery(m, query.ErrorResult(query.CodeNotFound, "target "+m.Target+" not found"))
		return
	}
	if f, ok := b.root.byName[m.Target]; ok {
		m.Dest = f.handle()
	}
	b.send(node, m)
}

func (b *Broker) replyQuery(m *wire.ActionMessage, answer string) {
	reply := m.Reply(wire.ActQueryReply)
	reply.SourceNode = b.id
	reply.Target = m.Target
	reply.Payload = []byte(answer)
	reply.Set(wire.FlagFast, m.Has(wire.FlagFast))
	if reply.DestNode == wire.NoNode {
		reply.DestNode = b.id
	}
	b.send(reply.DestNode, reply)
}

func (b *Broker) answerSub(q string) (string, bool) {
	switch q {
	case "name", "identifier":
		return query.Quote(b.name), true
	case "address":
		return query.Quote(b.Address()), true
	case "isconnected":
		return query.JSON(b.connected.Load()), true
	case "version":
		return query.Quote(version.String()), true
	case "exists":
		return "true", true
	case "cores":
		return query.JSON(b.nodeNames(false)), true
	case "brokers":
		return query.JSON(b.nodeNames(true)), true
	case "counts":
		return query.JSON(countsDoc{Brokers: b.tree.count(true), Cores: b.tree.count(false)}), true
	case "current_state":
		return query.JSON(b.stateDoc()), true
	}
	return "", false
}

func (b *Broker) answerRoot(q string) string {
	if answer, ok := b.answerSub(q); ok && q != "counts" && q != "current_state" {
		return answer
	}
	r := b.root
	d := r.dir

	command, arg := query.Split(q)
	switch command {
	case "federates":
		names := make([]string, 0, len(r.feds))
		for _, f := range r.feds {
			names = append(names, f.name)
		}
		return query.JSON(names)
	case "counts":
		return query.JSON(countsDoc{
			Brokers:      b.tree.count(true),
			Cores:        b.tree.count(false),
			Federates:    r.liveCount(),
			Publications: len(d.byKind[wire.KindPublication]),
			Inputs:       len(d.byKind[wire.KindInput]),
			Endpoints:    len(d.byKind[wire.KindEndpoint]),
			Filters:      len(d.byKind[wire.KindFilter]),
			Translators:  len(d.byKind[wire.KindTranslator]),
		})
	case "current_time":
		granted, requested := b.timeBounds()
		return query.JSON(query.TimeState{Name: b.name, Granted: float64(granted), Requested: float64(requested)})
	case "global_time":
		granted, _ := b.timeBounds()
		doc := globalTimeDoc{Time: float64(granted), Federates: []federateTimeDoc{}}
		for _, f := range r.feds {
			requested := f.granted
			if f.waiting {
				requested = f.request
			}
			doc.Federates = append(doc.Federates, federateTimeDoc{
				Name:      f.name,
				ID:        int32(f.id),
				Granted:   float64(f.granted),
				Requested: float64(requested),
				Waiting:   f.waiting,
			})
		}
		return query.JSON(doc)
	case "current_state", "global_state":
		doc := b.stateDoc()
		for _, f := range r.feds {
			doc.Federates = append(doc.Federates, stateEntry{Name: f.name, ID: int32(f.id), State: f.state.String()})
		}
		return query.JSON(doc)
	case "publications":
		return query.JSON(b.interfaceNames(wire.KindPublication))
	case "inputs":
		return query.JSON(b.interfaceNames(wire.KindInput))
	case "endpoints":
		return query.JSON(b.interfaceNames(wire.KindEndpoint))
	case "filters":
		return query.JSON(b.interfaceNames(wire.KindFilter))
	case "translators":
		return query.JSON(b.interfaceNames(wire.KindTranslator))
	case "dependency_graph":
		return query.JSON(b.dependencyGraph())
	case "data_flow_graph":
		return query.JSON(b.dataFlow())
	case "barriers":
		barriers := []barrierDoc{}
		if r.hasBarrier {
			barriers = append(barriers, barrierDoc{Time: float64(r.barrier)})
		}
		return query.JSON(barriers)
	case globalTarget:
		return b.globalValue(arg)
	}
	return query.ErrorResult(query.CodeBadRequest, "unrecognized broker query "+q)
}

func (b *Broker) globalValue(name string) string {
	if name == "" {
		return query.JSON(b.root.globals)
	}
	value, ok := b.root.globals[name]
	if !ok {
		return query.ErrorResult(query.CodeNotFound, "global value "+name+" not found")
	}
	return query.Quote(value)
}

// timeBounds returns the lowest granted and requested time over executing
// federates.
func (b *Broker) timeBounds() (granted, requested simtime.Time) {
	granted, requested = simtime.MaxTime, simtime.MaxTime
	for _, f := range b.root.feds {
		if !f.active() {
			continue
		}
		granted = simtime.Min(granted, f.granted)
		if f.waiting {
			requested = simtime.Min(requested, f.request)
		} else {
			requested = simtime.Min(requested, f.granted)
		}
	}
	return granted, requested
}

func (b *Broker) nodeNames(broker bool) []string {
	names := []string{}
	for _, n := range b.tree.order {
		if n.connected && n.broker == broker {
			names = append(names, n.name)
		}
	}
	return names
}

func (b *Broker) stateDoc() stateDoc {
	doc := stateDoc{Name: b.name, ID: int32(b.id), State: b.state.String()}
	for _, n := range b.tree.order {
		state := "connected"
		if !n.connected {
			state = "disconnected"
		}
		entry := stateEntry{Name: n.name, ID: int32(n.id), State: state}
		if n.broker {
			doc.Brokers = append(doc.Brokers, entry)
		} else {
			doc.Cores = append(doc.Cores, entry)
		}
	}
	return doc
}

func (b *Broker) interfaceNames(kind wire.InterfaceKind) []string {
	names := []string{}
	for _, i := range b.root.dir.list(kind) {
		names = append(names, i.name)
	}
	return names
}

func (b *Broker) ownerName(i *iface) string {
	if f, ok := b.root.byID[i.handle.Fed]; ok {
		return f.name
	}
	return ""
}

// dependencyGraph derives federate dependencies from resolved links and
// explicit dependency links.
func (b *Broker) dependencyGraph() []dependencyEntry {
	r := b.root
	deps := make(map[string][]string)
	add := func(from, to string) {
		if from == "" || to == "" || from == to {
			return
		}
		for _, d := range deps[to] {
			if d == from {
				return
			}
		}
		deps[to] = append(deps[to], from)
	}
	for _, i := range r.dir.order {
		owner := b.ownerName(i)
		for _, t := range i.targets {
			add(owner, b.ownerName(t))
		}
		for _, t := range i.destinations {
			add(owner, b.ownerName(t))
		}
	}
	for _, f := range r.feds {
		for _, d := range f.deps {
			add(d, f.name)
		}
	}

	out := make([]dependencyEntry, 0, len(r.feds))
	for _, f := range r.feds {
		e := dependencyEntry{Name: f.name, ID: int32(f.id), Dependencies: []string{}, Dependents: []string{}}
		e.Dependencies = append(e.Dependencies, deps[f.name]...)
		for _, other := range r.feds {
			for _, d := range deps[other.name] {
				if d == f.name {
					e.Dependents = append(e.Dependents, other.name)
				}
			}
		}
		out = append(out, e)
	}
	return out
}

func (b *Broker) dataFlow() flowDoc {
	d := b.root.dir
	doc := flowDoc{Links: []flowLink{}, Pending: []flowLink{}}
	for _, i := range d.order {
		for _, t := range i.targets {
			doc.Links = append(doc.Links, flowLink{Kind: "value", Source: i.name, Target: t.name})
		}
		for _, t := range i.destinations {
			doc.Links = append(doc.Links, flowLink{Kind: "message", Source: i.name, Target: t.name})
		}
		for _, f := range i.srcFilters {
			doc.Links = append(doc.Links, flowLink{Kind: wire.LinkSourceFilter.String(), Source: f.name, Target: i.name})
		}
		for _, f := range i.dstFilters {
			doc.Links = append(doc.Links, flowLink{Kind: wire.LinkDestinationFilter.String(), Source: f.name, Target: i.name})
		}
	}
	for _, l := range d.pending {
		doc.Pending = append(doc.Pending, flowLink{Kind: l.kind.String(), Source: l.source, Target: l.target})
	}
	return doc
}

// routeCommand delivers a command arriving at the root.
func (b *Broker) routeCommand(m *wire.ActionMessage) {
	switch {
	case isRootTarget(b, m.Target):
		b.runCommand(m)
		return
	case m.Target == "*":
		for _, f := range b.root.feds {
			if f.state.terminal() {
				continue
			}
			c := m.Clone()
			c.Dest = f.handle()
			c.Target = f.name
			b.send(f.node, c)
		}
		return
	}
	if f, ok := b.root.byName[m.Target]; ok && !f.state.terminal() {
		m.Dest = f.handle()
		b.send(f.node, m)
		return
	}
	if n, ok := b.tree.byName[m.Target]; ok && n.connected {
		b.send(n.id, m)
		return
	}
	b.logger.Warn("command for unknown target", "target", m.Target, "source", m.Name)
}

// runCommand executes a command addressed to this broker.
func (b *Broker) runCommand(m *wire.ActionMessage) {
	command := strings.TrimSpace(string(m.Payload))
	word, rest, _ := strings.Cut(command, " ")
	switch word {
	case CommandTerminate:
		b.logger.Info("terminate command", "source", m.Name)
		b.setState(StateTerminating, "terminate command from "+m.Name)
		b.broadcast(wire.New(wire.ActTerminate))
		b.disconnectWhenIdle()
	case CommandEcho:
		if m.Name == "" {
			return
		}
		reply := wire.New(wire.ActCommand)
		reply.SourceNode = b.id
		reply.Name = b.name
		reply.Target = m.Name
		reply.Payload = []byte(CommandEchoReply)
		reply.Set(wire.FlagFast, m.Has(wire.FlagFast))
		b.dispatch(reply, nil)
	case CommandLog:
		b.logger.Info("command log", "source", m.Name, "text", rest)
	default:
		b.logger.Warn("unrecognized command", "command", command, "source", m.Name)
	}
}
