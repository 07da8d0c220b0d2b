package broker

import (
	"slices"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/pipeline"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// iface is a registered interface in the global directory.
type iface struct {
	kind    wire.InterfaceKind
	name    string
	handle  wire.GlobalHandle
	node    wire.NodeID
	typ     string
	units   string
	flags   uint32
	options map[int]int

	// Value side: publications and translators send to targets; inputs,
	// endpoints and translators receive from sources.
	targets []*iface
	sources []*iface

	// Message side: endpoints and translators send to destinations and
	// receive from origins.
	destinations []*iface
	origins      []*iface

	srcFilters []*iface
	dstFilters []*iface

	filter     pipeline.FilterOperator
	translator pipeline.TranslatorOperator

	last     []byte
	lastTime simtime.Time
	hasLast  bool
}

func (i *iface) option(o option.HandleOption) int {
	return i.options[o.Index()]
}

func (i *iface) federateOwned() bool {
	return i.flags&wire.FlagCoreOwned == 0 && i.handle.Fed > 0
}

func (i *iface) ignoresInterrupts() bool {
	return i.flags&wire.FlagIgnoreInterrupts != 0 || i.option(option.HandleOptionIgnoreInterrupts) != 0
}

func (i *iface) cloning() bool {
	return i.flags&wire.FlagCloning != 0
}

type pendingLink struct {
	kind   wire.LinkKind
	source string
	target string
}

// directory holds every named interface of the federation.
type directory struct {
	byKind   map[wire.InterfaceKind]map[string]*iface
	byHandle map[wire.GlobalHandle]*iface
	order    []*iface
	pending  []pendingLink
	seed     uint64
	created  uint64
}

func newDirectory(seed uint64) *directory {
	d := &directory{
		byKind:   make(map[wire.InterfaceKind]map[string]*iface),
		byHandle: make(map[wire.GlobalHandle]*iface),
		seed:     seed,
	}
	for _, k := range []wire.InterfaceKind{wire.KindPublication, wire.KindInput, wire.KindEndpoint, wire.KindFilter, wire.KindTranslator} {
		d.byKind[k] = make(map[string]*iface)
	}
	return d
}

func (d *directory) get(kind wire.InterfaceKind, name string) *iface {
	return d.byKind[kind][name]
}

// first returns the interface named name among kinds, in order.
func (d *directory) first(name string, kinds ...wire.InterfaceKind) *iface {
	for _, k := range kinds {
		if i := d.byKind[k][name]; i != nil {
			return i
		}
	}
	return nil
}

func (d *directory) list(kind wire.InterfaceKind) []*iface {
	var out []*iface
	for _, i := range d.order {
		if i.kind == kind {
			out = append(out, i)
		}
	}
	return out
}

func (d *directory) pendingCount() int {
	return len(d.pending)
}

func (d *directory) add(i *iface) error {
	names, ok := d.byKind[i.kind]
	if !ok {
		return status.Errorf(status.KindInvalidArgument, "invalid interface kind %d", i.kind)
	}
	if i.name == "" {
		return status.Errorf(status.KindInvalidArgument, "%s name is empty", i.kind)
	}
	if _, dup := names[i.name]; dup {
		return status.Errorf(status.KindInvalidArgument, "duplicate %s name %q", i.kind, i.name)
	}
	if _, dup := d.byHandle[i.handle]; dup {
		return status.Errorf(status.KindInvalidArgument, "duplicate handle %s", i.handle)
	}
	names[i.name] = i
	d.byHandle[i.handle] = i
	d.order = append(d.order, i)
	return nil
}

func (d *directory) newFilter(m *wire.ActionMessage) (pipeline.FilterOperator, error) {
	if op, ok := m.Operator.(pipeline.FilterOperator); ok {
		return op, nil
	}
	t := option.ParseFilterType(m.Type)
	if m.Has(wire.FlagCloning) && (t == option.FilterUnknown || t == option.FilterCustom) {
		t = option.FilterClone
	}
	if t == option.FilterUnknown && m.Type == "" {
		t = option.FilterCustom
	}
	d.created++
	return pipeline.NewFilter(t, d.seed+d.created)
}

func (d *directory) newTranslator(m *wire.ActionMessage) (pipeline.TranslatorOperator, error) {
	if op, ok := m.Operator.(pipeline.TranslatorOperator); ok {
		return op, nil
	}
	t := option.ParseTranslatorType(m.Type)
	if t == option.TranslatorUnknown && m.Type == "" {
		t = option.TranslatorCustom
	}
	return pipeline.NewTranslator(t)
}

func appendUnique(list []*iface, i *iface) []*iface {
	if slices.Contains(list, i) {
		return list
	}
	return append(list, i)
}

func without(list []*iface, i *iface) []*iface {
	return slices.DeleteFunc(list, func(x *iface) bool { return x == i })
}

// registerInterface adds an interface to the directory. Runs on the root.
func (b *Broker) registerInterface(m *wire.ActionMessage) {
	d := b.root.dir
	ack := m.Reply(wire.ActInterfaceAck)
	ack.SourceNode = b.id
	ack.Dest = m.Source

	i := &iface{
		kind:    m.Kind,
		name:    m.Name,
		handle:  m.Source,
		node:    m.SourceNode,
		typ:     m.Type,
		units:   m.Units,
		flags:   m.Flags,
		options: make(map[int]int, len(m.Options)),
	}
	for k, v := range m.Options {
		i.options[k] = v
	}

	var err error
	switch m.Kind {
	case wire.KindFilter:
		i.filter, err = d.newFilter(m)
		if err == nil && m.Operator == nil && option.ParseFilterType(m.Type) == option.FilterCustom {
			b.logger.Warn("custom filter without operator passes messages through", "filter", m.Name)
		}
	case wire.KindTranslator:
		i.translator, err = d.newTranslator(m)
	}
	if err == nil {
		err = d.add(i)
	}
	if err != nil {
		ack.SetError(err)
		b.send(m.SourceNode, ack)
		return
	}
	b.send(m.SourceNode, ack)
	b.logger.Debug("interface registered", "kind", i.kind, "name", i.name, "handle", i.handle)
	b.retryPending()
}

// addLink resolves a link request now or keeps it until both ends exist.
func (b *Broker) addLink(m *wire.ActionMessage) {
	l := pendingLink{kind: m.Link, source: m.Name, target: m.Target}
	if !b.resolveLink(l) {
		b.root.dir.pending = append(b.root.dir.pending, l)
		b.logger.Debug("link pending", "kind", l.kind, "source", l.source, "target", l.target)
	}
}

func (b *Broker) retryPending() {
	d := b.root.dir
	remaining := d.pending[:0]
	for _, l := range d.pending {
		if !b.resolveLink(l) {
			remaining = append(remaining, l)
		}
	}
	d.pending = remaining
}

func (b *Broker) resolveLink(l pendingLink) bool {
	d := b.root.dir
	switch l.kind {
	case wire.LinkData:
		src := d.first(l.source, wire.KindPublication, wire.KindTranslator)
		dst := d.first(l.target, wire.KindInput, wire.KindTranslator, wire.KindEndpoint)
		if src == nil || dst == nil {
			return false
		}
		b.connectValue(src, dst)
	case wire.LinkEndpointSubscription:
		src := d.first(l.source, wire.KindPublication, wire.KindTranslator)
		dst := d.get(wire.KindEndpoint, l.target)
		if src == nil || dst == nil {
			return false
		}
		b.connectValue(src, dst)
	case wire.LinkEndpoint:
		src := d.first(l.source, wire.KindEndpoint, wire.KindTranslator)
		dst := d.first(l.target, wire.KindEndpoint, wire.KindTranslator)
		if src == nil || dst == nil {
			return false
		}
		b.connectMessage(src, dst)
	case wire.LinkSourceFilter, wire.LinkDestinationFilter:
		filt := d.get(wire.KindFilter, l.source)
		ep := d.get(wire.KindEndpoint, l.target)
		if filt == nil || ep == nil {
			return false
		}
		if l.kind == wire.LinkSourceFilter {
			ep.srcFilters = appendUnique(ep.srcFilters, filt)
		} else {
			ep.dstFilters = appendUnique(ep.dstFilters, filt)
		}
	case wire.LinkCloneDelivery:
		filt := d.get(wire.KindFilter, l.source)
		if filt == nil {
			return false
		}
		clone, ok := filt.filter.(*pipeline.CloneFilter)
		if !ok {
			b.logger.Warn("delivery endpoint on non-cloning filter", "filter", l.source)
			return true
		}
		clone.AddDelivery(l.target)
	case wire.LinkDependency:
		from, to := b.root.byName[l.source], b.root.byName[l.target]
		if from == nil || to == nil {
			return false
		}
		if !slices.Contains(to.deps, from.name) {
			to.deps = append(to.deps, from.name)
		}
	default:
		b.logger.Warn("unknown link kind", "kind", l.kind)
	}
	return true
}

func (b *Broker) connectValue(src, dst *iface) {
	if slices.Contains(src.targets, dst) {
		return
	}
	src.targets = append(src.targets, dst)
	dst.sources = append(dst.sources, src)
	b.notifyLink(src, dst)

	if dst.kind == wire.KindInput && src.hasLast &&
		(src.option(option.HandleOptionBufferData) != 0 || dst.option(option.HandleOptionBufferData) != 0) {
		b.deliverValue(src, dst, src.lastTime, src.last, 0)
	}
}

func (b *Broker) connectMessage(src, dst *iface) {
	if slices.Contains(src.destinations, dst) {
		return
	}
	src.destinations = append(src.destinations, dst)
	dst.origins = append(dst.origins, src)
	b.notifyLink(src, dst)
}

// notifyLink tells the owning cores about a resolved link.
func (b *Broker) notifyLink(src, dst *iface) {
	if dst.federateOwned() {
		n := wire.New(wire.ActNotifyLink)
		n.SourceNode = b.id
		n.Dest = dst.handle
		n.Source = src.handle
		n.Name = src.name
		n.Type = src.typ
		n.Units = src.units
		n.Kind = src.kind
		n.Set(wire.FlagSourceTarget, true)
		b.send(dst.node, n)
	}
	if src.federateOwned() {
		n := wire.New(wire.ActNotifyLink)
		n.SourceNode = b.id
		n.Dest = src.handle
		n.Source = dst.handle
		n.Name = dst.name
		n.Type = dst.typ
		n.Units = dst.units
		n.Kind = dst.kind
		b.send(src.node, n)
	}
}

// removeLink drops every relationship between the interface Name of kind
// Kind and the interface named Target.
func (b *Broker) removeLink(m *wire.ActionMessage) {
	d := b.root.dir
	self := d.get(m.Kind, m.Name)
	if self == nil {
		return
	}
	d.pending = slices.DeleteFunc(d.pending, func(l pendingLink) bool {
		return (l.source == m.Name && l.target == m.Target) || (l.source == m.Target && l.target == m.Name)
	})

	if self.kind == wire.KindFilter {
		if ep := d.get(wire.KindEndpoint, m.Target); ep != nil {
			ep.srcFilters = without(ep.srcFilters, self)
			ep.dstFilters = without(ep.dstFilters, self)
		}
		if clone, ok := self.filter.(*pipeline.CloneFilter); ok {
			clone.RemoveDelivery(m.Target)
		}
		return
	}

	for _, other := range d.order {
		if other.name != m.Target || other == self {
			continue
		}
		self.targets = without(self.targets, other)
		self.sources = without(self.sources, other)
		self.destinations = without(self.destinations, other)
		self.origins = without(self.origins, other)
		other.targets = without(other.targets, self)
		other.sources = without(other.sources, self)
		other.destinations = without(other.destinations, self)
		other.origins = without(other.origins, self)
	}
}

// setProperty configures a filter or translator operator.
func (b *Broker) setProperty(m *wire.ActionMessage) {
	d := b.root.dir
	ack := m.Reply(wire.ActInterfaceAck)
	ack.SourceNode = b.id
	ack.Dest = m.Source

	i := d.first(m.Name, wire.KindFilter, wire.KindTranslator)
	err := b.applyProperty(i, m)
	if err != nil {
		ack.SetError(err)
	}
	if m.Counter != 0 {
		b.send(m.SourceNode, ack)
	} else if err != nil {
		b.logger.Warn("set property failed", "name", m.Name, "property", m.Target, "error", err)
	}
}

func (b *Broker) applyProperty(i *iface, m *wire.ActionMessage) error {
	if i == nil {
		return status.Errorf(status.KindInvalidArgument, "no filter or translator named %q", m.Name)
	}
	if m.Target == "operator" {
		switch i.kind {
		case wire.KindFilter:
			op, ok := m.Operator.(pipeline.FilterOperator)
			if !ok {
				return status.Errorf(status.KindInvalidArgument, "operator for %q is not a filter operator", m.Name)
			}
			i.filter = op
		case wire.KindTranslator:
			op, ok := m.Operator.(pipeline.TranslatorOperator)
			if !ok {
				return status.Errorf(status.KindInvalidArgument, "operator for %q is not a translator operator", m.Name)
			}
			i.translator = op
		}
		return nil
	}

	var target any = i.filter
	if i.kind == wire.KindTranslator {
		target = i.translator
	}
	cfg, ok := target.(pipeline.Configurable)
	if !ok {
		return status.Errorf(status.KindInvalidProperty, "%s %q has no settable properties", i.kind, i.name)
	}
	if len(m.Strings) > 0 {
		return cfg.SetString(m.Target, m.Strings[0])
	}
	return cfg.Set(m.Target, m.Props[0])
}

// setOption updates handle options after registration.
func (b *Broker) setOption(m *wire.ActionMessage) {
	i := b.root.dir.byHandle[m.Dest]
	if i == nil {
		return
	}
	for k, v := range m.Options {
		i.options[k] = v
	}
}
