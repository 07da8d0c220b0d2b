package core

import (
	"fmt"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Interface describes an interface to register.
type Interface struct {
	Kind    wire.InterfaceKind
	Name    string
	Type    string
	Units   string
	Flags   uint32
	Options map[option.HandleOption]int

	// Operator is a pipeline.FilterOperator or pipeline.TranslatorOperator
	// for custom filters and translators. It only survives in-process links.
	Operator any
}

// local is an interface registered through this core.
type local struct {
	kind    wire.InterfaceKind
	name    string
	handle  wire.GlobalHandle
	typ     string
	units   string
	options map[int]int
	owner   *Session

	// connections counts the remote interfaces linked to this one.
	connections int
	peers       []string
	mismatches  []string
}

func (l *local) option(o option.HandleOption) int {
	return l.options[o.Index()]
}

// registry is the core's table of local interfaces.
type registry struct {
	byHandle map[wire.GlobalHandle]*local
	byName   map[wire.InterfaceKind]map[string]*local
	order    []*local
	next     int32
}

func newRegistry() *registry {
	r := &registry{
		byHandle: make(map[wire.GlobalHandle]*local),
		byName:   make(map[wire.InterfaceKind]map[string]*local),
	}
	for _, k := range []wire.InterfaceKind{wire.KindPublication, wire.KindInput, wire.KindEndpoint, wire.KindFilter, wire.KindTranslator} {
		r.byName[k] = make(map[string]*local)
	}
	return r
}

func (r *registry) add(l *local) error {
	names, ok := r.byName[l.kind]
	if !ok {
		return status.Errorf(status.KindInvalidArgument, "invalid interface kind %d", l.kind)
	}
	if l.name == "" {
		return status.Errorf(status.KindInvalidArgument, "%s name is empty", l.kind)
	}
	if _, dup := names[l.name]; dup {
		return status.Errorf(status.KindInvalidArgument, "duplicate %s name %q", l.kind, l.name)
	}
	names[l.name] = l
	r.byHandle[l.handle] = l
	r.order = append(r.order, l)
	return nil
}

func (r *registry) remove(h wire.GlobalHandle) {
	l, ok := r.byHandle[h]
	if !ok {
		return
	}
	delete(r.byHandle, h)
	delete(r.byName[l.kind], l.name)
	for i, x := range r.order {
		if x == l {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// names lists local interface names of kind, restricted to owner when it
// is not nil, in registration order.
func (r *registry) names(kind wire.InterfaceKind, owner *Session) []string {
	out := []string{}
	for _, l := range r.order {
		if l.kind == kind && (owner == nil || l.owner == owner) {
			out = append(out, l.name)
		}
	}
	return out
}

func (r *registry) count(kind wire.InterfaceKind) int {
	return len(r.byName[kind])
}

// link records a link notification from the root.
func (r *registry) link(n *wire.ActionMessage) *local {
	l := r.byHandle[n.Dest]
	if l == nil {
		return nil
	}
	l.connections++
	l.peers = append(l.peers, n.Name)
	if l.kind == wire.KindInput || l.kind == wire.KindPublication {
		mine, theirs := option.ParseDataType(l.typ), option.ParseDataType(n.Type)
		compatible := option.Compatible(theirs, mine)
		if l.kind == wire.KindPublication {
			compatible = option.Compatible(mine, theirs)
		}
		if n.Kind == wire.KindEndpoint || n.Kind == wire.KindTranslator {
			compatible = true
		}
		if !compatible {
			l.mismatches = append(l.mismatches, fmt.Sprintf("%s (%s) and %s (%s)", l.name, l.typ, n.Name, n.Type))
		}
	}
	return l
}

// checkConnections enforces the connection policy of every interface owned
// by s.
func (r *registry) checkConnections(s *Session) error {
	for _, l := range r.order {
		if l.owner != s {
			continue
		}
		if err := l.checkConnections(); err != nil {
			return err
		}
	}
	return nil
}

func (l *local) checkConnections() error {
	if l.option(option.HandleOptionConnectionRequired) != 0 && l.connections == 0 {
		return status.Errorf(status.KindConnection, "%s %q requires a connection", l.kind, l.name)
	}
	if l.option(option.HandleOptionSingleConnectionOnly) != 0 && l.connections > 1 {
		return status.Errorf(status.KindConnection, "%s %q allows a single connection, has %d", l.kind, l.name, l.connections)
	}
	if n := l.option(option.HandleOptionConnections); n > 0 && l.connections != n {
		return status.Errorf(status.KindConnection, "%s %q requires %d connections, has %d", l.kind, l.name, n, l.connections)
	}
	if l.option(option.HandleOptionStrictTypeChecking) != 0 && len(l.mismatches) > 0 {
		return status.Errorf(status.KindConnection, "type mismatch between %s", l.mismatches[0])
	}
	return nil
}
