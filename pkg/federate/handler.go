package federate

import (
	"maps"
	"slices"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/query"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

var _ core.Handler = (*Federate)(nil)

// HandleValue implements core.Handler.
func (f *Federate) HandleValue(v core.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.byHandle[v.Input].(*Input)
	if !ok || f.state.IsTerminal() {
		return
	}
	f.arrivals++
	in.receive(v, f.arrivals, f.flags[option.FlagOnlyUpdateOnChange])
}

// HandleMessage implements core.Handler.
func (f *Federate) HandleMessage(endpoint wire.GlobalHandle, m *message.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.byHandle[endpoint].(*Endpoint)
	if !ok || f.state.IsTerminal() {
		return
	}
	f.arrivals++
	ep.enqueue(m, f.arrivals)
}

// HandleLink implements core.Handler.
func (f *Federate) HandleLink(n core.LinkNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byHandle[n.Local]; !ok {
		f.pendingLinks[n.Local] = append(f.pendingLinks[n.Local], n)
		return
	}
	f.applyLink(n)
}

// applyLink requires mu.
func (f *Federate) applyLink(n core.LinkNotice) {
	if b, ok := f.byHandle[n.Local].(interface{ base() *iface }); ok {
		b.base().connections++
	}
	switch i := f.byHandle[n.Local].(type) {
	case *Input:
		if n.Source {
			i.addSource(n)
		}
	case *Publication:
		if !n.Source && n.Name != "" && !slices.Contains(i.targets, n.Name) {
			i.targets = append(i.targets, n.Name)
		}
	case *Endpoint:
		if !n.Source && n.Name != "" {
			i.addDestination(n.Name)
		}
	}
}

// HandleCommand implements core.Handler.
func (f *Federate) HandleCommand(source, cmd string) {
	f.mu.Lock()
	f.commands = append(f.commands, command{source: source, text: cmd})
	f.mu.Unlock()
	select {
	case f.commandSignal <- struct{}{}:
	default:
	}
}

// HandleQuery implements core.Handler. The query callback is asked first.
func (f *Federate) HandleQuery(q string) (string, bool) {
	f.mu.Lock()
	cb := f.queryCallback
	f.mu.Unlock()
	if cb != nil {
		var buf query.Buffer
		cb(q, &buf)
		if buf.Filled() {
			return buf.String(), true
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, arg := query.Split(q)
	switch cmd {
	case "state":
		return query.Quote(f.state.String()), true
	case "tags":
		return query.JSON(maps.Clone(f.tags)), true
	case "tag":
		if arg == "" {
			return query.ErrorResult(query.CodeBadRequest, "tag name is required"), true
		}
		v, ok := f.tags[arg]
		if !ok {
			return query.ErrorResult(query.CodeNotFound, "tag "+arg+" not found"), true
		}
		return query.Quote(v), true
	case "subscriptions":
		var names []string
		for _, in := range f.inputs {
			for _, s := range in.sources {
				names = append(names, s.name)
			}
		}
		return query.JSON(nonNil(names)), true
	case "queues":
		counts := make(map[string]int, len(f.endpoints))
		for _, ep := range f.endpoints {
			counts[ep.name] = len(ep.queue)
		}
		return query.JSON(counts), true
	case "commands":
		return query.JSON(len(f.commands)), true
	case "separator":
		return query.Quote(string(f.separator)), true
	case "interfaces":
		return query.JSON(f.interfaceDoc()), true
	case "isinit":
		return query.JSON(f.state == option.StateInitializing), true
	case "isexec":
		return query.JSON(f.state == option.StateExecuting), true
	}
	return "", false
}

type interfaceEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Units string `json:"units,omitempty"`
	Info  string `json:"info,omitempty"`
}

type interfaceDoc struct {
	Publications []interfaceEntry `json:"publications"`
	Inputs       []interfaceEntry `json:"inputs"`
	Endpoints    []interfaceEntry `json:"endpoints"`
	Filters      []interfaceEntry `json:"filters"`
	Translators  []interfaceEntry `json:"translators"`
}

// interfaceDoc requires mu.
func (f *Federate) interfaceDoc() interfaceDoc {
	entry := func(i *iface) interfaceEntry {
		return interfaceEntry{Name: i.name, Type: i.typ, Units: i.units, Info: i.info}
	}
	doc := interfaceDoc{
		Publications: []interfaceEntry{},
		Inputs:       []interfaceEntry{},
		Endpoints:    []interfaceEntry{},
		Filters:      []interfaceEntry{},
		Translators:  []interfaceEntry{},
	}
	for _, p := range f.publications {
		doc.Publications = append(doc.Publications, entry(&p.iface))
	}
	for _, in := range f.inputs {
		doc.Inputs = append(doc.Inputs, entry(&in.iface))
	}
	for _, ep := range f.endpoints {
		doc.Endpoints = append(doc.Endpoints, entry(&ep.iface))
	}
	for _, flt := range f.filters {
		doc.Filters = append(doc.Filters, entry(&flt.iface))
	}
	for _, tr := range f.translators {
		doc.Translators = append(doc.Translators, entry(&tr.iface))
	}
	return doc
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
