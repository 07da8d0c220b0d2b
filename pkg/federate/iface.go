package federate

import (
	"context"
	"maps"
	"math"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/databuffer"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// iface holds what every interface of a federate shares.
type iface struct {
	fed    *Federate
	kind   wire.InterfaceKind
	name   string
	handle wire.GlobalHandle
	typ    string
	units  string

	// Guarded by fed.mu.
	info        string
	tags        map[string]string
	options     map[option.HandleOption]int
	connections int
}

func (i *iface) base() *iface {
	return i
}

// Name returns the global name.
func (i *iface) Name() string {
	return i.name
}

// Handle returns the federation-wide handle.
func (i *iface) Handle() wire.GlobalHandle {
	return i.handle
}

// Type returns the declared type.
func (i *iface) Type() string {
	return i.typ
}

// Units returns the declared units.
func (i *iface) Units() string {
	return i.units
}

// IsValid reports whether the interface was registered.
func (i *iface) IsValid() bool {
	return i != nil && i.handle.IsValid()
}

// Info returns the free-form info string.
func (i *iface) Info() string {
	i.fed.mu.Lock()
	defer i.fed.mu.Unlock()
	return i.info
}

// SetInfo replaces the free-form info string.
func (i *iface) SetInfo(info string) {
	i.fed.mu.Lock()
	i.info = info
	i.fed.mu.Unlock()
}

// SetTag stores a tag on the interface.
func (i *iface) SetTag(name, value string) error {
	if name == "" {
		return status.Errorf(status.KindInvalidArgument, "tag name is empty")
	}
	i.fed.mu.Lock()
	i.tags[name] = value
	i.fed.mu.Unlock()
	return nil
}

// Tag returns a tag of the interface, empty if unset.
func (i *iface) Tag(name string) string {
	i.fed.mu.Lock()
	defer i.fed.mu.Unlock()
	return i.tags[name]
}

// SetOption changes a handle option.
func (i *iface) SetOption(o option.HandleOption, value int) error {
	if !o.IsValid() {
		return status.Errorf(status.KindInvalidProperty, "unknown handle option %d", int(o))
	}
	i.fed.mu.Lock()
	if o == option.HandleOptionClearPriorityList {
		delete(i.options, option.HandleOptionInputPriorityLocation)
	} else {
		i.options[o] = value
	}
	i.fed.mu.Unlock()
	return i.fed.session.SetOption(i.handle, o, value)
}

// Option returns a handle option, 0 if unset. HandleOptionConnections
// reports the number of links made to the interface.
func (i *iface) Option(o option.HandleOption) int {
	i.fed.mu.Lock()
	defer i.fed.mu.Unlock()
	if o == option.HandleOptionConnections {
		return i.connections
	}
	return i.options[o]
}

// register registers an interface with the core and returns its shared part.
func (f *Federate) register(ctx context.Context, i core.Interface) (iface, error) {
	if i.Name == "" {
		return iface{}, status.Errorf(status.KindInvalidArgument, "%s name is empty", i.Kind)
	}
	h, err := f.session.Register(ctx, i)
	if err != nil {
		return iface{}, err
	}
	opts := make(map[option.HandleOption]int, len(i.Options))
	maps.Copy(opts, i.Options)
	return iface{
		fed:     f,
		kind:    i.Kind,
		name:    i.Name,
		handle:  h,
		typ:     i.Type,
		units:   i.Units,
		tags:    make(map[string]string),
		options: opts,
	}, nil
}

// adopt makes a registered interface reachable from the handler and
// replays link notices that arrived before it. Requires mu.
func (f *Federate) adopt(h wire.GlobalHandle, v any) {
	f.byHandle[h] = v
	notices := f.pendingLinks[h]
	delete(f.pendingLinks, h)
	for _, n := range notices {
		f.applyLink(n)
	}
}

// changed reports whether b differs from old by more than tol. A nil old
// value always counts as a change.
func changed(old, b *databuffer.Buffer, tol float64) bool {
	if old == nil {
		return true
	}
	if tol > 0 {
		switch {
		case old.Type().IsNumeric() && b.Type().IsNumeric():
			return math.Abs(b.ToDouble()-old.ToDouble()) > tol
		case old.Type() == option.DataTypeVector && b.Type() == option.DataTypeVector:
			ov, bv := old.ToVector(), b.ToVector()
			if len(ov) != len(bv) {
				return true
			}
			for k := range ov {
				if math.Abs(bv[k]-ov[k]) > tol {
					return true
				}
			}
			return false
		}
	}
	return !old.Equal(b)
}
