package federate

import (
	"context"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/pipeline"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Filter changes messages on their way between endpoints.
type Filter struct {
	iface
	filterType option.FilterType
	cloning    bool
}

// RegisterFilter registers a filter with a local name.
func (f *Federate) RegisterFilter(ctx context.Context, name string, t option.FilterType) (*Filter, error) {
	return f.registerFilter(ctx, f.localName(name), t, false)
}

// RegisterGlobalFilter registers a filter with a global name.
func (f *Federate) RegisterGlobalFilter(ctx context.Context, name string, t option.FilterType) (*Filter, error) {
	return f.registerFilter(ctx, name, t, false)
}

// RegisterCloningFilter registers a cloning filter with a local name.
func (f *Federate) RegisterCloningFilter(ctx context.Context, name string) (*Filter, error) {
	return f.registerFilter(ctx, f.localName(name), option.FilterClone, true)
}

// RegisterGlobalCloningFilter registers a cloning filter with a global name.
func (f *Federate) RegisterGlobalCloningFilter(ctx context.Context, name string) (*Filter, error) {
	return f.registerFilter(ctx, name, option.FilterClone, true)
}

func (f *Federate) registerFilter(ctx context.Context, name string, t option.FilterType, cloning bool) (*Filter, error) {
	if t == option.FilterUnknown {
		return nil, status.Errorf(status.KindInvalidArgument, "unknown filter type")
	}
	i := core.Interface{Kind: wire.KindFilter, Name: name, Type: t.String()}
	if cloning {
		i.Flags = wire.FlagCloning
	}
	base, err := f.register(ctx, i)
	if err != nil {
		return nil, err
	}
	flt := &Filter{iface: base, filterType: t, cloning: cloning}
	f.mu.Lock()
	f.filters = append(f.filters, flt)
	f.adopt(flt.handle, flt)
	f.mu.Unlock()
	return flt, nil
}

// GetFilter returns a filter by global or local name, nil if there is none.
func (f *Federate) GetFilter(name string) *Filter {
	local := f.localName(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, flt := range f.filters {
		if flt.name == name || flt.name == local {
			return flt
		}
	}
	return nil
}

// GetFilterByIndex returns the i-th registered filter, nil if i is out of
// range.
func (f *Federate) GetFilterByIndex(i int) *Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.filters) {
		return nil
	}
	return f.filters[i]
}

// FilterCount returns the number of registered filters.
func (f *Federate) FilterCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.filters)
}

// FilterType returns the filter type.
func (flt *Filter) FilterType() option.FilterType {
	return flt.filterType
}

// IsCloning reports whether the filter delivers copies.
func (flt *Filter) IsCloning() bool {
	return flt.cloning
}

// AddSourceTarget filters messages sent by the named endpoint.
func (flt *Filter) AddSourceTarget(endpoint string) error {
	return flt.fed.session.Link(wire.LinkSourceFilter, flt.name, endpoint)
}

// AddDestinationTarget filters messages received by the named endpoint.
func (flt *Filter) AddDestinationTarget(endpoint string) error {
	return flt.fed.session.Link(wire.LinkDestinationFilter, flt.name, endpoint)
}

// RemoveTarget detaches the filter from the named endpoint.
func (flt *Filter) RemoveTarget(endpoint string) error {
	return flt.fed.session.Unlink(wire.KindFilter, flt.name, endpoint)
}

// AddDeliveryEndpoint adds an endpoint receiving copies from a cloning
// filter.
func (flt *Filter) AddDeliveryEndpoint(endpoint string) error {
	if !flt.cloning {
		return status.Errorf(status.KindInvalidArgument, "filter %q is not a cloning filter", flt.name)
	}
	return flt.fed.session.Link(wire.LinkCloneDelivery, flt.name, endpoint)
}

// RemoveDeliveryEndpoint removes a delivery endpoint of a cloning filter.
func (flt *Filter) RemoveDeliveryEndpoint(endpoint string) error {
	if !flt.cloning {
		return status.Errorf(status.KindInvalidArgument, "filter %q is not a cloning filter", flt.name)
	}
	return flt.fed.session.Unlink(wire.KindFilter, flt.name, endpoint)
}

// Set sets a numeric property such as "delay".
func (flt *Filter) Set(ctx context.Context, property string, value float64) error {
	return flt.fed.session.SetProperty(ctx, flt.name, property, value, "")
}

// SetString sets a text property such as "newdestination".
func (flt *Filter) SetString(ctx context.Context, property, value string) error {
	if value == "" {
		return status.Errorf(status.KindInvalidArgument, "property %q value is empty", property)
	}
	return flt.fed.session.SetProperty(ctx, flt.name, property, 0, value)
}

// SetOperator replaces the operator of a custom filter.
func (flt *Filter) SetOperator(ctx context.Context, op pipeline.FilterOperator) error {
	if op == nil {
		return status.Errorf(status.KindInvalidArgument, "operator is nil")
	}
	return flt.fed.session.SetOperator(ctx, flt.name, op)
}

// SetCallback makes the filter run fn on each message. fn may return nil to
// drop the message.
func (flt *Filter) SetCallback(ctx context.Context, fn func(*message.Message) *message.Message) error {
	if fn == nil {
		return status.Errorf(status.KindInvalidArgument, "callback is nil")
	}
	return flt.SetOperator(ctx, &pipeline.CustomFilter{Fn: fn})
}
