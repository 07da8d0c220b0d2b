package core

import (
	"context"
	"fmt"

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// RegisterFilter registers a filter owned by the core.
func (c *Core) RegisterFilter(ctx context.Context, name string, t option.FilterType) (wire.GlobalHandle, error) {
	if t == option.FilterUnknown {
		return wire.GlobalHandle{}, status.Errorf(status.KindInvalidArgument, "unknown filter type")
	}
	return c.registerOwned(ctx, Interface{Kind: wire.KindFilter, Name: name, Type: t.String()})
}

// RegisterCloningFilter registers a cloning filter owned by the core.
func (c *Core) RegisterCloningFilter(ctx context.Context, name string) (wire.GlobalHandle, error) {
	return c.registerOwned(ctx, Interface{
		Kind:  wire.KindFilter,
		Name:  name,
		Type:  option.FilterClone.String(),
		Flags: wire.FlagCloning,
	})
}

// RegisterTranslator registers a translator owned by the core.
func (c *Core) RegisterTranslator(ctx context.Context, name string, t option.TranslatorType) (wire.GlobalHandle, error) {
	if t == option.TranslatorUnknown {
		return wire.GlobalHandle{}, status.Errorf(status.KindInvalidArgument, "unknown translator type")
	}
	return c.registerOwned(ctx, Interface{Kind: wire.KindTranslator, Name: name, Type: t.String()})
}

func (c *Core) registerOwned(ctx context.Context, i Interface) (wire.GlobalHandle, error) {
	if !c.connected.Load() {
		return wire.GlobalHandle{}, ErrNotConnected
	}
	return c.register(ctx, nil, i)
}

// SetProperty sets a property of a filter or translator and waits for the
// root to apply it. Text values are used when text is not empty.
func (c *Core) SetProperty(ctx context.Context, name, property string, value float64, text string) error {
	msg := wire.New(wire.ActSetProperty)
	msg.Name = name
	msg.Target = property
	if text != "" {
		msg.Strings = []string{text}
	} else {
		msg.Props = map[int]float64{0: value}
	}
	return c.request(ctx, msg)
}

// SetOperator replaces the operator of a custom filter or translator.
func (c *Core) SetOperator(ctx context.Context, name string, operator any) error {
	if operator == nil {
		return status.Errorf(status.KindInvalidArgument, "operator is nil")
	}
	msg := wire.New(wire.ActSetProperty)
	msg.Name = name
	msg.Target = "operator"
	msg.Operator = operator
	return c.request(ctx, msg)
}

// request sends msg and waits for its acknowledgement.
func (c *Core) request(ctx context.Context, msg *wire.ActionMessage) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	id, ch, err := c.pending.Add()
	if err != nil {
		return ErrCoreStopped
	}
	msg.Counter = id
	if err := c.do(ctx, func() { c.up(msg) }); err != nil {
		c.pending.Cancel(id)
		return err
	}
	ack, err := c.pending.Wait(ctx, id, ch)
	if err != nil {
		return status.Wrap(status.KindConnection, err, "%s %q", msg.Action, msg.Name)
	}
	return ack.Err()
}

// DataLink links a publication to an input by name.
func (c *Core) DataLink(source, target string) error {
	return c.link(wire.LinkData, source, target)
}

// AddSourceFilterToEndpoint attaches a named filter to the sending side of
// an endpoint.
func (c *Core) AddSourceFilterToEndpoint(filter, endpoint string) error {
	return c.link(wire.LinkSourceFilter, filter, endpoint)
}

// AddDestinationFilterToEndpoint attaches a named filter to the receiving
// side of an endpoint.
func (c *Core) AddDestinationFilterToEndpoint(filter, endpoint string) error {
	return c.link(wire.LinkDestinationFilter, filter, endpoint)
}

// Link asks the root to link two named interfaces.
func (c *Core) Link(kind wire.LinkKind, source, target string) error {
	return c.link(kind, source, target)
}

func (c *Core) link(kind wire.LinkKind, source, target string) error {
	if source == "" || target == "" {
		return status.Errorf(status.KindInvalidArgument, "link names must not be empty")
	}
	msg := wire.New(wire.ActAddLink)
	msg.Link = kind
	msg.Name = source
	msg.Target = target
	return c.forward(msg)
}

// MakeConnections applies the links described in a JSON, YAML or TOML file.
func (c *Core) MakeConnections(path string) error {
	links, err := broker.LoadConnections(path)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := c.link(l.Kind, l.Source, l.Target); err != nil {
			return fmt.Errorf("link %s to %s: %w", l.Source, l.Target, err)
		}
	}
	return nil
}
