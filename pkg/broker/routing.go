package broker

import (
	"github.com/fedsim/fedsim-go/pkg/databuffer"
	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/pipeline"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// maxHops bounds reroute and translator chains.
const maxHops = 16

// Drop reasons reported to metrics.
const (
	dropNoDestination      = "no_destination"
	dropUnknownDestination = "unknown_destination"
	dropFiltered           = "filtered"
	dropFinalized          = "finalized"
	dropLoop               = "loop"
	dropTranslation        = "translation"
	dropObserver           = "observer"
)

// sendTime is the earliest time a value or message sent by f at t may be
// seen by anyone. Traffic sent before execution is stamped Zero.
func sendTime(f *federate, t simtime.Time) simtime.Time {
	if f == nil || !f.active() {
		return simtime.Zero
	}
	return simtime.Max(t, simtime.Add(f.granted, f.outputDelay))
}

// fromObserver drops traffic sent by an observer, which no time bound
// accounts for.
func (b *Broker) fromObserver(sender *federate, src *iface) bool {
	if sender == nil || !sender.observer {
		return false
	}
	b.logger.Warn("dropping traffic from observer federate", "federate", sender.name, "interface", src.name)
	b.metrics.MessageDropped(b.name, dropObserver)
	return true
}

func filterOps(filters []*iface) []pipeline.FilterOperator {
	ops := make([]pipeline.FilterOperator, 0, len(filters))
	for _, f := range filters {
		if f.filter != nil {
			ops = append(ops, f.filter)
		}
	}
	return ops
}

// routeValue fans a published value out to every target of the publication.
func (b *Broker) routeValue(m *wire.ActionMessage) {
	src := b.root.dir.byHandle[m.Source]
	if src == nil {
		b.logger.Debug("value from unknown publication", "handle", m.Source)
		return
	}
	sender := b.root.byID[src.handle.Fed]
	if sender != nil && sender.state.terminal() {
		return
	}
	if b.fromObserver(sender, src) {
		return
	}
	t := sendTime(sender, m.Time)
	src.last = m.Payload
	src.lastTime = t
	src.hasLast = true

	for _, dst := range src.targets {
		b.deliverValue(src, dst, t, m.Payload, 0)
	}
	b.metrics.ValueRouted(b.name)
}

func (b *Broker) deliverValue(src, dst *iface, t simtime.Time, payload []byte, hops int) {
	if hops > maxHops {
		b.metrics.MessageDropped(b.name, dropLoop)
		return
	}
	switch dst.kind {
	case wire.KindInput:
		f := b.root.byID[dst.handle.Fed]
		if f == nil || f.state.terminal() {
			return
		}
		ev := wire.New(wire.ActPublish)
		ev.Source = src.handle
		ev.Dest = dst.handle
		ev.Name = src.name
		ev.Type = src.typ
		ev.Units = src.units
		ev.Payload = append([]byte(nil), payload...)
		b.enqueue(f, simtime.Add(t, f.inputDelay), !dst.ignoresInterrupts(), ev)
	case wire.KindEndpoint:
		b.arrive(dst, message.New(src.name, dst.name, t, append([]byte(nil), payload...)), true, hops)
	case wire.KindTranslator:
		if dst.translator == nil {
			return
		}
		data, err := dst.translator.ToMessage(databuffer.FromBytes(payload))
		if err != nil {
			b.logger.Warn("translation to message failed", "translator", dst.name, "error", err)
			b.metrics.MessageDropped(b.name, dropTranslation)
			return
		}
		for _, out := range dst.destinations {
			b.arrive(out, message.New(dst.name, out.name, t, append([]byte(nil), data...)), true, hops+1)
		}
	}
}

// routeMessage runs the source filters of the sending endpoint, then
// resolves and delivers each resulting message.
func (b *Broker) routeMessage(m *wire.ActionMessage) {
	src := b.root.dir.byHandle[m.Source]
	msg := m.Message
	if src == nil || msg == nil {
		b.logger.Debug("message from unknown endpoint", "handle", m.Source)
		return
	}
	sender := b.root.byID[src.handle.Fed]
	if sender != nil && sender.state.terminal() {
		return
	}
	if b.fromObserver(sender, src) {
		return
	}

	msg.Source = src.name
	if msg.OriginalSource == "" {
		msg.OriginalSource = msg.Source
	}
	msg.Time = sendTime(sender, msg.Time)

	var outs []*message.Message
	if msg.Destination != "" {
		outs = append(outs, msg)
	} else {
		for _, d := range src.destinations {
			c := msg.Clone()
			c.Destination = d.name
			outs = append(outs, c)
		}
	}
	if len(outs) == 0 {
		b.logger.Debug("message without destination", "endpoint", src.name)
		b.metrics.MessageDropped(b.name, dropNoDestination)
		return
	}

	ops := filterOps(src.srcFilters)
	for _, out := range outs {
		if out.OriginalDestination == "" {
			out.OriginalDestination = out.Destination
		}
		cur, extras := pipeline.Apply(ops, out)
		for _, extra := range extras {
			b.direct(extra, 1)
		}
		if cur == nil {
			b.metrics.MessageDropped(b.name, dropFiltered)
			continue
		}
		dst := b.root.dir.first(cur.Destination, wire.KindEndpoint, wire.KindTranslator)
		if dst == nil {
			b.unknownDestination(cur)
			continue
		}
		b.arrive(dst, cur, true, 0)
	}
}

func (b *Broker) unknownDestination(msg *message.Message) {
	b.logger.Warn("message to unknown destination", "source", msg.Source, "destination", msg.Destination)
	b.metrics.MessageDropped(b.name, dropUnknownDestination)
}

// direct delivers msg by name without running destination filters.
func (b *Broker) direct(msg *message.Message, hops int) {
	dst := b.root.dir.first(msg.Destination, wire.KindEndpoint, wire.KindTranslator)
	if dst == nil {
		b.unknownDestination(msg)
		return
	}
	b.arrive(dst, msg, false, hops)
}

// arrive delivers msg to dst, running its destination filters first when
// filters is set. A destination filter that changes the destination sends
// the message on without further filtering.
func (b *Broker) arrive(dst *iface, msg *message.Message, filters bool, hops int) {
	if hops > maxHops {
		b.metrics.MessageDropped(b.name, dropLoop)
		return
	}
	if dst.kind == wire.KindTranslator {
		b.translate(dst, msg, hops)
		return
	}

	if filters && len(dst.dstFilters) > 0 {
		dest := msg.Destination
		cur, extras := pipeline.Apply(filterOps(dst.dstFilters), msg)
		for _, extra := range extras {
			b.direct(extra, hops+1)
		}
		if cur == nil {
			b.metrics.MessageDropped(b.name, dropFiltered)
			return
		}
		if cur.Destination != dest {
			b.direct(cur, hops+1)
			return
		}
		msg = cur
	}

	f := b.root.byID[dst.handle.Fed]
	if f == nil || f.state.terminal() {
		b.metrics.MessageDropped(b.name, dropFinalized)
		return
	}
	if msg.OriginalDestination == "" {
		msg.OriginalDestination = msg.Destination
	}
	t := simtime.Add(msg.Time, f.inputDelay)
	msg.Time = t

	ev := wire.New(wire.ActSendMessage)
	ev.Dest = dst.handle
	ev.Message = msg
	b.enqueue(f, t, !dst.ignoresInterrupts(), ev)
	b.metrics.MessageRouted(b.name)
}

// translate turns a message into a value published to the translator's
// targets.
func (b *Broker) translate(tr *iface, msg *message.Message, hops int) {
	if tr.translator == nil {
		return
	}
	value, err := tr.translator.ToValue(msg.Data)
	if err != nil {
		b.logger.Warn("translation to value failed", "translator", tr.name, "error", err)
		b.metrics.MessageDropped(b.name, dropTranslation)
		return
	}
	payload := value.Bytes()
	tr.last = payload
	tr.lastTime = msg.Time
	tr.hasLast = true
	for _, dst := range tr.targets {
		b.deliverValue(tr, dst, msg.Time, payload, hops+1)
	}
	b.metrics.ValueRouted(b.name)
}
