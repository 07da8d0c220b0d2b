package broker

import (
	"sort"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// event is an undelivered value or message for one federate.
type event struct {
	time         simtime.Time
	interrupting bool
	seq          uint64
	msg          *wire.ActionMessage
}

// enqueue holds msg for f until f is granted a time at or after t.
func (b *Broker) enqueue(f *federate, t simtime.Time, interrupting bool, msg *wire.ActionMessage) {
	if f.state.terminal() {
		return
	}
	b.root.seq++
	msg.Time = t
	f.events = append(f.events, &event{time: t, interrupting: interrupting, seq: b.root.seq, msg: msg})
}

func (f *federate) hasEventsBy(t simtime.Time) bool {
	for _, ev := range f.events {
		if !simtime.Less(t, ev.time) {
			return true
		}
	}
	return false
}

// nextInterrupt returns the earliest interrupting event after g.
func (f *federate) nextInterrupt(g simtime.Time) (simtime.Time, bool) {
	best := simtime.MaxTime
	found := false
	for _, ev := range f.events {
		if ev.interrupting && simtime.Less(g, ev.time) && ev.time < best {
			best = ev.time
			found = true
		}
	}
	return best, found
}

// releaseEvents sends every event due at or before t to the federate's core,
// ordered by time then arrival.
func (b *Broker) releaseEvents(f *federate, t simtime.Time) {
	var due, keep []*event
	for _, ev := range f.events {
		if simtime.Less(t, ev.time) {
			keep = append(keep, ev)
		} else {
			due = append(due, ev)
		}
	}
	f.events = keep
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].time != due[j].time {
			return due[i].time < due[j].time
		}
		return due[i].seq < due[j].seq
	})
	for _, ev := range due {
		b.send(f.node, ev.msg)
	}
}

// align moves t onto the federate's period grid.
func (f *federate) align(t simtime.Time) simtime.Time {
	if f.period > 0 {
		return simtime.Ceil(t, f.period, f.offset)
	}
	return t
}

// next is the earliest time f could still send from.
func (f *federate) nextTime(candidates map[wire.FederateID]simtime.Time) simtime.Time {
	if f.waiting {
		if c, ok := candidates[f.id]; ok {
			return c
		}
	}
	return f.granted
}

// candidate computes the time f would be granted if nothing else constrained
// it. It reports false while a barrier at or before the current grant blocks.
func (b *Broker) candidate(f *federate) (simtime.Time, bool) {
	g := f.granted
	c := f.align(simtime.Max(f.request, simtime.Next(g, f.timeDelta)))
	if !f.uninterruptible {
		if e, ok := f.nextInterrupt(g); ok && e < c {
			c = simtime.Min(c, f.align(simtime.Max(e, simtime.Next(g, f.timeDelta))))
		}
	}
	if b.root.hasBarrier {
		if !simtime.Less(g, b.root.barrier) {
			return 0, false
		}
		c = simtime.Min(c, b.root.barrier)
	}
	return c, true
}

// lbts is the lower bound on the time of any event that could still reach f.
func (b *Broker) lbts(f *federate, candidates map[wire.FederateID]simtime.Time) simtime.Time {
	if f.sourceOnly {
		return simtime.MaxTime
	}
	bound := simtime.MaxTime
	for _, y := range b.root.feds {
		if y == f || !y.active() || y.observer {
			continue
		}
		t := simtime.Add(y.nextTime(candidates), y.outputDelay)
		if t < bound {
			bound = t
		}
	}
	return simtime.Add(bound, f.inputDelay)
}

// immediate handles requests that are answered without waiting on others.
func (f *federate) immediate() (simtime.Time, option.IterationResult, bool) {
	if f.iterations < f.maxIterations {
		switch f.iterate {
		case option.ForceIteration:
			return f.granted, option.Iterating, true
		case option.IterateIfNeeded:
			if f.hasEventsBy(f.granted) {
				return f.granted, option.Iterating, true
			}
		}
	}
	if !simtime.Less(f.granted, f.request) {
		return f.granted, option.NextStep, true
	}
	return 0, 0, false
}

// grantPass grants every waiting federate that can safely advance, repeating
// until no further grant is possible.
func (b *Broker) grantPass() {
	r := b.root
	if r == nil || !r.execDone || r.fatal != nil {
		return
	}
	for {
		progressed := false
		candidates := make(map[wire.FederateID]simtime.Time)
		for _, f := range r.feds {
			if f.waiting && f.active() {
				if c, ok := b.candidate(f); ok {
					candidates[f.id] = c
				} else {
					candidates[f.id] = f.granted
				}
			}
		}
		for _, f := range r.feds {
			if !f.waiting || !f.active() {
				continue
			}
			if t, result, ok := f.immediate(); ok {
				b.grant(f, t, result, b.lbts(f, candidates))
				progressed = true
				continue
			}
			c, ok := b.candidate(f)
			if !ok {
				continue
			}
			bound := b.lbts(f, candidates)
			allowed := !simtime.Less(bound, c)
			if f.waitForCurrent {
				allowed = simtime.Less(c, bound) || bound.IsMax()
			}
			if allowed {
				b.grant(f, c, option.NextStep, bound)
				delete(candidates, f.id)
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

func (b *Broker) grant(f *federate, t simtime.Time, result option.IterationResult, bound simtime.Time) {
	requested := f.request
	f.waiting = false
	if t < f.granted {
		t = f.granted
	}
	f.granted = t
	if result == option.Iterating {
		f.iterations++
	} else {
		f.iterations = 0
	}
	b.releaseEvents(f, t)

	msg := wire.New(wire.ActTimeGrant)
	msg.Dest = f.handle()
	msg.Time = t
	msg.Result = uint8(result)
	msg.Counter = f.counter
	b.send(f.node, msg)

	b.metrics.Grant(b.name, f.name, float64(t), result == option.Iterating)
	b.logGrant(f, requested, t, result, bound)
}

func (b *Broker) logGrant(f *federate, requested, granted simtime.Time, result option.IterationResult, bound simtime.Time) {
	b.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Node:      b.name,
		Direction: log.DirectionLocal,
		Layer:     log.LayerFederation,
		Category:  log.CategoryTime,
		Role:      b.role,
		Federate:  f.name,
		SimTime:   float64(granted),
		Grant: &log.GrantEvent{
			Requested: float64(requested),
			Granted:   float64(granted),
			Result:    result.String(),
			Bound:     float64(bound),
		},
	})
}
