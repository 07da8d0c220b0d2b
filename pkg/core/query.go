package core

import (
	"context"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/query"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/version"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

type coreCounts struct {
	Federates    int `json:"federates"`
	Publications int `json:"publications"`
	Inputs       int `json:"inputs"`
	Endpoints    int `json:"endpoints"`
	Filters      int `json:"filters"`
	Translators  int `json:"translators"`
}

type federateEntry struct {
	Name  string `json:"name"`
	ID    int32  `json:"id"`
	State string `json:"state"`
}

type coreStateDoc struct {
	Name      string          `json:"name"`
	ID        int32           `json:"id"`
	State     string          `json:"state"`
	Federates []federateEntry `json:"federates"`
}

// Query runs a query. Queries for the core or one of its federates are
// answered locally, everything else is forwarded to the root.
func (c *Core) Query(ctx context.Context, target, q string, mode option.SequencingMode) (string, error) {
	if q == "" {
		return "", status.Errorf(status.KindInvalidArgument, "query string is empty")
	}
	mode = mode.Resolve(option.SequencingFast)
	c.metrics.Query(mode.String())

	var answer string
	var answered bool
	if err := c.do(ctx, func() { answer, answered = c.answerLocal(target, q) }); err != nil {
		return "", err
	}
	if answered {
		return answer, nil
	}
	if !c.connected.Load() {
		return query.ErrorResult(query.CodeDisconnected, "core is not connected"), nil
	}

	id, ch, err := c.pending.Add()
	if err != nil {
		return query.ErrorResult(query.CodeDisconnected, "core stopped"), nil
	}
	msg := wire.New(wire.ActQuery)
	msg.Target = target
	msg.Name = c.name
	msg.Payload = []byte(q)
	msg.Counter = id
	msg.Set(wire.FlagFast, mode == option.SequencingFast)
	if err := c.do(ctx, func() { c.up(msg) }); err != nil {
		c.pending.Cancel(id)
		return "", err
	}
	reply, err := c.pending.Wait(ctx, id, ch)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return query.ErrorResult(query.CodeDisconnected, "core stopped"), nil
	}
	return string(reply.Payload), nil
}

// answerLocal answers queries about the core itself or a local federate.
// Runs on the event loop.
func (c *Core) answerLocal(target, q string) (string, bool) {
	switch target {
	case "", "core", c.name:
		return c.answerCore(q), true
	}
	for _, s := range c.order {
		if s.name == target && !s.closed {
			return c.answerFederate(s, q), true
		}
	}
	return "", false
}

// answer replies to a query routed to this core. Runs on the event loop.
func (c *Core) answer(m *wire.ActionMessage) {
	q := string(m.Payload)
	var answer string
	if m.Dest.IsValid() {
		s := c.session(m.Dest.Fed)
		if s == nil {
			answer = query.ErrorResult(query.CodeNotFound, "federate "+m.Target+" not found")
		} else {
			answer = c.answerFederate(s, q)
		}
	} else {
		answer = c.answerCore(q)
	}
	reply := m.Reply(wire.ActQueryReply)
	reply.Target = m.Target
	reply.Payload = []byte(answer)
	reply.Set(wire.FlagFast, m.Has(wire.FlagFast))
	c.up(reply)
}

func (c *Core) answerCore(q string) string {
	switch q {
	case "name", "identifier":
		return query.Quote(c.name)
	case "address":
		return query.Quote(c.Address())
	case "isconnected":
		return query.JSON(c.connected.Load())
	case "exists":
		return "true"
	case "version":
		return query.Quote(version.String())
	case "federates":
		names := []string{}
		for _, s := range c.order {
			if !s.closed {
				names = append(names, s.name)
			}
		}
		return query.JSON(names)
	case "publications":
		return query.JSON(c.reg.names(wire.KindPublication, nil))
	case "inputs":
		return query.JSON(c.reg.names(wire.KindInput, nil))
	case "endpoints":
		return query.JSON(c.reg.names(wire.KindEndpoint, nil))
	case "filters":
		return query.JSON(c.reg.names(wire.KindFilter, nil))
	case "translators":
		return query.JSON(c.reg.names(wire.KindTranslator, nil))
	case "counts":
		return query.JSON(coreCounts{
			Federates:    len(c.order),
			Publications: c.reg.count(wire.KindPublication),
			Inputs:       c.reg.count(wire.KindInput),
			Endpoints:    c.reg.count(wire.KindEndpoint),
			Filters:      c.reg.count(wire.KindFilter),
			Translators:  c.reg.count(wire.KindTranslator),
		})
	case "current_state":
		doc := coreStateDoc{Name: c.name, ID: int32(c.id), State: c.state.String(), Federates: []federateEntry{}}
		for _, s := range c.order {
			doc.Federates = append(doc.Federates, federateEntry{Name: s.name, ID: int32(s.id), State: s.state()})
		}
		return query.JSON(doc)
	}
	return query.ErrorResult(query.CodeBadRequest, "unrecognized core query "+q)
}

func (c *Core) answerFederate(s *Session, q string) string {
	if answer, ok := s.handler.HandleQuery(q); ok {
		return answer
	}
	switch q {
	case "name", "identifier":
		return query.Quote(s.name)
	case "exists":
		return "true"
	case "version":
		return query.Quote(version.String())
	case "state":
		return query.Quote(s.state())
	case "current_time":
		return query.JSON(query.TimeState{Name: s.name, Granted: s.granted.Seconds(), Requested: s.requested.Seconds()})
	case "publications":
		return query.JSON(c.reg.names(wire.KindPublication, s))
	case "inputs":
		return query.JSON(c.reg.names(wire.KindInput, s))
	case "endpoints":
		return query.JSON(c.reg.names(wire.KindEndpoint, s))
	case "filters":
		return query.JSON(c.reg.names(wire.KindFilter, s))
	case "translators":
		return query.JSON(c.reg.names(wire.KindTranslator, s))
	}
	return query.ErrorResult(query.CodeBadRequest, "unrecognized federate query "+q)
}

// state names the session's coordination state. Runs on the event loop.
func (s *Session) state() string {
	switch {
	case s.closed:
		return "disconnected"
	case s.errored:
		return "error"
	case s.finalized:
		return "finalized"
	case s.executing:
		return "executing"
	default:
		return "created"
	}
}
