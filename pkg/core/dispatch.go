package core

import (
	"strings"

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// dispatch handles one message from the broker. Runs on the event loop.
func (c *Core) dispatch(m *wire.ActionMessage) {
	switch m.Action {
	case wire.ActNodeAck, wire.ActQueryReply:
		c.complete(m)
	case wire.ActFederateAck:
		c.federateAck(m)
	case wire.ActInterfaceAck:
		if m.Err() != nil {
			c.reg.remove(m.Dest)
		}
		c.complete(m)
	case wire.ActInitGrant, wire.ActExecGrant, wire.ActTimeGrant, wire.ActFinalizeAck:
		c.grant(m)
	case wire.ActNotifyLink:
		c.notifyLink(m)
	case wire.ActPublish:
		if s := c.session(m.Dest.Fed); s != nil {
			s.handler.HandleValue(Value{
				Input:   m.Dest,
				Source:  m.Source,
				Name:    m.Name,
				Type:    m.Type,
				Units:   m.Units,
				Time:    m.Time,
				Payload: m.Payload,
			})
		}
	case wire.ActSendMessage:
		if s := c.session(m.Dest.Fed); s != nil && m.Message != nil {
			s.handler.HandleMessage(m.Dest, m.Message)
		}
	case wire.ActCommand:
		if m.Dest.IsValid() {
			if s := c.session(m.Dest.Fed); s != nil {
				s.handler.HandleCommand(m.Name, string(m.Payload))
			}
			return
		}
		c.runCommand(m)
	case wire.ActQuery:
		c.answer(m)
	case wire.ActGlobalError:
		err := status.New(status.Code(m.Code), status.KindFederationFatal, m.ErrorText)
		if m.ErrorText == "" {
			err = status.Errorf(status.KindFederationFatal, "global error")
		}
		c.logger.Error("global error", "source", m.Name, "error", err)
		c.setState(StateErrored, err.Error())
		c.halt(err)
	case wire.ActTerminate:
		c.leave("federation terminated")
	case wire.ActDisconnect:
		if err := m.Err(); err != nil {
			c.logger.Warn("broker link lost", "error", err)
			c.halt(status.Wrap(status.KindConnection, err, "broker link lost"))
			c.shutdown()
		}
	case wire.ActDisconnectAck:
		c.shutdown()
	default:
		c.logger.Debug("ignoring message", "action", m.Action)
	}
}

func (c *Core) complete(m *wire.ActionMessage) {
	if m.Counter == 0 {
		return
	}
	if err := c.pending.Complete(m); err != nil {
		c.logger.Debug("no request waiting", "action", m.Action, "counter", m.Counter)
	}
}

// session returns the open session of fed, nil if there is none.
func (c *Core) session(fed wire.FederateID) *Session {
	s := c.sessions[fed]
	if s == nil || s.closed {
		return nil
	}
	return s
}

func (c *Core) federateAck(m *wire.ActionMessage) {
	s := c.joining[m.Counter]
	delete(c.joining, m.Counter)
	if s != nil && m.Err() == nil {
		s.id = m.Dest.Fed
		c.sessions[s.id] = s
		c.order = append(c.order, s)
		if s.delayInit {
			c.delay++
		}
		c.metrics.SetFederates(c.name, len(c.order))
		c.flushInit()
	}
	c.complete(m)
}

// grant answers a session's outstanding lifecycle request.
func (c *Core) grant(m *wire.ActionMessage) {
	s := c.sessions[m.Dest.Fed]
	if s == nil {
		return
	}
	if m.Counter == 0 {
		m.Counter = s.waitCounter
	}
	s.waitCounter = 0

	var failed error
	switch m.Action {
	case wire.ActExecGrant:
		s.granted = m.Time
		if option.IterationResult(m.Result) == option.NextStep {
			s.executing = true
			if !s.checked {
				s.checked = true
				failed = c.reg.checkConnections(s)
			}
		}
		if failed != nil {
			m.Result = uint8(option.IterationError)
			m.SetError(failed)
		}
	case wire.ActTimeGrant:
		s.granted = m.Time
	case wire.ActFinalizeAck:
		s.finalized = true
	}
	c.complete(m)

	if failed != nil {
		s.logger.Error("connection check failed", "error", failed)
		c.localError(s, failed)
	}
	if m.Action == wire.ActFinalizeAck {
		c.afterFinalize()
	}
}

// requestInit sends an initialization request, or holds it while the core
// waits for federates or for SetReadyToInit.
func (c *Core) requestInit(m *wire.ActionMessage) {
	if c.initHeld() {
		c.heldInit = append(c.heldInit, m)
		return
	}
	c.up(m)
}

func (c *Core) initHeld() bool {
	return c.delay > 0 || len(c.order) < c.config.MinFederates
}

// flushInit releases held initialization requests once nothing holds them.
func (c *Core) flushInit() {
	if c.initHeld() || len(c.heldInit) == 0 {
		return
	}
	held := c.heldInit
	c.heldInit = nil
	for _, m := range held {
		c.up(m)
	}
}

// halt answers every outstanding lifecycle request with a halted grant.
func (c *Core) halt(err error) {
	c.setHalted(err)
	c.heldInit = nil
	for _, s := range c.order {
		if s.waitCounter == 0 {
			continue
		}
		c.complete(c.haltedReply(s.waitCounter))
		s.waitCounter = 0
	}
}

// localError finalizes s with err and removes it after the local error
// window.
func (c *Core) localError(s *Session, err error) {
	if s.errored || s.closed {
		return
	}
	s.errored = true
	s.logger.Error("local error", "error", err)

	msg := wire.New(wire.ActLocalError)
	msg.Source = s.handle()
	msg.Name = s.name
	msg.SetError(err)
	c.up(msg)

	if s.waitCounter != 0 {
		reply := wire.New(wire.ActTimeGrant)
		reply.Counter = s.waitCounter
		reply.Result = uint8(option.IterationError)
		reply.SetError(err)
		s.waitCounter = 0
		c.complete(reply)
	}

	c.clock.AfterFunc(c.config.LocalErrorWindow, func() {
		c.inbox.Run(func() {
			s.closed = true
			c.afterFinalize()
		})
	})
}

// afterFinalize leaves the federation once every federate is done.
func (c *Core) afterFinalize() {
	if len(c.order) == 0 || len(c.joining) > 0 {
		return
	}
	for _, s := range c.order {
		if !s.finalized && !s.closed {
			return
		}
	}
	c.leave("all federates finalized")
}

func (c *Core) notifyLink(m *wire.ActionMessage) {
	l := c.reg.link(m)
	if l == nil || l.owner == nil || l.owner.closed {
		return
	}
	l.owner.handler.HandleLink(LinkNotice{
		Local:  m.Dest,
		Remote: m.Source,
		Name:   m.Name,
		Type:   m.Type,
		Units:  m.Units,
		Kind:   m.Kind,
		Source: m.Has(wire.FlagSourceTarget),
	})
}

// runCommand executes a command addressed to the core itself.
func (c *Core) runCommand(m *wire.ActionMessage) {
	command := strings.TrimSpace(string(m.Payload))
	word, rest, _ := strings.Cut(command, " ")
	switch word {
	case broker.CommandTerminate:
		c.logger.Info("terminate command", "source", m.Name)
		c.leave("terminate command from " + m.Name)
	case broker.CommandEcho:
		if m.Name == "" {
			return
		}
		reply := wire.New(wire.ActCommand)
		reply.Name = c.name
		reply.Target = m.Name
		reply.Payload = []byte(broker.CommandEchoReply)
		reply.Set(wire.FlagFast, m.Has(wire.FlagFast))
		c.up(reply)
	case broker.CommandLog:
		c.logger.Info("command log", "source", m.Name, "text", rest)
	default:
		c.logger.Warn("unrecognized command", "command", command, "source", m.Name)
	}
}
