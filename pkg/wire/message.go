package wire

import (
	"fmt"

	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// NodeID identifies a core or broker. The root broker is RootNode.
type NodeID int32

const (
	// NoNode is the unassigned node id.
	NoNode NodeID = 0

	// RootNode is the id of the root broker.
	RootNode NodeID = 1
)

// FederateID identifies a federate, or a core acting as interface owner.
type FederateID int32

// NoFederate is the unassigned federate id.
const NoFederate FederateID = 0

// GlobalHandle identifies an interface across the federation.
type GlobalHandle struct {
	_      struct{}   `cbor:",toarray"`
	Fed    FederateID `json:"fed"`
	Handle int32      `json:"handle"`
}

// Handle builds a GlobalHandle.
func Handle(fed FederateID, handle int32) GlobalHandle {
	return GlobalHandle{Fed: fed, Handle: handle}
}

// IsValid reports whether the handle was assigned.
func (h GlobalHandle) IsValid() bool {
	return h.Fed != NoFederate
}

// String formats the handle as fed:handle.
func (h GlobalHandle) String() string {
	return fmt.Sprintf("%d:%d", h.Fed, h.Handle)
}

// ActionMessage is the single message type routed inside a federation.
//
// CBOR encoding uses integer keys; unused fields are omitted.
type ActionMessage struct {
	Action      Action            `cbor:"1,keyasint"`
	SourceNode  NodeID            `cbor:"2,keyasint,omitempty"`
	DestNode    NodeID            `cbor:"3,keyasint,omitempty"`
	Source      GlobalHandle      `cbor:"4,keyasint,omitempty"`
	Dest        GlobalHandle      `cbor:"5,keyasint,omitempty"`
	Counter     int32             `cbor:"6,keyasint,omitempty"`
	Time        simtime.Time      `cbor:"7,keyasint,omitempty"`
	Iteration   uint8             `cbor:"8,keyasint,omitempty"`
	Result      uint8             `cbor:"9,keyasint,omitempty"`
	Flags       uint32            `cbor:"10,keyasint,omitempty"`
	Name        string            `cbor:"11,keyasint,omitempty"`
	Target      string            `cbor:"12,keyasint,omitempty"`
	Type        string            `cbor:"13,keyasint,omitempty"`
	Units       string            `cbor:"14,keyasint,omitempty"`
	Payload     []byte            `cbor:"15,keyasint,omitempty"`
	Message     *message.Message  `cbor:"16,keyasint,omitempty"`
	Code        int               `cbor:"17,keyasint,omitempty"`
	ErrorText   string            `cbor:"18,keyasint,omitempty"`
	Kind        InterfaceKind     `cbor:"19,keyasint,omitempty"`
	Link        LinkKind          `cbor:"20,keyasint,omitempty"`
	Props       map[int]float64   `cbor:"21,keyasint,omitempty"`
	Strings     []string          `cbor:"22,keyasint,omitempty"`
	Handles     []GlobalHandle    `cbor:"23,keyasint,omitempty"`
	Options     map[int]int       `cbor:"24,keyasint,omitempty"`
	StringProps map[string]string `cbor:"25,keyasint,omitempty"`
	ErrorKind   status.Kind       `cbor:"26,keyasint,omitempty"`
	Operator    any               `cbor:"-"`
}

// New creates an action message.
func New(action Action) *ActionMessage {
	return &ActionMessage{Action: action}
}

// Has reports whether all bits of flag are set.
func (m *ActionMessage) Has(flag uint32) bool {
	return m.Flags&flag == flag
}

// Set sets or clears flag bits.
func (m *ActionMessage) Set(flag uint32, on bool) {
	if on {
		m.Flags |= flag
	} else {
		m.Flags &^= flag
	}
}

// Priority reports whether the message uses the priority channel.
func (m *ActionMessage) Priority() bool {
	switch m.Action {
	case ActGlobalError, ActTerminate:
		return true
	case ActQuery, ActQueryReply, ActCommand:
		return m.Has(FlagFast)
	}
	return false
}

// SetError attaches an error to the message.
func (m *ActionMessage) SetError(err error) {
	if err == nil {
		return
	}
	m.Flags |= FlagError
	m.Code = int(status.CodeOf(err))
	m.ErrorKind = status.KindOf(err)
	m.ErrorText = err.Error()
}

// Err returns the attached error, nil if none.
func (m *ActionMessage) Err() error {
	if !m.Has(FlagError) {
		return nil
	}
	return status.Record{Code: m.Code, Kind: m.ErrorKind, Message: m.ErrorText}.Err()
}

// Reply creates a response addressed back to the sender of m.
func (m *ActionMessage) Reply(action Action) *ActionMessage {
	return &ActionMessage{
		Action:     action,
		SourceNode: m.DestNode,
		DestNode:   m.SourceNode,
		Source:     m.Dest,
		Dest:       m.Source,
		Counter:    m.Counter,
		Name:       m.Name,
	}
}

// Clone returns a copy of m sharing no mutable state.
func (m *ActionMessage) Clone() *ActionMessage {
	c := *m
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	if m.Message != nil {
		c.Message = m.Message.Clone()
	}
	if m.Strings != nil {
		c.Strings = append([]string(nil), m.Strings...)
	}
	if m.Handles != nil {
		c.Handles = append([]GlobalHandle(nil), m.Handles...)
	}
	if m.Props != nil {
		c.Props = make(map[int]float64, len(m.Props))
		for k, v := range m.Props {
			c.Props[k] = v
		}
	}
	if m.Options != nil {
		c.Options = make(map[int]int, len(m.Options))
		for k, v := range m.Options {
			c.Options[k] = v
		}
	}
	if m.StringProps != nil {
		c.StringProps = make(map[string]string, len(m.StringProps))
		for k, v := range m.StringProps {
			c.StringProps[k] = v
		}
	}
	return &c
}

// String formats the message for logs.
func (m *ActionMessage) String() string {
	s := fmt.Sprintf("%s src=%d/%s dst=%d/%s", m.Action, m.SourceNode, m.Source, m.DestNode, m.Dest)
	if m.Name != "" {
		s += " name=" + m.Name
	}
	if m.Target != "" {
		s += " target=" + m.Target
	}
	if m.Time != 0 {
		s += " t=" + m.Time.String()
	}
	return s
}
