package log

import (
	"time"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Event represents a federation event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (wall clock, nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Node is the name of the core or broker that captured the event.
	Node string `cbor:"2,keyasint"`

	// Direction indicates message flow relative to Node.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Role is the role of the capturing node.
	Role Role `cbor:"6,keyasint,omitempty"`

	// Peer identifies the link peer (node name or stream address).
	Peer string `cbor:"7,keyasint,omitempty"`

	// Federate is the federate the event concerns, if any.
	Federate string `cbor:"8,keyasint,omitempty"`

	// SimTime is the simulated time the event refers to.
	SimTime float64 `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Action      *ActionEvent      `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Federate/core/broker state
	Grant       *GrantEvent       `cbor:"13,keyasint,omitempty"` // Time grants
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
	// DirectionLocal indicates an event produced on the node itself.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the action message layer.
	LayerWire Layer = 1
	// LayerFederation is the coordination layer (lifecycle and time).
	LayerFederation Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerFederation:
		return "FEDERATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates routed traffic (values, endpoint messages).
	CategoryMessage Category = 0
	// CategoryControl indicates registration, links, commands and queries.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryTime indicates time requests and grants.
	CategoryTime Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryTime:
		return "TIME"
	default:
		return "UNKNOWN"
	}
}

// CategoryOf classifies an action.
func CategoryOf(a wire.Action) Category {
	switch a {
	case wire.ActPublish, wire.ActSendMessage:
		return CategoryMessage
	case wire.ActTimeRequest, wire.ActTimeGrant, wire.ActSetBarrier, wire.ActClearBarrier:
		return CategoryTime
	case wire.ActInitRequest, wire.ActInitGrant, wire.ActExecRequest, wire.ActExecGrant,
		wire.ActFinalize, wire.ActFinalizeAck, wire.ActDisconnect, wire.ActDisconnectAck, wire.ActTerminate:
		return CategoryState
	case wire.ActLocalError, wire.ActGlobalError:
		return CategoryError
	default:
		return CategoryControl
	}
}

// Role indicates what kind of node captured the event.
type Role uint8

const (
	// RoleCore indicates a core.
	RoleCore Role = 0
	// RoleBroker indicates a non-root broker.
	RoleBroker Role = 1
	// RoleRoot indicates the root broker.
	RoleRoot Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleCore:
		return "CORE"
	case RoleBroker:
		return "BROKER"
	case RoleRoot:
		return "ROOT"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// ActionEvent captures a decoded action message at the wire layer.
type ActionEvent struct {
	// Action is the message action.
	Action wire.Action `cbor:"1,keyasint"`

	// SourceNode and DestNode are the node addresses.
	SourceNode int32 `cbor:"2,keyasint,omitempty"`
	DestNode   int32 `cbor:"3,keyasint,omitempty"`

	// Source and Dest are the interface handles (fed:handle).
	Source string `cbor:"4,keyasint,omitempty"`
	Dest   string `cbor:"5,keyasint,omitempty"`

	// Name and Target carry interface names for registration and links.
	Name   string `cbor:"6,keyasint,omitempty"`
	Target string `cbor:"7,keyasint,omitempty"`

	// Counter correlates requests and replies.
	Counter int32 `cbor:"8,keyasint,omitempty"`

	// PayloadSize is the size of the value or message payload.
	PayloadSize int `cbor:"9,keyasint,omitempty"`
}

// NewActionEvent summarizes an action message for capture.
func NewActionEvent(m *wire.ActionMessage) *ActionEvent {
	ev := &ActionEvent{
		Action:     m.Action,
		SourceNode: int32(m.SourceNode),
		DestNode:   int32(m.DestNode),
		Name:       m.Name,
		Target:     m.Target,
		Counter:    m.Counter,
	}
	if m.Source.IsValid() {
		ev.Source = m.Source.String()
	}
	if m.Dest.IsValid() {
		ev.Dest = m.Dest.String()
	}
	switch {
	case m.Message != nil:
		ev.PayloadSize = len(m.Message.Data)
	default:
		ev.PayloadSize = len(m.Payload)
	}
	return ev
}

// StateChangeEvent captures federate, core and broker lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityFederate indicates a federate state change.
	StateEntityFederate StateEntity = 0
	// StateEntityCore indicates a core state change.
	StateEntityCore StateEntity = 1
	// StateEntityBroker indicates a broker state change.
	StateEntityBroker StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityFederate:
		return "FEDERATE"
	case StateEntityCore:
		return "CORE"
	case StateEntityBroker:
		return "BROKER"
	default:
		return "UNKNOWN"
	}
}

// GrantEvent captures a time grant decision.
type GrantEvent struct {
	// Requested is the requested time.
	Requested float64 `cbor:"1,keyasint"`

	// Granted is the granted time.
	Granted float64 `cbor:"2,keyasint"`

	// Result is the iteration result name.
	Result string `cbor:"3,keyasint,omitempty"`

	// Bound is the lower bound on other federates' next events at grant.
	Bound float64 `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
