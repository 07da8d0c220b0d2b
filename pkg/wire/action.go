package wire

// Action identifies what an ActionMessage asks for or reports.
type Action uint8

const (
	ActIgnore Action = 0

	// Registration
	ActRegisterNode      Action = 1
	ActNodeAck           Action = 2
	ActRegisterFederate  Action = 3
	ActFederateAck       Action = 4
	ActRegisterInterface Action = 5
	ActInterfaceAck      Action = 6
	ActSetOption         Action = 7
	ActSetProperty       Action = 8

	// Links and timing configuration
	ActAddLink      Action = 10
	ActNotifyLink   Action = 11
	ActSetTimeProps Action = 12
	ActRemoveLink   Action = 13

	// Lifecycle
	ActInitRequest Action = 20
	ActInitGrant   Action = 21
	ActExecRequest Action = 22
	ActExecGrant   Action = 23
	ActTimeRequest Action = 24
	ActTimeGrant   Action = 25
	ActFinalize    Action = 26
	ActFinalizeAck Action = 27

	// Errors and shutdown
	ActLocalError    Action = 30
	ActGlobalError   Action = 31
	ActTerminate     Action = 32
	ActDisconnect    Action = 33
	ActDisconnectAck Action = 34

	// Traffic
	ActPublish     Action = 40
	ActSendMessage Action = 41

	// Out-of-band
	ActCommand      Action = 50
	ActQuery        Action = 51
	ActQueryReply   Action = 52
	ActSetGlobal    Action = 53
	ActSetBarrier   Action = 54
	ActClearBarrier Action = 55
)

var actionNames = map[Action]string{
	ActIgnore:            "IGNORE",
	ActRegisterNode:      "REGISTER_NODE",
	ActNodeAck:           "NODE_ACK",
	ActRegisterFederate:  "REGISTER_FEDERATE",
	ActFederateAck:       "FEDERATE_ACK",
	ActRegisterInterface: "REGISTER_INTERFACE",
	ActInterfaceAck:      "INTERFACE_ACK",
	ActSetOption:         "SET_OPTION",
	ActSetProperty:       "SET_PROPERTY",
	ActAddLink:           "ADD_LINK",
	ActNotifyLink:        "NOTIFY_LINK",
	ActSetTimeProps:      "SET_TIME_PROPS",
	ActRemoveLink:        "REMOVE_LINK",
	ActInitRequest:       "INIT_REQUEST",
	ActInitGrant:         "INIT_GRANT",
	ActExecRequest:       "EXEC_REQUEST",
	ActExecGrant:         "EXEC_GRANT",
	ActTimeRequest:       "TIME_REQUEST",
	ActTimeGrant:         "TIME_GRANT",
	ActFinalize:          "FINALIZE",
	ActFinalizeAck:       "FINALIZE_ACK",
	ActLocalError:        "LOCAL_ERROR",
	ActGlobalError:       "GLOBAL_ERROR",
	ActTerminate:         "TERMINATE",
	ActDisconnect:        "DISCONNECT",
	ActDisconnectAck:     "DISCONNECT_ACK",
	ActPublish:           "PUBLISH",
	ActSendMessage:       "SEND_MESSAGE",
	ActCommand:           "COMMAND",
	ActQuery:             "QUERY",
	ActQueryReply:        "QUERY_REPLY",
	ActSetGlobal:         "SET_GLOBAL",
	ActSetBarrier:        "SET_BARRIER",
	ActClearBarrier:      "CLEAR_BARRIER",
}

// String returns the action name.
func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	_, ok := actionNames[a]
	return ok
}

// InterfaceKind is the kind of a registered interface.
type InterfaceKind uint8

const (
	KindNone InterfaceKind = iota
	KindPublication
	KindInput
	KindEndpoint
	KindFilter
	KindTranslator
)

// String returns the interface kind name.
func (k InterfaceKind) String() string {
	switch k {
	case KindPublication:
		return "publication"
	case KindInput:
		return "input"
	case KindEndpoint:
		return "endpoint"
	case KindFilter:
		return "filter"
	case KindTranslator:
		return "translator"
	default:
		return "unknown"
	}
}

// LinkKind says how a link request joins two named interfaces.
type LinkKind uint8

const (
	LinkNone LinkKind = iota

	// LinkData joins a publication (Name) to an input (Target).
	LinkData

	// LinkEndpoint joins a source endpoint (Name) to a destination endpoint (Target).
	LinkEndpoint

	// LinkSourceFilter attaches a filter (Name) to a source endpoint (Target).
	LinkSourceFilter

	// LinkDestinationFilter attaches a filter (Name) to a destination endpoint (Target).
	LinkDestinationFilter

	// LinkCloneDelivery adds a delivery endpoint (Target) to a cloning filter (Name).
	LinkCloneDelivery

	// LinkEndpointSubscription makes an endpoint (Target) receive a publication (Name) as messages.
	LinkEndpointSubscription

	// LinkDependency records that federate Target depends on federate Name.
	LinkDependency
)

// String returns the link kind name.
func (k LinkKind) String() string {
	switch k {
	case LinkData:
		return "data"
	case LinkEndpoint:
		return "endpoint"
	case LinkSourceFilter:
		return "source_filter"
	case LinkDestinationFilter:
		return "destination_filter"
	case LinkCloneDelivery:
		return "clone_delivery"
	case LinkEndpointSubscription:
		return "endpoint_subscription"
	case LinkDependency:
		return "dependency"
	default:
		return "none"
	}
}

// Flag bits carried in ActionMessage.Flags.
const (
	// FlagFast marks traffic that uses the priority channel.
	FlagFast uint32 = 1 << iota

	// FlagError marks a reply that carries an error.
	FlagError

	// FlagIterating marks an iterative request or grant.
	FlagIterating

	// FlagCloning marks a filter that clones instead of consuming.
	FlagCloning

	// FlagCoreOwned marks an interface owned by a core instead of a federate.
	FlagCoreOwned

	// FlagBroker marks a registering node as a broker.
	FlagBroker

	// FlagObserver marks a federate that never sends.
	FlagObserver

	// FlagSourceOnly marks a federate that never receives.
	FlagSourceOnly

	// FlagUninterruptible marks a federate that ignores interrupts.
	FlagUninterruptible

	// FlagWaitForCurrent marks a federate that waits for others to leave its grant time.
	FlagWaitForCurrent

	// FlagIgnoreInterrupts marks an interface whose traffic never interrupts.
	FlagIgnoreInterrupts

	// FlagSourceTarget marks a link notification describing a source.
	FlagSourceTarget
)
