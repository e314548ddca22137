package groupcall

// EventType enumerates the events a channel can push up the stack.
type EventType int

const (
	// EventMsg carries a regular message.
	EventMsg EventType = iota
	// EventViewChange announces a new membership view.
	EventViewChange
	// EventSuspect reports a member believed unreachable.
	EventSuspect
	// EventSetLocalAddress tells the stack its own address.
	EventSetLocalAddress
	// EventGetApplState asks the application for its state.
	EventGetApplState
	// EventGetStateOK delivers state received from another member.
	EventGetStateOK
	// EventStateTransferInputStream hands the application a stream to
	// read state from.
	EventStateTransferInputStream
	// EventStateTransferOutputStream hands the application a stream to
	// write state to.
	EventStateTransferOutputStream
	// EventBlock asks the application to stop sending before a view is
	// installed.
	EventBlock
	// EventUnblock lifts a previous block.
	EventUnblock
)

func (t EventType) String() string {
	switch t {
	case EventMsg:
		return "MSG"
	case EventViewChange:
		return "VIEW_CHANGE"
	case EventSuspect:
		return "SUSPECT"
	case EventSetLocalAddress:
		return "SET_LOCAL_ADDRESS"
	case EventGetApplState:
		return "GET_APPLSTATE"
	case EventGetStateOK:
		return "GET_STATE_OK"
	case EventStateTransferInputStream:
		return "STATE_TRANSFER_INPUTSTREAM"
	case EventStateTransferOutputStream:
		return "STATE_TRANSFER_OUTPUTSTREAM"
	case EventBlock:
		return "BLOCK"
	case EventUnblock:
		return "UNBLOCK"
	default:
		return "UNKNOWN"
	}
}

// Event is what the channel delivers to its up-handler. Exactly one of the
// payload fields is meaningful, selected by Type.
type Event struct {
	Type EventType

	// Msg is set for EventMsg.
	Msg *Message
	// View is set for EventViewChange.
	View *View
	// Addr is set for EventSuspect and EventSetLocalAddress.
	Addr Address
	// Arg carries state-transfer payloads for the remaining event types.
	Arg any
}

// MessageBatch is a batch of messages delivered up in one call.
type MessageBatch []*Message

// UpHandler consumes events and batches coming up from the channel.
type UpHandler interface {
	Up(Event)
	UpBatch(MessageBatch)
}

// Channel abstracts the underlying group transport: reliable delivery,
// ordering, membership and flow control all live below this interface.
type Channel interface {
	// Send hands a message down the stack. It may block on backpressure.
	Send(*Message) error
	// View returns the current membership view.
	View() *View
	// LocalAddress returns this member's own address.
	LocalAddress() Address
	// DiscardOwnMessages reports whether the channel drops loopback
	// copies of this member's multicasts.
	DiscardOwnMessages() bool
	// IsConnected reports whether the channel is joined to a cluster.
	IsConnected() bool
	// SetUpHandler installs the consumer for up events; nil detaches.
	SetUpHandler(UpHandler)
}

// ChannelListener observes channel-level conditions the dispatcher
// forwards: block/unblock around view installations. Listener failures
// are logged and swallowed.
type ChannelListener interface {
	Block()
	Unblock()
}
