package groupcall

import (
	"fmt"
	"strings"
)

// Flag is a wire-visible message flag. Flags travel with the message and
// are honored by the underlying protocol stack.
type Flag uint16

const (
	// OOB marks a message for out-of-band delivery (no ordering).
	OOB Flag = 1 << iota
	// DontBundle excludes the message from transport-level bundling.
	DontBundle
	// NoFC bypasses flow control.
	NoFC
	// RSVP requests a transport-level delivery ack.
	RSVP
)

func (f Flag) String() string {
	var parts []string
	if f&OOB != 0 {
		parts = append(parts, "OOB")
	}
	if f&DontBundle != 0 {
		parts = append(parts, "DONT_BUNDLE")
	}
	if f&NoFC != 0 {
		parts = append(parts, "NO_FC")
	}
	if f&RSVP != 0 {
		parts = append(parts, "RSVP")
	}
	return strings.Join(parts, "|")
}

// TransientFlag only exists on the local copy of a message; it is never
// put on the wire.
type TransientFlag uint16

const (
	// DontLoopback suppresses delivery of one's own multicast back to
	// oneself.
	DontLoopback TransientFlag = 1 << iota
)

// Message is a unit of group communication: an optional destination (nil
// means multicast to the whole group), a source set by the transport, an
// opaque payload, and flag sets. A message is built, stamped with a
// correlator header, and handed to the channel; after that it must be
// treated as immutable.
type Message struct {
	dest           Address
	src            Address
	payload        []byte
	flags          Flag
	transientFlags TransientFlag
	corrHdr        *Header
}

// NewMessage creates a message for dest (nil = multicast) carrying
// payload. The payload is referenced, not copied.
func NewMessage(dest Address, payload []byte) *Message {
	return &Message{dest: dest, payload: payload}
}

// Dest returns the destination address, nil for multicast.
func (m *Message) Dest() Address { return m.dest }

// Src returns the source address set by the transport.
func (m *Message) Src() Address { return m.src }

// SetSrc records the sender. Called by the channel, not by applications.
func (m *Message) SetSrc(src Address) *Message {
	m.src = src
	return m
}

// Payload returns the opaque payload bytes.
func (m *Message) Payload() []byte { return m.payload }

// SetFlag sets the given wire flags.
func (m *Message) SetFlag(f Flag) *Message {
	m.flags |= f
	return m
}

// IsFlagSet reports whether all bits of f are set.
func (m *Message) IsFlagSet(f Flag) bool { return m.flags&f == f }

// Flags returns the wire flag set.
func (m *Message) Flags() Flag { return m.flags }

// SetTransientFlag sets the given transient flags.
func (m *Message) SetTransientFlag(f TransientFlag) *Message {
	m.transientFlags |= f
	return m
}

// IsTransientFlagSet reports whether all bits of f are set.
func (m *Message) IsTransientFlagSet(f TransientFlag) bool {
	return m.transientFlags&f == f
}

// PutHeader attaches the correlator header.
func (m *Message) PutHeader(h *Header) *Message {
	m.corrHdr = h
	return m
}

// GetHeader returns the correlator header, or nil if none is attached.
func (m *Message) GetHeader() *Header { return m.corrHdr }

// copyForDest clones the message shell for a different destination. The
// payload is shared; flags are carried over, the header is not.
func (m *Message) copyForDest(dest Address) *Message {
	return &Message{
		dest:           dest,
		payload:        m.payload,
		flags:          m.flags,
		transientFlags: m.transientFlags,
	}
}

func (m *Message) String() string {
	dst := "<all>"
	if m.dest != nil {
		dst = m.dest.String()
	}
	return fmt.Sprintf("msg(dst=%s, %d bytes)", dst, len(m.payload))
}
