package groupcall

import (
	"fmt"
	"strings"
)

// Rsp is the outcome slot for one expected responder. It starts as "not
// received" and moves to exactly one terminal state: a value, a remote
// failure, suspected, or unreachable. Mutation happens under the owning
// collector's lock; callers read a Rsp only after its request completed.
type Rsp struct {
	sender      Address
	value       []byte
	err         error
	received    bool
	suspected   bool
	unreachable bool
}

// Sender returns the responder this slot belongs to.
func (r *Rsp) Sender() Address { return r.sender }

// Value returns the reply payload, nil unless WasReceived and Err is nil.
func (r *Rsp) Value() []byte { return r.value }

// Err returns the remote failure carried in an exception response, or the
// local send failure for this destination.
func (r *Rsp) Err() error { return r.err }

// WasReceived reports whether a reply (value or failure) arrived.
func (r *Rsp) WasReceived() bool { return r.received }

// WasSuspected reports whether the responder was suspected before
// replying.
func (r *Rsp) WasSuspected() bool { return r.suspected }

// WasUnreachable reports whether the transport declared the responder
// unreachable.
func (r *Rsp) WasUnreachable() bool { return r.unreachable }

// terminal reports whether the slot left the initial not-received state.
func (r *Rsp) terminal() bool { return r.received || r.suspected || r.unreachable }

func (r *Rsp) String() string {
	switch {
	case r.received && r.err != nil:
		return fmt.Sprintf("%s: exception(%v)", r.sender, r.err)
	case r.received:
		return fmt.Sprintf("%s: value(%d bytes)", r.sender, len(r.value))
	case r.suspected:
		return fmt.Sprintf("%s: suspected", r.sender)
	case r.unreachable:
		return fmt.Sprintf("%s: unreachable", r.sender)
	default:
		return fmt.Sprintf("%s: not received", r.sender)
	}
}

// RspList holds one Rsp per expected destination, in send order.
type RspList struct {
	order []Address
	rsps  map[Address]*Rsp
}

func newRspList(expected []Address) *RspList {
	l := &RspList{
		order: make([]Address, 0, len(expected)),
		rsps:  make(map[Address]*Rsp, len(expected)),
	}
	for _, a := range expected {
		if _, ok := l.rsps[a]; ok {
			continue
		}
		l.order = append(l.order, a)
		l.rsps[a] = &Rsp{sender: a}
	}
	return l
}

// Get returns the slot for addr.
func (l *RspList) Get(addr Address) (*Rsp, bool) {
	r, ok := l.rsps[addr]
	return r, ok
}

// Addresses returns the expected destinations in send order.
func (l *RspList) Addresses() []Address {
	cp := make([]Address, len(l.order))
	copy(cp, l.order)
	return cp
}

// Rsps returns the slots in send order.
func (l *RspList) Rsps() []*Rsp {
	out := make([]*Rsp, len(l.order))
	for i, a := range l.order {
		out[i] = l.rsps[a]
	}
	return out
}

// Size returns the number of expected destinations.
func (l *RspList) Size() int { return len(l.order) }

// NumReceived counts slots holding a reply.
func (l *RspList) NumReceived() int {
	n := 0
	for _, r := range l.rsps {
		if r.received {
			n++
		}
	}
	return n
}

// NumSuspected counts slots marked suspected.
func (l *RspList) NumSuspected() int {
	n := 0
	for _, r := range l.rsps {
		if r.suspected {
			n++
		}
	}
	return n
}

// First returns the first received slot in send order, or nil.
func (l *RspList) First() *Rsp {
	for _, a := range l.order {
		if r := l.rsps[a]; r.received {
			return r
		}
	}
	return nil
}

func (l *RspList) String() string {
	parts := make([]string, len(l.order))
	for i, a := range l.order {
		parts[i] = l.rsps[a].String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
