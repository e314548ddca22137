package groupcall

import (
	"fmt"
	"strings"
)

// View is an immutable snapshot of cluster membership: an ordered member
// list plus a monotonically increasing view id. A View is replaced
// wholesale on each membership change; nothing mutates one in place.
type View struct {
	id      uint64
	members []Address
	present map[Address]struct{}
}

// NewView builds a view from the given members, preserving their order and
// dropping duplicates.
func NewView(id uint64, members ...Address) *View {
	v := &View{
		id:      id,
		members: make([]Address, 0, len(members)),
		present: make(map[Address]struct{}, len(members)),
	}
	for _, m := range members {
		if m == nil {
			continue
		}
		if _, ok := v.present[m]; ok {
			continue
		}
		v.present[m] = struct{}{}
		v.members = append(v.members, m)
	}
	return v
}

// ID returns the view id.
func (v *View) ID() uint64 { return v.id }

// Members returns a copy of the member list in view order.
func (v *View) Members() []Address {
	cp := make([]Address, len(v.members))
	copy(cp, v.members)
	return cp
}

// Contains reports whether addr is a member of this view.
func (v *View) Contains(addr Address) bool {
	_, ok := v.present[addr]
	return ok
}

// Size returns the number of members.
func (v *View) Size() int { return len(v.members) }

func (v *View) String() string {
	parts := make([]string, len(v.members))
	for i, m := range v.members {
		parts[i] = m.String()
	}
	return fmt.Sprintf("[%d|%s]", v.id, strings.Join(parts, ","))
}
