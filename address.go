package groupcall

import (
	"fmt"
	"strings"
)

// Address identifies a cluster member. Implementations must have a
// comparable dynamic type: addresses are used as map keys and compared
// with ==.
type Address interface {
	fmt.Stringer
}

// SiteAddress marks an address that lives in a remote site. Site addresses
// are routed by a relay rather than the local group, so destination
// filtering keeps them even when they are absent from the current view,
// and view changes never mark them suspected.
type SiteAddress interface {
	Address
	Site() string
}

// NodeAddress is a plain string-backed member address.
type NodeAddress string

func (a NodeAddress) String() string { return string(a) }

// SiteMaster addresses the relay coordinator of a remote site.
type SiteMaster struct {
	SiteName string
}

func (s SiteMaster) String() string { return "SiteMaster(" + s.SiteName + ")" }

// Site implements SiteAddress.
func (s SiteMaster) Site() string { return s.SiteName }

// AnycastAddress carries an explicit list of targets in a single message,
// used when RequestOptions.UseAnycastAddresses is set. It is a transport
// destination, never a member identity: it must not appear in views or in
// a collector's expected set.
type AnycastAddress struct {
	members []Address
}

// NewAnycastAddress copies members into a new anycast destination.
func NewAnycastAddress(members ...Address) *AnycastAddress {
	cp := make([]Address, len(members))
	copy(cp, members)
	return &AnycastAddress{members: cp}
}

// Members returns the target list in insertion order.
func (a *AnycastAddress) Members() []Address {
	cp := make([]Address, len(a.members))
	copy(cp, a.members)
	return cp
}

func (a *AnycastAddress) String() string {
	parts := make([]string, len(a.members))
	for i, m := range a.members {
		parts[i] = m.String()
	}
	return "Anycast(" + strings.Join(parts, ",") + ")"
}
