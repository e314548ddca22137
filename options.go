package groupcall

import (
	"time"
)

// ResponseMode decides when a request is considered complete.
type ResponseMode int

const (
	// modeUnspecified marks options that never picked a mode; the facade
	// normalizes it to GetAll with a warning.
	modeUnspecified ResponseMode = iota
	// GetNone sends without waiting for any response.
	GetNone
	// GetFirst completes on the first value or remote failure.
	GetFirst
	// GetMajority completes once floor(N/2)+1 of the initially expected
	// slots left the not-received state.
	GetMajority
	// GetAll completes once every expected slot left the not-received
	// state.
	GetAll
)

func (m ResponseMode) String() string {
	switch m {
	case GetNone:
		return "GET_NONE"
	case GetFirst:
		return "GET_FIRST"
	case GetMajority:
		return "GET_MAJORITY"
	case GetAll:
		return "GET_ALL"
	default:
		return "mode(?)"
	}
}

// RspFilter lets a caller accept or reject individual responses and close
// a request early. Implementations must be safe for concurrent use: the
// correlator calls them from delivery threads.
type RspFilter interface {
	// IsAcceptable reports whether the response from sender should be
	// recorded. A rejected response leaves the slot not-received.
	IsAcceptable(response []byte, sender Address) bool
	// NeedMoreResponses reports whether the request should stay open.
	// Returning false completes the request even if the response mode's
	// predicate is not yet met.
	NeedMoreResponses() bool
}

// RequestOptions parameterizes a single call. Build one with Sync, Async,
// or NewRequestOptions; a zero value never picked a mode and is treated as
// a synchronous call (with a warning logged).
type RequestOptions struct {
	// Mode selects the completion predicate.
	Mode ResponseMode

	// Timeout bounds the wait for completion. Zero waits indefinitely.
	Timeout time.Duration

	// Anycast sends one unicast per destination instead of a multicast.
	Anycast bool

	// UseAnycastAddresses sends a single message addressed to an
	// AnycastAddress carrying the destination list. With more than one
	// destination it takes effect only when Anycast is set as well;
	// WithAnycastAddresses sets both.
	UseAnycastAddresses bool

	// Filter, when non-nil, vets every incoming response.
	Filter RspFilter

	// Flags are stamped onto outgoing messages.
	Flags Flag

	// TransientFlags are stamped onto outgoing messages (local only).
	TransientFlags TransientFlag

	// Exclusions are removed from the destination set before sending.
	Exclusions []Address
}

// Sync returns blocking-call options: wait for all responses, bounded by
// timeout (0 = wait indefinitely).
func Sync(timeout time.Duration) RequestOptions {
	return RequestOptions{Mode: GetAll, Timeout: timeout}
}

// Async returns fire-and-forget options.
func Async() RequestOptions {
	return RequestOptions{Mode: GetNone}
}

// CallOption mutates RequestOptions. Use NewRequestOptions or apply
// options on top of Sync/Async via Apply.
type CallOption func(*RequestOptions)

// NewRequestOptions assembles options starting from the synchronous
// defaults (GetAll, no timeout).
func NewRequestOptions(opts ...CallOption) RequestOptions {
	ro := Sync(0)
	return ro.Apply(opts...)
}

// Apply returns a copy of ro with opts applied.
func (ro RequestOptions) Apply(opts ...CallOption) RequestOptions {
	for _, opt := range opts {
		if opt == nil {
			panic(Namespace + ": nil call option")
		}
		opt(&ro)
	}
	return ro
}

// WithMode selects the completion predicate.
func WithMode(m ResponseMode) CallOption {
	return func(ro *RequestOptions) { ro.Mode = m }
}

// WithTimeout bounds the wait for completion (0 = wait indefinitely).
func WithTimeout(d time.Duration) CallOption {
	return func(ro *RequestOptions) { ro.Timeout = d }
}

// WithAnycast fans a group call out as one unicast per destination.
func WithAnycast() CallOption {
	return func(ro *RequestOptions) { ro.Anycast = true }
}

// WithAnycastAddresses sends one message carrying the destination list
// instead of N unicasts. Implies WithAnycast.
func WithAnycastAddresses() CallOption {
	return func(ro *RequestOptions) {
		ro.Anycast = true
		ro.UseAnycastAddresses = true
	}
}

// WithResponseFilter installs a response filter.
func WithResponseFilter(f RspFilter) CallOption {
	return func(ro *RequestOptions) { ro.Filter = f }
}

// WithFlags adds wire flags to outgoing messages.
func WithFlags(f Flag) CallOption {
	return func(ro *RequestOptions) { ro.Flags |= f }
}

// WithTransientFlags adds transient flags to outgoing messages.
func WithTransientFlags(f TransientFlag) CallOption {
	return func(ro *RequestOptions) { ro.TransientFlags |= f }
}

// WithoutLoopback excludes the local member from the destination set.
func WithoutLoopback() CallOption {
	return func(ro *RequestOptions) { ro.TransientFlags |= DontLoopback }
}

// WithExclusions removes the given members from the destination set.
func WithExclusions(addrs ...Address) CallOption {
	return func(ro *RequestOptions) {
		ro.Exclusions = append(ro.Exclusions, addrs...)
	}
}
