// Package groupcall turns one-way group messaging into request/response
// interactions with a dynamically-changing set of peers. It sits above a
// virtual-synchrony channel (anything implementing Channel) and below an
// application, and provides unicast calls, multicast calls, and anycast
// fan-out, in blocking and future-returning variants.
//
// Construction
//   - New(ch, handler, opts ...Option): creates a Dispatcher bound to a
//     channel. The handler receives incoming calls; it may be a
//     RequestHandler, an AsyncRequestHandler, or a plain function with one
//     of the accepted signatures (see New).
//
// Defaults
// Unless overridden, a new Dispatcher uses:
//   - Logger: logrus standard logger, tagged with component=dispatcher
//   - Metrics: metrics.NoopProvider (no instrumentation)
//   - Handler pool: dynamic (one runner per concurrent request)
//   - Dispatch mode: synchronous (handlers run on the delivery thread)
//   - Correlator id: 0
//
// Requests
// A call is parameterized by RequestOptions: the response mode decides when
// a request is complete (GetAll, GetMajority, GetFirst, GetNone), Timeout
// bounds the wait (0 waits indefinitely), and the anycast switches select
// fan-out behavior for a destination subset. Results come back as an
// RspList: one Rsp per expected destination, in send order, each holding a
// value, a remote failure, or a membership verdict (suspected, unreachable,
// not received).
//
// Membership
// The dispatcher installs itself as the channel's up-handler. View changes
// replace the membership snapshot atomically and mark missing members as
// suspected in every outstanding request; SUSPECT events do the same for a
// single member. Both can complete requests early, so callers never block
// on a peer that is gone.
package groupcall
