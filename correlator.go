package groupcall

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/groupcall/metrics"
	"github.com/ygrebnov/groupcall/pool"
)

// outstandingTable maps request id -> collector for every request that has
// been sent but not completed. A collector is in the table iff it has not
// completed.
type outstandingTable struct {
	mu sync.Mutex
	m  map[uint64]*responseCollector
}

func newOutstandingTable() *outstandingTable {
	return &outstandingTable{m: make(map[uint64]*responseCollector)}
}

func (t *outstandingTable) add(id uint64, c *responseCollector) {
	t.mu.Lock()
	t.m[id] = c
	t.mu.Unlock()
}

func (t *outstandingTable) get(id uint64) (*responseCollector, bool) {
	t.mu.Lock()
	c, ok := t.m[id]
	t.mu.Unlock()
	return c, ok
}

func (t *outstandingTable) remove(id uint64) {
	t.mu.Lock()
	delete(t.m, id)
	t.mu.Unlock()
}

// snapshot returns the live collectors. View and suspect events iterate
// the snapshot outside the table lock, so a collector completing
// concurrently is fine: its own mutex makes the update a no-op.
func (t *outstandingTable) snapshot() []*responseCollector {
	t.mu.Lock()
	out := make([]*responseCollector, 0, len(t.m))
	for _, c := range t.m {
		out = append(out, c)
	}
	t.mu.Unlock()
	return out
}

func (t *outstandingTable) size() int {
	t.mu.Lock()
	n := len(t.m)
	t.mu.Unlock()
	return n
}

// correlator matches responses to outstanding requests. It stamps every
// outgoing request with a monotonically increasing id, keeps the
// outstanding table, routes incoming REQ/RSP/EXCEPTION_RSP messages, and
// feeds view and suspect events into live collectors.
type correlator struct {
	corrID         uint16
	ch             Channel
	handler        requestHandler
	log            logrus.FieldLogger
	wrapExceptions bool
	asyncDispatch  bool
	runners        pool.Pool

	nextID atomic.Uint64
	table  *outstandingTable
	closed atomic.Bool

	inflight metrics.UpDownCounter

	// onLate is called for every response that arrived after its request
	// completed (or for an id that is no longer outstanding), and for a
	// response to a slot that was already settled.
	onLate func()
}

func newCorrelator(ch Channel, handler requestHandler, cfg config) *correlator {
	c := &correlator{
		corrID:         cfg.corrID,
		ch:             ch,
		handler:        handler,
		log:            cfg.logger.WithField("component", "correlator"),
		wrapExceptions: cfg.wrapExceptions,
		asyncDispatch:  cfg.asyncDispatch,
		table:          newOutstandingTable(),
		inflight: cfg.provider.UpDownCounter(
			"groupcall_requests_inflight",
			metrics.WithDescription("requests sent and not yet completed"),
		),
		onLate: func() {},
	}
	newRunner := func() interface{} { return &runner{log: c.log} }
	if cfg.maxHandlers > 0 {
		c.runners = pool.NewFixed(cfg.maxHandlers, newRunner)
	} else {
		c.runners = pool.NewDynamic(newRunner)
	}
	return c
}

// sendRequest registers coll (if non-nil), stamps msg with a fresh request
// header, and writes it down the channel: one multicast when dests has
// more than one member and anycasting is off, otherwise one unicast per
// destination, or a single anycast-address message. A send failure
// completes the collector with the failure in every open slot and is
// returned wrapped in ErrSendFailed.
func (c *correlator) sendRequest(dests []Address, msg *Message, coll *responseCollector, opts RequestOptions) (uint64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	id := c.nextID.Add(1)
	rspExpected := opts.Mode != GetNone && coll != nil

	if coll != nil {
		coll.id = id
		coll.onDone = func(doneID uint64) {
			c.table.remove(doneID)
			c.inflight.Add(-1)
		}
		c.table.add(id, coll)
		c.inflight.Add(1)
		// The deadline clock starts before the channel send.
		coll.armDeadline(opts.Timeout)
	}

	hdr := &Header{RequestID: id, Kind: KindRequest, RspExpected: rspExpected, CorrID: c.corrID}

	err := c.writeRequest(dests, msg, hdr, opts)
	if err != nil {
		wrapped := newCallTaggedError(fmt.Errorf("%w: %v", ErrSendFailed, err), nil, id)
		if coll != nil {
			coll.failRemaining(wrapped)
		}
		return id, wrapped
	}
	return id, nil
}

func (c *correlator) writeRequest(dests []Address, msg *Message, hdr *Header, opts RequestOptions) error {
	switch {
	case len(dests) > 1 && !opts.Anycast:
		return c.ch.Send(msg.copyForDest(nil).SetFlag(opts.Flags).SetTransientFlag(opts.TransientFlags).PutHeader(hdr))

	case opts.UseAnycastAddresses:
		dst := NewAnycastAddress(dests...)
		return c.ch.Send(msg.copyForDest(dst).SetFlag(opts.Flags).SetTransientFlag(opts.TransientFlags).PutHeader(hdr))

	default:
		for _, dest := range dests {
			if err := c.ch.Send(msg.copyForDest(dest).SetFlag(opts.Flags).SetTransientFlag(opts.TransientFlags).PutHeader(hdr)); err != nil {
				return err
			}
		}
		return nil
	}
}

// done tells the correlator the caller is no longer interested in id.
// The collector completes with whatever responses have arrived. Calling
// done for an unknown or already-completed id is a no-op.
func (c *correlator) done(id uint64) {
	if coll, ok := c.table.get(id); ok {
		coll.cancel()
	}
}

// receiveMessage routes one incoming message. It returns false when the
// message does not carry this correlator's header, so the caller can pass
// it on to the application.
func (c *correlator) receiveMessage(msg *Message) bool {
	hdr := msg.GetHeader()
	if hdr == nil || hdr.CorrID != c.corrID {
		return false
	}

	switch hdr.Kind {
	case KindRequest:
		c.handleRequest(msg, hdr)
	case KindResponse:
		c.routeResponse(hdr.RequestID, msg.Src(), msg.Payload(), nil)
	case KindExceptionResponse:
		err := newRemoteError(string(msg.Payload()), msg.Src(), hdr.RequestID)
		c.routeResponse(hdr.RequestID, msg.Src(), nil, err)
	default:
		c.log.WithField("header", hdr.String()).Warn("dropping message with unknown header kind")
	}
	return true
}

// receiveBatch routes a batch, returning the messages that were not for
// this correlator.
func (c *correlator) receiveBatch(batch MessageBatch) MessageBatch {
	var rest MessageBatch
	for _, msg := range batch {
		if msg == nil {
			continue
		}
		if !c.receiveMessage(msg) {
			rest = append(rest, msg)
		}
	}
	return rest
}

func (c *correlator) routeResponse(id uint64, sender Address, payload []byte, rspErr error) {
	coll, ok := c.table.get(id)
	if !ok {
		// Either the request completed (deadline, early mode, done()) or
		// it never existed here. Both are discarded.
		c.onLate()
		c.log.WithFields(logrus.Fields{"id": id, "sender": sender}).
			Debug("discarding response for non-outstanding request")
		return
	}
	switch coll.receive(sender, payload, rspErr) {
	case rcvLate:
		c.onLate()
		c.log.WithFields(logrus.Fields{"id": id, "sender": sender}).
			Debug("discarding late or duplicate response")
	case rcvUnknown:
		c.log.WithFields(logrus.Fields{"id": id, "sender": sender}).
			Debug("discarding response from unexpected sender")
	case rcvRejected:
		c.log.WithFields(logrus.Fields{"id": id, "sender": sender}).
			Debug("response rejected by filter")
	}
}

// receiveView feeds a new view into every live collector. The caller must
// have installed the view in the membership snapshot first, so requests
// racing with the change see a consistent expected set.
func (c *correlator) receiveView(v *View) {
	for _, coll := range c.table.snapshot() {
		coll.viewChange(v)
	}
}

// receiveSuspect marks addr suspected in every live collector.
func (c *correlator) receiveSuspect(addr Address) {
	for _, coll := range c.table.snapshot() {
		coll.suspect(addr)
	}
}

func (c *correlator) handleRequest(msg *Message, hdr *Header) {
	r := &replySender{
		corr:     c,
		dest:     msg.Src(),
		id:       hdr.RequestID,
		corrID:   hdr.CorrID,
		expected: hdr.RspExpected,
		reqFlags: msg.Flags(),
	}
	if c.asyncDispatch {
		go func() {
			rn := c.runners.Get().(*runner)
			rn.run(msg, r, c.handler)
			c.runners.Put(rn)
		}()
		return
	}
	rn := c.runners.Get().(*runner)
	rn.run(msg, r, c.handler)
	c.runners.Put(rn)
}

// stop completes every outstanding request; later sendRequest calls fail
// with ErrClosed. It does not detach the correlator from incoming
// messages: receiveMessage keeps routing whatever it is handed.
func (c *correlator) stop() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	for _, coll := range c.table.snapshot() {
		coll.cancel()
	}
}

// numOutstanding reports the number of live collectors.
func (c *correlator) numOutstanding() int { return c.table.size() }

// replySender ships the reply for one incoming request. It is handed to
// handlers as a Responder; the first Reply wins.
type replySender struct {
	corr     *correlator
	dest     Address
	id       uint64
	corrID   uint16
	expected bool
	reqFlags Flag
	replied  atomic.Bool
}

// Reply sends the response back on the request id. For requests whose
// sender expects no response, and for second and later calls, it is a
// no-op.
func (r *replySender) Reply(value []byte, err error) error {
	if !r.expected {
		return nil
	}
	if !r.replied.CompareAndSwap(false, true) {
		return nil
	}

	kind := KindResponse
	payload := value
	if err != nil && r.corr.wrapExceptions {
		kind = KindExceptionResponse
		payload = []byte(err.Error())
	}

	hdr := &Header{RequestID: r.id, Kind: kind, RspExpected: false, CorrID: r.corrID}
	rsp := NewMessage(r.dest, payload).
		SetFlag(r.reqFlags & (OOB | DontBundle | NoFC)).
		PutHeader(hdr)

	if sendErr := r.corr.ch.Send(rsp); sendErr != nil {
		r.corr.log.WithFields(logrus.Fields{"id": r.id, "dest": r.dest}).
			WithError(sendErr).Warn("failed to send response")
		return fmt.Errorf("%w: %v", ErrSendFailed, sendErr)
	}
	return nil
}
