package groupcall

import (
	"sync"
	"time"
)

// receiveOutcome classifies what recording a response did to a collector.
type receiveOutcome int

const (
	// rcvRecorded: response stored, request still open.
	rcvRecorded receiveOutcome = iota
	// rcvCompleted: response stored and it completed the request.
	rcvCompleted
	// rcvRejected: the response filter refused the response.
	rcvRejected
	// rcvLate: the request had already completed, or the sender's slot
	// was already settled (a duplicate or post-suspicion response).
	rcvLate
	// rcvUnknown: the sender is not in the expected set.
	rcvUnknown
)

// responseCollector is the per-request bookkeeping: the ordered expected
// set, the completion predicate for the request's mode, the optional
// response filter, and a one-shot completion signal. All mutation happens
// under mu; the done channel is closed exactly once, and the RspList is
// never touched after that.
type responseCollector struct {
	id     uint64
	mode   ResponseMode
	filter RspFilter

	mu          sync.Mutex
	rsps        *RspList
	expected    int // initial expected count, fixed for majority math
	numReceived int
	numTerminal int
	completed   bool
	done        chan struct{}
	timer       *time.Timer

	// onDone is invoked exactly once, after the done channel is closed
	// and outside mu. The correlator uses it to drop the collector from
	// the outstanding table.
	onDone func(id uint64)
}

func newResponseCollector(mode ResponseMode, filter RspFilter, expected []Address) *responseCollector {
	list := newRspList(expected)
	return &responseCollector{
		mode:     mode,
		filter:   filter,
		rsps:     list,
		expected: list.Size(),
		done:     make(chan struct{}),
	}
}

// Done returns the one-shot completion signal.
func (c *responseCollector) Done() <-chan struct{} { return c.done }

// Results returns the response list. Safe to read once Done is closed.
func (c *responseCollector) Results() *RspList { return c.rsps }

// armDeadline schedules automatic completion after d. The collector owns
// the deadline so futures complete even with no blocked waiter.
func (c *responseCollector) armDeadline(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	if !c.completed {
		c.timer = time.AfterFunc(d, c.cancel)
	}
	c.mu.Unlock()
}

// receive records a response (value or remote failure) from sender.
func (c *responseCollector) receive(sender Address, value []byte, err error) receiveOutcome {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return rcvLate
	}
	r, ok := c.rsps.Get(sender)
	if !ok {
		c.mu.Unlock()
		return rcvUnknown
	}
	if r.terminal() {
		c.mu.Unlock()
		return rcvLate
	}
	if c.filter != nil && !c.filter.IsAcceptable(value, sender) {
		// Rejected responses leave the slot not-received; the filter may
		// still close the request.
		if !c.filter.NeedMoreResponses() {
			fired := c.completeLocked()
			c.mu.Unlock()
			c.fireOnDone(fired)
			return rcvRejected
		}
		c.mu.Unlock()
		return rcvRejected
	}

	r.received = true
	r.value = value
	r.err = err
	c.numReceived++
	c.numTerminal++

	earlyClose := c.filter != nil && !c.filter.NeedMoreResponses()
	if earlyClose || c.satisfiedLocked() {
		fired := c.completeLocked()
		c.mu.Unlock()
		c.fireOnDone(fired)
		return rcvCompleted
	}
	c.mu.Unlock()
	return rcvRecorded
}

// suspect marks sender's slot suspected, if it is still open. Idempotent.
func (c *responseCollector) suspect(sender Address) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	r, ok := c.rsps.Get(sender)
	if !ok || r.terminal() {
		c.mu.Unlock()
		return
	}
	r.suspected = true
	c.numTerminal++
	if c.satisfiedLocked() {
		fired := c.completeLocked()
		c.mu.Unlock()
		c.fireOnDone(fired)
		return
	}
	c.mu.Unlock()
}

// viewChange marks every open slot whose member left the view as
// suspected. Site addresses are exempt: they are reachable through the
// relay regardless of the local view.
func (c *responseCollector) viewChange(v *View) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	for _, addr := range c.rsps.order {
		if _, site := addr.(SiteAddress); site {
			continue
		}
		r := c.rsps.rsps[addr]
		if r.terminal() || v.Contains(addr) {
			continue
		}
		r.suspected = true
		c.numTerminal++
	}
	if c.satisfiedLocked() {
		fired := c.completeLocked()
		c.mu.Unlock()
		c.fireOnDone(fired)
		return
	}
	c.mu.Unlock()
}

// failRemaining writes err into every open slot and completes. Used when
// the transport rejects the request partway through a fan-out.
func (c *responseCollector) failRemaining(err error) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	for _, r := range c.rsps.rsps {
		if r.terminal() {
			continue
		}
		r.received = true
		r.err = err
		c.numReceived++
		c.numTerminal++
	}
	fired := c.completeLocked()
	c.mu.Unlock()
	c.fireOnDone(fired)
}

// cancel completes the collector with whatever has arrived. Used for
// deadline expiry and explicit Done(id). Idempotent.
func (c *responseCollector) cancel() {
	c.mu.Lock()
	fired := c.completeLocked()
	c.mu.Unlock()
	c.fireOnDone(fired)
}

// satisfiedLocked evaluates the completion predicate. Caller holds mu.
func (c *responseCollector) satisfiedLocked() bool {
	// Nothing left that could still respond.
	if c.numTerminal >= c.rsps.Size() {
		return true
	}
	switch c.mode {
	case GetNone:
		return true
	case GetFirst:
		return c.numReceived >= 1
	case GetMajority:
		return c.numTerminal >= c.expected/2+1
	case GetAll:
		return c.numTerminal >= c.rsps.Size()
	default:
		return false
	}
}

// completeLocked transitions to the terminal state. Caller holds mu.
// Returns true on the Pending -> Complete transition, false if already
// complete.
func (c *responseCollector) completeLocked() bool {
	if c.completed {
		return false
	}
	c.completed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.done)
	return true
}

func (c *responseCollector) fireOnDone(fired bool) {
	if fired && c.onDone != nil {
		c.onDone(c.id)
	}
}

// isComplete reports whether the collector reached its terminal state.
func (c *responseCollector) isComplete() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
