package groupcall

// closedChan is a reusable already-closed completion signal for requests
// that never wait (GetNone, which has no collector).
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// GroupRequest is one multicast/anycast call: it owns the collector,
// issues the send, and doubles as the future handed to non-blocking
// callers.
type GroupRequest struct {
	corr  *correlator
	dests []Address
	msg   *Message
	opts  RequestOptions
	coll  *responseCollector // nil for GetNone
	id    uint64
}

func newGroupRequest(corr *correlator, dests []Address, msg *Message, opts RequestOptions) *GroupRequest {
	r := &GroupRequest{corr: corr, dests: dests, msg: msg, opts: opts}
	if opts.Mode != GetNone {
		r.coll = newResponseCollector(opts.Mode, opts.Filter, dests)
	}
	return r
}

// Execute sends the request. With blockForResults it waits for the
// completion signal (predicate, deadline, suspicion, view change, or
// Cancel) and returns the final response list; otherwise it returns
// immediately and the caller collects results through the future side of
// this request.
func (r *GroupRequest) Execute(blockForResults bool) (*RspList, error) {
	id, err := r.corr.sendRequest(r.dests, r.msg, r.coll, r.opts)
	r.id = id
	if err != nil {
		return nil, err
	}
	if r.coll == nil {
		return newRspList(nil), nil
	}
	if !blockForResults {
		return nil, nil
	}
	return r.Get()
}

// RequestID returns the id the correlator assigned, 0 before Execute.
func (r *GroupRequest) RequestID() uint64 { return r.id }

// Done returns the completion signal.
func (r *GroupRequest) Done() <-chan struct{} {
	if r.coll == nil {
		return closedChan
	}
	return r.coll.Done()
}

// Get blocks until the request completes and returns the response list.
// A partial list (deadline, cancel) is a normal return, not an error.
func (r *GroupRequest) Get() (*RspList, error) {
	if r.coll == nil {
		return newRspList(nil), nil
	}
	<-r.coll.Done()
	return r.coll.Results(), nil
}

// GetNow returns the response list if the request already completed, def
// otherwise.
func (r *GroupRequest) GetNow(def *RspList) *RspList {
	if r.coll == nil {
		return newRspList(nil)
	}
	if r.coll.isComplete() {
		return r.coll.Results()
	}
	return def
}

// Cancel releases the request: the collector completes with whatever has
// arrived and leaves the outstanding table. Safe to call repeatedly.
func (r *GroupRequest) Cancel() {
	if r.coll != nil {
		r.corr.done(r.id)
	}
}

// UnicastRequest is a request with exactly one expected responder. Its
// result collapses to a single value: a missing reply surfaces as
// ErrTimeout, a membership verdict as ErrSuspected, and a remote failure
// as the carried error.
type UnicastRequest struct {
	req  *GroupRequest
	dest Address
}

func newUnicastRequest(corr *correlator, dest Address, msg *Message, opts RequestOptions) *UnicastRequest {
	return &UnicastRequest{
		req:  newGroupRequest(corr, []Address{dest}, msg, opts),
		dest: dest,
	}
}

// Execute sends the request; with blockForResults it waits and resolves
// the single response.
func (r *UnicastRequest) Execute(blockForResults bool) ([]byte, error) {
	if _, err := r.req.Execute(false); err != nil {
		return nil, err
	}
	if r.req.coll == nil || !blockForResults {
		return nil, nil
	}
	return r.Get()
}

// Done returns the completion signal.
func (r *UnicastRequest) Done() <-chan struct{} { return r.req.Done() }

// RequestID returns the id the correlator assigned, 0 before Execute.
func (r *UnicastRequest) RequestID() uint64 { return r.req.RequestID() }

// Get blocks until completion and resolves the single response.
func (r *UnicastRequest) Get() ([]byte, error) {
	list, err := r.req.Get()
	if err != nil {
		return nil, err
	}
	rsp, ok := list.Get(r.dest)
	if !ok {
		// GetNone: there is nothing to resolve.
		return nil, nil
	}
	switch {
	case rsp.WasReceived() && rsp.Err() != nil:
		return nil, rsp.Err()
	case rsp.WasReceived():
		return rsp.Value(), nil
	case rsp.WasSuspected(), rsp.WasUnreachable():
		return nil, newCallTaggedError(ErrSuspected, r.dest, r.req.id)
	default:
		return nil, newCallTaggedError(ErrTimeout, r.dest, r.req.id)
	}
}

// Cancel releases the request.
func (r *UnicastRequest) Cancel() { r.req.Cancel() }
