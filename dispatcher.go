package groupcall

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher is the application-facing facade: it owns a correlator, the
// membership snapshot, and the call statistics, and it implements the
// channel's up-handler interface. One dispatcher serves concurrent callers
// and concurrent deliveries.
type Dispatcher struct {
	ch    Channel
	cfg   config
	log   logrus.FieldLogger
	corr  *correlator
	stats *RpcStats

	view  atomic.Pointer[View]
	local atomic.Value // addrBox

	listenersMu sync.Mutex
	listeners   atomic.Value // []ChannelListener, copy-on-write

	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a Dispatcher on ch. The handler receives incoming calls; it
// may be a RequestHandler, an AsyncRequestHandler, one of the accepted
// function signatures (see newRequestHandler), or nil for a pure client.
func New(ch Channel, handler any, opts ...Option) (*Dispatcher, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			panic(Namespace + ": nil dispatcher option")
		}
		opt(&cfg)
	}

	h, err := newRequestHandler(handler)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		ch:    ch,
		cfg:   cfg,
		log:   cfg.logger,
		stats: newRpcStats(cfg.provider, cfg.extendedStats),
	}
	d.corr = newCorrelator(ch, h, cfg)
	d.corr.onLate = d.stats.addLate
	d.listeners.Store([]ChannelListener(nil))

	if v := ch.View(); v != nil {
		d.view.Store(v)
	}
	if addr := ch.LocalAddress(); addr != nil {
		d.local.Store(addrBox{addr: addr})
	}
	ch.SetUpHandler(d)
	return d, nil
}

// Cast sends payload to dests (nil = the whole current view) and blocks
// until the request completes, returning one Rsp per expected
// destination. An empty filtered destination set returns an empty list
// without touching the network; GetNone returns the empty list right
// after the send.
func (d *Dispatcher) Cast(dests []Address, payload []byte, opts RequestOptions) (*RspList, error) {
	req, err := d.prepareCast(dests, payload, opts)
	if err != nil || req == nil {
		return newRspList(nil), err
	}
	start := time.Now()
	list, err := req.Execute(true)
	if err != nil {
		return nil, err
	}
	d.recordCallTiming(req, time.Since(start))
	return list, nil
}

// CastFuture is the non-blocking Cast: it sends and returns a future that
// completes under the same rules. A nil future with a nil error means the
// filtered destination set was empty or the call was GetNone.
func (d *Dispatcher) CastFuture(dests []Address, payload []byte, opts RequestOptions) (*GroupRequest, error) {
	req, err := d.prepareCast(dests, payload, opts)
	if err != nil || req == nil {
		return nil, err
	}
	if _, err = req.Execute(false); err != nil {
		return nil, err
	}
	if req.coll == nil {
		return nil, nil
	}
	return req, nil
}

// prepareCast runs the shared front half of a group call: state checks,
// destination filtering, stats, and (for GetNone) the send itself.
// A nil request with a nil error signals the caller to return the empty
// sentinel.
func (d *Dispatcher) prepareCast(dests []Address, payload []byte, opts RequestOptions) (*GroupRequest, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if !d.ch.IsConnected() {
		return nil, ErrNotConnected
	}
	opts = d.normalize(opts)

	filtered := d.computeDests(dests, opts)
	if len(filtered) == 0 {
		return nil, nil
	}

	kind := multicastKind
	if opts.Anycast {
		kind = anycastKind
	}
	d.stats.record(opts.Mode != GetNone, kind)

	req := newGroupRequest(d.corr, filtered, NewMessage(nil, payload), opts)
	if opts.Mode == GetNone {
		if _, err := req.Execute(false); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return req, nil
}

// Send sends payload to dest and blocks for the single reply. A missing
// reply within the deadline raises ErrTimeout, a membership verdict
// raises ErrSuspected, and a remote handler failure is returned as the
// carried error. GetNone returns nil immediately after the send.
func (d *Dispatcher) Send(dest Address, payload []byte, opts RequestOptions) ([]byte, error) {
	req, err := d.prepareSend(dest, payload, &opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	value, err := req.Execute(true)
	if err != nil {
		return nil, err
	}
	d.recordCallTiming(req.req, time.Since(start))
	return value, nil
}

// SendFuture is the non-blocking Send. For GetNone it performs the send
// and returns a nil future.
func (d *Dispatcher) SendFuture(dest Address, payload []byte, opts RequestOptions) (*UnicastRequest, error) {
	req, err := d.prepareSend(dest, payload, &opts)
	if err != nil {
		return nil, err
	}
	if _, err = req.Execute(false); err != nil {
		return nil, err
	}
	if req.req.coll == nil {
		return nil, nil
	}
	return req, nil
}

func (d *Dispatcher) prepareSend(dest Address, payload []byte, opts *RequestOptions) (*UnicastRequest, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if dest == nil {
		return nil, ErrNilDestination
	}
	if !d.ch.IsConnected() {
		return nil, ErrNotConnected
	}
	*opts = d.normalize(*opts)
	d.stats.record(opts.Mode != GetNone, unicastKind)
	return newUnicastRequest(d.corr, dest, NewMessage(dest, payload), *opts), nil
}

// Done tells the correlator the caller is no longer interested in request
// id; outstanding state is released and waiters wake with whatever
// arrived. Idempotent.
func (d *Dispatcher) Done(id uint64) { d.corr.done(id) }

// Close detaches the dispatcher from the channel and completes every
// outstanding request so no waiter leaks. Subsequent calls fail with
// ErrClosed. Close is safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.ch.SetUpHandler(nil)
		d.corr.stop()
	})
}

// View returns the current membership snapshot, nil before the first view.
func (d *Dispatcher) View() *View { return d.view.Load() }

// Stats returns the call counters.
func (d *Dispatcher) Stats() *RpcStats { return d.stats }

// ProbeHandler exposes the rpcs* diagnostics keys.
func (d *Dispatcher) ProbeHandler() ProbeHandler { return newRpcProbe(d.stats) }

// NumOutstanding reports the number of requests awaiting completion.
func (d *Dispatcher) NumOutstanding() int { return d.corr.numOutstanding() }

// AddChannelListener registers l for block/unblock notifications.
func (d *Dispatcher) AddChannelListener(l ChannelListener) {
	if l == nil {
		return
	}
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	old := d.listeners.Load().([]ChannelListener)
	next := make([]ChannelListener, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, l)
	d.listeners.Store(next)
}

// RemoveChannelListener removes a previously registered listener.
func (d *Dispatcher) RemoveChannelListener(l ChannelListener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	old := d.listeners.Load().([]ChannelListener)
	next := make([]ChannelListener, 0, len(old))
	for _, cur := range old {
		if cur != l {
			next = append(next, cur)
		}
	}
	d.listeners.Store(next)
}

// Up implements UpHandler. It runs on whatever threads the channel
// delivers on; everything it touches is safe for that.
func (d *Dispatcher) Up(ev Event) {
	switch ev.Type {
	case EventMsg:
		if ev.Msg == nil {
			return
		}
		if !d.corr.receiveMessage(ev.Msg) {
			d.forward(ev)
		}

	case EventViewChange:
		if ev.View == nil {
			return
		}
		// Membership first, collectors second: a request issued between
		// the two sees a consistent expected set.
		d.view.Store(ev.View)
		d.corr.receiveView(ev.View)
		d.forward(ev)

	case EventSuspect:
		if ev.Addr == nil {
			return
		}
		d.corr.receiveSuspect(ev.Addr)
		d.forward(ev)

	case EventSetLocalAddress:
		if ev.Addr != nil {
			d.local.Store(addrBox{addr: ev.Addr})
		}
		d.forward(ev)

	case EventBlock:
		d.notifyListeners(func(l ChannelListener) { l.Block() })
		d.forward(ev)

	case EventUnblock:
		d.notifyListeners(func(l ChannelListener) { l.Unblock() })
		d.forward(ev)

	default:
		// State transfer and anything newer belong to the application.
		d.forward(ev)
	}
}

// UpBatch implements UpHandler for batched delivery.
func (d *Dispatcher) UpBatch(batch MessageBatch) {
	rest := d.corr.receiveBatch(batch)
	if len(rest) > 0 && d.cfg.app != nil {
		d.cfg.app.UpBatch(rest)
	}
}

func (d *Dispatcher) forward(ev Event) {
	if d.cfg.app == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			d.log.Errorf("application up-handler panicked on %s: %v", ev.Type, p)
		}
	}()
	d.cfg.app.Up(ev)
}

func (d *Dispatcher) notifyListeners(fn func(ChannelListener)) {
	ls := d.listeners.Load().([]ChannelListener)
	for _, l := range ls {
		func() {
			defer func() {
				if p := recover(); p != nil {
					d.log.Errorf("channel listener panicked: %v", p)
				}
			}()
			fn(l)
		}()
	}
}

// addrBox keeps atomic.Value happy across differing Address
// implementations.
type addrBox struct {
	addr Address
}

// localAddr returns the local address, nil before it is known.
func (d *Dispatcher) localAddr() Address {
	if v := d.local.Load(); v != nil {
		return v.(addrBox).addr
	}
	return nil
}

// normalize fills in options a caller left unset.
func (d *Dispatcher) normalize(opts RequestOptions) RequestOptions {
	if opts.Mode == modeUnspecified {
		d.log.Warn("call issued without a response mode, defaulting to synchronous GET_ALL")
		opts.Mode = GetAll
	}
	return opts
}

// computeDests applies the destination filter: explicit destinations are
// intersected with the view (site addresses always pass) and
// deduplicated; a nil dests starts from the view snapshot; the local
// address is dropped when loopback is off; exclusions go last.
func (d *Dispatcher) computeDests(dests []Address, opts RequestOptions) []Address {
	view := d.view.Load()

	var out []Address
	if dests != nil {
		seen := make(map[Address]struct{}, len(dests))
		for _, a := range dests {
			if a == nil {
				continue
			}
			if _, dup := seen[a]; dup {
				continue
			}
			if _, site := a.(SiteAddress); !site {
				if view == nil || !view.Contains(a) {
					continue
				}
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	} else if view != nil {
		out = view.Members()
	}

	if d.ch.DiscardOwnMessages() || opts.TransientFlags&DontLoopback != 0 {
		if local := d.localAddr(); local != nil {
			out = removeAddress(out, local)
		}
	}
	for _, excl := range opts.Exclusions {
		if excl != nil {
			out = removeAddress(out, excl)
		}
	}
	return out
}

func removeAddress(list []Address, addr Address) []Address {
	out := list[:0]
	for _, a := range list {
		if a != addr {
			out = append(out, a)
		}
	}
	return out
}

// recordCallTiming feeds extended per-destination stats for a completed
// synchronous call.
func (d *Dispatcher) recordCallTiming(req *GroupRequest, elapsed time.Duration) {
	if !d.stats.ExtendedEnabled() || req.coll == nil {
		return
	}
	for _, addr := range req.coll.Results().Addresses() {
		d.stats.recordTiming(addr, elapsed)
	}
}
