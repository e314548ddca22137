package groupcall

import (
	"sync"
)

// mockChannel is an in-memory Channel for tests: it records every send,
// can fail sends on demand, and lets tests push events and messages up
// the installed handler.
type mockChannel struct {
	mu         sync.Mutex
	local      Address
	view       *View
	connected  bool
	discardOwn bool
	up         UpHandler
	sent       []*Message
	sendErr    error
	onSend     func(*Message) error
}

func newMockChannel(local Address, members ...Address) *mockChannel {
	return &mockChannel{
		local:     local,
		view:      NewView(1, members...),
		connected: true,
	}
}

func (c *mockChannel) Send(msg *Message) error {
	c.mu.Lock()
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, msg)
	hook := c.onSend
	c.mu.Unlock()
	if hook != nil {
		return hook(msg)
	}
	return nil
}

func (c *mockChannel) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *mockChannel) LocalAddress() Address { return c.local }

func (c *mockChannel) DiscardOwnMessages() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discardOwn
}

func (c *mockChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *mockChannel) SetUpHandler(h UpHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = h
}

func (c *mockChannel) handler() UpHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *mockChannel) sentMessages() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *mockChannel) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// installView replaces the channel view and announces it up the stack.
func (c *mockChannel) installView(v *View) {
	c.mu.Lock()
	c.view = v
	up := c.up
	c.mu.Unlock()
	if up != nil {
		up.Up(Event{Type: EventViewChange, View: v})
	}
}

func (c *mockChannel) suspect(addr Address) {
	if up := c.handler(); up != nil {
		up.Up(Event{Type: EventSuspect, Addr: addr})
	}
}

func (c *mockChannel) deliver(msg *Message) {
	if up := c.handler(); up != nil {
		up.Up(Event{Type: EventMsg, Msg: msg})
	}
}

// respond synthesizes the RSP a member would send for the given request
// message and delivers it up.
func (c *mockChannel) respond(req *Message, sender Address, value []byte) {
	hdr := req.GetHeader()
	rsp := NewMessage(c.local, value).
		SetSrc(sender).
		PutHeader(&Header{RequestID: hdr.RequestID, Kind: KindResponse, CorrID: hdr.CorrID})
	c.deliver(rsp)
}

// respondErr synthesizes an EXCEPTION_RSP.
func (c *mockChannel) respondErr(req *Message, sender Address, text string) {
	hdr := req.GetHeader()
	rsp := NewMessage(c.local, []byte(text)).
		SetSrc(sender).
		PutHeader(&Header{RequestID: hdr.RequestID, Kind: KindExceptionResponse, CorrID: hdr.CorrID})
	c.deliver(rsp)
}

// recordingHandler captures events the dispatcher forwards to the app.
type recordingHandler struct {
	mu      sync.Mutex
	events  []Event
	batches []MessageBatch
}

func (h *recordingHandler) Up(ev Event) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *recordingHandler) UpBatch(batch MessageBatch) {
	h.mu.Lock()
	h.batches = append(h.batches, batch)
	h.mu.Unlock()
}

func (h *recordingHandler) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}
