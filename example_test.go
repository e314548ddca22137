package groupcall_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/ygrebnov/groupcall"
)

// memChannel is a minimal in-process Channel linking the members of an
// example cluster. Delivery is synchronous and reliable, which is all a
// dispatcher demo needs.
type memChannel struct {
	mu    sync.Mutex
	local groupcall.Address
	view  *groupcall.View
	peers map[groupcall.Address]*memChannel
	up    groupcall.UpHandler
}

func newMemCluster(members ...groupcall.Address) map[groupcall.Address]*memChannel {
	view := groupcall.NewView(1, members...)
	peers := make(map[groupcall.Address]*memChannel, len(members))
	for _, m := range members {
		peers[m] = &memChannel{local: m, view: view, peers: peers}
	}
	return peers
}

func (c *memChannel) Send(msg *groupcall.Message) error {
	msg.SetSrc(c.local)
	if dst := msg.Dest(); dst != nil {
		return c.peers[dst].deliver(msg)
	}
	for _, m := range c.view.Members() {
		if err := c.peers[m].deliver(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *memChannel) deliver(msg *groupcall.Message) error {
	c.mu.Lock()
	up := c.up
	c.mu.Unlock()
	if up != nil {
		up.Up(groupcall.Event{Type: groupcall.EventMsg, Msg: msg})
	}
	return nil
}

func (c *memChannel) View() *groupcall.View              { return c.view }
func (c *memChannel) LocalAddress() groupcall.Address    { return c.local }
func (c *memChannel) DiscardOwnMessages() bool           { return false }
func (c *memChannel) IsConnected() bool                  { return true }
func (c *memChannel) SetUpHandler(h groupcall.UpHandler) {
	c.mu.Lock()
	c.up = h
	c.mu.Unlock()
}

// Example runs a synchronous group call across a three-member in-process
// cluster: every member answers with its own name.
func Example() {
	a, b, c := groupcall.NodeAddress("A"), groupcall.NodeAddress("B"), groupcall.NodeAddress("C")
	cluster := newMemCluster(a, b, c)

	dispatchers := make([]*groupcall.Dispatcher, 0, 3)
	for _, member := range []groupcall.Address{a, b, c} {
		me := member
		d, err := groupcall.New(cluster[me], func(msg *groupcall.Message) ([]byte, error) {
			return []byte(fmt.Sprintf("%s saw %q", me, msg.Payload())), nil
		})
		if err != nil {
			panic(err)
		}
		defer d.Close()
		dispatchers = append(dispatchers, d)
	}

	list, err := dispatchers[0].Cast(nil, []byte("hello"), groupcall.Sync(5*time.Second))
	if err != nil {
		panic(err)
	}
	for _, rsp := range list.Rsps() {
		fmt.Printf("%s -> %s\n", rsp.Sender(), rsp.Value())
	}

	// Output:
	// A -> A saw "hello"
	// B -> B saw "hello"
	// C -> C saw "hello"
}

// Example_unicast performs a blocking unicast call.
func Example_unicast() {
	a, b := groupcall.NodeAddress("A"), groupcall.NodeAddress("B")
	cluster := newMemCluster(a, b)

	da, err := groupcall.New(cluster[a], nil)
	if err != nil {
		panic(err)
	}
	defer da.Close()

	db, err := groupcall.New(cluster[b], func(msg *groupcall.Message) ([]byte, error) {
		return append([]byte("pong:"), msg.Payload()...), nil
	})
	if err != nil {
		panic(err)
	}
	defer db.Close()

	value, err := da.Send(b, []byte("ping"), groupcall.Sync(5*time.Second))
	if err != nil {
		panic(err)
	}
	fmt.Println(string(value))

	// Output:
	// pong:ping
}
