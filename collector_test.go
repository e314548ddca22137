package groupcall

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireDone(t *testing.T, c *responseCollector) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("collector did not complete")
	}
}

func requireOpen(t *testing.T, c *responseCollector) {
	t.Helper()
	select {
	case <-c.Done():
		t.Fatal("collector completed prematurely")
	default:
	}
}

func TestCollector_GetAll_CompletesWhenEverySlotTerminal(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB, addrC})

	require.Equal(t, rcvRecorded, c.receive(addrA, []byte{1}, nil))
	requireOpen(t, c)
	require.Equal(t, rcvRecorded, c.receive(addrB, []byte{1}, nil))
	requireOpen(t, c)
	require.Equal(t, rcvCompleted, c.receive(addrC, []byte{1}, nil))
	requireDone(t, c)

	require.Equal(t, 3, c.Results().NumReceived())
}

func TestCollector_GetMajority(t *testing.T) {
	// 5 expected: majority is 3.
	c := newResponseCollector(GetMajority, nil, []Address{addrA, addrB, addrC, addrD, addrE})

	c.receive(addrA, nil, nil)
	c.receive(addrB, nil, nil)
	requireOpen(t, c)
	require.Equal(t, rcvCompleted, c.receive(addrC, nil, nil))
	requireDone(t, c)

	list := c.Results()
	require.Equal(t, 3, list.NumReceived())
	d, _ := list.Get(addrD)
	require.False(t, d.terminal(), "silent member stays not-received")
}

func TestCollector_GetFirst(t *testing.T) {
	c := newResponseCollector(GetFirst, nil, []Address{addrA, addrB})

	require.Equal(t, rcvCompleted, c.receive(addrB, []byte("hi"), nil))
	requireDone(t, c)

	first := c.Results().First()
	require.Equal(t, addrB, first.Sender())
	require.Equal(t, []byte("hi"), first.Value())
}

func TestCollector_GetFirst_SuspicionAloneDoesNotSatisfy(t *testing.T) {
	c := newResponseCollector(GetFirst, nil, []Address{addrA, addrB})

	c.suspect(addrA)
	requireOpen(t, c)

	// ...but all members gone does complete, with nothing received.
	c.suspect(addrB)
	requireDone(t, c)
	require.Equal(t, 0, c.Results().NumReceived())
	require.Equal(t, 2, c.Results().NumSuspected())
}

func TestCollector_SuspectCompletesGetAll(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB, addrC})

	c.receive(addrA, []byte{1}, nil)
	c.receive(addrB, []byte{1}, nil)
	c.suspect(addrC)
	requireDone(t, c)

	rsp, _ := c.Results().Get(addrC)
	require.True(t, rsp.WasSuspected())
	require.False(t, rsp.WasReceived())
}

func TestCollector_SuspectIdempotent(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB})

	c.suspect(addrA)
	c.suspect(addrA)
	requireOpen(t, c)
	require.Equal(t, 1, c.Results().NumSuspected())
}

func TestCollector_SuspectDoesNotOverwriteReceived(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB})

	c.receive(addrA, []byte{1}, nil)
	c.suspect(addrA)

	rsp, _ := c.Results().Get(addrA)
	require.True(t, rsp.WasReceived())
	require.False(t, rsp.WasSuspected())
}

func TestCollector_ViewChangeMarksLeaversSuspected(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB, addrC})

	c.receive(addrA, []byte{1}, nil)
	c.receive(addrB, []byte{1}, nil)
	c.viewChange(NewView(2, addrA, addrB))
	requireDone(t, c)

	rsp, _ := c.Results().Get(addrC)
	require.True(t, rsp.WasSuspected())
}

func TestCollector_ViewChangeSparesSiteAddresses(t *testing.T) {
	site := SiteMaster{SiteName: "lon"}
	c := newResponseCollector(GetAll, nil, []Address{addrA, site})

	c.viewChange(NewView(2, addrA))
	requireOpen(t, c)

	rsp, _ := c.Results().Get(site)
	require.False(t, rsp.WasSuspected(), "site addresses survive view changes")
	a, _ := c.Results().Get(addrA)
	require.False(t, a.WasSuspected(), "members still in the view stay open")
}

func TestCollector_LateResponseDiscarded(t *testing.T) {
	c := newResponseCollector(GetFirst, nil, []Address{addrA, addrB})

	require.Equal(t, rcvCompleted, c.receive(addrA, []byte{1}, nil))
	require.Equal(t, rcvLate, c.receive(addrB, []byte{2}, nil))

	rsp, _ := c.Results().Get(addrB)
	require.False(t, rsp.WasReceived(), "post-completion responses never mutate the list")
}

func TestCollector_DuplicateResponseDiscarded(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB})

	require.Equal(t, rcvRecorded, c.receive(addrA, []byte{1}, nil))
	require.Equal(t, rcvLate, c.receive(addrA, []byte{9}, nil))

	rsp, _ := c.Results().Get(addrA)
	require.Equal(t, []byte{1}, rsp.Value())
}

func TestCollector_UnknownSender(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA})

	require.Equal(t, rcvUnknown, c.receive(addrB, []byte{1}, nil))
}

type rejectingFilter struct {
	acceptFrom Address
	needMore   bool
}

func (f *rejectingFilter) IsAcceptable(_ []byte, sender Address) bool {
	return sender == f.acceptFrom
}

func (f *rejectingFilter) NeedMoreResponses() bool { return f.needMore }

func TestCollector_FilterRejectLeavesSlotOpen(t *testing.T) {
	c := newResponseCollector(GetAll, &rejectingFilter{acceptFrom: addrA, needMore: true}, []Address{addrA, addrB})

	require.Equal(t, rcvRejected, c.receive(addrB, []byte{1}, nil))
	rsp, _ := c.Results().Get(addrB)
	require.False(t, rsp.terminal())
	requireOpen(t, c)
}

func TestCollector_FilterEarlyCompletion(t *testing.T) {
	// The filter declares the request done after the first accepted
	// response, even though the mode is GetAll.
	c := newResponseCollector(GetAll, &rejectingFilter{acceptFrom: addrA, needMore: false}, []Address{addrA, addrB})

	require.Equal(t, rcvCompleted, c.receive(addrA, []byte{1}, nil))
	requireDone(t, c)
	require.Equal(t, 1, c.Results().NumReceived())
}

func TestCollector_FailRemaining(t *testing.T) {
	sendErr := errors.New("broken pipe")
	c := newResponseCollector(GetAll, nil, []Address{addrA, addrB})

	c.receive(addrA, []byte{1}, nil)
	c.failRemaining(sendErr)
	requireDone(t, c)

	a, _ := c.Results().Get(addrA)
	require.NoError(t, a.Err())
	b, _ := c.Results().Get(addrB)
	require.ErrorIs(t, b.Err(), sendErr)
}

func TestCollector_DeadlineCompletes(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA})
	c.armDeadline(20 * time.Millisecond)

	requireDone(t, c)
	rsp, _ := c.Results().Get(addrA)
	require.False(t, rsp.terminal(), "deadline leaves open slots not-received")
}

func TestCollector_CancelIdempotentAndSignalsOnce(t *testing.T) {
	c := newResponseCollector(GetAll, nil, []Address{addrA})

	var fired int
	c.onDone = func(uint64) { fired++ }

	c.cancel()
	c.cancel()
	requireDone(t, c)
	require.Equal(t, 1, fired, "completion fires exactly once")
}

func TestCollector_ConcurrentResponsesCompleteOnce(t *testing.T) {
	members := []Address{addrA, addrB, addrC, addrD, addrE}
	c := newResponseCollector(GetAll, nil, members)

	var fired int32
	var mu sync.Mutex
	c.onDone = func(uint64) {
		mu.Lock()
		fired++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(addr Address) {
			defer wg.Done()
			c.receive(addr, []byte{1}, nil)
		}(m)
	}
	wg.Wait()

	requireDone(t, c)
	mu.Lock()
	require.EqualValues(t, 1, fired)
	mu.Unlock()
	require.Equal(t, 5, c.Results().NumReceived())
}
