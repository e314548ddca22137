package groupcall

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ygrebnov/groupcall/metrics"
)

// callKind distinguishes the three fan-out shapes for accounting.
type callKind int

const (
	unicastKind callKind = iota
	multicastKind
	anycastKind
)

// RpcStats counts calls per shape and synchrony. The six base counters
// are lock-free atomics on the hot path; per-destination timing is
// gathered only when extended stats are enabled, behind a single boolean
// gate checked per call. Every increment is mirrored to the configured
// metrics provider.
type RpcStats struct {
	syncUnicasts    atomic.Uint64
	asyncUnicasts   atomic.Uint64
	syncMulticasts  atomic.Uint64
	asyncMulticasts atomic.Uint64
	syncAnycasts    atomic.Uint64
	asyncAnycasts   atomic.Uint64
	late            atomic.Uint64

	extended atomic.Bool

	mu      sync.Mutex
	timings map[string]*destTiming

	callsCounter metrics.Counter
	lateCounter  metrics.Counter
	syncSeconds  metrics.Histogram
}

// destTiming aggregates synchronous call latency toward one destination.
type destTiming struct {
	count uint64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func newRpcStats(p metrics.Provider, extended bool) *RpcStats {
	s := &RpcStats{
		timings: make(map[string]*destTiming),
		callsCounter: p.Counter(
			"groupcall_calls_total",
			metrics.WithDescription("calls issued through the dispatcher"),
		),
		lateCounter: p.Counter(
			"groupcall_late_responses_total",
			metrics.WithDescription("responses discarded because their request had completed"),
		),
		syncSeconds: p.Histogram(
			"groupcall_sync_call_seconds",
			metrics.WithDescription("duration of completed synchronous calls"),
			metrics.WithUnit("seconds"),
		),
	}
	s.extended.Store(extended)
	return s
}

// record counts one call.
func (s *RpcStats) record(sync bool, kind callKind) {
	switch kind {
	case unicastKind:
		if sync {
			s.syncUnicasts.Add(1)
		} else {
			s.asyncUnicasts.Add(1)
		}
	case multicastKind:
		if sync {
			s.syncMulticasts.Add(1)
		} else {
			s.asyncMulticasts.Add(1)
		}
	case anycastKind:
		if sync {
			s.syncAnycasts.Add(1)
		} else {
			s.asyncAnycasts.Add(1)
		}
	}
	s.callsCounter.Add(1)
}

// recordTiming aggregates a completed synchronous call toward dest. Only
// called when extended stats are enabled.
func (s *RpcStats) recordTiming(dest Address, elapsed time.Duration) {
	s.syncSeconds.Record(elapsed.Seconds())

	key := dest.String()
	s.mu.Lock()
	t, ok := s.timings[key]
	if !ok {
		t = &destTiming{min: elapsed, max: elapsed}
		s.timings[key] = t
	}
	t.count++
	t.total += elapsed
	if elapsed < t.min {
		t.min = elapsed
	}
	if elapsed > t.max {
		t.max = elapsed
	}
	s.mu.Unlock()
}

// addLate counts a response that arrived after its request completed or
// for a slot that was already settled.
func (s *RpcStats) addLate() {
	s.late.Add(1)
	s.lateCounter.Add(1)
}

// EnableExtended toggles per-destination timing.
func (s *RpcStats) EnableExtended(on bool) { s.extended.Store(on) }

// ExtendedEnabled reports whether per-destination timing is gathered.
func (s *RpcStats) ExtendedEnabled() bool { return s.extended.Load() }

// SyncUnicasts returns the number of synchronous unicast calls.
func (s *RpcStats) SyncUnicasts() uint64 { return s.syncUnicasts.Load() }

// AsyncUnicasts returns the number of asynchronous unicast calls.
func (s *RpcStats) AsyncUnicasts() uint64 { return s.asyncUnicasts.Load() }

// SyncMulticasts returns the number of synchronous multicast calls.
func (s *RpcStats) SyncMulticasts() uint64 { return s.syncMulticasts.Load() }

// AsyncMulticasts returns the number of asynchronous multicast calls.
func (s *RpcStats) AsyncMulticasts() uint64 { return s.asyncMulticasts.Load() }

// SyncAnycasts returns the number of synchronous anycast calls.
func (s *RpcStats) SyncAnycasts() uint64 { return s.syncAnycasts.Load() }

// AsyncAnycasts returns the number of asynchronous anycast calls.
func (s *RpcStats) AsyncAnycasts() uint64 { return s.asyncAnycasts.Load() }

// LateResponses returns the number of discarded late responses.
func (s *RpcStats) LateResponses() uint64 { return s.late.Load() }

// Reset zeros all counters and drops gathered timings.
func (s *RpcStats) Reset() {
	s.syncUnicasts.Store(0)
	s.asyncUnicasts.Store(0)
	s.syncMulticasts.Store(0)
	s.asyncMulticasts.Store(0)
	s.syncAnycasts.Store(0)
	s.asyncAnycasts.Store(0)
	s.late.Store(0)
	s.mu.Lock()
	s.timings = make(map[string]*destTiming)
	s.mu.Unlock()
}

// String renders the summary counters.
func (s *RpcStats) String() string {
	return fmt.Sprintf(
		"sync unicasts: %d, async unicasts: %d, sync multicasts: %d, async multicasts: %d, sync anycasts: %d, async anycasts: %d, late responses: %d",
		s.syncUnicasts.Load(), s.asyncUnicasts.Load(),
		s.syncMulticasts.Load(), s.asyncMulticasts.Load(),
		s.syncAnycasts.Load(), s.asyncAnycasts.Load(),
		s.late.Load(),
	)
}

// PrintOrderByDest renders the per-destination timing table, one line per
// destination, sorted by destination address.
func (s *RpcStats) PrintOrderByDest() string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.timings))
	for k := range s.timings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		t := s.timings[k]
		avg := t.total / time.Duration(t.count)
		fmt.Fprintf(&b, "%s: %d calls, avg %v, min %v, max %v\n", k, t.count, avg, t.min, t.max)
	}
	s.mu.Unlock()
	return b.String()
}
