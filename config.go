package groupcall

import (
	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/groupcall/metrics"
)

// config holds Dispatcher configuration, assembled via Option values.
type config struct {
	// logger receives correlator and dispatcher diagnostics.
	// Default: logrus standard logger tagged with component=dispatcher.
	logger logrus.FieldLogger

	// provider constructs metrics instruments.
	// Default: metrics.NoopProvider.
	provider metrics.Provider

	// maxHandlers caps concurrently running request handlers.
	// Zero (default) means a dynamic runner pool with no cap.
	maxHandlers uint

	// asyncDispatch runs incoming request handlers on pooled runners
	// instead of the delivery thread.
	// Default: false (handlers run on the delivery thread).
	asyncDispatch bool

	// corrID multiplexes several correlators over one channel; a
	// correlator only consumes messages stamped with its own id.
	// Default: 0.
	corrID uint16

	// extendedStats enables per-destination timing from the start.
	// Default: false (toggle later via RpcStats or the probe).
	extendedStats bool

	// wrapExceptions marks handler failures as exception responses on
	// the wire. Disabled only by applications that encode failures in
	// their own payloads.
	// Default: true.
	wrapExceptions bool

	// app receives everything the correlator does not consume: non-
	// correlator messages, view changes, suspicions, state transfer
	// events.
	// Default: nil (such events are dropped).
	app UpHandler
}

// Option configures a Dispatcher. Pass options to New.
type Option func(*config)

// WithLogger routes diagnostics to l instead of the standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l == nil {
			panic(Namespace + ": nil logger")
		}
		c.logger = l
	}
}

// WithMetricsProvider publishes counters and timings through p.
func WithMetricsProvider(p metrics.Provider) Option {
	return func(c *config) {
		if p == nil {
			panic(Namespace + ": nil metrics provider")
		}
		c.provider = p
	}
}

// WithMaxHandlers caps the number of concurrently running request
// handlers (n must be > 0). Without this option the runner pool grows on
// demand.
func WithMaxHandlers(n uint) Option {
	return func(c *config) {
		if n == 0 {
			panic(Namespace + ": WithMaxHandlers requires n > 0")
		}
		c.maxHandlers = n
	}
}

// WithAsyncDispatch runs incoming request handlers on pooled runners so a
// slow handler never stalls the delivery thread.
func WithAsyncDispatch() Option {
	return func(c *config) { c.asyncDispatch = true }
}

// WithCorrelatorID sets the multiplexing id stamped on every outgoing
// header. Messages carrying a different id are ignored.
func WithCorrelatorID(id uint16) Option {
	return func(c *config) { c.corrID = id }
}

// WithExtendedStats turns per-destination timing on from the start.
func WithExtendedStats() Option {
	return func(c *config) { c.extendedStats = true }
}

// WithoutExceptionWrapping ships handler failures as plain responses
// instead of exception responses.
func WithoutExceptionWrapping() Option {
	return func(c *config) { c.wrapExceptions = false }
}

// WithAppHandler forwards events the correlator does not consume (plain
// messages, views, suspicions, state transfer) to h.
func WithAppHandler(h UpHandler) Option {
	return func(c *config) { c.app = h }
}
