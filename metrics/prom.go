package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PromProvider implements Provider on a prometheus registry: counters map
// to prometheus counters, up/down counters to gauges, histograms to
// prometheus histograms with default buckets. Instruments are registered
// on first use and reused by name.
type PromProvider struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPromProvider constructs a provider registering onto reg; a nil reg
// uses the default registerer.
func NewPromProvider(reg prometheus.Registerer) *PromProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PromProvider{
		reg:        reg,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func (p *PromProvider) Counter(name string, opts ...InstrumentOption) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.counters[name]
	if !ok {
		cfg := applyOptions(opts)
		c = prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpOrName(cfg, name)})
		p.reg.MustRegister(c)
		p.counters[name] = c
	}
	return promCounter{c: c}
}

func (p *PromProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gauges[name]
	if !ok {
		cfg := applyOptions(opts)
		g = prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpOrName(cfg, name)})
		p.reg.MustRegister(g)
		p.gauges[name] = g
	}
	return promGauge{g: g}
}

func (p *PromProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.histograms[name]
	if !ok {
		cfg := applyOptions(opts)
		h = prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: helpOrName(cfg, name)})
		p.reg.MustRegister(h)
		p.histograms[name] = h
	}
	return promHistogram{h: h}
}

func helpOrName(cfg InstrumentConfig, name string) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return name
}

type promCounter struct {
	c prometheus.Counter
}

func (pc promCounter) Add(n int64) {
	if n > 0 {
		pc.c.Add(float64(n))
	}
}

type promGauge struct {
	g prometheus.Gauge
}

func (pg promGauge) Add(n int64) { pg.g.Add(float64(n)) }

type promHistogram struct {
	h prometheus.Histogram
}

func (ph promHistogram) Record(v float64) { ph.h.Observe(v) }
