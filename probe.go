package groupcall

// KV is one key -> text pair of a probe response. Pairs keep insertion
// order.
type KV struct {
	Key   string
	Value string
}

// ProbeHandler answers diagnostic probe keys with text. Implementations
// never fail the caller for unknown keys; they simply skip them.
type ProbeHandler interface {
	// Handle answers the keys it recognizes, in the order given.
	Handle(keys []string) []KV
	// SupportedKeys lists the keys this handler answers.
	SupportedKeys() []string
}

const detailsNotEnabled = "<details not enabled: use rpcs-enable-details to enable>"

// rpcProbe exposes the dispatcher's call statistics to operational
// tooling.
type rpcProbe struct {
	stats *RpcStats
}

func newRpcProbe(stats *RpcStats) *rpcProbe { return &rpcProbe{stats: stats} }

func (p *rpcProbe) SupportedKeys() []string {
	return []string{"rpcs", "rpcs-reset", "rpcs-enable-details", "rpcs-disable-details", "rpcs-details"}
}

func (p *rpcProbe) Handle(keys []string) []KV {
	var out []KV
	for _, key := range keys {
		switch key {
		case "rpcs":
			out = append(out, KV{Key: key, Value: p.stats.String()})
		case "rpcs-reset":
			p.stats.Reset()
			out = append(out, KV{Key: key, Value: "ok"})
		case "rpcs-enable-details":
			p.stats.EnableExtended(true)
			out = append(out, KV{Key: key, Value: "ok"})
		case "rpcs-disable-details":
			p.stats.EnableExtended(false)
			out = append(out, KV{Key: key, Value: "ok"})
		case "rpcs-details":
			if !p.stats.ExtendedEnabled() {
				out = append(out, KV{Key: key, Value: detailsNotEnabled})
				continue
			}
			out = append(out, KV{Key: key, Value: p.stats.PrintOrderByDest()})
		}
	}
	return out
}
