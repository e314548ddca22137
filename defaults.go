package groupcall

import (
	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/groupcall/metrics"
)

// defaultConfig centralizes default values for config.
// New starts from these before applying options.
func defaultConfig() config {
	return config{
		logger:         logrus.StandardLogger().WithField("component", "dispatcher"),
		provider:       metrics.NewNoopProvider(),
		maxHandlers:    0, // dynamic runner pool
		asyncDispatch:  false,
		corrID:         0,
		extendedStats:  false,
		wrapExceptions: true,
	}
}
