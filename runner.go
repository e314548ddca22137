package groupcall

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// runner executes one incoming request against the installed handler.
// Runners are pooled: a fixed pool caps how many requests execute
// concurrently, a dynamic pool grows on demand.
type runner struct {
	log logrus.FieldLogger
}

func (rn *runner) run(msg *Message, r *replySender, h requestHandler) {
	defer func() {
		if p := recover(); p != nil {
			// A panicking handler becomes a remote failure for the
			// caller instead of taking down the delivery thread.
			rn.log.WithField("id", r.id).Errorf("request handler panicked: %v", p)
			_ = r.Reply(nil, fmt.Errorf("%w: handler panicked: %v", ErrRemote, p))
		}
	}()

	h.invoke(msg, r)
}
