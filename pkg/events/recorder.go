package events

import (
	"encoding/json"

	"github.com/fernhill/rookery/pkg/eventlog"
	"github.com/fernhill/rookery/pkg/log"
)

// Recorder drains one subscription into a rotating event log, one JSON
// line per event. Serialization failures and full buffers are dropped,
// matching the log writer's swallow-all policy.
type Recorder struct {
	broker *Broker
	sub    Subscriber
	writer *eventlog.Writer
	done   chan struct{}
}

// NewRecorder subscribes to the broker and starts draining into w.
func NewRecorder(b *Broker, w *eventlog.Writer) *Recorder {
	r := &Recorder{
		broker: b,
		sub:    b.Subscribe(),
		writer: w,
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	logger := log.WithComponent("events")

	for ev := range r.sub {
		line, err := json.Marshal(ev)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping unserializable event")
			continue
		}
		r.writer.Enqueue(append(line, '\n'))
	}
}

// Close detaches from the broker and waits for the drain to finish.
// The event log writer stays open; it belongs to the container.
func (r *Recorder) Close() {
	r.broker.Unsubscribe(r.sub)
	<-r.done
}
