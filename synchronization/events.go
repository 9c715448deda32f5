package synchronization

import (
	"sync"

	"github.com/jupiterone/integration-sdk-go/common/logger"
)

type event struct {
	subsystem, name string
	fields          logger.Fields
}

// EventQueue serializes log.Event notifications onto a single background
// worker through a 256-event buffer, so publishing blocks the caller only
// while that buffer is full, and lets the synchronization
// pipeline wait for the side-channel to go idle before returning (spec.md
// §4.5 "event publishing queue"). It implements logger.EventSink.
type EventQueue struct {
	publish func(subsystem, name string, fields logger.Fields)

	queue     chan event
	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewEventQueue builds an EventQueue that hands every published event to
// publish, one at a time, in submission order, on its own worker goroutine.
func NewEventQueue(publish func(subsystem, name string, fields logger.Fields)) *EventQueue {
	q := &EventQueue{
		publish: publish,
		queue:   make(chan event, 256),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *EventQueue) run() {
	defer q.wg.Done()
	for e := range q.queue {
		if q.publish != nil {
			q.publish(e.subsystem, e.name, e.fields)
		}
	}
}

var _ logger.EventSink = (*EventQueue)(nil)

// PublishEvent implements logger.EventSink, enqueueing e for the worker
// goroutine. It blocks only while the queue's buffer is full.
func (q *EventQueue) PublishEvent(subsystem, name string, fields logger.Fields) {
	q.queue <- event{subsystem: subsystem, name: name, fields: fields}
}

// Wait blocks until every event enqueued so far has been published, by
// closing the queue and waiting for the worker to drain it. Wait must only
// be called once, after no further events will be published.
func (q *EventQueue) Wait() {
	q.startOnce.Do(func() {
		close(q.queue)
	})
	q.wg.Wait()
}
