package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/helpline/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultQueueSize is used when NewDispatcher gets a non-positive size.
const DefaultQueueSize = 1024

type event struct {
	message *MessageEntry
	status  *StatusChangeEntry
}

// Dispatcher hands audit entries to a Recorder on a background goroutine.
// Emitting never blocks: when the queue is full the entry is dropped.
type Dispatcher struct {
	recorder Recorder
	queue    chan event
	timeout  time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts a dispatcher draining into recorder.
func NewDispatcher(recorder Recorder, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		recorder: recorder,
		queue:    make(chan event, queueSize),
		timeout:  5 * time.Second,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Message queues a message entry, filling in id and timestamp.
func (d *Dispatcher) Message(entry MessageEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	d.enqueue(event{message: &entry})
}

// StatusChange queues a status change entry, filling in id and timestamp.
func (d *Dispatcher) StatusChange(entry StatusChangeEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	d.enqueue(event{status: &entry})
}

func (d *Dispatcher) enqueue(ev event) {
	defer func() {
		// Emitting after Close must not crash a request handler.
		if recover() != nil {
			metrics.AuditDroppedTotal.Inc()
		}
	}()
	select {
	case d.queue <- ev:
	default:
		metrics.AuditDroppedTotal.Inc()
		log.Warn().Msg("audit queue full, dropping event")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		var err error
		switch {
		case ev.message != nil:
			err = d.recorder.RecordMessage(ctx, *ev.message)
		case ev.status != nil:
			err = d.recorder.RecordStatusChange(ctx, *ev.status)
		}
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("failed to record audit event")
		}
	}
}

// Close stops accepting events and waits until queued ones are recorded
// or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.queue) })
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
