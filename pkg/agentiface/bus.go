package agentiface

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// Message is one unit of work handed to an agent, or one recommendation
// handed back to the orchestrator. IdempotencyKey identifies the logical
// delivery across retries — an agent that processes the same key twice
// (because the bus redelivered before the Ack arrived) must treat the
// second delivery as a no-op.
type Message struct {
	IncidentID     string
	IdempotencyKey string
	Attempt        int
	Payload        any
}

// Bus is an in-process, buffered-channel publish point per agent class
// with at-least-once redelivery: a message not Acked within RedeliverAfter
// is pushed back onto its queue with Attempt incremented. There is no
// broker here — this mirrors the single-process worker-pool dispatch the
// orchestrator already does, generalized to a pub/sub shape instead of a
// direct queue poll, since agents subscribe by class rather than being
// handed work items one at a time.
type Bus struct {
	mu             sync.Mutex
	queues         map[incident.AgentClass]chan Message
	pending        map[string]*time.Timer
	bufferSize     int
	redeliverAfter time.Duration
}

// NewBus builds a Bus. bufferSize bounds each class's queue; redeliverAfter
// is how long an unacked message waits before being redelivered.
func NewBus(bufferSize int, redeliverAfter time.Duration) *Bus {
	return &Bus{
		queues:         make(map[incident.AgentClass]chan Message),
		pending:        make(map[string]*time.Timer),
		bufferSize:     bufferSize,
		redeliverAfter: redeliverAfter,
	}
}

func (b *Bus) queueLocked(class incident.AgentClass) chan Message {
	q, ok := b.queues[class]
	if !ok {
		q = make(chan Message, b.bufferSize)
		b.queues[class] = q
	}
	return q
}

// Subscribe returns the receive side of class's queue, creating it if this
// is the first subscriber.
func (b *Bus) Subscribe(class incident.AgentClass) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queueLocked(class)
}

// Publish enqueues msg for class and arms a redelivery timer. If the
// queue is full, Publish blocks — callers should size bufferSize for their
// expected agent roster rather than relying on this as backpressure.
func (b *Bus) Publish(class incident.AgentClass, msg Message) {
	b.mu.Lock()
	q := b.queueLocked(class)
	b.armRedeliveryLocked(class, msg)
	b.mu.Unlock()

	q <- msg
}

// armRedeliveryLocked schedules a redelivery of msg if it is not Acked
// within redeliverAfter. Caller must hold b.mu.
func (b *Bus) armRedeliveryLocked(class incident.AgentClass, msg Message) {
	if b.redeliverAfter <= 0 {
		return
	}
	timer := time.AfterFunc(b.redeliverAfter, func() {
		b.mu.Lock()
		_, stillPending := b.pending[msg.IdempotencyKey]
		b.mu.Unlock()
		if !stillPending {
			return
		}
		redelivered := msg
		redelivered.Attempt++
		b.Publish(class, redelivered)
	})
	b.pending[msg.IdempotencyKey] = timer
}

// Ack confirms key was processed, cancelling any pending redelivery.
func (b *Bus) Ack(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if timer, ok := b.pending[key]; ok {
		timer.Stop()
		delete(b.pending, key)
	}
}

// Pending reports whether key still awaits an Ack, for tests and
// diagnostics.
func (b *Bus) Pending(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[key]
	return ok
}
