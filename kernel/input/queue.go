// Package input implements a lock-free single-producer/single-consumer ring
// buffer for raw hardware input events. The producer side is meant to be
// called from interrupt context (keyboard IRQ1, mouse IRQ12 handlers) and
// must never block; the consumer side is the main kernel loop.
package input

import "sync/atomic"

// QueueSize is the capacity of the ring buffer. It must be a power of 2 so
// that wraparound can be computed with a bitmask instead of a modulo.
const QueueSize = 256

// RawEventKind identifies which hardware source produced a RawEvent.
type RawEventKind uint8

const (
	// KeyboardScancode tags a RawEvent carrying a raw PS/2 Set-2 scancode
	// byte.
	KeyboardScancode RawEventKind = iota

	// MousePacketByte tags a RawEvent carrying a single byte of a PS/2
	// mouse packet.
	MousePacketByte
)

// RawEvent is the tagged union of events the two interrupt sources can push
// onto a Queue. Only Byte is meaningful; Kind selects how the consumer
// should interpret it.
type RawEvent struct {
	Kind RawEventKind
	Byte uint8
}

// Queue is a fixed-capacity lock-free SPSC ring buffer of RawEvent values.
// The zero value is an empty, ready-to-use queue.
//
// Memory ordering: Push stores head with Release ordering so the written
// slot is visible to Pop once it observes the new head value; Push loads
// tail with Acquire ordering so it cannot overwrite a slot Pop has not
// finished reading yet. Pop stores tail with Release ordering so Push can
// safely reuse the slot once it observes the new tail; Pop loads head with
// Acquire ordering to see the producer's write.
type Queue struct {
	buffer       [QueueSize]RawEvent
	head         uint32
	tail         uint32
	droppedCount uint32
}

const queueMask = QueueSize - 1

// Push enqueues event. It returns false and increments the dropped-event
// counter if the queue is full. Safe to call from interrupt context: it
// never allocates and never blocks.
func (q *Queue) Push(event RawEvent) bool {
	head := atomic.LoadUint32(&q.head)
	nextHead := (head + 1) & queueMask

	tail := atomic.LoadUint32(&q.tail)
	if nextHead == tail {
		atomic.AddUint32(&q.droppedCount, 1)
		return false
	}

	q.buffer[head] = event
	atomic.StoreUint32(&q.head, nextHead)
	return true
}

// Pop dequeues the oldest event. It returns false if the queue is empty.
func (q *Queue) Pop() (RawEvent, bool) {
	tail := atomic.LoadUint32(&q.tail)
	head := atomic.LoadUint32(&q.head)

	if tail == head {
		return RawEvent{}, false
	}

	event := q.buffer[tail]
	atomic.StoreUint32(&q.tail, (tail+1)&queueMask)
	return event, true
}

// IsEmpty reports whether the queue currently has no events to pop.
func (q *Queue) IsEmpty() bool {
	return atomic.LoadUint32(&q.head) == atomic.LoadUint32(&q.tail)
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	return int((head - tail) & queueMask)
}

// DroppedCount returns the number of events discarded because the queue was
// full when Push was called.
func (q *Queue) DroppedCount() uint32 {
	return atomic.LoadUint32(&q.droppedCount)
}

// ResetDroppedCount zeroes the dropped-event counter, typically after it has
// been logged.
func (q *Queue) ResetDroppedCount() {
	atomic.StoreUint32(&q.droppedCount, 0)
}
