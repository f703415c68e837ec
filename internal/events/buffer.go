package events

import (
	"sync"
	"time"
)

type message struct {
	Kind     string
	Data     []byte
	QueuedAt time.Time
}

// buffer is a FIFO of events waiting for the writer. With a positive
// capacity it evicts from the front.
type buffer struct {
	lock     sync.Mutex
	pending  []*message
	capacity int
}

func newBuffer(capacity int) *buffer {
	return &buffer{capacity: capacity}
}

// PushBack queues msg and returns the message evicted to make room, if any.
func (b *buffer) PushBack(msg *message) *message {
	b.lock.Lock()
	defer b.lock.Unlock()

	var evicted *message
	if b.capacity > 0 && len(b.pending) >= b.capacity {
		evicted = b.pending[0]
		b.pending[0] = nil
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, msg)
	return evicted
}

func (b *buffer) Pop() *message {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(b.pending) == 0 {
		return nil
	}
	msg := b.pending[0]
	b.pending[0] = nil
	b.pending = b.pending[1:]
	return msg
}

func (b *buffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.pending)
}
