package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

// ErrMailboxClosed indicates the mailbox no longer accepts or yields envelopes.
var ErrMailboxClosed = errors.New("mailbox closed")

// Envelope is one unit of work for a node event loop: either an action
// message received on a link, or a closure to run on the loop.
type Envelope struct {
	// Msg is the received message, nil for closures.
	Msg *wire.ActionMessage

	// From is the link Msg arrived on; replies go back through it.
	From Link

	// Fn runs on the event loop when Msg is nil.
	Fn func()
}

// Mailbox is an unbounded two-priority FIFO feeding a single event loop.
// Priority envelopes are always popped before ordinary ones; within each
// priority, order is preserved.
type Mailbox struct {
	mu       sync.Mutex
	priority []Envelope
	normal   []Envelope
	signal   chan struct{}
	closed   bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{signal: make(chan struct{}, 1)}
}

// Push appends an envelope. It reports false if the mailbox is closed.
func (mb *Mailbox) Push(env Envelope, priority bool) bool {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return false
	}
	if priority {
		mb.priority = append(mb.priority, env)
	} else {
		mb.normal = append(mb.normal, env)
	}
	mb.mu.Unlock()

	select {
	case mb.signal <- struct{}{}:
	default:
	}
	return true
}

// PushMessage appends a message, choosing the priority from the message.
func (mb *Mailbox) PushMessage(m *wire.ActionMessage, from Link) bool {
	return mb.Push(Envelope{Msg: m, From: from}, m.Priority())
}

// Run appends a closure to run on the event loop.
func (mb *Mailbox) Run(fn func()) bool {
	return mb.Push(Envelope{Fn: fn}, false)
}

// Pop removes the next envelope, blocking until one is available, the
// mailbox is closed and drained, or ctx is done.
func (mb *Mailbox) Pop(ctx context.Context) (Envelope, error) {
	for {
		mb.mu.Lock()
		if len(mb.priority) > 0 {
			env := mb.priority[0]
			mb.priority[0] = Envelope{}
			mb.priority = mb.priority[1:]
			mb.mu.Unlock()
			return env, nil
		}
		if len(mb.normal) > 0 {
			env := mb.normal[0]
			mb.normal[0] = Envelope{}
			mb.normal = mb.normal[1:]
			mb.mu.Unlock()
			return env, nil
		}
		closed := mb.closed
		mb.mu.Unlock()
		if closed {
			return Envelope{}, ErrMailboxClosed
		}

		select {
		case <-mb.signal:
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// TryPop removes the next envelope without blocking.
func (mb *Mailbox) TryPop() (Envelope, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.priority) > 0 {
		env := mb.priority[0]
		mb.priority = mb.priority[1:]
		return env, true
	}
	if len(mb.normal) > 0 {
		env := mb.normal[0]
		mb.normal = mb.normal[1:]
		return env, true
	}
	return Envelope{}, false
}

// Len returns the number of queued envelopes.
func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.priority) + len(mb.normal)
}

// Close stops accepting envelopes. Queued envelopes can still be popped.
func (mb *Mailbox) Close() {
	mb.mu.Lock()
	mb.closed = true
	mb.mu.Unlock()

	select {
	case mb.signal <- struct{}{}:
	default:
	}
}

// Closed reports whether Close was called.
func (mb *Mailbox) Closed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}
