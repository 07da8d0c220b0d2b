package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Pending request errors.
var (
	ErrPendingClosed   = errors.New("pending requests cancelled")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// Pending tracks requests awaiting a reply. Requests are keyed by the
// ActionMessage Counter, which the replying node copies into its answer.
type Pending struct {
	mu      sync.Mutex
	next    int32
	waiting map[int32]chan *wire.ActionMessage
	closed  bool
}

// NewPending creates an empty tracker.
func NewPending() *Pending {
	return &Pending{waiting: make(map[int32]chan *wire.ActionMessage)}
}

// Add reserves a counter and returns the channel its reply arrives on.
func (p *Pending) Add() (int32, <-chan *wire.ActionMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, nil, ErrPendingClosed
	}
	p.next++
	if p.next <= 0 {
		p.next = 1
	}
	ch := make(chan *wire.ActionMessage, 1)
	p.waiting[p.next] = ch
	return p.next, ch, nil
}

// Cancel forgets a request.
func (p *Pending) Cancel(id int32) {
	p.mu.Lock()
	delete(p.waiting, id)
	p.mu.Unlock()
}

// Complete hands a reply to its waiter.
func (p *Pending) Complete(reply *wire.ActionMessage) error {
	p.mu.Lock()
	ch, ok := p.waiting[reply.Counter]
	delete(p.waiting, reply.Counter)
	p.mu.Unlock()

	if !ok {
		return ErrUnexpectedReply
	}
	ch <- reply
	return nil
}

// Len returns the number of outstanding requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}

// Close cancels every outstanding request; their waiters see ErrPendingClosed.
func (p *Pending) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.waiting {
		close(ch)
		delete(p.waiting, id)
	}
}

// Wait blocks until the reply on ch arrives or ctx is done.
func (p *Pending) Wait(ctx context.Context, id int32, ch <-chan *wire.ActionMessage) (*wire.ActionMessage, error) {
	select {
	case <-ctx.Done():
		p.Cancel(id)
		return nil, ctx.Err()
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrPendingClosed
		}
		return reply, nil
	}
}
