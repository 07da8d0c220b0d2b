package transport

import (
	"errors"
	"sync/atomic"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

// ErrLinkClosed indicates a send on a closed link.
var ErrLinkClosed = errors.New("link closed")

// Link carries action messages from one node to a peer node.
//
// Send transfers ownership of the message; callers must not modify it
// afterwards. Messages sent on one link arrive in order, except that
// priority messages may overtake ordinary ones.
type Link interface {
	// Send delivers a message to the peer.
	Send(msg *wire.ActionMessage) error

	// Close closes the link. Subsequent sends fail with ErrLinkClosed.
	Close() error

	// Peer describes the remote end for logs.
	Peer() string

	// Local reports whether the peer shares this process, so attachments
	// such as custom operators survive the trip.
	Local() bool
}

// InprocLink delivers messages directly into the peer's mailbox.
type InprocLink struct {
	peer    string
	inbox   *Mailbox
	reverse *InprocLink
	closed  atomic.Bool
}

// Pipe connects two mailboxes with a pair of in-process links.
// The first link sends into b and the second sends into a; messages arriving
// through one link report the other as their From link.
func Pipe(aName string, a *Mailbox, bName string, b *Mailbox) (toB, toA *InprocLink) {
	toB = &InprocLink{peer: bName, inbox: b}
	toA = &InprocLink{peer: aName, inbox: a}
	toB.reverse = toA
	toA.reverse = toB
	return toB, toA
}

// Send pushes msg into the peer mailbox.
func (l *InprocLink) Send(msg *wire.ActionMessage) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	if !l.inbox.PushMessage(msg, l.reverse) {
		return ErrMailboxClosed
	}
	return nil
}

// Close closes this direction of the pipe.
func (l *InprocLink) Close() error {
	l.closed.Store(true)
	return nil
}

// Peer returns the peer name.
func (l *InprocLink) Peer() string {
	return l.peer
}

// Local reports true.
func (l *InprocLink) Local() bool {
	return true
}

// Compile-time interface satisfaction checks.
var (
	_ Link = (*InprocLink)(nil)
	_ Link = (*StreamLink)(nil)
)

// Attacher is a node that accepts in-process children. Attach returns the
// link the child uses to reach the node; the node replies through the
// envelope From link of each message.
type Attacher interface {
	Attach(child string, inbox *Mailbox) (Link, error)
}
