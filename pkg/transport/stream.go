package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// StreamConfig configures a StreamLink.
type StreamConfig struct {
	// Node is the local node name, used in capture events.
	Node string

	// Peer describes the remote end. Defaults to a random id.
	Peer string

	// MaxMessageSize is the maximum frame size (default: DefaultMaxFrameSize).
	MaxMessageSize uint32

	// Logger is the operational logger. Nil discards.
	Logger *slog.Logger

	// ProtocolLogger captures frames and decoded actions (optional).
	ProtocolLogger log.Logger
}

// StreamLink carries CBOR-encoded action messages as length-prefixed frames
// over a byte stream. A reader goroutine decodes incoming frames into the
// local mailbox.
//
// When the stream fails, the link pushes a local ActDisconnect with the
// error attached so the owning node learns that the peer is gone.
type StreamLink struct {
	rw       io.ReadWriteCloser
	framer   *Framer
	inbox    *Mailbox
	config   StreamConfig
	logger   *slog.Logger
	protocol log.Logger

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
	mu        sync.Mutex
	sendErr   error
}

// NewStreamLink wraps rw and starts reading frames into inbox.
func NewStreamLink(rw io.ReadWriteCloser, inbox *Mailbox, config StreamConfig) *StreamLink {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxFrameSize
	}
	if config.Peer == "" {
		config.Peer = uuid.New().String()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	framer := NewFramer(rw, config.MaxMessageSize)
	if config.ProtocolLogger != nil {
		framer.SetLogger(config.ProtocolLogger, config.Node, config.Peer)
	}

	l := &StreamLink{
		rw:       rw,
		framer:   framer,
		inbox:    inbox,
		config:   config,
		logger:   logger,
		protocol: log.OrNoop(config.ProtocolLogger),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Send encodes msg and writes it as one frame.
func (l *StreamLink) Send(msg *wire.ActionMessage) error {
	select {
	case <-l.closed:
		return ErrLinkClosed
	default:
	}

	data, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Action, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	if err := l.framer.WriteFrame(data); err != nil {
		l.sendErr = err
		return err
	}
	l.capture(msg, log.DirectionOut)
	return nil
}

// Close closes the stream and waits for the reader to exit.
func (l *StreamLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.rw.Close()
	})
	<-l.done
	return err
}

// Peer returns the peer description.
func (l *StreamLink) Peer() string {
	return l.config.Peer
}

// Local reports false; attachments that cannot be encoded are dropped.
func (l *StreamLink) Local() bool {
	return false
}

// Done is closed when the reader goroutine exits.
func (l *StreamLink) Done() <-chan struct{} {
	return l.done
}

func (l *StreamLink) readLoop() {
	defer close(l.done)

	for {
		data, err := l.framer.ReadFrame()
		if err != nil {
			select {
			case <-l.closed:
				return
			default:
			}
			l.fail(err)
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			l.logger.Warn("dropping undecodable frame", "peer", l.config.Peer, "error", err)
			continue
		}
		l.capture(msg, log.DirectionIn)
		if !l.inbox.PushMessage(msg, l) {
			return
		}
	}
}

func (l *StreamLink) fail(err error) {
	if errors.Is(err, io.EOF) {
		l.logger.Debug("stream closed by peer", "peer", l.config.Peer)
	} else {
		l.logger.Warn("stream read failed", "peer", l.config.Peer, "error", err)
	}
	lost := wire.New(wire.ActDisconnect)
	lost.SetError(fmt.Errorf("link to %s lost: %w", l.config.Peer, err))
	l.inbox.PushMessage(lost, l)
}

func (l *StreamLink) capture(msg *wire.ActionMessage, dir log.Direction) {
	l.protocol.Log(log.Event{
		Timestamp: time.Now(),
		Node:      l.config.Node,
		Peer:      l.config.Peer,
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryOf(msg.Action),
		SimTime:   float64(msg.Time),
		Action:    log.NewActionEvent(msg),
	})
}
