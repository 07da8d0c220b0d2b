package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
)

const (
	// LengthPrefixSize is the size of the big-endian length that precedes
	// every encoded action message on a stream.
	LengthPrefixSize = 4

	// DefaultMaxFrameSize bounds one encoded action message (16 MB).
	DefaultMaxFrameSize = 16 << 20

	// MaxCapturedFrameBytes is how much of a frame a capture event keeps.
	MaxCapturedFrameBytes = 4096
)

var (
	// ErrFrameTooLarge is returned for an action message above the link limit.
	ErrFrameTooLarge = errors.New("action frame too large")

	// ErrEmptyFrame is returned for a zero-length action frame.
	ErrEmptyFrame = errors.New("empty action frame")

	// ErrFrameTruncated is returned when the peer stream ends inside a frame.
	ErrFrameTruncated = errors.New("action frame truncated")
)

// Framer moves encoded action messages over a node link stream, one
// length-prefixed frame per message. Writes are safe for concurrent use;
// reads belong to the link's single reader goroutine.
type Framer struct {
	rw      io.ReadWriter
	maxSize uint32

	wmu    sync.Mutex
	header [LengthPrefixSize]byte

	// Capture, set before the link starts.
	capture log.Logger
	node    string
	peer    string
}

// NewFramer frames rw. A zero maxSize selects DefaultMaxFrameSize.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Framer{rw: rw, maxSize: maxSize}
}

// SetLogger captures every frame for the node/peer pair. Nil disables it.
func (f *Framer) SetLogger(capture log.Logger, node, peer string) {
	f.capture = capture
	f.node = node
	f.peer = peer
}

// WriteFrame sends one encoded action message.
func (f *Framer) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyFrame
	}
	if uint64(len(data)) > uint64(f.maxSize) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), f.maxSize)
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))

	f.wmu.Lock()
	defer f.wmu.Unlock()
	if _, err := f.rw.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame length to %s: %w", f.peer, err)
	}
	if _, err := f.rw.Write(data); err != nil {
		return fmt.Errorf("write frame to %s: %w", f.peer, err)
	}
	if f.capture != nil {
		f.capture.Log(frameEvent(f.node, f.peer, data, log.DirectionOut))
	}
	return nil
}

// ReadFrame returns the next encoded action message. A peer that closes
// between frames yields io.EOF.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.rw, f.header[:]); err != nil {
		switch {
		case err == io.EOF:
			return nil, err
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read frame length from %s: %w", f.peer, err)
	}

	n := binary.BigEndian.Uint32(f.header[:])
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if n > f.maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, f.maxSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(f.rw, data); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read frame from %s: %w", f.peer, err)
	}
	if f.capture != nil {
		f.capture.Log(frameEvent(f.node, f.peer, data, log.DirectionIn))
	}
	return data, nil
}

func frameEvent(node, peer string, data []byte, direction log.Direction) log.Event {
	kept := data
	if len(kept) > MaxCapturedFrameBytes {
		kept = kept[:MaxCapturedFrameBytes]
	}
	return log.Event{
		Timestamp: time.Now(),
		Node:      node,
		Peer:      peer,
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      FrameSize(len(data)),
			Data:      kept,
			Truncated: len(kept) < len(data),
		},
	}
}

// FrameSize is the on-stream size of an action message of payloadSize bytes.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
