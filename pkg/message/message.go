package message

import (
	"fmt"

	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// MaxFlags is the number of user flag bits on a message.
const MaxFlags = 16

// Message is a timestamped payload sent from one endpoint to another.
type Message struct {
	Source              string       `cbor:"1,keyasint"`
	Destination         string       `cbor:"2,keyasint"`
	OriginalSource      string       `cbor:"3,keyasint,omitempty"`
	OriginalDestination string       `cbor:"4,keyasint,omitempty"`
	Time                simtime.Time `cbor:"5,keyasint"`
	Data                []byte       `cbor:"6,keyasint,omitempty"`
	MessageID           int32        `cbor:"7,keyasint,omitempty"`
	Flags               uint16       `cbor:"8,keyasint,omitempty"`
}

// New creates a message addressed from source to destination.
func New(source, destination string, t simtime.Time, data []byte) *Message {
	return &Message{
		Source:              source,
		Destination:         destination,
		OriginalSource:      source,
		OriginalDestination: destination,
		Time:                t,
		Data:                data,
	}
}

// IsValid reports whether the message carries data or a destination.
func (m *Message) IsValid() bool {
	return m != nil && (len(m.Data) > 0 || m.Destination != "")
}

// SetFlag sets or clears flag bit i.
func (m *Message) SetFlag(i int, on bool) error {
	if i < 0 || i >= MaxFlags {
		return status.Errorf(status.KindInvalidArgument, "message flag index %d out of range", i)
	}
	if on {
		m.Flags |= 1 << uint(i)
	} else {
		m.Flags &^= 1 << uint(i)
	}
	return nil
}

// Flag reports whether flag bit i is set. Out of range indices report false.
func (m *Message) Flag(i int) bool {
	if i < 0 || i >= MaxFlags {
		return false
	}
	return m.Flags&(1<<uint(i)) != 0
}

// ClearFlags clears all flag bits.
func (m *Message) ClearFlags() {
	m.Flags = 0
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	c.Data = append([]byte(nil), m.Data...)
	return &c
}

// CopyTo overwrites dst with a deep copy of m.
func (m *Message) CopyTo(dst *Message) {
	*dst = *m.Clone()
}

// Clear resets every field.
func (m *Message) Clear() {
	*m = Message{}
}

// Reserve grows the data capacity to at least n bytes.
func (m *Message) Reserve(n int) error {
	if n < 0 {
		return status.Errorf(status.KindInvalidArgument, "reserve: negative capacity %d", n)
	}
	if n > cap(m.Data) {
		grown := make([]byte, len(m.Data), n)
		copy(grown, m.Data)
		m.Data = grown
	}
	return nil
}

// Resize sets the data length to n. New bytes are zero.
func (m *Message) Resize(n int) error {
	if n < 0 {
		return status.Errorf(status.KindInvalidArgument, "resize: negative size %d", n)
	}
	if err := m.Reserve(n); err != nil {
		return err
	}
	old := len(m.Data)
	m.Data = m.Data[:n]
	for i := old; i < n; i++ {
		m.Data[i] = 0
	}
	return nil
}

// AppendData appends bytes to the payload.
func (m *Message) AppendData(b []byte) {
	m.Data = append(m.Data, b...)
}

// String returns the payload as a string.
func (m *Message) String() string {
	if m == nil {
		return ""
	}
	return string(m.Data)
}

// Describe formats the message header for logs.
func (m *Message) Describe() string {
	return fmt.Sprintf("%s -> %s @%s (%d bytes, id %d)", m.Source, m.Destination, m.Time, len(m.Data), m.MessageID)
}
