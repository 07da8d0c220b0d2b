package wire

import (
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for action messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for action messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
		ShortestFloat: cbor.ShortestFloatNone,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxArrayElements:  math.MaxInt32,
		MaxMapPairs:       math.MaxInt32,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// Encode encodes an action message to CBOR bytes.
func Encode(m *ActionMessage) ([]byte, error) {
	if !m.Action.IsValid() {
		return nil, fmt.Errorf("invalid action: %d", m.Action)
	}
	return Marshal(m)
}

// Decode decodes CBOR bytes into an action message.
func Decode(data []byte) (*ActionMessage, error) {
	var m ActionMessage
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode action message: %w", err)
	}
	if !m.Action.IsValid() {
		return nil, fmt.Errorf("invalid action: %d", m.Action)
	}
	return &m, nil
}

// PeekAction returns the action of an encoded message without decoding the rest.
func PeekAction(data []byte) (Action, error) {
	var peek struct {
		Action Action `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return ActIgnore, fmt.Errorf("failed to peek action: %w", err)
	}
	return peek.Action, nil
}
