package databuffer

import (
	"encoding/binary"
	"math"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// Tag is the one-byte type tag at the start of an encoded buffer.
type Tag uint8

// Type tags.
const (
	TagInt           Tag = 0x01
	TagDouble        Tag = 0x02
	TagString        Tag = 0x03
	TagRawString     Tag = 0x04
	TagBool          Tag = 0x05
	TagChar          Tag = 0x06
	TagComplex       Tag = 0x07
	TagNamedPoint    Tag = 0x08
	TagTime          Tag = 0x09
	TagVector        Tag = 0x0A
	TagComplexVector Tag = 0x0B
	TagUnknown       Tag = 0xFF
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagInt:
		return "INT"
	case TagDouble:
		return "DOUBLE"
	case TagString:
		return "STRING"
	case TagRawString:
		return "RAW_STRING"
	case TagBool:
		return "BOOL"
	case TagChar:
		return "CHAR"
	case TagComplex:
		return "COMPLEX"
	case TagNamedPoint:
		return "NAMED_POINT"
	case TagTime:
		return "TIME"
	case TagVector:
		return "VECTOR"
	case TagComplexVector:
		return "COMPLEX_VECTOR"
	default:
		return "UNKNOWN"
	}
}

// DataType maps the tag to the corresponding data type.
func (t Tag) DataType() option.DataType {
	switch t {
	case TagInt:
		return option.DataTypeInt
	case TagDouble:
		return option.DataTypeDouble
	case TagString:
		return option.DataTypeString
	case TagRawString:
		return option.DataTypeRaw
	case TagBool:
		return option.DataTypeBoolean
	case TagChar:
		return option.DataTypeChar
	case TagComplex:
		return option.DataTypeComplex
	case TagNamedPoint:
		return option.DataTypeNamedPoint
	case TagTime:
		return option.DataTypeTime
	case TagVector:
		return option.DataTypeVector
	case TagComplexVector:
		return option.DataTypeComplexVector
	default:
		return option.DataTypeUnknown
	}
}

// Buffer is an encoded typed value. The zero value is an empty buffer.
type Buffer struct {
	data []byte
}

// New creates an empty buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Wrap creates a buffer over b without copying.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b}
}

// FromBytes creates a buffer holding a copy of b.
func FromBytes(b []byte) *Buffer {
	return &Buffer{data: append([]byte(nil), b...)}
}

// Size returns the logical size in bytes.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Capacity returns the allocated capacity in bytes.
func (b *Buffer) Capacity() int {
	if b == nil {
		return 0
	}
	return cap(b.data)
}

// Reserve grows the capacity to at least n without changing the size.
func (b *Buffer) Reserve(n int) error {
	if n < 0 {
		return status.Errorf(status.KindInvalidArgument, "reserve: negative capacity %d", n)
	}
	if n > cap(b.data) {
		grown := make([]byte, len(b.data), n)
		copy(grown, b.data)
		b.data = grown
	}
	return nil
}

// Resize sets the logical size to n, reallocating if n exceeds the capacity.
// New bytes are zero.
func (b *Buffer) Resize(n int) error {
	if n < 0 {
		return status.Errorf(status.KindInvalidArgument, "resize: negative size %d", n)
	}
	if n > cap(b.data) {
		if err := b.Reserve(n); err != nil {
			return err
		}
	}
	old := len(b.data)
	b.data = b.data[:n]
	for i := old; i < n; i++ {
		b.data[i] = 0
	}
	return nil
}

// Bytes returns the encoded bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return &Buffer{}
	}
	return FromBytes(b.data)
}

// Tag returns the stored type tag, or TagUnknown for an empty or
// unrecognized buffer.
func (b *Buffer) Tag() Tag {
	if b == nil || len(b.data) == 0 {
		return TagUnknown
	}
	t := Tag(b.data[0])
	if t.DataType() == option.DataTypeUnknown {
		return TagUnknown
	}
	return t
}

// Type returns the data type of the stored value.
func (b *Buffer) Type() option.DataType {
	return b.Tag().DataType()
}

// IsValid reports whether the buffer holds a well-formed value.
func (b *Buffer) IsValid() bool {
	_, ok := b.decode()
	return ok
}

// Equal reports whether two buffers hold identical bytes.
func (b *Buffer) Equal(o *Buffer) bool {
	if b.Size() != o.Size() {
		return false
	}
	bb, ob := b.Bytes(), o.Bytes()
	for i := range bb {
		if bb[i] != ob[i] {
			return false
		}
	}
	return true
}

// reset replaces the contents, keeping the allocation when it fits.
func (b *Buffer) reset(tag Tag, payload int) []byte {
	n := 1 + payload
	if cap(b.data) < n {
		b.data = make([]byte, n)
	} else {
		b.data = b.data[:n]
	}
	b.data[0] = byte(tag)
	return b.data[1:]
}

func putDouble(p []byte, v float64) {
	binary.LittleEndian.PutUint64(p, math.Float64bits(v))
}

func getDouble(p []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(p))
}

// SetInt stores an integer.
func (b *Buffer) SetInt(v int64) {
	binary.LittleEndian.PutUint64(b.reset(TagInt, 8), uint64(v))
}

// SetDouble stores a double.
func (b *Buffer) SetDouble(v float64) {
	putDouble(b.reset(TagDouble, 8), v)
}

// SetString stores a UTF-8 string.
func (b *Buffer) SetString(s string) {
	p := b.reset(TagString, 4+len(s))
	binary.LittleEndian.PutUint32(p, uint32(len(s)))
	copy(p[4:], s)
}

// SetRaw stores raw bytes as a raw string.
func (b *Buffer) SetRaw(raw []byte) {
	p := b.reset(TagRawString, 4+len(raw))
	binary.LittleEndian.PutUint32(p, uint32(len(raw)))
	copy(p[4:], raw)
}

// SetBool stores a boolean.
func (b *Buffer) SetBool(v bool) {
	p := b.reset(TagBool, 1)
	p[0] = 0
	if v {
		p[0] = 1
	}
}

// SetChar stores a single character.
func (b *Buffer) SetChar(c byte) {
	b.reset(TagChar, 1)[0] = c
}

// SetComplex stores a complex value.
func (b *Buffer) SetComplex(c complex128) {
	p := b.reset(TagComplex, 16)
	putDouble(p, real(c))
	putDouble(p[8:], imag(c))
}

// SetNamedPoint stores a name and a value.
func (b *Buffer) SetNamedPoint(name string, v float64) {
	p := b.reset(TagNamedPoint, 12+len(name))
	putDouble(p, v)
	binary.LittleEndian.PutUint32(p[8:], uint32(len(name)))
	copy(p[12:], name)
}

// SetTime stores a simulated time.
func (b *Buffer) SetTime(t simtime.Time) {
	putDouble(b.reset(TagTime, 8), float64(t))
}

// SetVector stores a vector of doubles.
func (b *Buffer) SetVector(v []float64) {
	p := b.reset(TagVector, 4+8*len(v))
	binary.LittleEndian.PutUint32(p, uint32(len(v)))
	for i, x := range v {
		putDouble(p[4+8*i:], x)
	}
}

// SetComplexVector stores a vector of complex values.
func (b *Buffer) SetComplexVector(v []complex128) {
	p := b.reset(TagComplexVector, 4+16*len(v))
	binary.LittleEndian.PutUint32(p, uint32(len(v)))
	for i, c := range v {
		putDouble(p[4+16*i:], real(c))
		putDouble(p[12+16*i:], imag(c))
	}
}

// FromInt creates a buffer holding an integer.
func FromInt(v int64) *Buffer {
	b := &Buffer{}
	b.SetInt(v)
	return b
}

// FromDouble creates a buffer holding a double.
func FromDouble(v float64) *Buffer {
	b := &Buffer{}
	b.SetDouble(v)
	return b
}

// FromString creates a buffer holding a string.
func FromString(s string) *Buffer {
	b := &Buffer{}
	b.SetString(s)
	return b
}

// FromRaw creates a buffer holding raw bytes.
func FromRaw(raw []byte) *Buffer {
	b := &Buffer{}
	b.SetRaw(raw)
	return b
}

// FromBool creates a buffer holding a boolean.
func FromBool(v bool) *Buffer {
	b := &Buffer{}
	b.SetBool(v)
	return b
}

// FromChar creates a buffer holding a character.
func FromChar(c byte) *Buffer {
	b := &Buffer{}
	b.SetChar(c)
	return b
}

// FromComplex creates a buffer holding a complex value.
func FromComplex(c complex128) *Buffer {
	b := &Buffer{}
	b.SetComplex(c)
	return b
}

// FromNamedPoint creates a buffer holding a named point.
func FromNamedPoint(name string, v float64) *Buffer {
	b := &Buffer{}
	b.SetNamedPoint(name, v)
	return b
}

// FromTime creates a buffer holding a time.
func FromTime(t simtime.Time) *Buffer {
	b := &Buffer{}
	b.SetTime(t)
	return b
}

// FromVector creates a buffer holding a vector.
func FromVector(v []float64) *Buffer {
	b := &Buffer{}
	b.SetVector(v)
	return b
}

// FromComplexVector creates a buffer holding a complex vector.
func FromComplexVector(v []complex128) *Buffer {
	b := &Buffer{}
	b.SetComplexVector(v)
	return b
}

// FromValue creates a buffer from a Go value of a supported type.
func FromValue(v any) (*Buffer, error) {
	switch x := v.(type) {
	case *Buffer:
		return x.Clone(), nil
	case int:
		return FromInt(int64(x)), nil
	case int32:
		return FromInt(int64(x)), nil
	case int64:
		return FromInt(x), nil
	case float32:
		return FromDouble(float64(x)), nil
	case float64:
		return FromDouble(x), nil
	case string:
		return FromString(x), nil
	case []byte:
		return FromRaw(x), nil
	case bool:
		return FromBool(x), nil
	case complex128:
		return FromComplex(x), nil
	case simtime.Time:
		return FromTime(x), nil
	case []float64:
		return FromVector(x), nil
	case []complex128:
		return FromComplexVector(x), nil
	case NamedPoint:
		return FromNamedPoint(x.Name, x.Value), nil
	}
	return nil, status.Errorf(status.KindInvalidArgument, "unsupported value type %T", v)
}

// NamedPoint is a name paired with a double.
type NamedPoint struct {
	Name  string
	Value float64
}
