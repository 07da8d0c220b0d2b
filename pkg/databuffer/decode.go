package databuffer

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// value is a decoded buffer.
type value struct {
	tag  Tag
	i    int64
	d    float64
	c    complex128
	s    []byte
	vec  []float64
	cvec []complex128
}

func (b *Buffer) decode() (value, bool) {
	tag := b.Tag()
	if tag == TagUnknown {
		return value{tag: TagUnknown}, false
	}
	p := b.data[1:]
	v := value{tag: tag}
	switch tag {
	case TagInt:
		if len(p) < 8 {
			return value{tag: TagUnknown}, false
		}
		v.i = int64(binary.LittleEndian.Uint64(p))
	case TagDouble, TagTime:
		if len(p) < 8 {
			return value{tag: TagUnknown}, false
		}
		v.d = getDouble(p)
	case TagString, TagRawString:
		s, ok := lengthPrefixed(p)
		if !ok {
			return value{tag: TagUnknown}, false
		}
		v.s = s
	case TagBool, TagChar:
		if len(p) < 1 {
			return value{tag: TagUnknown}, false
		}
		v.i = int64(p[0])
	case TagComplex:
		if len(p) < 16 {
			return value{tag: TagUnknown}, false
		}
		v.c = complex(getDouble(p), getDouble(p[8:]))
	case TagNamedPoint:
		if len(p) < 8 {
			return value{tag: TagUnknown}, false
		}
		v.d = getDouble(p)
		s, ok := lengthPrefixed(p[8:])
		if !ok {
			return value{tag: TagUnknown}, false
		}
		v.s = s
	case TagVector:
		if len(p) < 4 {
			return value{tag: TagUnknown}, false
		}
		n := int(binary.LittleEndian.Uint32(p))
		if len(p)-4 < 8*n {
			return value{tag: TagUnknown}, false
		}
		v.vec = make([]float64, n)
		for i := range v.vec {
			v.vec[i] = getDouble(p[4+8*i:])
		}
	case TagComplexVector:
		if len(p) < 4 {
			return value{tag: TagUnknown}, false
		}
		n := int(binary.LittleEndian.Uint32(p))
		if len(p)-4 < 16*n {
			return value{tag: TagUnknown}, false
		}
		v.cvec = make([]complex128, n)
		for i := range v.cvec {
			v.cvec[i] = complex(getDouble(p[4+16*i:]), getDouble(p[12+16*i:]))
		}
	}
	return v, true
}

func lengthPrefixed(p []byte) ([]byte, bool) {
	if len(p) < 4 {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(p))
	if len(p)-4 < n {
		return nil, false
	}
	return p[4 : 4+n], true
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// ToDouble returns the value as a double.
func (b *Buffer) ToDouble() float64 {
	v, _ := b.decode()
	switch v.tag {
	case TagInt, TagBool, TagChar:
		return float64(v.i)
	case TagDouble, TagTime, TagNamedPoint:
		return v.d
	case TagComplex:
		if imag(v.c) == 0 {
			return real(v.c)
		}
		return cmplx.Abs(v.c)
	case TagVector:
		if len(v.vec) == 1 {
			return v.vec[0]
		}
		return norm(v.vec)
	case TagComplexVector:
		if len(v.cvec) == 1 {
			return cmplx.Abs(v.cvec[0])
		}
		var sum float64
		for _, c := range v.cvec {
			a := cmplx.Abs(c)
			sum += a * a
		}
		return math.Sqrt(sum)
	case TagString, TagRawString:
		return parseDouble(string(v.s))
	}
	return 0
}

// ToInt returns the value as an integer.
func (b *Buffer) ToInt() int64 {
	v, _ := b.decode()
	switch v.tag {
	case TagInt, TagBool, TagChar:
		return v.i
	case TagString, TagRawString:
		s := strings.TrimSpace(string(v.s))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		return int64(parseDouble(s))
	case TagUnknown:
		return 0
	}
	return int64(b.ToDouble())
}

// ToBool returns the value as a boolean.
func (b *Buffer) ToBool() bool {
	v, _ := b.decode()
	switch v.tag {
	case TagBool, TagInt:
		return v.i != 0
	case TagChar:
		return v.i != 0 && v.i != '0'
	case TagString, TagRawString:
		switch strings.ToLower(strings.TrimSpace(string(v.s))) {
		case "", "0", "false", "f", "off", "no", "disabled":
			return false
		}
		return true
	case TagUnknown:
		return false
	}
	return b.ToDouble() != 0
}

// ToChar returns the value as a single character.
func (b *Buffer) ToChar() byte {
	v, _ := b.decode()
	switch v.tag {
	case TagChar:
		return byte(v.i)
	case TagBool:
		if v.i != 0 {
			return '1'
		}
		return '0'
	case TagString, TagRawString, TagNamedPoint:
		if len(v.s) == 0 {
			return 0
		}
		return v.s[0]
	case TagInt:
		return byte(v.i)
	case TagUnknown:
		return 0
	}
	return byte(int64(b.ToDouble()))
}

// ToString returns the value formatted as a string.
func (b *Buffer) ToString() string {
	v, _ := b.decode()
	switch v.tag {
	case TagString, TagRawString, TagNamedPoint:
		return string(v.s)
	case TagInt:
		return strconv.FormatInt(v.i, 10)
	case TagDouble, TagTime:
		return formatDouble(v.d)
	case TagBool:
		if v.i != 0 {
			return "1"
		}
		return "0"
	case TagChar:
		return string([]byte{byte(v.i)})
	case TagComplex:
		return formatComplex(v.c)
	case TagVector:
		parts := make([]string, len(v.vec))
		for i, x := range v.vec {
			parts[i] = formatDouble(x)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case TagComplexVector:
		parts := make([]string, len(v.cvec))
		for i, c := range v.cvec {
			parts[i] = formatComplex(c)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}

// ToRaw returns the value as raw bytes. String types yield their bytes
// unchanged; other types yield their string form.
func (b *Buffer) ToRaw() []byte {
	v, _ := b.decode()
	if v.tag == TagString || v.tag == TagRawString {
		return append([]byte(nil), v.s...)
	}
	return []byte(b.ToString())
}

// ToComplex returns the value as a complex number.
func (b *Buffer) ToComplex() complex128 {
	v, _ := b.decode()
	switch v.tag {
	case TagComplex:
		return v.c
	case TagVector:
		switch len(v.vec) {
		case 0:
			return 0
		case 1:
			return complex(v.vec[0], 0)
		default:
			return complex(v.vec[0], v.vec[1])
		}
	case TagComplexVector:
		if len(v.cvec) == 0 {
			return 0
		}
		return v.cvec[0]
	case TagString, TagRawString:
		return parseComplex(string(v.s))
	case TagUnknown:
		return 0
	}
	return complex(b.ToDouble(), 0)
}

// ToNamedPoint returns the value as a named point. A plain string becomes a
// name with a NaN value; a number becomes the point "value".
func (b *Buffer) ToNamedPoint() NamedPoint {
	v, _ := b.decode()
	switch v.tag {
	case TagNamedPoint:
		return NamedPoint{Name: string(v.s), Value: v.d}
	case TagString, TagRawString:
		return NamedPoint{Name: string(v.s), Value: math.NaN()}
	case TagUnknown:
		return NamedPoint{}
	}
	return NamedPoint{Name: "value", Value: b.ToDouble()}
}

// ToTime returns the value as a simulated time.
func (b *Buffer) ToTime() simtime.Time {
	return simtime.Time(b.ToDouble())
}

// ToVector returns the value as a vector of doubles.
func (b *Buffer) ToVector() []float64 {
	v, _ := b.decode()
	switch v.tag {
	case TagVector:
		return v.vec
	case TagComplexVector:
		out := make([]float64, 0, 2*len(v.cvec))
		for _, c := range v.cvec {
			out = append(out, real(c), imag(c))
		}
		return out
	case TagComplex:
		return []float64{real(v.c), imag(v.c)}
	case TagString, TagRawString:
		return parseVector(string(v.s))
	case TagUnknown:
		return nil
	}
	return []float64{b.ToDouble()}
}

// ToComplexVector returns the value as a vector of complex numbers.
func (b *Buffer) ToComplexVector() []complex128 {
	v, _ := b.decode()
	switch v.tag {
	case TagComplexVector:
		return v.cvec
	case TagVector:
		out := make([]complex128, len(v.vec))
		for i, x := range v.vec {
			out[i] = complex(x, 0)
		}
		return out
	case TagUnknown:
		return nil
	}
	return []complex128{b.ToComplex()}
}

// StringSize returns the length of the string form of the value.
func (b *Buffer) StringSize() int {
	v, _ := b.decode()
	switch v.tag {
	case TagString, TagRawString, TagNamedPoint:
		return len(v.s)
	}
	return len(b.ToString())
}

// VectorSize returns the number of elements of the vector form of the value.
func (b *Buffer) VectorSize() int {
	v, _ := b.decode()
	switch v.tag {
	case TagVector:
		return len(v.vec)
	case TagComplexVector:
		return len(v.cvec)
	case TagUnknown:
		return 0
	}
	return len(b.ToVector())
}

// ConvertToType re-encodes the value in place as the given type.
func (b *Buffer) ConvertToType(t option.DataType) error {
	if !b.IsValid() {
		return status.Errorf(status.KindInvalidArgument, "convert: buffer does not hold a valid value")
	}
	switch t {
	case option.DataTypeInt:
		b.SetInt(b.ToInt())
	case option.DataTypeDouble:
		b.SetDouble(b.ToDouble())
	case option.DataTypeBoolean:
		b.SetBool(b.ToBool())
	case option.DataTypeChar:
		b.SetChar(b.ToChar())
	case option.DataTypeTime:
		b.SetTime(b.ToTime())
	case option.DataTypeString, option.DataTypeJSON:
		b.SetString(b.ToString())
	case option.DataTypeRaw:
		b.SetRaw(b.ToRaw())
	case option.DataTypeComplex:
		b.SetComplex(b.ToComplex())
	case option.DataTypeVector:
		b.SetVector(append([]float64(nil), b.ToVector()...))
	case option.DataTypeComplexVector:
		b.SetComplexVector(append([]complex128(nil), b.ToComplexVector()...))
	case option.DataTypeNamedPoint:
		np := b.ToNamedPoint()
		b.SetNamedPoint(np.Name, np.Value)
	case option.DataTypeAny:
	default:
		return status.Errorf(status.KindInvalidArgument, "convert: unsupported target type %s", t)
	}
	return nil
}

func formatDouble(d float64) string {
	return strconv.FormatFloat(d, 'g', -1, 64)
}

func formatComplex(c complex128) string {
	im := imag(c)
	sign := "+"
	if im < 0 || math.Signbit(im) {
		sign = "-"
		im = -im
	}
	return formatDouble(real(c)) + sign + formatDouble(im) + "j"
}

func parseDouble(s string) float64 {
	s = strings.TrimSpace(s)
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return d
	}
	switch strings.ToLower(s) {
	case "true", "on", "yes":
		return 1
	}
	if strings.HasPrefix(s, "[") {
		return norm(parseVector(s))
	}
	return 0
}

func parseComplex(s string) complex128 {
	s = strings.TrimSpace(s)
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return complex(d, 0)
	}
	t := strings.NewReplacer("j", "i", " ", "").Replace(s)
	if c, err := strconv.ParseComplex(t, 128); err == nil {
		return c
	}
	return 0
}

func parseVector(s string) []float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return []float64{}
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		d, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			d = 0
		}
		out = append(out, d)
	}
	return out
}
