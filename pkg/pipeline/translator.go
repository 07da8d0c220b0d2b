package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/fedsim/fedsim-go/pkg/databuffer"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// TranslatorOperator converts between encoded values and message payloads.
type TranslatorOperator interface {
	// ToMessage converts a value published to the translator into a message payload.
	ToMessage(value *databuffer.Buffer) ([]byte, error)

	// ToValue converts a message sent to the translator into a value.
	ToValue(payload []byte) (*databuffer.Buffer, error)
}

// NewTranslator creates a built-in translator of type t.
func NewTranslator(t option.TranslatorType) (TranslatorOperator, error) {
	switch t {
	case option.TranslatorJSON:
		return JSONTranslator{}, nil
	case option.TranslatorBinary:
		return BinaryTranslator{}, nil
	case option.TranslatorCustom:
		return &CustomTranslator{}, nil
	}
	return nil, status.Errorf(status.KindInvalidArgument, "unknown translator type %d", int(t))
}

// BinaryTranslator carries the encoded value bytes as the message payload.
type BinaryTranslator struct{}

// ToMessage implements TranslatorOperator.
func (BinaryTranslator) ToMessage(value *databuffer.Buffer) ([]byte, error) {
	return value.Clone().Bytes(), nil
}

// ToValue implements TranslatorOperator. Payloads that are not encoded
// values become raw strings.
func (BinaryTranslator) ToValue(payload []byte) (*databuffer.Buffer, error) {
	b := databuffer.FromBytes(payload)
	if !b.IsValid() {
		return databuffer.FromRaw(payload), nil
	}
	return b, nil
}

// CustomTranslator runs user conversions. A missing conversion falls back to
// the binary translator.
type CustomTranslator struct {
	ToMessageFunc func(value *databuffer.Buffer) []byte
	ToValueFunc   func(payload []byte) *databuffer.Buffer
}

// ToMessage implements TranslatorOperator.
func (t *CustomTranslator) ToMessage(value *databuffer.Buffer) ([]byte, error) {
	if t.ToMessageFunc == nil {
		return BinaryTranslator{}.ToMessage(value)
	}
	return t.ToMessageFunc(value), nil
}

// ToValue implements TranslatorOperator.
func (t *CustomTranslator) ToValue(payload []byte) (*databuffer.Buffer, error) {
	if t.ToValueFunc == nil {
		return BinaryTranslator{}.ToValue(payload)
	}
	out := t.ToValueFunc(payload)
	if out == nil {
		return nil, status.Errorf(status.KindInvalidArgument, "translator callback returned no value")
	}
	return out, nil
}

// JSONTranslator encodes values as {"type":"double","value":42.5} documents.
type JSONTranslator struct{}

type jsonValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type jsonNamedPoint struct {
	Name  string     `json:"name"`
	Value jsonNumber `json:"value"`
}

// jsonNumber is a float64 that writes NaN, Inf and -Inf as those strings.
type jsonNumber float64

func (n jsonNumber) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

func (n *jsonNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*n = jsonNumber(f)
		return nil
	}
	switch s {
	case "NaN":
		*n = jsonNumber(math.NaN())
	case "Inf", "+Inf":
		*n = jsonNumber(math.Inf(1))
	case "-Inf":
		*n = jsonNumber(math.Inf(-1))
	default:
		return fmt.Errorf("not a number: %q", s)
	}
	return nil
}

func jsonNumbers(v []float64) []jsonNumber {
	out := make([]jsonNumber, len(v))
	for i, f := range v {
		out[i] = jsonNumber(f)
	}
	return out
}

func floats(v []jsonNumber) []float64 {
	out := make([]float64, len(v))
	for i, n := range v {
		out[i] = float64(n)
	}
	return out
}

// ToMessage implements TranslatorOperator.
func (JSONTranslator) ToMessage(value *databuffer.Buffer) ([]byte, error) {
	t := value.Type()
	var v any
	switch t {
	case option.DataTypeInt:
		v = value.ToInt()
	case option.DataTypeDouble:
		v = jsonNumber(value.ToDouble())
	case option.DataTypeBoolean:
		v = value.ToBool()
	case option.DataTypeTime:
		v = jsonNumber(value.ToTime())
	case option.DataTypeChar:
		v = string([]byte{value.ToChar()})
	case option.DataTypeComplex:
		c := value.ToComplex()
		v = []jsonNumber{jsonNumber(real(c)), jsonNumber(imag(c))}
	case option.DataTypeVector:
		v = jsonNumbers(value.ToVector())
	case option.DataTypeComplexVector:
		cv := value.ToComplexVector()
		pairs := make([][2]jsonNumber, len(cv))
		for i, c := range cv {
			pairs[i] = [2]jsonNumber{jsonNumber(real(c)), jsonNumber(imag(c))}
		}
		v = pairs
	case option.DataTypeNamedPoint:
		np := value.ToNamedPoint()
		v = jsonNamedPoint{Name: np.Name, Value: jsonNumber(np.Value)}
	case option.DataTypeRaw:
		t = option.DataTypeString
		v = string(value.ToRaw())
	default:
		t = option.DataTypeString
		v = value.ToString()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", t, err)
	}
	return json.Marshal(jsonValue{Type: t.String(), Value: raw})
}

// ToValue implements TranslatorOperator. Documents without a type field are
// decoded by their JSON kind: numbers as doubles, strings as strings,
// booleans as booleans and arrays of numbers as vectors.
func (JSONTranslator) ToValue(payload []byte) (*databuffer.Buffer, error) {
	var doc jsonValue
	if err := json.Unmarshal(payload, &doc); err != nil || doc.Type == "" {
		return decodeUntyped(payload)
	}
	t := option.ParseDataType(doc.Type)
	bad := func(err error) (*databuffer.Buffer, error) {
		return nil, status.Wrap(status.KindInvalidArgument, err, "invalid %s value", doc.Type)
	}
	switch t {
	case option.DataTypeInt:
		var v int64
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			var f float64
			if err2 := json.Unmarshal(doc.Value, &f); err2 != nil {
				return bad(err)
			}
			v = int64(f)
		}
		return databuffer.FromInt(v), nil
	case option.DataTypeDouble:
		var v jsonNumber
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return bad(err)
		}
		return databuffer.FromDouble(float64(v)), nil
	case option.DataTypeBoolean:
		var v bool
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return bad(err)
		}
		return databuffer.FromBool(v), nil
	case option.DataTypeTime:
		var v jsonNumber
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return bad(err)
		}
		return databuffer.FromTime(simtime.Time(v)), nil
	case option.DataTypeChar:
		var v string
		if err := json.Unmarshal(doc.Value, &v); err != nil || len(v) == 0 {
			return bad(fmt.Errorf("want one character"))
		}
		return databuffer.FromChar(v[0]), nil
	case option.DataTypeComplex:
		var v []jsonNumber
		if err := json.Unmarshal(doc.Value, &v); err != nil || len(v) != 2 {
			return bad(fmt.Errorf("want [real, imag]"))
		}
		return databuffer.FromComplex(complex(float64(v[0]), float64(v[1]))), nil
	case option.DataTypeVector:
		var v []jsonNumber
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return bad(err)
		}
		return databuffer.FromVector(floats(v)), nil
	case option.DataTypeComplexVector:
		var v [][2]jsonNumber
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return bad(err)
		}
		cv := make([]complex128, len(v))
		for i, p := range v {
			cv[i] = complex(float64(p[0]), float64(p[1]))
		}
		return databuffer.FromComplexVector(cv), nil
	case option.DataTypeNamedPoint:
		var v jsonNamedPoint
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return bad(err)
		}
		return databuffer.FromNamedPoint(v.Name, float64(v.Value)), nil
	case option.DataTypeString, option.DataTypeRaw, option.DataTypeJSON, option.DataTypeAny:
		var v string
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return databuffer.FromString(string(doc.Value)), nil
		}
		return databuffer.FromString(v), nil
	}
	return nil, status.Errorf(status.KindInvalidArgument, "unknown value type %q", doc.Type)
}

func decodeUntyped(payload []byte) (*databuffer.Buffer, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return databuffer.FromString(string(payload)), nil
	}
	switch x := v.(type) {
	case float64:
		return databuffer.FromDouble(x), nil
	case string:
		return databuffer.FromString(x), nil
	case bool:
		return databuffer.FromBool(x), nil
	case []any:
		vec := make([]float64, 0, len(x))
		for _, e := range x {
			f, ok := e.(float64)
			if !ok {
				return databuffer.FromString(string(payload)), nil
			}
			vec = append(vec, f)
		}
		return databuffer.FromVector(vec), nil
	}
	return databuffer.FromString(string(payload)), nil
}

// Compile-time interface satisfaction checks.
var (
	_ TranslatorOperator = JSONTranslator{}
	_ TranslatorOperator = BinaryTranslator{}
	_ TranslatorOperator = (*CustomTranslator)(nil)
)
