package federate

import (
	"context"
	"math"
	"slices"
	"strconv"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/databuffer"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Input receives values from the publications linked to it.
type Input struct {
	iface
	dataType option.DataType

	// Guarded by fed.mu.
	sources    []*source
	targets    []string
	value      *databuffer.Buffer
	fallback   *databuffer.Buffer
	updated    bool
	lastUpdate simtime.Time
	minChange  float64
}

// source is one publication feeding an input.
type source struct {
	handle wire.GlobalHandle
	name   string
	typ    string
	units  string
	value  *databuffer.Buffer
	time   simtime.Time
	seq    uint64
}

// RegisterInput registers an input with a local name.
func (f *Federate) RegisterInput(ctx context.Context, name string, t option.DataType, units string) (*Input, error) {
	return f.registerInput(ctx, f.localName(name), t.String(), units)
}

// RegisterTypeInput registers an input with a local name and a type given
// by name.
func (f *Federate) RegisterTypeInput(ctx context.Context, name, typ, units string) (*Input, error) {
	return f.registerInput(ctx, f.localName(name), typ, units)
}

// RegisterGlobalInput registers an input with a global name.
func (f *Federate) RegisterGlobalInput(ctx context.Context, name string, t option.DataType, units string) (*Input, error) {
	return f.registerInput(ctx, name, t.String(), units)
}

// RegisterGlobalTypeInput registers an input with a global name and a type
// given by name.
func (f *Federate) RegisterGlobalTypeInput(ctx context.Context, name, typ, units string) (*Input, error) {
	return f.registerInput(ctx, name, typ, units)
}

// RegisterSubscription registers an unnamed input linked to the named
// publication.
func (f *Federate) RegisterSubscription(ctx context.Context, target, units string) (*Input, error) {
	if target == "" {
		return nil, status.Errorf(status.KindInvalidArgument, "subscription target is empty")
	}
	f.mu.Lock()
	n := len(f.inputs)
	f.mu.Unlock()
	in, err := f.registerInput(ctx, f.localName("_input_"+strconv.Itoa(n)), "", units)
	if err != nil {
		return nil, err
	}
	if err := in.AddTarget(target); err != nil {
		return nil, err
	}
	return in, nil
}

func (f *Federate) registerInput(ctx context.Context, name, typ, units string) (*Input, error) {
	dt := option.ParseDataType(typ)
	if dt == option.DataTypeUnknown {
		return nil, status.Errorf(status.KindInvalidArgument, "unknown input type %q", typ)
	}
	base, err := f.register(ctx, core.Interface{Kind: wire.KindInput, Name: name, Type: typ, Units: units})
	if err != nil {
		return nil, err
	}
	in := &Input{iface: base, dataType: dt, lastUpdate: simtime.Invalid}
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.adopt(in.handle, in)
	f.mu.Unlock()
	return in, nil
}

// GetInput returns an input by global or local name, nil if there is none.
func (f *Federate) GetInput(name string) *Input {
	local := f.localName(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.inputs {
		if in.name == name || in.name == local {
			return in
		}
	}
	return nil
}

// GetSubscription returns the first input linked to the named publication,
// nil if there is none.
func (f *Federate) GetSubscription(target string) *Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.inputs {
		if slices.Contains(in.targets, target) {
			return in
		}
		for _, s := range in.sources {
			if s.name == target {
				return in
			}
		}
	}
	return nil
}

// GetInputByIndex returns the i-th registered input, nil if i is out of
// range.
func (f *Federate) GetInputByIndex(i int) *Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.inputs) {
		return nil
	}
	return f.inputs[i]
}

// InputCount returns the number of registered inputs.
func (f *Federate) InputCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

// ClearUpdates clears the updated mark of every input.
func (f *Federate) ClearUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, in := range f.inputs {
		in.updated = false
	}
}

// DataType returns the declared data type.
func (in *Input) DataType() option.DataType {
	return in.dataType
}

// AddTarget links a named publication to the input.
func (in *Input) AddTarget(publication string) error {
	if err := in.fed.session.Link(wire.LinkData, publication, in.name); err != nil {
		return err
	}
	in.fed.mu.Lock()
	if !slices.Contains(in.targets, publication) {
		in.targets = append(in.targets, publication)
	}
	in.fed.mu.Unlock()
	return nil
}

// Targets returns the publications the input was asked to link to.
func (in *Input) Targets() []string {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	return append([]string(nil), in.targets...)
}

// RemoveTarget removes the link from a named publication.
func (in *Input) RemoveTarget(publication string) error {
	if err := in.fed.session.Unlink(wire.KindInput, in.name, publication); err != nil {
		return err
	}
	in.fed.mu.Lock()
	before := len(in.sources)
	in.sources = slices.DeleteFunc(in.sources, func(s *source) bool { return s.name == publication })
	in.connections = max(in.connections-(before-len(in.sources)), 0)
	in.targets = slices.DeleteFunc(in.targets, func(t string) bool { return t == publication })
	in.fed.mu.Unlock()
	return nil
}

// SetMinimumChange ignores updates that differ from the current value by
// no more than tol. A negative tol disables it.
func (in *Input) SetMinimumChange(tol float64) {
	in.fed.mu.Lock()
	in.minChange = max(tol, 0)
	in.fed.mu.Unlock()
}

// GetPublicationType returns the type of the first linked source.
func (in *Input) GetPublicationType() string {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	if len(in.sources) == 0 {
		return ""
	}
	return in.sources[0].typ
}

// GetInjectionUnits returns the units of the first linked source.
func (in *Input) GetInjectionUnits() string {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	if len(in.sources) == 0 {
		return ""
	}
	return in.sources[0].units
}

// SourceCount returns the number of linked sources.
func (in *Input) SourceCount() int {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	return len(in.sources)
}

// IsUpdated reports whether a new value arrived since the last read.
func (in *Input) IsUpdated() bool {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	return in.updated
}

// LastUpdateTime returns the time of the last accepted update,
// simtime.Invalid if none was received.
func (in *Input) LastUpdateTime() simtime.Time {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	return in.lastUpdate
}

// ClearUpdate clears the updated mark.
func (in *Input) ClearUpdate() {
	in.fed.mu.Lock()
	in.updated = false
	in.fed.mu.Unlock()
}

// SetDefault sets the value returned before any update arrives.
func (in *Input) SetDefault(v any) error {
	b, err := databuffer.FromValue(v)
	if err != nil {
		return err
	}
	in.fed.mu.Lock()
	in.fallback = b
	in.fed.mu.Unlock()
	return nil
}

// SetDefaultDouble sets a double default.
func (in *Input) SetDefaultDouble(v float64) { in.setDefault(databuffer.FromDouble(v)) }

// SetDefaultInteger sets an integer default.
func (in *Input) SetDefaultInteger(v int64) { in.setDefault(databuffer.FromInt(v)) }

// SetDefaultString sets a string default.
func (in *Input) SetDefaultString(v string) { in.setDefault(databuffer.FromString(v)) }

// SetDefaultBoolean sets a boolean default.
func (in *Input) SetDefaultBoolean(v bool) { in.setDefault(databuffer.FromBool(v)) }

// SetDefaultBytes sets a raw default.
func (in *Input) SetDefaultBytes(v []byte) { in.setDefault(databuffer.FromRaw(v)) }

// SetDefaultTime sets a time default.
func (in *Input) SetDefaultTime(v simtime.Time) { in.setDefault(databuffer.FromTime(v)) }

// SetDefaultChar sets a character default.
func (in *Input) SetDefaultChar(v byte) { in.setDefault(databuffer.FromChar(v)) }

// SetDefaultComplex sets a complex default.
func (in *Input) SetDefaultComplex(v complex128) { in.setDefault(databuffer.FromComplex(v)) }

// SetDefaultVector sets a vector default.
func (in *Input) SetDefaultVector(v []float64) { in.setDefault(databuffer.FromVector(v)) }

// SetDefaultNamedPoint sets a named point default.
func (in *Input) SetDefaultNamedPoint(name string, v float64) {
	in.setDefault(databuffer.FromNamedPoint(name, v))
}

func (in *Input) setDefault(b *databuffer.Buffer) {
	in.fed.mu.Lock()
	in.fallback = b
	in.fed.mu.Unlock()
}

// GetDataBuffer returns the current value and clears the updated mark. It
// returns the default, or an empty buffer, before any update.
func (in *Input) GetDataBuffer() *databuffer.Buffer {
	in.fed.mu.Lock()
	defer in.fed.mu.Unlock()
	in.updated = false
	switch {
	case in.value != nil:
		return in.value.Clone()
	case in.fallback != nil:
		return in.fallback.Clone()
	}
	return databuffer.New(0)
}

// GetBytes returns the current value as raw bytes.
func (in *Input) GetBytes() []byte { return in.GetDataBuffer().ToRaw() }

// GetString returns the current value as a string.
func (in *Input) GetString() string { return in.GetDataBuffer().ToString() }

// GetInteger returns the current value as an integer.
func (in *Input) GetInteger() int64 { return in.GetDataBuffer().ToInt() }

// GetBoolean returns the current value as a boolean.
func (in *Input) GetBoolean() bool { return in.GetDataBuffer().ToBool() }

// GetDouble returns the current value as a double.
func (in *Input) GetDouble() float64 { return in.GetDataBuffer().ToDouble() }

// GetTime returns the current value as a time.
func (in *Input) GetTime() simtime.Time { return in.GetDataBuffer().ToTime() }

// GetChar returns the current value as a character.
func (in *Input) GetChar() byte { return in.GetDataBuffer().ToChar() }

// GetComplex returns the current value as a complex value.
func (in *Input) GetComplex() complex128 { return in.GetDataBuffer().ToComplex() }

// GetVector returns the current value as a vector.
func (in *Input) GetVector() []float64 { return in.GetDataBuffer().ToVector() }

// GetComplexVector returns the current value as a complex vector.
func (in *Input) GetComplexVector() []complex128 { return in.GetDataBuffer().ToComplexVector() }

// GetNamedPoint returns the current value as a named point.
func (in *Input) GetNamedPoint() databuffer.NamedPoint { return in.GetDataBuffer().ToNamedPoint() }

// addSource records a linked source. Requires mu.
func (in *Input) addSource(n core.LinkNotice) *source {
	for _, s := range in.sources {
		if s.handle == n.Remote {
			return s
		}
	}
	s := &source{handle: n.Remote, name: n.Name, typ: n.Type, units: n.Units, time: simtime.Invalid}
	in.sources = append(in.sources, s)
	return s
}

// receive stores a value from a source and recomputes the input value.
// Requires mu.
func (in *Input) receive(v core.Value, seq uint64, onlyOnChange bool) {
	s := in.addSource(core.LinkNotice{Remote: v.Source, Name: v.Name, Type: v.Type, Units: v.Units})
	b := databuffer.FromBytes(v.Payload)
	if !b.IsValid() {
		in.fed.logger.Load().Warn("dropping malformed value", "input", in.name, "source", v.Name)
		return
	}
	s.value, s.time, s.seq = b, v.Time, seq

	next := in.combine()
	if next == nil {
		return
	}
	detect := onlyOnChange || in.minChange > 0 || in.options[option.HandleOptionOnlyUpdateOnChange] != 0
	if detect && !changed(in.value, next, in.minChange) {
		return
	}
	in.value = next
	in.updated = true
	in.lastUpdate = v.Time
}

// combine merges the source values with the multi-input method. Requires mu.
func (in *Input) combine() *databuffer.Buffer {
	var live []*source
	for _, s := range in.sources {
		if s.value != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return nil
	}

	method := option.MultiInputMethod(in.options[option.HandleOptionMultiInputHandlingMethod])
	switch method {
	case option.MultiInputVectorize:
		var out []float64
		for _, s := range live {
			out = append(out, s.value.ToVector()...)
		}
		return databuffer.FromVector(out)
	case option.MultiInputAnd, option.MultiInputOr:
		acc := method == option.MultiInputAnd
		for _, s := range live {
			if method == option.MultiInputAnd {
				acc = acc && s.value.ToBool()
			} else {
				acc = acc || s.value.ToBool()
			}
		}
		return databuffer.FromBool(acc)
	case option.MultiInputSum, option.MultiInputDiff, option.MultiInputMax,
		option.MultiInputMin, option.MultiInputAverage:
		return databuffer.FromDouble(reduce(method, live))
	}

	if p, ok := in.options[option.HandleOptionInputPriorityLocation]; ok && p >= 0 && p < len(in.sources) {
		if s := in.sources[p]; s.value != nil {
			return s.value
		}
	}
	latest := live[0]
	for _, s := range live[1:] {
		if s.time > latest.time || (s.time == latest.time && s.seq > latest.seq) {
			latest = s
		}
	}
	return latest.value
}

func reduce(method option.MultiInputMethod, live []*source) float64 {
	first := live[0].value.ToDouble()
	acc := first
	for _, s := range live[1:] {
		v := s.value.ToDouble()
		switch method {
		case option.MultiInputSum, option.MultiInputAverage:
			acc += v
		case option.MultiInputDiff:
			acc -= v
		case option.MultiInputMax:
			acc = math.Max(acc, v)
		case option.MultiInputMin:
			acc = math.Min(acc, v)
		}
	}
	if method == option.MultiInputAverage {
		acc /= float64(len(live))
	}
	return acc
}
