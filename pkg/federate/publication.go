package federate

import (
	"context"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/databuffer"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Publication sends values to the inputs linked to it.
type Publication struct {
	iface
	dataType option.DataType

	// Guarded by fed.mu.
	last      *databuffer.Buffer
	minChange float64
	targets   []string
}

// RegisterPublication registers a publication with a local name.
func (f *Federate) RegisterPublication(ctx context.Context, name string, t option.DataType, units string) (*Publication, error) {
	return f.registerPublication(ctx, f.localName(name), t.String(), units)
}

// RegisterTypePublication registers a publication with a local name and a
// type given by name.
func (f *Federate) RegisterTypePublication(ctx context.Context, name, typ, units string) (*Publication, error) {
	return f.registerPublication(ctx, f.localName(name), typ, units)
}

// RegisterGlobalPublication registers a publication with a global name.
func (f *Federate) RegisterGlobalPublication(ctx context.Context, name string, t option.DataType, units string) (*Publication, error) {
	return f.registerPublication(ctx, name, t.String(), units)
}

// RegisterGlobalTypePublication registers a publication with a global name
// and a type given by name.
func (f *Federate) RegisterGlobalTypePublication(ctx context.Context, name, typ, units string) (*Publication, error) {
	return f.registerPublication(ctx, name, typ, units)
}

func (f *Federate) registerPublication(ctx context.Context, name, typ, units string) (*Publication, error) {
	dt := option.ParseDataType(typ)
	if dt == option.DataTypeUnknown {
		return nil, status.Errorf(status.KindInvalidArgument, "unknown publication type %q", typ)
	}
	base, err := f.register(ctx, core.Interface{Kind: wire.KindPublication, Name: name, Type: typ, Units: units})
	if err != nil {
		return nil, err
	}
	p := &Publication{iface: base, dataType: dt}
	f.mu.Lock()
	f.publications = append(f.publications, p)
	f.adopt(p.handle, p)
	f.mu.Unlock()
	return p, nil
}

// GetPublication returns a publication by global or local name, nil if
// there is none.
func (f *Federate) GetPublication(name string) *Publication {
	local := f.localName(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.publications {
		if p.name == name || p.name == local {
			return p
		}
	}
	return nil
}

// GetPublicationByIndex returns the i-th registered publication, nil if i is
// out of range.
func (f *Federate) GetPublicationByIndex(i int) *Publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.publications) {
		return nil
	}
	return f.publications[i]
}

// PublicationCount returns the number of registered publications.
func (f *Federate) PublicationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.publications)
}

// DataType returns the declared data type.
func (p *Publication) DataType() option.DataType {
	return p.dataType
}

// SetMinimumChange suppresses numeric publications that differ from the
// last published value by no more than tol. A negative tol disables it.
func (p *Publication) SetMinimumChange(tol float64) {
	p.fed.mu.Lock()
	p.minChange = max(tol, 0)
	p.fed.mu.Unlock()
}

// AddTarget links the publication to a named input.
func (p *Publication) AddTarget(input string) error {
	return p.fed.session.Link(wire.LinkData, p.name, input)
}

// Targets returns the inputs the publication is known to feed.
func (p *Publication) Targets() []string {
	p.fed.mu.Lock()
	defer p.fed.mu.Unlock()
	return append([]string(nil), p.targets...)
}

// PublishDataBuffer publishes an encoded value at the current time.
func (p *Publication) PublishDataBuffer(b *databuffer.Buffer) error {
	if !b.IsValid() {
		return status.Errorf(status.KindInvalidArgument, "publish %q: buffer does not hold a valid value", p.name)
	}
	b = b.Clone()
	if p.dataType != option.DataTypeAny {
		if err := b.ConvertToType(p.dataType); err != nil {
			return err
		}
	}

	f := p.fed
	f.mu.Lock()
	if err := f.sendError("publish"); err != nil {
		f.mu.Unlock()
		return err
	}
	detect := p.minChange > 0 || f.flags[option.FlagOnlyTransmitOnChange] || p.options[option.HandleOptionOnlyTransmitOnChange] != 0
	if detect && !changed(p.last, b, p.minChange) {
		f.mu.Unlock()
		return nil
	}
	p.last = b
	t := f.current
	f.mu.Unlock()
	return f.session.Publish(p.handle, t, b.Bytes())
}

// PublishBytes publishes raw bytes.
func (p *Publication) PublishBytes(v []byte) error {
	return p.PublishDataBuffer(databuffer.FromRaw(v))
}

// PublishString publishes a string.
func (p *Publication) PublishString(v string) error {
	return p.PublishDataBuffer(databuffer.FromString(v))
}

// PublishInteger publishes an integer.
func (p *Publication) PublishInteger(v int64) error {
	return p.PublishDataBuffer(databuffer.FromInt(v))
}

// PublishBoolean publishes a boolean.
func (p *Publication) PublishBoolean(v bool) error {
	return p.PublishDataBuffer(databuffer.FromBool(v))
}

// PublishDouble publishes a double.
func (p *Publication) PublishDouble(v float64) error {
	return p.PublishDataBuffer(databuffer.FromDouble(v))
}

// PublishTime publishes a time value.
func (p *Publication) PublishTime(v simtime.Time) error {
	return p.PublishDataBuffer(databuffer.FromTime(v))
}

// PublishChar publishes a single character.
func (p *Publication) PublishChar(v byte) error {
	return p.PublishDataBuffer(databuffer.FromChar(v))
}

// PublishComplex publishes a complex value.
func (p *Publication) PublishComplex(v complex128) error {
	return p.PublishDataBuffer(databuffer.FromComplex(v))
}

// PublishVector publishes a vector of doubles.
func (p *Publication) PublishVector(v []float64) error {
	return p.PublishDataBuffer(databuffer.FromVector(v))
}

// PublishComplexVector publishes a vector of complex values.
func (p *Publication) PublishComplexVector(v []complex128) error {
	return p.PublishDataBuffer(databuffer.FromComplexVector(v))
}

// PublishNamedPoint publishes a named point.
func (p *Publication) PublishNamedPoint(name string, v float64) error {
	return p.PublishDataBuffer(databuffer.FromNamedPoint(name, v))
}

// PublishJSON publishes each value of values on the publication of the
// same name. Unknown names fail before anything is published.
func (f *Federate) PublishJSON(values map[string]any) error {
	type item struct {
		pub *Publication
		buf *databuffer.Buffer
	}
	items := make([]item, 0, len(values))
	for name, v := range values {
		p := f.GetPublication(name)
		if p == nil {
			return status.Errorf(status.KindInvalidArgument, "no publication named %q", name)
		}
		b, err := databuffer.FromValue(v)
		if err != nil {
			return err
		}
		items = append(items, item{pub: p, buf: b})
	}
	for _, it := range items {
		if err := it.pub.PublishDataBuffer(it.buf); err != nil {
			return err
		}
	}
	return nil
}
