package federate

import (
	"context"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/pipeline"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Translator turns values into messages and messages into values.
type Translator struct {
	iface
	translatorType option.TranslatorType
}

// RegisterTranslator registers a translator with a local name.
func (f *Federate) RegisterTranslator(ctx context.Context, name string, t option.TranslatorType, units string) (*Translator, error) {
	return f.registerTranslator(ctx, f.localName(name), t, units)
}

// RegisterGlobalTranslator registers a translator with a global name.
func (f *Federate) RegisterGlobalTranslator(ctx context.Context, name string, t option.TranslatorType, units string) (*Translator, error) {
	return f.registerTranslator(ctx, name, t, units)
}

func (f *Federate) registerTranslator(ctx context.Context, name string, t option.TranslatorType, units string) (*Translator, error) {
	if t == option.TranslatorUnknown {
		return nil, status.Errorf(status.KindInvalidArgument, "unknown translator type")
	}
	base, err := f.register(ctx, core.Interface{Kind: wire.KindTranslator, Name: name, Type: t.String(), Units: units})
	if err != nil {
		return nil, err
	}
	tr := &Translator{iface: base, translatorType: t}
	f.mu.Lock()
	f.translators = append(f.translators, tr)
	f.adopt(tr.handle, tr)
	f.mu.Unlock()
	return tr, nil
}

// GetTranslator returns a translator by global or local name, nil if there
// is none.
func (f *Federate) GetTranslator(name string) *Translator {
	local := f.localName(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.translators {
		if tr.name == name || tr.name == local {
			return tr
		}
	}
	return nil
}

// GetTranslatorByIndex returns the i-th registered translator, nil if i is
// out of range.
func (f *Federate) GetTranslatorByIndex(i int) *Translator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.translators) {
		return nil
	}
	return f.translators[i]
}

// TranslatorCount returns the number of registered translators.
func (f *Federate) TranslatorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.translators)
}

// TranslatorType returns the translator type.
func (tr *Translator) TranslatorType() option.TranslatorType {
	return tr.translatorType
}

// AddSourceEndpoint translates messages sent by the named endpoint into
// values.
func (tr *Translator) AddSourceEndpoint(endpoint string) error {
	return tr.fed.session.Link(wire.LinkEndpoint, endpoint, tr.name)
}

// AddDestinationEndpoint sends translated values to the named endpoint.
func (tr *Translator) AddDestinationEndpoint(endpoint string) error {
	return tr.fed.session.Link(wire.LinkEndpoint, tr.name, endpoint)
}

// AddPublicationTarget translates the values of the named publication into
// messages.
func (tr *Translator) AddPublicationTarget(publication string) error {
	return tr.fed.session.Link(wire.LinkData, publication, tr.name)
}

// AddInputTarget feeds values translated from messages to the named input.
func (tr *Translator) AddInputTarget(input string) error {
	return tr.fed.session.Link(wire.LinkData, tr.name, input)
}

// RemoveTarget removes every link between the translator and name.
func (tr *Translator) RemoveTarget(name string) error {
	return tr.fed.session.Unlink(wire.KindTranslator, tr.name, name)
}

// SetOperator replaces the operator of a custom translator.
func (tr *Translator) SetOperator(ctx context.Context, op pipeline.TranslatorOperator) error {
	if op == nil {
		return status.Errorf(status.KindInvalidArgument, "operator is nil")
	}
	return tr.fed.session.SetOperator(ctx, tr.name, op)
}
