package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertyIndex(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"period", 140},
		{"PERIOD", 140},
		{"HELICS_PROPERTY_TIME_DELTA", 137},
		{"output-delay", 150},
		{"log_level", 271},
		{"not_a_property", InvalidOptionIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PropertyIndex(tt.name))
		})
	}
}

func TestPropertyKinds(t *testing.T) {
	assert.True(t, PropertyPeriod.IsTime())
	assert.False(t, PropertyLogLevel.IsTime())
	assert.Equal(t, PropertyUnknown, PropertyFromIndex(12345))
	assert.Equal(t, PropertyOffset, PropertyFromIndex(141))
}

func TestFlagIndex(t *testing.T) {
	assert.Equal(t, 1, FlagIndex("uninterruptible"))
	assert.Equal(t, 45, FlagIndex("HELICS_FLAG_DELAY_INIT_ENTRY"))
	assert.Equal(t, 4, FlagIndex("sourceonly"))
	assert.Equal(t, InvalidOptionIndex, FlagIndex("bogus"))
	assert.Equal(t, FlagUnknown, FlagFromIndex(3))
}

func TestHandleOptions(t *testing.T) {
	assert.Equal(t, 397, OptionIndex("connection_required"))
	assert.Equal(t, 522, OptionIndex("HELICS_HANDLE_OPTION_CONNECTIONS"))
	assert.Equal(t, 507, OptionIndex("multi_input_handling"))
	assert.Equal(t, InvalidOptionIndex, OptionIndex("nope"))
}

func TestOptionValue(t *testing.T) {
	assert.Equal(t, int(MultiInputSum), OptionValue("sum"))
	assert.Equal(t, int(MultiInputAverage), OptionValue("mean"))
	assert.Equal(t, True, OptionValue("on"))
	assert.Equal(t, InvalidPropertyValue, OptionValue("sideways"))
}

func TestBoolEncoding(t *testing.T) {
	assert.Equal(t, 1, BoolToInt(true))
	assert.Equal(t, 0, BoolToInt(false))
	assert.True(t, IntToBool(7))
	assert.False(t, IntToBool(0))
}

func TestDataTypes(t *testing.T) {
	assert.Equal(t, DataTypeDouble, ParseDataType("double"))
	assert.Equal(t, DataTypeAny, ParseDataType(""))
	assert.Equal(t, DataTypeUnknown, ParseDataType("quaternion"))
	assert.True(t, Compatible(DataTypeInt, DataTypeDouble))
	assert.False(t, Compatible(DataTypeString, DataTypeDouble))
	assert.True(t, Compatible(DataTypeAny, DataTypeNamedPoint))
}

func TestSequencingResolve(t *testing.T) {
	assert.Equal(t, SequencingOrdered, SequencingDefault.Resolve(SequencingOrdered))
	assert.Equal(t, SequencingFast, SequencingFast.Resolve(SequencingOrdered))
}

func TestFilterAndTranslatorTypes(t *testing.T) {
	assert.Equal(t, FilterRandomDelay, ParseFilterType("randomdelay"))
	assert.Equal(t, FilterClone, ParseFilterType("clone"))
	assert.Equal(t, FilterUnknown, ParseFilterType("teleport"))
	assert.Equal(t, TranslatorJSON, ParseTranslatorType("JSON"))
	assert.Equal(t, TranslatorUnknown, ParseTranslatorType("xml"))
}
