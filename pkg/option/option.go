package option

import "strings"

// Boundary sentinels and boolean encoding.
const (
	// InvalidOptionIndex is returned for an unknown property, flag or option name.
	InvalidOptionIndex = -101

	// InvalidPropertyValue is returned for an invalid property value lookup.
	InvalidPropertyValue = -972

	// True is the integer encoding of a true boolean.
	True = 1

	// False is the integer encoding of a false boolean.
	False = 0
)

// BoolToInt encodes a boolean as 1 or 0.
func BoolToInt(b bool) int {
	if b {
		return True
	}
	return False
}

// IntToBool decodes an integer boolean; any non-zero value is true.
func IntToBool(v int) bool {
	return v != False
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "_")
	for _, prefix := range []string{"helics_property_", "helics_flag_", "helics_handle_option_", "property_", "flag_", "option_"} {
		n = strings.TrimPrefix(n, prefix)
	}
	return n
}

// Property identifies a time or integer property of a federate.
type Property int

const (
	// PropertyUnknown is the fallback for unrecognized properties.
	PropertyUnknown Property = InvalidOptionIndex

	// PropertyTimeDelta is the minimum time between grants.
	PropertyTimeDelta Property = 137

	// PropertyPeriod is the period grid for grants.
	PropertyPeriod Property = 140

	// PropertyOffset is the offset of the period grid.
	PropertyOffset Property = 141

	// PropertyInputDelay delays everything received by the federate.
	PropertyInputDelay Property = 148

	// PropertyOutputDelay delays everything sent by the federate.
	PropertyOutputDelay Property = 150

	// PropertyMaxIterations caps iterations at a single time.
	PropertyMaxIterations Property = 259

	// PropertyLogLevel is the federate log level.
	PropertyLogLevel Property = 271
)

var propertyNames = map[Property]string{
	PropertyTimeDelta:     "time_delta",
	PropertyPeriod:        "period",
	PropertyOffset:        "offset",
	PropertyInputDelay:    "input_delay",
	PropertyOutputDelay:   "output_delay",
	PropertyMaxIterations: "max_iterations",
	PropertyLogLevel:      "log_level",
}

var propertyAliases = map[string]Property{
	"timedelta":     PropertyTimeDelta,
	"delta":         PropertyTimeDelta,
	"inputdelay":    PropertyInputDelay,
	"outputdelay":   PropertyOutputDelay,
	"maxiterations": PropertyMaxIterations,
	"loglevel":      PropertyLogLevel,
	"time_period":   PropertyPeriod,
	"time_offset":   PropertyOffset,
}

// String returns the property name.
func (p Property) String() string {
	if n, ok := propertyNames[p]; ok {
		return n
	}
	return "unknown"
}

// IsValid reports whether p is a known property.
func (p Property) IsValid() bool {
	_, ok := propertyNames[p]
	return ok
}

// IsTime reports whether p is a time-valued property.
func (p Property) IsTime() bool {
	switch p {
	case PropertyTimeDelta, PropertyPeriod, PropertyOffset, PropertyInputDelay, PropertyOutputDelay:
		return true
	}
	return false
}

// Index returns the boundary integer for p.
func (p Property) Index() int {
	return int(p)
}

// ParseProperty looks up a property by name.
func ParseProperty(name string) Property {
	n := normalize(name)
	for p, pn := range propertyNames {
		if pn == n {
			return p
		}
	}
	if p, ok := propertyAliases[n]; ok {
		return p
	}
	return PropertyUnknown
}

// PropertyFromIndex maps a boundary integer to a property.
func PropertyFromIndex(i int) Property {
	p := Property(i)
	if p.IsValid() {
		return p
	}
	return PropertyUnknown
}

// PropertyIndex returns the index for a property name or InvalidOptionIndex.
func PropertyIndex(name string) int {
	return ParseProperty(name).Index()
}

// Flag identifies a boolean federate or core flag.
type Flag int

const (
	// FlagUnknown is the fallback for unrecognized flags.
	FlagUnknown Flag = InvalidOptionIndex

	// FlagObserver marks a federate that never sends.
	FlagObserver Flag = 0

	// FlagUninterruptible makes a federate ignore event-driven interrupts.
	FlagUninterruptible Flag = 1

	// FlagInterruptible is the inverse of FlagUninterruptible.
	FlagInterruptible Flag = 2

	// FlagSourceOnly marks a federate that never receives.
	FlagSourceOnly Flag = 4

	// FlagOnlyTransmitOnChange applies change detection to all publications.
	FlagOnlyTransmitOnChange Flag = 6

	// FlagOnlyUpdateOnChange applies change detection to all inputs.
	FlagOnlyUpdateOnChange Flag = 8

	// FlagWaitForCurrentTimeUpdate delays grants until others finish the current time.
	FlagWaitForCurrentTimeUpdate Flag = 10

	// FlagDelayInitEntry holds a core's federates out of initializing mode.
	FlagDelayInitEntry Flag = 45

	// FlagEnableInitEntry clears FlagDelayInitEntry.
	FlagEnableInitEntry Flag = 47

	// FlagTerminateOnError turns any federate error into a global error.
	FlagTerminateOnError Flag = 72

	// FlagStrictConfigChecking rejects questionable configuration.
	FlagStrictConfigChecking Flag = 75

	// FlagIgnore is accepted and ignored.
	FlagIgnore Flag = 999
)

var flagNames = map[Flag]string{
	FlagObserver:                 "observer",
	FlagUninterruptible:          "uninterruptible",
	FlagInterruptible:            "interruptible",
	FlagSourceOnly:               "source_only",
	FlagOnlyTransmitOnChange:     "only_transmit_on_change",
	FlagOnlyUpdateOnChange:       "only_update_on_change",
	FlagWaitForCurrentTimeUpdate: "wait_for_current_time_update",
	FlagDelayInitEntry:           "delay_init_entry",
	FlagEnableInitEntry:          "enable_init_entry",
	FlagTerminateOnError:         "terminate_on_error",
	FlagStrictConfigChecking:     "strict_config_checking",
	FlagIgnore:                   "ignore",
}

// String returns the flag name.
func (f Flag) String() string {
	if n, ok := flagNames[f]; ok {
		return n
	}
	return "unknown"
}

// IsValid reports whether f is a known flag.
func (f Flag) IsValid() bool {
	_, ok := flagNames[f]
	return ok
}

// Index returns the boundary integer for f.
func (f Flag) Index() int {
	return int(f)
}

// ParseFlag looks up a flag by name.
func ParseFlag(name string) Flag {
	n := strings.ReplaceAll(normalize(name), "sourceonly", "source_only")
	for f, fn := range flagNames {
		if fn == n || strings.ReplaceAll(fn, "_", "") == n {
			return f
		}
	}
	return FlagUnknown
}

// FlagFromIndex maps a boundary integer to a flag.
func FlagFromIndex(i int) Flag {
	f := Flag(i)
	if f.IsValid() {
		return f
	}
	return FlagUnknown
}

// FlagIndex returns the index for a flag name or InvalidOptionIndex.
func FlagIndex(name string) int {
	return ParseFlag(name).Index()
}

// HandleOption identifies an option on a publication, input, endpoint or filter.
type HandleOption int

const (
	// HandleOptionUnknown is the fallback for unrecognized options.
	HandleOptionUnknown HandleOption = InvalidOptionIndex

	// HandleOptionConnectionRequired errors if no connection exists at execution entry.
	HandleOptionConnectionRequired HandleOption = 397

	// HandleOptionConnectionOptional makes connections best effort.
	HandleOptionConnectionOptional HandleOption = 402

	// HandleOptionSingleConnectionOnly allows at most one connection.
	HandleOptionSingleConnectionOnly HandleOption = 407

	// HandleOptionMultipleConnectionsAllowed allows any number of connections.
	HandleOptionMultipleConnectionsAllowed HandleOption = 409

	// HandleOptionBufferData keeps the last value for late subscribers.
	HandleOptionBufferData HandleOption = 411

	// HandleOptionStrictTypeChecking rejects links between mismatched types.
	HandleOptionStrictTypeChecking HandleOption = 414

	// HandleOptionIgnoreUnitMismatch suppresses unit mismatch checks.
	HandleOptionIgnoreUnitMismatch HandleOption = 447

	// HandleOptionOnlyTransmitOnChange publishes only changed values.
	HandleOptionOnlyTransmitOnChange HandleOption = 452

	// HandleOptionOnlyUpdateOnChange updates an input only on changed values.
	HandleOptionOnlyUpdateOnChange HandleOption = 454

	// HandleOptionIgnoreInterrupts keeps the interface out of time interrupts.
	HandleOptionIgnoreInterrupts HandleOption = 475

	// HandleOptionMultiInputHandlingMethod selects the multi-input combination method.
	HandleOptionMultiInputHandlingMethod HandleOption = 507

	// HandleOptionInputPriorityLocation selects the highest-priority source index.
	HandleOptionInputPriorityLocation HandleOption = 510

	// HandleOptionClearPriorityList clears the priority list.
	HandleOptionClearPriorityList HandleOption = 512

	// HandleOptionConnections sets or reads the number of connections.
	HandleOptionConnections HandleOption = 522
)

var handleOptionNames = map[HandleOption]string{
	HandleOptionConnectionRequired:         "connection_required",
	HandleOptionConnectionOptional:         "connection_optional",
	HandleOptionSingleConnectionOnly:       "single_connection_only",
	HandleOptionMultipleConnectionsAllowed: "multiple_connections_allowed",
	HandleOptionBufferData:                 "buffer_data",
	HandleOptionStrictTypeChecking:         "strict_type_checking",
	HandleOptionIgnoreUnitMismatch:         "ignore_unit_mismatch",
	HandleOptionOnlyTransmitOnChange:       "only_transmit_on_change",
	HandleOptionOnlyUpdateOnChange:         "only_update_on_change",
	HandleOptionIgnoreInterrupts:           "ignore_interrupts",
	HandleOptionMultiInputHandlingMethod:   "multi_input_handling_method",
	HandleOptionInputPriorityLocation:      "input_priority_location",
	HandleOptionClearPriorityList:          "clear_priority_list",
	HandleOptionConnections:                "connections",
}

// String returns the option name.
func (o HandleOption) String() string {
	if n, ok := handleOptionNames[o]; ok {
		return n
	}
	return "unknown"
}

// IsValid reports whether o is a known option.
func (o HandleOption) IsValid() bool {
	_, ok := handleOptionNames[o]
	return ok
}

// Index returns the boundary integer for o.
func (o HandleOption) Index() int {
	return int(o)
}

// ParseHandleOption looks up an option by name.
func ParseHandleOption(name string) HandleOption {
	n := normalize(name)
	for o, on := range handleOptionNames {
		if on == n {
			return o
		}
	}
	switch n {
	case "multi_input_handling", "multi_input", "input_method":
		return HandleOptionMultiInputHandlingMethod
	case "priority", "input_priority":
		return HandleOptionInputPriorityLocation
	case "required":
		return HandleOptionConnectionRequired
	case "optional":
		return HandleOptionConnectionOptional
	}
	return HandleOptionUnknown
}

// HandleOptionFromIndex maps a boundary integer to an option.
func HandleOptionFromIndex(i int) HandleOption {
	o := HandleOption(i)
	if o.IsValid() {
		return o
	}
	return HandleOptionUnknown
}

// OptionIndex returns the index for a handle option name or InvalidOptionIndex.
func OptionIndex(name string) int {
	return ParseHandleOption(name).Index()
}

// OptionValue returns the integer value for a named option value, such as a
// multi-input method name, or InvalidPropertyValue.
func OptionValue(name string) int {
	n := normalize(name)
	switch n {
	case "true", "on", "yes":
		return True
	case "false", "off", "no":
		return False
	}
	if m := ParseMultiInputMethod(n); m != MultiInputUnknown {
		return int(m)
	}
	return InvalidPropertyValue
}
