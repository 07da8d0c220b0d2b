package option

import "strings"

// IterationRequest is what a federate asks for when it requests time.
type IterationRequest uint8

const (
	// NoIteration always advances time.
	NoIteration IterationRequest = 0

	// ForceIteration always re-iterates at the current time.
	ForceIteration IterationRequest = 1

	// IterateIfNeeded re-iterates only if a dependency changed.
	IterateIfNeeded IterationRequest = 2
)

// String returns the request name.
func (r IterationRequest) String() string {
	switch r {
	case NoIteration:
		return "NO_ITERATION"
	case ForceIteration:
		return "FORCE_ITERATION"
	case IterateIfNeeded:
		return "ITERATE_IF_NEEDED"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether r is a known request.
func (r IterationRequest) IsValid() bool {
	return r <= IterateIfNeeded
}

// IterationResult is the outcome of an iterative request.
type IterationResult uint8

const (
	// NextStep means time advanced with no further iteration.
	NextStep IterationResult = 0

	// IterationError means the request failed.
	IterationError IterationResult = 1

	// Halted means the federation terminated.
	Halted IterationResult = 2

	// Iterating means the grant is at the same time and the federate should re-iterate.
	Iterating IterationResult = 3
)

// String returns the result name.
func (r IterationResult) String() string {
	switch r {
	case NextStep:
		return "NEXT_STEP"
	case IterationError:
		return "ERROR"
	case Halted:
		return "HALTED"
	case Iterating:
		return "ITERATING"
	default:
		return "UNKNOWN"
	}
}

// SequencingMode selects the channel used for queries and commands.
type SequencingMode uint8

const (
	// SequencingFast uses the priority channel and may overtake normal traffic.
	SequencingFast SequencingMode = 0

	// SequencingOrdered uses the normal channel, ordered with other traffic.
	SequencingOrdered SequencingMode = 1

	// SequencingDefault delegates the choice to the target.
	SequencingDefault SequencingMode = 2
)

// String returns the mode name.
func (m SequencingMode) String() string {
	switch m {
	case SequencingFast:
		return "FAST"
	case SequencingOrdered:
		return "ORDERED"
	case SequencingDefault:
		return "DEFAULT"
	default:
		return "UNKNOWN"
	}
}

// Resolve maps Default to the given fallback.
func (m SequencingMode) Resolve(fallback SequencingMode) SequencingMode {
	if m == SequencingDefault {
		return fallback
	}
	return m
}

// TranslatorType selects a built-in translator.
type TranslatorType int

const (
	// TranslatorCustom runs a user-supplied conversion.
	TranslatorCustom TranslatorType = 0

	// TranslatorJSON converts values to and from JSON documents.
	TranslatorJSON TranslatorType = 11

	// TranslatorBinary passes the encoded value bytes through unchanged.
	TranslatorBinary TranslatorType = 12

	// TranslatorUnknown is the fallback for unrecognized types.
	TranslatorUnknown TranslatorType = InvalidOptionIndex
)

// String returns the translator type name.
func (t TranslatorType) String() string {
	switch t {
	case TranslatorCustom:
		return "custom"
	case TranslatorJSON:
		return "json"
	case TranslatorBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseTranslatorType looks up a translator type by name.
func ParseTranslatorType(name string) TranslatorType {
	switch normalize(name) {
	case "custom":
		return TranslatorCustom
	case "json":
		return TranslatorJSON
	case "binary":
		return TranslatorBinary
	}
	return TranslatorUnknown
}

// FilterType selects a built-in filter operation.
type FilterType int

const (
	// FilterCustom runs a user-supplied callback.
	FilterCustom FilterType = 0

	// FilterDelay adds a fixed delay.
	FilterDelay FilterType = 1

	// FilterRandomDelay adds a random delay.
	FilterRandomDelay FilterType = 2

	// FilterRandomDrop drops messages with a probability.
	FilterRandomDrop FilterType = 3

	// FilterReroute changes the destination.
	FilterReroute FilterType = 4

	// FilterClone copies messages to delivery endpoints.
	FilterClone FilterType = 5

	// FilterFirewall drops messages from sources not allowed.
	FilterFirewall FilterType = 6

	// FilterUnknown is the fallback for unrecognized types.
	FilterUnknown FilterType = InvalidOptionIndex
)

// String returns the filter type name.
func (t FilterType) String() string {
	switch t {
	case FilterCustom:
		return "custom"
	case FilterDelay:
		return "delay"
	case FilterRandomDelay:
		return "random_delay"
	case FilterRandomDrop:
		return "random_drop"
	case FilterReroute:
		return "reroute"
	case FilterClone:
		return "clone"
	case FilterFirewall:
		return "firewall"
	default:
		return "unknown"
	}
}

// ParseFilterType looks up a filter type by name.
func ParseFilterType(name string) FilterType {
	n := strings.ReplaceAll(normalize(name), "randomdelay", "random_delay")
	n = strings.ReplaceAll(n, "randomdrop", "random_drop")
	for _, t := range []FilterType{FilterCustom, FilterDelay, FilterRandomDelay, FilterRandomDrop, FilterReroute, FilterClone, FilterFirewall} {
		if t.String() == n {
			return t
		}
	}
	return FilterUnknown
}

// MultiInputMethod is how an input combines several sources.
type MultiInputMethod int

const (
	// MultiInputNoOp takes the highest-priority source.
	MultiInputNoOp MultiInputMethod = 0

	// MultiInputVectorize concatenates all sources into a vector.
	MultiInputVectorize MultiInputMethod = 8

	// MultiInputAnd is the logical and of all sources.
	MultiInputAnd MultiInputMethod = 2

	// MultiInputOr is the logical or of all sources.
	MultiInputOr MultiInputMethod = 1

	// MultiInputSum is the sum of all sources.
	MultiInputSum MultiInputMethod = 3

	// MultiInputDiff is the first source minus the others.
	MultiInputDiff MultiInputMethod = 4

	// MultiInputMax is the maximum of all sources.
	MultiInputMax MultiInputMethod = 5

	// MultiInputMin is the minimum of all sources.
	MultiInputMin MultiInputMethod = 6

	// MultiInputAverage is the mean of all sources.
	MultiInputAverage MultiInputMethod = 7

	// MultiInputUnknown is the fallback for unrecognized methods.
	MultiInputUnknown MultiInputMethod = InvalidPropertyValue
)

var multiInputNames = map[MultiInputMethod]string{
	MultiInputNoOp:      "no_op",
	MultiInputVectorize: "vectorize",
	MultiInputAnd:       "and",
	MultiInputOr:        "or",
	MultiInputSum:       "sum",
	MultiInputDiff:      "diff",
	MultiInputMax:       "max",
	MultiInputMin:       "min",
	MultiInputAverage:   "average",
}

// String returns the method name.
func (m MultiInputMethod) String() string {
	if n, ok := multiInputNames[m]; ok {
		return n
	}
	return "unknown"
}

// IsValid reports whether m is a known method.
func (m MultiInputMethod) IsValid() bool {
	_, ok := multiInputNames[m]
	return ok
}

// ParseMultiInputMethod looks up a method by name.
func ParseMultiInputMethod(name string) MultiInputMethod {
	n := normalize(name)
	switch n {
	case "none", "noop", "":
		return MultiInputNoOp
	case "mean":
		return MultiInputAverage
	}
	for m, mn := range multiInputNames {
		if mn == n {
			return m
		}
	}
	return MultiInputUnknown
}

// FederateState is the lifecycle state of a federate.
type FederateState int

const (
	// StateUnknown is the fallback for an invalid federate.
	StateUnknown FederateState = -1

	// StateCreated is the state after registration.
	StateCreated FederateState = 0

	// StateInitializing is initialization mode.
	StateInitializing FederateState = 1

	// StateExecuting is execution mode.
	StateExecuting FederateState = 2

	// StateFinalized is the state after finalize or disconnect.
	StateFinalized FederateState = 3

	// StateError is the terminal error state.
	StateError FederateState = 4

	// StatePendingInit is an outstanding async initializing-mode request.
	StatePendingInit FederateState = 5

	// StatePendingExec is an outstanding async executing-mode request.
	StatePendingExec FederateState = 6

	// StatePendingTime is an outstanding async time request.
	StatePendingTime FederateState = 7

	// StatePendingIterativeTime is an outstanding async iterative time request.
	StatePendingIterativeTime FederateState = 8

	// StatePendingFinalize is an outstanding async finalize.
	StatePendingFinalize FederateState = 9
)

// String returns the state name.
func (s FederateState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateExecuting:
		return "executing"
	case StateFinalized:
		return "finalized"
	case StateError:
		return "error"
	case StatePendingInit:
		return "pending_init"
	case StatePendingExec:
		return "pending_exec"
	case StatePendingTime:
		return "pending_time"
	case StatePendingIterativeTime:
		return "pending_iterative_time"
	case StatePendingFinalize:
		return "pending_finalize"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further lifecycle transitions are possible.
func (s FederateState) IsTerminal() bool {
	return s == StateFinalized || s == StateError
}

// DataType is the type of a value carried by a publication, input or buffer.
type DataType int

const (
	// DataTypeUnknown is an unrecognized type.
	DataTypeUnknown DataType = -1

	// DataTypeString is a UTF-8 string.
	DataTypeString DataType = 0

	// DataTypeDouble is a float64.
	DataTypeDouble DataType = 1

	// DataTypeInt is an int64.
	DataTypeInt DataType = 2

	// DataTypeComplex is a complex128.
	DataTypeComplex DataType = 3

	// DataTypeVector is a vector of float64.
	DataTypeVector DataType = 4

	// DataTypeComplexVector is a vector of complex128.
	DataTypeComplexVector DataType = 5

	// DataTypeNamedPoint is a name and a float64.
	DataTypeNamedPoint DataType = 6

	// DataTypeBoolean is a boolean.
	DataTypeBoolean DataType = 7

	// DataTypeTime is a simulated time.
	DataTypeTime DataType = 8

	// DataTypeChar is a single byte character.
	DataTypeChar DataType = 9

	// DataTypeRaw is uninterpreted bytes.
	DataTypeRaw DataType = 25

	// DataTypeJSON is a JSON document.
	DataTypeJSON DataType = 30

	// DataTypeAny accepts any type.
	DataTypeAny DataType = 25262
)

var dataTypeNames = map[DataType]string{
	DataTypeString:        "string",
	DataTypeDouble:        "double",
	DataTypeInt:           "int",
	DataTypeComplex:       "complex",
	DataTypeVector:        "vector",
	DataTypeComplexVector: "complex_vector",
	DataTypeNamedPoint:    "named_point",
	DataTypeBoolean:       "bool",
	DataTypeTime:          "time",
	DataTypeChar:          "char",
	DataTypeRaw:           "raw",
	DataTypeJSON:          "json",
	DataTypeAny:           "any",
}

// String returns the type name.
func (t DataType) String() string {
	if n, ok := dataTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// IsNumeric reports whether t belongs to the numeric/boolean/char family.
func (t DataType) IsNumeric() bool {
	switch t {
	case DataTypeDouble, DataTypeInt, DataTypeBoolean, DataTypeTime, DataTypeChar:
		return true
	}
	return false
}

// ParseDataType maps a type name (including common aliases) to a DataType.
// An empty name yields DataTypeAny.
func ParseDataType(name string) DataType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "def", "any", "generic":
		return DataTypeAny
	case "string", "str", "s":
		return DataTypeString
	case "double", "float", "float64", "d", "f":
		return DataTypeDouble
	case "int", "integer", "int64", "i":
		return DataTypeInt
	case "complex", "c":
		return DataTypeComplex
	case "vector", "double_vector", "v":
		return DataTypeVector
	case "complex_vector", "cv":
		return DataTypeComplexVector
	case "named_point", "namedpoint", "np":
		return DataTypeNamedPoint
	case "bool", "boolean", "b":
		return DataTypeBoolean
	case "time", "t":
		return DataTypeTime
	case "char":
		return DataTypeChar
	case "raw", "bytes", "blob":
		return DataTypeRaw
	case "json":
		return DataTypeJSON
	}
	return DataTypeUnknown
}

// Compatible reports whether a publication of type pub may feed an input of type in.
func Compatible(pub, in DataType) bool {
	if pub == in || pub == DataTypeAny || in == DataTypeAny || pub == DataTypeRaw || in == DataTypeRaw {
		return true
	}
	return pub.IsNumeric() && in.IsNumeric()
}
