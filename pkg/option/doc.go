// Package option holds the closed enumerations used across the federation
// runtime: properties, flags, handle options, iteration requests and results,
// sequencing modes, filter and translator types, multi-input methods,
// federate states and data types.
//
// Internally every enumeration is a distinct Go type with an explicit
// Unknown fallback. Integers only appear at the boundary: Index() returns the
// numeric value and the Parse/From functions map strings and integers back.
// Lookups of unknown names return InvalidOptionIndex (-101); unknown option
// values return InvalidPropertyValue (-972).
package option
