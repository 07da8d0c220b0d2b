// Package databuffer implements the typed value codec used for publications,
// inputs and translator payloads.
//
// A buffer holds a one-byte type tag followed by a type-specific payload:
//
//	[tag:1][payload]
//
// Fixed-width numbers are little-endian 8-byte values. Strings carry a
// little-endian uint32 length prefix and make no terminator assumptions.
// Named points are a double followed by a length-prefixed name.
//
// Accessors never fail. Reading a buffer with an accessor for a different
// type performs a best-effort coercion, and a buffer with an unrecognized tag
// reports DataTypeUnknown and yields zero values.
package databuffer
