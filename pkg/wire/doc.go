// Package wire defines the action messages exchanged between federates,
// cores and brokers, and their CBOR encoding.
//
// Every interaction inside a federation is an ActionMessage: registration,
// link resolution, lifecycle barriers, time requests and grants, values,
// endpoint messages, commands, queries and errors. Nodes (cores and brokers)
// process them on their event loop in arrival order, except for priority
// actions, which overtake ordinary traffic.
//
// # CBOR Integer Keys
//
// ActionMessage uses integer map keys with omitempty, so small control
// actions encode to a handful of bytes. Attachments that cannot cross a
// process boundary (custom filter and translator operators) are tagged
// cbor:"-" and are only carried on in-process links.
package wire
