// Package transport moves action messages between federation nodes.
//
// Every core and broker owns a Mailbox feeding its single event loop.
// Links deliver into a peer's mailbox:
//   - InprocLink pushes directly, for nodes in the same process
//   - StreamLink writes CBOR frames over any byte stream, with a reader
//     goroutine decoding the peer's frames into the local mailbox
//
// Server and Dial build StreamLinks over TCP.
//
// # Stream Format
//
//	┌────────────────────────────────┐
//	│   CBOR ActionMessage           │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   Byte stream (TCP, pipe)      │
//	└────────────────────────────────┘
//
// # Ordering
//
// A mailbox pops priority envelopes first and preserves order within each
// priority, so ordered traffic on a link keeps its send order while FAST
// queries and commands may overtake it.
package transport
