// Package message defines the timestamped, addressed payload exchanged
// between endpoints.
//
// A Message records where it is going and where it came from. Source and
// Destination change as filters reroute it; OriginalSource and
// OriginalDestination keep the endpoints the sender used. Time is the
// simulated time the message becomes deliverable. Sixteen user flag bits
// travel with it, and MessageID is free for the application.
//
//	m := message.New("gen/ctl", "load/ctl", 2.5, []byte("trip"))
//	if err := m.SetFlag(3, true); err != nil {
//		return err
//	}
//
// Messages are CBOR encoded with integer keys when they cross a node link.
package message
