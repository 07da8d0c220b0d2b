package wire

import (
	"errors"
	"testing"

	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/status"
)

func TestActionMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ActionMessage
	}{
		{
			name: "time request",
			msg: ActionMessage{
				Action:    ActTimeRequest,
				Source:    Handle(3, 0),
				Time:      5.0,
				Iteration: 2,
			},
		},
		{
			name: "interface registration",
			msg: ActionMessage{
				Action:     ActRegisterInterface,
				SourceNode: 4,
				Source:     Handle(7, 2),
				Kind:       KindPublication,
				Name:       "gen1/P",
				Type:       "double",
				Units:      "MW",
				Options:    map[int]int{452: 1},
				Counter:    12,
			},
		},
		{
			name: "endpoint message",
			msg: ActionMessage{
				Action:  ActSendMessage,
				Source:  Handle(1, 1),
				Message: message.New("a/ep", "b/ep", 3.0, []byte("hello")),
			},
		},
		{
			name: "published value",
			msg: ActionMessage{
				Action:  ActPublish,
				Source:  Handle(2, 5),
				Dest:    Handle(3, 1),
				Time:    1.5,
				Payload: []byte{0x02, 0, 0, 0, 0, 0, 0, 0xF8, 0x3F},
			},
		},
		{
			name: "time props",
			msg: ActionMessage{
				Action: ActSetTimeProps,
				Source: Handle(2, 0),
				Props:  map[int]float64{137: 0.5, 140: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(&tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			action, err := PeekAction(data)
			if err != nil {
				t.Fatalf("PeekAction failed: %v", err)
			}
			if action != tt.msg.Action {
				t.Errorf("PeekAction: got %s, want %s", action, tt.msg.Action)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if decoded.Action != tt.msg.Action {
				t.Errorf("Action: got %s, want %s", decoded.Action, tt.msg.Action)
			}
			if decoded.Source != tt.msg.Source {
				t.Errorf("Source: got %s, want %s", decoded.Source, tt.msg.Source)
			}
			if decoded.Time != tt.msg.Time {
				t.Errorf("Time: got %v, want %v", decoded.Time, tt.msg.Time)
			}
			if decoded.Name != tt.msg.Name {
				t.Errorf("Name: got %q, want %q", decoded.Name, tt.msg.Name)
			}
			if string(decoded.Payload) != string(tt.msg.Payload) {
				t.Errorf("Payload: got %x, want %x", decoded.Payload, tt.msg.Payload)
			}
			if len(decoded.Options) != len(tt.msg.Options) {
				t.Errorf("Options: got %v, want %v", decoded.Options, tt.msg.Options)
			}
			if len(decoded.Props) != len(tt.msg.Props) {
				t.Errorf("Props: got %v, want %v", decoded.Props, tt.msg.Props)
			}
			if tt.msg.Message != nil {
				if decoded.Message == nil {
					t.Fatal("Message: got nil")
				}
				if decoded.Message.String() != tt.msg.Message.String() || decoded.Message.Destination != tt.msg.Message.Destination {
					t.Errorf("Message: got %s, want %s", decoded.Message.Describe(), tt.msg.Message.Describe())
				}
			}
		})
	}
}

func TestOperatorNotEncoded(t *testing.T) {
	msg := &ActionMessage{Action: ActRegisterInterface, Kind: KindFilter, Operator: func() {}}
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Operator != nil {
		t.Errorf("Operator: got %v, want nil", decoded.Operator)
	}
}

func TestInvalidAction(t *testing.T) {
	if _, err := Encode(&ActionMessage{Action: 200}); err == nil {
		t.Error("expected error for invalid action")
	}
	data, _ := Marshal(map[int]int{1: 201})
	if _, err := Decode(data); err == nil {
		t.Error("expected error decoding invalid action")
	}
}

func TestErrorTransport(t *testing.T) {
	msg := New(ActExecGrant)
	if msg.Err() != nil {
		t.Fatal("new message should carry no error")
	}
	msg.SetError(status.Errorf(status.KindConnection, "input %q requires a connection", "x"))

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !errors.Is(decoded.Err(), status.ErrConnection) {
		t.Errorf("Err: got %v, want connection error", decoded.Err())
	}
}

func TestErrorKindTransport(t *testing.T) {
	msg := New(ActSetProperty)
	msg.SetError(status.Errorf(status.KindInvalidProperty, "delay filter has no property %q", "nonsense"))

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := status.KindOf(decoded.Err()); got != status.KindInvalidProperty {
		t.Errorf("Kind: got %s, want %s", got, status.KindInvalidProperty)
	}
	if got := status.CodeOf(decoded.Err()); got != status.InvalidArgument {
		t.Errorf("Code: got %s, want %s", got, status.InvalidArgument)
	}
}

func TestPriority(t *testing.T) {
	q := New(ActQuery)
	if q.Priority() {
		t.Error("ordered query should not be priority")
	}
	q.Set(FlagFast, true)
	if !q.Priority() {
		t.Error("fast query should be priority")
	}
	if !New(ActGlobalError).Priority() {
		t.Error("global error should be priority")
	}
	if New(ActPublish).Priority() {
		t.Error("publish should not be priority")
	}
}

func TestReplySwapsAddresses(t *testing.T) {
	req := &ActionMessage{Action: ActQuery, SourceNode: 5, DestNode: 1, Source: Handle(9, 0), Counter: 44}
	rep := req.Reply(ActQueryReply)
	if rep.DestNode != 5 || rep.SourceNode != 1 || rep.Dest != req.Source || rep.Counter != 44 {
		t.Errorf("Reply: got %s counter=%d", rep, rep.Counter)
	}
}
