package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

func decodeSlog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsActionEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		Timestamp: time.Now(),
		Node:      "core1",
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryMessage,
		Federate:  "fedA",
		Action: NewActionEvent(&wire.ActionMessage{
			Action:  wire.ActPublish,
			Source:  wire.Handle(2, 1),
			Payload: []byte{1, 2, 3},
		}),
	})

	entry := decodeSlog(t, &buf)
	if entry["node"] != "core1" {
		t.Errorf("node: got %v, want core1", entry["node"])
	}
	if entry["action"] != "PUBLISH" {
		t.Errorf("action: got %v, want PUBLISH", entry["action"])
	}
	if entry["source"] != "2:1" {
		t.Errorf("source: got %v, want 2:1", entry["source"])
	}
	if entry["payload_size"] != float64(3) {
		t.Errorf("payload_size: got %v, want 3", entry["payload_size"])
	}
	if entry["federate"] != "fedA" {
		t.Errorf("federate: got %v, want fedA", entry["federate"])
	}
}

func TestSlogAdapterLogsGrant(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		Node:     "root",
		Layer:    LayerFederation,
		Category: CategoryTime,
		Grant:    &GrantEvent{Requested: 5, Granted: 3, Result: "NEXT_STEP"},
	})

	entry := decodeSlog(t, &buf)
	if entry["granted"] != float64(3) {
		t.Errorf("granted: got %v, want 3", entry["granted"])
	}
	if entry["result"] != "NEXT_STEP" {
		t.Errorf("result: got %v", entry["result"])
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	adapter.Log(Event{Node: "root"})
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}
