package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

func writeEvents(t *testing.T, events ...Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.flog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, path string, f Filter) []Event {
	t.Helper()
	r, err := NewFilteredReader(path, f)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestFilteredReader(t *testing.T) {
	now := time.Now()
	publish := wire.ActPublish
	path := writeEvents(t,
		Event{Timestamp: now, Node: "core1", Federate: "a", SimTime: 1, Category: CategoryMessage,
			Action: &ActionEvent{Action: wire.ActPublish}},
		Event{Timestamp: now, Node: "core1", Federate: "b", SimTime: 2, Category: CategoryTime,
			Action: &ActionEvent{Action: wire.ActTimeGrant}},
		Event{Timestamp: now, Node: "root", Federate: "a", SimTime: 3, Category: CategoryMessage,
			Action: &ActionEvent{Action: wire.ActPublish}},
		Event{Timestamp: now, Node: "root", Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerFederation, Message: "boom"}},
	)

	start, end := 1.5, 3.0
	catMsg := CategoryMessage
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"node", Filter{Node: "core1"}, 2},
		{"federate", Filter{Federate: "a"}, 2},
		{"category", Filter{Category: &catMsg}, 2},
		{"action", Filter{Action: &publish}, 2},
		{"sim time window", Filter{SimTimeStart: &start, SimTimeEnd: &end}, 1},
		{"combined", Filter{Node: "root", Action: &publish}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(readAll(t, path, tt.filter)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}
