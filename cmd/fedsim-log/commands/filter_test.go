package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterByNode(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Node: "core1", Category: log.CategoryMessage},
		{Timestamp: ts, Node: "core2", Category: log.CategoryMessage},
		{Timestamp: ts, Node: "core1", Category: log.CategoryMessage},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.flog")

	n, err := RunFilter(path, FilterOptions{Output: outPath, Node: "core1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events written, got %d", n)
	}

	got := readAll(t, outPath)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.Node != "core1" {
			t.Errorf("expected core1, got %s", e.Node)
		}
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, Node: "core1"},
		{Timestamp: base.Add(time.Hour), Node: "core1"},
		{Timestamp: base.Add(2 * time.Hour), Node: "core1"},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.flog")

	_, err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected timestamp: %v", got[0].Timestamp)
	}
}

func TestFilterBySimTimeAndFederate(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Federate: "gen", SimTime: 0.5},
		{Timestamp: ts, Federate: "gen", SimTime: 2},
		{Timestamp: ts, Federate: "load", SimTime: 2},
		{Timestamp: ts, Federate: "gen", SimTime: 5},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.flog")

	_, err := RunFilter(path, FilterOptions{
		Output:       outPath,
		Federate:     "gen",
		SimTimeStart: "1",
		SimTimeEnd:   "5",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Federate != "gen" || got[0].SimTime != 2 {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestFilterByAction(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerWire, Action: &log.ActionEvent{Action: wire.ActTimeRequest}},
		{Timestamp: ts, Layer: log.LayerWire, Action: &log.ActionEvent{Action: wire.ActTimeGrant}},
		{Timestamp: ts, Layer: log.LayerFederation},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.flog")

	_, err := RunFilter(path, FilterOptions{Output: outPath, Action: "time-grant"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 || got[0].Action.Action != wire.ActTimeGrant {
		t.Fatalf("expected the single TIME_GRANT event, got %+v", got)
	}
}

func TestFilterRejectsInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{Timestamp: time.Now()}})

	tests := []struct {
		name string
		opts FilterOptions
	}{
		{"time-start", FilterOptions{TimeStart: "yesterday"}},
		{"time-end", FilterOptions{TimeEnd: "tomorrow"}},
		{"sim-start", FilterOptions{SimTimeStart: "soon"}},
		{"sim-end", FilterOptions{SimTimeEnd: "later"}},
		{"layer", FilterOptions{Layer: "service"}},
		{"direction", FilterOptions{Direction: "sideways"}},
		{"category", FilterOptions{Category: "snapshot"}},
		{"action", FilterOptions{Action: "teleport"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = filepath.Join(t.TempDir(), "out.flog")
			if _, err := RunFilter(path, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
