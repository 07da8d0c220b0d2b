package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("capture file was not created")
	}
	if logger.Path() != path {
		t.Errorf("Path: got %q, want %q", logger.Path(), path)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	msg := &wire.ActionMessage{Action: wire.ActTimeGrant, Source: wire.Handle(3, 0), Time: 2.5}
	logger.Log(Event{
		Timestamp: time.Now(),
		Node:      "root",
		Direction: DirectionOut,
		Layer:     LayerWire,
		Category:  CategoryOf(msg.Action),
		Federate:  "fedA",
		SimTime:   2.5,
		Action:    NewActionEvent(msg),
	})
	logger.Log(Event{
		Timestamp: time.Now(),
		Node:      "root",
		Direction: DirectionLocal,
		Layer:     LayerFederation,
		Category:  CategoryTime,
		Federate:  "fedA",
		Grant:     &GrantEvent{Requested: 5, Granted: 2.5, Result: "NEXT_STEP"},
	})
	if logger.Count() != 2 {
		t.Errorf("Count: got %d, want 2", logger.Count())
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first.Action == nil || first.Action.Action != wire.ActTimeGrant {
		t.Errorf("first event action: got %+v", first.Action)
	}
	if first.Category != CategoryTime {
		t.Errorf("first event category: got %s, want TIME", first.Category)
	}
	if first.Action.Source != "3:0" {
		t.Errorf("first event source: got %q", first.Action.Source)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if second.Grant == nil || second.Grant.Granted != 2.5 {
		t.Errorf("second event grant: got %+v", second.Grant)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFileLoggerIgnoresAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.flog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	logger.Log(Event{Node: "late"})
	if logger.Count() != 0 {
		t.Errorf("Count after close: got %d, want 0", logger.Count())
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.flog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{Timestamp: time.Now(), Node: "core", Category: CategoryMessage})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	n := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		n++
	}
	if n != 200 {
		t.Errorf("events read: got %d, want 200", n)
	}
}
