package commands

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.flog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts,
			Node:      "core1",
			Direction: log.DirectionOut,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Action:    &log.ActionEvent{Action: wire.ActPublish, Source: "131072:0", PayloadSize: 8},
		},
		{
			Timestamp: ts.Add(time.Millisecond),
			Node:      "core1",
			Direction: log.DirectionLocal,
			Layer:     log.LayerFederation,
			Category:  log.CategoryTime,
			Federate:  "gen",
			SimTime:   1,
			Grant:     &log.GrantEvent{Requested: 1, Granted: 1, Result: "NEXT_STEP"},
		},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["Node"] != "core1" {
		t.Errorf("expected Node core1, got %v", lines[0]["Node"])
	}
	if lines[1]["Federate"] != "gen" {
		t.Errorf("expected Federate gen, got %v", lines[1]["Federate"])
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts,
			Node:      "root",
			Role:      log.RoleRoot,
			Direction: log.DirectionIn,
			Layer:     log.LayerWire,
			Category:  log.CategoryControl,
			Peer:      "core1",
			Action:    &log.ActionEvent{Action: wire.ActRegisterFederate, Name: "gen"},
		},
		{
			Timestamp: ts,
			Node:      "core1",
			Layer:     log.LayerFederation,
			Category:  log.CategoryTime,
			Federate:  "gen",
			SimTime:   2.5,
			Grant:     &log.GrantEvent{Requested: 3, Granted: 2.5},
		},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to read CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}
	if records[0][0] != "timestamp" || records[0][1] != "node" {
		t.Errorf("unexpected header: %v", records[0])
	}

	row := records[1]
	if row[1] != "root" || row[2] != "ROOT" || row[6] != "core1" {
		t.Errorf("unexpected first row: %v", row)
	}
	if row[9] != "REGISTER_FEDERATE" || row[10] != "gen" {
		t.Errorf("expected action type and name, got %v", row)
	}

	row = records[2]
	if row[8] != "2.5" || row[9] != "grant" || row[10] != "2.5" {
		t.Errorf("unexpected grant row: %v", row)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, []log.Event{{Timestamp: time.Now()}})

	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExportMissingFile(t *testing.T) {
	if err := RunExport(filepath.Join(t.TempDir(), "missing.flog"), "jsonl", ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
