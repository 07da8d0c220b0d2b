// Package commands implements the fedsim-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Federate  string
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [node] DIRECTION LAYER Type @simtime
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	dir := event.Direction.String()

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Action != nil:
		typeLabel = event.Action.Action.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Grant != nil:
		typeLabel = "Grant"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [%s] %-5s %s %s", ts, event.Node, dir, layerStr, typeLabel)
	if event.Category == log.CategoryTime || event.Grant != nil {
		fmt.Fprintf(w, " @%s", formatSimTime(event.SimTime))
	}
	fmt.Fprintln(w)

	if event.Peer != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.Peer)
	}
	if event.Federate != "" {
		fmt.Fprintf(w, "  Federate: %s\n", event.Federate)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Action != nil:
		formatActionDetails(w, event.Action)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Grant != nil:
		formatGrantDetails(w, event.Grant)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// formatSimTime prints simulated seconds without trailing zeros.
func formatSimTime(t float64) string {
	return fmt.Sprintf("%gs", t)
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatActionDetails(w io.Writer, a *log.ActionEvent) {
	if a.Source != "" || a.Dest != "" {
		fmt.Fprintf(w, "  Route: %s -> %s\n", orDash(a.Source), orDash(a.Dest))
	} else if a.SourceNode != 0 || a.DestNode != 0 {
		fmt.Fprintf(w, "  Route: node %d -> node %d\n", a.SourceNode, a.DestNode)
	}
	if a.Name != "" {
		fmt.Fprintf(w, "  Name: %s\n", a.Name)
	}
	if a.Target != "" {
		fmt.Fprintf(w, "  Target: %s\n", a.Target)
	}
	if a.Counter != 0 {
		fmt.Fprintf(w, "  Counter: %d\n", a.Counter)
	}
	if a.PayloadSize > 0 {
		fmt.Fprintf(w, "  Payload: %d bytes\n", a.PayloadSize)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatGrantDetails(w io.Writer, g *log.GrantEvent) {
	fmt.Fprintf(w, "  Requested: %s  Granted: %s\n", formatSimTime(g.Requested), formatSimTime(g.Granted))
	if g.Result != "" {
		fmt.Fprintf(w, "  Result: %s\n", g.Result)
	}
	if g.Bound != 0 {
		fmt.Fprintf(w, "  Bound: %s\n", formatSimTime(g.Bound))
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// matches reports whether the event passes the view filter.
func (f ViewFilter) matches(e log.Event) bool {
	if f.Layer != nil && e.Layer != *f.Layer {
		return false
	}
	if f.Direction != nil && e.Direction != *f.Direction {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.Federate != "" && e.Federate != f.Federate {
		return false
	}
	return true
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseLayer(s)
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "federation":
		return log.LayerFederation, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or federation)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseDirection(s)
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or local)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "time":
		return log.CategoryTime, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, error, or time)", s)
	}
}

// parseAction parses an action name such as "time_grant" (case-insensitive).
func parseAction(s string) (wire.Action, error) {
	want := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for a := wire.Action(0); a < 255; a++ {
		if a.IsValid() && a.String() == want {
			return a, nil
		}
	}
	return 0, fmt.Errorf("invalid action: %s", s)
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !filter.matches(event) {
			continue
		}
		formatEvent(output, event)
	}

	return nil
}
