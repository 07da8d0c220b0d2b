package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Nodes             map[string]*NodeStats
	Federates         map[string]*FederateStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// NodeStats holds statistics for a single capturing core or broker.
type NodeStats struct {
	Role      log.Role
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Peers     map[string]bool
}

// FederateStats holds grant statistics for a single federate.
type FederateStats struct {
	Grants      int
	LastGranted float64
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Nodes:             make(map[string]*NodeStats),
		Federates:         make(map[string]*FederateStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	node, ok := s.Nodes[event.Node]
	if !ok {
		node = &NodeStats{
			Role:      event.Role,
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Peers:     make(map[string]bool),
		}
		s.Nodes[event.Node] = node
	}
	node.Events++
	if event.Timestamp.After(node.LastSeen) {
		node.LastSeen = event.Timestamp
	}
	if event.Peer != "" {
		node.Peers[event.Peer] = true
	}

	if event.Grant != nil && event.Federate != "" {
		fed, ok := s.Federates[event.Federate]
		if !ok {
			fed = &FederateStats{}
			s.Federates[event.Federate] = fed
		}
		fed.Grants++
		if event.Grant.Granted > fed.LastGranted {
			fed.LastGranted = event.Grant.Granted
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Federation Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerFederation} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError, log.CategoryTime} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionLocal} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Nodes: %d\n", len(stats.Nodes))
	if len(stats.Nodes) > 0 {
		type nodeInfo struct {
			name  string
			stats *NodeStats
		}
		nodes := make([]nodeInfo, 0, len(stats.Nodes))
		for name, ns := range stats.Nodes {
			nodes = append(nodes, nodeInfo{name, ns})
		}
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].stats.FirstSeen.Equal(nodes[j].stats.FirstSeen) {
				return nodes[i].name < nodes[j].name
			}
			return nodes[i].stats.FirstSeen.Before(nodes[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, n := range nodes {
			duration := n.stats.LastSeen.Sub(n.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n", n.name, n.stats.Role, n.stats.Events, duration)
			if len(n.stats.Peers) > 0 {
				fmt.Fprintf(w, "           Peers: %d\n", len(n.stats.Peers))
			}
		}
	}

	if len(stats.Federates) > 0 {
		names := make([]string, 0, len(stats.Federates))
		for name := range stats.Federates {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Grants by Federate:")
		for _, name := range names {
			fs := stats.Federates[name]
			fmt.Fprintf(w, "  %-12s %d (last %s)\n", name+":", fs.Grants, formatSimTime(fs.LastGranted))
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
