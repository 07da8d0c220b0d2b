// Command fedsim-log is a tool for viewing and analyzing federation protocol
// capture files.
//
// Capture files are written by cores and brokers configured with a protocol
// logger, for example by running fedsim-run with the -protocol-log flag.
//
// Usage:
//
//	fedsim-log <command> [flags] <file.flog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSON or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	fedsim-log view run.flog
//
//	# View only time requests and grants
//	fedsim-log view --category time run.flog
//
//	# Export to CSV
//	fedsim-log export --format csv -o run.csv run.flog
//
//	# Keep only one federate's events between t=10 and t=20
//	fedsim-log filter --federate load --sim-start 10 --sim-end 20 -o load.flog run.flog
//
//	# Show statistics
//	fedsim-log stats run.flog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fedsim/fedsim-go/cmd/fedsim-log/commands"
)

const usage = `fedsim-log - Federation Protocol Log Analyzer

Usage:
  fedsim-log <command> [flags] <file.flog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSON or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "fedsim-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// pathArg returns the single positional argument or exits with usage.
func pathArg(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `fedsim-log view - View capture file in human-readable format

Usage:
  fedsim-log view [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (transport, wire, federation)")
	direction := fs.String("direction", "", "Filter by direction (in, out, local)")
	category := fs.String("category", "", "Filter by category (message, control, state, error, time)")
	federate := fs.String("federate", "", "Filter by federate name")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := pathArg(fs)

	filter := commands.ViewFilter{Federate: *federate}

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `fedsim-log export - Export capture file to JSON or CSV format

Usage:
  fedsim-log export [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := pathArg(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `fedsim-log filter - Filter capture file and write to new file

Usage:
  fedsim-log filter [flags] <file.flog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	node := fs.String("node", "", "Filter by capturing core or broker name")
	federate := fs.String("federate", "", "Filter by federate name")
	timeStart := fs.String("time-start", "", "Filter by start wall-clock time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end wall-clock time (RFC3339)")
	simStart := fs.String("sim-start", "", "Filter by start simulated time (seconds)")
	simEnd := fs.String("sim-end", "", "Filter by end simulated time (seconds)")
	layer := fs.String("layer", "", "Filter by layer (transport, wire, federation)")
	direction := fs.String("direction", "", "Filter by direction (in, out, local)")
	category := fs.String("category", "", "Filter by category (message, control, state, error, time)")
	action := fs.String("action", "", "Filter by wire action (e.g. time_grant)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := pathArg(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:       *output,
		Node:         *node,
		Federate:     *federate,
		TimeStart:    *timeStart,
		TimeEnd:      *timeEnd,
		SimTimeStart: *simStart,
		SimTimeEnd:   *simEnd,
		Layer:        *layer,
		Direction:    *direction,
		Category:     *category,
		Action:       *action,
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `fedsim-log stats - Show statistics about the capture file

Usage:
  fedsim-log stats <file.flog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := pathArg(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
