package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output       string
	Node         string
	Federate     string
	TimeStart    string
	TimeEnd      string
	SimTimeStart string
	SimTimeEnd   string
	Layer        string
	Direction    string
	Category     string
	Action       string
}

// buildFilter converts the command-line options into a log filter.
func buildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{
		Node:     opts.Node,
		Federate: opts.Federate,
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.SimTimeStart != "" {
		v, err := strconv.ParseFloat(opts.SimTimeStart, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid sim-start: %w", err)
		}
		filter.SimTimeStart = &v
	}

	if opts.SimTimeEnd != "" {
		v, err := strconv.ParseFloat(opts.SimTimeEnd, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid sim-end: %w", err)
		}
		filter.SimTimeEnd = &v
	}

	if opts.Layer != "" {
		l, err := parseLayer(opts.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}

	if opts.Direction != "" {
		d, err := parseDirection(opts.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}

	if opts.Category != "" {
		c, err := parseCategory(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	if opts.Action != "" {
		a, err := parseAction(opts.Action)
		if err != nil {
			return filter, err
		}
		filter.Action = &a
	}

	return filter, nil
}

// RunFilter filters the log file and writes matching events to a new file.
// It returns the number of events written.
func RunFilter(path string, opts FilterOptions) (int, error) {
	filter, err := buildFilter(opts)
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	return count, logger.Sync()
}
