package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Filter specifies criteria for filtering captured events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// Node filters by exact capturing node name.
	Node string

	// Federate filters by exact federate name.
	Federate string

	// Direction filters by message direction.
	Direction *Direction

	// Layer filters by layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// Action filters wire-layer events by action.
	Action *wire.Action

	// TimeStart filters events at or after this wall-clock time.
	TimeStart *time.Time

	// TimeEnd filters events before this wall-clock time.
	TimeEnd *time.Time

	// SimTimeStart filters events at or after this simulated time.
	SimTimeStart *float64

	// SimTimeEnd filters events before this simulated time.
	SimTimeEnd *float64
}

// Matches reports whether the event matches all filter criteria.
func (f *Filter) Matches(event Event) bool {
	if f.Node != "" && event.Node != f.Node {
		return false
	}
	if f.Federate != "" && event.Federate != f.Federate {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.Action != nil && (event.Action == nil || event.Action.Action != *f.Action) {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.SimTimeStart != nil && event.SimTime < *f.SimTimeStart {
		return false
	}
	if f.SimTimeEnd != nil && event.SimTime >= *f.SimTimeEnd {
		return false
	}
	return true
}

// Reader reads events from a CBOR capture file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all events from the capture file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
