package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes captured events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("node", event.Node),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Peer != "" {
		attrs = append(attrs, slog.String("peer", event.Peer))
	}
	if event.Federate != "" {
		attrs = append(attrs, slog.String("federate", event.Federate))
	}
	if event.SimTime != 0 {
		attrs = append(attrs, slog.Float64("sim_time", event.SimTime))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Action != nil:
		attrs = append(attrs, slog.String("action", event.Action.Action.String()))
		if event.Action.Source != "" {
			attrs = append(attrs, slog.String("source", event.Action.Source))
		}
		if event.Action.Dest != "" {
			attrs = append(attrs, slog.String("dest", event.Action.Dest))
		}
		if event.Action.Name != "" {
			attrs = append(attrs, slog.String("name", event.Action.Name))
		}
		if event.Action.Target != "" {
			attrs = append(attrs, slog.String("target", event.Action.Target))
		}
		if event.Action.PayloadSize > 0 {
			attrs = append(attrs, slog.Int("payload_size", event.Action.PayloadSize))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Grant != nil:
		attrs = append(attrs,
			slog.Float64("requested", event.Grant.Requested),
			slog.Float64("granted", event.Grant.Granted),
			slog.String("result", event.Grant.Result),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "federation", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
