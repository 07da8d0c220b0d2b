package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/transport"
)

// Errors returned by brokers.
var (
	ErrInvalidConfig   = errors.New("invalid broker configuration")
	ErrNotConnected    = errors.New("broker not connected")
	ErrAlreadyStarted  = errors.New("broker already connected")
	ErrBrokerStopped   = errors.New("broker stopped")
	ErrDisconnectTimer = errors.New("timed out waiting for disconnect")
)

// Config configures a Broker.
type Config struct {
	// Name is the broker name. Defaults to "broker_<uuid>".
	Name string

	// MinFederates holds the initialization barrier until this many
	// federates have registered. Only meaningful on the root.
	MinFederates int

	// Parent makes this broker a sub-broker attached in-process to another
	// broker. Nil with an empty ParentAddress makes this the root.
	Parent transport.Attacher

	// ParentAddress makes this broker a sub-broker connected over TCP.
	ParentAddress string

	// Listen is an optional TCP address for remote children (e.g., ":23500").
	Listen string

	// ConnectTimeout bounds the registration with the parent (default: 30s).
	ConnectTimeout time.Duration

	// Seed seeds the random filters created by the root.
	Seed uint64

	// Logger is the optional logger for operational output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures routed traffic, state changes and grants (optional).
	ProtocolLogger log.Logger

	// Metrics receives grant and routing counters (optional).
	Metrics *metrics.Collectors

	// Clock drives disconnect timeouts. Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns a root broker Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:           "broker_" + uuid.New().String(),
		MinFederates:   1,
		ConnectTimeout: 30 * time.Second,
		Seed:           1,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.MinFederates < 0 {
		return fmt.Errorf("%w: negative MinFederates", ErrInvalidConfig)
	}
	if c.Parent != nil && c.ParentAddress != "" {
		return fmt.Errorf("%w: Parent and ParentAddress are exclusive", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: negative ConnectTimeout", ErrInvalidConfig)
	}
	return nil
}

// IsRoot reports whether the config describes a root broker.
func (c *Config) IsRoot() bool {
	return c.Parent == nil && c.ParentAddress == ""
}
