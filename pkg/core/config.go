package core

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

// Errors returned by cores.
var (
	ErrInvalidConfig     = errors.New("invalid core configuration")
	ErrNotConnected      = errors.New("core not connected")
	ErrAlreadyStarted    = errors.New("core already connected")
	ErrCoreStopped       = errors.New("core stopped")
	ErrDisconnectTimer   = errors.New("timed out waiting for disconnect")
	ErrSessionClosed     = errors.New("federate session closed")
	ErrTypeNotAvailable  = errors.New("core type not available")
	ErrDuplicateFederate = errors.New("duplicate federate name")
)

// DefaultLocalErrorWindow is how long a federate that raised a local error
// may still log and query before its session is removed.
const DefaultLocalErrorWindow = 2 * time.Second

// Config configures a Core.
type Config struct {
	// Name is the core name. Defaults to "core_<uuid>".
	Name string

	// Type is the core type (see IsCoreTypeAvailable). Empty means inproc.
	Type string

	// Broker is an in-process broker to attach to. Nil with an empty
	// BrokerAddress makes the core start its own root broker.
	Broker transport.Attacher

	// BrokerAddress is the TCP address of the broker for the tcp core type.
	BrokerAddress string

	// MinFederates holds initialization requests until this many federates
	// have registered with the core. It also sets the barrier of an owned
	// root broker.
	MinFederates int

	// DelayInitEntry holds initialization requests until SetReadyToInit.
	DelayInitEntry bool

	// ConnectTimeout bounds the registration with the broker (default: 30s).
	ConnectTimeout time.Duration

	// LocalErrorWindow is how long an errored federate keeps its session
	// (default: DefaultLocalErrorWindow).
	LocalErrorWindow time.Duration

	// Logger is the optional logger for operational output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures state changes and traffic (optional).
	ProtocolLogger log.Logger

	// Metrics receives query and federate counters (optional).
	Metrics *metrics.Collectors

	// Clock drives timeouts and the local error window. Defaults to the
	// wall clock.
	Clock clock.Clock
}

// DefaultConfig returns a Config for an in-process core with its own broker.
func DefaultConfig() Config {
	return Config{
		Name:             "core_" + uuid.New().String(),
		Type:             TypeInproc,
		MinFederates:     1,
		ConnectTimeout:   30 * time.Second,
		LocalErrorWindow: DefaultLocalErrorWindow,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.MinFederates < 0 {
		return fmt.Errorf("%w: negative MinFederates", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 || c.LocalErrorWindow < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.Broker != nil && c.BrokerAddress != "" {
		return fmt.Errorf("%w: Broker and BrokerAddress are exclusive", ErrInvalidConfig)
	}
	t, err := ParseType(c.Type)
	if err != nil {
		return err
	}
	if t == TypeTCP && c.Broker != nil {
		return fmt.Errorf("%w: tcp core cannot attach in-process", ErrInvalidConfig)
	}
	if t != TypeTCP && c.BrokerAddress != "" {
		return fmt.Errorf("%w: broker address needs the tcp core type", ErrInvalidConfig)
	}
	return nil
}
