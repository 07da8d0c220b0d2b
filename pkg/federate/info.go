package federate

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// Errors returned by federates.
var (
	ErrInvalidInfo      = errors.New("invalid federate info")
	ErrAsyncOutstanding = status.Errorf(status.KindInvalidState, "asynchronous operation outstanding")
	ErrNoAsync          = status.Errorf(status.KindInvalidState, "no matching asynchronous operation outstanding")
)

// DefaultSeparator joins a federate name to the local names of its
// interfaces.
const DefaultSeparator = '/'

// Info configures a federate and, when no core is given, the core created
// for it.
type Info struct {
	// CoreName names the created core. Empty generates a name.
	CoreName string

	// CoreType is the type of the created core (see core.IsCoreTypeAvailable).
	CoreType string

	// BrokerAddress and BrokerPort locate the broker of a tcp core.
	BrokerAddress string
	BrokerPort    int

	// Separator joins the federate name to local interface names
	// (default: DefaultSeparator).
	Separator byte

	// Flags are the initial federate flags.
	Flags map[option.Flag]bool

	// TimeProperties are the initial time properties.
	TimeProperties map[option.Property]simtime.Time

	// IntProperties are the initial integer properties.
	IntProperties map[option.Property]int

	// Logger is the optional logger for operational output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultInfo returns an Info for a federate on an in-process core.
func DefaultInfo() Info {
	return Info{
		Separator:      DefaultSeparator,
		Flags:          make(map[option.Flag]bool),
		TimeProperties: make(map[option.Property]simtime.Time),
		IntProperties:  make(map[option.Property]int),
	}
}

// Validate checks if the info is valid.
func (i *Info) Validate() error {
	for p, v := range i.TimeProperties {
		if !p.IsTime() {
			return fmt.Errorf("%w: %s is not a time property", ErrInvalidInfo, p)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative %s", ErrInvalidInfo, p)
		}
	}
	for p := range i.IntProperties {
		if p != option.PropertyMaxIterations && p != option.PropertyLogLevel {
			return fmt.Errorf("%w: %s is not an integer property", ErrInvalidInfo, p)
		}
	}
	for f := range i.Flags {
		if !f.IsValid() {
			return fmt.Errorf("%w: unknown flag %d", ErrInvalidInfo, int(f))
		}
	}
	if i.BrokerPort < 0 || i.BrokerPort > 65535 {
		return fmt.Errorf("%w: broker port %d out of range", ErrInvalidInfo, i.BrokerPort)
	}
	if i.BrokerPort != 0 && i.BrokerAddress == "" {
		return fmt.Errorf("%w: broker port without address", ErrInvalidInfo)
	}
	return nil
}

// coreConfig builds the configuration of a core created for the federate.
func (i *Info) coreConfig() core.Config {
	cfg := core.DefaultConfig()
	if i.CoreName != "" {
		cfg.Name = i.CoreName
	}
	if i.CoreType != "" {
		cfg.Type = i.CoreType
	}
	if i.BrokerAddress != "" {
		cfg.Type = core.TypeTCP
		cfg.BrokerAddress = i.BrokerAddress
		if i.BrokerPort != 0 {
			cfg.BrokerAddress = net.JoinHostPort(i.BrokerAddress, strconv.Itoa(i.BrokerPort))
		}
	}
	cfg.Logger = i.Logger
	return cfg
}
