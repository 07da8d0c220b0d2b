package federate

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/query"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// Federate is one simulator taking part in a federation.
//
// The core delivers traffic to the federate on its event loop, so mu is
// never held across a call into the core.
type Federate struct {
	name     string
	core     *core.Core
	ownsCore bool
	session  *core.Session
	logger   atomic.Pointer[slog.Logger]

	mu        sync.Mutex
	state     option.FederateState
	current   simtime.Time
	fatal     error
	separator byte
	flags     map[option.Flag]bool
	timeProps map[option.Property]simtime.Time
	intProps  map[option.Property]int
	tags      map[string]string
	logFile   *os.File

	// Interfaces in registration order.
	publications []*Publication
	inputs       []*Input
	endpoints    []*Endpoint
	filters      []*Filter
	translators  []*Translator
	byHandle     map[wire.GlobalHandle]any
	pendingLinks map[wire.GlobalHandle][]core.LinkNotice

	commands      []command
	commandSource string
	commandSignal chan struct{}
	queryCallback query.Callback
	arrivals      uint64

	async *operation
}

type command struct {
	source string
	text   string
}

// New registers a federate named name with c. A nil core makes the
// federate create, connect and own a core configured from info.
func New(ctx context.Context, c *core.Core, name string, info Info) (*Federate, error) {
	if name == "" {
		return nil, status.Errorf(status.KindInvalidArgument, "federate name is empty")
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}

	owns := false
	if c == nil {
		var err error
		c, err = core.New(info.coreConfig())
		if err != nil {
			return nil, err
		}
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		owns = true
	}

	logger := info.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := &Federate{
		name:          name,
		core:          c,
		ownsCore:      owns,
		state:         option.StateCreated,
		separator:     info.Separator,
		flags:         make(map[option.Flag]bool),
		timeProps:     make(map[option.Property]simtime.Time),
		intProps:      map[option.Property]int{option.PropertyLogLevel: LogLevelWarning},
		tags:          make(map[string]string),
		byHandle:      make(map[wire.GlobalHandle]any),
		pendingLinks:  make(map[wire.GlobalHandle][]core.LinkNotice),
		commandSignal: make(chan struct{}, 1),
	}
	f.logger.Store(logger.With(slog.String("federate", name)))
	if f.separator == 0 {
		f.separator = DefaultSeparator
	}
	maps.Copy(f.flags, info.Flags)
	maps.Copy(f.timeProps, info.TimeProperties)
	maps.Copy(f.intProps, info.IntProperties)

	session, err := c.RegisterFederate(ctx, name, core.FederateConfig{
		Flags:            f.timingFlags(),
		Properties:       f.propertyValues(),
		DelayInitEntry:   f.flags[option.FlagDelayInitEntry],
		TerminateOnError: f.flags[option.FlagTerminateOnError],
		Handler:          f,
	})
	if err != nil {
		if owns {
			c.Disconnect()
		}
		return nil, err
	}
	f.session = session
	f.logger.Load().Debug("federate created", "core", c.Name())
	return f, nil
}

// Name returns the federate name.
func (f *Federate) Name() string {
	return f.name
}

// Core returns the core hosting the federate.
func (f *Federate) Core() *core.Core {
	return f.core
}

// State returns the lifecycle state. While an asynchronous operation is
// outstanding the matching pending state is reported.
func (f *Federate) State() option.FederateState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.async != nil {
		return f.async.pending
	}
	return f.state
}

// CurrentTime returns the last granted time.
func (f *Federate) CurrentTime() simtime.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// localName returns the global name of a local interface name.
func (f *Federate) localName(name string) string {
	f.mu.Lock()
	sep := f.separator
	f.mu.Unlock()
	return f.name + string(sep) + name
}

// Separator returns the separator joining the federate name to local
// interface names.
func (f *Federate) Separator() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.separator
}

// SetSeparator changes the separator used for interfaces registered later.
func (f *Federate) SetSeparator(sep byte) error {
	switch sep {
	case 0, ' ', '\t', '\n':
		return status.Errorf(status.KindInvalidArgument, "invalid separator %q", sep)
	}
	f.mu.Lock()
	f.separator = sep
	f.mu.Unlock()
	return nil
}

// SetTag stores a tag on the federate.
func (f *Federate) SetTag(name, value string) error {
	if name == "" {
		return status.Errorf(status.KindInvalidArgument, "tag name is empty")
	}
	f.mu.Lock()
	f.tags[name] = value
	f.mu.Unlock()
	return nil
}

// GetTag returns a tag of the federate, empty if unset.
func (f *Federate) GetTag(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[name]
}

// SetTimeProperty changes a time property.
func (f *Federate) SetTimeProperty(p option.Property, v simtime.Time) error {
	if !p.IsTime() {
		return status.Errorf(status.KindInvalidProperty, "%s is not a time property", p)
	}
	if v < 0 {
		return status.Errorf(status.KindInvalidProperty, "negative %s", p)
	}
	f.mu.Lock()
	f.timeProps[p] = v
	flags := f.timingFlags()
	f.mu.Unlock()
	return f.session.SetTimeProperties(map[option.Property]float64{p: float64(v)}, flags)
}

// GetTimeProperty returns a time property, simtime.Invalid for a property
// that is not a time property.
func (f *Federate) GetTimeProperty(p option.Property) simtime.Time {
	if !p.IsTime() {
		return simtime.Invalid
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeProps[p]
}

// SetIntegerProperty changes an integer property.
func (f *Federate) SetIntegerProperty(p option.Property, v int) error {
	switch p {
	case option.PropertyLogLevel:
		f.mu.Lock()
		f.intProps[p] = v
		f.mu.Unlock()
		return nil
	case option.PropertyMaxIterations:
		if v < 1 {
			return status.Errorf(status.KindInvalidProperty, "max_iterations must be positive")
		}
		f.mu.Lock()
		f.intProps[p] = v
		flags := f.timingFlags()
		f.mu.Unlock()
		return f.session.SetTimeProperties(map[option.Property]float64{p: float64(v)}, flags)
	}
	return status.Errorf(status.KindInvalidProperty, "%s is not an integer property", p)
}

// GetIntegerProperty returns an integer property, option.InvalidPropertyValue
// for a property that is not an integer property.
func (f *Federate) GetIntegerProperty(p option.Property) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch p {
	case option.PropertyLogLevel, option.PropertyMaxIterations:
		return f.intProps[p]
	}
	return option.InvalidPropertyValue
}

// SetFlagOption changes a federate flag.
func (f *Federate) SetFlagOption(flag option.Flag, on bool) error {
	if !flag.IsValid() {
		return status.Errorf(status.KindInvalidProperty, "unknown flag %d", int(flag))
	}
	f.mu.Lock()
	if flag == option.FlagDelayInitEntry && on && f.state != option.StateCreated {
		f.mu.Unlock()
		return status.Errorf(status.KindInvalidState, "delay_init_entry must be set before initialization")
	}
	switch flag {
	case option.FlagInterruptible:
		f.flags[option.FlagUninterruptible] = !on
	case option.FlagEnableInitEntry:
		f.flags[option.FlagDelayInitEntry] = !on
	default:
		f.flags[flag] = on
	}
	flags := f.timingFlags()
	f.mu.Unlock()

	switch flag {
	case option.FlagObserver, option.FlagSourceOnly, option.FlagUninterruptible,
		option.FlagInterruptible, option.FlagWaitForCurrentTimeUpdate:
		return f.session.SetTimeProperties(nil, flags)
	case option.FlagTerminateOnError:
		return f.session.SetTerminateOnError(on)
	case option.FlagEnableInitEntry:
		if on {
			return f.session.EnableInitEntry()
		}
	case option.FlagDelayInitEntry:
		if !on {
			return f.session.EnableInitEntry()
		}
	}
	return nil
}

// GetFlagOption reports a federate flag.
func (f *Federate) GetFlagOption(flag option.Flag) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch flag {
	case option.FlagInterruptible:
		return !f.flags[option.FlagUninterruptible]
	case option.FlagEnableInitEntry:
		return !f.flags[option.FlagDelayInitEntry]
	}
	return f.flags[flag]
}

// timingFlags returns the wire flags of the federate's timing role.
// Requires mu or exclusive access.
func (f *Federate) timingFlags() uint32 {
	var flags uint32
	if f.flags[option.FlagObserver] {
		flags |= wire.FlagObserver
	}
	if f.flags[option.FlagSourceOnly] {
		flags |= wire.FlagSourceOnly
	}
	if f.flags[option.FlagUninterruptible] {
		flags |= wire.FlagUninterruptible
	}
	if f.flags[option.FlagWaitForCurrentTimeUpdate] {
		flags |= wire.FlagWaitForCurrent
	}
	return flags
}

// propertyValues returns the properties reported at registration.
func (f *Federate) propertyValues() map[option.Property]float64 {
	out := make(map[option.Property]float64, len(f.timeProps)+1)
	for p, v := range f.timeProps {
		out[p] = float64(v)
	}
	if v, ok := f.intProps[option.PropertyMaxIterations]; ok {
		out[option.PropertyMaxIterations] = float64(v)
	}
	return out
}

// SetLogFile adds a text log handler writing the federate's log to path.
func (f *Federate) SetLogFile(path string) error {
	handler, file, err := log.OpenTextLog(path, slog.LevelDebug)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logFile != nil {
		f.logFile.Close()
	}
	f.logFile = file
	f.logger.Store(slog.New(log.NewTeeHandler(f.logger.Load().Handler(), handler)))
	return nil
}

// SetGlobal stores a federation-wide global value.
func (f *Federate) SetGlobal(name, value string) error {
	if name == "" {
		return status.Errorf(status.KindInvalidArgument, "global name is empty")
	}
	return f.session.SetGlobal(name, value)
}

// AddDependency makes the federate wait for grants of the named federate.
func (f *Federate) AddDependency(federate string) error {
	return f.session.Link(wire.LinkDependency, federate, f.name)
}

// SendCommand sends a command to a federate, core or broker.
func (f *Federate) SendCommand(target, cmd string, mode option.SequencingMode) error {
	if target == "" || cmd == "" {
		return status.Errorf(status.KindInvalidArgument, "command target and text are required")
	}
	return f.session.SendCommand(target, cmd, mode)
}

// GetCommand returns the oldest received command, empty if there is none.
func (f *Federate) GetCommand() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, _ := f.nextCommand()
	return cmd
}

// GetCommandSource returns the source of the command last returned by
// GetCommand or WaitCommand.
func (f *Federate) GetCommandSource() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commandSource
}

// PendingCommandCount returns the number of queued commands.
func (f *Federate) PendingCommandCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

// WaitCommand blocks until a command arrives.
func (f *Federate) WaitCommand(ctx context.Context) (string, error) {
	for {
		f.mu.Lock()
		cmd, ok := f.nextCommand()
		f.mu.Unlock()
		if ok {
			return cmd, nil
		}
		select {
		case <-f.commandSignal:
		case <-f.core.Done():
			return "", core.ErrCoreStopped
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// nextCommand requires mu. An empty command text is still a command.
func (f *Federate) nextCommand() (string, bool) {
	if len(f.commands) == 0 {
		return "", false
	}
	c := f.commands[0]
	f.commands = f.commands[1:]
	f.commandSource = c.source
	return c.text, true
}

// SetQueryCallback installs a callback answering federate-specific
// queries before the built-in answers. The callback runs on the core's
// event loop and must not call into the core.
func (f *Federate) SetQueryCallback(cb query.Callback) {
	f.mu.Lock()
	f.queryCallback = cb
	f.mu.Unlock()
}

// Query runs a query. An empty target or "federate" targets this federate.
func (f *Federate) Query(ctx context.Context, target, q string, mode option.SequencingMode) (string, error) {
	switch target {
	case "", "federate":
		target = f.name
	}
	return f.session.Query(ctx, target, q, mode)
}

var _ query.Executor = (*Federate)(nil)

// ProcessCommunications waits until the core has delivered all queued
// traffic and then for d, or until ctx is done.
func (f *Federate) ProcessCommunications(ctx context.Context, d time.Duration) error {
	if err := f.session.Sync(ctx); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := f.core.Clock().Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LocalError finalizes the federate with an error. It may still log and
// query for a short window.
func (f *Federate) LocalError(code int, msg string) error {
	err := f.session.LocalError(code, msg)
	f.mu.Lock()
	f.state = option.StateError
	f.fatal = status.New(status.Code(code), status.KindLocalFatal, msg)
	f.mu.Unlock()
	f.logger.Load().Error("local error", "code", code, "message", msg)
	return err
}

// GlobalError halts the whole federation.
func (f *Federate) GlobalError(code int, msg string) error {
	err := f.session.GlobalError(code, msg)
	f.mu.Lock()
	f.state = option.StateError
	f.fatal = status.New(status.Code(code), status.KindFederationFatal, msg)
	f.mu.Unlock()
	f.logger.Load().Error("global error", "code", code, "message", msg)
	return err
}
