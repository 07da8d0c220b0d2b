package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/federate"
)

// Errors returned by a Context.
var (
	ErrShutdown  = errors.New("process context shut down")
	ErrNameInUse = errors.New("name already registered")
	ErrNotFound  = errors.New("no object registered with that name")
	ErrReleased  = errors.New("reference already released")
)

// Config configures a Context.
type Config struct {
	// CloseTimeout bounds the wait for each core, broker and federate to
	// stop when it is torn down (default: 5s).
	CloseTimeout time.Duration

	// Logger is the optional logger for operational output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{CloseTimeout: 5 * time.Second}
}

// Context is the process-scoped registry of cores, brokers and federates.
type Context struct {
	config Config
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	cores     map[string]*counted[*core.Core]
	brokers   map[string]*counted[*broker.Broker]
	federates map[string]*counted[*federate.Federate]

	sigMu      sync.Mutex
	sigStop    func()
	notify     func(chan<- os.Signal, ...os.Signal)
	stopNotify func(chan<- os.Signal)
	exit       func(int)
}

// New creates a Context.
func New(config Config) *Context {
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultConfig().CloseTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Context{
		config:     config,
		logger:     logger.With(slog.String("component", "process")),
		cores:      make(map[string]*counted[*core.Core]),
		brokers:    make(map[string]*counted[*broker.Broker]),
		federates:  make(map[string]*counted[*federate.Federate]),
		notify:     signal.Notify,
		stopNotify: signal.Stop,
		exit:       os.Exit,
	}
}

var (
	defaultMu      sync.Mutex
	defaultContext *Context
)

// Default returns the process-wide Context, creating it on first use and
// again after CleanupLibrary or Shutdown.
func Default() *Context {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultContext == nil || defaultContext.IsShutdown() {
		defaultContext = New(DefaultConfig())
	}
	return defaultContext
}

// CleanupLibrary shuts the process-wide Context down, if there is one.
func CleanupLibrary() error {
	defaultMu.Lock()
	pc := defaultContext
	defaultContext = nil
	defaultMu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.Shutdown()
}

// IsShutdown reports whether Shutdown has been called.
func (pc *Context) IsShutdown() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed
}

// CreateCore creates and connects a core and registers it under its name.
func (pc *Context) CreateCore(ctx context.Context, config core.Config) (*CoreRef, error) {
	if config.Name == "" {
		config.Name = core.DefaultConfig().Name
	}
	if err := reserve(pc, pc.cores, config.Name); err != nil {
		return nil, err
	}
	c, err := core.New(config)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		pc.closeCore(c)
		return nil, err
	}

	obj := &counted[*core.Core]{name: c.Name(), value: c, close: pc.closeCore}
	obj.drop = func() { delete(pc.cores, obj.name) }
	ref, err := register(pc, pc.cores, obj)
	if err != nil {
		pc.closeCore(c)
		return nil, err
	}
	pc.logger.Debug("core created", "core", c.Name())
	return ref, nil
}

// CreateBroker creates and connects a broker and registers it under its
// name.
func (pc *Context) CreateBroker(ctx context.Context, config broker.Config) (*BrokerRef, error) {
	if config.Name == "" {
		config.Name = broker.DefaultConfig().Name
	}
	if err := reserve(pc, pc.brokers, config.Name); err != nil {
		return nil, err
	}
	b, err := broker.New(config)
	if err != nil {
		return nil, err
	}
	if err := b.Connect(ctx); err != nil {
		pc.closeBroker(b)
		return nil, err
	}

	obj := &counted[*broker.Broker]{name: b.Name(), value: b, close: pc.closeBroker}
	obj.drop = func() { delete(pc.brokers, obj.name) }
	ref, err := register(pc, pc.brokers, obj)
	if err != nil {
		pc.closeBroker(b)
		return nil, err
	}
	pc.logger.Debug("broker created", "broker", b.Name())
	return ref, nil
}

// CreateFederate creates a federate on c and registers it under its name.
// A nil core makes the federate create and own one.
func (pc *Context) CreateFederate(ctx context.Context, c *core.Core, name string, info federate.Info) (*FederateRef, error) {
	if err := reserve(pc, pc.federates, name); err != nil {
		return nil, err
	}
	f, err := federate.New(ctx, c, name, info)
	if err != nil {
		return nil, err
	}

	obj := &counted[*federate.Federate]{name: name, value: f, close: pc.closeFederate}
	obj.drop = func() { delete(pc.federates, obj.name) }
	ref, err := register(pc, pc.federates, obj)
	if err != nil {
		pc.closeFederate(f)
		return nil, err
	}
	return ref, nil
}

// CoreByName returns a new reference on a registered core.
func (pc *Context) CoreByName(name string) (*CoreRef, error) {
	return lookup(pc, pc.cores, name)
}

// BrokerByName returns a new reference on a registered broker.
func (pc *Context) BrokerByName(name string) (*BrokerRef, error) {
	return lookup(pc, pc.brokers, name)
}

// FederateByName returns a new reference on a registered federate,
// including a protected federate with no references left.
func (pc *Context) FederateByName(name string) (*FederateRef, error) {
	return lookup(pc, pc.federates, name)
}

// Protect keeps a registered federate alive after its last reference is
// released.
func (pc *Context) Protect(name string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	obj, ok := pc.federates[name]
	if !ok {
		return fmt.Errorf("%w: federate %q", ErrNotFound, name)
	}
	obj.protected = true
	return nil
}

// Unprotect clears the protection of a federate. A federate without
// references is torn down.
func (pc *Context) Unprotect(name string) error {
	pc.mu.Lock()
	obj, ok := pc.federates[name]
	if !ok {
		pc.mu.Unlock()
		return fmt.Errorf("%w: federate %q", ErrNotFound, name)
	}
	obj.protected = false
	last := obj.refs <= 0
	if last {
		obj.dead = true
		obj.drop()
	}
	pc.mu.Unlock()
	if !last {
		return nil
	}
	return obj.close(obj.value)
}

// IsProtected reports whether the named federate is protected.
func (pc *Context) IsProtected(name string) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	obj, ok := pc.federates[name]
	return ok && obj.protected
}

// Names returns the sorted names of the registered cores, brokers and
// federates.
func (pc *Context) Names() (cores, brokers, federates []string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return sortedKeys(pc.cores), sortedKeys(pc.brokers), sortedKeys(pc.federates)
}

// Abort raises a global error with code and msg on every registered broker
// and core, and on every federate whose core is not registered.
func (pc *Context) Abort(code int, msg string) error {
	pc.mu.Lock()
	brokers := values(pc.brokers)
	cores := values(pc.cores)
	known := make(map[*core.Core]bool, len(cores))
	for _, c := range cores {
		known[c] = true
	}
	var feds []*federate.Federate
	for _, f := range values(pc.federates) {
		if !known[f.Core()] {
			feds = append(feds, f)
		}
	}
	pc.mu.Unlock()

	pc.logger.Warn("aborting", "code", code, "message", msg)
	var err error
	for _, b := range brokers {
		err = multierr.Append(err, b.GlobalError(code, msg))
	}
	for _, c := range cores {
		err = multierr.Append(err, c.GlobalError(code, msg))
	}
	for _, f := range feds {
		err = multierr.Append(err, f.GlobalError(code, msg))
	}
	return err
}

// Shutdown tears down every registered object, federates first, then
// cores, then brokers, and removes the signal handler. Later calls create
// nothing and return nil.
func (pc *Context) Shutdown() error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil
	}
	pc.closed = true
	feds := takeAll(pc.federates)
	cores := takeAll(pc.cores)
	brokers := takeAll(pc.brokers)
	pc.mu.Unlock()

	pc.ClearSignalHandler()

	var err error
	for _, f := range feds {
		err = multierr.Append(err, pc.closeFederate(f))
	}
	for _, c := range cores {
		err = multierr.Append(err, pc.closeCore(c))
	}
	for _, b := range brokers {
		err = multierr.Append(err, pc.closeBroker(b))
	}
	pc.logger.Debug("process context shut down",
		"federates", len(feds), "cores", len(cores), "brokers", len(brokers))
	return err
}

func (pc *Context) closeCore(c *core.Core) error {
	if err := c.Disconnect(); err != nil {
		return err
	}
	return c.WaitForDisconnect(pc.config.CloseTimeout)
}

func (pc *Context) closeBroker(b *broker.Broker) error {
	if err := b.Disconnect(); err != nil {
		return err
	}
	return b.WaitForDisconnect(pc.config.CloseTimeout)
}

func (pc *Context) closeFederate(f *federate.Federate) error {
	ctx, cancel := context.WithTimeout(context.Background(), pc.config.CloseTimeout)
	defer cancel()
	return f.Disconnect(ctx)
}

// reserve fails early on a shut down context or a taken name.
func reserve[T any](pc *Context, objects map[string]*counted[T], name string) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return ErrShutdown
	}
	if _, taken := objects[name]; taken && name != "" {
		return fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	return nil
}

// register adds obj to objects and returns the first reference on it.
func register[T any](pc *Context, objects map[string]*counted[T], obj *counted[T]) (*Ref[T], error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil, ErrShutdown
	}
	if _, taken := objects[obj.name]; taken {
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, obj.name)
	}
	objects[obj.name] = obj
	return acquire(pc, obj), nil
}

func lookup[T any](pc *Context, objects map[string]*counted[T], name string) (*Ref[T], error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	obj, ok := objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return acquire(pc, obj), nil
}

// takeAll empties objects and returns their values. Requires pc.mu.
func takeAll[T any](objects map[string]*counted[T]) []T {
	out := make([]T, 0, len(objects))
	for name, obj := range objects {
		obj.dead = true
		out = append(out, obj.value)
		delete(objects, name)
	}
	return out
}

// values requires pc.mu.
func values[T any](objects map[string]*counted[T]) []T {
	out := make([]T, 0, len(objects))
	for _, obj := range objects {
		out = append(out, obj.value)
	}
	return out
}

func sortedKeys[T any](objects map[string]*counted[T]) []string {
	keys := slices.Sorted(maps.Keys(objects))
	if keys == nil {
		keys = []string{}
	}
	return keys
}
