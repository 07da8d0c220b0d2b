package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/federate"
	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/process"
	"github.com/fedsim/fedsim-go/pkg/simtime"
)

const (
	// droop is the voltage drop in per-unit per kW of total load.
	droop = 0.003

	// undervoltage is the voltage below which loads raise an alarm.
	undervoltage = 0.95
)

// demo is the generator/load federation run by fedsim-run: one generator
// on its own core publishes a voltage, every load on the second core
// answers with its power draw and alarms the generator on undervoltage.
type demo struct {
	config Config
	logger *slog.Logger

	broker   *process.BrokerRef
	genCore  *process.CoreRef
	loadCore *process.CoreRef
	gen      *process.FederateRef
	loads    []*process.FederateRef

	mu     sync.Mutex
	result Result
}

// Result summarizes a finished run.
type Result struct {
	FinalTime simtime.Time
	Voltage   float64
	TotalLoad float64
	Alarms    int
	Steps     int
}

func loadName(i int) string {
	return "load" + strconv.Itoa(i+1)
}

// newDemo creates the broker, both cores and all federates on pc.
func newDemo(ctx context.Context, pc *process.Context, config Config, plog log.Logger, m *metrics.Collectors, logger *slog.Logger) (*demo, error) {
	d := &demo{config: config, logger: logger}

	var err error
	d.broker, err = pc.CreateBroker(ctx, broker.Config{
		Name:           "root",
		MinFederates:   config.Loads + 1,
		ConnectTimeout: config.ConnectTimeout,
		Logger:         logger,
		ProtocolLogger: plog,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("create broker: %w", err)
	}

	coreConfig := func(name string, minFederates int) core.Config {
		return core.Config{
			Name:           name,
			Broker:         d.broker.Get(),
			MinFederates:   minFederates,
			ConnectTimeout: config.ConnectTimeout,
			Logger:         logger,
			ProtocolLogger: plog,
			Metrics:        m,
		}
	}
	if d.genCore, err = pc.CreateCore(ctx, coreConfig("core_gen", 1)); err != nil {
		return nil, fmt.Errorf("create generator core: %w", err)
	}
	if d.loadCore, err = pc.CreateCore(ctx, coreConfig("core_load", config.Loads)); err != nil {
		return nil, fmt.Errorf("create load core: %w", err)
	}

	info := federate.DefaultInfo()
	info.Logger = logger
	if d.gen, err = pc.CreateFederate(ctx, d.genCore.Get(), "gen", info); err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	for i := range config.Loads {
		ref, err := pc.CreateFederate(ctx, d.loadCore.Get(), loadName(i), info)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", loadName(i), err)
		}
		d.loads = append(d.loads, ref)
	}
	return d, nil
}

// Broker returns the root broker.
func (d *demo) Broker() *broker.Broker {
	return d.broker.Get()
}

// run runs every federate on its own goroutine until the stop time.
func (d *demo) run(ctx context.Context) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.runGenerator(gctx, d.gen.Get()) })
	for _, ref := range d.loads {
		f := ref.Get()
		g.Go(func() error { return d.runLoad(gctx, f) })
	}
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, err
}

func (d *demo) runGenerator(ctx context.Context, f *federate.Federate) error {
	voltage, err := f.RegisterPublication(ctx, "voltage", option.DataTypeDouble, "pu")
	if err != nil {
		return err
	}
	if _, err := f.RegisterEndpoint(ctx, "control", ""); err != nil {
		return err
	}
	var loads []*federate.Input
	for i := range d.config.Loads {
		in, err := f.RegisterSubscription(ctx, loadName(i)+"/power", "kW")
		if err != nil {
			return err
		}
		loads = append(loads, in)
	}

	if err := f.EnterExecutingMode(ctx); err != nil {
		return err
	}
	if err := voltage.PublishDouble(1.0); err != nil {
		return err
	}

	var t simtime.Time
	for t < d.config.Stop {
		if t, err = f.RequestTime(ctx, next(t, d.config)); err != nil {
			return err
		}

		var total float64
		for _, in := range loads {
			total += in.GetDouble()
		}
		v := max(1.0-droop*total, 0)
		if err := voltage.PublishDouble(v); err != nil {
			return err
		}

		alarms := 0
		for f.HasMessage() {
			m := f.GetMessage()
			d.logger.Info("alarm", "time", float64(t), "from", m.OriginalSource, "text", string(m.Data))
			alarms++
		}

		d.mu.Lock()
		d.result.FinalTime = t
		d.result.Voltage = v
		d.result.TotalLoad = total
		d.result.Alarms += alarms
		d.result.Steps++
		d.mu.Unlock()

		d.logger.Debug("generator step", "time", float64(t), "load_kw", total, "voltage_pu", v)
		if err := d.pace(ctx); err != nil {
			return err
		}
	}
	return f.Finalize(ctx)
}

func (d *demo) runLoad(ctx context.Context, f *federate.Federate) error {
	voltage, err := f.RegisterSubscription(ctx, "gen/voltage", "pu")
	if err != nil {
		return err
	}
	voltage.SetDefaultDouble(1.0)
	power, err := f.RegisterPublication(ctx, "power", option.DataTypeDouble, "kW")
	if err != nil {
		return err
	}
	alarm, err := f.RegisterEndpoint(ctx, "alarm", "")
	if err != nil {
		return err
	}
	alarm.SetDefaultDestination("gen/control")

	if err := f.EnterExecutingMode(ctx); err != nil {
		return err
	}

	scale := 1.0
	var t simtime.Time
	for t < d.config.Stop {
		if t, err = f.RequestTime(ctx, next(t, d.config)); err != nil {
			return err
		}

		for cmd := f.GetCommand(); cmd != ""; cmd = f.GetCommand() {
			if s, ok := parseScale(cmd); ok {
				scale = s
				f.LogInfoMessage("load scaled", "scale", s)
			} else {
				f.LogWarningMessage("unknown command", "command", cmd)
			}
		}

		v := voltage.GetDouble()
		p := d.config.BaseLoad * scale * v * v
		if err := power.PublishDouble(p); err != nil {
			return err
		}
		if v < undervoltage {
			if err := alarm.SendString(fmt.Sprintf("undervoltage %.3f pu", v)); err != nil {
				return err
			}
		}
	}
	return f.Finalize(ctx)
}

// next returns the next request time, capped at the stop time.
func next(t simtime.Time, config Config) simtime.Time {
	return min(t+config.Step, config.Stop)
}

func (d *demo) pace(ctx context.Context) error {
	if d.config.Pace <= 0 {
		return nil
	}
	select {
	case <-time.After(d.config.Pace):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseScale parses a "scale <factor>" command.
func parseScale(cmd string) (float64, bool) {
	fields := strings.Fields(cmd)
	if len(fields) != 2 || fields[0] != "scale" {
		return 0, false
	}
	s, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || s < 0 {
		return 0, false
	}
	return s, true
}

// writeStatus prints the state and time of every federate.
func (d *demo) writeStatus(w io.Writer) {
	refs := append([]*process.FederateRef{d.gen}, d.loads...)
	for _, ref := range refs {
		f := ref.Get()
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "  %-8s %-12s t=%g\n", f.Name(), f.State(), float64(f.CurrentTime()))
	}
	d.mu.Lock()
	r := d.result
	d.mu.Unlock()
	fmt.Fprintf(w, "  voltage %.3f pu, load %.1f kW, alarms %d\n", r.Voltage, r.TotalLoad, r.Alarms)
}
