// Command fedsim-run runs a demonstration federation in-process.
//
// It starts a root broker and two cores. A generator federate on the first
// core publishes a bus voltage; a configurable number of load federates on
// the second core subscribe to it, publish their power draw and send alarm
// messages to the generator on undervoltage.
//
// Usage:
//
//	fedsim-run [flags]
//
// Flags:
//
//	-federates int        Number of load federates (default 2)
//	-stop float           Simulated stop time in seconds (default 10)
//	-step float           Simulated time step in seconds (default 1)
//	-base-load float      Load of each federate at nominal voltage in kW (default 10)
//	-pace duration        Wall-clock pause after every generator step
//	-protocol-log string  Capture file for protocol events (.flog)
//	-metrics-addr string  Address serving Prometheus metrics (e.g. :9090)
//	-interactive          Start the operator console
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Run five loads for one simulated minute
//	fedsim-run -federates 5 -stop 60
//
//	# Capture the protocol and inspect it afterwards
//	fedsim-run -protocol-log run.flog && fedsim-log stats run.flog
//
//	# Drive a slow run from the console
//	fedsim-run -interactive -pace 1s -stop 120
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fedsim/fedsim-go/cmd/fedsim-run/interactive"
	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/process"
	"github.com/fedsim/fedsim-go/pkg/simtime"
)

// Config holds the run configuration.
type Config struct {
	Loads          int
	Stop           simtime.Time
	Step           simtime.Time
	BaseLoad       float64
	Pace           time.Duration
	ProtocolLog    string
	MetricsAddr    string
	Interactive    bool
	LogLevel       string
	ConnectTimeout time.Duration
}

var config Config

func init() {
	flag.IntVar(&config.Loads, "federates", 2, "Number of load federates")
	flag.Float64Var((*float64)(&config.Stop), "stop", 10, "Simulated stop time in seconds")
	flag.Float64Var((*float64)(&config.Step), "step", 1, "Simulated time step in seconds")
	flag.Float64Var(&config.BaseLoad, "base-load", 10, "Load of each federate at nominal voltage in kW")
	flag.DurationVar(&config.Pace, "pace", 0, "Wall-clock pause after every generator step")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Capture file for protocol events (.flog)")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Address serving Prometheus metrics (e.g. :9090)")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start the operator console")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.DurationVar(&config.ConnectTimeout, "connect-timeout", 30*time.Second, "Timeout for cores and broker to connect")
}

func main() {
	flag.Parse()

	if err := validateConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validateConfig(c Config) error {
	if c.Loads < 1 {
		return fmt.Errorf("federates must be at least 1, got %d", c.Loads)
	}
	if c.Step <= 0 {
		return fmt.Errorf("step must be positive, got %g", float64(c.Step))
	}
	if c.Stop <= 0 || c.Stop >= simtime.MaxTime {
		return fmt.Errorf("stop must be positive and finite, got %g", float64(c.Stop))
	}
	if c.BaseLoad < 0 {
		return fmt.Errorf("base-load must not be negative, got %g", c.BaseLoad)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	l, _ := parseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func run(config Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	logOut := io.Writer(os.Stderr)
	if config.Interactive {
		var err error
		if console, err = interactive.New(); err != nil {
			return err
		}
		defer console.Close()
		logOut = console.Stderr()
	}
	logger := newLogger(logOut, config.LogLevel)

	var plog log.Logger
	if config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer func() {
			logger.Info("protocol log written", "path", fl.Path(), "events", fl.Count())
			fl.Close()
		}()
		plog = fl
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if config.MetricsAddr != "" {
		srv := serveMetrics(config.MetricsAddr, reg, logger)
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	pc := process.New(process.Config{Logger: logger})
	defer func() {
		if err := pc.Shutdown(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()
	pc.LoadThreadedSignalHandler()

	d, err := newDemo(ctx, pc, config, plog, m, logger)
	if err != nil {
		return err
	}
	logger.Info("federation started",
		"loads", config.Loads, "stop", float64(config.Stop), "step", float64(config.Step))

	var result Result
	if console != nil {
		console.Bind(d.Broker(), d.writeStatus)
		result, err = runInteractive(ctx, cancel, console, d)
	} else {
		result, err = d.run(ctx)
	}
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		logger.Info("federation stopped by operator")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Finished at t=%g after %d steps: voltage %.3f pu, load %.1f kW, %d alarms\n",
		float64(result.FinalTime), result.Steps, result.Voltage, result.TotalLoad, result.Alarms)
	return nil
}

// runInteractive runs the federation behind the operator console. Leaving
// the console stops a federation that is still running.
func runInteractive(ctx context.Context, cancel context.CancelFunc, console *interactive.Console, d *demo) (Result, error) {
	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := d.run(ctx)
		done <- outcome{r, err}
		fmt.Fprintln(console.Stdout(), "Federation finished, type 'quit' to exit")
	}()

	console.Run(ctx, cancel)
	cancel()
	o := <-done
	return o.result, o.err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
