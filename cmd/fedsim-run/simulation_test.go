package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/log"
	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/process"
	"github.com/fedsim/fedsim-go/pkg/simtime"
)

func testConfig() Config {
	return Config{
		Loads:          2,
		Stop:           3,
		Step:           1,
		BaseLoad:       10,
		LogLevel:       "info",
		ConnectTimeout: 5 * time.Second,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no loads", func(c *Config) { c.Loads = 0 }, true},
		{"zero step", func(c *Config) { c.Step = 0 }, true},
		{"zero stop", func(c *Config) { c.Stop = 0 }, true},
		{"unbounded stop", func(c *Config) { c.Stop = simtime.MaxTime }, true},
		{"negative load", func(c *Config) { c.BaseLoad = -1 }, true},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"debug level", func(c *Config) { c.LogLevel = "debug" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.modify(&c)
			err := validateConfig(c)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseScale(t *testing.T) {
	s, ok := parseScale("scale 1.5")
	assert.True(t, ok)
	assert.Equal(t, 1.5, s)

	for _, cmd := range []string{"scale", "scale x", "scale -1", "grow 2", "scale 1 2"} {
		_, ok := parseScale(cmd)
		assert.False(t, ok, cmd)
	}
}

func TestDemoRunsToStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	capture := filepath.Join(t.TempDir(), "run.flog")
	fl, err := log.NewFileLogger(capture)
	require.NoError(t, err)
	defer fl.Close()

	reg := prometheus.NewRegistry()
	pc := process.New(process.DefaultConfig())
	t.Cleanup(func() { pc.Shutdown() })

	config := testConfig()
	d, err := newDemo(ctx, pc, config, fl, metrics.New(reg), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	result, err := d.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, simtime.Time(3), result.FinalTime)
	assert.Equal(t, 3, result.Steps)
	assert.Greater(t, result.TotalLoad, 0.0)
	assert.Less(t, result.Voltage, 1.0)

	var status bytes.Buffer
	d.writeStatus(&status)
	assert.Contains(t, status.String(), "gen")
	assert.Contains(t, status.String(), "load2")

	assert.Positive(t, fl.Count(), "the federation was captured")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNextCapsAtStop(t *testing.T) {
	c := Config{Stop: 2.5, Step: 1}
	assert.Equal(t, simtime.Time(1), next(0, c))
	assert.Equal(t, simtime.Time(2.5), next(2, c))
}
