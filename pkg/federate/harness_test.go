package federate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/simtime"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// connectedCore starts an in-process core with its own root broker that
// holds initialization until minFederates federates have registered.
func connectedCore(t *testing.T, minFederates int) *core.Core {
	t.Helper()
	c, err := core.New(core.Config{
		Name:           "core_" + t.Name(),
		MinFederates:   minFederates,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, c.Connect(testContext(t)))
	t.Cleanup(func() {
		c.Disconnect()
		c.WaitForDisconnect(5 * time.Second)
	})
	return c
}

func newFederate(t *testing.T, c *core.Core, name string) *Federate {
	t.Helper()
	f, err := New(testContext(t), c, name, DefaultInfo())
	require.NoError(t, err)
	return f
}

// parallel runs fns concurrently and fails on the first error.
func parallel(t *testing.T, fns ...func() error) {
	t.Helper()
	var g errgroup.Group
	for _, fn := range fns {
		g.Go(fn)
	}
	require.NoError(t, g.Wait())
}

// enterExecuting moves every federate into executing mode together.
func enterExecuting(t *testing.T, feds ...*Federate) {
	t.Helper()
	ctx := testContext(t)
	fns := make([]func() error, 0, len(feds))
	for _, f := range feds {
		fns = append(fns, func() error { return f.EnterExecutingMode(ctx) })
	}
	parallel(t, fns...)
}

// step requests t on every federate together and returns the grants in
// federate order.
func step(t *testing.T, at simtime.Time, feds ...*Federate) []simtime.Time {
	t.Helper()
	ctx := testContext(t)
	grants := make([]simtime.Time, len(feds))
	fns := make([]func() error, 0, len(feds))
	for i, f := range feds {
		fns = append(fns, func() (err error) {
			grants[i], err = f.RequestTime(ctx, at)
			return err
		})
	}
	parallel(t, fns...)
	return grants
}
