package process

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/federate"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newContext(t *testing.T) *Context {
	t.Helper()
	pc := New(DefaultConfig())
	t.Cleanup(func() { pc.Shutdown() })
	return pc
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestCoreReferencesAreCounted(t *testing.T) {
	pc := newContext(t)
	ctx := testContext(t)

	first, err := pc.CreateCore(ctx, core.Config{Name: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "c1", first.Name())
	assert.True(t, first.Get().IsConnected())

	_, err = pc.CreateCore(ctx, core.Config{Name: "c1"})
	assert.ErrorIs(t, err, ErrNameInUse)

	second, err := pc.CoreByName("c1")
	require.NoError(t, err)
	clone, err := second.Clone()
	require.NoError(t, err)
	assert.Same(t, first.Get(), clone.Get())

	require.NoError(t, first.Release())
	require.NoError(t, second.Release())
	assert.False(t, first.IsValid())
	assert.Nil(t, first.Get())
	assert.True(t, clone.IsValid())
	assert.False(t, isClosed(clone.Get().Done()))

	c := clone.Get()
	require.NoError(t, clone.Release())
	assert.True(t, isClosed(c.Done()), "last release disconnects the core")
	assert.ErrorIs(t, clone.Release(), ErrReleased)
	_, err = clone.Clone()
	assert.ErrorIs(t, err, ErrReleased)

	_, err = pc.CoreByName("c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailedConnectLeavesNameFree(t *testing.T) {
	pc := newContext(t)
	ctx := testContext(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	config := core.Config{Name: "lonely", Type: core.TypeTCP, BrokerAddress: addr, ConnectTimeout: 200 * time.Millisecond}
	_, err = pc.CreateCore(ctx, config)
	require.Error(t, err)
	_, err = pc.CoreByName("lonely")
	assert.ErrorIs(t, err, ErrNotFound)

	ref, err := pc.CreateCore(ctx, core.Config{Name: "lonely"})
	require.NoError(t, err, "the name is free again")
	assert.True(t, ref.Get().IsConnected())
}

func TestCoreAttachedToBroker(t *testing.T) {
	pc := newContext(t)
	ctx := testContext(t)

	br, err := pc.CreateBroker(ctx, broker.Config{Name: "root"})
	require.NoError(t, err)
	cr, err := pc.CreateCore(ctx, core.Config{Name: "c1", Broker: br.Get()})
	require.NoError(t, err)
	assert.Nil(t, cr.Get().Broker(), "an attached core starts no broker of its own")

	found, err := pc.BrokerByName("root")
	require.NoError(t, err)
	assert.True(t, found.IsValid())
	require.NoError(t, found.Release())

	cores, brokers, _ := pc.Names()
	assert.Equal(t, []string{"c1"}, cores)
	assert.Equal(t, []string{"root"}, brokers)

	b := br.Get()
	require.NoError(t, cr.Release())
	require.NoError(t, br.Release())
	assert.True(t, isClosed(b.Done()))
}

func TestProtectedFederateSurvivesRelease(t *testing.T) {
	pc := newContext(t)
	ctx := testContext(t)

	cr, err := pc.CreateCore(ctx, core.Config{Name: "c1"})
	require.NoError(t, err)
	fr, err := pc.CreateFederate(ctx, cr.Get(), "gen", federate.DefaultInfo())
	require.NoError(t, err)
	_, err = pc.CreateFederate(ctx, cr.Get(), "gen", federate.DefaultInfo())
	assert.ErrorIs(t, err, ErrNameInUse)

	require.NoError(t, pc.Protect("gen"))
	assert.True(t, pc.IsProtected("gen"))
	require.NoError(t, fr.Release())

	again, err := pc.FederateByName("gen")
	require.NoError(t, err)
	f := again.Get()
	assert.Equal(t, option.StateCreated, f.State())

	require.NoError(t, pc.Unprotect("gen"))
	assert.False(t, pc.IsProtected("gen"))
	assert.True(t, again.IsValid(), "a held reference keeps the federate")

	require.NoError(t, again.Release())
	assert.Equal(t, option.StateFinalized, f.State())
	_, err = pc.FederateByName("gen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnprotectWithoutReferencesTearsDown(t *testing.T) {
	pc := newContext(t)
	ctx := testContext(t)

	fr, err := pc.CreateFederate(ctx, nil, "solo", federate.DefaultInfo())
	require.NoError(t, err)
	f := fr.Get()
	require.NoError(t, pc.Protect("solo"))
	require.NoError(t, fr.Release())
	assert.Equal(t, option.StateCreated, f.State())

	require.NoError(t, pc.Unprotect("solo"))
	assert.Equal(t, option.StateFinalized, f.State())
	assert.True(t, isClosed(f.Core().Done()), "the owned core stops with the federate")
}

func TestProtectUnknownFederate(t *testing.T) {
	pc := newContext(t)
	assert.ErrorIs(t, pc.Protect("nobody"), ErrNotFound)
	assert.ErrorIs(t, pc.Unprotect("nobody"), ErrNotFound)
	assert.False(t, pc.IsProtected("nobody"))
}

func TestShutdownTearsDownEverything(t *testing.T) {
	pc := New(DefaultConfig())
	ctx := testContext(t)

	br, err := pc.CreateBroker(ctx, broker.Config{Name: "root"})
	require.NoError(t, err)
	cr, err := pc.CreateCore(ctx, core.Config{Name: "c1", Broker: br.Get()})
	require.NoError(t, err)
	fr, err := pc.CreateFederate(ctx, cr.Get(), "gen", federate.DefaultInfo())
	require.NoError(t, err)

	require.NoError(t, pc.Shutdown())
	assert.True(t, pc.IsShutdown())
	assert.False(t, cr.IsValid())
	assert.False(t, br.IsValid())
	assert.False(t, fr.IsValid())
	assert.True(t, isClosed(br.Get().Done()))
	assert.True(t, isClosed(cr.Get().Done()))
	assert.Equal(t, option.StateFinalized, fr.Get().State())

	_, err = pc.CreateCore(ctx, core.Config{})
	assert.ErrorIs(t, err, ErrShutdown)
	assert.NoError(t, pc.Shutdown())
	assert.NoError(t, cr.Release(), "releasing after shutdown tears nothing down twice")
}

func TestDefaultContextLifecycle(t *testing.T) {
	t.Cleanup(func() { CleanupLibrary() })

	d := Default()
	assert.Same(t, d, Default())
	require.NoError(t, CleanupLibrary())
	assert.True(t, d.IsShutdown())

	next := Default()
	assert.NotSame(t, d, next)
	assert.False(t, next.IsShutdown())
	assert.NoError(t, CleanupLibrary())
	assert.NoError(t, CleanupLibrary())
}

func TestAbortHaltsFederation(t *testing.T) {
	pc := newContext(t)
	ctx := testContext(t)

	cr, err := pc.CreateCore(ctx, core.Config{Name: "c1", MinFederates: 2})
	require.NoError(t, err)
	a, err := pc.CreateFederate(ctx, cr.Get(), "A", federate.DefaultInfo())
	require.NoError(t, err)
	b, err := pc.CreateFederate(ctx, cr.Get(), "B", federate.DefaultInfo())
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error { return a.Get().EnterExecutingMode(ctx) })
	g.Go(func() error { return b.Get().EnterExecutingMode(ctx) })
	require.NoError(t, g.Wait())

	require.NoError(t, b.Get().RequestTimeAsync(ctx, 10))
	require.NoError(t, pc.Abort(int(status.UserAbort), "operator abort"))

	granted, err := b.Get().RequestTimeComplete(ctx)
	assert.Equal(t, simtime.MaxTime, granted)
	assert.Equal(t, status.KindFederationFatal, status.KindOf(err))
	assert.Contains(t, err.Error(), "operator abort")
}

func TestSignalHandlerShutsDownAndExits(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		name := "blocking"
		if threaded {
			name = "threaded"
		}
		t.Run(name, func(t *testing.T) {
			pc := New(DefaultConfig())
			signals := make(chan chan<- os.Signal, 1)
			exited := make(chan int, 1)
			pc.notify = func(ch chan<- os.Signal, _ ...os.Signal) { signals <- ch }
			pc.stopNotify = func(chan<- os.Signal) {}
			pc.exit = func(code int) { exited <- code }

			cr, err := pc.CreateCore(testContext(t), core.Config{Name: "c1"})
			require.NoError(t, err)
			if threaded {
				pc.LoadThreadedSignalHandler()
			} else {
				pc.LoadSignalHandler()
			}

			(<-signals) <- syscall.SIGINT
			select {
			case code := <-exited:
				assert.Equal(t, 128+int(syscall.SIGINT), code)
			case <-time.After(5 * time.Second):
				t.Fatal("handler did not exit")
			}
			assert.True(t, pc.IsShutdown())
			assert.True(t, isClosed(cr.Get().Done()))
		})
	}
}

func TestClearSignalHandler(t *testing.T) {
	pc := newContext(t)
	var stopped int
	pc.notify = func(chan<- os.Signal, ...os.Signal) {}
	pc.stopNotify = func(chan<- os.Signal) { stopped++ }

	pc.LoadSignalHandler()
	pc.LoadThreadedSignalHandler()
	assert.Equal(t, 1, stopped, "loading replaces the previous handler")
	pc.ClearSignalHandler()
	pc.ClearSignalHandler()
	assert.Equal(t, 2, stopped)
}

func TestSystemInfo(t *testing.T) {
	pc := newContext(t)
	_, err := pc.CreateCore(testContext(t), core.Config{Name: "c1"})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(pc.SystemInfo()), &doc))
	assert.Equal(t, Version(), doc["version"])
	assert.Equal(t, []any{"c1"}, doc["cores"])
	assert.Equal(t, []any{}, doc["brokers"])
	assert.Contains(t, doc, "cpucount")
	assert.Contains(t, doc, "buildflags")
}
