package broker

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/metrics"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
	"github.com/fedsim/fedsim-go/pkg/transport"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// fakeCore is a child node driven by the test.
type fakeCore struct {
	t     *testing.T
	name  string
	inbox *transport.Mailbox
	link  transport.Link
	id    wire.NodeID
}

func attachCore(t *testing.T, parent transport.Attacher, name string) *fakeCore {
	t.Helper()
	c := &fakeCore{t: t, name: name, inbox: transport.NewMailbox()}
	link, err := parent.Attach(name, c.inbox)
	require.NoError(t, err)
	c.link = link

	reg := wire.New(wire.ActRegisterNode)
	reg.Name = name
	require.NoError(t, link.Send(reg))
	ack := c.expect(wire.ActNodeAck)
	require.NoError(t, ack.Err())
	c.id = ack.DestNode
	return c
}

func (c *fakeCore) next() *wire.ActionMessage {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, err := c.inbox.Pop(ctx)
	require.NoError(c.t, err)
	return env.Msg
}

func (c *fakeCore) expect(action wire.Action) *wire.ActionMessage {
	c.t.Helper()
	m := c.next()
	require.Equal(c.t, action, m.Action, m.String())
	return m
}

func (c *fakeCore) send(m *wire.ActionMessage) {
	c.t.Helper()
	m.SourceNode = c.id
	require.NoError(c.t, c.link.Send(m))
}

func (c *fakeCore) federate(name string) wire.FederateID {
	c.t.Helper()
	reg := wire.New(wire.ActRegisterFederate)
	reg.Name = name
	c.send(reg)
	ack := c.expect(wire.ActFederateAck)
	require.NoError(c.t, ack.Err())
	return ack.Dest.Fed
}

func startBroker(t *testing.T, config Config) *Broker {
	t.Helper()
	b, err := New(config)
	require.NoError(t, err)
	require.NoError(t, b.Connect(context.Background()))
	t.Cleanup(func() { b.Disconnect() })
	return b
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		ok     bool
	}{
		{"default", DefaultConfig(), true},
		{"zero", Config{}, true},
		{"negative min federates", Config{MinFederates: -1}, false},
		{"negative timeout", Config{ConnectTimeout: -time.Second}, false},
		{"two parents", Config{Parent: &Broker{}, ParentAddress: "localhost:1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestDefaultNameIsUnique(t *testing.T) {
	a, b := DefaultConfig(), DefaultConfig()
	assert.True(t, strings.HasPrefix(a.Name, "broker_"))
	assert.NotEqual(t, a.Name, b.Name)
}

func TestRootLifecycle(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	assert.True(t, b.IsRoot())
	assert.True(t, b.IsConnected())
	assert.Equal(t, StateConnected, b.State())
	assert.Equal(t, "inproc://root", b.Address())
	assert.ErrorIs(t, b.Connect(context.Background()), ErrAlreadyStarted)

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.WaitForDisconnect(time.Second))
	assert.False(t, b.IsConnected())
}

func TestWaitForDisconnectTimeout(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	err := b.WaitForDisconnect(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrDisconnectTimer)
	assert.Equal(t, status.KindConnection, status.KindOf(err))
}

func TestQueryOverEventLoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := startBroker(t, Config{Name: "root", Metrics: metrics.New(reg)})
	core := attachCore(t, b, "core")
	core.federate("A")

	answer, err := b.Query(context.Background(), "root", "federates", option.SequencingDefault)
	require.NoError(t, err)
	assert.JSONEq(t, `["A"]`, answer)

	expected := `
# HELP fedsim_federates Number of federates registered with a node
# TYPE fedsim_federates gauge
fedsim_federates{node="root"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fedsim_federates"))
}

func TestQueryForwardedToCore(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	core := attachCore(t, b, "core")
	core.federate("A")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		env, err := core.inbox.Pop(ctx)
		if err != nil || env.Msg.Action != wire.ActQuery {
			return
		}
		reply := env.Msg.Reply(wire.ActQueryReply)
		reply.SourceNode = core.id
		reply.Payload = []byte(`"answered by A"`)
		core.link.Send(reply)
	}()

	answer, err := b.Query(context.Background(), "A", "state", option.SequencingOrdered)
	require.NoError(t, err)
	assert.Equal(t, `"answered by A"`, answer)
}

func TestSubBrokerRoutesThroughRoot(t *testing.T) {
	root := startBroker(t, Config{Name: "root"})
	sub := startBroker(t, Config{Name: "sub", Parent: root})
	assert.False(t, sub.IsRoot())

	core := attachCore(t, sub, "core")
	fed := core.federate("A")
	assert.Equal(t, wire.FederateID(1), fed)

	answer, err := root.Query(context.Background(), "", "brokers", option.SequencingFast)
	require.NoError(t, err)
	assert.JSONEq(t, `["sub"]`, answer)

	answer, err = root.Query(context.Background(), "", "cores", option.SequencingFast)
	require.NoError(t, err)
	assert.JSONEq(t, `["core"]`, answer)

	answer, err = sub.Query(context.Background(), "", "name", option.SequencingFast)
	require.NoError(t, err)
	assert.Equal(t, `"sub"`, answer)

	answer, err = sub.Query(context.Background(), "root", "federates", option.SequencingFast)
	require.NoError(t, err)
	assert.JSONEq(t, `["A"]`, answer)

	answer, err = root.Query(context.Background(), "sub", "cores", option.SequencingFast)
	require.NoError(t, err)
	assert.JSONEq(t, `["core"]`, answer)

	// Lifecycle traffic passes through the sub-broker.
	init := wire.New(wire.ActInitRequest)
	init.Source = wire.Handle(fed, 0)
	core.send(init)
	core.expect(wire.ActInitGrant)
}

func TestDuplicateNodeRejected(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	attachCore(t, b, "core")

	inbox := transport.NewMailbox()
	link, err := b.Attach("core", inbox)
	require.NoError(t, err)
	reg := wire.New(wire.ActRegisterNode)
	reg.Name = "core"
	require.NoError(t, link.Send(reg))

	dup := &fakeCore{t: t, inbox: inbox}
	ack := dup.expect(wire.ActNodeAck)
	assert.Error(t, ack.Err())
}

func TestIncompatibleProtocolRejected(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})

	inbox := transport.NewMailbox()
	link, err := b.Attach("old", inbox)
	require.NoError(t, err)
	reg := wire.New(wire.ActRegisterNode)
	reg.Name = "old"
	reg.Type = "9.0"
	require.NoError(t, link.Send(reg))

	c := &fakeCore{t: t, inbox: inbox}
	assert.Error(t, c.expect(wire.ActNodeAck).Err())
}

func TestLastChildDisconnectStopsBroker(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	core := attachCore(t, b, "core")

	bye := wire.New(wire.ActDisconnect)
	bye.Name = core.name
	core.send(bye)
	core.expect(wire.ActDisconnectAck)

	require.NoError(t, b.WaitForDisconnect(2*time.Second))
	assert.Equal(t, StateDisconnected, b.State())
}

func TestDisconnectTerminatesChildren(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	core := attachCore(t, b, "core")

	require.NoError(t, b.Disconnect())
	core.expect(wire.ActTerminate)
	<-b.Done()
}

func TestGlobalErrorBroadcast(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	core := attachCore(t, b, "core")
	core.federate("A")

	require.NoError(t, b.GlobalError(-404, "boom"))
	m := core.expect(wire.ActGlobalError)
	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "boom")
	assert.Equal(t, StateErrored, b.State())
}

func TestMakeConnections(t *testing.T) {
	b := startBroker(t, Config{Name: "root"})
	core := attachCore(t, b, "core")
	fed := core.federate("A")

	for i, name := range []string{"A/out", "A/in"} {
		reg := wire.New(wire.ActRegisterInterface)
		reg.Source = wire.Handle(fed, int32(i+1))
		reg.Kind = wire.KindPublication
		if i == 1 {
			reg.Kind = wire.KindInput
		}
		reg.Name = name
		core.send(reg)
		core.expect(wire.ActInterfaceAck)
	}

	path := t.TempDir() + "/links.yaml"
	require.NoError(t, os.WriteFile(path, []byte("connections:\n  - [A/out, A/in]\n"), 0o600))
	require.NoError(t, b.MakeConnections(path))

	first := core.expect(wire.ActNotifyLink)
	second := core.expect(wire.ActNotifyLink)
	assert.ElementsMatch(t, []string{"A/out", "A/in"}, []string{first.Name, second.Name})
}
