package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/databuffer"
	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

type routeFixture struct {
	*harness
	fa, fb, fc wire.FederateID
	node       wire.NodeID
	epA        wire.GlobalHandle
	pubA       wire.GlobalHandle
}

func newRouteFixture(t *testing.T) *routeFixture {
	h := newHarness(t, Config{})
	f := &routeFixture{harness: h}
	f.node = h.addNode("core_a")
	f.fa = h.addFederate(f.node, "A", fedOpts{})
	f.fb = h.addFederate(h.addNode("core_b"), "B", fedOpts{})
	f.fc = h.addFederate(h.addNode("core_c"), "C", fedOpts{flags: wire.FlagObserver})
	f.epA = h.register(f.fa, wire.KindEndpoint, "A/ep", "")
	f.pubA = h.register(f.fa, wire.KindPublication, "A/out", "double")
	h.register(f.fb, wire.KindEndpoint, "B/ep", "")
	h.register(f.fc, wire.KindEndpoint, "C/ep", "")
	return f
}

// coreInterface registers a filter or translator owned by core_a.
func (f *routeFixture) coreInterface(kind wire.InterfaceKind, name, typ string, flags uint32) {
	f.t.Helper()
	reg := wire.New(wire.ActRegisterInterface)
	reg.SourceNode = f.node
	reg.Source = wire.Handle(wire.FederateID(-int32(f.node)), int32(len(f.b.root.dir.order)+1))
	reg.Kind = kind
	reg.Name = name
	reg.Type = typ
	reg.Flags = flags | wire.FlagCoreOwned
	f.b.handleRoot(reg, nil)
	msgs := f.links[f.node].take()
	require.NotEmpty(f.t, msgs)
	require.NoError(f.t, msgs[len(msgs)-1].Err())
}

func (f *routeFixture) setProperty(name, property string, value float64, text string) {
	m := wire.New(wire.ActSetProperty)
	m.SourceNode = f.node
	m.Name = name
	m.Target = property
	if text != "" {
		m.Strings = []string{text}
	} else {
		m.Props = map[int]float64{0: value}
	}
	f.b.handleRoot(m, nil)
}

func (f *routeFixture) send(dest string, t simtime.Time, data string) {
	m := f.fedMsg(f.fa, wire.ActSendMessage)
	m.Source = f.epA
	m.Message = message.New("", dest, t, []byte(data))
	f.b.handleRoot(m, nil)
}

func (f *routeFixture) events(fed wire.FederateID) []*event {
	return f.b.root.byID[fed].events
}

func TestMessageRoutedWithSendTime(t *testing.T) {
	f := newRouteFixture(t)
	f.execute(f.fa, f.fb, f.fc)

	f.send("B/ep", 1, "hello")
	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	assert.Equal(t, simtime.Time(1), evs[0].time)
	m := evs[0].msg.Message
	assert.Equal(t, "A/ep", m.Source)
	assert.Equal(t, "A/ep", m.OriginalSource)
	assert.Equal(t, "B/ep", m.OriginalDestination)

	// Released with the grant, before it.
	f.request(f.fb, 1, option.NoIteration)
	f.request(f.fa, 2, option.NoIteration)
	msgs := f.take(f.fb)
	require.Len(t, msgs, 2)
	assert.Equal(t, wire.ActSendMessage, msgs[0].Action)
	assert.Equal(t, "hello", string(msgs[0].Message.Data))
	assert.Equal(t, wire.ActTimeGrant, msgs[1].Action)
}

func TestMessageBeforeExecutionIsStampedZero(t *testing.T) {
	f := newRouteFixture(t)
	f.send("B/ep", 3, "early")
	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	assert.Equal(t, simtime.Zero, evs[0].time)
}

func TestInputDelayAddedAtDelivery(t *testing.T) {
	f := newRouteFixture(t)
	delay := f.fedMsg(f.fb, wire.ActSetTimeProps)
	delay.Props = props(option.PropertyInputDelay, 0.5)
	f.b.handleRoot(delay, nil)
	f.execute(f.fa, f.fb, f.fc)

	f.send("B/ep", 1, "x")
	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	assert.Equal(t, simtime.Time(1.5), evs[0].time)
}

func TestUnknownDestinationDropped(t *testing.T) {
	f := newRouteFixture(t)
	f.execute(f.fa, f.fb, f.fc)
	f.send("nowhere", 1, "x")
	assert.Empty(t, f.events(f.fb))
	assert.Empty(t, f.events(f.fc))
}

func TestDefaultDestinationsFanOut(t *testing.T) {
	f := newRouteFixture(t)
	f.link(wire.LinkEndpoint, "A/ep", "B/ep")
	f.link(wire.LinkEndpoint, "A/ep", "C/ep")
	f.execute(f.fa, f.fb, f.fc)

	f.send("", 1, "x")
	assert.Len(t, f.events(f.fb), 1)
	assert.Len(t, f.events(f.fc), 1)
}

func TestSourceDelayFilter(t *testing.T) {
	f := newRouteFixture(t)
	f.coreInterface(wire.KindFilter, "delay", "delay", 0)
	f.link(wire.LinkSourceFilter, "delay", "A/ep")
	f.setProperty("delay", "delay", 2, "")
	f.execute(f.fa, f.fb, f.fc)

	f.send("B/ep", 1, "x")
	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	assert.Equal(t, simtime.Time(3), evs[0].time)
}

func TestDestinationRerouteFilter(t *testing.T) {
	f := newRouteFixture(t)
	f.coreInterface(wire.KindFilter, "reroute", "reroute", 0)
	f.link(wire.LinkDestinationFilter, "reroute", "B/ep")
	f.setProperty("reroute", "newdestination", 0, "C/ep")
	f.execute(f.fa, f.fb, f.fc)

	f.send("B/ep", 1, "x")
	assert.Empty(t, f.events(f.fb))
	evs := f.events(f.fc)
	require.Len(t, evs, 1)
	assert.Equal(t, "C/ep", evs[0].msg.Message.Destination)
	assert.Equal(t, "B/ep", evs[0].msg.Message.OriginalDestination)
}

func TestCloningFilterKeepsOriginal(t *testing.T) {
	f := newRouteFixture(t)
	f.coreInterface(wire.KindFilter, "tap", "", wire.FlagCloning)
	f.link(wire.LinkSourceFilter, "tap", "A/ep")
	f.link(wire.LinkCloneDelivery, "tap", "C/ep")
	f.execute(f.fa, f.fb, f.fc)

	f.send("B/ep", 1, "x")
	require.Len(t, f.events(f.fb), 1)
	evs := f.events(f.fc)
	require.Len(t, evs, 1)
	copied := evs[0].msg.Message
	assert.Equal(t, "C/ep", copied.Destination)
	assert.Equal(t, "B/ep", copied.OriginalDestination)
	assert.Equal(t, "A/ep", copied.OriginalSource)
}

func TestValueToInputCarriesSourceInfo(t *testing.T) {
	f := newRouteFixture(t)
	f.register(f.fb, wire.KindInput, "B/in", "double")
	f.link(wire.LinkData, "A/out", "B/in")
	f.execute(f.fa, f.fb, f.fc)

	v := f.fedMsg(f.fa, wire.ActPublish)
	v.Source = f.pubA
	v.Time = 2
	v.Payload = databuffer.FromDouble(4.5).Bytes()
	f.b.handleRoot(v, nil)

	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	assert.Equal(t, "A/out", evs[0].msg.Name)
	assert.Equal(t, "double", evs[0].msg.Type)
	assert.Equal(t, 4.5, databuffer.Wrap(evs[0].msg.Payload).ToDouble())
}

func TestBufferedValueDeliveredOnLateLink(t *testing.T) {
	f := newRouteFixture(t)
	opt := f.fedMsg(f.fa, wire.ActSetOption)
	opt.Dest = f.pubA
	opt.Options = map[int]int{option.HandleOptionBufferData.Index(): 1}
	f.b.handleRoot(opt, nil)

	v := f.fedMsg(f.fa, wire.ActPublish)
	v.Source = f.pubA
	v.Payload = databuffer.FromDouble(1).Bytes()
	f.b.handleRoot(v, nil)

	f.register(f.fb, wire.KindInput, "B/in", "double")
	f.link(wire.LinkData, "A/out", "B/in")
	assert.Len(t, f.events(f.fb), 1)
}

func TestTranslatorValueToMessage(t *testing.T) {
	f := newRouteFixture(t)
	f.coreInterface(wire.KindTranslator, "json", "json", 0)
	f.link(wire.LinkData, "A/out", "json")
	f.link(wire.LinkEndpoint, "json", "B/ep")
	f.execute(f.fa, f.fb, f.fc)

	v := f.fedMsg(f.fa, wire.ActPublish)
	v.Source = f.pubA
	v.Time = 1
	v.Payload = databuffer.FromDouble(42.5).Bytes()
	f.b.handleRoot(v, nil)

	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	m := evs[0].msg.Message
	assert.Equal(t, "json", m.Source)
	assert.JSONEq(t, `{"type":"double","value":42.5}`, string(m.Data))
}

func TestTranslatorMessageToValue(t *testing.T) {
	f := newRouteFixture(t)
	f.coreInterface(wire.KindTranslator, "json", "json", 0)
	f.register(f.fb, wire.KindInput, "B/in", "double")
	f.link(wire.LinkData, "json", "B/in")
	f.execute(f.fa, f.fb, f.fc)

	f.send("json", 1, `{"type":"double","value":7}`)
	evs := f.events(f.fb)
	require.Len(t, evs, 1)
	assert.Equal(t, wire.ActPublish, evs[0].msg.Action)
	assert.Equal(t, 7.0, databuffer.Wrap(evs[0].msg.Payload).ToDouble())
}

func TestRemoveLinkStopsDelivery(t *testing.T) {
	f := newRouteFixture(t)
	f.link(wire.LinkEndpoint, "A/ep", "B/ep")
	rm := wire.New(wire.ActRemoveLink)
	rm.Kind = wire.KindEndpoint
	rm.Name = "A/ep"
	rm.Target = "B/ep"
	f.b.handleRoot(rm, nil)
	f.execute(f.fa, f.fb, f.fc)

	f.send("", 1, "x")
	assert.Empty(t, f.events(f.fb))
}

func TestObserverTrafficDropped(t *testing.T) {
	f := newRouteFixture(t)
	pubC := f.register(f.fc, wire.KindPublication, "C/out", "double")
	f.register(f.fb, wire.KindInput, "B/in", "double")
	f.link(wire.LinkData, "C/out", "B/in")
	f.execute(f.fa, f.fb, f.fc)

	f.request(f.fb, 10, option.NoIteration)
	require.Len(t, f.grants(f.fb), 0, "B waits on A")

	m := f.fedMsg(f.fc, wire.ActSendMessage)
	m.Source = wire.Handle(f.fc, 1)
	m.Message = message.New("", "B/ep", 2, []byte("late"))
	f.b.handleRoot(m, nil)

	v := f.fedMsg(f.fc, wire.ActPublish)
	v.Source = pubC
	v.Time = 2
	v.Payload = databuffer.FromDouble(1).Bytes()
	f.b.handleRoot(v, nil)

	assert.Empty(t, f.events(f.fb))
}
