package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/simtime"
	"github.com/fedsim/fedsim-go/pkg/status"
)

func TestApplyOrder(t *testing.T) {
	var seen []string
	recorder := func(name string) FilterOperator {
		return &CustomFilter{Fn: func(m *message.Message) *message.Message {
			seen = append(seen, name)
			return m
		}}
	}

	m := message.New("a/ep", "b/ep", 1, []byte("x"))
	out, extra := Apply([]FilterOperator{recorder("F1"), recorder("F2")}, m)

	require.NotNil(t, out)
	assert.Empty(t, extra)
	assert.Equal(t, []string{"F1", "F2"}, seen)
}

func TestApplyKeepsSendTime(t *testing.T) {
	rewind := &CustomFilter{Fn: func(m *message.Message) *message.Message {
		m.Time = 1
		return m
	}}
	cloner := &CloneFilter{}
	require.NoError(t, cloner.SetString("delivery", "c/ep"))

	out, extra := Apply([]FilterOperator{rewind, cloner}, message.New("a/ep", "b/ep", 5, nil))
	require.NotNil(t, out)
	assert.Equal(t, simtime.Time(5), out.Time)
	require.Len(t, extra, 1)
	assert.Equal(t, simtime.Time(5), extra[0].Time)
}

func TestApplyDropShortCircuits(t *testing.T) {
	called := false
	drop := &CustomFilter{Fn: func(*message.Message) *message.Message { return nil }}
	after := &CustomFilter{Fn: func(m *message.Message) *message.Message {
		called = true
		return m
	}}

	out, _ := Apply([]FilterOperator{drop, after}, message.New("a", "b", 0, nil))
	assert.Nil(t, out)
	assert.False(t, called)
}

func TestCloneFilter(t *testing.T) {
	f := &CloneFilter{}
	require.NoError(t, f.SetString("delivery", "A"))
	require.NoError(t, f.SetString("delivery", "B"))
	require.NoError(t, f.SetString("delivery", "A"))
	assert.Equal(t, []string{"A", "B"}, f.Deliveries())

	m := message.New("src/ep", "dst/ep", 2, []byte("payload"))
	out, extra := Apply([]FilterOperator{f}, m)

	require.Same(t, m, out)
	assert.Equal(t, "dst/ep", out.Destination)
	require.Len(t, extra, 2)
	for i, want := range []string{"A", "B"} {
		c := extra[i]
		assert.Equal(t, want, c.Destination)
		assert.Equal(t, "dst/ep", c.OriginalDestination)
		assert.Equal(t, "src/ep", c.Source)
		assert.Equal(t, []byte("payload"), c.Data)
	}

	// Copies are independent of the original.
	extra[0].Data[0] = 'X'
	assert.Equal(t, byte('p'), m.Data[0])

	require.NoError(t, f.SetString("remove", "A"))
	assert.Equal(t, []string{"B"}, f.Deliveries())
}

func TestDelayFilter(t *testing.T) {
	f, err := NewFilter(option.FilterDelay, 0)
	require.NoError(t, err)
	require.NoError(t, f.(Configurable).Set("delay", 2.5))

	out := f.Process(message.New("a", "b", 1, nil))
	require.Len(t, out, 1)
	assert.True(t, simtime.Equal(3.5, out[0].Time))

	err = f.(Configurable).Set("delay", -1)
	assert.ErrorIs(t, err, status.ErrInvalidProperty)
	err = f.(Configurable).Set("speed", 1)
	assert.ErrorIs(t, err, status.ErrInvalidProperty)
}

func TestRandomDropFilter(t *testing.T) {
	f := NewRandomDropFilter(42)
	for range 20 {
		assert.Len(t, f.Process(message.New("a", "b", 0, nil)), 1)
	}

	require.NoError(t, f.Set("prob", 1))
	for range 20 {
		assert.Empty(t, f.Process(message.New("a", "b", 0, nil)))
	}

	assert.ErrorIs(t, f.Set("prob", 1.5), status.ErrInvalidProperty)
}

func TestRandomDelayFilter(t *testing.T) {
	f := NewRandomDelayFilter(7)
	require.NoError(t, f.Set("min", 1))
	require.NoError(t, f.Set("max", 2))

	for range 50 {
		out := f.Process(message.New("a", "b", 10, nil))
		require.Len(t, out, 1)
		assert.GreaterOrEqual(t, float64(out[0].Time), 11.0)
		assert.Less(t, float64(out[0].Time), 12.0)
	}

	require.NoError(t, f.SetString("distribution", "constant"))
	require.NoError(t, f.Set("param1", 0.5))
	out := f.Process(message.New("a", "b", 1, nil))
	assert.True(t, simtime.Equal(1.5, out[0].Time))

	require.NoError(t, f.SetString("distribution", "normal"))
	require.NoError(t, f.Set("mean", -100))
	out = f.Process(message.New("a", "b", 1, nil))
	assert.True(t, simtime.Equal(1, out[0].Time), "negative delays clamp to zero")

	assert.ErrorIs(t, f.SetString("distribution", "cauchy"), status.ErrInvalidProperty)
}

func TestRandomDelayDeterministic(t *testing.T) {
	a, b := NewRandomDelayFilter(99), NewRandomDelayFilter(99)
	for range 10 {
		ma := a.Process(message.New("x", "y", 0, nil))[0]
		mb := b.Process(message.New("x", "y", 0, nil))[0]
		assert.Equal(t, ma.Time, mb.Time)
	}
}

func TestRerouteFilter(t *testing.T) {
	f := &RerouteFilter{}
	require.NoError(t, f.SetString("newdestination", "fedC/ep"))
	require.NoError(t, f.SetString("condition", "fedB/.*"))

	m := f.Process(message.New("fedA/ep", "fedB/ep", 0, nil))[0]
	assert.Equal(t, "fedC/ep", m.Destination)
	assert.Equal(t, "fedB/ep", m.OriginalDestination)

	m = f.Process(message.New("fedA/ep", "fedD/ep", 0, nil))[0]
	assert.Equal(t, "fedD/ep", m.Destination)

	assert.ErrorIs(t, f.SetString("condition", "("), status.ErrInvalidProperty)
}

func TestFirewallFilter(t *testing.T) {
	f := &FirewallFilter{}
	require.NoError(t, f.SetString("block", "evil/.*"))

	assert.Empty(t, f.Process(message.New("evil/ep", "b", 0, nil)))
	assert.Len(t, f.Process(message.New("good/ep", "b", 0, nil)), 1)

	require.NoError(t, f.SetString("allow", "trusted/ep"))
	assert.Empty(t, f.Process(message.New("good/ep", "b", 0, nil)))
	assert.Len(t, f.Process(message.New("trusted/ep", "b", 0, nil)), 1)

	assert.ErrorIs(t, f.SetString("permit", "x"), status.ErrInvalidProperty)
}

func TestNewFilterTypes(t *testing.T) {
	tests := []struct {
		typ  option.FilterType
		want any
	}{
		{option.FilterCustom, &CustomFilter{}},
		{option.FilterDelay, &DelayFilter{}},
		{option.FilterReroute, &RerouteFilter{}},
		{option.FilterClone, &CloneFilter{}},
		{option.FilterFirewall, &FirewallFilter{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			f, err := NewFilter(tt.typ, 1)
			require.NoError(t, err)
			assert.IsType(t, tt.want, f)
		})
	}

	_, err := NewFilter(option.FilterUnknown, 0)
	assert.ErrorIs(t, err, status.ErrInvalidArgument)
}
