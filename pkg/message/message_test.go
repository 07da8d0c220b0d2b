package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	m := New("a/ep", "b/ep", 1.0, []byte("hi"))
	for i := 0; i < MaxFlags; i++ {
		require.NoError(t, m.SetFlag(i, true))
		assert.True(t, m.Flag(i))
	}
	assert.Equal(t, uint16(0xFFFF), m.Flags)

	require.NoError(t, m.SetFlag(3, false))
	assert.False(t, m.Flag(3))

	assert.Error(t, m.SetFlag(16, true))
	assert.Error(t, m.SetFlag(-1, true))
	assert.False(t, m.Flag(99))

	m.ClearFlags()
	assert.Zero(t, m.Flags)
}

func TestCloneIsIndependent(t *testing.T) {
	m := New("a/ep", "b/ep", 2.0, []byte("payload"))
	c := m.Clone()
	c.Data[0] = 'P'
	c.Destination = "c/ep"

	assert.Equal(t, "payload", m.String())
	assert.Equal(t, "b/ep", m.Destination)
	assert.Equal(t, "b/ep", c.OriginalDestination)

	var dst Message
	m.CopyTo(&dst)
	assert.Equal(t, *m, dst)
}

func TestValidity(t *testing.T) {
	var nilMsg *Message
	assert.False(t, nilMsg.IsValid())
	assert.False(t, (&Message{}).IsValid())
	assert.True(t, (&Message{Destination: "x"}).IsValid())
	assert.True(t, (&Message{Data: []byte{1}}).IsValid())
}

func TestReserveResizeClear(t *testing.T) {
	m := &Message{}
	require.NoError(t, m.Reserve(32))
	assert.GreaterOrEqual(t, cap(m.Data), 32)
	assert.Empty(t, m.Data)

	m.AppendData([]byte("ab"))
	require.NoError(t, m.Resize(4))
	assert.Equal(t, []byte{'a', 'b', 0, 0}, m.Data)
	assert.Error(t, m.Resize(-2))

	m.Clear()
	assert.False(t, m.IsValid())
}
