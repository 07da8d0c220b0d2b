package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/transport/mocks"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

func TestPipeDelivers(t *testing.T) {
	coreBox := NewMailbox()
	brokerBox := NewMailbox()
	toBroker, toCore := Pipe("core", coreBox, "broker", brokerBox)

	assert.Equal(t, "broker", toBroker.Peer())
	assert.Equal(t, "core", toCore.Peer())
	assert.True(t, toBroker.Local())

	req := wire.New(wire.ActRegisterNode)
	req.Name = "core"
	require.NoError(t, toBroker.Send(req))

	env, err := brokerBox.Pop(context.Background())
	require.NoError(t, err)
	assert.Same(t, req, env.Msg)
	// Replies through From land in the core mailbox.
	require.Same(t, toCore, env.From)

	require.NoError(t, env.From.Send(req.Reply(wire.ActNodeAck)))
	env, err = coreBox.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wire.ActNodeAck, env.Msg.Action)
	assert.Equal(t, "core", env.Msg.Name)
}

func TestPipeKeepsOperator(t *testing.T) {
	box := NewMailbox()
	toB, _ := Pipe("a", NewMailbox(), "b", box)

	op := func() {}
	m := wire.New(wire.ActRegisterInterface)
	m.Operator = op
	require.NoError(t, toB.Send(m))

	env, ok := box.TryPop()
	require.True(t, ok)
	assert.NotNil(t, env.Msg.Operator)
}

func TestPipeClosed(t *testing.T) {
	a, b := NewMailbox(), NewMailbox()
	toB, _ := Pipe("a", a, "b", b)

	require.NoError(t, toB.Close())
	assert.ErrorIs(t, toB.Send(wire.New(wire.ActPublish)), ErrLinkClosed)

	toB2, _ := Pipe("a", a, "b", b)
	b.Close()
	assert.ErrorIs(t, toB2.Send(wire.New(wire.ActPublish)), ErrMailboxClosed)
}

func TestMockLinkExpectations(t *testing.T) {
	link := mocks.NewLink(t)
	link.EXPECT().Send(wireAction(wire.ActTerminate)).Return(nil).Once()
	link.EXPECT().Local().Return(false)

	var l Link = link
	require.NoError(t, l.Send(wire.New(wire.ActTerminate)))
	assert.False(t, l.Local())
}
