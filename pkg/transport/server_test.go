package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

func TestServerDialRoundTrip(t *testing.T) {
	serverBox := NewMailbox()
	connected := make(chan *StreamLink, 1)

	srv, err := NewServer(ServerConfig{
		Node:      "root",
		Address:   "127.0.0.1:0",
		Inbox:     serverBox,
		OnConnect: func(l *StreamLink) { connected <- l },
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	clientBox := NewMailbox()
	client, err := Dial(context.Background(), srv.Addr().String(), clientBox, DialConfig{Node: "core"})
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("server did not report connection")
	}

	req := wire.New(wire.ActRegisterNode)
	req.Name = "core1"
	require.NoError(t, client.Send(req))

	env := popWithin(t, serverBox, time.Second)
	assert.Equal(t, wire.ActRegisterNode, env.Msg.Action)

	ack := env.Msg.Reply(wire.ActNodeAck)
	ack.DestNode = 7
	require.NoError(t, env.From.Send(ack))

	env = popWithin(t, clientBox, time.Second)
	assert.Equal(t, wire.ActNodeAck, env.Msg.Action)
	assert.Equal(t, wire.NodeID(7), env.Msg.DestNode)
	assert.Equal(t, "core1", env.Msg.Name)
	assert.Equal(t, 1, srv.LinkCount())
}

func TestServerRequiresInbox(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestServerStartTwice(t *testing.T) {
	srv, err := NewServer(ServerConfig{Address: "127.0.0.1:0", Inbox: NewMailbox()})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()
	assert.Error(t, srv.Start(context.Background()))
}

func TestDialRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "127.0.0.1:1", NewMailbox(), DialConfig{})
	assert.Error(t, err)
}
