package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

func TestMailboxPriorityFirst(t *testing.T) {
	mb := NewMailbox()

	require.True(t, mb.PushMessage(wire.New(wire.ActPublish), nil))
	require.True(t, mb.PushMessage(wire.New(wire.ActTimeRequest), nil))
	require.True(t, mb.PushMessage(wire.New(wire.ActGlobalError), nil))

	fast := wire.New(wire.ActQuery)
	fast.Set(wire.FlagFast, true)
	require.True(t, mb.PushMessage(fast, nil))

	want := []wire.Action{wire.ActGlobalError, wire.ActQuery, wire.ActPublish, wire.ActTimeRequest}
	for _, action := range want {
		env, err := mb.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, action, env.Msg.Action)
	}
	assert.Equal(t, 0, mb.Len())
}

func TestMailboxRunClosure(t *testing.T) {
	mb := NewMailbox()
	ran := false
	require.True(t, mb.Run(func() { ran = true }))

	env, ok := mb.TryPop()
	require.True(t, ok)
	require.Nil(t, env.Msg)
	env.Fn()
	assert.True(t, ran)

	_, ok = mb.TryPop()
	assert.False(t, ok)
}

func TestMailboxCloseDrains(t *testing.T) {
	mb := NewMailbox()
	mb.PushMessage(wire.New(wire.ActPublish), nil)
	mb.PushMessage(wire.New(wire.ActSendMessage), nil)
	mb.Close()

	assert.True(t, mb.Closed())
	assert.False(t, mb.PushMessage(wire.New(wire.ActPublish), nil))

	for range 2 {
		_, err := mb.Pop(context.Background())
		require.NoError(t, err)
	}
	_, err := mb.Pop(context.Background())
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

func TestMailboxPopBlocksUntilPush(t *testing.T) {
	mb := NewMailbox()

	var wg sync.WaitGroup
	wg.Add(1)
	var got *wire.ActionMessage
	go func() {
		defer wg.Done()
		env, err := mb.Pop(context.Background())
		if err == nil {
			got = env.Msg
		}
	}()

	time.Sleep(10 * time.Millisecond)
	mb.PushMessage(wire.New(wire.ActInitGrant), nil)
	wg.Wait()

	require.NotNil(t, got)
	assert.Equal(t, wire.ActInitGrant, got.Action)
}

func TestMailboxPopContext(t *testing.T) {
	mb := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mb.Pop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
