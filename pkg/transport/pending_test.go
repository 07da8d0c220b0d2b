package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/wire"
)

func TestPendingComplete(t *testing.T) {
	p := NewPending()
	id, ch, err := p.Add()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	reply := wire.New(wire.ActQueryReply)
	reply.Counter = id
	require.NoError(t, p.Complete(reply))

	got, err := p.Wait(context.Background(), id, ch)
	require.NoError(t, err)
	assert.Same(t, reply, got)
	assert.Equal(t, 0, p.Len())

	assert.ErrorIs(t, p.Complete(reply), ErrUnexpectedReply)
}

func TestPendingClose(t *testing.T) {
	p := NewPending()
	id, ch, err := p.Add()
	require.NoError(t, err)

	p.Close()
	_, err = p.Wait(context.Background(), id, ch)
	assert.ErrorIs(t, err, ErrPendingClosed)

	_, _, err = p.Add()
	assert.ErrorIs(t, err, ErrPendingClosed)
}

func TestPendingWaitContext(t *testing.T) {
	p := NewPending()
	id, ch, err := p.Add()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx, id, ch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, p.Len())
}
