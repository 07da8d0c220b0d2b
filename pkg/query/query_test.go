package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
)

type fakeExecutor struct {
	gotTarget string
	gotQuery  string
	gotMode   option.SequencingMode
	release   chan struct{}
	err       error
}

func (f *fakeExecutor) Query(ctx context.Context, target, query string, mode option.SequencingMode) (string, error) {
	f.gotTarget, f.gotQuery, f.gotMode = target, query, mode
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return Quote(target + ":" + query), nil
}

func TestExecute(t *testing.T) {
	ex := &fakeExecutor{}
	q := New("root", "federates")
	require.NoError(t, q.SetOrdering(option.SequencingFast))

	got, err := q.Execute(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, `"root:federates"`, got)
	assert.Equal(t, option.SequencingFast, ex.gotMode)

	q.SetTarget("core1")
	q.SetQueryString("name")
	got, err = q.Execute(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, `"core1:name"`, got)
}

func TestExecuteValidation(t *testing.T) {
	_, err := New("root", "").Execute(context.Background(), &fakeExecutor{})
	assert.ErrorIs(t, err, status.ErrInvalidArgument)

	_, err = New("root", "x").Execute(context.Background(), nil)
	assert.ErrorIs(t, err, status.ErrInvalidArgument)

	assert.ErrorIs(t, New("a", "b").SetOrdering(option.SequencingMode(9)), status.ErrInvalidArgument)
}

func TestExecuteAsync(t *testing.T) {
	ex := &fakeExecutor{release: make(chan struct{})}
	q := New("fedA", "current_time")

	assert.False(t, q.IsCompleted())
	_, err := q.ExecuteComplete()
	assert.ErrorIs(t, err, status.ErrInvalidState)

	require.NoError(t, q.ExecuteAsync(context.Background(), ex))
	assert.ErrorIs(t, q.ExecuteAsync(context.Background(), ex), status.ErrInvalidState)
	assert.False(t, q.IsCompleted())

	close(ex.release)
	require.Eventually(t, q.IsCompleted, time.Second, time.Millisecond)

	got, err := q.ExecuteComplete()
	require.NoError(t, err)
	assert.Equal(t, `"fedA:current_time"`, got)
	assert.False(t, q.IsCompleted())
}

func TestExecuteAsyncError(t *testing.T) {
	boom := errors.New("boom")
	q := New("x", "y")
	require.NoError(t, q.ExecuteAsync(context.Background(), &fakeExecutor{err: boom}))
	_, err := q.ExecuteComplete()
	assert.ErrorIs(t, err, boom)
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult(CodeNotFound, "target not found")
	assert.JSONEq(t, `{"error":{"code":404,"message":"target not found"}}`, r)

	code, msg, ok := ParseError(r)
	require.True(t, ok)
	assert.Equal(t, 404, code)
	assert.Equal(t, "target not found", msg)

	assert.False(t, IsError(`["a","b"]`))
	assert.False(t, IsError(`"error"`))
}

func TestBufferAndSplit(t *testing.T) {
	var b Buffer
	assert.False(t, b.Filled())
	b.Fill(`{"ok":true}`)
	assert.True(t, b.Filled())
	assert.Equal(t, `{"ok":true}`, b.String())

	cmd, arg := Split("global_value/limit")
	assert.Equal(t, "global_value", cmd)
	assert.Equal(t, "limit", arg)

	cmd, arg = Split(" federates ")
	assert.Equal(t, "federates", cmd)
	assert.Empty(t, arg)
}
