package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsByKind(t *testing.T) {
	err := Errorf(KindInvalidState, "federate %q is not executing", "fedA")
	wrapped := fmt.Errorf("request time: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInvalidState))
	assert.False(t, errors.Is(wrapped, ErrInvalidArgument))
	assert.Equal(t, KindInvalidState, KindOf(wrapped))
	assert.Equal(t, InvalidFunctionCall, CodeOf(wrapped))
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := New(InvalidStateTransition, KindInvalidState, "bad transition")
	assert.True(t, errors.Is(err, &Error{Kind: KindInvalidState, Code: InvalidStateTransition}))
	assert.False(t, errors.Is(err, &Error{Kind: KindInvalidState, Code: InvalidFunctionCall}))
}

func TestCapture(t *testing.T) {
	assert.True(t, Capture(nil).OK())

	rec := Capture(Errorf(KindConnection, "input %q has no connection", "in1"))
	assert.Equal(t, int(ConnectionFailure), rec.Code)
	assert.Contains(t, rec.Message, "in1")

	back := rec.Err()
	require.Error(t, back)
	assert.True(t, errors.Is(back, ErrConnection))

	rec.Clear()
	assert.True(t, rec.OK())
	assert.NoError(t, rec.Err())
}

func TestWrapKeepsCause(t *testing.T) {
	sentinel := errors.New("disconnect timer expired")
	err := Wrap(KindConnection, sentinel, "core %q", "c1")

	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, `core "c1": disconnect timer expired`, err.Error())
	assert.Equal(t, ConnectionFailure, CodeOf(err))
	assert.Equal(t, "disconnect timer expired", Wrap(KindConnection, sentinel, "").Error())
	assert.NoError(t, Wrap(KindConnection, nil, "unused"))
}

func TestRecordKeepsKind(t *testing.T) {
	rec := Capture(Errorf(KindInvalidProperty, "no property %q", "nonsense"))
	assert.Equal(t, int(InvalidArgument), rec.Code)
	assert.Equal(t, KindInvalidProperty, KindOf(rec.Err()), "kinds sharing a code survive the round trip")

	legacy := Record{Code: int(InvalidFunctionCall), Message: "old"}
	assert.Equal(t, KindInvalidState, KindOf(legacy.Err()))
}

func TestUnclassifiedError(t *testing.T) {
	err := errors.New("plain")
	assert.Equal(t, Other, CodeOf(err))
	assert.Equal(t, KindInvalidArgument, KindOf(err))
	assert.Equal(t, int(Other), Capture(err).Code)
}

func TestKindRecoverable(t *testing.T) {
	for _, k := range []Kind{KindInvalidArgument, KindInvalidState, KindInvalidProperty, KindConnection} {
		assert.True(t, k.Recoverable(), k.String())
	}
	assert.False(t, KindFederationFatal.Recoverable())
	assert.False(t, KindLocalFatal.Recoverable())
}
