package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/fedsim/fedsim-go/pkg/message"
	"github.com/fedsim/fedsim-go/pkg/wire"
)

// recordingHandler keeps everything delivered to a federate.
type recordingHandler struct {
	mu       sync.Mutex
	values   []Value
	messages []*message.Message
	links    []LinkNotice
	commands []string
	sources  []string
	answers  map[string]string
}

func (h *recordingHandler) HandleValue(v Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, v)
}

func (h *recordingHandler) HandleMessage(_ wire.GlobalHandle, m *message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m)
}

func (h *recordingHandler) HandleLink(n LinkNotice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.links = append(h.links, n)
}

func (h *recordingHandler) HandleCommand(source, command string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources = append(h.sources, source)
	h.commands = append(h.commands, command)
}

func (h *recordingHandler) HandleQuery(q string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	answer, ok := h.answers[q]
	return answer, ok
}

func (h *recordingHandler) valueCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}

func (h *recordingHandler) commandList() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.commands...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// connectedCore starts a core with its own root broker.
func connectedCore(t *testing.T, config Config) *Core {
	t.Helper()
	if config.Name == "" {
		config.Name = "core_" + t.Name()
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	c, err := New(config)
	require.NoError(t, err)
	require.NoError(t, c.Connect(testContext(t)))
	t.Cleanup(func() {
		c.Disconnect()
		c.WaitForDisconnect(5 * time.Second)
	})
	return c
}

func register(t *testing.T, c *Core, name string, h Handler) *Session {
	t.Helper()
	s, err := c.RegisterFederate(testContext(t), name, FederateConfig{Handler: h})
	require.NoError(t, err)
	return s
}

// parallel runs fns concurrently and fails on the first error.
func parallel(t *testing.T, fns ...func() error) {
	t.Helper()
	var g errgroup.Group
	for _, fn := range fns {
		g.Go(fn)
	}
	require.NoError(t, g.Wait())
}

// enterExecuting moves every session through both barriers.
func enterExecuting(t *testing.T, sessions ...*Session) {
	t.Helper()
	ctx := testContext(t)
	var init, exec []func() error
	for _, s := range sessions {
		init = append(init, func() error { return s.EnterInitializing(ctx) })
		exec = append(exec, func() error {
			_, err := s.EnterExecuting(ctx, 0)
			return err
		})
	}
	parallel(t, init...)
	parallel(t, exec...)
}
