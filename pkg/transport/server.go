package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedsim/fedsim-go/pkg/log"
)

// DefaultPort is the default broker TCP port.
const DefaultPort = 23500

// ServerConfig configures a TCP listener for child nodes.
type ServerConfig struct {
	// Node is the local node name.
	Node string

	// Address to listen on (e.g., ":23500" or "127.0.0.1:0").
	Address string

	// Inbox receives every message from every accepted link.
	Inbox *Mailbox

	// MaxMessageSize is the maximum message size (default: DefaultMaxFrameSize).
	MaxMessageSize uint32

	// Logger is the operational logger. Nil discards.
	Logger *slog.Logger

	// ProtocolLogger captures traffic (optional).
	ProtocolLogger log.Logger

	// OnConnect is called when a new link is established.
	OnConnect func(link *StreamLink)
}

// Server accepts TCP connections and turns each into a StreamLink feeding
// a shared mailbox.
type Server struct {
	config   ServerConfig
	listener net.Listener
	logger   *slog.Logger

	links   map[*StreamLink]struct{}
	linksMu sync.Mutex

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a server. Call Start to begin accepting.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Inbox == nil {
		return nil, fmt.Errorf("inbox is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxFrameSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		config: config,
		logger: logger,
		links:  make(map[*StreamLink]struct{}),
	}, nil
}

// Start listens and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops accepting and closes every link.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	s.listener.Close()

	s.linksMu.Lock()
	links := make([]*StreamLink, 0, len(s.links))
	for l := range s.links {
		links = append(links, l)
	}
	s.linksMu.Unlock()
	for _, l := range links {
		l.Close()
	}

	s.wg.Wait()
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// LinkCount returns the number of active links.
func (s *Server) LinkCount() int {
	s.linksMu.Lock()
	defer s.linksMu.Unlock()
	return len(s.links)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.logger.Warn("accept failed", "error", err)
			}
			continue
		}

		link := NewStreamLink(conn, s.config.Inbox, StreamConfig{
			Node:           s.config.Node,
			Peer:           conn.RemoteAddr().String(),
			MaxMessageSize: s.config.MaxMessageSize,
			Logger:         s.logger,
			ProtocolLogger: s.config.ProtocolLogger,
		})
		s.track(link)
		if s.config.OnConnect != nil {
			s.config.OnConnect(link)
		}
	}
}

func (s *Server) track(link *StreamLink) {
	s.linksMu.Lock()
	s.links[link] = struct{}{}
	s.linksMu.Unlock()

	s.logState(link.Peer(), "", "CONNECTED")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-link.Done()
		s.linksMu.Lock()
		delete(s.links, link)
		s.linksMu.Unlock()
		s.logState(link.Peer(), "CONNECTED", "DISCONNECTED")
	}()
}

func (s *Server) logState(peer, oldState, newState string) {
	if s.config.ProtocolLogger == nil {
		return
	}
	s.config.ProtocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		Node:      s.config.Node,
		Peer:      peer,
		Direction: log.DirectionLocal,
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityBroker,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// DialConfig configures an outgoing TCP link.
type DialConfig struct {
	// Node is the local node name.
	Node string

	// ConnectTimeout bounds the dial when ctx has no deadline (default: 30s).
	ConnectTimeout time.Duration

	// MaxMessageSize is the maximum message size (default: DefaultMaxFrameSize).
	MaxMessageSize uint32

	// Logger is the operational logger. Nil discards.
	Logger *slog.Logger

	// ProtocolLogger captures traffic (optional).
	ProtocolLogger log.Logger
}

// Dial connects to a broker at address and returns a StreamLink feeding inbox.
func Dial(ctx context.Context, address string, inbox *Mailbox, config DialConfig) (*StreamLink, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return NewStreamLink(conn, inbox, StreamConfig{
		Node:           config.Node,
		Peer:           address,
		MaxMessageSize: config.MaxMessageSize,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	}), nil
}
