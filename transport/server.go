// Package transport carries kqml performatives over the network. It owns
// all blocking I/O: it parses inbound byte streams into value trees, hands
// them to the agent's dispatcher, and writes the replies. Malformed raw
// input is dropped here and never reaches the core.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agentwire/kqml/sexp"
	"github.com/agentwire/kqml/types"
)

// ErrNoRoute indicates an outbound message addressed a peer with no live
// connection.
var ErrNoRoute = errors.New("transport: no route to peer")

// Handler consumes parsed performatives and produces replies. The agent's
// dispatcher implements it.
type Handler interface {
	Dispatch(msg types.List) (types.Message, bool)
	HandleEOF(peer string)
}

// Config holds configuration for the TCP server.
type Config struct {
	// Addr is the listen address.
	Addr string
	// AcceptRate limits new connections per second. Zero disables the
	// limiter.
	AcceptRate float64
	// AcceptBurst is the limiter burst size.
	AcceptBurst int
	// Logger is the logger instance.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:        ":7450",
		AcceptRate:  100,
		AcceptBurst: 20,
		Logger:      zap.NewNop(),
	}
}

// Server accepts kqml connections, runs one goroutine per connection, and
// routes outbound messages back over the connection of the named peer.
type Server struct {
	cfg     *Config
	handler Handler
	logger  *zap.Logger
	limiter *rate.Limiter

	mu    sync.RWMutex
	ln    net.Listener
	peers map[string]*peerConn
}

// peerConn serializes writes to one connection.
type peerConn struct {
	conn net.Conn

	mu  sync.Mutex
	enc *sexp.Encoder
}

func (p *peerConn) send(msg types.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(types.List(msg))
}

// NewServer creates a TCP transport server for the given handler.
func NewServer(cfg *Config, handler Handler) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  cfg.Logger,
		peers:   make(map[string]*peerConn),
	}
	if cfg.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}
	return s
}

// Listen binds the configured address. Serve calls it implicitly; tests
// call it first so Addr is known before dialing.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound listen address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve accepts connections until the context is cancelled. Each connection
// gets its own goroutine; in-flight dispatches run to completion when the
// listener closes.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	ln := s.ln
	s.mu.RUnlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.RLock()
		ln = s.ln
		s.mu.RUnlock()
	}

	s.logger.Info("transport listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return ctx.Err()
	})
	g.Go(func() error {
		for {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return nil
				}
			}
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			go s.handleConn(conn)
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With(zap.String("remote", remote))
	logger.Info("connection accepted")

	pc := &peerConn{conn: conn, enc: sexp.NewEncoder(conn)}
	peer := ""
	defer func() {
		conn.Close()
		if peer != "" {
			s.dropPeer(peer, pc)
		}
		logger.Info("connection closed", zap.String("peer", peer))
	}()

	dec := sexp.NewDecoder(conn)
	for {
		v, err := dec.Decode()
		if err == io.EOF {
			s.handler.HandleEOF(peer)
			return
		}
		if err != nil {
			// No way to resync a corrupted s-expression stream.
			logger.Warn("dropping connection on parse failure", zap.Error(err))
			return
		}

		list, ok := v.(types.List)
		if !ok {
			logger.Warn("dropping non-list frame", zap.Stringer("frame", v))
			continue
		}

		msg := types.Message(list)
		if name := msg.Sender(); name != "" && name != peer {
			if peer != "" {
				s.dropPeer(peer, pc)
			}
			peer = name
			s.trackPeer(peer, pc)
		}

		reply, ok := s.handler.Dispatch(list)
		if ok {
			if err := pc.send(reply); err != nil {
				logger.Warn("reply write failed", zap.Error(err))
				return
			}
		}

		if verb, _ := msg.Verb(); verb == types.VerbEOF {
			return
		}
	}
}

func (s *Server) trackPeer(name string, pc *peerConn) {
	s.mu.Lock()
	s.peers[name] = pc
	s.mu.Unlock()
}

func (s *Server) dropPeer(name string, pc *peerConn) {
	s.mu.Lock()
	if s.peers[name] == pc {
		delete(s.peers, name)
	}
	s.mu.Unlock()
}

// Send routes an outgoing message over the live connection of its
// :receiver. The subscription poller uses it for update fan-out.
func (s *Server) Send(msg types.Message) error {
	receiver := msg.Receiver()
	s.mu.RLock()
	pc, ok := s.peers[receiver]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, receiver)
	}

	pc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	defer pc.conn.SetWriteDeadline(time.Time{})
	return pc.send(msg)
}
