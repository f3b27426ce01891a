package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/transport"
)

// Server is the relay. It keeps the last item per path, acknowledges every
// write to its writer and forwards the change to every other peer.
type Server struct {
	addr string
	log  zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	sockPath string
	closed   bool
	conns    map[net.Conn]struct{}
	peers    map[string]*peer
	items    map[string]transport.Item
	wg       sync.WaitGroup
}

type peer struct {
	id   string
	conn net.Conn
	mu   sync.Mutex
}

func (p *peer) send(f frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(f)
}

// write sends f; p.mu must be held.
func (p *peer) write(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	data = append(data, '\n')

	if _, err := p.conn.Write(data); err != nil {
		return fmt.Errorf("failed to write to peer %s: %w", p.id, err)
	}
	return nil
}

// NewServer creates a relay for addr (see ParseAddress).
func NewServer(addr string, log zerolog.Logger) *Server {
	return &Server{
		addr:  addr,
		log:   log.With().Str("component", "relay").Logger(),
		conns: make(map[net.Conn]struct{}),
		peers: make(map[string]*peer),
		items: make(map[string]transport.Item),
	}
}

// Listen opens the listening socket. A stale unix socket is removed first.
func (s *Server) Listen() error {
	network, address := ParseAddress(s.addr)
	if network == "unix" {
		_ = os.Remove(address)
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	if network == "unix" {
		s.sockPath = address
	}
	s.mu.Unlock()

	s.log.Info().Str("addr", s.Addr()).Msg("relay listening")
	return nil
}

// Addr returns the listening address in relay URL form.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.addr
	}
	a := s.listener.Addr()
	return a.Network() + "://" + a.String()
}

// Serve accepts peers until ctx is done or Close is called. Listen must be
// called first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("relay is not listening")
	}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Close stops accepting, drops every peer and removes the unix socket.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	sockPath := s.sockPath
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()
	if sockPath != "" {
		_ = os.Remove(sockPath)
	}
	return err
}

// Item returns the last item stored under path.
func (s *Server) Item(path string) (transport.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[path]
	it.Data = it.Data.Clone()
	return it, ok
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()
	reader := bufio.NewReader(conn)

	line, err := reader.ReadBytes('\n')
	if err != nil {
		s.log.Debug().Err(err).Msg("peer left before hello")
		return
	}
	var hello frame
	if err := json.Unmarshal(line, &hello); err != nil || hello.Type != frameHello {
		s.log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("peer did not say hello, dropping")
		return
	}

	p := &peer{id: hello.Node, conn: conn}
	if p.id == "" {
		p.id = uuid.NewString()
	}
	// The hello ack is written before any event can reach the peer: apply
	// forwards through p.send, which waits for p.mu.
	p.mu.Lock()
	if !s.register(p) {
		p.mu.Unlock()
		return
	}
	err = p.write(frame{Type: frameAck, Node: p.id})
	p.mu.Unlock()
	defer s.unregister(p)
	if err != nil {
		s.log.Warn().Err(err).Str("node", p.id).Msg("failed to ack hello")
		return
	}

	s.log.Info().Str("node", p.id).Msg("peer connected")

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			s.log.Info().Str("node", p.id).Err(err).Msg("peer disconnected")
			return
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			s.log.Error().Err(err).Str("node", p.id).Msg("failed to parse frame")
			continue
		}

		switch f.Type {
		case framePut:
			s.apply(p, f, transport.EventChanged)
		case frameDelete:
			s.apply(p, f, transport.EventDeleted)
		default:
			s.log.Debug().Str("type", f.Type).Str("node", p.id).Msg("unknown frame type")
		}
	}
}

func (s *Server) register(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	// A node that reconnects replaces its old connection.
	if old, ok := s.peers[p.id]; ok {
		_ = old.conn.Close()
	}
	s.peers[p.id] = p
	return true
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.peers[p.id]; ok && cur == p {
		delete(s.peers, p.id)
	}
}

func (s *Server) apply(from *peer, f frame, kind transport.EventKind) {
	s.mu.Lock()
	if kind == transport.EventDeleted {
		delete(s.items, f.Path)
	} else {
		s.items[f.Path] = transport.Item{
			Path:      f.Path,
			Data:      transport.DataMap(f.Data).Clone(),
			Source:    from.id,
			UpdatedAt: time.Now().UTC(),
		}
	}
	others := make([]*peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id != from.id {
			others = append(others, p)
		}
	}
	s.mu.Unlock()

	if err := from.send(frame{Type: frameAck, ID: f.ID}); err != nil {
		s.log.Warn().Err(err).Msg("failed to ack write")
	}

	s.log.Debug().
		Str("node", from.id).
		Str("path", f.Path).
		Str("kind", kind.String()).
		Bool("urgent", f.Urgent).
		Int("peers", len(others)).
		Msg("relaying item")

	ev := frame{Type: frameEvent, Node: from.id, Path: f.Path, Kind: kind.String(), Data: f.Data}
	for _, p := range others {
		if err := p.send(ev); err != nil {
			s.log.Warn().Err(err).Str("node", p.id).Msg("failed to forward event")
		}
	}
}
