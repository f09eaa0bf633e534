package mock

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nanoncore/nano-oxc/logger"
)

// Server exposes a Driver as an SCPI instrument on a TCP socket.
//
// Queries are answered with their response text and a line break, and
// *opc? with "1" and a line break, as real instruments do. A message that
// fails answers with an empty response.
type Server struct {
	device *Driver
	logger logger.Logger

	ln    net.Listener
	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}

	closed     atomic.Bool
	silent     atomic.Bool
	bareMarker atomic.Bool
	chatter    atomic.Bool
	syncs      atomic.Int64
	accepts    atomic.Int64
	messages   atomic.Int64
}

// NewServer creates a server for device.
func NewServer(device *Driver, l logger.Logger) *Server {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Server{
		device: device,
		logger: l,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen starts accepting connections on address.
func (s *Server) Listen(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.ln = ln
	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Info("mock SCPI server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Device returns the simulated fabric.
func (s *Server) Device() *Driver { return s.device }

// SetSilent makes the server swallow every response, like a hung device.
func (s *Server) SetSilent(v bool) { s.silent.Store(v) }

// SetBareMarker drops the line break between a query response and the
// completion marker.
func (s *Server) SetBareMarker(v bool) { s.bareMarker.Store(v) }

// SetChatter makes the server answer *opc? with an endless stream of
// filler bytes that never contains the completion marker.
func (s *Server) SetChatter(v bool) { s.chatter.Store(v) }

// Syncs returns the number of *opc? received without a preceding message.
func (s *Server) Syncs() int64 { return s.syncs.Load() }

// Accepts returns the number of accepted connections.
func (s *Server) Accepts() int64 { return s.accepts.Load() }

// Messages returns the number of messages other than *opc? received.
func (s *Server) Messages() int64 { return s.messages.Load() }

// DropConnections closes every active connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Close stops the listener and closes every connection.
func (s *Server) Close() error {
	s.closed.Store(true)
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.DropConnections()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("accept failed", "err", err)
			}
			return
		}
		s.accepts.Add(1)
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	ctx := context.Background()
	r := bufio.NewReader(conn)
	var (
		pending  bool
		isQuery  bool
		response string
	)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !strings.EqualFold(line, "*opc?") {
			s.messages.Add(1)
			pending = true
			isQuery = strings.HasSuffix(strings.Fields(line)[0], "?")
			response, err = s.device.Exec(ctx, line)
			if err != nil {
				s.logger.Debug("mock SCPI message failed", "message", line, "err", err)
				response = ""
			}
			continue
		}

		var out string
		switch {
		case pending && isQuery && s.bareMarker.Load():
			out = response + "1\r\n"
		case pending && isQuery:
			out = response + "\r\n1\r\n"
		default:
			if !pending {
				s.syncs.Add(1)
			}
			out = "1\r\n"
		}
		pending, isQuery, response = false, false, ""

		if s.silent.Load() {
			continue
		}
		if s.chatter.Load() {
			s.wg.Add(1)
			go s.babble(conn)
			continue
		}
		if _, err := conn.Write([]byte(out)); err != nil {
			return
		}
	}
}

func (s *Server) babble(conn net.Conn) {
	defer s.wg.Done()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if !s.chatter.Load() {
			return
		}
		if _, err := conn.Write([]byte("#")); err != nil {
			return
		}
	}
}
