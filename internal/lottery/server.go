// Package lottery implements the acceptor/listener lifecycle of spec.md
// §4.F: binding the TCP listener, spawning a session worker per accepted
// connection, periodically polling a running flag via an accept timeout
// (rather than depending solely on a signal-delivered wakeup), and
// reaping workers on a bounded, signal-triggered shutdown (spec.md §5).
package lottery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedepagnotta/tp0-distribuidos/internal/barrier"
	"github.com/fedepagnotta/tp0-distribuidos/internal/logging"
	"github.com/fedepagnotta/tp0-distribuidos/internal/metrics"
	"github.com/fedepagnotta/tp0-distribuidos/internal/session"
	"github.com/fedepagnotta/tp0-distribuidos/internal/store"
)

var log = logging.MustGetLogger("lottery")

// Server owns the listener exclusively for its lifetime (spec.md §3
// Ownership). The store and barrier are shared collaborators referenced by
// every session it spawns.
type Server struct {
	store   store.Store
	barrier *barrier.State
	metrics session.Recorder

	acceptTimeout   time.Duration
	shutdownTimeout time.Duration

	running  atomic.Bool
	listener *net.TCPListener

	wg      sync.WaitGroup
	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New builds a Server. acceptTimeout governs how often the accept loop
// wakes to re-check the running flag; shutdownTimeout bounds how long
// Shutdown waits for in-flight sessions before returning.
func New(st store.Store, b *barrier.State, acceptTimeout, shutdownTimeout time.Duration) *Server {
	return &Server{
		store:           st,
		barrier:         b,
		metrics:         metrics.Recorder{},
		acceptTimeout:   acceptTimeout,
		shutdownTimeout: shutdownTimeout,
		conns:           make(map[net.Conn]struct{}),
	}
}

// Listen binds the TCP listener on port. Must be called once, before Run.
func (s *Server) Listen(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("lottery: bind: %w", err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("lottery: expected *net.TCPListener, got %T", ln)
	}
	s.listener = tcpLn
	return nil
}

// Addr returns the bound listener's address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts connections until ctx is cancelled or the listener is closed
// by Shutdown. Each accepted connection is handled by its own session
// worker goroutine, tracked in the worker registry until it exits.
func (s *Server) Run(ctx context.Context) error {
	s.running.Store(true)

	stopCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			_ = s.listener.Close()
		case <-stopCh:
		}
	}()
	defer close(stopCh)

	log.Infof("action: accept_connections | result: in_progress | addr: %v", s.listener.Addr())
	for s.running.Load() {
		_ = s.listener.SetDeadline(time.Now().Add(s.acceptTimeout))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || !s.running.Load() {
				log.Infof("action: accept_connections | result: success | shutdown: true")
				return nil
			}
			log.Errorf("action: accept_connections | result: fail | error: %v", err)
			continue
		}

		log.Infof("action: accept_connections | result: success | ip: %v", conn.RemoteAddr())
		s.trackConn(conn)
		s.wg.Add(1)
		go s.handle(conn)
	}
	return nil
}

// handle runs one session to completion, then removes it from the worker
// registry. It is the unit spawned per accepted connection (spec.md §5:
// "parallel workers, one per accepted connection").
func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)

	metrics.SessionStarted()
	defer metrics.SessionEnded()

	sess := session.New(conn, s.store, s.barrier, s.metrics)
	sess.Run()
	metrics.SetBarrierFinished(s.barrier.Size())
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

// Shutdown stops the accept loop, closes the listener (refusing further
// accepts), force-closes every tracked in-flight connection so blocked
// session reads/writes unblock promptly, then waits up to shutdownTimeout
// for all session workers to finish. Go has no forcible goroutine
// termination; closing each connection is this runtime's equivalent of the
// "join with bounded timeout, then force-kill" policy in spec.md §5 — a
// session blocked only on socket I/O returns as soon as its connection is
// closed.
func (s *Server) Shutdown() error {
	log.Infof("action: shutdown_server | result: in_progress")
	s.running.Store(false)

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Infof("action: shutdown_server | result: success")
		return nil
	case <-time.After(s.shutdownTimeout):
		log.Warningf("action: shutdown_server | result: success | note: timed out waiting for %d workers", s.liveWorkers())
		return nil
	}
}

func (s *Server) liveWorkers() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}
