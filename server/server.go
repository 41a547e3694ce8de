package server

import (
	"chatwire/contract"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Server accepts inbound connections and spawns one Session per accepted
// connection. It takes no part in the protocol itself. Run implements
// contract.Worker so the listener lives under the supervisor.
type Server struct {
	log            *slog.Logger
	registry       contract.IRegistry
	address        string
	outboundBuffer int
	maxFrame       int

	readyOnce sync.Once
	ready     chan struct{}
	boundAddr net.Addr

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func NewServer(log *slog.Logger, registry contract.IRegistry, address string,
	outboundBuffer, maxFrame int) *Server {
	return &Server{
		log:            log,
		registry:       registry,
		address:        address,
		outboundBuffer: outboundBuffer,
		maxFrame:       maxFrame,
		ready:          make(chan struct{}),
		sessions:       make(map[string]*Session),
	}
}

// Ready is closed once the listener is bound. Addr is valid after that.
func (s *Server) Ready() <-chan struct{} { return s.ready }

func (s *Server) Addr() net.Addr { return s.boundAddr }

// Run listens, accepts until ctx is canceled, then force-closes every live
// session and waits for their cleanup before returning.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}
	s.boundAddr = listener.Addr()
	s.readyOnce.Do(func() { close(s.ready) })
	s.log.Info("Listening for chat clients", "address", s.boundAddr.String())

	// Cancellation unblocks Accept by closing the listener.
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("accept: %w", err)
		}

		session := NewSession(s.log, conn, s.registry, s.outboundBuffer, s.maxFrame)
		s.track(session)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(session)
			session.Run()
		}()
	}

	s.log.Info("Stopping listener, closing all sessions")
	for _, session := range s.snapshot() {
		session.Shutdown()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) track(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.id] = session
}

func (s *Server) untrack(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session.id)
}

func (s *Server) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}
