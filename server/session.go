// Package server holds the TCP side of the chat service: the listener and
// the per-connection sessions.
package server

import (
	"chatwire/contract"
	"chatwire/domain"
	"chatwire/protocol"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// Session is the server-side state machine of a single client connection.
//
// One goroutine runs the receive→decode→dispatch cycle; a second drains the
// outbound channel onto the connection. Everything sent to this client,
// direct responses and broadcasts alike, goes through Deliver, so there is
// exactly one writer on the socket. A write failure takes the same cleanup
// path as a clean disconnect.
type Session struct {
	id       string
	conn     net.Conn
	log      *slog.Logger
	registry contract.IRegistry
	decoder  *protocol.FrameDecoder
	outbound chan []byte
	done     chan struct{}

	shutdownOnce sync.Once

	// mu guards the authentication state: the receive loop mutates it,
	// Shutdown may read it from the writer goroutine or the listener.
	mu            sync.Mutex
	username      string
	authenticated bool
}

func NewSession(log *slog.Logger, conn net.Conn, registry contract.IRegistry,
	outboundBuffer, maxFrame int) *Session {
	return &Session{
		id:       uuid.NewString(),
		conn:     conn,
		log:      log,
		registry: registry,
		decoder:  protocol.NewBoundedFrameDecoder(conn, maxFrame),
		outbound: make(chan []byte, outboundBuffer),
		done:     make(chan struct{}),
	}
}

// whoami identifies the session in logs: the username once authenticated,
// the remote address before that.
func (s *Session) whoami() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username != "" {
		return s.username
	}
	return s.conn.RemoteAddr().String()
}

// Run registers the session and processes incoming units until the peer
// disconnects or the session is shut down. It always leaves through
// Shutdown, so cleanup happens exactly once on every path.
func (s *Session) Run() {
	defer s.Shutdown()

	s.registry.RegisterSession(s.id, s)
	go s.writeLoop()

	s.log.Info("Client connected", "remote", s.conn.RemoteAddr().String())

	for {
		frame, err := s.decoder.Next()
		if err != nil {
			if err != io.EOF {
				s.log.Debug("Connection ended", "client", s.whoami(), "reason", err)
			}
			return
		}

		request, err := protocol.DecodeRequest(frame)
		if err != nil {
			if protoErr, ok := err.(*protocol.Error); ok {
				s.respondProtocolError(protoErr.Reason)
				continue
			}
			// Malformed JSON: drop the frame, keep the session. One bad
			// unit does not kill the connection.
			s.log.Warn("Cannot decode frame, dropping", "client", s.whoami(), "error", err)
			continue
		}

		switch req := request.(type) {
		case protocol.LoginRequest:
			s.handleLogin(req.Username)
		case protocol.ChatRequest:
			s.handleChat(req.Body)
		case protocol.ListUsersRequest:
			s.handleListUsers()
		case protocol.LogoutRequest:
			s.handleLogout()
		}
	}
}

func (s *Session) handleLogin(username string) {
	s.mu.Lock()
	alreadyIn := s.authenticated
	s.mu.Unlock()
	if alreadyIn {
		// The historical behavior silently replaced the name and leaked
		// the old one from the online set. Reject instead.
		s.respondProtocolError("Already logged in!")
		return
	}

	response := protocol.NewLoginResponse()
	if err := domain.ValidateUsername(username); err != nil {
		_ = response.SetInvalidUsername(username)
		s.respond(response)
		return
	}
	if err := s.registry.Login(username); err != nil {
		_ = response.SetTakenUsername(username)
		s.respond(response)
		return
	}

	s.mu.Lock()
	s.username = username
	s.authenticated = true
	s.mu.Unlock()

	_ = response.SetSuccess(username, s.registry.RecentMessages())
	s.respond(response)
	s.log.Info(fmt.Sprintf("Client %s logged in", username))
	s.registry.NotifyJoin(username)
}

func (s *Session) handleChat(body string) {
	s.mu.Lock()
	username := s.username
	authenticated := s.authenticated
	s.mu.Unlock()

	if !authenticated {
		response := protocol.NewChatResponse()
		_ = response.SetNotLoggedIn()
		s.respond(response)
		return
	}

	// No direct response: the registry fans the accepted message out to
	// every session, this one included. The broadcast is the response.
	if _, err := s.registry.Append(body, username); err != nil {
		s.log.Error("Failed to accept message", "client", username, "error", err)
	}
}

func (s *Session) handleListUsers() {
	response := protocol.NewListUsersResponse()
	_ = response.SetUsers(s.registry.OnlineUsers())
	s.respond(response)
}

func (s *Session) handleLogout() {
	response := protocol.NewLogoutResponse()

	s.mu.Lock()
	username := s.username
	authenticated := s.authenticated
	if authenticated {
		s.username = ""
		s.authenticated = false
	}
	s.mu.Unlock()

	if !authenticated {
		_ = response.SetNotLoggedIn()
		s.respond(response)
		return
	}

	s.registry.Logout(username)
	_ = response.SetSuccess(username)
	s.respond(response)
	s.log.Info(fmt.Sprintf("Client %s logged out", username))
	s.registry.NotifyLeave(username)
}

// Deliver queues one encoded unit for this client. It never blocks: if the
// outbound buffer is full the frame is dropped for this session only, so a
// slow or broken peer cannot stall broadcasts to the others.
func (s *Session) Deliver(frame []byte) {
	select {
	case <-s.done:
	default:
		select {
		case s.outbound <- frame:
		default:
			s.log.Warn("Outbound buffer full, dropping frame", "client", s.whoami())
		}
	}
}

// respond encodes and queues a response for this session only. A builder
// misuse surfaces here as a loud error and never reaches the wire.
func (s *Session) respond(response interface{ Encode() ([]byte, error) }) {
	frame, err := response.Encode()
	if err != nil {
		s.log.Error("Response builder contract violated", "error", err)
		return
	}
	s.Deliver(frame)
}

func (s *Session) respondProtocolError(reason string) {
	response := protocol.NewProtocolErrorResponse()
	_ = response.SetError(reason)
	s.respond(response)
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			if _, err := s.conn.Write(frame); err != nil {
				s.log.Debug("Write failed, closing session", "client", s.whoami(), "error", err)
				s.Shutdown()
				return
			}
		}
	}
}

// Shutdown releases everything the session holds: its registry slot, its
// username, and the connection. Idempotent; invoking it on an already
// closed session is a no-op, never a double close.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.registry.DeregisterSession(s.id)

		display := s.whoami()
		s.mu.Lock()
		username := s.username
		authenticated := s.authenticated
		s.username = ""
		s.authenticated = false
		s.mu.Unlock()

		_ = s.conn.Close()
		s.log.Info(fmt.Sprintf("Client %s disconnected", display))

		if authenticated {
			s.registry.Logout(username)
			s.registry.NotifyLeave(username)
		}
	})
}
