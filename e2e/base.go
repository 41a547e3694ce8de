package e2e

import (
	"fmt"
	"net"
	"testing"
	"time"

	"chatwire/protocol"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_SERVER_ADDR not set, skipping end-to-end suite")
	}
}

// ChatConn is one raw client connection with frame-level logging.
type ChatConn struct {
	suite *BaseChatSuite
	conn  net.Conn
	dec   *protocol.FrameDecoder
}

// Dial opens a connection to the server with a colorized header in the logs
func (s *BaseChatSuite) Dial(t *testing.T, name string) *ChatConn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	conn, err := net.Dial("tcp", s.Config.ServerAddr)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ServerAddr)
	t.Cleanup(func() { _ = conn.Close() })

	return &ChatConn{suite: s, conn: conn, dec: protocol.NewFrameDecoder(conn)}
}

// Send writes one encoded request, accepting the (frame, err) pair of the
// protocol encode helpers directly.
func (c *ChatConn) Send(frame []byte, err error) {
	c.suite.Require().NoError(err)
	if c.suite.Config.DebugFrames {
		c.suite.T().Logf("SEND %s", frame)
	}
	_, err = c.conn.Write(frame)
	c.suite.Require().NoError(err)
}

// Read blocks for the next response unit, with a deadline so a silent
// server fails the test instead of hanging it.
func (c *ChatConn) Read() protocol.Response {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(10 * time.Second)))
	frame, err := c.dec.Next()
	c.suite.Require().NoError(err)
	if c.suite.Config.DebugFrames {
		c.suite.T().Logf("RECV %s", frame)
	}
	response, err := protocol.DecodeResponse(frame)
	c.suite.Require().NoError(err)
	return response
}
