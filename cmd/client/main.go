// Command client is a line-oriented terminal client for the chat service.
//
// The first line typed is the username; every following line is sent as a
// chat message. Slash commands: /users lists who is online, /logout
// releases the username, /quit exits.
package main

import (
	"bufio"
	"chatwire/domain"
	"chatwire/protocol"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	conn, err := net.Dial("tcp", config.ServerAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() { _ = conn.Close() }()

	c := &client{
		conn:    conn,
		colours: config.Colours,
		loginOK: make(chan bool, 1),
		closed:  make(chan struct{}),
	}
	go c.receiveLoop()

	fmt.Printf("Connected to %s\n", config.ServerAddress)
	if err := c.inputLoop(os.Stdin); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

type client struct {
	conn     net.Conn
	colours  bool
	username string
	loginOK  chan bool
	closed   chan struct{}
}

// receiveLoop reads framed responses from the server and renders them.
// It runs until the server closes the connection.
func (c *client) receiveLoop() {
	defer close(c.closed)
	decoder := protocol.NewFrameDecoder(c.conn)

	for {
		frame, err := decoder.Next()
		if err != nil {
			if err != io.EOF {
				fmt.Printf("Connection lost: %v\n", err)
			}
			return
		}

		response, err := protocol.DecodeResponse(frame)
		if err != nil {
			fmt.Printf("Cannot decode server response: %v\n", err)
			continue
		}

		switch resp := response.(type) {
		case protocol.LoginOK:
			for _, m := range resp.Messages {
				c.printMessage(m)
			}
			c.printNotice(fmt.Sprintf("Logged in as %s", resp.Username))
			c.loginOK <- true
		case protocol.LoginFailed:
			c.printError(resp.Reason)
			c.loginOK <- false
		case protocol.ChatBroadcast:
			c.printMessage(resp.Message)
		case protocol.ChatRejected:
			c.printError(resp.Reason)
		case protocol.UserList:
			c.printUsers(resp.Users)
		case protocol.LogoutOK:
			c.printNotice(fmt.Sprintf("Logged out %s", resp.Username))
		case protocol.LogoutRejected:
			c.printError(resp.Reason)
		case protocol.ProtocolViolation:
			c.printError("Protocol error: " + resp.Reason)
		}
	}
}

// inputLoop drives the session from stdin: a login prompt loop first, then
// chat lines and slash commands.
func (c *client) inputLoop(in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for c.username == "" {
		fmt.Print("Enter username: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		name := scanner.Text()
		if name == "" {
			continue
		}
		if err := c.login(name); err != nil {
			return err
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/users":
			if err := c.send(protocol.EncodeListUsersRequest()); err != nil {
				return err
			}
		case "/logout":
			if err := c.send(protocol.EncodeLogoutRequest()); err != nil {
				return err
			}
		default:
			if err := c.send(protocol.EncodeChatRequest(line)); err != nil {
				return err
			}
		}

		select {
		case <-c.closed:
			return nil
		default:
		}
	}
	return scanner.Err()
}

// login sends the login request and blocks until the response arrives, the
// way the protocol expects a client to sequence its handshake.
func (c *client) login(name string) error {
	if err := c.send(protocol.EncodeLoginRequest(name)); err != nil {
		return err
	}
	select {
	case ok := <-c.loginOK:
		if ok {
			c.username = name
		}
		return nil
	case <-c.closed:
		return fmt.Errorf("server closed the connection")
	}
}

func (c *client) send(frame []byte, err error) error {
	if err != nil {
		return err
	}
	_, err = c.conn.Write(frame)
	return err
}

func (c *client) printMessage(m domain.ChatMessage) {
	stamp := time.Unix(m.Timestamp, 0).Format(time.TimeOnly)
	line := fmt.Sprintf("[%s] %s: %s", stamp, m.Sender, m.Body)
	if !c.colours {
		fmt.Println(line)
		return
	}
	switch m.Sender {
	case domain.SystemSender:
		color.New(color.FgYellow).Println(line)
	case c.username:
		color.New(color.FgGreen).Println(line)
	default:
		color.New(color.FgCyan).Println(line)
	}
}

func (c *client) printNotice(text string) {
	if c.colours {
		color.New(color.FgLightBlue).Println(text)
		return
	}
	fmt.Println(text)
}

func (c *client) printError(text string) {
	if c.colours {
		color.New(color.FgRed).Println(text)
		return
	}
	fmt.Println(text)
}

func (c *client) printUsers(users []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Online users"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, user := range users {
		table.Append([]string{user})
	}
	table.Render()
}
