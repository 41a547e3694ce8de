package protocol

import "encoding/json"

// Request is the closed set of client-initiated messages. Dispatch sites
// switch exhaustively over the concrete types, so a new request kind shows
// up as a compile-time exercise rather than a string comparison chain.
type Request interface {
	isRequest()
}

type LoginRequest struct {
	Username string
}

type ChatRequest struct {
	Body string
}

type ListUsersRequest struct{}

type LogoutRequest struct{}

func (LoginRequest) isRequest()     {}
func (ChatRequest) isRequest()      {}
func (ListUsersRequest) isRequest() {}
func (LogoutRequest) isRequest()    {}

// Error is a protocol-level violation of the request shape: missing or
// unknown discriminator, or a missing required field. Sessions answer it
// with a protocolError response; the connection stays open.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// rawRequest mirrors the flat key-value wire unit. Pointers distinguish a
// missing key from a present-but-empty value.
type rawRequest struct {
	Request  *string `json:"request"`
	Username *string `json:"username"`
	Message  *string `json:"message"`
}

// DecodeRequest parses one framed unit into its request variant.
//
// Malformed JSON is returned as the json error: the caller drops the frame
// and keeps the session alive. A structurally valid unit with a bad shape
// yields a *Error instead, which is surfaced to the client.
func DecodeRequest(frame []byte) (Request, error) {
	var raw rawRequest
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, err
	}

	if raw.Request == nil {
		return nil, &Error{Reason: "Required field 'request' not present!"}
	}

	switch *raw.Request {
	case "login":
		if raw.Username == nil {
			return nil, &Error{Reason: "Required field 'username' not present!"}
		}
		return LoginRequest{Username: *raw.Username}, nil
	case "message":
		if raw.Message == nil {
			return nil, &Error{Reason: "Required field 'message' not present!"}
		}
		return ChatRequest{Body: *raw.Message}, nil
	case "listUsers":
		return ListUsersRequest{}, nil
	case "logout":
		return LogoutRequest{}, nil
	default:
		return nil, &Error{Reason: "Request field should be one of 'login', 'message', 'listUsers' and 'logout'!"}
	}
}

// EncodeLoginRequest builds the wire form of a login attempt. Requests
// carry all their fields at construction, so unlike responses they need no
// completion state.
func EncodeLoginRequest(username string) ([]byte, error) {
	return json.Marshal(map[string]string{"request": "login", "username": username})
}

func EncodeChatRequest(body string) ([]byte, error) {
	return json.Marshal(map[string]string{"request": "message", "message": body})
}

func EncodeListUsersRequest() ([]byte, error) {
	return json.Marshal(map[string]string{"request": "listUsers"})
}

func EncodeLogoutRequest() ([]byte, error) {
	return json.Marshal(map[string]string{"request": "logout"})
}
