package protocol

import (
	"chatwire/domain"
	"chatwire/errors"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Wire texts for rejected requests. These are part of the protocol and
// shown verbatim by clients.
const (
	textInvalidUsername = "Invalid username!"
	textNameTaken       = "Name already taken!"
	textNotLoggedIn     = "You are not logged in!"
	textLogoutNotIn     = "Not logged in!"
)

// response is the shared build-once state of all response variants.
//
// A response is usable for encoding only after exactly one completing
// setter has run. Violations are programming errors local to the server,
// never protocol errors sent on the wire, so they fail loudly with
// distinguishable sentinels.
type response struct {
	attrs    map[string]any
	complete bool
}

func newResponse(kind string) response {
	return response{attrs: map[string]any{"response": kind}}
}

// completeOnce runs set under the build-once guard.
func (r *response) completeOnce(set func()) error {
	if r.complete {
		return errors.ErrAlreadyComplete
	}
	set()
	r.complete = true
	return nil
}

// Encode serializes the finished response as one wire unit.
func (r *response) Encode() ([]byte, error) {
	if !r.complete {
		return nil, errors.ErrIncomplete
	}
	return json.Marshal(r.attrs)
}

// row flattens a ChatMessage into its wire form [id, body, sender, ts].
func row(m domain.ChatMessage) []any {
	return []any{m.ID, m.Body, m.Sender, m.Timestamp}
}

func rows(messages []domain.ChatMessage) [][]any {
	return lo.Map(messages, func(m domain.ChatMessage, _ int) []any {
		return row(m)
	})
}

type LoginResponse struct{ response }

func NewLoginResponse() *LoginResponse {
	return &LoginResponse{newResponse("login")}
}

// SetSuccess completes the response with the accepted username and the
// recent-message snapshot taken at login time.
func (r *LoginResponse) SetSuccess(username string, recent []domain.ChatMessage) error {
	return r.completeOnce(func() {
		r.attrs["username"] = username
		r.attrs["messages"] = rows(recent)
	})
}

func (r *LoginResponse) SetInvalidUsername(username string) error {
	return r.completeOnce(func() {
		r.attrs["username"] = username
		r.attrs["error"] = textInvalidUsername
	})
}

func (r *LoginResponse) SetTakenUsername(username string) error {
	return r.completeOnce(func() {
		r.attrs["username"] = username
		r.attrs["error"] = textNameTaken
	})
}

type ChatResponse struct{ response }

func NewChatResponse() *ChatResponse {
	return &ChatResponse{newResponse("message")}
}

// SetMessage completes the broadcast form carrying one accepted message.
func (r *ChatResponse) SetMessage(m domain.ChatMessage) error {
	return r.completeOnce(func() {
		r.attrs["message"] = row(m)
	})
}

func (r *ChatResponse) SetNotLoggedIn() error {
	return r.completeOnce(func() {
		r.attrs["error"] = textNotLoggedIn
	})
}

type ListUsersResponse struct{ response }

func NewListUsersResponse() *ListUsersResponse {
	return &ListUsersResponse{newResponse("listUsers")}
}

func (r *ListUsersResponse) SetUsers(users []string) error {
	return r.completeOnce(func() {
		r.attrs["users"] = users
	})
}

type LogoutResponse struct{ response }

func NewLogoutResponse() *LogoutResponse {
	return &LogoutResponse{newResponse("logout")}
}

func (r *LogoutResponse) SetSuccess(username string) error {
	return r.completeOnce(func() {
		r.attrs["username"] = username
	})
}

func (r *LogoutResponse) SetNotLoggedIn() error {
	return r.completeOnce(func() {
		r.attrs["error"] = textLogoutNotIn
	})
}

type ProtocolErrorResponse struct{ response }

func NewProtocolErrorResponse() *ProtocolErrorResponse {
	return &ProtocolErrorResponse{newResponse("protocolError")}
}

func (r *ProtocolErrorResponse) SetError(text string) error {
	return r.completeOnce(func() {
		r.attrs["error"] = text
	})
}

// Response is the closed set of server-initiated messages as decoded by a
// client (or a test).
type Response interface {
	isResponse()
}

type LoginOK struct {
	Username string
	Messages []domain.ChatMessage
}

type LoginFailed struct {
	Username string
	Reason   string
}

type ChatBroadcast struct {
	Message domain.ChatMessage
}

type ChatRejected struct {
	Reason string
}

type UserList struct {
	Users []string
}

type LogoutOK struct {
	Username string
}

type LogoutRejected struct {
	Reason string
}

type ProtocolViolation struct {
	Reason string
}

func (LoginOK) isResponse()           {}
func (LoginFailed) isResponse()       {}
func (ChatBroadcast) isResponse()     {}
func (ChatRejected) isResponse()      {}
func (UserList) isResponse()          {}
func (LogoutOK) isResponse()          {}
func (LogoutRejected) isResponse()    {}
func (ProtocolViolation) isResponse() {}

type rawResponse struct {
	Response *string           `json:"response"`
	Username *string           `json:"username"`
	Error    *string           `json:"error"`
	Users    []string          `json:"users"`
	Message  json.RawMessage   `json:"message"`
	Messages []json.RawMessage `json:"messages"`
}

// DecodeResponse parses one framed unit into its response variant.
func DecodeResponse(frame []byte) (Response, error) {
	var raw rawResponse
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, err
	}
	if raw.Response == nil {
		return nil, &Error{Reason: "Required field 'response' not present!"}
	}

	switch *raw.Response {
	case "login":
		if raw.Error != nil {
			return LoginFailed{Username: deref(raw.Username), Reason: *raw.Error}, nil
		}
		messages, err := decodeRows(raw.Messages)
		if err != nil {
			return nil, err
		}
		return LoginOK{Username: deref(raw.Username), Messages: messages}, nil
	case "message":
		if raw.Error != nil {
			return ChatRejected{Reason: *raw.Error}, nil
		}
		message, err := decodeRow(raw.Message)
		if err != nil {
			return nil, err
		}
		return ChatBroadcast{Message: message}, nil
	case "listUsers":
		return UserList{Users: raw.Users}, nil
	case "logout":
		if raw.Error != nil {
			return LogoutRejected{Reason: *raw.Error}, nil
		}
		return LogoutOK{Username: deref(raw.Username)}, nil
	case "protocolError":
		return ProtocolViolation{Reason: deref(raw.Error)}, nil
	default:
		return nil, &Error{Reason: fmt.Sprintf("Unknown response kind %q!", *raw.Response)}
	}
}

func decodeRows(raws []json.RawMessage) ([]domain.ChatMessage, error) {
	messages := make([]domain.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		m, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func decodeRow(raw json.RawMessage) (domain.ChatMessage, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.ChatMessage{}, err
	}
	if len(fields) != 4 {
		return domain.ChatMessage{}, fmt.Errorf("message row has %d fields, want 4", len(fields))
	}
	var m domain.ChatMessage
	if err := json.Unmarshal(fields[0], &m.ID); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := json.Unmarshal(fields[1], &m.Body); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := json.Unmarshal(fields[2], &m.Sender); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := json.Unmarshal(fields[3], &m.Timestamp); err != nil {
		return domain.ChatMessage{}, err
	}
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
