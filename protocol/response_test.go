package protocol

import (
	"chatwire/domain"
	"chatwire/errors"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Response_Encode_Before_Complete(t *testing.T) {
	req := require.New(t)

	_, err := NewLoginResponse().Encode()
	req.ErrorIs(err, errors.ErrIncomplete)

	_, err = NewChatResponse().Encode()
	req.ErrorIs(err, errors.ErrIncomplete)
}

func Test_Response_Double_Complete(t *testing.T) {
	req := require.New(t)

	response := NewLoginResponse()
	req.NoError(response.SetSuccess("alice", nil))
	req.ErrorIs(response.SetSuccess("alice", nil), errors.ErrAlreadyComplete)
	req.ErrorIs(response.SetInvalidUsername("alice"), errors.ErrAlreadyComplete)

	logout := NewLogoutResponse()
	req.NoError(logout.SetNotLoggedIn())
	req.ErrorIs(logout.SetSuccess("alice"), errors.ErrAlreadyComplete)
}

// The broadcast form carries the message as the flat row [id, body, sender, ts].
func Test_Response_Message_Row_Shape(t *testing.T) {
	req := require.New(t)

	response := NewChatResponse()
	req.NoError(response.SetMessage(domain.ChatMessage{
		ID: 1, Body: "hi", Sender: "alice", Timestamp: 1700000000,
	}))
	frame, err := response.Encode()
	req.NoError(err)

	var decoded struct {
		Response string          `json:"response"`
		Message  json.RawMessage `json:"message"`
	}
	req.NoError(json.Unmarshal(frame, &decoded))
	req.Equal("message", decoded.Response)
	req.JSONEq(`[1,"hi","alice",1700000000]`, string(decoded.Message))
}

func Test_Response_Login_Round_Trip(t *testing.T) {
	req := require.New(t)
	recent := []domain.ChatMessage{
		{ID: 1, Body: "one", Sender: "alice", Timestamp: 10},
		{ID: 2, Body: "two", Sender: "bob", Timestamp: 20},
	}

	response := NewLoginResponse()
	req.NoError(response.SetSuccess("clara", recent))
	frame, err := response.Encode()
	req.NoError(err)

	decoded, err := DecodeResponse(frame)
	req.NoError(err)
	req.Equal(LoginOK{Username: "clara", Messages: recent}, decoded)
}

func Test_Response_Login_Errors_Round_Trip(t *testing.T) {
	req := require.New(t)

	invalid := NewLoginResponse()
	req.NoError(invalid.SetInvalidUsername("b@d"))
	frame, err := invalid.Encode()
	req.NoError(err)
	decoded, err := DecodeResponse(frame)
	req.NoError(err)
	req.Equal(LoginFailed{Username: "b@d", Reason: "Invalid username!"}, decoded)

	taken := NewLoginResponse()
	req.NoError(taken.SetTakenUsername("alice"))
	frame, err = taken.Encode()
	req.NoError(err)
	decoded, err = DecodeResponse(frame)
	req.NoError(err)
	req.Equal(LoginFailed{Username: "alice", Reason: "Name already taken!"}, decoded)
}

func Test_Response_Chat_Not_Logged_In(t *testing.T) {
	req := require.New(t)

	response := NewChatResponse()
	req.NoError(response.SetNotLoggedIn())
	frame, err := response.Encode()
	req.NoError(err)

	decoded, err := DecodeResponse(frame)
	req.NoError(err)
	req.Equal(ChatRejected{Reason: "You are not logged in!"}, decoded)
}

func Test_Response_Remaining_Variants(t *testing.T) {
	req := require.New(t)

	users := NewListUsersResponse()
	req.NoError(users.SetUsers([]string{"alice", "bob"}))
	frame, err := users.Encode()
	req.NoError(err)
	decoded, err := DecodeResponse(frame)
	req.NoError(err)
	req.Equal(UserList{Users: []string{"alice", "bob"}}, decoded)

	logout := NewLogoutResponse()
	req.NoError(logout.SetSuccess("alice"))
	frame, err = logout.Encode()
	req.NoError(err)
	decoded, err = DecodeResponse(frame)
	req.NoError(err)
	req.Equal(LogoutOK{Username: "alice"}, decoded)

	protoError := NewProtocolErrorResponse()
	req.NoError(protoError.SetError("Required field 'request' not present!"))
	frame, err = protoError.Encode()
	req.NoError(err)
	decoded, err = DecodeResponse(frame)
	req.NoError(err)
	req.Equal(ProtocolViolation{Reason: "Required field 'request' not present!"}, decoded)
}
