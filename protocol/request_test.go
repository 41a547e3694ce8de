package protocol

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Decode_Login_Request(t *testing.T) {
	req := require.New(t)

	request, err := DecodeRequest([]byte(`{"request":"login","username":"alice"}`))
	req.NoError(err)
	req.Equal(LoginRequest{Username: "alice"}, request)
}

func Test_Decode_Message_Request(t *testing.T) {
	req := require.New(t)

	request, err := DecodeRequest([]byte(`{"request":"message","message":"hi"}`))
	req.NoError(err)
	req.Equal(ChatRequest{Body: "hi"}, request)
}

func Test_Decode_ListUsers_And_Logout(t *testing.T) {
	req := require.New(t)

	request, err := DecodeRequest([]byte(`{"request":"listUsers"}`))
	req.NoError(err)
	req.Equal(ListUsersRequest{}, request)

	request, err = DecodeRequest([]byte(`{"request":"logout"}`))
	req.NoError(err)
	req.Equal(LogoutRequest{}, request)
}

// A structurally valid unit with a bad shape is a protocol error, not a
// decode failure.
func Test_Decode_Protocol_Errors(t *testing.T) {
	req := require.New(t)

	cases := []struct {
		name  string
		frame string
	}{
		{"missing discriminator", `{"username":"alice"}`},
		{"unknown request kind", `{"request":"teleport"}`},
		{"login without username", `{"request":"login"}`},
		{"message without body", `{"request":"message"}`},
	}

	for _, tc := range cases {
		_, err := DecodeRequest([]byte(tc.frame))
		req.Error(err, tc.name)
		req.IsType(&Error{}, err, tc.name)
	}
}

// Malformed JSON is not a protocol error: the caller drops the frame.
func Test_Decode_Malformed_Json(t *testing.T) {
	req := require.New(t)

	_, err := DecodeRequest([]byte(`{"request":`))
	req.Error(err)
	var protoErr *Error
	req.False(stderrors.As(err, &protoErr))
}

func Test_Encode_Requests_Round_Trip(t *testing.T) {
	req := require.New(t)

	frame, err := EncodeLoginRequest("bob")
	req.NoError(err)
	request, err := DecodeRequest(frame)
	req.NoError(err)
	req.Equal(LoginRequest{Username: "bob"}, request)

	frame, err = EncodeChatRequest(`curly {"stuff"} here`)
	req.NoError(err)
	request, err = DecodeRequest(frame)
	req.NoError(err)
	req.Equal(ChatRequest{Body: `curly {"stuff"} here`}, request)
}
