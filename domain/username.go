package domain

import (
	"chatwire/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// reservedUsernames can never be claimed by a client.
var reservedUsernames = []string{SystemSender}

type usernameCheck struct {
	Username string `validate:"required,max=20"`
}

// ValidateUsername applies the display-name rules: non-empty, at most 20
// characters, restricted to letters (including the Nordic ones the protocol
// has always allowed), digits and underscore, and not a reserved name.
func ValidateUsername(username string) error {
	if err := validate.Struct(usernameCheck{Username: username}); err != nil {
		return errors.ErrInvalidUsername
	}
	if !allowedCharset(username) {
		return errors.ErrInvalidUsername
	}
	for _, reserved := range reservedUsernames {
		if username == reserved {
			return errors.ErrInvalidUsername
		}
	}
	return nil
}

func allowedCharset(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		case r == 'æ' || r == 'ø' || r == 'å':
		case r == 'Æ' || r == 'Ø' || r == 'Å':
		default:
			return false
		}
	}
	return true
}
