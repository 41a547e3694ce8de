package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrAlreadyComplete = fmt.Errorf("message already complete")
	ErrIncomplete      = fmt.Errorf("attempted to encode unfinished message")
	ErrInvalidUsername = fmt.Errorf("invalid username")
	ErrNameTaken       = fmt.Errorf("username already taken")
	ErrNotLoggedIn     = fmt.Errorf("not logged in")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
)
