package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUsernameTaken      = fmt.Errorf("username already taken")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrNotMessageSender   = fmt.Errorf("only the sender can delete a message for everyone")
	ErrDuplicateIdentity  = fmt.Errorf("identity already registered")
)

// Credential failures form their own small taxonomy so callers can refuse a
// session with a precise reason instead of a blanket catch-all around decode.
var (
	ErrCredentialMalformed = fmt.Errorf("malformed credential")
	ErrCredentialRejected  = fmt.Errorf("credential rejected")
	ErrCredentialExpired   = fmt.Errorf("credential expired")
)
