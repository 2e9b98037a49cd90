package auth

import (
	stderrors "errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"chat-relay/errors"
)

// bearerPrefix is the recognized credential scheme, case-sensitive.
const bearerPrefix = "Bearer "

// Authenticate validates a bearer credential presented at connection time
// or as the first socket message, and yields the user identity it names.
// Failures are always one of the typed credential errors; nothing shared
// is mutated and nothing panics out of here.
func (v *Verifier) Authenticate(credential string) (string, error) {
	if credential == "" {
		return "", errors.ErrCredentialMalformed
	}
	credential = strings.TrimPrefix(credential, bearerPrefix)

	claims, err := v.ValidateToken(credential)
	switch {
	case err == nil:
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return "", errors.ErrCredentialExpired
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return "", errors.ErrCredentialMalformed
	default:
		return "", errors.ErrCredentialRejected
	}

	if claims.UserID == "" {
		return "", errors.ErrCredentialRejected
	}
	return claims.UserID, nil
}
