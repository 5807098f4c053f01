package biz

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidJWT      = errors.New("invalid jwt token")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInternal        = errors.New("server internal error, please try again later")
)

// InsufficientPermissionsError is returned when the current user attempts
// a permission edit the hierarchy rules do not allow.
type InsufficientPermissionsError struct {
	Reason string
}

func (e *InsufficientPermissionsError) Error() string {
	return "insufficient permissions: " + e.Reason
}

// TokenNotFoundError is returned when a request authenticates with a token
// that does not exist.
type TokenNotFoundError struct {
	Token string
}

func (e *TokenNotFoundError) Error() string {
	return "token not found"
}

// TokenExpiredTimeFormat is the wire format of the expired_at field.
const TokenExpiredTimeFormat = "2006-01-02T15:04:05.000000-0700"

// TokenExpiredError is returned when a request authenticates with an
// expired token. The token is deleted when this error is produced.
type TokenExpiredError struct {
	Token     string
	ExpiresAt time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("token expired at %s", e.ExpiresAt.Format(TokenExpiredTimeFormat))
}
