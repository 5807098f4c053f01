package objects

import (
	"time"

	"github.com/scopegate/scopegate/internal/storage"
)

// User is the wire representation of a user.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserFromStorage converts a stored user, never exposing the password hash.
func UserFromStorage(user *storage.User) User {
	perms := user.Permissions
	if perms == nil {
		perms = []string{}
	}

	return User{
		ID:          user.ID,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
		Permissions: perms,
		CreatedAt:   user.CreatedAt,
	}
}

// Token is the wire representation of an auth token.
type Token struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	LastUsed  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TokenFromStorage converts a stored token.
func TokenFromStorage(token *storage.Token) Token {
	return Token{
		ID:        token.ID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		LastUsed:  token.LastUsedAt,
		CreatedAt: token.CreatedAt,
	}
}

// SignInRequest is the JWT sign-in payload.
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SetPermissionsRequest replaces a user's direct permission groups.
type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

// SignInResponse carries the session JWT.
type SignInResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
