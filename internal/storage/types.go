package storage

import "time"

// User is an account that holds high-level permissions, directly and via
// roles. Permission names are opaque to storage; the permissions package
// maps them to (permission, scope) pairs.
type User struct {
	ID          int64
	Email       string
	Password    string
	IsSuperuser bool
	Permissions []string
	Roles       []Role
	CreatedAt   time.Time
}

// AllPermissions returns the user's direct and role permissions, deduplicated.
func (u *User) AllPermissions() []string {
	seen := make(map[string]bool, len(u.Permissions))
	perms := make([]string, 0, len(u.Permissions))

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}

	for _, p := range u.Permissions {
		add(p)
	}

	for _, role := range u.Roles {
		for _, p := range role.Permissions {
			add(p)
		}
	}

	return perms
}

// Role groups permissions under a name.
type Role struct {
	ID          int64
	Name        string
	Permissions []string
}

// Token authenticates a user via the Authorization header.
type Token struct {
	ID         int64
	Token      string
	UserID     int64
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token is past its expiry.
func (t *Token) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}
