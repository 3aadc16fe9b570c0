package session

import (
	"context"
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

// User is the authenticated actor as reported by the backend.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Role        enums.Role `json:"role"`
	Permissions []string   `json:"permissions,omitempty"`
	CommunityID string     `json:"community_id,omitempty"`
}

// Valid reports whether u identifies someone.
func (u *User) Valid() bool {
	return u != nil && strings.TrimSpace(u.ID) != ""
}

// Clone returns a deep copy so callers cannot mutate store state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Permissions != nil {
		out.Permissions = append([]string(nil), u.Permissions...)
	}
	return &out
}

func (u *User) equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	if u.ID != other.ID || u.Username != other.Username || u.FullName != other.FullName ||
		u.Email != other.Email || u.Role != other.Role || u.CommunityID != other.CommunityID ||
		len(u.Permissions) != len(other.Permissions) {
		return false
	}
	for i := range u.Permissions {
		if u.Permissions[i] != other.Permissions[i] {
			return false
		}
	}
	return true
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the canonical outcome of a successful backend login.
type LoginResult struct {
	Token string
	User  User
}

// Authenticator is the backend side of login and logout.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
}
