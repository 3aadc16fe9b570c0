package permissions

import (
	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

const DefaultRedirect = "/dashboard"

// Policy describes what a protected surface requires. Roles are any-of;
// Permissions are any-of unless RequireAll is set.
type Policy struct {
	Roles         []enums.Role
	Permissions   []string
	RequireAll    bool
	RedirectTo    string
	ShowForbidden bool
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed bool
	// Reason is "unidentified", "role" or "permission" when denied.
	Reason     string
	RedirectTo string
	Forbidden  bool
}

// Evaluate checks u against p. An unidentified user is always denied.
func Evaluate(u *session.User, p Policy) Decision {
	deny := func(reason string) Decision {
		d := Decision{Reason: reason, Forbidden: p.ShowForbidden}
		if !p.ShowForbidden {
			d.RedirectTo = p.redirect()
		}
		return d
	}

	if !identified(u) {
		return deny("unidentified")
	}
	if len(p.Roles) > 0 && !HasAnyRole(u, p.Roles...) {
		return deny("role")
	}
	if len(p.Permissions) > 0 {
		ok := HasAnyPermission(u, p.Permissions...)
		if p.RequireAll {
			ok = HasAllPermissions(u, p.Permissions...)
		}
		if !ok {
			return deny("permission")
		}
	}
	return Decision{Allowed: true}
}

func (p Policy) redirect() string {
	if p.RedirectTo == "" {
		return DefaultRedirect
	}
	return p.RedirectTo
}
