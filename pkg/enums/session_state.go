package enums

// SessionState tracks where a browser session is in its lifecycle.
type SessionState string

const (
	SessionUninitialized   SessionState = "uninitialized"
	SessionHydrating       SessionState = "hydrating"
	SessionAuthenticated   SessionState = "authenticated"
	SessionUnauthenticated SessionState = "unauthenticated"
)

func (s SessionState) String() string {
	return string(s)
}

// Settled reports whether hydration has finished.
func (s SessionState) Settled() bool {
	return s == SessionAuthenticated || s == SessionUnauthenticated
}
