package domain

import "context"

// SessionState is what the guards know about the caller.
type SessionState int

const (
	// SessionUnknown means the state is still being resolved.
	SessionUnknown SessionState = iota
	SessionAnonymous
	SessionGuest
	SessionUser
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "anonymous"
	case SessionGuest:
		return "guest"
	case SessionUser:
		return "user"
	}
	return "unknown"
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	LoginRoute = "/auth/login"
	BoardRoute = "/board"
)

// AwaitSession blocks until states yields a resolved value. A closed stream
// or a cancelled context counts as anonymous.
func AwaitSession(ctx context.Context, states <-chan SessionState) SessionState {
	for {
		select {
		case <-ctx.Done():
			return SessionAnonymous
		case st, ok := <-states:
			if !ok {
				return SessionAnonymous
			}
			if st != SessionUnknown {
				return st
			}
		}
	}
}

// RequireSession lets guests and signed-in users through and sends everyone
// else to the login page.
func RequireSession(st SessionState) (allow bool, redirect string) {
	if st == SessionGuest || st == SessionUser {
		return true, ""
	}
	return false, LoginRoute
}

// RequireNoUser keeps signed-in (non-guest) users away from login and register.
func RequireNoUser(st SessionState) (allow bool, redirect string) {
	if st == SessionUser {
		return false, BoardRoute
	}
	return true, ""
}
