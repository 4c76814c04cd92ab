package mirror

import (
	"log/slog"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

// State is the mirror's knowledge of the current principal
type State int

const (
	// StateLoading means the initial fetch has not settled yet
	StateLoading State = iota
	// StateAuthenticated means a principal is known
	StateAuthenticated
	// StateAnonymous means it is known that nobody is signed in
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the mirror. The zero value is Loading.
type Snapshot struct {
	state State
	user  *authclient.User
}

// Loading returns the initial snapshot
func Loading() Snapshot {
	return Snapshot{state: StateLoading}
}

// Authenticated returns a snapshot holding user. A nil user yields Anonymous.
func Authenticated(user *authclient.User) Snapshot {
	if user == nil {
		return Anonymous()
	}
	return Snapshot{state: StateAuthenticated, user: user}
}

// Anonymous returns the signed-out snapshot
func Anonymous() Snapshot {
	return Snapshot{state: StateAnonymous}
}

// State returns the snapshot's tag
func (s Snapshot) State() State {
	return s.state
}

// Principal returns the signed-in user, if any
func (s Snapshot) Principal() (*authclient.User, bool) {
	return s.user, s.state == StateAuthenticated
}

// IsLoading reports whether the initial fetch is still pending
func (s Snapshot) IsLoading() bool {
	return s.state == StateLoading
}

// Equal reports whether two snapshots describe the same state and principal
func (s Snapshot) Equal(other Snapshot) bool {
	if s.state != other.state {
		return false
	}
	if s.user == nil || other.user == nil {
		return s.user == other.user
	}
	return s.user.ID == other.user.ID && s.user.Email == other.user.Email
}

// LogValue implements slog.LogValuer
func (s Snapshot) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("state", s.state.String())}
	if s.user != nil {
		attrs = append(attrs, slog.String("user_id", s.user.ID))
	}
	return slog.GroupValue(attrs...)
}

// snapshotFromSession maps a session event payload onto a snapshot
func snapshotFromSession(session *authclient.Session) Snapshot {
	if session == nil {
		return Anonymous()
	}
	return Authenticated(session.User)
}
