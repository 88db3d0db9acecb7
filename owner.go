package dashboard

import (
	"sync"

	"github.com/contentai-pro/dashboard-core/session"
)

// SessionSource is the part of session.Manager the Owner needs.
type SessionSource interface {
	Snapshot() session.Snapshot
	Subscribe(fn session.Observer) (unsubscribe func())
}

// Streamer is the part of stream.Client the Owner drives.
type Streamer interface {
	Connect(userID, token string) error
	Disconnect()
}

// Owner keeps the push stream in step with the session: connected while authenticated,
// disconnected otherwise. Changes are applied inside the session transition that caused
// them, so a logout has closed the stream by the time Logout returns.
type Owner struct {
	stream      Streamer
	unsubscribe func()

	mu     sync.Mutex
	seen   bool // a transition has been applied
	closed bool
}

func NewOwner(sess SessionSource, s Streamer) *Owner {
	o := &Owner{
		stream: s,
	}
	o.unsubscribe = sess.Subscribe(o.onTransition)
	// Snapshot must not be called with o.mu held: a commit waiting on our observer
	// holds the session lock.
	current := sess.Snapshot()
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.seen {
		o.apply(session.Snapshot{}, current)
	}
	return o
}

func (o *Owner) onTransition(prev, next session.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.seen = true
	o.apply(prev, next)
}

func (o *Owner) apply(prev, next session.Snapshot) {
	switch {
	case !next.IsAuthenticated:
		o.stream.Disconnect()
	case prev.IsAuthenticated && prev.SameIdentity(next):
		// profile edit, the connection is still good
	default:
		if prev.IsAuthenticated {
			o.stream.Disconnect()
		}
		if err := o.stream.Connect(next.UserID, next.Token); err != nil {
			logger.Err(err).Str("u", next.UserID).Msg("failed to open the push stream")
		}
	}
}

// Close stops following the session and tears the stream down.
func (o *Owner) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()
	o.unsubscribe()
	o.stream.Disconnect()
}
