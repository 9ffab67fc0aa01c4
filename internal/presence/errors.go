package presence

import (
	"errors"

	"github.com/jcarrell/galaxia/internal/game/location"
)

// ErrInvalidLocation rejects malformed or incomplete coordinates.
// It is the same sentinel the location codec returns, re-exported so
// gateway callers only need this package's taxonomy.
var ErrInvalidLocation = location.ErrInvalidLocation

var (
	// ErrForbidden rejects a heartbeat for a character not bound to
	// the session. No state changes.
	ErrForbidden = errors.New("character not bound to session")

	// ErrRoomMismatch reports a leave whose claimed location does not
	// resolve to the session's tracked room. Cleanup still proceeds
	// using the tracked room.
	ErrRoomMismatch = errors.New("claimed location does not match tracked room")

	// ErrSessionClosed rejects any event on a disconnected session.
	ErrSessionClosed = errors.New("session closed")

	// ErrStoreUnavailable wraps status-store timeouts and failures.
	// Fatal for joins, logged and swallowed for heartbeats and
	// broadcast reads.
	ErrStoreUnavailable = errors.New("status store unavailable")
)
