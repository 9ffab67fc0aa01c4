package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jcarrell/galaxia/internal/game/character"
	"github.com/jcarrell/galaxia/internal/game/location"
	"github.com/jcarrell/galaxia/internal/game/world"
)

// Sender pushes an outbound frame to one client connection. Sends are
// best effort: a frame to a dead or saturated connection may be
// dropped, and that is not an error the gateway acts on.
type Sender interface {
	Send(data []byte) error
}

type sessionState int

const (
	stateConnected sessionState = iota
	stateJoined
	stateDisconnected
)

func (s sessionState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateJoined:
		return "joined"
	case stateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is one live client connection's presence state. All fields
// behind mu; event handlers for a single session serialize on it, so
// a client's own join/leave/heartbeat sequence is never reordered.
//
// Invariant: currentRoom equals the room the session is registered
// under in the Registry. Both are mutated together while mu is held.
type Session struct {
	id        string
	accountID string
	sender    Sender

	mu          sync.Mutex
	state       sessionState
	characterID int64
	currentRoom string
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// AccountID returns the authenticated account the session belongs to.
func (s *Session) AccountID() string { return s.accountID }

// CharacterID returns the bound character ID, or 0 if the session has
// never joined.
func (s *Session) CharacterID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.characterID
}

// CurrentRoom returns the session's room key, or "" if it is not in a
// room.
func (s *Session) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoom
}

// Gateway owns all live sessions and drives the per-session state
// machine Connected → Joined → Disconnected. It is constructed and
// lifetimed explicitly by the process entry point.
type Gateway struct {
	registry *Registry
	store    StatusStore
	worlds   *world.Manager
	logger   *zap.Logger

	storeTimeout time.Duration
	now          func() time.Time

	// publisher is assigned once during wiring, before any
	// connection is accepted.
	publisher *Publisher

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGateway creates a Gateway.
//
// Precondition: registry, store, and logger must be non-nil;
// storeTimeout must be > 0. worlds may be nil (no catalog warnings).
func NewGateway(registry *Registry, store StatusStore, worlds *world.Manager, logger *zap.Logger, storeTimeout time.Duration) *Gateway {
	return &Gateway{
		registry:     registry,
		store:        store,
		worlds:       worlds,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

// SetPublisher wires the broadcast publisher. Must be called before
// the first connection is accepted.
//
// Precondition: p must be non-nil.
func (g *Gateway) SetPublisher(p *Publisher) {
	g.publisher = p
}

// Connect registers a new session for an accepted connection.
//
// Precondition: sender must be non-nil; accountID is the subject of
// the verified session token and may be empty in tests.
// Postcondition: Returns a session in the connected state.
func (g *Gateway) Connect(sender Sender, accountID string) *Session {
	sess := &Session{
		id:        uuid.NewString(),
		accountID: accountID,
		sender:    sender,
		state:     stateConnected,
	}

	g.mu.Lock()
	g.sessions[sess.id] = sess
	g.mu.Unlock()

	g.logger.Info("session connected",
		zap.String("session", sess.id),
		zap.String("account", accountID),
	)
	return sess
}

// SessionCount returns the number of live sessions.
func (g *Gateway) SessionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// HandleEvent decodes and dispatches one inbound frame for a session.
// Errors are reported back to the originating session only.
//
// Precondition: Calls for a single session must be sequential (the
// transport's read loop guarantees this).
func (g *Gateway) HandleEvent(ctx context.Context, sessionID string, raw []byte) error {
	sess, ok := g.session(sessionID)
	if !ok {
		return ErrSessionClosed
	}

	ev, err := DecodeEvent(raw)
	if err == nil {
		switch e := ev.(type) {
		case JoinLocation:
			err = g.JoinLocation(ctx, sess, e)
		case PlayerActive:
			err = g.PlayerActive(ctx, sess, e)
		case LeaveLocation:
			err = g.LeaveLocation(ctx, sess, e)
		}
	}

	if err != nil {
		g.logger.Warn("event rejected",
			zap.String("session", sess.id),
			zap.Error(err),
		)
		g.sendError(sess, err)
	}
	return err
}

// JoinLocation handles join-location: it writes the character's
// status record first, then registers room membership, then
// broadcasts to the new room and, on a move, to the vacated one.
//
// A status-store failure is fatal to the join: the registry is left
// untouched so membership is never visible ahead of its status write.
func (g *Gateway) JoinLocation(ctx context.Context, sess *Session, ev JoinLocation) error {
	room, err := location.Key(ev.Planet, ev.CurrentMap, ev.X, ev.Y)
	if err != nil {
		return err
	}

	if g.worlds != nil && !g.worlds.HasMap(ev.Planet, ev.CurrentMap) {
		g.logger.Warn("join for map missing from catalog",
			zap.String("planet", ev.Planet),
			zap.String("map", ev.CurrentMap),
		)
	}

	sess.mu.Lock()
	if sess.state == stateDisconnected {
		sess.mu.Unlock()
		return ErrSessionClosed
	}

	now := g.now()
	status := character.StatusActive
	loc := character.Location{Planet: ev.Planet, Map: ev.CurrentMap, X: ev.X, Y: ev.Y}
	err = g.storeCall(ctx, func(ctx context.Context) error {
		return g.store.UpdateCharacter(ctx, ev.CharacterID, CharacterUpdate{
			Status:         &status,
			LastActivityAt: &now,
			Location:       &loc,
		})
	})
	if err != nil {
		sess.mu.Unlock()
		return fmt.Errorf("join-location status write: %w", err)
	}

	oldRoom := sess.currentRoom
	g.registry.Join(sess.id, room)
	sess.characterID = ev.CharacterID
	sess.currentRoom = room
	sess.state = stateJoined
	sess.mu.Unlock()

	g.logger.Info("session joined room",
		zap.String("session", sess.id),
		zap.Int64("character", ev.CharacterID),
		zap.String("room", room),
	)

	g.publisher.Publish(ctx, room)
	if oldRoom != "" && oldRoom != room {
		g.publisher.Publish(ctx, oldRoom)
	}
	return nil
}

// PlayerActive handles the heartbeat. The store write refreshes
// last-activity only; membership and broadcasts are untouched. A
// store failure here is logged and swallowed: the client stays
// connected and only sweeper accuracy degrades.
func (g *Gateway) PlayerActive(ctx context.Context, sess *Session, ev PlayerActive) error {
	sess.mu.Lock()
	switch {
	case sess.state == stateDisconnected:
		sess.mu.Unlock()
		return ErrSessionClosed
	case sess.state != stateJoined || sess.characterID != ev.CharacterID:
		sess.mu.Unlock()
		return fmt.Errorf("%w: heartbeat for character %d", ErrForbidden, ev.CharacterID)
	}

	now := g.now()
	status := character.StatusActive
	err := g.storeCall(ctx, func(ctx context.Context) error {
		return g.store.UpdateCharacter(ctx, ev.CharacterID, CharacterUpdate{
			Status:         &status,
			LastActivityAt: &now,
		})
	})
	sess.mu.Unlock()

	if err != nil {
		g.logger.Warn("heartbeat status write failed",
			zap.String("session", sess.id),
			zap.Int64("character", ev.CharacterID),
			zap.Error(err),
		)
	}
	return nil
}

// LeaveLocation handles leave-location. The claimed coordinates are
// validated against the tracked room, but cleanup always uses the
// tracked room: a stale client claim must not leave the session
// stranded in the registry.
func (g *Gateway) LeaveLocation(ctx context.Context, sess *Session, ev LeaveLocation) error {
	claimed, err := location.Key(ev.Planet, ev.CurrentMap, ev.X, ev.Y)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.state == stateDisconnected {
		sess.mu.Unlock()
		return ErrSessionClosed
	}
	if sess.state != stateJoined {
		sess.mu.Unlock()
		return fmt.Errorf("%w: leave from session not in a room", ErrRoomMismatch)
	}

	var mismatch error
	vacated := sess.currentRoom
	if claimed != vacated {
		mismatch = fmt.Errorf("%w: claimed %s, tracked %s", ErrRoomMismatch, claimed, vacated)
		g.logger.Warn("leave-location room mismatch",
			zap.String("session", sess.id),
			zap.String("claimed", claimed),
			zap.String("tracked", vacated),
		)
	}

	g.registry.Leave(sess.id)
	sess.currentRoom = ""
	sess.state = stateConnected
	sess.mu.Unlock()

	g.logger.Info("session left room",
		zap.String("session", sess.id),
		zap.String("room", vacated),
	)

	g.publisher.Publish(ctx, vacated)
	return mismatch
}

// Disconnect terminates a session from any state, releasing its room
// membership using the tracked room. It runs on explicit disconnects
// and on abrupt transport drops alike, and is idempotent.
func (g *Gateway) Disconnect(ctx context.Context, sessionID string) {
	sess, ok := g.session(sessionID)
	if !ok {
		return
	}

	sess.mu.Lock()
	if sess.state == stateDisconnected {
		sess.mu.Unlock()
		return
	}
	wasJoined := sess.state == stateJoined
	vacated := sess.currentRoom
	if wasJoined {
		g.registry.Leave(sess.id)
		sess.currentRoom = ""
	}
	sess.state = stateDisconnected
	sess.mu.Unlock()

	g.mu.Lock()
	delete(g.sessions, sessionID)
	g.mu.Unlock()

	g.logger.Info("session disconnected",
		zap.String("session", sessionID),
		zap.Bool("was_joined", wasJoined),
	)

	if wasJoined {
		g.publisher.Publish(ctx, vacated)
	}
}

// CloseAll disconnects every live session. Used at shutdown.
func (g *Gateway) CloseAll(ctx context.Context) {
	g.mu.RLock()
	ids := make([]string, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	for _, id := range ids {
		g.Disconnect(ctx, id)
	}
}

// ResolveMember reports the bound character and sender for a member
// session. Sessions that never joined have no bound character and are
// excluded from broadcasts.
func (g *Gateway) ResolveMember(sessionID string) (int64, Sender, bool) {
	sess, ok := g.session(sessionID)
	if !ok {
		return 0, nil, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == stateDisconnected || sess.characterID == 0 {
		return 0, nil, false
	}
	return sess.characterID, sess.sender, true
}

func (g *Gateway) session(id string) (*Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sess, ok := g.sessions[id]
	return sess, ok
}

// storeCall bounds a status-store call with the configured timeout and
// folds timeouts and store failures into ErrStoreUnavailable.
func (g *Gateway) storeCall(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// sendError pushes an error frame to the originating session. A send
// failure here is deliberately ignored: the connection is already on
// its way down.
func (g *Gateway) sendError(sess *Session, err error) {
	frame, encErr := encodeFrame(EventError, errorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	})
	if encErr != nil {
		g.logger.Error("encoding error frame", zap.Error(encErr))
		return
	}
	_ = sess.sender.Send(frame)
}

// errorCode maps the error taxonomy to stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidLocation):
		return "invalid-location"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRoomMismatch):
		return "room-mismatch"
	case errors.Is(err, ErrSessionClosed):
		return "session-closed"
	case errors.Is(err, ErrStoreUnavailable):
		return "store-unavailable"
	default:
		return "internal"
	}
}
