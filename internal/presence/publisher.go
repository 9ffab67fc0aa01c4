package presence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jcarrell/galaxia/internal/game/character"
	"github.com/jcarrell/galaxia/internal/game/location"
)

// MemberResolver maps a member session to its bound character and
// outbound sender. The Gateway implements it.
type MemberResolver interface {
	ResolveMember(sessionID string) (characterID int64, sender Sender, ok bool)
}

// Publisher emits players-at-location snapshots to every session in a
// room. Broadcasts for one room are serialized, so causally ordered
// membership changes reach existing members in order; different rooms
// carry no relative ordering.
type Publisher struct {
	registry *Registry
	store    StatusStore
	resolver MemberResolver
	logger   *zap.Logger

	storeTimeout time.Duration

	mu        sync.Mutex
	roomLocks map[string]*roomLock
}

// roomLock serializes broadcasts for one room. Entries are refcounted
// so the lock table holds only rooms with a publish in flight; a lock
// is dropped with its last holder, not kept for the process lifetime.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewPublisher creates a Publisher.
//
// Precondition: registry, store, resolver, and logger must be non-nil;
// storeTimeout must be > 0.
func NewPublisher(registry *Registry, store StatusStore, resolver MemberResolver, logger *zap.Logger, storeTimeout time.Duration) *Publisher {
	return &Publisher{
		registry:     registry,
		store:        store,
		resolver:     resolver,
		logger:       logger,
		storeTimeout: storeTimeout,
		roomLocks:    make(map[string]*roomLock),
	}
}

// Publish snapshots the room's occupants and pushes the listing to
// every member. Delivery is at-most-once per recipient: a send to a
// session that disconnected mid-broadcast is dropped silently, and
// that session gets a fresh snapshot on its next join. A store read
// failure skips the broadcast and is logged, never fatal.
func (p *Publisher) Publish(ctx context.Context, room string) {
	lock := p.acquireRoom(room)
	defer p.releaseRoom(room, lock)

	members := p.registry.MembersOf(room)
	if len(members) == 0 {
		return
	}

	type recipient struct {
		characterID int64
		sender      Sender
	}
	recipients := make([]recipient, 0, len(members))
	bound := make(map[int64]bool, len(members))
	for _, sid := range members {
		charID, sender, ok := p.resolver.ResolveMember(sid)
		if !ok {
			continue
		}
		recipients = append(recipients, recipient{characterID: charID, sender: sender})
		bound[charID] = true
	}
	if len(recipients) == 0 {
		return
	}

	snapshots, err := p.occupantSnapshots(ctx, room, bound)
	if err != nil {
		p.logger.Warn("broadcast snapshot read failed",
			zap.String("room", room),
			zap.Error(err),
		)
		return
	}

	frame, err := encodeFrame(EventPlayersAtLocation, playersAtLocation{
		Room:    room,
		Players: snapshots,
	})
	if err != nil {
		p.logger.Error("encoding broadcast frame", zap.String("room", room), zap.Error(err))
		return
	}

	for _, rcpt := range recipients {
		if err := rcpt.sender.Send(frame); err != nil {
			p.logger.Debug("broadcast send dropped",
				zap.String("room", room),
				zap.Int64("character", rcpt.characterID),
				zap.Error(err),
			)
		}
	}

	p.logger.Debug("presence broadcast",
		zap.String("room", room),
		zap.Int("occupants", len(snapshots)),
		zap.Int("recipients", len(recipients)),
	)
}

// occupantSnapshots reads the public snapshots of the room's bound
// characters from the status store, ordered by name then ID.
func (p *Publisher) occupantSnapshots(ctx context.Context, room string, bound map[int64]bool) ([]character.Snapshot, error) {
	planet, mapName, x, y, err := location.ParseKey(room)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	chars, err := p.store.FindCharactersByLocation(ctx, planet, mapName, x, y)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	snapshots := make([]character.Snapshot, 0, len(chars))
	for _, c := range chars {
		// Characters stored at this location but not joined through a
		// live session are not present.
		if !bound[c.ID] {
			continue
		}
		snapshots = append(snapshots, c.PublicSnapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].Name != snapshots[j].Name {
			return snapshots[i].Name < snapshots[j].Name
		}
		return snapshots[i].ID < snapshots[j].ID
	})
	return snapshots, nil
}

// acquireRoom takes the serialization lock for a room, creating the
// entry on first use and pinning it while held.
func (p *Publisher) acquireRoom(room string) *roomLock {
	p.mu.Lock()
	lock, ok := p.roomLocks[room]
	if !ok {
		lock = &roomLock{}
		p.roomLocks[room] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseRoom releases a room's lock and drops the table entry with
// the last holder.
func (p *Publisher) releaseRoom(room string, lock *roomLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.roomLocks, room)
	}
	p.mu.Unlock()
}

// lockCount reports the number of rooms with a publish in flight.
func (p *Publisher) lockCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.roomLocks)
}
