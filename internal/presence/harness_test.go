package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jcarrell/galaxia/internal/game/character"
)

// fakeStore is an in-memory StatusStore for gateway, publisher, and
// sweeper tests.
type fakeStore struct {
	mu        sync.Mutex
	chars     map[int64]*character.Character
	updateErr error
	readErr   error
}

func newFakeStore(chars ...*character.Character) *fakeStore {
	s := &fakeStore{chars: make(map[int64]*character.Character)}
	for _, c := range chars {
		s.chars[c.ID] = c
	}
	return s
}

func (s *fakeStore) GetCharacter(_ context.Context, id int64) (*character.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	c, ok := s.chars[id]
	if !ok {
		return nil, context.Canceled
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) UpdateCharacter(_ context.Context, id int64, upd CharacterUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	c, ok := s.chars[id]
	if !ok {
		c = &character.Character{ID: id}
		s.chars[id] = c
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.LastActivityAt != nil {
		c.LastActivityAt = *upd.LastActivityAt
	}
	if upd.Location != nil {
		c.Location = *upd.Location
	}
	return nil
}

func (s *fakeStore) FindCharactersByLocation(_ context.Context, planet, mapName string, x, y int) ([]*character.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []*character.Character
	for _, c := range s.chars {
		if c.Location.Planet == planet && c.Location.Map == mapName && c.Location.X == x && c.Location.Y == y {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) FindActiveOlderThan(_ context.Context, cutoff time.Time) ([]*character.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []*character.Character
	for _, c := range s.chars {
		if c.Status == character.StatusActive && c.LastActivityAt.Before(cutoff) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) DemoteInactive(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	var count int64
	for _, c := range s.chars {
		if c.Status == character.StatusActive && c.LastActivityAt.Before(cutoff) {
			c.Status = character.StatusSleeping
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) status(id int64) character.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[id].Status
}

// fakeSender records every frame pushed to one session.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

type recordedFrame struct {
	Event string `json:"event"`
	Data  struct {
		Room    string               `json:"room"`
		Players []character.Snapshot `json:"players"`
		Code    string               `json:"code"`
		Message string               `json:"message"`
	} `json:"data"`
}

func (f *fakeSender) recorded(t *testing.T) []recordedFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedFrame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr recordedFrame
		require.NoError(t, json.Unmarshal(raw, &fr))
		out = append(out, fr)
	}
	return out
}

func (f *fakeSender) lastBroadcast(t *testing.T) (recordedFrame, bool) {
	t.Helper()
	frames := f.recorded(t)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == EventPlayersAtLocation {
			return frames[i], true
		}
	}
	return recordedFrame{}, false
}

// newTestGateway wires a gateway, registry, and publisher over a fake
// store.
func newTestGateway(t *testing.T, store StatusStore) (*Gateway, *Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := NewRegistry()
	gw := NewGateway(registry, store, nil, logger, time.Second)
	gw.SetPublisher(NewPublisher(registry, store, gw, logger, time.Second))
	return gw, registry
}
