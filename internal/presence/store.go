package presence

import (
	"context"
	"time"

	"github.com/jcarrell/galaxia/internal/game/character"
)

// CharacterUpdate is a partial update of a character's status record.
// Nil fields are left untouched.
type CharacterUpdate struct {
	Status         *character.Status
	LastActivityAt *time.Time
	Location       *character.Location
}

// StatusStore is the external character-status store consumed by the
// presence core. The postgres repository satisfies it; tests use an
// in-memory fake.
type StatusStore interface {
	// GetCharacter returns the character with the given ID.
	GetCharacter(ctx context.Context, id int64) (*character.Character, error)

	// UpdateCharacter applies a partial update to one character.
	UpdateCharacter(ctx context.Context, id int64, upd CharacterUpdate) error

	// FindCharactersByLocation returns all characters whose stored
	// location matches the given coordinates exactly.
	FindCharactersByLocation(ctx context.Context, planet, mapName string, x, y int) ([]*character.Character, error)

	// FindActiveOlderThan returns active characters whose last
	// activity is before the cutoff.
	FindActiveOlderThan(ctx context.Context, cutoff time.Time) ([]*character.Character, error)

	// DemoteInactive sets status to sleeping for every active
	// character whose last activity is before the cutoff, in a single
	// batch, and returns the number demoted.
	DemoteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}
