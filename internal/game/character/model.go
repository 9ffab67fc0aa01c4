// Package character defines the character domain model shared by the
// presence gateway, the broadcast publisher, and the status store.
package character

import "time"

// Status is a character's activity state.
type Status string

// Character activity states. A sleeping character keeps its room
// membership; the flag only records inactivity.
const (
	StatusActive   Status = "active"
	StatusSleeping Status = "sleeping"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSleeping
}

// Location is a character's authoritative map position. The presence
// core only derives room keys from it; map geometry is owned by the
// admin tooling.
type Location struct {
	Planet string
	Map    string
	X      int
	Y      int
}

// Character represents a character's persistent state as stored by the
// status store.
//
// ID is set by the persistence layer; a zero value indicates an
// unsaved character.
type Character struct {
	ID        int64
	AccountID int64

	Name  string
	Race  string
	Level int

	Status         Status
	Location       Location
	LastActivityAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the public view of a character pushed to room occupants
// in players-at-location broadcasts.
type Snapshot struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Level  int    `json:"level"`
	Race   string `json:"race"`
}

// PublicSnapshot projects the broadcast-visible fields of c.
func (c *Character) PublicSnapshot() Snapshot {
	return Snapshot{
		ID:     c.ID,
		Name:   c.Name,
		Status: c.Status,
		Level:  c.Level,
		Race:   c.Race,
	}
}
