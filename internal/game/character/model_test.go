package character

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusSleeping.Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("afk").Valid())
}

func TestPublicSnapshot(t *testing.T) {
	c := &Character{
		ID:        7,
		AccountID: 42,
		Name:      "Zara",
		Race:      "human",
		Level:     3,
		Status:    StatusActive,
		Location:  Location{Planet: "Earth", Map: "Town", X: 2, Y: 3},
	}

	snap := c.PublicSnapshot()
	assert.Equal(t, int64(7), snap.ID)
	assert.Equal(t, "Zara", snap.Name)
	assert.Equal(t, StatusActive, snap.Status)
	assert.Equal(t, 3, snap.Level)
	assert.Equal(t, "human", snap.Race)

	// The account ID and location never leak into the broadcast view.
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "42")
	assert.NotContains(t, string(data), "Earth")
}
