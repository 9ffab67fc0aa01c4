package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const earthYAML = `
planet:
  name: "Earth"
  description: "The cradle."
  maps:
    - name: "Town"
      width: 64
      height: 64
    - name: "Wilds"
      width: 128
      height: 96
`

func TestLoadPlanetFromBytes(t *testing.T) {
	p, err := LoadPlanetFromBytes([]byte(earthYAML))
	require.NoError(t, err)
	assert.Equal(t, "Earth", p.Name)
	assert.Len(t, p.Maps, 2)
	assert.Equal(t, 64, p.Maps["Town"].Width)
}

func TestLoadPlanetInvalidYAML(t *testing.T) {
	_, err := LoadPlanetFromBytes([]byte("planet: ["))
	assert.Error(t, err)
}

func TestLoadPlanetValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty name", "planet:\n  maps:\n    - name: \"Town\"\n      width: 1\n      height: 1\n"},
		{"no maps", "planet:\n  name: \"Earth\"\n"},
		{"zero dimensions", "planet:\n  name: \"Earth\"\n  maps:\n    - name: \"Town\"\n      width: 0\n      height: 5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadPlanetFromBytes([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlanetsFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "earth.yaml"), []byte(earthYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	planets, err := LoadPlanetsFromDir(dir)
	require.NoError(t, err)
	assert.Len(t, planets, 1)
}

func TestLoadPlanetsFromEmptyDir(t *testing.T) {
	_, err := LoadPlanetsFromDir(t.TempDir())
	assert.Error(t, err)
}

func TestManagerLookups(t *testing.T) {
	p, err := LoadPlanetFromBytes([]byte(earthYAML))
	require.NoError(t, err)

	m, err := NewManager([]*Planet{p})
	require.NoError(t, err)

	assert.True(t, m.HasMap("Earth", "Town"))
	assert.False(t, m.HasMap("Earth", "Dungeon"))
	assert.False(t, m.HasMap("Mars", "Town"))
	assert.Equal(t, 1, m.PlanetCount())
	assert.Equal(t, 2, m.MapCount())

	_, ok := m.GetPlanet("Earth")
	assert.True(t, ok)
}

func TestManagerDuplicatePlanet(t *testing.T) {
	p1, err := LoadPlanetFromBytes([]byte(earthYAML))
	require.NoError(t, err)
	p2, err := LoadPlanetFromBytes([]byte(earthYAML))
	require.NoError(t, err)

	_, err = NewManager([]*Planet{p1, p2})
	assert.Error(t, err)
}
