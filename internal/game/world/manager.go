package world

import "fmt"

// Manager provides read-only lookups over the loaded planet catalog.
type Manager struct {
	planets map[string]*Planet
}

// NewManager creates a Manager over the given planets.
//
// Precondition: planets must be non-empty and validated.
// Postcondition: Returns a Manager, or an error on duplicate planet
// names.
func NewManager(planets []*Planet) (*Manager, error) {
	byName := make(map[string]*Planet, len(planets))
	for _, p := range planets {
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate planet %q", p.Name)
		}
		byName[p.Name] = p
	}
	return &Manager{planets: byName}, nil
}

// GetPlanet returns the planet with the given name.
//
// Postcondition: Returns (planet, true) if found, or (nil, false)
// otherwise.
func (m *Manager) GetPlanet(name string) (*Planet, bool) {
	p, ok := m.planets[name]
	return p, ok
}

// HasMap reports whether the catalog knows the given planet/map pair.
func (m *Manager) HasMap(planet, mapName string) bool {
	p, ok := m.planets[planet]
	if !ok {
		return false
	}
	_, ok = p.Maps[mapName]
	return ok
}

// PlanetCount returns the number of loaded planets.
func (m *Manager) PlanetCount() int {
	return len(m.planets)
}

// MapCount returns the total number of maps across all planets.
func (m *Manager) MapCount() int {
	total := 0
	for _, p := range m.planets {
		total += len(p.Maps)
	}
	return total
}
