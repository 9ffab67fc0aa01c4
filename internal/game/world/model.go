// Package world provides the static planet/map catalog shipped by the
// admin tooling. The presence service reads it for observability only:
// joins referencing an unknown map are logged, never rejected, because
// map geometry is owned elsewhere.
package world

import "fmt"

// Map is one named 2D grid on a planet.
type Map struct {
	// Name uniquely identifies the map within its planet.
	Name string
	// Width and Height are the nominal grid dimensions. Informational
	// here; the presence core never checks coordinates against them.
	Width  int
	Height int
}

// Planet groups the maps of one world.
type Planet struct {
	// Name uniquely identifies the planet.
	Name string
	// Description summarizes the planet for admin screens.
	Description string
	// Maps contains this planet's maps, keyed by map name.
	Maps map[string]*Map
}

// Validate checks planet invariants.
//
// Postcondition: Returns nil if valid, or an error describing the
// first violation.
func (p *Planet) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("planet name must not be empty")
	}
	if len(p.Maps) == 0 {
		return fmt.Errorf("planet %q: must contain at least one map", p.Name)
	}
	for name, m := range p.Maps {
		if m.Name != name {
			return fmt.Errorf("planet %q: map key %q does not match map name %q", p.Name, name, m.Name)
		}
		if m.Width < 1 || m.Height < 1 {
			return fmt.Errorf("planet %q: map %q: dimensions must be >= 1", p.Name, name)
		}
	}
	return nil
}
