package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlPlanetFile is the top-level YAML structure for planet files.
type yamlPlanetFile struct {
	Planet yamlPlanet `yaml:"planet"`
}

// yamlPlanet is the YAML representation of a planet.
type yamlPlanet struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Maps        []yamlMap `yaml:"maps"`
}

// yamlMap is the YAML representation of a map.
type yamlMap struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// LoadPlanetFromFile reads and validates a single planet YAML file.
//
// Precondition: path must point to a valid YAML planet file.
// Postcondition: Returns a validated Planet or a non-nil error.
func LoadPlanetFromFile(path string) (*Planet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading planet file %s: %w", path, err)
	}
	return LoadPlanetFromBytes(data)
}

// LoadPlanetFromBytes parses and validates a planet from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the planet schema.
// Postcondition: Returns a validated Planet or a non-nil error.
func LoadPlanetFromBytes(data []byte) (*Planet, error) {
	var file yamlPlanetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing planet YAML: %w", err)
	}

	planet := &Planet{
		Name:        file.Planet.Name,
		Description: file.Planet.Description,
		Maps:        make(map[string]*Map, len(file.Planet.Maps)),
	}
	for _, ym := range file.Planet.Maps {
		planet.Maps[ym.Name] = &Map{
			Name:   ym.Name,
			Width:  ym.Width,
			Height: ym.Height,
		}
	}

	if err := planet.Validate(); err != nil {
		return nil, fmt.Errorf("validating planet: %w", err)
	}
	return planet, nil
}

// LoadPlanetsFromDir loads all YAML files in a directory as planets.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated planets or the first error
// encountered.
func LoadPlanetsFromDir(dir string) ([]*Planet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading planet directory %s: %w", dir, err)
	}

	var planets []*Planet
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		planet, err := LoadPlanetFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading planet from %s: %w", name, err)
		}
		planets = append(planets, planet)
	}

	if len(planets) == 0 {
		return nil, fmt.Errorf("no planet files found in %s", dir)
	}
	return planets, nil
}
