// Package location derives canonical room keys from map coordinates.
// A room key identifies the presence-sharing unit for one exact
// (planet, map, x, y) position.
package location

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLocation is returned when a location is missing its planet
// or map name. Coordinates are never range-checked here: map bounds
// belong to the admin tooling, and negative coordinates are legal.
var ErrInvalidLocation = errors.New("invalid location")

// Key builds the canonical room key for a position.
//
// The mapping is injective: two calls produce the same key iff all
// four arguments are equal. Planet and map names are escaped so that
// separator characters inside them cannot collide with field
// boundaries. Keys are stable across process restarts.
//
// Precondition: planet and mapName must be non-empty.
// Postcondition: Returns a non-empty key, or ErrInvalidLocation.
func Key(planet, mapName string, x, y int) (string, error) {
	if planet == "" || mapName == "" {
		return "", fmt.Errorf("%w: planet and map must be non-empty", ErrInvalidLocation)
	}
	return escape(planet) + ":" + escape(mapName) + ":" +
		strconv.Itoa(x) + ":" + strconv.Itoa(y), nil
}

// ParseKey is the inverse of Key.
//
// Postcondition: Returns (planet, map, x, y) for a well-formed key, or
// ErrInvalidLocation.
func ParseKey(key string) (planet, mapName string, x, y int, err error) {
	fields, err := split(key)
	if err != nil {
		return "", "", 0, 0, err
	}
	x, xErr := strconv.Atoi(fields[2])
	y, yErr := strconv.Atoi(fields[3])
	if xErr != nil || yErr != nil {
		return "", "", 0, 0, fmt.Errorf("%w: malformed coordinates in key %q", ErrInvalidLocation, key)
	}
	if fields[0] == "" || fields[1] == "" {
		return "", "", 0, 0, fmt.Errorf("%w: empty planet or map in key %q", ErrInvalidLocation, key)
	}
	return fields[0], fields[1], x, y, nil
}

// escape protects ':' and the escape character itself inside a name.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, ":", `\:`)
}

// split breaks a key into exactly four fields, honouring escapes in
// the first two.
func split(key string) ([4]string, error) {
	var fields [4]string
	idx := 0
	var b strings.Builder
	escaped := false
	for _, r := range key {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			if idx >= 3 {
				return fields, fmt.Errorf("%w: too many fields in key %q", ErrInvalidLocation, key)
			}
			fields[idx] = b.String()
			b.Reset()
			idx++
		default:
			b.WriteRune(r)
		}
	}
	if escaped || idx != 3 {
		return fields, fmt.Errorf("%w: malformed key %q", ErrInvalidLocation, key)
	}
	fields[3] = b.String()
	return fields, nil
}
