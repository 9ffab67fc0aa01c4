package presence

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/jcarrell/galaxia/internal/game/character"
)

// Inbound event names on the client→gateway wire.
const (
	EventJoinLocation  = "join-location"
	EventPlayerActive  = "player-active"
	EventLeaveLocation = "leave-location"
)

// Outbound event names on the gateway→client wire.
const (
	EventPlayersAtLocation = "players-at-location"
	EventError             = "error"
)

// Event is the tagged-variant inbound event type. Payloads are
// validated at the boundary; the state machine never sees a malformed
// shape.
type Event interface {
	eventName() string
}

// JoinLocation binds the session's character and places it in the room
// derived from the coordinates.
type JoinLocation struct {
	CharacterID int64
	Planet      string
	CurrentMap  string
	X           int
	Y           int
}

func (JoinLocation) eventName() string { return EventJoinLocation }

// PlayerActive is the heartbeat: it refreshes the character's
// last-activity timestamp without touching room membership.
type PlayerActive struct {
	CharacterID int64
}

func (PlayerActive) eventName() string { return EventPlayerActive }

// LeaveLocation removes the session from the room claimed by the
// coordinates.
type LeaveLocation struct {
	Planet     string
	CurrentMap string
	X          int
	Y          int
}

func (LeaveLocation) eventName() string { return EventLeaveLocation }

// DecodeEvent parses a raw inbound frame of the form
// {"event": <name>, "data": {...}} into its typed variant.
//
// Postcondition: Returns a fully validated event, or ErrInvalidLocation
// for unknown names and malformed join/leave payloads, or ErrForbidden
// for a heartbeat with no character ID.
func DecodeEvent(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: frame is not valid JSON", ErrInvalidLocation)
	}
	name := gjson.GetBytes(raw, "event")
	data := gjson.GetBytes(raw, "data")
	if !name.Exists() || !data.IsObject() {
		return nil, fmt.Errorf("%w: frame missing event name or data", ErrInvalidLocation)
	}

	switch name.String() {
	case EventJoinLocation:
		charID := data.Get("characterId")
		if !charID.Exists() || charID.Type != gjson.Number {
			return nil, fmt.Errorf("%w: join-location missing characterId", ErrInvalidLocation)
		}
		planet, mapName, x, y, err := coordinates(data)
		if err != nil {
			return nil, err
		}
		return JoinLocation{
			CharacterID: charID.Int(),
			Planet:      planet,
			CurrentMap:  mapName,
			X:           x,
			Y:           y,
		}, nil

	case EventPlayerActive:
		charID := data.Get("characterId")
		if !charID.Exists() || charID.Type != gjson.Number {
			return nil, fmt.Errorf("%w: player-active missing characterId", ErrForbidden)
		}
		return PlayerActive{CharacterID: charID.Int()}, nil

	case EventLeaveLocation:
		planet, mapName, x, y, err := coordinates(data)
		if err != nil {
			return nil, err
		}
		return LeaveLocation{
			Planet:     planet,
			CurrentMap: mapName,
			X:          x,
			Y:          y,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidLocation, name.String())
	}
}

// coordinates extracts and validates the shared location fields of
// join and leave payloads.
func coordinates(data gjson.Result) (planet, mapName string, x, y int, err error) {
	p := data.Get("planet")
	m := data.Get("currentMap")
	xc := data.Get("xCoord")
	yc := data.Get("yCoord")

	if p.Type != gjson.String || m.Type != gjson.String {
		return "", "", 0, 0, fmt.Errorf("%w: planet and currentMap must be strings", ErrInvalidLocation)
	}
	if p.String() == "" || m.String() == "" {
		return "", "", 0, 0, fmt.Errorf("%w: planet and currentMap must be non-empty", ErrInvalidLocation)
	}
	if xc.Type != gjson.Number || yc.Type != gjson.Number {
		return "", "", 0, 0, fmt.Errorf("%w: xCoord and yCoord must be numbers", ErrInvalidLocation)
	}
	if xc.Num != math.Trunc(xc.Num) || yc.Num != math.Trunc(yc.Num) {
		return "", "", 0, 0, fmt.Errorf("%w: xCoord and yCoord must be integers", ErrInvalidLocation)
	}
	return p.String(), m.String(), int(xc.Int()), int(yc.Int()), nil
}

// outboundFrame is the gateway→client envelope.
type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// playersAtLocation is the payload of a presence broadcast.
type playersAtLocation struct {
	Room    string               `json:"room"`
	Players []character.Snapshot `json:"players"`
}

// errorPayload reports a gateway-level failure to the originating
// session only.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodeFrame marshals an outbound envelope.
func encodeFrame(event string, data any) ([]byte, error) {
	frame, err := json.Marshal(outboundFrame{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", event, err)
	}
	return frame, nil
}
