package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"swingy/server/internal/sim"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Inbound discriminants. Exactly one must be present in a client frame.
const (
	KeyName   = "Name"
	KeyAngle  = "Angle"
	KeyShoot  = "Shoot"
	KeyShield = "Shield"
)

// ErrMalformed marks an inbound frame that cannot be turned into a command.
var ErrMalformed = errors.New("proto: malformed client message")

// Encoding selects the frame format for one session.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding maps a query value to an Encoding. Empty means JSON.
func ParseEncoding(value string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(value))) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	default:
		return "", fmt.Errorf("proto: unsupported encoding %q", value)
	}
}

// Binary reports whether frames in this encoding are binary websocket frames.
func (e Encoding) Binary() bool {
	return e == EncodingMsgpack
}

// Vec2 is a vector on the wire: [x, y].
type Vec2 [2]float64

// VecFrom converts a simulation vector.
func VecFrom(v sim.Vec2) Vec2 {
	return Vec2{v.X, v.Y}
}

// Welcome is sent once to a session right after it registers.
type Welcome struct {
	You string `json:"you" msgpack:"you"`
	Pos Vec2   `json:"pos" msgpack:"pos"`
}

// NewWelcome builds the welcome payload for id with a camera hint.
func NewWelcome(id sim.SessionID, hint sim.Vec2) Welcome {
	return Welcome{You: strconv.FormatUint(uint64(id), 10), Pos: VecFrom(hint)}
}

// Death announces that a player identity left the world.
type Death struct {
	Death uint64 `json:"death" msgpack:"death"`
}

// PlayerView is the public projection of a player.
type PlayerView struct {
	Pos       Vec2    `json:"pos" msgpack:"pos"`
	Anchor    Vec2    `json:"anchor" msgpack:"anchor"`
	Name      string  `json:"name" msgpack:"name"`
	Angle     float64 `json:"angle" msgpack:"angle"`
	Health    uint8   `json:"health" msgpack:"health"`
	Score     uint64  `json:"score" msgpack:"score"`
	Shooting  bool    `json:"shooting" msgpack:"shooting"`
	Shielding bool    `json:"shielding" msgpack:"shielding"`
}

// BulletView is the public projection of a bullet.
type BulletView struct {
	Pos Vec2 `json:"pos" msgpack:"pos"`
	Vel Vec2 `json:"vel" msgpack:"vel"`
}

// DemonView is the public projection of the demon.
type DemonView struct {
	Pos    Vec2  `json:"pos" msgpack:"pos"`
	Vel    Vec2  `json:"vel" msgpack:"vel"`
	Health uint8 `json:"health" msgpack:"health"`
}

// Snapshot is the per-tick world document. Map keys are decimal ids; bullet
// key "0" holds demon volleys.
type Snapshot struct {
	Players map[string]PlayerView   `json:"players" msgpack:"players"`
	Bullets map[string][]BulletView `json:"bullets" msgpack:"bullets"`
	Demon   DemonView               `json:"demon" msgpack:"demon"`
}

// SnapshotFromSim projects a simulation snapshot onto the wire document.
func SnapshotFromSim(snap sim.Snapshot) Snapshot {
	out := Snapshot{
		Players: make(map[string]PlayerView, len(snap.Players)),
		Bullets: make(map[string][]BulletView, len(snap.Bullets)),
		Demon: DemonView{
			Pos:    VecFrom(snap.Demon.Pos),
			Vel:    VecFrom(snap.Demon.Vel),
			Health: snap.Demon.Health,
		},
	}
	for _, p := range snap.Players {
		out.Players[idKey(p.ID)] = PlayerView{
			Pos:       VecFrom(p.Pos),
			Anchor:    VecFrom(p.Anchor),
			Name:      p.Name,
			Angle:     p.Angle,
			Health:    p.Health,
			Score:     p.Score,
			Shooting:  p.Shooting,
			Shielding: p.Shielding,
		}
	}
	for _, group := range snap.Bullets {
		views := make([]BulletView, len(group.Bullets))
		for i, b := range group.Bullets {
			views[i] = BulletView{Pos: VecFrom(b.Pos), Vel: VecFrom(b.Vel)}
		}
		out.Bullets[idKey(group.Owner)] = views
	}
	return out
}

func idKey(id sim.SessionID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Encode renders payload in the requested encoding.
func Encode(enc Encoding, payload any) ([]byte, error) {
	switch enc {
	case EncodingMsgpack:
		data, err := msgpack.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode msgpack: %w", err)
		}
		return data, nil
	case EncodingJSON, "":
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("proto: unsupported encoding %q", enc)
	}
}

// ClientMessage captures an inbound frame. Exactly one field is set after a
// successful decode.
type ClientMessage struct {
	Name   *string  `json:"Name,omitempty" msgpack:"Name,omitempty" jsonschema:"oneof_required=name"`
	Angle  *float64 `json:"Angle,omitempty" msgpack:"Angle,omitempty" jsonschema:"oneof_required=angle"`
	Shoot  *bool    `json:"Shoot,omitempty" msgpack:"Shoot,omitempty" jsonschema:"oneof_required=shoot"`
	Shield *bool    `json:"Shield,omitempty" msgpack:"Shield,omitempty" jsonschema:"oneof_required=shield"`
}

// Kind returns the discriminant that is set, or "".
func (m ClientMessage) Kind() string {
	switch {
	case m.Name != nil:
		return KeyName
	case m.Angle != nil:
		return KeyAngle
	case m.Shoot != nil:
		return KeyShoot
	case m.Shield != nil:
		return KeyShield
	default:
		return ""
	}
}

// DecodeClientMessage parses a frame in the given encoding. Unknown keys are
// ignored; zero or several known keys, or a wrongly typed value, yield
// ErrMalformed.
func DecodeClientMessage(enc Encoding, payload []byte) (ClientMessage, error) {
	switch enc {
	case EncodingMsgpack:
		var fields map[string]msgpack.RawMessage
		if err := msgpack.Unmarshal(payload, &fields); err != nil {
			return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return decodeFields(fields, func(raw msgpack.RawMessage, dst any) error {
			return msgpack.Unmarshal(raw, dst)
		})
	default:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return decodeFields(fields, func(raw json.RawMessage, dst any) error {
			if string(raw) == "null" {
				return errors.New("null value")
			}
			return json.Unmarshal(raw, dst)
		})
	}
}

func decodeFields[R any](fields map[string]R, unmarshal func(R, any) error) (ClientMessage, error) {
	var msg ClientMessage
	found := ""
	for _, key := range []string{KeyName, KeyAngle, KeyShoot, KeyShield} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if found != "" {
			return ClientMessage{}, fmt.Errorf("%w: both %s and %s set", ErrMalformed, found, key)
		}
		found = key
		var err error
		switch key {
		case KeyName:
			var v string
			err = unmarshal(raw, &v)
			msg.Name = &v
		case KeyAngle:
			var v float64
			err = unmarshal(raw, &v)
			msg.Angle = &v
		case KeyShoot:
			var v bool
			err = unmarshal(raw, &v)
			msg.Shoot = &v
		case KeyShield:
			var v bool
			err = unmarshal(raw, &v)
			msg.Shield = &v
		}
		if err != nil {
			return ClientMessage{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
	}
	if found == "" {
		return ClientMessage{}, fmt.Errorf("%w: no command key", ErrMalformed)
	}
	return msg, nil
}

// ClientCommand converts a decoded message into an unattributed simulation
// command. Origin metadata is filled in by intake.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch {
	case msg.Name != nil:
		return sim.Command{Type: sim.CommandName, Name: *msg.Name}, true
	case msg.Angle != nil:
		if math.IsNaN(*msg.Angle) || math.IsInf(*msg.Angle, 0) {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandAngle, Angle: *msg.Angle}, true
	case msg.Shoot != nil:
		return sim.Command{Type: sim.CommandShoot, Enabled: *msg.Shoot}, true
	case msg.Shield != nil:
		return sim.Command{Type: sim.CommandShield, Enabled: *msg.Shield}, true
	default:
		return sim.Command{}, false
	}
}
