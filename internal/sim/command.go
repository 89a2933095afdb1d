package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandName   CommandType = "Name"
	CommandAngle  CommandType = "Angle"
	CommandShoot  CommandType = "Shoot"
	CommandShield CommandType = "Shield"
	// CommandDisconnect is staged by the hub, never by clients.
	CommandDisconnect CommandType = "Disconnect"
)

// Valid reports whether t is a known command type.
func (t CommandType) Valid() bool {
	switch t {
	case CommandName, CommandAngle, CommandShoot, CommandShield, CommandDisconnect:
		return true
	default:
		return false
	}
}

// Command represents an intent captured for processing on the next tick.
// Only the payload field matching Type is meaningful.
type Command struct {
	OriginTick uint64      `json:"originTick"`
	ActorID    SessionID   `json:"actorId"`
	Type       CommandType `json:"type"`
	IssuedAt   time.Time   `json:"issuedAt"`
	Name       string      `json:"name,omitempty"`
	Angle      float64     `json:"angle,omitempty"`
	Enabled    bool        `json:"enabled,omitempty"`
}
