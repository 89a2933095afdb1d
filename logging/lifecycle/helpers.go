package lifecycle

import (
	"context"

	"swingy/server/logging"
)

const (
	// EventSessionRegistered is emitted when a connection is assigned an identity.
	EventSessionRegistered logging.EventType = "lifecycle.session_registered"
	// EventPlayerJoined is emitted when a session spawns its player.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDied is emitted when a player is reaped at zero health.
	EventPlayerDied logging.EventType = "lifecycle.player_died"
	// EventPlayerDisconnected is emitted when a player leaves the world.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventDemonRespawned is emitted when the demon returns at full health.
	EventDemonRespawned logging.EventType = "lifecycle.demon_respawned"
)

// SessionRegisteredPayload captures registry occupancy after a connect.
type SessionRegisteredPayload struct {
	Sessions int    `json:"sessions"`
	Encoding string `json:"encoding,omitempty"`
	Remote   string `json:"remote,omitempty"`
}

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	Name   string  `json:"name"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// PlayerDiedPayload records the final score of a reaped player.
type PlayerDiedPayload struct {
	Score uint64 `json:"score"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
	Score  uint64 `json:"score"`
}

// DemonRespawnedPayload records where the demon reappeared.
type DemonRespawnedPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SessionRegistered publishes a connect event.
func SessionRegistered(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionRegisteredPayload, extra map[string]any) {
	publish(ctx, pub, EventSessionRegistered, tick, actor, payload, extra)
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerJoined, tick, actor, payload, extra)
}

// PlayerDied publishes a player death event.
func PlayerDied(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDiedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerDied, tick, actor, payload, extra)
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerDisconnected, tick, actor, payload, extra)
}

// DemonRespawned publishes a demon respawn event.
func DemonRespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DemonRespawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventDemonRespawned, tick, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
