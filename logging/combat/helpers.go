package combat

import (
	"context"

	"swingy/server/logging"
)

const (
	// EventDamage is emitted when a hit lowers a target's health.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when a hit takes a target to zero health.
	EventDefeat logging.EventType = "combat.defeat"
	// EventKillCredit is emitted when a player is credited with a demon kill.
	EventKillCredit logging.EventType = "combat.kill_credit"
)

// DamagePayload captures the amount dealt to a single target.
type DamagePayload struct {
	Source       string `json:"source"`
	Amount       uint8  `json:"amount"`
	TargetHealth uint8  `json:"targetHealth"`
	Shielded     bool   `json:"shielded,omitempty"`
}

// DefeatPayload describes the context for a fatal blow.
type DefeatPayload struct {
	Source string `json:"source"`
}

// KillCreditPayload carries the credited player's new score.
type KillCreditPayload struct {
	Score uint64 `json:"score"`
}

// Damage publishes a debug event for a single hit. Melee contact produces
// one per tick, so it stays below the default severity.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DamagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDamage,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// Defeat publishes a combat defeat event for the eliminated target.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DefeatPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventDefeat,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// KillCredit publishes a score award.
func KillCredit(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload KillCreditPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventKillCredit,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
