package sim

import (
	"errors"
	"fmt"
	"time"
)

// Apply mutates the world with staged commands in order. Cooldowns compare
// against each command's IssuedAt, falling back to now when unset.
func (w *World) Apply(now time.Time, cmds []Command) error {
	var errs []error
	for _, cmd := range cmds {
		if err := w.apply(now, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World) apply(now time.Time, cmd Command) error {
	if !cmd.Type.Valid() {
		return fmt.Errorf("sim: unknown command type %q from %d", cmd.Type, cmd.ActorID)
	}
	at := cmd.IssuedAt
	if at.IsZero() {
		at = now
	}
	if cmd.Type == CommandDisconnect {
		w.disconnect(cmd.ActorID)
		return nil
	}

	p, ok := w.players[cmd.ActorID]
	if !ok {
		if cmd.Type == CommandName && cmd.ActorID != DemonOwner {
			w.spawn(cmd.ActorID, cmd.Name, at)
		}
		return nil
	}

	switch cmd.Type {
	case CommandAngle:
		p.Angle = cmd.Angle
	case CommandShoot:
		p.Shooting = cmd.Enabled
	case CommandShield:
		w.applyShield(p, cmd.Enabled, at)
	}
	return nil
}

func (w *World) applyShield(p *Player, enabled bool, at time.Time) {
	if !enabled && p.Shielding {
		p.Anchor = p.Pos.Add(FromAngle(p.Angle).Scale(w.tuning.ReleaseRadius))
		p.LastShield = at
		p.Shielding = false
		return
	}
	if at.Sub(p.LastShield) > w.tuning.ShieldCooldown {
		p.Shielding = enabled
	}
}
