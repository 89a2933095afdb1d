package sim

import (
	"context"

	"swingy/server/logging/combat"
)

const (
	sourceMelee       = "melee"
	sourceDemonBullet = "demon_bullet"
	sourcePlayerShot  = "player_bullet"
)

func (w *World) inDemonHitbox(pos Vec2) bool {
	d := w.demon.Pos
	return pos.X < d.X+w.tuning.DemonHalfWidth &&
		pos.X > d.X-w.tuning.DemonHalfWidth &&
		pos.Y < d.Y+w.tuning.DemonHalfHeight &&
		pos.Y > d.Y-w.tuning.DemonHalfHeight
}

// melee trades damage between a player touching the demon and the demon.
func (w *World) melee(p *Player) {
	if !w.inDemonHitbox(p.Pos) {
		return
	}
	t := w.tuning
	toPlayer, toDemon := t.MeleePlayerDamage, t.MeleeDemonDamage
	if p.Shielding {
		toPlayer, toDemon = t.MeleePlayerDamageShielded, t.MeleeDemonDamageShielded
	}
	p.Health = subHealth(p.Health, toPlayer)
	w.demon.Health = subHealth(w.demon.Health, toDemon)

	ctx := context.Background()
	combat.Damage(ctx, w.deps.Publisher, w.tick, demonRef(), playerRef(p.ID), combat.DamagePayload{
		Source:       sourceMelee,
		Amount:       toPlayer,
		TargetHealth: p.Health,
		Shielded:     p.Shielding,
	}, nil)
	combat.Damage(ctx, w.deps.Publisher, w.tick, playerRef(p.ID), demonRef(), combat.DamagePayload{
		Source:       sourceMelee,
		Amount:       toDemon,
		TargetHealth: w.demon.Health,
		Shielded:     p.Shielding,
	}, nil)
}

// playerBulletHit resolves a player bullet against the demon. A hit that
// takes a living demon to zero clamps its health and credits the owner.
func (w *World) playerBulletHit(owner SessionID, b *Bullet) {
	if !w.inDemonHitbox(b.Pos) {
		return
	}
	w.expire(b)
	d := &w.demon
	if d.Health == 0 {
		return
	}
	dmg := w.tuning.BulletDemonDamage
	ctx := context.Background()
	if dmg < d.Health {
		d.Health -= dmg
		combat.Damage(ctx, w.deps.Publisher, w.tick, playerRef(owner), demonRef(), combat.DamagePayload{
			Source:       sourcePlayerShot,
			Amount:       dmg,
			TargetHealth: d.Health,
		}, nil)
		return
	}
	d.Health = 0
	combat.Defeat(ctx, w.deps.Publisher, w.tick, playerRef(owner), demonRef(), combat.DefeatPayload{
		Source: sourcePlayerShot,
	}, nil)
	if p, ok := w.players[owner]; ok {
		p.Score++
		combat.KillCredit(ctx, w.deps.Publisher, w.tick, playerRef(owner), combat.KillCreditPayload{
			Score: p.Score,
		}, nil)
	}
}

// demonBulletHit damages the first living player, in id order, within the
// hit radius of b.
func (w *World) demonBulletHit(b *Bullet) {
	radius := w.tuning.PlayerHitRadius
	for _, id := range w.playerIDs() {
		p := w.players[id]
		if p.Health == 0 || p.Pos.Sub(b.Pos).LenSq() > radius*radius {
			continue
		}
		dmg := w.tuning.DemonBulletDamage
		if p.Shielding {
			dmg = w.tuning.DemonBulletDamageShielded
		}
		p.Health = subHealth(p.Health, dmg)
		w.expire(b)
		combat.Damage(context.Background(), w.deps.Publisher, w.tick, demonRef(), playerRef(id), combat.DamagePayload{
			Source:       sourceDemonBullet,
			Amount:       dmg,
			TargetHealth: p.Health,
			Shielded:     p.Shielding,
		}, nil)
		return
	}
}

// expire ages b by the hit penalty so the lifetime check reaps it this tick.
func (w *World) expire(b *Bullet) {
	b.Born = b.Born.Add(-w.tuning.HitPenalty)
}
