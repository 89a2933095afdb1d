package sim

import (
	"context"
	"math"
	"time"

	"swingy/server/logging/lifecycle"
)

// springEpsilon guards the spring normalisation against a zero-length offset.
const springEpsilon = 1e-9

// Step advances the world by one tick at now.
func (w *World) Step(now time.Time) {
	w.tick++
	w.now = now
	regen := w.tick%w.tuning.RegenEvery == 0

	w.stepDemon(now, regen)
	for _, id := range w.playerIDs() {
		w.stepPlayer(now, w.players[id], regen)
	}
	w.stepBullets(now)
	w.reapPlayers()
}

func (w *World) stepDemon(now time.Time, regen bool) {
	t := w.tuning
	d := &w.demon
	if d.Health == 0 {
		d.Pos = t.DemonStart
		d.Health = MaxHealth
		lifecycle.DemonRespawned(context.Background(), w.deps.Publisher, w.tick, demonRef(), lifecycle.DemonRespawnedPayload{
			X: d.Pos.X,
			Y: d.Pos.Y,
		}, nil)
	}
	if regen {
		d.Health = addHealth(d.Health, 1)
	}
	if t.VolleyEvery > 0 && w.tick%t.VolleyEvery == 0 {
		w.fireVolley(now)
	}
	d.Pos = d.Pos.Add(d.Vel)
	d.Pos, d.Vel = bounce(d.Pos, d.Vel, t.Width, t.Height)
}

// fireVolley spreads VolleyCount bullets over the half circle behind the
// demon's direction of travel.
func (w *World) fireVolley(now time.Time) {
	t := w.tuning
	if t.VolleyCount == 0 {
		return
	}
	d := w.demon
	heading := math.Atan2(d.Vel.Y, d.Vel.X)
	group := w.bullets[DemonOwner]
	for i := 0; i < t.VolleyCount; i++ {
		angle := heading + math.Pi/2 + math.Pi*(float64(i)+0.5)/float64(t.VolleyCount)
		group = append(group, Bullet{
			Pos:  d.Pos,
			Vel:  FromAngle(angle).Scale(t.VolleySpeed),
			Born: now,
		})
	}
	w.bullets[DemonOwner] = group
}

func (w *World) stepPlayer(now time.Time, p *Player, regen bool) {
	t := w.tuning

	d := p.Anchor.Sub(p.Pos).Sub(p.Vel)
	if l := d.Len(); l > springEpsilon {
		p.Vel = p.Vel.Add(d.Scale((l - t.RestLength) / l * t.SpringGain))
	}
	p.Vel.Y += t.PlayerGravity
	p.Vel = p.Vel.Scale(t.PlayerDamping)
	p.Pos = p.Pos.Add(p.Vel)
	p.Pos, p.Vel = bounce(p.Pos, p.Vel, t.Width, t.Height)

	if regen {
		p.Health = addHealth(p.Health, 1)
	}

	facing := FromAngle(p.Angle)
	if p.Shielding {
		p.Anchor = p.Pos.Add(facing.Scale(t.ShieldRadius))
	}

	w.melee(p)

	if p.Health > 0 && p.Shooting && now.Sub(p.LastShot) > t.ShotCooldown {
		muzzle := facing.Scale(t.MuzzleSpeed)
		w.bullets[p.ID] = append(w.bullets[p.ID], Bullet{Pos: p.Pos, Vel: muzzle, Born: now})
		p.Vel = p.Vel.Sub(muzzle.Scale(t.RecoilScale))
		p.LastShot = now
	}
}

func (w *World) stepBullets(now time.Time) {
	t := w.tuning
	for _, owner := range w.bulletOwners() {
		group := w.bullets[owner]
		kept := group[:0]
		for _, b := range group {
			b.Vel.Y += t.BulletGravity
			b.Vel = b.Vel.Scale(t.BulletDamping)
			b.Pos = b.Pos.Add(b.Vel)
			b.Pos, b.Vel = bounce(b.Pos, b.Vel, t.Width, t.Height)

			if owner == DemonOwner {
				w.demonBulletHit(&b)
			} else {
				w.playerBulletHit(owner, &b)
			}
			if b.Age(now) < t.BulletLifetime {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(w.bullets, owner)
			continue
		}
		w.bullets[owner] = kept
	}
}

func (w *World) reapPlayers() {
	for _, id := range w.playerIDs() {
		p := w.players[id]
		if p.Health > 0 {
			continue
		}
		delete(w.players, id)
		w.removed = append(w.removed, Removal{ID: id, Reason: RemovalDied})
		lifecycle.PlayerDied(context.Background(), w.deps.Publisher, w.tick, playerRef(id), lifecycle.PlayerDiedPayload{
			Score: p.Score,
		}, nil)
	}
}

// bounce clamps pos into [0,width]x[0,height], negating the velocity
// component of every crossed edge.
func bounce(pos, vel Vec2, width, height float64) (Vec2, Vec2) {
	if pos.X > width {
		pos.X = width
		vel.X = -vel.X
	} else if pos.X < 0 {
		pos.X = 0
		vel.X = -vel.X
	}
	if pos.Y > height {
		pos.Y = height
		vel.Y = -vel.Y
	} else if pos.Y < 0 {
		pos.Y = 0
		vel.Y = -vel.Y
	}
	return pos, vel
}
