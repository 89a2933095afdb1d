package sim

import "time"

// PlayerState is the externally visible part of a player.
type PlayerState struct {
	ID        SessionID `json:"id"`
	Name      string    `json:"name"`
	Pos       Vec2      `json:"pos"`
	Vel       Vec2      `json:"vel"`
	Anchor    Vec2      `json:"anchor"`
	Angle     float64   `json:"angle"`
	Health    uint8     `json:"health"`
	Score     uint64    `json:"score"`
	Shooting  bool      `json:"shooting"`
	Shielding bool      `json:"shielding"`
}

// BulletState is the externally visible part of a bullet.
type BulletState struct {
	Pos Vec2 `json:"pos"`
	Vel Vec2 `json:"vel"`
}

// BulletGroup holds the live bullets fired by one owner.
type BulletGroup struct {
	Owner   SessionID     `json:"owner"`
	Bullets []BulletState `json:"bullets"`
}

// Snapshot captures the state exposed to non-simulation callers. Players and
// bullet groups are sorted by id.
type Snapshot struct {
	Tick    uint64        `json:"tick"`
	Time    time.Time     `json:"time"`
	Players []PlayerState `json:"players,omitempty"`
	Bullets []BulletGroup `json:"bullets,omitempty"`
	Demon   Demon         `json:"demon"`
}

// Snapshot copies the current world state.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:  w.tick,
		Time:  w.now,
		Demon: w.demon,
	}
	if len(w.players) > 0 {
		snap.Players = make([]PlayerState, 0, len(w.players))
		for _, id := range w.playerIDs() {
			p := w.players[id]
			snap.Players = append(snap.Players, PlayerState{
				ID:        p.ID,
				Name:      p.Name,
				Pos:       p.Pos,
				Vel:       p.Vel,
				Anchor:    p.Anchor,
				Angle:     p.Angle,
				Health:    p.Health,
				Score:     p.Score,
				Shooting:  p.Shooting,
				Shielding: p.Shielding,
			})
		}
	}
	if len(w.bullets) > 0 {
		snap.Bullets = make([]BulletGroup, 0, len(w.bullets))
		for _, owner := range w.bulletOwners() {
			group := w.bullets[owner]
			states := make([]BulletState, len(group))
			for i, b := range group {
				states[i] = BulletState{Pos: b.Pos, Vel: b.Vel}
			}
			snap.Bullets = append(snap.Bullets, BulletGroup{Owner: owner, Bullets: states})
		}
	}
	return snap
}

// Player looks up a player in the snapshot.
func (s Snapshot) Player(id SessionID) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}

// BulletCount reports the number of live bullets owned by owner.
func (s Snapshot) BulletCount(owner SessionID) int {
	for _, g := range s.Bullets {
		if g.Owner == owner {
			return len(g.Bullets)
		}
	}
	return 0
}
