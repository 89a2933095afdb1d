package sim

import (
	"context"
	"sort"
	"strconv"
	"time"

	"swingy/server/logging"
	"swingy/server/logging/lifecycle"
)

// SessionID identifies a connected session and the player it controls.
type SessionID uint64

// DemonOwner is the bullet group key reserved for demon volleys.
const DemonOwner SessionID = 0

// Player is the simulated avatar of one session.
type Player struct {
	ID         SessionID
	Name       string
	Pos        Vec2
	Vel        Vec2
	Anchor     Vec2
	Angle      float64
	Health     uint8
	Shielding  bool
	Shooting   bool
	Score      uint64
	LastShield time.Time
	LastShot   time.Time
}

// Demon is the shared boss. It always exists.
type Demon struct {
	Pos    Vec2
	Vel    Vec2
	Health uint8
}

// Bullet is a single projectile. Born drives lifetime reaping.
type Bullet struct {
	Pos  Vec2
	Vel  Vec2
	Born time.Time
}

// Age reports how long the bullet has been alive at now.
func (b Bullet) Age(now time.Time) time.Duration {
	return now.Sub(b.Born)
}

// RemovalReason describes why a player left the world.
type RemovalReason string

const (
	RemovalDied         RemovalReason = "died"
	RemovalDisconnected RemovalReason = "disconnected"
)

// Removal records a player identity that must be announced as gone.
type Removal struct {
	ID     SessionID
	Reason RemovalReason
}

// World owns all gameplay state. It is not safe for concurrent use; the
// loop goroutine is its only writer.
type World struct {
	tuning  Tuning
	deps    Deps
	tick    uint64
	now     time.Time
	players map[SessionID]*Player
	bullets map[SessionID][]Bullet
	demon   Demon
	removed []Removal
}

// NewWorld builds an empty arena with the demon at its start position.
func NewWorld(tuning Tuning, deps Deps) *World {
	tuning = tuning.Normalized()
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	return &World{
		tuning:  tuning,
		deps:    deps,
		players: make(map[SessionID]*Player),
		bullets: make(map[SessionID][]Bullet),
		demon: Demon{
			Pos:    tuning.DemonStart,
			Vel:    tuning.DemonVelocity,
			Health: MaxHealth,
		},
	}
}

// Deps returns the injected infrastructure.
func (w *World) Deps() Deps {
	if w == nil {
		return Deps{}
	}
	return w.deps
}

// Tuning returns the normalized balance in effect.
func (w *World) Tuning() Tuning {
	return w.tuning
}

// Tick reports the number of completed steps.
func (w *World) Tick() uint64 {
	return w.tick
}

// Player returns a copy of the player for id.
func (w *World) Player(id SessionID) (Player, bool) {
	p, ok := w.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Demon returns a copy of the boss state.
func (w *World) Demon() Demon {
	return w.demon
}

// DrainRemovals returns and clears the identities removed since the last call.
func (w *World) DrainRemovals() []Removal {
	if len(w.removed) == 0 {
		return nil
	}
	out := w.removed
	w.removed = nil
	return out
}

func (w *World) spawn(id SessionID, name string, at time.Time) {
	spawn := w.tuning.Spawn()
	w.players[id] = &Player{
		ID:         id,
		Name:       name,
		Pos:        spawn,
		Anchor:     spawn.Sub(Vec2{Y: w.tuning.SpawnAnchorOffset}),
		Health:     MaxHealth,
		LastShield: at,
		LastShot:   at,
	}
	lifecycle.PlayerJoined(context.Background(), w.deps.Publisher, w.tick, playerRef(id), lifecycle.PlayerJoinedPayload{
		Name:   name,
		SpawnX: spawn.X,
		SpawnY: spawn.Y,
	}, nil)
}

func (w *World) disconnect(id SessionID) {
	if p, ok := w.players[id]; ok {
		delete(w.players, id)
		lifecycle.PlayerDisconnected(context.Background(), w.deps.Publisher, w.tick, playerRef(id), lifecycle.PlayerDisconnectedPayload{
			Reason: "disconnect",
			Score:  p.Score,
		}, nil)
	}
	w.removed = append(w.removed, Removal{ID: id, Reason: RemovalDisconnected})
}

func (w *World) playerIDs() []SessionID {
	ids := make([]SessionID, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) bulletOwners() []SessionID {
	owners := make([]SessionID, 0, len(w.bullets))
	for owner := range w.bullets {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

func playerRef(id SessionID) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(uint64(id), 10), Kind: logging.EntityKindPlayer}
}

func demonRef() logging.EntityRef {
	return logging.EntityRef{ID: "demon", Kind: logging.EntityKindDemon}
}
