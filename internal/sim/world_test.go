package sim

import (
	"context"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"swingy/server/logging"
	"swingy/server/logging/combat"
	"swingy/server/logging/lifecycle"
)

var epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []logging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event logging.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count(eventType logging.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func newTestWorld(t *testing.T) (*World, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewWorld(DefaultTuning(), Deps{Publisher: pub}), pub
}

func join(t *testing.T, w *World, id SessionID, name string, now time.Time) {
	t.Helper()
	if err := w.Apply(now, []Command{{ActorID: id, Type: CommandName, Name: name, IssuedAt: now}}); err != nil {
		t.Fatalf("apply name: %v", err)
	}
	if _, ok := w.Player(id); !ok {
		t.Fatalf("expected player %d to spawn", id)
	}
}

func TestNameSpawnsPlayerAtCentre(t *testing.T) {
	w, pub := newTestWorld(t)
	join(t, w, 7, "A", at(0))
	w.Step(at(16))

	snap := w.Snapshot()
	if len(snap.Players) != 1 {
		t.Fatalf("expected one player, got %d", len(snap.Players))
	}
	p := snap.Players[0]
	spawn := DefaultTuning().Spawn()
	if p.Name != "A" || p.ID != 7 {
		t.Fatalf("unexpected player identity: %+v", p)
	}
	if p.Pos.Sub(spawn).Len() > 1e-9 {
		t.Fatalf("expected player at spawn %+v, got %+v", spawn, p.Pos)
	}
	if p.Health != MaxHealth || p.Score != 0 || p.Shielding || p.Shooting {
		t.Fatalf("unexpected initial player state: %+v", p)
	}
	if got := pub.count(lifecycle.EventPlayerJoined); got != 1 {
		t.Fatalf("expected one join event, got %d", got)
	}
}

func TestNameIsIgnoredOnceJoinedAndForDemonOwner(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 3, "first", at(0))
	if err := w.Apply(at(1), []Command{
		{ActorID: 3, Type: CommandName, Name: "second"},
		{ActorID: DemonOwner, Type: CommandName, Name: "boss"},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, _ := w.Player(3)
	if p.Name != "first" {
		t.Fatalf("expected name to stay first, got %q", p.Name)
	}
	if _, ok := w.Player(DemonOwner); ok {
		t.Fatalf("expected no player for the demon owner key")
	}
}

func TestCommandsWithoutPlayerAreIgnored(t *testing.T) {
	w, _ := newTestWorld(t)
	err := w.Apply(at(0), []Command{
		{ActorID: 4, Type: CommandAngle, Angle: 1},
		{ActorID: 4, Type: CommandShoot, Enabled: true},
		{ActorID: 4, Type: CommandShield, Enabled: true},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(w.Snapshot().Players) != 0 {
		t.Fatalf("expected no players")
	}
}

func TestApplyReportsUnknownCommandType(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 1, "a", at(0))
	err := w.Apply(at(1), []Command{
		{ActorID: 1, Type: "Teleport"},
		{ActorID: 1, Type: CommandAngle, Angle: 2},
	})
	if err == nil {
		t.Fatalf("expected error for unknown command type")
	}
	if p, _ := w.Player(1); p.Angle != 2 {
		t.Fatalf("expected later commands to still apply, angle=%v", p.Angle)
	}
}

func TestShieldCooldown(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 1, "a", at(0))

	shield := func(ms int, enabled bool) Player {
		t.Helper()
		if err := w.Apply(at(ms), []Command{{ActorID: 1, Type: CommandShield, Enabled: enabled, IssuedAt: at(ms)}}); err != nil {
			t.Fatalf("apply shield: %v", err)
		}
		p, _ := w.Player(1)
		return p
	}

	if p := shield(100, true); p.Shielding {
		t.Fatalf("shield engaged before cooldown elapsed since spawn")
	}
	if p := shield(500, true); !p.Shielding {
		t.Fatalf("expected shield to engage after cooldown")
	}
	p := shield(501, false)
	if p.Shielding {
		t.Fatalf("release must never be blocked")
	}
	want := p.Pos.Add(FromAngle(p.Angle).Scale(DefaultTuning().ReleaseRadius))
	if p.Anchor.Sub(want).Len() > 1e-9 {
		t.Fatalf("expected release anchor %+v, got %+v", want, p.Anchor)
	}
	if !p.LastShield.Equal(at(501)) {
		t.Fatalf("expected release to reset the shield clock")
	}
	if p := shield(800, true); p.Shielding {
		t.Fatalf("shield re-engaged before cooldown")
	}
	if p := shield(902, true); !p.Shielding {
		t.Fatalf("expected shield to re-engage after cooldown")
	}
}

func TestShieldTracksFacing(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 1, "a", at(0))
	w.Apply(at(500), []Command{
		{ActorID: 1, Type: CommandAngle, Angle: math.Pi / 2},
		{ActorID: 1, Type: CommandShield, Enabled: true, IssuedAt: at(500)},
	})
	w.Step(at(516))
	p, _ := w.Player(1)
	want := p.Pos.Add(V(0, DefaultTuning().ShieldRadius))
	if p.Anchor.Sub(want).Len() > 1e-9 {
		t.Fatalf("expected anchor %+v, got %+v", want, p.Anchor)
	}
}

func TestShotRateLimited(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 1, "a", at(0))
	w.Apply(at(0), []Command{{ActorID: 1, Type: CommandShoot, Enabled: true}})

	for k := 1; k <= 31; k++ {
		w.Step(at(16 * k))
	}
	if got := w.Snapshot().BulletCount(1); got != 0 {
		t.Fatalf("expected no bullet before the shot cooldown, got %d", got)
	}
	for k := 32; k <= 63; k++ {
		w.Step(at(16 * k))
	}
	if got := w.Snapshot().BulletCount(1); got != 1 {
		t.Fatalf("expected exactly one bullet within one cooldown window, got %d", got)
	}
	w.Step(at(16 * 64))
	if got := w.Snapshot().BulletCount(1); got != 2 {
		t.Fatalf("expected a second bullet after the cooldown, got %d", got)
	}
}

func TestFiringAppliesRecoil(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 1, "a", at(0))
	w.Apply(at(0), []Command{{ActorID: 1, Type: CommandShoot, Enabled: true}})
	w.players[1].LastShot = at(-1000)

	w.Step(at(16))
	p, _ := w.Player(1)
	if p.Vel.X > -DefaultTuning().MuzzleSpeed+1e-9 {
		t.Fatalf("expected recoil opposite the muzzle, vel=%+v", p.Vel)
	}
	snap := w.Snapshot()
	if snap.BulletCount(1) != 1 {
		t.Fatalf("expected one bullet")
	}
	if !p.LastShot.Equal(at(16)) {
		t.Fatalf("expected shot clock to advance")
	}
}

func TestReflectInvertsOnlyCrossedComponent(t *testing.T) {
	cases := []struct {
		name    string
		pos     Vec2
		vel     Vec2
		wantPos Vec2
		wantVel Vec2
	}{
		{"right", V(2010, 100), V(5, -3), V(2000, 100), V(-5, -3)},
		{"left", V(-1, 100), V(-2, 1), V(0, 100), V(2, 1)},
		{"bottom", V(30, 503), V(1, 4), V(30, 500), V(1, -4)},
		{"top", V(30, -2), V(1, -4), V(30, 0), V(1, 4)},
		{"corner", V(2001, -1), V(3, -3), V(2000, 0), V(-3, 3)},
		{"inside", V(10, 10), V(1, 1), V(10, 10), V(1, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos, vel := bounce(tc.pos, tc.vel, 2000, 500)
			if pos != tc.wantPos || vel != tc.wantVel {
				t.Fatalf("bounce(%+v, %+v) = %+v, %+v", tc.pos, tc.vel, pos, vel)
			}
		})
	}
}

func TestHealthHelpersSaturate(t *testing.T) {
	if got := addHealth(250, 10); got != MaxHealth {
		t.Fatalf("addHealth overflowed: %d", got)
	}
	if got := addHealth(MaxHealth, 1); got != MaxHealth {
		t.Fatalf("addHealth exceeded max: %d", got)
	}
	if got := subHealth(5, 10); got != 0 {
		t.Fatalf("subHealth underflowed: %d", got)
	}
	if got := subHealth(10, 3); got != 7 {
		t.Fatalf("subHealth = %d, want 7", got)
	}
}

func TestRandomPlayStaysInBounds(t *testing.T) {
	w, _ := newTestWorld(t)
	rng := rand.New(rand.NewSource(42))
	for id := SessionID(1); id <= 6; id++ {
		join(t, w, id, "p", at(0))
	}
	tuning := w.Tuning()
	for k := 1; k <= 3000; k++ {
		now := at(16 * k)
		var cmds []Command
		for id := SessionID(1); id <= 6; id++ {
			switch rng.Intn(4) {
			case 0:
				cmds = append(cmds, Command{ActorID: id, Type: CommandAngle, Angle: rng.Float64() * 2 * math.Pi})
			case 1:
				cmds = append(cmds, Command{ActorID: id, Type: CommandShoot, Enabled: rng.Intn(2) == 0})
			case 2:
				cmds = append(cmds, Command{ActorID: id, Type: CommandShield, Enabled: rng.Intn(2) == 0})
			}
		}
		w.Apply(now, cmds)
		w.Step(now)

		snap := w.Snapshot()
		for _, p := range snap.Players {
			if p.Pos.X < 0 || p.Pos.X > tuning.Width || p.Pos.Y < 0 || p.Pos.Y > tuning.Height {
				t.Fatalf("tick %d: player %d out of bounds at %+v", k, p.ID, p.Pos)
			}
		}
		for _, g := range snap.Bullets {
			if len(g.Bullets) == 0 {
				t.Fatalf("tick %d: empty bullet group %d survived", k, g.Owner)
			}
			for _, b := range g.Bullets {
				if b.Pos.X < 0 || b.Pos.X > tuning.Width || b.Pos.Y < 0 || b.Pos.Y > tuning.Height {
					t.Fatalf("tick %d: bullet out of bounds at %+v", k, b.Pos)
				}
			}
		}
		d := snap.Demon
		if d.Pos.X < 0 || d.Pos.X > tuning.Width || d.Pos.Y < 0 || d.Pos.Y > tuning.Height {
			t.Fatalf("tick %d: demon out of bounds at %+v", k, d.Pos)
		}
	}
}

func TestStepIsDeterministic(t *testing.T) {
	run := func() Snapshot {
		w := NewWorld(DefaultTuning(), Deps{})
		for id := SessionID(1); id <= 3; id++ {
			w.Apply(at(0), []Command{{ActorID: id, Type: CommandName, Name: "p"}})
			w.Apply(at(0), []Command{
				{ActorID: id, Type: CommandAngle, Angle: float64(id)},
				{ActorID: id, Type: CommandShoot, Enabled: true},
			})
		}
		for k := 1; k <= 400; k++ {
			w.Step(at(16 * k))
		}
		return w.Snapshot()
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different snapshots")
	}
}

func TestMeleeDeathIsReapedWithNotice(t *testing.T) {
	w, pub := newTestWorld(t)
	join(t, w, 5, "doomed", at(0))
	p := w.players[5]
	p.Pos = w.demon.Pos
	p.Anchor = w.demon.Pos
	p.Health = 2

	w.Step(at(16))
	if _, ok := w.Player(5); ok {
		t.Fatalf("expected dead player to be reaped on the tick it died")
	}
	removed := w.DrainRemovals()
	if len(removed) != 1 || removed[0] != (Removal{ID: 5, Reason: RemovalDied}) {
		t.Fatalf("unexpected removals: %+v", removed)
	}
	if len(w.DrainRemovals()) != 0 {
		t.Fatalf("expected removals to drain")
	}
	if got := w.demon.Health; got != MaxHealth-DefaultTuning().MeleeDemonDamage {
		t.Fatalf("expected demon to take melee damage, health=%d", got)
	}
	if pub.count(lifecycle.EventPlayerDied) != 1 {
		t.Fatalf("expected a player died event")
	}
	w.Step(at(32))
	if _, ok := w.Snapshot().Player(5); ok {
		t.Fatalf("dead player reappeared")
	}
}

func TestPlayerKilledByMeleeDoesNotFire(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 5, "doomed", at(0))
	w.Apply(at(0), []Command{{ActorID: 5, Type: CommandShoot, Enabled: true}})
	p := w.players[5]
	p.Pos = w.demon.Pos
	p.Anchor = w.demon.Pos
	p.Health = 2
	p.LastShot = at(-1000)

	w.Step(at(16))
	if _, ok := w.Player(5); ok {
		t.Fatalf("expected dead player to be reaped")
	}
	if got := w.Snapshot().BulletCount(5); got != 0 {
		t.Fatalf("expected no bullet from a player killed this tick, got %d", got)
	}
	if got := w.demon.Health; got != MaxHealth-DefaultTuning().MeleeDemonDamage {
		t.Fatalf("expected only melee damage on the demon, health=%d", got)
	}
}

func TestShieldReducesMelee(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 5, "tank", at(0))
	p := w.players[5]
	p.Pos = w.demon.Pos
	p.Anchor = w.demon.Pos
	p.Shielding = true

	w.Step(at(16))
	got, _ := w.Player(5)
	tuning := DefaultTuning()
	if got.Health != MaxHealth-tuning.MeleePlayerDamageShielded {
		t.Fatalf("expected shielded melee damage, health=%d", got.Health)
	}
	if w.demon.Health != MaxHealth-tuning.MeleeDemonDamageShielded {
		t.Fatalf("expected shielded demon damage, health=%d", w.demon.Health)
	}
}

func TestDemonBulletDamagesPlayer(t *testing.T) {
	for _, shielded := range []bool{false, true} {
		w, _ := newTestWorld(t)
		join(t, w, 2, "target", at(0))
		p := w.players[2]
		p.Shielding = shielded
		p.Angle = -math.Pi / 2
		p.Anchor = p.Pos.Add(V(0, -w.tuning.ShieldRadius))
		w.bullets[DemonOwner] = []Bullet{{Pos: p.Pos, Born: at(0)}}

		w.Step(at(16))
		got, _ := w.Player(2)
		want := MaxHealth - w.tuning.DemonBulletDamage
		if shielded {
			want = MaxHealth - w.tuning.DemonBulletDamageShielded
		}
		if got.Health != want {
			t.Fatalf("shielded=%v: expected health %d, got %d", shielded, want, got.Health)
		}
		if w.Snapshot().BulletCount(DemonOwner) != 0 {
			t.Fatalf("shielded=%v: expected hitting bullet to be reaped", shielded)
		}
	}
}

func TestForcedExpiryExceedsLifetime(t *testing.T) {
	tuning := DefaultTuning()
	tuning.HitPenalty = tuning.BulletLifetime / 4
	w := NewWorld(tuning, Deps{})
	if w.Tuning().HitPenalty < w.Tuning().BulletLifetime {
		t.Fatalf("expected hit penalty to be raised to the lifetime")
	}
	b := Bullet{Born: at(0)}
	w.expire(&b)
	if b.Age(at(0)) < w.Tuning().BulletLifetime {
		t.Fatalf("forced expiry age %s below lifetime %s", b.Age(at(0)), w.Tuning().BulletLifetime)
	}
}

func TestPlayerBulletHitIsReapedSameTick(t *testing.T) {
	w, _ := newTestWorld(t)
	join(t, w, 3, "gunner", at(0))
	w.bullets[3] = []Bullet{{Pos: w.demon.Pos.Add(w.demon.Vel), Born: at(0)}}

	w.Step(at(16))
	if w.Snapshot().BulletCount(3) != 0 {
		t.Fatalf("expected hitting bullet to be reaped")
	}
	if _, ok := w.bullets[3]; ok {
		t.Fatalf("expected empty bullet group to be dropped")
	}
	if w.demon.Health != MaxHealth-w.tuning.BulletDemonDamage {
		t.Fatalf("expected demon damage, health=%d", w.demon.Health)
	}
}

func TestBulletsExpireAfterLifetime(t *testing.T) {
	w, _ := newTestWorld(t)
	w.bullets[9] = []Bullet{{Pos: V(1500, 100), Born: at(0)}}
	w.Step(at(1999))
	if w.Snapshot().BulletCount(9) != 1 {
		t.Fatalf("expected bullet to live until its lifetime")
	}
	w.Step(at(2000))
	if len(w.Snapshot().Bullets) != 0 {
		t.Fatalf("expected bullet reaped at its lifetime")
	}
}

func TestDemonKillCreditsOwnerAndRespawns(t *testing.T) {
	w, pub := newTestWorld(t)
	join(t, w, 9, "slayer", at(0))
	w.demon.Health = 10
	hit := w.demon.Pos.Add(w.demon.Vel)
	w.bullets[9] = []Bullet{{Pos: hit, Born: at(0)}, {Pos: hit, Born: at(0)}}

	w.Step(at(16))
	if w.demon.Health != 0 {
		t.Fatalf("expected demon health clamped to 0, got %d", w.demon.Health)
	}
	p, _ := w.Player(9)
	if p.Score != 1 {
		t.Fatalf("expected exactly one kill credit, score=%d", p.Score)
	}
	if pub.count(combat.EventKillCredit) != 1 {
		t.Fatalf("expected one kill credit event")
	}

	w.Step(at(32))
	snap := w.Snapshot()
	if snap.Demon.Health != MaxHealth {
		t.Fatalf("expected demon respawned at full health, got %d", snap.Demon.Health)
	}
	want := w.tuning.DemonStart.Add(snap.Demon.Vel)
	if snap.Demon.Pos != want {
		t.Fatalf("expected demon back at start %+v, got %+v", want, snap.Demon.Pos)
	}
	if pub.count(lifecycle.EventDemonRespawned) != 1 {
		t.Fatalf("expected a respawn event")
	}
}

func TestKillCreditSkippedForDepartedOwner(t *testing.T) {
	w, _ := newTestWorld(t)
	w.demon.Health = 1
	w.bullets[12] = []Bullet{{Pos: w.demon.Pos.Add(w.demon.Vel), Born: at(0)}}
	w.Step(at(16))
	if w.demon.Health != 0 {
		t.Fatalf("expected demon killed by orphan bullet")
	}
	if len(w.Snapshot().Players) != 0 {
		t.Fatalf("orphan bullet must not create a player")
	}
}

func TestDemonVolleyFiresBehindHeading(t *testing.T) {
	w, _ := newTestWorld(t)
	for k := 1; k <= int(w.tuning.VolleyEvery); k++ {
		w.Step(at(16 * k))
	}
	snap := w.Snapshot()
	if got := snap.BulletCount(DemonOwner); got != w.tuning.VolleyCount {
		t.Fatalf("expected %d volley bullets, got %d", w.tuning.VolleyCount, got)
	}
	for _, g := range snap.Bullets {
		for _, b := range g.Bullets {
			if b.Vel.X >= 0 {
				t.Fatalf("expected volley away from travel direction, vel=%+v", b.Vel)
			}
		}
	}
}

func TestDemonReflectsAtEdges(t *testing.T) {
	w, _ := newTestWorld(t)
	w.demon.Pos = V(w.tuning.Width-0.5, 250)
	w.Step(at(16))
	if w.demon.Pos.X != w.tuning.Width || w.demon.Vel.X >= 0 {
		t.Fatalf("expected demon to bounce off the right edge: %+v", w.demon)
	}
}

func TestRegenCadence(t *testing.T) {
	w, _ := newTestWorld(t)
	w.demon.Health = 100
	w.Step(at(16))
	w.Step(at(32))
	if w.demon.Health != 100 {
		t.Fatalf("expected no regen before cadence, got %d", w.demon.Health)
	}
	w.Step(at(48))
	if w.demon.Health != 101 {
		t.Fatalf("expected +1 regen on the third tick, got %d", w.demon.Health)
	}
}
