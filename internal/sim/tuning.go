package sim

import "time"

// Tuning gathers every balance and physics constant the engine consumes.
// Distances are playfield units, velocities are units per tick.
type Tuning struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// RegenEvery is the tick cadence for +1 health on the demon and players.
	RegenEvery uint64 `json:"regenEvery"`

	DemonStart      Vec2    `json:"demonStart"`
	DemonVelocity   Vec2    `json:"demonVelocity"`
	DemonHalfWidth  float64 `json:"demonHalfWidth"`
	DemonHalfHeight float64 `json:"demonHalfHeight"`
	VolleyEvery     uint64  `json:"volleyEvery"`
	VolleyCount     int     `json:"volleyCount"`
	VolleySpeed     float64 `json:"volleySpeed"`

	SpawnAnchorOffset float64 `json:"spawnAnchorOffset"`
	RestLength        float64 `json:"restLength"`
	SpringGain        float64 `json:"springGain"`
	PlayerGravity     float64 `json:"playerGravity"`
	PlayerDamping     float64 `json:"playerDamping"`
	ShieldRadius      float64 `json:"shieldRadius"`
	ReleaseRadius     float64 `json:"releaseRadius"`
	PlayerHitRadius   float64 `json:"playerHitRadius"`
	MuzzleSpeed       float64 `json:"muzzleSpeed"`
	RecoilScale       float64 `json:"recoilScale"`

	ShieldCooldown time.Duration `json:"shieldCooldown"`
	ShotCooldown   time.Duration `json:"shotCooldown"`

	BulletGravity  float64       `json:"bulletGravity"`
	BulletDamping  float64       `json:"bulletDamping"`
	BulletLifetime time.Duration `json:"bulletLifetime"`
	HitPenalty     time.Duration `json:"hitPenalty"`

	BulletDemonDamage         uint8 `json:"bulletDemonDamage"`
	DemonBulletDamage         uint8 `json:"demonBulletDamage"`
	DemonBulletDamageShielded uint8 `json:"demonBulletDamageShielded"`
	MeleePlayerDamage         uint8 `json:"meleePlayerDamage"`
	MeleePlayerDamageShielded uint8 `json:"meleePlayerDamageShielded"`
	MeleeDemonDamage          uint8 `json:"meleeDemonDamage"`
	MeleeDemonDamageShielded  uint8 `json:"meleeDemonDamageShielded"`
}

// DefaultTuning returns the balance used by the live server.
func DefaultTuning() Tuning {
	const width, height = 2000.0, 500.0
	return Tuning{
		Width:      width,
		Height:     height,
		RegenEvery: 3,

		DemonStart:      Vec2{X: 50, Y: height / 2},
		DemonVelocity:   Vec2{X: 1, Y: 0},
		DemonHalfWidth:  25,
		DemonHalfHeight: 50,
		VolleyEvery:     100,
		VolleyCount:     30,
		VolleySpeed:     5,

		SpawnAnchorOffset: 250,
		RestLength:        200,
		SpringGain:        0.004,
		PlayerGravity:     0.2,
		PlayerDamping:     0.99,
		ShieldRadius:      200,
		ReleaseRadius:     400,
		PlayerHitRadius:   20,
		MuzzleSpeed:       8,
		RecoilScale:       1,

		ShieldCooldown: 400 * time.Millisecond,
		ShotCooldown:   500 * time.Millisecond,

		BulletGravity:  0.05,
		BulletDamping:  0.999,
		BulletLifetime: 2000 * time.Millisecond,
		HitPenalty:     2 * time.Second,

		BulletDemonDamage:         20,
		DemonBulletDamage:         30,
		DemonBulletDamageShielded: 10,
		MeleePlayerDamage:         3,
		MeleePlayerDamageShielded: 1,
		MeleeDemonDamage:          2,
		MeleeDemonDamageShielded:  1,
	}
}

// Spawn is the fixed player spawn point at the centre of the playfield.
func (t Tuning) Spawn() Vec2 {
	return Vec2{X: t.Width / 2, Y: t.Height / 2}
}

// Normalized returns a copy with unusable values replaced so the engine never
// divides by zero or keeps a hit bullet alive.
func (t Tuning) Normalized() Tuning {
	defaults := DefaultTuning()
	n := t
	if n.Width <= 0 || n.Height <= 0 {
		n.Width, n.Height = defaults.Width, defaults.Height
	}
	if n.RegenEvery == 0 {
		n.RegenEvery = defaults.RegenEvery
	}
	if n.VolleyCount < 0 {
		n.VolleyCount = 0
	}
	if n.BulletLifetime <= 0 {
		n.BulletLifetime = defaults.BulletLifetime
	}
	if n.HitPenalty < n.BulletLifetime {
		n.HitPenalty = n.BulletLifetime
	}
	if n.ShieldCooldown < 0 {
		n.ShieldCooldown = 0
	}
	if n.ShotCooldown < 0 {
		n.ShotCooldown = 0
	}
	if n.MeleePlayerDamageShielded >= n.MeleePlayerDamage && n.MeleePlayerDamage > 0 {
		n.MeleePlayerDamageShielded = n.MeleePlayerDamage - 1
	}
	if n.MeleeDemonDamageShielded >= n.MeleeDemonDamage && n.MeleeDemonDamage > 0 {
		n.MeleeDemonDamageShielded = n.MeleeDemonDamage - 1
	}
	if n.DemonBulletDamageShielded > n.DemonBulletDamage {
		n.DemonBulletDamageShielded = n.DemonBulletDamage
	}
	return n
}
