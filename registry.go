package server

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"

	"swingy/server/internal/sim"
)

// maxSessionID keeps identities within the integer range a JavaScript client
// can represent exactly.
const maxSessionID = 1<<53 - 1

type session struct {
	id       sim.SessionID
	sink     Sink
	remote   string
	joinedAt time.Time
}

type registeredSink struct {
	id   sim.SessionID
	sink Sink
}

// Registry tracks live sessions and their outbound sinks. It holds no
// gameplay state.
type Registry struct {
	mu       deadlock.RWMutex
	sessions map[sim.SessionID]*session
	rng      *rand.Rand
}

// NewRegistry creates an empty registry drawing identities from rng. A nil
// rng is seeded from the wall clock.
func NewRegistry(rng *rand.Rand) *Registry {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	return &Registry{
		sessions: make(map[sim.SessionID]*session),
		rng:      rng,
	}
}

// Register stores sink under a fresh identity that is non-zero and unused.
// greet, when set, runs before the lock is released so its frames precede
// any broadcast the session can observe.
func (r *Registry) Register(sink Sink, remote string, now time.Time, greet func(sim.SessionID)) sim.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var id sim.SessionID
	for {
		id = sim.SessionID(r.rng.Uint64N(maxSessionID) + 1)
		if _, taken := r.sessions[id]; !taken {
			break
		}
	}
	r.sessions[id] = &session{id: id, sink: sink, remote: remote, joinedAt: now}
	if greet != nil {
		greet(id)
	}
	return id
}

// Unregister removes id and reports whether it was present.
func (r *Registry) Unregister(id sim.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Has reports whether id is a live session.
func (r *Registry) Has(id sim.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// sinks copies the live sinks in ascending id order so sends happen outside
// the lock.
func (r *Registry) sinks() []registeredSink {
	r.mu.RLock()
	out := make([]registeredSink, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, registeredSink{id: id, sink: s.sink})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// sessionInfo is the diagnostics view of one session.
type sessionInfo struct {
	ID       string `json:"id"`
	Remote   string `json:"remote,omitempty"`
	Encoding string `json:"encoding"`
	JoinedAt int64  `json:"joinedAt"`
}

func (r *Registry) describe() []sessionInfo {
	r.mu.RLock()
	out := make([]sessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, sessionInfo{
			ID:       sessionKey(s.id),
			Remote:   s.remote,
			Encoding: string(s.sink.Encoding()),
			JoinedAt: s.joinedAt.UnixMilli(),
		})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
