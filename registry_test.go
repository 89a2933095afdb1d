package server

import (
	"math/rand/v2"
	"testing"
	"time"

	"swingy/server/internal/net/proto"
	"swingy/server/internal/sim"
)

func TestRegistryIdentitiesInRange(t *testing.T) {
	reg := NewRegistry(rand.New(rand.NewPCG(7, 11)))
	now := time.UnixMilli(1_000)
	for i := 0; i < 500; i++ {
		id := reg.Register(newFakeSink(proto.EncodingJSON), "", now, nil)
		if id == 0 || uint64(id) > maxSessionID {
			t.Fatalf("identity %d out of range", id)
		}
	}
	if reg.Len() != 500 {
		t.Fatalf("expected 500 sessions, got %d", reg.Len())
	}
}

func TestRegistryGreetRunsBeforeVisible(t *testing.T) {
	reg := NewRegistry(nil)
	var greeted sim.SessionID
	id := reg.Register(newFakeSink(proto.EncodingJSON), "", time.Now(), func(id sim.SessionID) {
		greeted = id
		if got := len(reg.sessions); got != 1 {
			t.Errorf("expected session stored before greet, got %d", got)
		}
	})
	if greeted != id {
		t.Fatalf("expected greet with %d, got %d", id, greeted)
	}
}

func TestRegistryUnregisterAndOrder(t *testing.T) {
	reg := NewRegistry(rand.New(rand.NewPCG(1, 2)))
	now := time.UnixMilli(5_000)
	a := reg.Register(newFakeSink(proto.EncodingJSON), "10.0.0.1:1", now, nil)
	b := reg.Register(newFakeSink(proto.EncodingMsgpack), "10.0.0.2:2", now, nil)

	sinks := reg.sinks()
	if len(sinks) != 2 || sinks[0].id > sinks[1].id {
		t.Fatalf("expected ascending sinks, got %+v", sinks)
	}
	if infos := reg.describe(); len(infos) != 2 || infos[0].JoinedAt != 5_000 {
		t.Fatalf("unexpected session info %+v", infos)
	}

	if !reg.Unregister(a) {
		t.Fatalf("expected first unregister to report presence")
	}
	if reg.Unregister(a) {
		t.Fatalf("expected second unregister to be a no-op")
	}
	if reg.Has(a) || !reg.Has(b) {
		t.Fatalf("unexpected membership after unregister")
	}
}
