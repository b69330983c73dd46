package block

import (
	"testing"

	"github.com/orionz/cambriamerge/internal/backend"
)

func TestKeyReturnsActorAndSeq(t *testing.T) {
	b := Block{
		Schema: "project-v1",
		Change: backend.Change{Actor: "alice", Seq: 3},
	}
	actor, seq := b.Key()
	if actor != "alice" || seq != 3 {
		t.Errorf("got (%s, %d), want (alice, 3)", actor, seq)
	}
}
