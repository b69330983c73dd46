package shadow

import (
	"testing"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/ids"
)

func TestApplyChangesFoldsClockAndElem(t *testing.T) {
	in := New("project-v1")
	listID := "list-1"

	_, err := in.ApplyChanges([]backend.Change{{
		Actor: "alice",
		Seq:   1,
		Ops: []backend.Op{
			{Action: backend.OpMakeList, Obj: listID},
			{Action: backend.OpLink, Obj: ids.RootID, Key: "tags", Value: listID},
			{Action: backend.OpIns, Obj: listID, Key: "_head", Elem: 1},
			{Action: backend.OpSet, Obj: listID, Key: "alice:1", Value: "fun"},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}

	if in.Clock.Get("alice") != 1 {
		t.Errorf("expected Clock[alice]=1, got %d", in.Clock.Get("alice"))
	}
	if in.Deps.Get("alice") != 1 {
		t.Errorf("expected Deps[alice]=1, got %d", in.Deps.Get("alice"))
	}
	if in.Elem.Get("alice") != 1 {
		t.Errorf("expected Elem[alice]=1, got %d", in.Elem.Get("alice"))
	}
	if in.NextElem("alice") != 2 {
		t.Errorf("expected NextElem(alice)=2, got %d", in.NextElem("alice"))
	}
}

func TestCloneIsIndependent(t *testing.T) {
	in := New("project-v1")
	if _, err := in.ApplyChanges([]backend.Change{{
		Actor: "alice",
		Seq:   1,
		Ops:   []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "x", Value: 1}},
	}}); err != nil {
		t.Fatal(err)
	}

	clone := in.Clone()
	if _, err := clone.ApplyChanges([]backend.Change{{
		Actor: "bob",
		Seq:   1,
		Ops:   []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "y", Value: 2}},
	}}); err != nil {
		t.Fatal(err)
	}

	if in.Clock.Get("bob") != 0 {
		t.Errorf("expected original instance untouched by clone's later change, got bob=%d", in.Clock.Get("bob"))
	}
	if _, ok := in.State.MapValue(ids.RootID, "y"); ok {
		t.Errorf("expected original state to not see clone's write")
	}
}

func TestMissingDepsReturnsOnlyUncoveredActors(t *testing.T) {
	in := New("project-v1")
	if _, err := in.ApplyChanges([]backend.Change{
		{Actor: "alice", Seq: 1, Ops: []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "x", Value: 1}}},
		{Actor: "bob", Seq: 1, Ops: []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "y", Value: 2}}},
		{Actor: "bob", Seq: 2, Ops: []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "y", Value: 3}}},
	}); err != nil {
		t.Fatal(err)
	}

	have := in.Deps.Clone()
	have.Set("bob", 1)
	have.Set("carol", 5)

	missing := in.MissingDeps(have)
	if _, ok := missing["alice"]; ok {
		t.Errorf("expected alice absent from missing, since have already covers deps, got %d", missing.Get("alice"))
	}
	if missing.Get("bob") != 2 {
		t.Errorf("expected missing bob=2, got %d", missing.Get("bob"))
	}
	if _, ok := missing["carol"]; ok {
		t.Errorf("expected carol absent from missing, since have already exceeds deps")
	}
}
