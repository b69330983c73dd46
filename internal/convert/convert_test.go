package convert

import (
	"reflect"
	"testing"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lens"
	"github.com/orionz/cambriamerge/internal/lensgraph"
	"github.com/orionz/cambriamerge/internal/shadow"
)

func graphWith(t *testing.T, from, to string, l lens.Source) *lensgraph.Graph {
	t.Helper()
	g := lensgraph.New()
	if err := g.Register(lensgraph.Mu, from, lens.Identity()); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(from, to, l); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestChangeRewritesRenamedProperty(t *testing.T) {
	g := graphWith(t, "project-v1", "project-v2", lens.Source{{Kind: lens.KindRename, Old: "name", New: "title"}})

	from := shadow.New("project-v1")
	to := shadow.New("project-v2")

	ch := backend.Change{
		Actor: "alice",
		Seq:   1,
		Ops:   []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "name", Value: "Widget"}},
	}

	got, err := Change(g, from, to, ch)
	if err != nil {
		t.Fatal(err)
	}
	want := []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "title", Value: "Widget"}}
	if !reflect.DeepEqual(got.Ops, want) {
		t.Errorf("got %+v want %+v", got.Ops, want)
	}
	if got.Actor != "alice" || got.Seq != 1 {
		t.Errorf("expected actor/seq preserved, got %+v", got)
	}

	// The source shadow must be untouched by the conversion.
	if _, ok := from.State.MapValue(ids.RootID, "name"); ok {
		t.Errorf("expected from-shadow untouched by conversion")
	}
}

func TestChangeWrapsScalarIntoSingletonList(t *testing.T) {
	g := graphWith(t, "task-v1", "task-v2", lens.Source{{Kind: lens.KindWrap, Name: "assignee"}})

	from := shadow.New("task-v1")
	to := shadow.New("task-v2")

	ch := backend.Change{
		Actor: "alice",
		Seq:   1,
		Ops:   []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "assignee", Value: "bob"}},
	}

	got, err := Change(g, from, to, ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Ops) != 4 {
		t.Fatalf("expected 4 ops (makeList, link, ins, set), got %d: %+v", len(got.Ops), got.Ops)
	}
	if got.Ops[0].Action != backend.OpMakeList {
		t.Errorf("expected first op makeList, got %s", got.Ops[0].Action)
	}
	listID := got.Ops[0].Obj
	wantRest := []backend.Op{
		{Action: backend.OpLink, Obj: ids.RootID, Key: "assignee", Value: listID},
		{Action: backend.OpIns, Obj: listID, Key: "_head", Elem: 1},
		{Action: backend.OpSet, Obj: listID, Key: "alice:1", Value: "bob"},
	}
	if !reflect.DeepEqual(got.Ops[1:], wantRest) {
		t.Errorf("got %+v want %+v", got.Ops[1:], wantRest)
	}
}

func TestChangeSameSchemaIsIdentity(t *testing.T) {
	g := lensgraph.New()
	if err := g.Register(lensgraph.Mu, "task-v1", lens.Identity()); err != nil {
		t.Fatal(err)
	}
	from := shadow.New("task-v1")
	to := shadow.New("task-v1")

	ch := backend.Change{
		Actor: "alice",
		Seq:   1,
		Ops:   []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "title", Value: "hi"}},
	}
	got, err := Change(g, from, to, ch)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Ops, ch.Ops) {
		t.Errorf("expected identity conversion to preserve ops, got %+v", got.Ops)
	}
}
