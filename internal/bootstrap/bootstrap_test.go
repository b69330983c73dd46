package bootstrap

import (
	"reflect"
	"testing"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lens"
	"github.com/orionz/cambriamerge/internal/lensgraph"
)

func TestChangeMaterializesScalarDefault(t *testing.T) {
	g := lensgraph.New()
	if err := g.Register(lensgraph.Mu, "project-v1", lens.Source{
		{Kind: lens.KindAdd, Name: "status", Default: "todo"},
	}); err != nil {
		t.Fatal(err)
	}

	ch, err := Change(g, "project-v1")
	if err != nil {
		t.Fatal(err)
	}

	if ch.Actor != ids.PhantomActor || ch.Seq != ids.PhantomSeq {
		t.Errorf("expected phantom actor/seq, got %+v", ch)
	}
	if len(ch.Deps) != 0 {
		t.Errorf("expected empty deps, got %+v", ch.Deps)
	}
	want := []backend.Op{{Action: backend.OpSet, Obj: ids.RootID, Key: "status", Value: "todo"}}
	if !reflect.DeepEqual(ch.Ops, want) {
		t.Errorf("got %+v want %+v", ch.Ops, want)
	}
}

func TestChangeWithNoDefaultsIsEmpty(t *testing.T) {
	g := lensgraph.New()
	if err := g.Register(lensgraph.Mu, "bare-v1", lens.Identity()); err != nil {
		t.Fatal(err)
	}
	ch, err := Change(g, "bare-v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ch.Ops) != 0 {
		t.Errorf("expected no ops, got %+v", ch.Ops)
	}
}

func TestChangeUnknownSchemaIsAnError(t *testing.T) {
	g := lensgraph.New()
	if _, err := Change(g, "nope"); err == nil {
		t.Error("expected an error for an unregistered schema")
	}
}
