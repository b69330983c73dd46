package backend

import (
	"errors"
	"reflect"
	"testing"

	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lenserr"
)

func TestApplyChangesSetsScalarOnRoot(t *testing.T) {
	state := Init()

	next, patch, err := ApplyChanges(state, []Change{{
		Actor: "alice",
		Seq:   1,
		Ops:   []Op{{Action: OpSet, Obj: ids.RootID, Key: "name", Value: "hello"}},
	}})
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := next.MapValue(ids.RootID, "name"); !ok || v.Scalar != "hello" {
		t.Errorf("expected name=hello, got %+v ok=%v", v, ok)
	}

	want := map[string]any{"name": "hello"}
	if got := patch.Diffs[0].Value; !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot mismatch: got %+v want %+v", got, want)
	}
	if patch.Clock["alice"] != 1 {
		t.Errorf("expected clock[alice]=1, got %d", patch.Clock["alice"])
	}
}

func TestMakeListLinkInsSetBuildsAList(t *testing.T) {
	state := Init()
	listID := "list-1"

	next, patch, err := ApplyChanges(state, []Change{{
		Actor: "alice",
		Seq:   1,
		Ops: []Op{
			{Action: OpMakeList, Obj: listID},
			{Action: OpLink, Obj: ids.RootID, Key: "tags", Value: listID},
			{Action: OpIns, Obj: listID, Key: "_head", Elem: 1},
			{Action: OpSet, Obj: listID, Key: "alice:1", Value: "fun"},
			{Action: OpIns, Obj: listID, Key: "alice:1", Elem: 2},
			{Action: OpSet, Obj: listID, Key: "alice:2", Value: "relaxing"},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}

	kind, ok := next.ObjectKind(listID)
	if !ok || kind != KindList {
		t.Fatalf("expected list object, got %v ok=%v", kind, ok)
	}
	if n := next.VisibleLen(listID); n != 2 {
		t.Fatalf("expected 2 visible elements, got %d", n)
	}
	elem0, _ := next.ElemAt(listID, 0)
	elem1, _ := next.ElemAt(listID, 1)
	if elem0 != "alice:1" || elem1 != "alice:2" {
		t.Errorf("unexpected element order: %s, %s", elem0, elem1)
	}

	want := map[string]any{"tags": []any{"fun", "relaxing"}}
	if got := patch.Diffs[0].Value; !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot mismatch: got %+v want %+v", got, want)
	}
}

func TestDelTombstonesWithoutShiftingOtherIndices(t *testing.T) {
	state := Init()
	listID := "list-1"
	next, _, err := ApplyChanges(state, []Change{{
		Actor: "alice",
		Seq:   1,
		Ops: []Op{
			{Action: OpMakeList, Obj: listID},
			{Action: OpLink, Obj: ids.RootID, Key: "xs", Value: listID},
			{Action: OpIns, Obj: listID, Key: "_head", Elem: 1},
			{Action: OpSet, Obj: listID, Key: "alice:1", Value: "a"},
			{Action: OpIns, Obj: listID, Key: "alice:1", Elem: 2},
			{Action: OpSet, Obj: listID, Key: "alice:2", Value: "b"},
			{Action: OpDel, Obj: listID, Key: "alice:1"},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if n := next.VisibleLen(listID); n != 1 {
		t.Fatalf("expected 1 visible element after del, got %d", n)
	}
	elem0, ok := next.ElemAt(listID, 0)
	if !ok || elem0 != "alice:2" {
		t.Errorf("expected remaining element alice:2 at index 0, got %s ok=%v", elem0, ok)
	}
	idx, ok := next.ElemIndex(listID, "alice:1")
	if ok {
		t.Errorf("expected tombstoned element to have no visible index, got %d", idx)
	}
}

func TestApplyLocalChangeStampsSeqAndDeps(t *testing.T) {
	state := Init()
	next, _, ch, err := ApplyLocalChange(state, LocalChangeRequest{
		Actor: "alice",
		Ops:   []Op{{Action: OpSet, Obj: ids.RootID, Key: "x", Value: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ch.Seq != 1 {
		t.Errorf("expected seq=1 for first local change, got %d", ch.Seq)
	}
	if len(ch.Deps) != 0 {
		t.Errorf("expected empty deps on first local change, got %+v", ch.Deps)
	}
	if next.clock["alice"] != 1 {
		t.Errorf("expected clock folded after local apply")
	}
}

func TestApplyChangesMapWriteResolvesLWWRegardlessOfBatchOrder(t *testing.T) {
	alice := Change{Actor: "alice", Seq: 1, Ops: []Op{{Action: OpSet, Obj: ids.RootID, Key: "name", Value: "alice-wins"}}}
	bob := Change{Actor: "bob", Seq: 2, Ops: []Op{{Action: OpSet, Obj: ids.RootID, Key: "name", Value: "bob-wins"}}}

	aliceFirst, _, err := ApplyChanges(Init(), []Change{alice, bob})
	if err != nil {
		t.Fatal(err)
	}
	bobFirst, _, err := ApplyChanges(Init(), []Change{bob, alice})
	if err != nil {
		t.Fatal(err)
	}

	v1, ok := aliceFirst.MapValue(ids.RootID, "name")
	if !ok || v1.Scalar != "bob-wins" {
		t.Errorf("expected higher-seq writer bob to win when applied second, got %+v ok=%v", v1, ok)
	}
	v2, ok := bobFirst.MapValue(ids.RootID, "name")
	if !ok || v2.Scalar != "bob-wins" {
		t.Errorf("expected higher-seq writer bob to win even when applied first, got %+v ok=%v", v2, ok)
	}
}

func TestApplyChangesUnknownOpActionIsOpShapeError(t *testing.T) {
	state := Init()
	_, _, err := ApplyChanges(state, []Change{
		{Actor: "alice", Seq: 1, Ops: []Op{{Action: "bogus", Obj: ids.RootID}}},
	})
	var target *lenserr.OpShapeError
	if !errors.As(err, &target) {
		t.Fatalf("expected *lenserr.OpShapeError, got %T: %v", err, err)
	}
}
