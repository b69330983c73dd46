package resolver

import (
	"reflect"
	"testing"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/ids"
)

func buildListDoc(t *testing.T) *backend.State {
	t.Helper()
	state := backend.Init()
	listID := "list-1"
	next, _, err := backend.ApplyChanges(state, []backend.Change{{
		Actor: "alice",
		Seq:   1,
		Ops: []backend.Op{
			{Action: backend.OpMakeList, Obj: listID},
			{Action: backend.OpLink, Obj: ids.RootID, Key: "tags", Value: listID},
			{Action: backend.OpIns, Obj: listID, Key: "_head", Elem: 1},
			{Action: backend.OpSet, Obj: listID, Key: "alice:1", Value: "fun"},
			{Action: backend.OpIns, Obj: listID, Key: "alice:1", Elem: 2},
			{Action: backend.OpSet, Obj: listID, Key: "alice:2", Value: "relaxing"},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return next
}

func TestPathOfWalksListParent(t *testing.T) {
	state := buildListDoc(t)
	r := New(state)

	path, ok := r.PathOf("list-1")
	if !ok || !reflect.DeepEqual(path, []string{"tags"}) {
		t.Fatalf("expected path [tags], got %v ok=%v", path, ok)
	}
}

func TestObjIDOfDescendsThroughListIndex(t *testing.T) {
	state := buildListDoc(t)
	r := New(state)

	id, ok := r.ObjIDOf([]string{"tags"})
	if !ok || id != "list-1" {
		t.Fatalf("expected list-1, got %v ok=%v", id, ok)
	}
}

func TestIndexOfElemAndElemOfIndexRoundTrip(t *testing.T) {
	state := buildListDoc(t)
	r := New(state)

	idx, ok := r.IndexOfElem("list-1", "alice:2")
	if !ok || idx != 1 {
		t.Fatalf("expected index 1, got %d ok=%v", idx, ok)
	}
	elemID, ok := r.ElemOfIndex("list-1", 1)
	if !ok || elemID != "alice:2" {
		t.Fatalf("expected alice:2, got %s ok=%v", elemID, ok)
	}

	headIdx, ok := r.IndexOfElem("list-1", "_head")
	if !ok || headIdx != -1 {
		t.Fatalf("expected head index -1, got %d ok=%v", headIdx, ok)
	}
	headElem, ok := r.ElemOfIndex("list-1", -1)
	if !ok || headElem != "_head" {
		t.Fatalf("expected _head, got %s ok=%v", headElem, ok)
	}
}

func TestSplitAndJoinPointerRoundTrip(t *testing.T) {
	segments := SplitPointer("/tags/0/name")
	want := []string{"tags", "0", "name"}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("expected %v, got %v", want, segments)
	}
	if got := JoinPointer(segments); got != "/tags/0/name" {
		t.Errorf("expected round trip, got %s", got)
	}
}

func TestSplitPointerUnescapesTildeAndSlash(t *testing.T) {
	segments := SplitPointer("/a~1b/c~0d")
	want := []string{"a/b", "c~d"}
	if !reflect.DeepEqual(segments, want) {
		t.Fatalf("expected %v, got %v", want, segments)
	}
}
