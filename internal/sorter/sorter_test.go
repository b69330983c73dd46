package sorter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lenserr"
)

func TestSortMovesInsImmediatelyBeforeItsSet(t *testing.T) {
	ops := []backend.Op{
		{Action: backend.OpSet, Obj: "list-1", Key: "alice:1", Value: "fun"},
		{Action: backend.OpMakeList, Obj: "list-1"},
		{Action: backend.OpLink, Obj: ids.RootID, Key: "tags", Value: "list-1"},
		{Action: backend.OpIns, Obj: "list-1", Key: "_head", Elem: 1},
	}
	got, err := Sort("alice", ops)
	if err != nil {
		t.Fatal(err)
	}
	want := []backend.Op{
		{Action: backend.OpMakeList, Obj: "list-1"},
		{Action: backend.OpLink, Obj: ids.RootID, Key: "tags", Value: "list-1"},
		{Action: backend.OpIns, Obj: "list-1", Key: "_head", Elem: 1},
		{Action: backend.OpSet, Obj: "list-1", Key: "alice:1", Value: "fun"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestSortSlotsMakeBetweenInsAndLink(t *testing.T) {
	ops := []backend.Op{
		{Action: backend.OpMakeMap, Obj: "obj-1"},
		{Action: backend.OpIns, Obj: "list-1", Key: "_head", Elem: 1},
		{Action: backend.OpLink, Obj: "list-1", Key: "alice:1", Value: "obj-1"},
	}
	got, err := Sort("alice", ops)
	if err != nil {
		t.Fatal(err)
	}
	want := []backend.Op{
		{Action: backend.OpIns, Obj: "list-1", Key: "_head", Elem: 1},
		{Action: backend.OpMakeMap, Obj: "obj-1"},
		{Action: backend.OpLink, Obj: "list-1", Key: "alice:1", Value: "obj-1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestSortKeepsPlainMapLinkAdjacent(t *testing.T) {
	ops := []backend.Op{
		{Action: backend.OpSet, Obj: ids.RootID, Key: "name", Value: "hi"},
		{Action: backend.OpMakeMap, Obj: "obj-1"},
		{Action: backend.OpLink, Obj: ids.RootID, Key: "meta", Value: "obj-1"},
	}
	got, err := Sort("alice", ops)
	if err != nil {
		t.Fatal(err)
	}
	want := []backend.Op{
		{Action: backend.OpSet, Obj: ids.RootID, Key: "name", Value: "hi"},
		{Action: backend.OpMakeMap, Obj: "obj-1"},
		{Action: backend.OpLink, Obj: ids.RootID, Key: "meta", Value: "obj-1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestSortMissingReifierIsAnError(t *testing.T) {
	ops := []backend.Op{
		{Action: backend.OpIns, Obj: "list-1", Key: "_head", Elem: 1},
	}
	_, err := Sort("alice", ops)
	var target *lenserr.OpShapeError
	if !errors.As(err, &target) {
		t.Fatalf("expected *lenserr.OpShapeError, got %T: %v", err, err)
	}
}
