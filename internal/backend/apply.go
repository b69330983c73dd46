package backend

import (
	"fmt"

	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lenserr"
	"github.com/orionz/cambriamerge/internal/patchop"
)

// Patch is the frontend-facing shape spec.md §6 describes: diffs plus the
// clock/deps a caller needs to know what has been folded in.
//
// GetPatch and ApplyChanges both return a full-snapshot patch (a single
// "add" fragment rebuilding the whole tree from root) rather than a
// minimal incremental diff: spec.md §1 names "optimal performance" a
// Non-goal, and recomputing the snapshot keeps this backend's patch
// generation independent of the Translator (component 4), which is the
// one place per-field incremental patches matter.
type Patch struct {
	Diffs []patchop.Op
	Clock map[string]int
	Deps  map[string]int
}

// LocalChangeRequest describes a caller's own edit, before seq/deps are
// stamped.
type LocalChangeRequest struct {
	Actor   string
	Ops     []Op
	Message string
}

// ApplyChanges folds a batch of changes into state, in order, and returns
// the resulting state and a full snapshot patch (spec.md §6).
func ApplyChanges(state *State, changes []Change) (*State, Patch, error) {
	next := state.Clone()
	for _, ch := range changes {
		if err := applyChange(next, ch); err != nil {
			return nil, Patch{}, fmt.Errorf("applying change (%s, %d): %w", ch.Actor, ch.Seq, err)
		}
	}
	return next, GetPatch(next), nil
}

// ApplyLocalChange stamps seq and deps for a caller's own edit, applies
// it, and returns the resulting state, patch, and the Change that was
// recorded (so the caller can persist/broadcast it).
func ApplyLocalChange(state *State, req LocalChangeRequest) (*State, Patch, Change, error) {
	ch := Change{
		Actor:   req.Actor,
		Seq:     state.clock[req.Actor] + 1,
		Deps:    state.Clock(),
		Message: req.Message,
		Ops:     req.Ops,
	}
	next := state.Clone()
	if err := applyChange(next, ch); err != nil {
		return nil, Patch{}, Change{}, fmt.Errorf("applying local change: %w", err)
	}
	return next, GetPatch(next), ch, nil
}

// GetPatch returns a full snapshot of state as a single "add" fragment
// rooted at "".
func GetPatch(state *State) Patch {
	return Patch{
		Diffs: []patchop.Op{{Kind: patchop.Add, Path: "", Value: snapshot(state)}},
		Clock: state.Clock(),
		Deps:  state.Clock(),
	}
}

// GetMissingDeps returns the clock a peer would need to send to catch
// this state up to date (spec.md §6).
func GetMissingDeps(state *State) map[string]int {
	return state.Clock()
}

// ApplyOp applies a single op directly to state, bypassing clock
// bookkeeping. The Change Converter uses this to advance disposable
// shadow clones op-by-op while walking one block's ops (spec.md §4.6),
// where the sorter's permutation -- not the original change -- decides
// application order.
func ApplyOp(state *State, actor string, seq int, op Op) error {
	return applyOp(state, actor, seq, op)
}

func applyChange(state *State, ch Change) error {
	for i, op := range ch.Ops {
		if err := applyOp(state, ch.Actor, ch.Seq, op); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Action, err)
		}
	}
	if ch.Seq > state.clock[ch.Actor] {
		state.clock[ch.Actor] = ch.Seq
	}
	return nil
}

func applyOp(state *State, actor string, seq int, op Op) error {
	switch op.Action {
	case OpMakeMap:
		state.objects[op.Obj] = &Object{Kind: KindMap, Keys: map[string]Value{}}
		return nil
	case OpMakeList:
		state.objects[op.Obj] = &Object{Kind: KindList}
		return nil
	case OpLink:
		return applyLink(state, actor, seq, op)
	case OpSet:
		return applySet(state, actor, seq, op, Value{Scalar: op.Value})
	case OpDel:
		return applyDel(state, op)
	case OpIns:
		return applyIns(state, actor, op)
	default:
		return &lenserr.OpShapeError{Reason: fmt.Sprintf("unknown op action %q", op.Action)}
	}
}

func applyLink(state *State, actor string, seq int, op Op) error {
	childID, ok := op.Value.(string)
	if !ok {
		return fmt.Errorf("link value must be a child object id, got %T", op.Value)
	}
	if err := applySet(state, actor, seq, op, Value{ObjRef: childID}); err != nil {
		return err
	}
	state.inbound[childID] = Parent{Obj: op.Obj, Key: op.Key}
	return nil
}

func applySet(state *State, actor string, seq int, op Op, v Value) error {
	obj, ok := state.objects[op.Obj]
	if !ok {
		return fmt.Errorf("set/link on unknown object %s", op.Obj)
	}
	switch obj.Kind {
	case KindMap:
		if existing, ok := obj.Keys[op.Key]; ok && !wins(actor, seq, existing) {
			return nil
		}
		v.WriterActor = actor
		v.WriterSeq = seq
		obj.Keys[op.Key] = v
		return nil
	case KindList:
		for i := range obj.Elems {
			if obj.Elems[i].ID == op.Key {
				obj.Elems[i].Value = v
				obj.Elems[i].Tombstone = false
				return nil
			}
		}
		return fmt.Errorf("set/link on unknown list element %s in %s", op.Key, op.Obj)
	default:
		return fmt.Errorf("unknown object kind %q", obj.Kind)
	}
}

func applyDel(state *State, op Op) error {
	obj, ok := state.objects[op.Obj]
	if !ok {
		return fmt.Errorf("del on unknown object %s", op.Obj)
	}
	switch obj.Kind {
	case KindMap:
		delete(obj.Keys, op.Key)
		return nil
	case KindList:
		for i := range obj.Elems {
			if obj.Elems[i].ID == op.Key {
				obj.Elems[i].Tombstone = true
				return nil
			}
		}
		return fmt.Errorf("del on unknown list element %s in %s", op.Key, op.Obj)
	default:
		return fmt.Errorf("unknown object kind %q", obj.Kind)
	}
}

func applyIns(state *State, actor string, op Op) error {
	obj, ok := state.objects[op.Obj]
	if !ok || obj.Kind != KindList {
		return fmt.Errorf("ins on unknown list %s", op.Obj)
	}
	rawIdx, ok := obj.rawIndexOf(op.Key)
	if !ok {
		return fmt.Errorf("ins anchor %s not found in list %s", op.Key, op.Obj)
	}
	newID := fmt.Sprintf("%s:%d", actor, op.Elem)
	entry := ElemEntry{ID: newID}
	insertAt := rawIdx + 1
	obj.Elems = append(obj.Elems, ElemEntry{})
	copy(obj.Elems[insertAt+1:], obj.Elems[insertAt:])
	obj.Elems[insertAt] = entry
	return nil
}

func snapshot(state *State) any {
	return snapshotObject(state, ids.RootID)
}

func snapshotObject(state *State, id string) any {
	obj, ok := state.objects[id]
	if !ok {
		return nil
	}
	switch obj.Kind {
	case KindMap:
		out := make(map[string]any, len(obj.Keys))
		for k, v := range obj.Keys {
			out[k] = snapshotValue(state, v)
		}
		return out
	case KindList:
		out := make([]any, 0, len(obj.Elems))
		for _, e := range obj.Elems {
			if e.Tombstone {
				continue
			}
			out = append(out, snapshotValue(state, e.Value))
		}
		return out
	default:
		return nil
	}
}

func snapshotValue(state *State, v Value) any {
	if v.IsObjRef() {
		return snapshotObject(state, v.ObjRef)
	}
	return v.Scalar
}
