// Package translate implements the Op<->Patch Translator spec.md §4.4
// describes: converting a single CRDT op into a JSON Patch fragment
// against the shadow it was applied to, and converting a JSON Patch
// fragment back into the ops needed to reproduce it against a
// (possibly different-schema) target shadow.
package translate

import (
	"fmt"
	"strconv"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/clock"
	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lenserr"
	"github.com/orionz/cambriamerge/internal/patchop"
	"github.com/orionz/cambriamerge/internal/resolver"
)

// ElemCache maps a list element id minted earlier in the same change to
// the "ins" op that introduced it (spec.md §4.6 step 3's "per-change
// element cache").
type ElemCache map[string]backend.Op

// Forward converts one set/del/link op, resolved against state (the
// from-shadow clone as it stood before op is applied), into the single
// JSON Patch fragment it corresponds to (spec.md §4.4 "op -> patch").
// ins/makeMap/makeList never reach Forward: the Change Converter
// applies them to the clone directly without emitting.
func Forward(state *backend.State, op backend.Op, cache ElemCache) (patchop.Op, error) {
	r := resolver.New(state)
	parentPath, ok := r.PathOf(op.Obj)
	if !ok {
		return patchop.Op{}, &lenserr.PathResolutionError{Path: op.Obj, Reason: "no path to object"}
	}

	kind, ok := state.ObjectKind(op.Obj)
	if !ok {
		return patchop.Op{}, fmt.Errorf("translate: unknown object %s", op.Obj)
	}

	if op.Action == backend.OpDel {
		segment, err := pathSegmentFor(state, kind, op.Obj, op.Key)
		if err != nil {
			return patchop.Op{}, err
		}
		return patchop.Op{Kind: patchop.Remove, Path: resolver.JoinPointer(append(parentPath, segment))}, nil
	}

	value, err := valueFor(state, op)
	if err != nil {
		return patchop.Op{}, err
	}

	if kind == backend.KindMap {
		_, existed := state.MapValue(op.Obj, op.Key)
		segment := op.Key
		verb := patchop.Add
		if existed {
			verb = patchop.Replace
		}
		return patchop.Op{Kind: verb, Path: resolver.JoinPointer(append(parentPath, segment)), Value: value}, nil
	}

	// List parent.
	if insOp, freshlyInserted := cache[op.Key]; freshlyInserted {
		anchorIdx, ok := r.IndexOfElem(op.Obj, insOp.Key)
		if !ok {
			return patchop.Op{}, fmt.Errorf("translate: insert anchor %s not found in %s", insOp.Key, op.Obj)
		}
		segment := strconv.Itoa(anchorIdx + 1)
		return patchop.Op{Kind: patchop.Add, Path: resolver.JoinPointer(append(parentPath, segment)), Value: value}, nil
	}

	idx, ok := r.IndexOfElem(op.Obj, op.Key)
	if !ok {
		return patchop.Op{}, fmt.Errorf("translate: element %s not found in %s", op.Key, op.Obj)
	}
	segment := strconv.Itoa(idx)
	return patchop.Op{Kind: patchop.Replace, Path: resolver.JoinPointer(append(parentPath, segment)), Value: value}, nil
}

func pathSegmentFor(state *backend.State, kind backend.ObjectKind, obj, key string) (string, error) {
	if kind == backend.KindMap {
		return key, nil
	}
	r := resolver.New(state)
	idx, ok := r.IndexOfElem(obj, key)
	if !ok {
		return "", fmt.Errorf("translate: element %s not found in %s", key, obj)
	}
	return strconv.Itoa(idx), nil
}

func valueFor(state *backend.State, op backend.Op) (any, error) {
	if op.Action != backend.OpLink {
		return op.Value, nil
	}
	childID, ok := op.Value.(string)
	if !ok {
		return nil, fmt.Errorf("translate: link value must be an object id, got %T", op.Value)
	}
	kind, ok := state.ObjectKind(childID)
	if !ok {
		return nil, fmt.Errorf("translate: link target %s not created yet", childID)
	}
	switch kind {
	case backend.KindMap:
		return map[string]any{}, nil
	case backend.KindList:
		return []any{}, nil
	default:
		return nil, fmt.Errorf("translate: unknown link target kind %q", kind)
	}
}

// Reverser drives patch -> ops conversion for every fragment produced
// while converting one change, keeping the local path-cache and
// synthetic-id counter spec.md §4.4 describes alive across the whole
// change rather than just one fragment.
type Reverser struct {
	actor      string
	seq        int
	state      *backend.State
	r          *resolver.R
	pathCache  map[string]string
	localElem  int
	patchIndex int
}

// NewReverser prepares a reverser for one change's worth of patch
// fragments, targeting toState (the to-shadow clone) and seeded from
// toElem's current per-actor element counter.
func NewReverser(actor string, seq int, toState *backend.State, toElem clock.Map) *Reverser {
	return &Reverser{
		actor:     actor,
		seq:       seq,
		state:     toState,
		r:         resolver.New(toState),
		pathCache: map[string]string{"": ids.RootID},
		localElem: toElem.Get(actor),
	}
}

// Reverse converts one patch fragment, encountered as the opIndex'th
// op of the originating change, into the ops needed to reproduce it
// against the target shadow (spec.md §4.4 "patch -> ops").
//
// A "replace" targeting a list index that no longer exists in the
// target is silently dropped (spec.md §4.4), returning (nil, nil)
// rather than an error.
func (rv *Reverser) Reverse(opIndex int, p patchop.Op) ([]backend.Op, error) {
	segments := resolver.SplitPointer(p.Path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("translate: patch path %q has no target segment", p.Path)
	}
	parentSegments := segments[:len(segments)-1]
	lastSeg := segments[len(segments)-1]

	parentObj, ok := rv.resolveParent(parentSegments)
	if !ok {
		return nil, fmt.Errorf("translate: cannot resolve parent path %v", parentSegments)
	}
	parentKind, ok := rv.state.ObjectKind(parentObj)
	if !ok {
		return nil, fmt.Errorf("translate: unknown parent object %s", parentObj)
	}

	if p.Kind == patchop.Remove {
		return rv.reverseRemove(parentObj, parentKind, lastSeg)
	}
	return rv.reverseAddOrReplace(opIndex, p, parentObj, parentKind, lastSeg)
}

func (rv *Reverser) reverseRemove(parentObj string, parentKind backend.ObjectKind, lastSeg string) ([]backend.Op, error) {
	if parentKind == backend.KindMap {
		return []backend.Op{{Action: backend.OpDel, Obj: parentObj, Key: lastSeg}}, nil
	}
	index, err := strconv.Atoi(lastSeg)
	if err != nil {
		return nil, fmt.Errorf("translate: list index %q is not numeric", lastSeg)
	}
	elemID, ok := rv.r.ElemOfIndex(parentObj, index)
	if !ok {
		return nil, nil
	}
	return []backend.Op{{Action: backend.OpDel, Obj: parentObj, Key: elemID}}, nil
}

func (rv *Reverser) reverseAddOrReplace(opIndex int, p patchop.Op, parentObj string, parentKind backend.ObjectKind, lastSeg string) ([]backend.Op, error) {
	switch {
	case patchop.IsScalarOrNull(p.Value):
		return rv.reverseScalar(p, parentObj, parentKind, lastSeg)
	case patchop.IsEmptyObject(p.Value):
		return rv.reverseContainer(opIndex, p, parentObj, parentKind, lastSeg, backend.OpMakeMap)
	case patchop.IsEmptyArray(p.Value):
		return rv.reverseContainer(opIndex, p, parentObj, parentKind, lastSeg, backend.OpMakeList)
	default:
		return nil, &lenserr.OpShapeError{Reason: fmt.Sprintf("patch value at %q is not scalar, empty object, or empty array", p.Path)}
	}
}

func (rv *Reverser) reverseScalar(p patchop.Op, parentObj string, parentKind backend.ObjectKind, lastSeg string) ([]backend.Op, error) {
	if parentKind == backend.KindMap {
		return []backend.Op{{Action: backend.OpSet, Obj: parentObj, Key: lastSeg, Value: p.Value}}, nil
	}
	elemID, ins, ok, err := rv.listTarget(p.Kind, parentObj, lastSeg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ops := []backend.Op{}
	if ins != nil {
		ops = append(ops, *ins)
	}
	ops = append(ops, backend.Op{Action: backend.OpSet, Obj: parentObj, Key: elemID, Value: p.Value})
	return ops, nil
}

func (rv *Reverser) reverseContainer(opIndex int, p patchop.Op, parentObj string, parentKind backend.ObjectKind, lastSeg string, makeKind backend.OpKind) ([]backend.Op, error) {
	newObjID := ids.NewObjectID(rv.actor, rv.seq, opIndex, rv.patchIndex)
	rv.patchIndex++

	makeOp := backend.Op{Action: makeKind, Obj: newObjID}

	if parentKind == backend.KindMap {
		linkOp := backend.Op{Action: backend.OpLink, Obj: parentObj, Key: lastSeg, Value: newObjID}
		rv.pathCache[p.Path] = newObjID
		return []backend.Op{makeOp, linkOp}, nil
	}

	elemID, ins, ok, err := rv.listTarget(p.Kind, parentObj, lastSeg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ops := []backend.Op{}
	if ins != nil {
		ops = append(ops, *ins)
	}
	ops = append(ops, makeOp, backend.Op{Action: backend.OpLink, Obj: parentObj, Key: elemID, Value: newObjID})
	rv.pathCache[p.Path] = newObjID
	return ops, nil
}

// listTarget resolves the element id a list-parent add/replace should
// write to, minting a fresh element (and its "ins" op) for "add" or
// locating the existing element for "replace" (spec.md §4.4's
// "element-id inflation"). ok is false for a "replace" whose index no
// longer exists, meaning the caller should silently drop the fragment.
func (rv *Reverser) listTarget(kind patchop.Kind, listObj, indexSeg string) (elemID string, ins *backend.Op, ok bool, err error) {
	index, err := strconv.Atoi(indexSeg)
	if err != nil {
		return "", nil, false, fmt.Errorf("translate: list index %q is not numeric", indexSeg)
	}

	if kind == patchop.Replace {
		elemID, ok := rv.r.ElemOfIndex(listObj, index)
		if !ok {
			return "", nil, false, nil
		}
		return elemID, nil, true, nil
	}

	anchor, ok := rv.r.ElemOfIndex(listObj, index-1)
	if !ok {
		return "", nil, false, fmt.Errorf("translate: insertion anchor at index %d not found in %s", index-1, listObj)
	}
	rv.localElem++
	newID := rv.actor + ":" + strconv.Itoa(rv.localElem)
	insOp := backend.Op{Action: backend.OpIns, Obj: listObj, Key: anchor, Elem: rv.localElem}
	return newID, &insOp, true, nil
}

func (rv *Reverser) resolveParent(segments []string) (string, bool) {
	pointer := resolver.JoinPointer(segments)
	if id, ok := rv.pathCache[pointer]; ok {
		return id, true
	}
	return rv.r.ObjIDOf(segments)
}
