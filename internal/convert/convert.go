// Package convert implements the Change Converter spec.md §4.6
// describes: rewriting one change authored under a from-schema into
// the ops a to-schema shadow needs to see the same edit, driving the
// sorter, translator, and lens graph over disposable shadow clones.
package convert

import (
	"fmt"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/lensgraph"
	"github.com/orionz/cambriamerge/internal/patchop"
	"github.com/orionz/cambriamerge/internal/shadow"
	"github.com/orionz/cambriamerge/internal/sorter"
	"github.com/orionz/cambriamerge/internal/translate"
)

// Change rewrites ch, authored against from's schema, into the change
// a shadow at to's schema should apply instead. from and to are left
// untouched: the conversion walks disposable clones so later ops in
// the same change resolve paths against a consistent in-flight view
// without mutating either canonical shadow (spec.md §4.6, last line).
func Change(graph *lensgraph.Graph, from, to *shadow.Instance, ch backend.Change) (backend.Change, error) {
	sorted, err := sorter.Sort(ch.Actor, ch.Ops)
	if err != nil {
		return backend.Change{}, fmt.Errorf("convert: sorting %s/%d: %w", ch.Actor, ch.Seq, err)
	}

	l, err := graph.Compose(from.Schema, to.Schema)
	if err != nil {
		return backend.Change{}, fmt.Errorf("convert: composing %s -> %s: %w", from.Schema, to.Schema, err)
	}

	fromClone := from.Clone()
	toClone := to.Clone()
	elemCache := translate.ElemCache{}
	rv := translate.NewReverser(ch.Actor, ch.Seq, toClone.State, toClone.Elem)

	var out []backend.Op
	for i, op := range sorted {
		switch op.Action {
		case backend.OpIns:
			elemID := fmt.Sprintf("%s:%d", ch.Actor, op.Elem)
			elemCache[elemID] = op
			if err := backend.ApplyOp(fromClone.State, ch.Actor, ch.Seq, op); err != nil {
				return backend.Change{}, fmt.Errorf("convert: replaying ins on from-clone: %w", err)
			}
		case backend.OpMakeMap, backend.OpMakeList:
			if err := backend.ApplyOp(fromClone.State, ch.Actor, ch.Seq, op); err != nil {
				return backend.Change{}, fmt.Errorf("convert: replaying make on from-clone: %w", err)
			}
		default:
			frag, err := translate.Forward(fromClone.State, op, elemCache)
			if err != nil {
				return backend.Change{}, fmt.Errorf("convert: op %d -> patch: %w", i, err)
			}
			translated := l.ApplyPatch([]patchop.Op{frag})

			// Each fragment's ops are applied to the to-clone immediately,
			// not batched until the whole translated patch is processed:
			// a later fragment in the same lens output (e.g. wrap's
			// element write following its list creation) resolves its
			// parent path against the to-clone, which must already
			// reflect the earlier fragment's makeList/link.
			var newOps []backend.Op
			for _, p := range translated {
				ops, err := rv.Reverse(i, p)
				if err != nil {
					return backend.Change{}, fmt.Errorf("convert: patch -> ops at op %d: %w", i, err)
				}
				for _, newOp := range ops {
					if err := backend.ApplyOp(toClone.State, ch.Actor, ch.Seq, newOp); err != nil {
						return backend.Change{}, fmt.Errorf("convert: replaying translated op on to-clone: %w", err)
					}
				}
				newOps = append(newOps, ops...)
			}

			if err := backend.ApplyOp(fromClone.State, ch.Actor, ch.Seq, op); err != nil {
				return backend.Change{}, fmt.Errorf("convert: replaying op on from-clone: %w", err)
			}
			out = append(out, newOps...)
		}
	}

	return backend.Change{
		Actor:   ch.Actor,
		Seq:     ch.Seq,
		Deps:    ch.Deps,
		Message: ch.Message,
		Ops:     out,
	}, nil
}
