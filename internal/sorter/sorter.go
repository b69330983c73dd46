// Package sorter implements the Op Sorter spec.md §4.5 describes:
// permuting one change's ops so every "ins" is immediately followed by
// its reifying set/link (and, when that reifier is a link, the make*
// for the linked object slotted between).
package sorter

import (
	"fmt"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/lenserr"
)

// Sort returns a permutation of ops satisfying spec.md §4.5's
// ordering: every "ins" immediately followed by the set/link keyed
// "<actor>:<elem>" that gives it a value (with that reifier's make*
// slotted in between if the reifier is a link), and every make* for a
// linked object immediately followed by its link. Sorting is stable
// elsewhere -- ops with no such relationship keep their relative
// order.
//
// actor is the author of the whole change: the ins op itself carries
// no actor, only the per-actor element counter (spec.md §3), so the
// element id it introduces is formed as "<actor>:<elem>".
func Sort(actor string, ops []backend.Op) ([]backend.Op, error) {
	reifierOf := map[string]int{} // "<actor>:<elem>" -> index of its set/link
	makeOf := map[string]int{}    // object id -> index of its make*

	for i, op := range ops {
		switch op.Action {
		case backend.OpSet, backend.OpLink:
			reifierOf[op.Key] = i
		case backend.OpMakeMap, backend.OpMakeList:
			makeOf[op.Obj] = i
		}
	}

	// insReifier marks every set/link that reifies some ins in this
	// change: these must not be emitted until their ins is reached.
	insReifier := map[int]bool{}
	for _, op := range ops {
		if op.Action != backend.OpIns {
			continue
		}
		elemID := fmt.Sprintf("%s:%d", actor, op.Elem)
		if idx, ok := reifierOf[elemID]; ok {
			insReifier[idx] = true
		}
	}

	placed := make([]bool, len(ops))
	var out []backend.Op

	emitLink := func(linkIdx int) {
		if placed[linkIdx] {
			return
		}
		link := ops[linkIdx]
		if childID, ok := link.Value.(string); ok {
			if makeIdx, ok := makeOf[childID]; ok && !placed[makeIdx] {
				placed[makeIdx] = true
				out = append(out, ops[makeIdx])
			}
		}
		placed[linkIdx] = true
		out = append(out, link)
	}

	for i, op := range ops {
		if placed[i] || insReifier[i] {
			continue
		}
		if op.Action == backend.OpMakeMap || op.Action == backend.OpMakeList {
			if _, linked := isLinkedSomewhere(ops, op.Obj); linked {
				continue // emitted by emitLink when its link is reached
			}
		}
		if op.Action == backend.OpLink {
			emitLink(i)
			continue
		}

		placed[i] = true
		out = append(out, op)

		if op.Action != backend.OpIns {
			continue
		}
		elemID := fmt.Sprintf("%s:%d", actor, op.Elem)
		reifierIdx, ok := reifierOf[elemID]
		if !ok {
			return nil, &lenserr.OpShapeError{Reason: fmt.Sprintf("ins %s has no reifier", elemID)}
		}
		if ops[reifierIdx].Action == backend.OpLink {
			emitLink(reifierIdx)
		} else if !placed[reifierIdx] {
			placed[reifierIdx] = true
			out = append(out, ops[reifierIdx])
		}
	}

	return out, nil
}

func isLinkedSomewhere(ops []backend.Op, objID string) (int, bool) {
	for i, op := range ops {
		if op.Action == backend.OpLink && op.Value == objID {
			return i, true
		}
	}
	return 0, false
}
