// Package shadow holds the per-schema view of a document spec.md §4.2
// describes: a backend state plus the clocks needed to decide what a
// peer is missing and whether the bootstrap defaults change has run.
package shadow

import (
	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/clock"
)

// Instance is one schema's view of a document. Clock tracks ops folded
// in per actor; Deps tracks the last change seen per actor (so missing
// changes can be computed without rescanning State); Elem tracks the
// highest element counter issued per actor, so a later local edit can
// mint a fresh list element id without colliding with one a peer's
// change already introduced.
type Instance struct {
	Schema       string
	State        *backend.State
	Clock        clock.Map
	Deps         clock.Map
	Elem         clock.Map
	Bootstrapped bool
}

// New returns an empty instance rooted at schema, with a bare backend
// state and no history folded in yet.
func New(schema string) *Instance {
	return &Instance{
		Schema: schema,
		State:  backend.Init(),
		Clock:  clock.New(),
		Deps:   clock.New(),
		Elem:   clock.New(),
	}
}

// Clone returns a deep, independent copy, used by the Change Converter
// to mutate a disposable view while walking one block's ops (spec.md
// §4.6) without touching the instance peers still read from.
func (in *Instance) Clone() *Instance {
	return &Instance{
		Schema:       in.Schema,
		State:        in.State.Clone(),
		Clock:        in.Clock.Clone(),
		Deps:         in.Deps.Clone(),
		Elem:         in.Elem.Clone(),
		Bootstrapped: in.Bootstrapped,
	}
}

// ApplyChanges folds a batch of changes into the instance in order,
// updating Clock/Deps from each change's (actor, seq) and Elem from
// every "ins" op's element counter, and returns the resulting patch.
func (in *Instance) ApplyChanges(changes []backend.Change) (backend.Patch, error) {
	next, patch, err := backend.ApplyChanges(in.State, changes)
	if err != nil {
		return backend.Patch{}, err
	}
	in.State = next
	for _, ch := range changes {
		in.Clock.Bump(ch.Actor, ch.Seq)
		in.Deps.Bump(ch.Actor, ch.Seq)
		for _, op := range ch.Ops {
			if op.Action == backend.OpIns {
				in.Elem.Bump(ch.Actor, op.Elem)
			}
		}
	}
	return patch, nil
}

// ApplyLocalChange stamps and folds in a caller's own edit the same
// way ApplyChanges does for received changes, and returns the
// recorded Change so it can be embedded in an outgoing block.
func (in *Instance) ApplyLocalChange(req backend.LocalChangeRequest) (backend.Patch, backend.Change, error) {
	next, patch, ch, err := backend.ApplyLocalChange(in.State, req)
	if err != nil {
		return backend.Patch{}, backend.Change{}, err
	}
	in.State = next
	in.Clock.Bump(ch.Actor, ch.Seq)
	in.Deps.Bump(ch.Actor, ch.Seq)
	for _, op := range ch.Ops {
		if op.Action == backend.OpIns {
			in.Elem.Bump(ch.Actor, op.Elem)
		}
	}
	return patch, ch, nil
}

// NextElem returns the element counter a local "ins" op authored by
// actor should use next, without reserving it -- the caller bumps Elem
// itself once the op is actually applied.
func (in *Instance) NextElem(actor string) int {
	return in.Elem.Get(actor) + 1
}

// MissingDeps returns the clock a peer with `have` already folded in
// would need sent to catch this instance up to date (spec.md §6
// get_missing_deps): every actor/seq pair in Deps that have doesn't
// already cover.
func (in *Instance) MissingDeps(have clock.Map) clock.Map {
	out := clock.New()
	for actor, seq := range in.Deps {
		if have.Get(actor) < seq {
			out.Set(actor, seq)
		}
	}
	return out
}
