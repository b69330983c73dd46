// Package bootstrap computes the one-time synthetic "phantom" change
// spec.md §4.7 describes: the default values a fresh shadow of a
// schema should start with, derived by lensing the universal
// root-creation patch through that schema's JSON-Schema defaults.
package bootstrap

import (
	"fmt"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/clock"
	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lensgraph"
	"github.com/orionz/cambriamerge/internal/patchop"
	"github.com/orionz/cambriamerge/internal/translate"
)

// Change returns the synthetic phantom change that materializes
// schema's JSON-Schema defaults into a fresh shadow (spec.md §4.7):
// authored by the phantom actor, sequence 1, with no dependencies.
func Change(graph *lensgraph.Graph, schema string) (backend.Change, error) {
	l, err := graph.Compose(lensgraph.Mu, schema)
	if err != nil {
		return backend.Change{}, fmt.Errorf("bootstrap: composing mu -> %s: %w", schema, err)
	}

	root := []patchop.Op{{Kind: patchop.Add, Path: "", Value: map[string]any{}}}
	defaults := l.ApplyPatch(root)

	// The leading root-creation fragment is dropped: the target shadow
	// already has a root map before bootstrap runs (backend.Init).
	var rest []patchop.Op
	for _, p := range defaults {
		if p.Path == "" {
			continue
		}
		rest = append(rest, p)
	}

	empty := backend.Init()
	rv := translate.NewReverser(ids.PhantomActor, ids.PhantomSeq, empty, clock.New())

	var ops []backend.Op
	for i, p := range rest {
		newOps, err := rv.Reverse(i, p)
		if err != nil {
			return backend.Change{}, fmt.Errorf("bootstrap: patch -> ops for %s: %w", schema, err)
		}
		for _, op := range newOps {
			if err := backend.ApplyOp(empty, ids.PhantomActor, ids.PhantomSeq, op); err != nil {
				return backend.Change{}, fmt.Errorf("bootstrap: replaying default op for %s: %w", schema, err)
			}
		}
		ops = append(ops, newOps...)
	}

	return backend.Change{
		Actor: ids.PhantomActor,
		Seq:   ids.PhantomSeq,
		Deps:  map[string]int{},
		Ops:   ops,
	}, nil
}
