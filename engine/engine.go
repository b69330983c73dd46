// Package engine implements the History-Replaying Engine spec.md §4.8
// describes: the top-level orchestration that owns a primary shadow, a
// cache of auxiliary per-schema shadows, the shared lens graph, and
// the append-only history of blocks, and drives the Change Converter
// to keep the primary shadow's view consistent as blocks arrive from
// peers writing under other schemas.
package engine

import (
	"fmt"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/block"
	"github.com/orionz/cambriamerge/internal/bootstrap"
	"github.com/orionz/cambriamerge/internal/clock"
	"github.com/orionz/cambriamerge/internal/convert"
	"github.com/orionz/cambriamerge/internal/ids"
	"github.com/orionz/cambriamerge/internal/lensgraph"
	"github.com/orionz/cambriamerge/internal/shadow"
)

// Engine is one peer's view of a document.
type Engine struct {
	Schema  string
	History []block.Block
	Shadows map[string]*shadow.Instance
	Graph   *lensgraph.Graph
	InDoc   map[string]bool
	Lenses  []block.Registration
}

// New returns an engine reading the document as schema, asserting a
// lens path from mu to schema exists (spec.md §6: "asserts
// compose(mu, schema) exists"). lenses is the full lens list attached
// to the first outgoing local block, in case no peer has published
// them yet.
func New(graph *lensgraph.Graph, schema string, lenses []block.Registration) (*Engine, error) {
	if _, err := graph.Compose(lensgraph.Mu, schema); err != nil {
		return nil, err
	}
	return &Engine{
		Schema:  schema,
		Shadows: map[string]*shadow.Instance{},
		Graph:   graph,
		InDoc:   map[string]bool{},
		Lenses:  lenses,
	}, nil
}

func (e *Engine) shadowFor(schema string) *shadow.Instance {
	s, ok := e.Shadows[schema]
	if !ok {
		s = shadow.New(schema)
		e.Shadows[schema] = s
	}
	return s
}

// ApplyBlocks folds a batch of incoming blocks into the engine's
// primary shadow, converting any block authored under a different
// schema, and returns the primary shadow's patch (spec.md §4.8).
func (e *Engine) ApplyBlocks(blocks []block.Block) (backend.Patch, error) {
	primary := e.shadowFor(e.Schema)

	var fresh []block.Block
	for _, b := range blocks {
		actor, seq := b.Key()
		if seq <= primary.Clock.Get(actor) {
			continue
		}
		fresh = append(fresh, b)
	}

	baseLen := len(e.History)
	e.History = append(e.History, fresh...)

	for _, b := range fresh {
		for _, reg := range b.Lenses {
			if !e.Graph.Has(reg.To) {
				if err := e.Graph.Register(reg.From, reg.To, reg.Lens); err != nil {
					return backend.Patch{}, fmt.Errorf("engine: registering embedded lens %s->%s: %w", reg.From, reg.To, err)
				}
			}
			e.InDoc[reg.To] = true
		}
	}

	// Bootstrap happens before conversion, not merely prepended to the
	// apply queue: the Change Converter clones the primary shadow as
	// its to-side, and a block touching a path under a bootstrap
	// default (e.g. a nested object the defaults created) only
	// resolves if that default has already landed.
	if !primary.Bootstrapped {
		phantom, err := bootstrap.Change(e.Graph, e.Schema)
		if err != nil {
			return backend.Patch{}, fmt.Errorf("engine: bootstrapping %s: %w", e.Schema, err)
		}
		if _, err := primary.ApplyChanges([]backend.Change{phantom}); err != nil {
			return backend.Patch{}, fmt.Errorf("engine: applying bootstrap change for %s: %w", e.Schema, err)
		}
		primary.Bootstrapped = true
	}

	var queue []backend.Change
	for i, b := range fresh {
		if b.Schema == e.Schema {
			queue = append(queue, b.Change)
			continue
		}
		from, err := e.replayShadow(b.Schema, e.History[:baseLen+i])
		if err != nil {
			return backend.Patch{}, fmt.Errorf("engine: replaying from-shadow %s: %w", b.Schema, err)
		}
		converted, err := convert.Change(e.Graph, from, primary, b.Change)
		if err != nil {
			return backend.Patch{}, fmt.Errorf("engine: converting block (%s,%d): %w", b.Change.Actor, b.Change.Seq, err)
		}
		queue = append(queue, converted)
	}

	patch, err := primary.ApplyChanges(queue)
	if err != nil {
		return backend.Patch{}, err
	}
	return scrub(patch), nil
}

// replayShadow reconstructs an up-to-date shadow of schema by
// recursively replaying the given history prefix into a scratch
// engine sharing this engine's lens graph (spec.md §4.8: "lazily
// materialize the from-shadow by replaying the entire history prefix
// before this block into an empty shadow of the block's schema").
func (e *Engine) replayShadow(schema string, prefix []block.Block) (*shadow.Instance, error) {
	scratch := &Engine{
		Schema:  schema,
		Shadows: map[string]*shadow.Instance{},
		Graph:   e.Graph,
		InDoc:   cloneSet(e.InDoc),
	}
	if _, err := scratch.ApplyBlocks(prefix); err != nil {
		return nil, err
	}
	return scratch.shadowFor(schema), nil
}

// ApplyLocalChange applies the caller's own edit directly to the
// primary shadow (no conversion) and returns the resulting patch and
// the block to broadcast (spec.md §4.8).
func (e *Engine) ApplyLocalChange(req backend.LocalChangeRequest) (backend.Patch, block.Block, error) {
	primary := e.shadowFor(e.Schema)

	if !primary.Bootstrapped {
		phantom, err := bootstrap.Change(e.Graph, e.Schema)
		if err != nil {
			return backend.Patch{}, block.Block{}, fmt.Errorf("engine: bootstrapping %s: %w", e.Schema, err)
		}
		if _, err := primary.ApplyChanges([]backend.Change{phantom}); err != nil {
			return backend.Patch{}, block.Block{}, err
		}
		primary.Bootstrapped = true
	}

	var regs []block.Registration
	if !e.InDoc[e.Schema] {
		regs = e.Lenses
		for _, r := range e.Lenses {
			e.InDoc[r.To] = true
		}
		e.InDoc[e.Schema] = true
	}

	patch, ch, err := primary.ApplyLocalChange(req)
	if err != nil {
		return backend.Patch{}, block.Block{}, err
	}

	b := block.Block{Schema: e.Schema, Lenses: regs, Change: ch}
	e.History = append(e.History, b)
	return scrub(patch), b, nil
}

// GetPatch forces a bootstrap if needed and returns the primary
// shadow's full state patch (spec.md §4.8).
func (e *Engine) GetPatch() (backend.Patch, error) {
	return e.ApplyBlocks(nil)
}

// GetMissingChanges returns the history filtered to blocks a peer
// holding have hasn't seen yet (spec.md §6).
func (e *Engine) GetMissingChanges(have clock.Map) []block.Block {
	var out []block.Block
	for _, b := range e.History {
		if b.Change.Seq > have.Get(b.Change.Actor) {
			out = append(out, b)
		}
	}
	return out
}

// GetMissingDeps returns the primary shadow's dependency frontier,
// with the phantom actor scrubbed (spec.md §9 "Phantom change").
func (e *Engine) GetMissingDeps() clock.Map {
	return e.shadowFor(e.Schema).Deps.Without(ids.PhantomActor)
}

// Merge applies to e every block remote has that e's primary shadow
// doesn't yet reflect (spec.md §6: "shorthand for applying remote's
// missing-to-local changes").
func (e *Engine) Merge(remote *Engine) (backend.Patch, error) {
	missing := remote.GetMissingChanges(e.GetMissingDeps())
	return e.ApplyBlocks(missing)
}

func scrub(p backend.Patch) backend.Patch {
	return backend.Patch{Diffs: p.Diffs, Clock: scrubClock(p.Clock), Deps: scrubClock(p.Deps)}
}

func scrubClock(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for actor, seq := range m {
		if actor == ids.PhantomActor {
			continue
		}
		out[actor] = seq
	}
	return out
}

func cloneSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
