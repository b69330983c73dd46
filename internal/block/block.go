// Package block defines the unit of history spec.md §3 describes: a
// change plus the schema it was authored under and any lens
// registrations its author believes peers may still be missing.
package block

import (
	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/lens"
)

// Registration is one edge a block's author embeds so a peer that has
// never seen this schema pair can still register it locally (spec.md
// §3: "an embedded set of lens registrations the author believes its
// peers may need").
type Registration struct {
	From string
	To   string
	Lens lens.Source
}

// Block is one entry in a document's history.
type Block struct {
	Schema  string
	Lenses  []Registration
	Change  backend.Change
}

// Key returns the (actor, seq) pair a block is deduplicated by
// (spec.md §3: "A block's identity for deduplication is (actor,
// seq)").
func (b Block) Key() (string, int) {
	return b.Change.Actor, b.Change.Seq
}
