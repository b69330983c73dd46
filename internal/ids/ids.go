// Package ids holds the fixed identifiers spec.md §6 names as constants:
// the root object id, the phantom actor, and the UUID namespace synthetic
// object ids are derived from.
package ids

import (
	"strconv"

	"github.com/google/uuid"
)

// RootID is the fixed all-zero object id every shadow's document tree is
// rooted at.
const RootID = "00000000-0000-0000-0000-000000000000"

// PhantomActor is the reserved actor id that authors the bootstrap
// defaults change (spec.md §3, §4.7). It is never a real peer.
const PhantomActor = "0000000000"

// PhantomSeq is the sequence number of the one and only phantom change
// any shadow ever applies.
const PhantomSeq = 1

// Namespace is the UUID namespace synthetic makeMap/makeList object ids
// are derived from via uuid.NewSHA1 (spec.md §6).
var Namespace = uuid.MustParse("f1bb7a0b-2d26-48ca-aaa3-92c63bbb5c50")

// NewObjectID deterministically derives a synthetic object id for an
// object created while converting the opIndex'th operation of the
// change (actor, seq) into the patchIndex'th emitted fragment
// (spec.md §4.4: "Synthetic object ids are derived deterministically
// from (actor, seq, opIndex, patchIndex) via a namespaced UUID so every
// peer computes the same id for the same synthesized object").
func NewObjectID(actor string, seq, opIndex, patchIndex int) string {
	name := actor + ":" + strconv.Itoa(seq) + ":" + strconv.Itoa(opIndex) + ":" + strconv.Itoa(patchIndex)
	return uuid.NewSHA1(Namespace, []byte(name)).String()
}
