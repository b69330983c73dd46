package patchop

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ToOperation converts an internal fragment into a real RFC 6902 operation
// from github.com/evanphx/json-patch/v5, the library the wider retrieval
// pack's own JSON-Patch-over-CRDT examples (Contramund-ReplicationHW,
// ProlificLabs-autosync) reach for.
func (o Op) ToOperation() (jsonpatch.Operation, error) {
	m := map[string]*json.RawMessage{}

	if err := putRaw(m, "op", string(o.Kind)); err != nil {
		return nil, err
	}
	if err := putRaw(m, "path", o.Path); err != nil {
		return nil, err
	}
	if o.Kind != Remove {
		if err := putRaw(m, "value", o.Value); err != nil {
			return nil, err
		}
	}

	return jsonpatch.Operation(m), nil
}

// ToPatch converts a fragment list into a jsonpatch.Patch. The engine
// does not call it: backend.Patch.Diffs holds the fragments as []Op.
func ToPatch(ops []Op) (jsonpatch.Patch, error) {
	out := make(jsonpatch.Patch, 0, len(ops))
	for _, o := range ops {
		operation, err := o.ToOperation()
		if err != nil {
			return nil, err
		}
		out = append(out, operation)
	}
	return out, nil
}

func putRaw(m map[string]*json.RawMessage, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw := json.RawMessage(b)
	m[key] = &raw
	return nil
}
