// Package patchop defines the JSON Patch fragment type that flows between
// the lens stack, the Op<->Patch Translator, and the bootstrap default-value
// computation (spec.md §4.4, §4.7).
//
// Internally a fragment keeps its Value as a plain Go value (nil, bool,
// float64/int, string, []any, or map[string]any) so the translator can
// switch on its shape (scalar vs. empty array vs. empty object) the way
// spec.md §4.4 requires. ToOperation/ToPatch (internal/patchop/wire.go)
// convert fragments into github.com/evanphx/json-patch/v5 Operations; the
// engine does not call them, so backend.Patch.Diffs carries these Op
// values as they are, not an RFC 6902 document.
package patchop

// Kind is a JSON Patch operation verb. Only the three verbs spec.md's
// translator emits or consumes are represented; "move"/"copy"/"test" never
// appear in this pipeline.
type Kind string

const (
	Add     Kind = "add"
	Remove  Kind = "remove"
	Replace Kind = "replace"
)

// Op is one JSON Patch fragment.
type Op struct {
	Kind  Kind
	Path  string
	Value any
}

// IsEmptyObject reports whether v is an empty JSON object, i.e. the shape
// patch->ops (spec.md §4.4) turns into a synthetic makeMap+link pair.
func IsEmptyObject(v any) bool {
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}

// IsEmptyArray reports whether v is an empty JSON array, i.e. the shape
// patch->ops turns into a synthetic makeList+link pair.
func IsEmptyArray(v any) bool {
	a, ok := v.([]any)
	return ok && len(a) == 0
}

// IsScalarOrNull reports whether v is nil, bool, a number, or a string --
// the only other shape patch->ops accepts (spec.md §4.4: "any other value
// shape is an error").
func IsScalarOrNull(v any) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case bool, string, float64, int:
		return true
	default:
		return false
	}
}
