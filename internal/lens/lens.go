// Package lens implements the nine lens primitives spec.md §1 names
// (add, remove, rename, wrap, head, hoist, plunge, map, inside) narrowly
// enough to satisfy the lens graph's two call sites: deriving a node's
// JSON-Schema (spec.md §4.1 schema_at) and rewriting a JSON Patch fragment
// stream from one schema's shape into another's (spec.md §4.4, §4.7).
//
// spec.md deliberately keeps the lens algebra itself out of the core's
// scope, consumed through a narrow interface; this package is that
// interface's one concrete implementation, grounded on the wrap/head
// and rename examples spec.md §8 walks through by hand.
package lens

import (
	"strconv"
	"strings"

	"github.com/orionz/cambriamerge/internal/jsonschema"
	"github.com/orionz/cambriamerge/internal/patchop"
)

// Kind identifies which lens primitive an Op performs.
type Kind string

const (
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
	KindRename Kind = "rename"
	KindWrap   Kind = "wrap"
	KindHead   Kind = "head"
	KindPlunge Kind = "plunge"
	KindHoist  Kind = "hoist"
	KindMap    Kind = "map"
	KindInside Kind = "inside"
)

// Op is one lens primitive. Only the fields relevant to Kind are set.
type Op struct {
	Kind Kind

	Name    string // add/remove/wrap/head/map/inside: the property this op targets
	Default any    // add: the default value materialized when the host object is created
	Child   *jsonschema.Schema // add: the schema of the new property

	Old, New string // rename

	Host string // plunge/hoist: the object the property moves into/out of

	Inner Source // map/inside: the nested lens applied under Name (map applies it to the item schema only; its patch rewrite passes fragments through unchanged)
}

// Source is an ordered lens: a sequence of primitives applied left to
// right. The empty Source is the identity lens.
type Source []Op

// Identity is the lens registered for compose(S, S).
func Identity() Source { return Source{} }

// Reverse returns the structurally reversed lens: same primitives,
// individually inverted, applied in the opposite order. Composition is
// not commutative, so reversing order matters: reverse(f;g) = g^-1;f^-1.
func (s Source) Reverse() Source {
	out := make(Source, len(s))
	for i, op := range s {
		out[len(s)-1-i] = op.reverse()
	}
	return out
}

func (op Op) reverse() Op {
	switch op.Kind {
	case KindAdd:
		return Op{Kind: KindRemove, Name: op.Name}
	case KindRemove:
		return Op{Kind: KindAdd, Name: op.Name, Default: op.Default, Child: op.Child}
	case KindRename:
		return Op{Kind: KindRename, Old: op.New, New: op.Old}
	case KindWrap:
		return Op{Kind: KindHead, Name: op.Name}
	case KindHead:
		return Op{Kind: KindWrap, Name: op.Name}
	case KindPlunge:
		return Op{Kind: KindHoist, Host: op.Host, Name: op.Name}
	case KindHoist:
		return Op{Kind: KindPlunge, Name: op.Name, Host: op.Host}
	case KindMap:
		return Op{Kind: KindMap, Name: op.Name, Inner: op.Inner.Reverse()}
	case KindInside:
		return Op{Kind: KindInside, Name: op.Name, Inner: op.Inner.Reverse()}
	default:
		return op
	}
}

// ApplySchema runs the lens forward over a JSON-Schema tree, returning the
// schema of the node at the far end of the edge this lens was registered
// for (spec.md §4.1: "The JSON-Schema of to is derived by running the
// lens against the JSON-Schema of from").
func (s Source) ApplySchema(root *jsonschema.Schema) *jsonschema.Schema {
	for _, op := range s {
		root = op.applySchema(root)
	}
	return root
}

func (op Op) applySchema(root *jsonschema.Schema) *jsonschema.Schema {
	switch op.Kind {
	case KindAdd:
		return root.WithProperty(op.Name, op.Child)
	case KindRemove:
		return root.WithoutProperty(op.Name)
	case KindRename:
		return root.WithRenamedProperty(op.Old, op.New)
	case KindWrap:
		child := root.Properties[op.Name]
		items := child
		if items == nil {
			items = jsonschema.NewScalar(nil)
		}
		arr := jsonschema.NewArray(items)
		if child != nil && child.Default != nil {
			arr.Default = []any{child.Default}
		}
		return root.WithProperty(op.Name, arr)
	case KindHead:
		child := root.Properties[op.Name]
		var scalar *jsonschema.Schema
		var def any
		if child != nil && child.Items != nil {
			scalar = child.Items
			if arr, ok := child.Default.([]any); ok && len(arr) > 0 {
				def = arr[0]
			}
		} else {
			scalar = jsonschema.NewScalar(nil)
		}
		out := scalar.Clone()
		out.Default = def
		return root.WithProperty(op.Name, out)
	case KindPlunge:
		child := root.Properties[op.Name]
		host := root.Properties[op.Host]
		if host == nil {
			host = jsonschema.NewObject()
		}
		newHost := host.WithProperty(op.Name, child)
		return root.WithoutProperty(op.Name).WithProperty(op.Host, newHost)
	case KindHoist:
		host := root.Properties[op.Host]
		if host == nil {
			return root
		}
		child := host.Properties[op.Name]
		newHost := host.WithoutProperty(op.Name)
		return root.WithProperty(op.Host, newHost).WithProperty(op.Name, child)
	case KindMap:
		arr := root.Properties[op.Name]
		if arr == nil || arr.Items == nil {
			return root
		}
		newItems := op.Inner.ApplySchema(arr.Items)
		newArr := arr.Clone()
		newArr.Items = newItems
		return root.WithProperty(op.Name, newArr)
	case KindInside:
		host := root.Properties[op.Name]
		if host == nil {
			host = jsonschema.NewObject()
		}
		newHost := op.Inner.ApplySchema(host)
		return root.WithProperty(op.Name, newHost)
	default:
		return root
	}
}

// ApplyPatch runs the lens forward over a stream of JSON Patch fragments,
// in the author's JSON-Schema, producing the fragment stream the reader's
// schema expects (spec.md §4.6 step 3: "translated-patch = apply lens
// stack to patch with author JSON-Schema"). Each primitive may expand one
// fragment into several (e.g. wrap turns a scalar write into a
// list-creation plus an element write) or drop it entirely (e.g. remove).
func (s Source) ApplyPatch(ops []patchop.Op) []patchop.Op {
	cur := ops
	for _, op := range s {
		next := make([]patchop.Op, 0, len(cur))
		for _, frag := range cur {
			next = append(next, op.applyPatch(frag)...)
		}
		cur = next
	}
	return cur
}

func (op Op) applyPatch(frag patchop.Op) []patchop.Op {
	switch op.Kind {
	case KindAdd:
		return applyAdd(op, frag)
	case KindRemove:
		return applyRemove(op, frag)
	case KindRename:
		return applyRename(op, frag)
	case KindWrap:
		return applyWrap(op, frag)
	case KindHead:
		return applyHead(op, frag)
	case KindPlunge:
		return applyPlunge(op, frag)
	case KindHoist:
		return applyHoist(op, frag)
	case KindMap:
		return []patchop.Op{frag}
	case KindInside:
		return applyInside(op, frag)
	default:
		return []patchop.Op{frag}
	}
}

func applyAdd(op Op, frag patchop.Op) []patchop.Op {
	if frag.Path == "" && frag.Kind == patchop.Add && patchop.IsEmptyObject(frag.Value) {
		return []patchop.Op{frag, {Kind: patchop.Add, Path: "/" + op.Name, Value: op.Default}}
	}
	return []patchop.Op{frag}
}

func applyRemove(op Op, frag patchop.Op) []patchop.Op {
	prefix := "/" + op.Name
	if frag.Path == prefix || strings.HasPrefix(frag.Path, prefix+"/") {
		return nil
	}
	return []patchop.Op{frag}
}

func applyRename(op Op, frag patchop.Op) []patchop.Op {
	oldPrefix := "/" + op.Old
	switch {
	case frag.Path == oldPrefix:
		frag.Path = "/" + op.New
	case strings.HasPrefix(frag.Path, oldPrefix+"/"):
		frag.Path = "/" + op.New + strings.TrimPrefix(frag.Path, oldPrefix)
	}
	return []patchop.Op{frag}
}

func applyWrap(op Op, frag patchop.Op) []patchop.Op {
	path := "/" + op.Name
	if frag.Path != path {
		return []patchop.Op{frag}
	}
	if frag.Kind == patchop.Remove {
		return []patchop.Op{{Kind: patchop.Remove, Path: path}}
	}
	if frag.Value == nil {
		return []patchop.Op{{Kind: patchop.Add, Path: path, Value: []any{}}}
	}
	elemKind := patchop.Replace
	if frag.Kind == patchop.Add {
		elemKind = patchop.Add
	}
	return []patchop.Op{
		{Kind: patchop.Add, Path: path, Value: []any{}},
		{Kind: elemKind, Path: path + "/0", Value: frag.Value},
	}
}

func applyHead(op Op, frag patchop.Op) []patchop.Op {
	path := "/" + op.Name
	if frag.Path == path {
		var v any
		if arr, ok := frag.Value.([]any); ok && len(arr) > 0 {
			v = arr[0]
		}
		return []patchop.Op{{Kind: patchop.Replace, Path: path, Value: v}}
	}
	elemPrefix := path + "/"
	if !strings.HasPrefix(frag.Path, elemPrefix) {
		return []patchop.Op{frag}
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(frag.Path, elemPrefix))
	if err != nil || idx != 0 {
		return nil
	}
	var v any
	if frag.Kind != patchop.Remove {
		v = frag.Value
	}
	return []patchop.Op{{Kind: patchop.Replace, Path: path, Value: v}}
}

func applyPlunge(op Op, frag patchop.Op) []patchop.Op {
	from := "/" + op.Name
	to := "/" + op.Host + "/" + op.Name
	switch {
	case frag.Path == from:
		frag.Path = to
	case strings.HasPrefix(frag.Path, from+"/"):
		frag.Path = to + strings.TrimPrefix(frag.Path, from)
	}
	return []patchop.Op{frag}
}

func applyHoist(op Op, frag patchop.Op) []patchop.Op {
	from := "/" + op.Host + "/" + op.Name
	to := "/" + op.Name
	switch {
	case frag.Path == from:
		frag.Path = to
	case strings.HasPrefix(frag.Path, from+"/"):
		frag.Path = to + strings.TrimPrefix(frag.Path, from)
	}
	return []patchop.Op{frag}
}

func applyInside(op Op, frag patchop.Op) []patchop.Op {
	prefix := "/" + op.Name
	var rel patchop.Op
	switch {
	case frag.Path == prefix:
		rel = patchop.Op{Kind: frag.Kind, Path: "", Value: frag.Value}
	case strings.HasPrefix(frag.Path, prefix+"/"):
		rel = patchop.Op{Kind: frag.Kind, Path: strings.TrimPrefix(frag.Path, prefix), Value: frag.Value}
	default:
		return []patchop.Op{frag}
	}
	results := op.Inner.ApplyPatch([]patchop.Op{rel})
	out := make([]patchop.Op, len(results))
	for i, r := range results {
		if r.Path == "" {
			r.Path = prefix
		} else {
			r.Path = prefix + r.Path
		}
		out[i] = r
	}
	return out
}
