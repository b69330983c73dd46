// Package jsonschema is the minimal JSON-Schema tree the lens graph
// derives and mutates (spec.md §4.1: "schema_at(name) -> JSONSchema").
// It supports exactly the shapes the lens algebra needs: objects with
// ordered properties, arrays, and scalars with an optional default.
package jsonschema

// Kind is the JSON-Schema "type" this node represents.
type Kind string

const (
	Object Kind = "object"
	Array  Kind = "array"
	Scalar Kind = "scalar"
)

// Schema is one node of a JSON-Schema tree.
//
// Property enumeration order (spec.md §4.7's determinism requirement,
// §9's "Determinism of default patches" note) is insertion order, tracked
// in Order alongside the Properties map. Insertion order was chosen over
// lexical order because it matches the order lens authors write `add`
// primitives in, which is the order a human reading the schema's history
// would expect fields to appear.
type Schema struct {
	Kind       Kind
	Properties map[string]*Schema
	Order      []string
	Items      *Schema
	Default    any
}

// NewObject returns an empty object schema.
func NewObject() *Schema {
	return &Schema{Kind: Object, Properties: map[string]*Schema{}}
}

// NewScalar returns a scalar schema with the given default.
func NewScalar(def any) *Schema {
	return &Schema{Kind: Scalar, Default: def}
}

// NewArray returns an array schema over the given item schema.
func NewArray(items *Schema) *Schema {
	return &Schema{Kind: Array, Items: items, Default: []any{}}
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Kind: s.Kind, Default: s.Default}
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		out.Order = append([]string(nil), s.Order...)
		for k, v := range s.Properties {
			out.Properties[k] = v.Clone()
		}
	}
	if s.Items != nil {
		out.Items = s.Items.Clone()
	}
	return out
}

// WithProperty returns a clone of s with name added to the end of Order
// and set to child, for use by the lens "add" primitive. If name already
// exists its position in Order is preserved and only the schema is
// replaced.
func (s *Schema) WithProperty(name string, child *Schema) *Schema {
	out := s.Clone()
	if out.Properties == nil {
		out.Properties = map[string]*Schema{}
	}
	if _, exists := out.Properties[name]; !exists {
		out.Order = append(out.Order, name)
	}
	out.Properties[name] = child
	return out
}

// WithoutProperty returns a clone of s with name removed, for the lens
// "remove" primitive.
func (s *Schema) WithoutProperty(name string) *Schema {
	out := s.Clone()
	delete(out.Properties, name)
	for i, n := range out.Order {
		if n == name {
			out.Order = append(out.Order[:i], out.Order[i+1:]...)
			break
		}
	}
	return out
}

// WithRenamedProperty returns a clone of s with the property old renamed
// to new, preserving its position in Order.
func (s *Schema) WithRenamedProperty(old, new string) *Schema {
	out := s.Clone()
	child, ok := out.Properties[old]
	if !ok {
		return out
	}
	delete(out.Properties, old)
	out.Properties[new] = child
	for i, n := range out.Order {
		if n == old {
			out.Order[i] = new
			break
		}
	}
	return out
}
