package backend

import "github.com/orionz/cambriamerge/internal/ids"

// Value is what a map key or list element currently holds: either a
// scalar/null, or a reference to a child object (ObjRef non-empty).
// WriterActor/WriterSeq record who wrote it and with which change, so a
// map key can resolve concurrent writers by last-writer-wins (spec.md
// §9) instead of by whichever write happened to apply last.
type Value struct {
	Scalar      any
	ObjRef      string
	WriterActor string
	WriterSeq   int
}

// wins reports whether a write by (actor, seq) should replace the
// current holder of a map key, by seq and then by actor as a
// deterministic tiebreak between two different actors at the same seq.
func wins(actor string, seq int, v Value) bool {
	if v.WriterActor == "" {
		return true
	}
	if seq != v.WriterSeq {
		return seq > v.WriterSeq
	}
	return actor > v.WriterActor
}

// IsObjRef reports whether this value is a reference to a child object.
func (v Value) IsObjRef() bool { return v.ObjRef != "" }

// ElemEntry is one slot of a list object, in list order (each insert
// lands right after its anchor element). Deleted
// elements remain in place as tombstones so later "ins" anchors (which
// address a specific element id) keep resolving correctly.
type ElemEntry struct {
	ID        string
	Value     Value
	Tombstone bool
}

// Object is one map or list object in the opset.
type Object struct {
	Kind  ObjectKind
	Keys  map[string]Value // KindMap
	Elems []ElemEntry       // KindList
}

// Parent is the single inbound reference to an object: which object and
// key/element-id holds it.
type Parent struct {
	Obj string
	Key string
}

// State is the opaque per-shadow backend state spec.md §6 describes via
// its introspection surface (byObject, _keys, _elemIds, _inbound). The
// zero value is not usable; use Init.
type State struct {
	objects map[string]*Object
	inbound map[string]Parent
	clock   map[string]int
}

// Init returns a fresh state containing only the root map object
// (spec.md §3: "Root object id is a fixed all-zero UUID").
func Init() *State {
	return &State{
		objects: map[string]*Object{
			ids.RootID: {Kind: KindMap, Keys: map[string]Value{}},
		},
		inbound: map[string]Parent{},
		clock:   map[string]int{},
	}
}

// Clone returns a deep copy, used by the Change Converter to mutate a
// disposable copy of a shadow's state while walking one block's ops
// (spec.md §4.6).
func (s *State) Clone() *State {
	out := &State{
		objects: make(map[string]*Object, len(s.objects)),
		inbound: make(map[string]Parent, len(s.inbound)),
		clock:   make(map[string]int, len(s.clock)),
	}
	for id, obj := range s.objects {
		out.objects[id] = obj.clone()
	}
	for id, p := range s.inbound {
		out.inbound[id] = p
	}
	for actor, seq := range s.clock {
		out.clock[actor] = seq
	}
	return out
}

func (o *Object) clone() *Object {
	out := &Object{Kind: o.Kind}
	if o.Keys != nil {
		out.Keys = make(map[string]Value, len(o.Keys))
		for k, v := range o.Keys {
			out.Keys[k] = v
		}
	}
	if o.Elems != nil {
		out.Elems = append([]ElemEntry(nil), o.Elems...)
	}
	return out
}

// Clock returns a copy of the per-actor highest sequence number folded
// into this state.
func (s *State) Clock() map[string]int {
	out := make(map[string]int, len(s.clock))
	for k, v := range s.clock {
		out[k] = v
	}
	return out
}

// ObjectKind returns the kind of the object created under id.
func (s *State) ObjectKind(id string) (ObjectKind, bool) {
	obj, ok := s.objects[id]
	if !ok {
		return "", false
	}
	return obj.Kind, true
}

// Inbound returns the single parent reference pointing at id, if any.
// The root object has none.
func (s *State) Inbound(id string) (Parent, bool) {
	p, ok := s.inbound[id]
	return p, ok
}

// MapValue returns the current value of key on the map object obj.
func (s *State) MapValue(obj, key string) (Value, bool) {
	o, ok := s.objects[obj]
	if !ok || o.Kind != KindMap {
		return Value{}, false
	}
	v, ok := o.Keys[key]
	return v, ok
}

// MapKeys returns the current keys of a map object.
func (s *State) MapKeys(obj string) []string {
	o, ok := s.objects[obj]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(o.Keys))
	for k := range o.Keys {
		out = append(out, k)
	}
	return out
}

// ElemValue returns the current value at a list element id, if it is
// live (not tombstoned).
func (s *State) ElemValue(obj, elemID string) (Value, bool) {
	o, ok := s.objects[obj]
	if !ok || o.Kind != KindList {
		return Value{}, false
	}
	for _, e := range o.Elems {
		if e.ID == elemID && !e.Tombstone {
			return e.Value, true
		}
	}
	return Value{}, false
}

// ElemIndex returns the visible (non-tombstoned) index of elemID within
// obj's list, or -1 if elemID is the "_head" sentinel (spec.md §4.3:
// "index_of_elem(list_obj, elem_id) -> int where _head -> -1").
func (s *State) ElemIndex(obj, elemID string) (int, bool) {
	if elemID == "_head" {
		return -1, true
	}
	o, ok := s.objects[obj]
	if !ok || o.Kind != KindList {
		return 0, false
	}
	visible := 0
	for _, e := range o.Elems {
		if e.ID == elemID {
			if e.Tombstone {
				return 0, false
			}
			return visible, true
		}
		if !e.Tombstone {
			visible++
		}
	}
	return 0, false
}

// ElemAt returns the element id at a visible index, or "_head" for -1
// (spec.md §4.3: "elem_of_index(list_obj, index) -> elem_id | null
// where -1 -> _head").
func (s *State) ElemAt(obj string, index int) (string, bool) {
	if index == -1 {
		return "_head", true
	}
	o, ok := s.objects[obj]
	if !ok || o.Kind != KindList {
		return "", false
	}
	visible := 0
	for _, e := range o.Elems {
		if e.Tombstone {
			continue
		}
		if visible == index {
			return e.ID, true
		}
		visible++
	}
	return "", false
}

// VisibleLen returns the number of live elements in a list object.
func (s *State) VisibleLen(obj string) int {
	o, ok := s.objects[obj]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range o.Elems {
		if !e.Tombstone {
			n++
		}
	}
	return n
}

// rawIndexOf returns the position of elemID within Elems (tombstones
// included), or -1 for the "_head" sentinel, so an insert after it
// lands at the front.
func (o *Object) rawIndexOf(elemID string) (int, bool) {
	if elemID == "_head" {
		return -1, true
	}
	for i, e := range o.Elems {
		if e.ID == elemID {
			return i, true
		}
	}
	return 0, false
}
