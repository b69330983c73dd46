// Package resolver implements the Path/Id Resolver spec.md §4.3
// describes: translating between JSON paths and object ids, and
// between list indices and element ids, by walking a backend state's
// inbound-parent links. It never mutates the state it reads.
package resolver

import (
	"strconv"
	"strings"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/ids"
)

// R resolves paths and ids against a single backend state snapshot.
type R struct {
	state *backend.State
}

// New wraps state for path/id resolution.
func New(state *backend.State) *R {
	return &R{state: state}
}

// PathOf returns the JSON path segments from root to objID, by walking
// the chain of inbound parent links. Returns nil if objID is unknown
// or unreachable from root.
func (r *R) PathOf(objID string) ([]string, bool) {
	if objID == ids.RootID {
		return []string{}, true
	}
	var segments []string
	cur := objID
	for {
		parent, ok := r.state.Inbound(cur)
		if !ok {
			return nil, false
		}
		kind, ok := r.state.ObjectKind(parent.Obj)
		if !ok {
			return nil, false
		}
		if kind == backend.KindList {
			idx, ok := r.state.ElemIndex(parent.Obj, parent.Key)
			if !ok {
				return nil, false
			}
			segments = append([]string{strconv.Itoa(idx)}, segments...)
		} else {
			segments = append([]string{parent.Key}, segments...)
		}
		if parent.Obj == ids.RootID {
			return segments, true
		}
		cur = parent.Obj
	}
}

// ObjIDOf descends from root through path, translating list segments
// through index_of->elem_id before following the element's value.
// Returns false if any segment fails to resolve to a child object.
func (r *R) ObjIDOf(path []string) (string, bool) {
	cur := ids.RootID
	for _, segment := range path {
		kind, ok := r.state.ObjectKind(cur)
		if !ok {
			return "", false
		}
		var v backend.Value
		switch kind {
		case backend.KindMap:
			v, ok = r.state.MapValue(cur, segment)
			if !ok {
				return "", false
			}
		case backend.KindList:
			idx, err := strconv.Atoi(segment)
			if err != nil {
				return "", false
			}
			elemID, ok2 := r.state.ElemAt(cur, idx)
			if !ok2 {
				return "", false
			}
			v, ok = r.state.ElemValue(cur, elemID)
			if !ok {
				return "", false
			}
		default:
			return "", false
		}
		if !v.IsObjRef() {
			return "", false
		}
		cur = v.ObjRef
	}
	return cur, true
}

// IndexOfElem returns the visible index of elemID within listObj's
// list, where the "_head" sentinel maps to -1 (spec.md §4.3).
func (r *R) IndexOfElem(listObj, elemID string) (int, bool) {
	return r.state.ElemIndex(listObj, elemID)
}

// ElemOfIndex returns the element id at a visible index within
// listObj's list, where -1 maps to the "_head" sentinel (spec.md
// §4.3).
func (r *R) ElemOfIndex(listObj string, index int) (string, bool) {
	return r.state.ElemAt(listObj, index)
}

// SplitPointer splits an RFC 6901 JSON Pointer ("/a/0/b") into decoded
// segments. An empty pointer (the document root) yields an empty
// slice.
func SplitPointer(pointer string) []string {
	if pointer == "" || pointer == "/" {
		return []string{}
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = unescapeToken(p)
	}
	return out
}

// JoinPointer encodes segments into an RFC 6901 JSON Pointer.
func JoinPointer(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escapeToken(s)
	}
	return "/" + strings.Join(escaped, "/")
}

func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}

func escapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	tok = strings.ReplaceAll(tok, "/", "~1")
	return tok
}
