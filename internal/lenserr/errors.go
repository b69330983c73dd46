// Package lenserr collects the typed error kinds spec.md §7 names, so
// callers can distinguish construction-time failures from translation-time
// ones with errors.As instead of string matching.
//
// SoftDrop (spec.md §7) is deliberately absent from this package: it is not
// an error. Functions that may softly drop an operation say so in their doc
// comment and return (nil, nil) in that case.
package lenserr

import "fmt"

// ConstructionError is returned when an engine cannot be built: an unknown
// source schema, or no lens-graph path to the target schema.
type ConstructionError struct {
	Schema string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction error for schema %q: %s", e.Schema, e.Reason)
}

// LensRegistrationError is returned by LensGraph.Register for a duplicate
// "to" schema or an unknown "from" schema.
type LensRegistrationError struct {
	From, To string
	Reason   string
}

func (e *LensRegistrationError) Error() string {
	return fmt.Sprintf("cannot register lens %s -> %s: %s", e.From, e.To, e.Reason)
}

// PathResolutionError is returned when a non-list translation step needs a
// path whose parent object does not exist in the shadow it is resolving
// against.
type PathResolutionError struct {
	Path   string
	Reason string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve path %q: %s", e.Path, e.Reason)
}

// OpShapeError is returned for a patch value that is not scalar/null/empty
// collection, a missing ins reifier during sorting, or an unrecognized op
// action.
type OpShapeError struct {
	Reason string
}

func (e *OpShapeError) Error() string {
	return fmt.Sprintf("op shape error: %s", e.Reason)
}
