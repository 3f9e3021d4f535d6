package core

import (
	"encoding/json"
	"fmt"
)

// FinishToken is the routing token that ends a run.
const FinishToken = "FINISH"

// RouteKind discriminates the Route variants.
type RouteKind uint8

const (
	// RouteUnset is the zero value; no decision has been made yet.
	RouteUnset RouteKind = iota
	// RouteRole dispatches to a registered worker role.
	RouteRole
	// RouteFinish terminates the run.
	RouteFinish
)

// Route is a closed variant over {registered role, Finish}. Role routes can
// only be obtained from Registry.Parse, so every Route names a valid target of
// the registry it came from.
type Route struct {
	kind RouteKind
	role string
}

// Finish is the terminal route.
var Finish = Route{kind: RouteFinish}

// Kind returns the variant.
func (r Route) Kind() RouteKind { return r.kind }

// Role returns the worker role; empty unless Kind is RouteRole.
func (r Route) Role() string { return r.role }

// IsFinish reports whether r terminates the run.
func (r Route) IsFinish() bool { return r.kind == RouteFinish }

// IsSet reports whether a decision has been recorded.
func (r Route) IsSet() bool { return r.kind != RouteUnset }

// String returns the wire token of the route.
func (r Route) String() string {
	switch r.kind {
	case RouteRole:
		return r.role
	case RouteFinish:
		return FinishToken
	default:
		return ""
	}
}

// MarshalJSON encodes the route as its token.
func (r Route) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// MarshalYAML encodes the route as its token.
func (r Route) MarshalYAML() (any, error) {
	return r.String(), nil
}

// GoString supports %#v in test failure output.
func (r Route) GoString() string {
	return fmt.Sprintf("core.Route{%s}", r.String())
}
