package core

import (
	"fmt"
	"slices"
	"strings"
)

// Reserved node names that cannot be used as worker roles.
const (
	SupervisorNode = "Supervisor"
	StartNode      = "__start__"
	EndNode        = "__end__"
)

// Registry is the fixed, closed set of worker roles. The graph's node set and
// the supervisor's menu are both derived from the same Registry.
type Registry struct {
	roles []string
	index map[string]struct{}
}

// NewRegistry validates and freezes the role set. Order of registration is
// preserved and defines the order of the routing menu.
func NewRegistry(roles ...string) (*Registry, error) {
	if len(roles) == 0 {
		return nil, NewError(KindInvariant, "", fmt.Errorf("registry: at least one role is required"))
	}

	r := &Registry{roles: make([]string, 0, len(roles)), index: make(map[string]struct{}, len(roles))}

	for _, role := range roles {
		switch {
		case strings.TrimSpace(role) == "":
			return nil, NewError(KindInvariant, "", fmt.Errorf("registry: empty role name"))
		case role != strings.TrimSpace(role):
			return nil, NewError(KindInvariant, "", fmt.Errorf("registry: role %q has surrounding whitespace", role))
		case isReserved(role):
			return nil, NewError(KindInvariant, "", fmt.Errorf("registry: role %q is reserved", role))
		}

		if _, dup := r.index[role]; dup {
			return nil, NewError(KindInvariant, "", fmt.Errorf("registry: duplicate role %q", role))
		}

		r.index[role] = struct{}{}
		r.roles = append(r.roles, role)
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for
// package-level fixtures and tests.
func MustRegistry(roles ...string) *Registry {
	r, err := NewRegistry(roles...)
	if err != nil {
		panic(err)
	}
	return r
}

func isReserved(name string) bool {
	return name == FinishToken || name == SupervisorNode || name == StartNode || name == EndNode
}

// Roles returns a copy of the registered roles.
func (r *Registry) Roles() []string { return slices.Clone(r.roles) }

// Contains reports whether role is registered.
func (r *Registry) Contains(role string) bool {
	_, ok := r.index[role]
	return ok
}

// Menu returns the closed option set offered to the supervisor: FINISH
// followed by the roles.
func (r *Registry) Menu() []string {
	return append([]string{FinishToken}, r.roles...)
}

// Parse converts a raw token into a Route. An empty token is a malformed
// decision (capability error); a well-formed token outside the menu is an
// invariant violation.
func (r *Registry) Parse(token string) (Route, error) {
	token = strings.TrimSpace(token)

	switch {
	case token == "":
		return Route{}, NewError(KindCapability, SupervisorNode, ErrMalformedDecision)
	case token == FinishToken:
		return Finish, nil
	case r.Contains(token):
		return Route{kind: RouteRole, role: token}, nil
	default:
		return Route{}, NewError(KindInvariant, SupervisorNode, fmt.Errorf("%w: %q", ErrUnknownRoute, token))
	}
}
