// Package agent contains the two node kinds of a FileMesh orchestration
// graph:
//
//  1. Worker: a role-scoped node pairing a bounded tool set with the
//     reasoning capability. Each run appends exactly one reply authored by
//     the worker's role.
//  2. Supervisor: the routing node. Each run asks the reasoning capability
//     for one structured choice from the closed menu {FINISH, roles...} and
//     converts it into a core.Route through the shared core.Registry.
//
// Both implement core.Node and flow.FlowAgent; the tool loop and request
// assembly live in the flow package.
package agent
