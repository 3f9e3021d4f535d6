// Package graph implements the orchestration state machine: a directed graph
// of named nodes whose edges are either static or chosen by a router reading
// the conversation state.
//
// Build a graph with StateGraph, validate it with Compile and execute it with
// Compiled.Stream. NewSupervisorGraph wires the FileMesh topology:
//
//	START -> Supervisor
//	<worker> -> Supervisor          (for every registered role)
//	Supervisor -> <worker> | END    (chosen from state.Next)
//
// Nodes run strictly sequentially. After every node the compiled graph
// validates the node's update, applies it to the shared state and yields a
// snapshot, so a run's trace is always in execution order.
package graph
