package core

import "time"

// TraceEntry is the state observed immediately after one node ran.
type TraceEntry struct {
	Step     int           `json:"step" yaml:"step"`
	Node     string        `json:"node" yaml:"node"`
	State    State         `json:"state" yaml:"state"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Trace is the ordered log of per-step snapshots of one run.
type Trace []TraceEntry

// Nodes returns the node names in execution order.
func (t Trace) Nodes() []string {
	nodes := make([]string, len(t))
	for i, e := range t {
		nodes[i] = e.Node
	}
	return nodes
}

// LastWorkerReply returns the most recent message authored by a worker,
// i.e. the last message of the last non-supervisor entry written by that
// entry's node.
func (t Trace) LastWorkerReply() (Message, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		e := t[i]
		if e.Node == SupervisorNode {
			continue
		}

		if last, ok := e.State.Last(); ok && last.Author == e.Node {
			return last, true
		}
	}

	return Message{}, false
}
