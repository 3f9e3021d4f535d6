package core

// Node is a unit of work in the orchestration graph. Run receives a read-only
// snapshot of the conversation state and returns the partial update to apply.
//
// Implementations must:
//   - Respect rc.Context cancellation
//   - Never mutate the state they receive
//   - Propagate reasoning capability failures unchanged
type Node interface {
	Name() string
	Run(rc *RunContext, state State) (Update, error)
}

// NodeFunc adapts a function into a Node.
type NodeFunc struct {
	NodeName string
	Fn       func(rc *RunContext, state State) (Update, error)
}

// Name implements Node.
func (n NodeFunc) Name() string { return n.NodeName }

// Run implements Node.
func (n NodeFunc) Run(rc *RunContext, state State) (Update, error) { return n.Fn(rc, state) }
