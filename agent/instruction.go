package agent

import (
	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(rc *core.RunContext, state core.State) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.RunContext, core.State) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext, state core.State) (string, error) { return f(rc, state) }

// Instruction represents either a static instruction template or a dynamic provider.
//
// Static text is rendered with text/template against the node's prompt data
// (e.g. {{.role}}, {{join ", " .members}}); provider output is used verbatim.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext, core.State) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether neither text nor provider is set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext, state core.State, data map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc, state)
	}
	return util.RenderTemplate(i.text, data)
}
