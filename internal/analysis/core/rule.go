package core

import (
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// Continuation is returned by a rule after visiting a node.
type Continuation int

const (
	// Continue keeps the rule active for the rest of the method.
	Continue Continuation = iota
	// Retire removes the rule from the current method's walk.
	Retire
)

func (c Continuation) String() string {
	if c == Retire {
		return "retire"
	}
	return "continue"
}

// Rule is a bug-pattern callback driven by the Dispatcher. Rules must not keep
// per-method state of their own: the same instance is shared by every method
// and every worker.
type Rule interface {
	ID() string
	// Visit inspects one node and reports candidates through mc. A returned
	// error is recorded and the rule stays active.
	Visit(node syntax.Node, parents *syntax.Chain, mc *MethodContext) (Continuation, error)
}

// BaseRule provides the identity part of a Rule. It is meant to be embedded.
type BaseRule struct {
	id          string
	description string
}

// NewBaseRule creates a BaseRule with the given identifier and description.
func NewBaseRule(id, description string) BaseRule {
	return BaseRule{id: id, description: description}
}

func (b BaseRule) ID() string { return b.id }

func (b BaseRule) Description() string { return b.description }

// VisitFunc is the signature of a function-backed rule.
type VisitFunc func(node syntax.Node, parents *syntax.Chain, mc *MethodContext) (Continuation, error)

type funcRule struct {
	BaseRule
	fn VisitFunc
}

// NewRule adapts a function into a Rule.
func NewRule(id string, fn VisitFunc) Rule {
	return &funcRule{BaseRule: NewBaseRule(id, ""), fn: fn}
}

func (r *funcRule) Visit(node syntax.Node, parents *syntax.Chain, mc *MethodContext) (Continuation, error) {
	return r.fn(node, parents, mc)
}
