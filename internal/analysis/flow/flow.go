// Package flow computes intra-procedural reaching definitions for local
// variables so that a variable read can be traced back to the expression that
// produced its value.
package flow

import (
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// varKey identifies a local variable slot.
type varKey struct {
	name  string
	index int
}

func keyOf(v *syntax.Variable) varKey {
	return varKey{name: v.Name, index: v.Index}
}

// Definition is the abstract value of a variable at a program point. The zero
// value means the variable still holds its entry value.
type Definition struct {
	Value *syntax.Expression
	// Ambiguous is set when more than one definition may reach the point.
	Ambiguous bool
}

// Merge joins two definitions reaching the same point from different paths.
func (d Definition) Merge(other Definition) Definition {
	if d.Ambiguous || other.Ambiguous || d.Value != other.Value {
		return Definition{Ambiguous: true}
	}
	return d
}

// state maps every variable written so far to its current definition.
type state map[varKey]Definition

func (s state) clone() state {
	out := make(state, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// join merges the states of two converging paths. A variable written on only
// one of them may still hold its entry value, so it becomes ambiguous.
func (s state) join(other state) state {
	out := make(state, len(s))
	for k, d := range s {
		if o, ok := other[k]; ok {
			out[k] = d.Merge(o)
		} else {
			out[k] = Definition{Ambiguous: true}
		}
	}
	for k := range other {
		if _, ok := s[k]; !ok {
			out[k] = Definition{Ambiguous: true}
		}
	}
	return out
}

// Resolver answers Source queries for the variable reads of one method. It is
// immutable once built.
type Resolver struct {
	sources map[*syntax.Expression]*syntax.Expression
}

// Analyze computes the definitions reaching every variable read in m.
func Analyze(m *syntax.MethodDef) *Resolver {
	r := &Resolver{sources: make(map[*syntax.Expression]*syntax.Expression)}
	if m == nil || m.Body == nil {
		return r
	}
	r.block(m.Body, state{})
	return r
}

// Source returns the expression whose value a variable read observes, or nil
// when the read is not a variable load or its definition is unknown or ambiguous.
func (r *Resolver) Source(expr *syntax.Expression) syntax.Node {
	if src, ok := r.sources[expr]; ok {
		return src
	}
	return nil
}

// Resolved returns the number of reads with a single known definition.
func (r *Resolver) Resolved() int {
	return len(r.sources)
}

func (r *Resolver) node(n syntax.Node, st state) state {
	switch v := n.(type) {
	case *syntax.Expression:
		if v != nil {
			r.expr(v, st)
		}
	case *syntax.Block:
		if v != nil {
			st = r.block(v, st)
		}
	case *syntax.Condition:
		if v != nil {
			st = r.condition(v, st)
		}
	case *syntax.Loop:
		if v != nil {
			st = r.loop(v, st)
		}
	}
	return st
}

func (r *Resolver) block(b *syntax.Block, st state) state {
	for _, n := range b.Body {
		st = r.node(n, st)
	}
	return st
}

func (r *Resolver) condition(c *syntax.Condition, st state) state {
	if c.Cond != nil {
		r.expr(c.Cond, st)
	}
	thenState, elseState := st.clone(), st.clone()
	if c.Then != nil {
		thenState = r.block(c.Then, thenState)
	}
	if c.Else != nil {
		elseState = r.block(c.Else, elseState)
	}
	return thenState.join(elseState)
}

func (r *Resolver) loop(l *syntax.Loop, st state) state {
	// Anything written in the loop may flow back into its next iteration.
	entry := st.clone()
	for k := range written(l) {
		entry[k] = Definition{Ambiguous: true}
	}
	if l.Cond != nil {
		r.expr(l.Cond, entry)
	}
	if l.Body == nil {
		return entry
	}
	exit := r.block(l.Body, entry.clone())
	return entry.join(exit)
}

// expr evaluates arguments left to right before the expression itself.
func (r *Resolver) expr(e *syntax.Expression, st state) {
	for _, a := range e.Args {
		if a != nil {
			r.expr(a, st)
		}
	}
	v := e.Variable()
	if v == nil {
		return
	}
	switch e.Op {
	case syntax.OpLoad:
		if d, ok := st[keyOf(v)]; ok && !d.Ambiguous && d.Value != nil {
			r.sources[e] = d.Value
		}
	case syntax.OpStore:
		st[keyOf(v)] = Definition{Value: r.resolve(e.Arg(0))}
	case syntax.OpPreIncrement, syntax.OpPostIncrement:
		st[keyOf(v)] = Definition{Value: e}
	}
}

// resolve follows copies between variables to the original value.
func (r *Resolver) resolve(value *syntax.Expression) *syntax.Expression {
	if value == nil {
		return nil
	}
	if value.Op == syntax.OpLoad {
		if src, ok := r.sources[value]; ok {
			return src
		}
	}
	return value
}

// written collects the variables assigned anywhere under n.
func written(n syntax.Node) map[varKey]struct{} {
	out := make(map[varKey]struct{})
	syntax.Walk(n, func(n syntax.Node, _ *syntax.Chain) bool {
		e, ok := n.(*syntax.Expression)
		if !ok {
			return true
		}
		switch e.Op {
		case syntax.OpStore, syntax.OpPreIncrement, syntax.OpPostIncrement:
			if v := e.Variable(); v != nil {
				out[keyOf(v)] = struct{}{}
			}
		}
		return true
	})
	return out
}
