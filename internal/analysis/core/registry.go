package core

import (
	"fmt"
	"slices"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// Shape selects which nodes a rule is invoked on.
type Shape int

const (
	// ShapeAnyNode invokes the rule on every node.
	ShapeAnyNode Shape = iota
	// ShapeExpressions invokes the rule on expression nodes only.
	ShapeExpressions
)

// Binding attaches a rule to the node shape it inspects and declares the
// finding kinds it reports.
type Binding struct {
	Rule  Rule
	Shape Shape
	// Ops optionally restricts an expression-shaped binding to these operations.
	Ops   []syntax.Op
	Kinds []schemas.FindingKind
}

// Accepts reports whether the rule should be invoked on n.
func (b Binding) Accepts(n syntax.Node) bool {
	if b.Shape == ShapeAnyNode && len(b.Ops) == 0 {
		return true
	}
	expr, ok := n.(*syntax.Expression)
	if !ok {
		return false
	}
	return len(b.Ops) == 0 || slices.Contains(b.Ops, expr.Op)
}

// Registry is the static table of finding kinds and rule bindings. It is
// populated once at startup and only read afterwards, which makes it safe to
// share between workers.
type Registry struct {
	kinds    map[string]schemas.FindingKind
	order    []string
	bindings []Binding
	ruleIDs  map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		kinds:   make(map[string]schemas.FindingKind),
		ruleIDs: make(map[string]struct{}),
	}
}

// Declare adds finding kinds. Redeclaring an identical kind is a no-op.
func (r *Registry) Declare(kinds ...schemas.FindingKind) error {
	for _, k := range kinds {
		if k.Name == "" {
			return fmt.Errorf("%w: kind without a name", ErrInvalidBinding)
		}
		if existing, ok := r.kinds[k.Name]; ok {
			if existing != k {
				return fmt.Errorf("%w: %s", ErrDuplicateKind, k.Name)
			}
			continue
		}
		r.kinds[k.Name] = k
		r.order = append(r.order, k.Name)
	}
	return nil
}

// Register declares the binding's kinds and appends it to the dispatch order.
func (r *Registry) Register(b Binding) error {
	if b.Rule == nil || b.Rule.ID() == "" {
		return fmt.Errorf("%w: missing rule or rule ID", ErrInvalidBinding)
	}
	id := b.Rule.ID()
	if _, dup := r.ruleIDs[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, id)
	}
	if err := r.Declare(b.Kinds...); err != nil {
		return fmt.Errorf("rule %s: %w", id, err)
	}
	if len(b.Ops) > 0 {
		b.Shape = ShapeExpressions
	}
	b.Ops = slices.Clone(b.Ops)
	b.Kinds = slices.Clone(b.Kinds)
	r.ruleIDs[id] = struct{}{}
	r.bindings = append(r.bindings, b)
	return nil
}

// MustRegister is Register for static tables built at startup.
func (r *Registry) MustRegister(bindings ...Binding) *Registry {
	for _, b := range bindings {
		if err := r.Register(b); err != nil {
			panic(err)
		}
	}
	return r
}

// Kind resolves a declared finding kind by name.
func (r *Registry) Kind(name string) (schemas.FindingKind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Kinds returns the declared kinds in declaration order.
func (r *Registry) Kinds() []schemas.FindingKind {
	out := make([]schemas.FindingKind, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.kinds[name])
	}
	return out
}

// Bindings returns a copy of the bindings in registration order.
func (r *Registry) Bindings() []Binding {
	return slices.Clone(r.bindings)
}

// RuleIDs returns the registered rule identifiers in registration order.
func (r *Registry) RuleIDs() []string {
	ids := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		ids[i] = b.Rule.ID()
	}
	return ids
}

// Without returns a registry that keeps every declared kind but drops the
// bindings of the given rules. Unknown IDs are ignored.
func (r *Registry) Without(ids ...string) *Registry {
	disabled := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		disabled[id] = struct{}{}
	}
	out := NewRegistry()
	for _, name := range r.order {
		out.kinds[name] = r.kinds[name]
		out.order = append(out.order, name)
	}
	for _, b := range r.bindings {
		if _, found := disabled[b.Rule.ID()]; found {
			continue
		}
		out.ruleIDs[b.Rule.ID()] = struct{}{}
		out.bindings = append(out.bindings, b)
	}
	return out
}
