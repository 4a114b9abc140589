package core

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// handler is a rule binding plus its lifecycle state for one method.
type handler struct {
	binding Binding
	retired bool
}

// Dispatcher drives the active rules over one method's tree. A Dispatcher is
// built for every method from the full binding list, so a rule retired in one
// method is active again in the next.
type Dispatcher struct {
	handlers []*handler
}

// NewDispatcher creates a dispatcher with every binding active, in order.
func NewDispatcher(bindings []Binding) *Dispatcher {
	handlers := make([]*handler, 0, len(bindings))
	for _, b := range bindings {
		handlers = append(handlers, &handler{binding: b})
	}
	return &Dispatcher{handlers: handlers}
}

// Active returns the IDs of the rules that have not retired.
func (d *Dispatcher) Active() []string {
	ids := make([]string, 0, len(d.handlers))
	for _, h := range d.handlers {
		ids = append(ids, h.binding.Rule.ID())
	}
	return ids
}

// Walk visits root in pre-order and invokes every active rule accepting each
// node, in registration order. Rule failures are recorded through mc and never
// interrupt the walk. Once every rule has retired the remaining nodes are
// skipped since nothing could observe them.
func (d *Dispatcher) Walk(root syntax.Node, mc *MethodContext) {
	if len(d.handlers) == 0 {
		return
	}
	syntax.Walk(root, func(n syntax.Node, parents *syntax.Chain) bool {
		d.visit(n, parents, mc)
		return len(d.handlers) > 0
	})
	mc.currentRule = ""
}

func (d *Dispatcher) visit(n syntax.Node, parents *syntax.Chain, mc *MethodContext) {
	retired := false
	for _, h := range d.handlers {
		if !h.binding.Accepts(n) {
			continue
		}
		cont, err := d.invoke(h, n, parents, mc)
		if err != nil {
			mc.recordError(schemas.ErrorRuleRuntime, err)
			continue
		}
		if cont == Retire {
			h.retired = true
			retired = true
			mc.metrics.RuleRetired(h.binding.Rule.ID())
			mc.logger.Debug("Rule retired", zap.String("rule", h.binding.Rule.ID()))
		}
	}
	if retired {
		active := d.handlers[:0]
		for _, h := range d.handlers {
			if !h.retired {
				active = append(active, h)
			}
		}
		clear(d.handlers[len(active):])
		d.handlers = active
	}
}

// invoke calls the rule and converts a panic into an error.
func (d *Dispatcher) invoke(h *handler, n syntax.Node, parents *syntax.Chain, mc *MethodContext) (cont Continuation, err error) {
	rule := h.binding.Rule
	mc.currentRule = rule.ID()
	defer func() {
		if r := recover(); r != nil {
			err = &RulePanic{RuleID: rule.ID(), Value: r, Stack: debug.Stack()}
		}
	}()
	cont, err = rule.Visit(n, parents, mc)
	if err != nil {
		err = fmt.Errorf("visiting %s: %w", describe(n), err)
	}
	return cont, err
}

func describe(n syntax.Node) string {
	switch v := n.(type) {
	case *syntax.Expression:
		return v.Op.String()
	case *syntax.Block:
		return "block"
	case *syntax.Condition:
		return "condition"
	case *syntax.Loop:
		return "loop"
	}
	return fmt.Sprintf("%T", n)
}

// AnalyzeMethod runs the full per-method pipeline: a fresh dispatcher walks
// the method body and the pending aggregate is flushed at the end.
func AnalyzeMethod(u Unit) {
	mc := NewMethodContext(u)
	if u.Method.Body != nil {
		NewDispatcher(mc.registry.Bindings()).Walk(u.Method.Body, mc)
	}
	mc.Finish()
}
