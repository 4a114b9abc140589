package detectors

import (
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// VolatileIncrementRule flags read-modify-write sequences on volatile fields,
// which are not atomic.
type VolatileIncrementRule struct {
	core.BaseRule
}

func NewVolatileIncrementRule() *VolatileIncrementRule {
	return &VolatileIncrementRule{
		BaseRule: core.NewBaseRule("VolatileIncrement", "Detects non-atomic updates of volatile fields"),
	}
}

func (r *VolatileIncrementRule) Visit(node syntax.Node, _ *syntax.Chain, mc *core.MethodContext) (core.Continuation, error) {
	expr, ok := node.(*syntax.Expression)
	if !ok {
		return core.Continue, nil
	}
	switch expr.Op {
	case syntax.OpPreIncrement, syntax.OpPostIncrement:
		arg := expr.Arg(0)
		if arg == nil || (arg.Op != syntax.OpGetField && arg.Op != syntax.OpGetStatic) {
			break
		}
		if field := resolveField(mc, arg.Field()); field != nil && field.Volatile {
			reportVolatileUpdate(mc, expr, field, true)
		}
	case syntax.OpPutField, syntax.OpPutStatic:
		field := resolveField(mc, expr.Field())
		if field == nil || !field.Volatile {
			break
		}
		valueIdx := 1
		if expr.Op == syntax.OpPutStatic {
			valueIdx = 0
		}
		value := expr.Arg(valueIdx)
		if value == nil || !value.Op.IsBinaryMath() {
			break
		}
		self := syntax.Receiver(expr)
		for _, operand := range []*syntax.Expression{value.Arg(0), value.Arg(1)} {
			if readsField(operand, expr.Field()) && syntax.Equivalent(self, syntax.Receiver(operand)) {
				reportVolatileUpdate(mc, expr, field, value.Op == syntax.OpAdd)
			}
		}
	}
	return core.Continue, nil
}

// resolvedField is what the rule needs to know about a referenced field.
type resolvedField struct {
	Volatile bool
	Type     syntax.JvmType
}

// resolveField merges the flags carried by the reference with the declaration
// when the field belongs to the analyzed type.
func resolveField(mc *core.MethodContext, ref *syntax.FieldRef) *resolvedField {
	if ref == nil {
		return nil
	}
	out := &resolvedField{Volatile: ref.Volatile, Type: ref.Type}
	if t := mc.Type(); t != nil && t.InternalName == ref.Owner {
		if def := t.Field(ref.Name); def != nil {
			out.Volatile = out.Volatile || def.Volatile
			if out.Type == syntax.TypeNone {
				out.Type = def.Type
			}
		}
	}
	return out
}

func readsField(e *syntax.Expression, field *syntax.FieldRef) bool {
	if e == nil || (e.Op != syntax.OpGetField && e.Op != syntax.OpGetStatic) {
		return false
	}
	return e.Field().SameField(field)
}

func reportVolatileUpdate(mc *core.MethodContext, expr *syntax.Expression, field *resolvedField, increment bool) {
	kind := KindVolatileMath.Name
	if increment {
		kind = KindVolatileIncrement.Name
	}
	adjustment := 0
	if field.Type.IsWide() {
		adjustment = 10
	}
	mc.Report(kind, adjustment, expr)
}
