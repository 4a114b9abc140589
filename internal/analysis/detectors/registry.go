// Package detectors holds the built-in bug-pattern rules and the registry
// binding them to the syntax nodes they inspect.
package detectors

import (
	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// -- Finding Kinds --

var (
	KindFloatComparison = schemas.FindingKind{Name: "FloatComparison", Category: "Correctness", BaseRank: 40}

	KindConvertCaseWithDefaultLocale = schemas.FindingKind{Name: "ConvertCaseWithDefaultLocale", Category: "Internationalization", BaseRank: 25}

	KindVolatileIncrement = schemas.FindingKind{Name: "VolatileIncrement", Category: "Multithreading", BaseRank: 75}
	KindVolatileMath      = schemas.FindingKind{Name: "VolatileMath", Category: "Multithreading", BaseRank: 75}
)

// Bindings returns the built-in rule bindings in dispatch order.
func Bindings() []core.Binding {
	return []core.Binding{
		{
			Rule:  NewFloatComparisonRule(),
			Ops:   []syntax.Op{syntax.OpCmpEq, syntax.OpCmpNe},
			Kinds: []schemas.FindingKind{KindFloatComparison},
		},
		{
			Rule:  NewConvertCaseRule(),
			Ops:   []syntax.Op{syntax.OpInvokeVirtual},
			Kinds: []schemas.FindingKind{KindConvertCaseWithDefaultLocale},
		},
		{
			Rule: NewVolatileIncrementRule(),
			Ops: []syntax.Op{
				syntax.OpPreIncrement, syntax.OpPostIncrement,
				syntax.OpPutField, syntax.OpPutStatic,
			},
			Kinds: []schemas.FindingKind{KindVolatileIncrement, KindVolatileMath},
		},
	}
}

// DefaultRegistry declares every built-in kind and binds the built-in rules.
func DefaultRegistry() *core.Registry {
	return core.NewRegistry().MustRegister(Bindings()...)
}
