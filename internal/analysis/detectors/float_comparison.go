package detectors

import (
	"math"
	"math/big"
	"strings"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// FloatComparisonRule flags exact equality tests between floating point
// values. The rank is lowered when one side is a constant that is usually
// represented exactly, or the result of a rounding call.
type FloatComparisonRule struct {
	core.BaseRule
}

func NewFloatComparisonRule() *FloatComparisonRule {
	return &FloatComparisonRule{
		BaseRule: core.NewBaseRule("FloatingPointComparison", "Detects == and != on float or double values"),
	}
}

func (r *FloatComparisonRule) Visit(node syntax.Node, _ *syntax.Chain, mc *core.MethodContext) (core.Continuation, error) {
	expr, ok := node.(*syntax.Expression)
	if !ok || (expr.Op != syntax.OpCmpEq && expr.Op != syntax.OpCmpNe) {
		return core.Continue, nil
	}
	left, right := expr.Arg(0), expr.Arg(1)
	if left == nil || right == nil || !left.Type.IsFloating() {
		return core.Continue, nil
	}

	adjustment := tweakRank(left) + tweakRank(right)
	if strings.Contains(strings.ToLower(mc.Method().Name), "equal") {
		adjustment -= 20
	}

	if n, found := constantNumber(left); found {
		mc.Report(KindFloatComparison.Name, adjustment, expr, schemas.ForNumber(n))
	} else if n, found := constantNumber(right); found {
		mc.Report(KindFloatComparison.Name, adjustment, expr, schemas.ForNumber(n))
	} else {
		mc.Report(KindFloatComparison.Name, adjustment, expr)
	}
	return core.Continue, nil
}

// tweakRank scores one side of the comparison.
func tweakRank(e *syntax.Expression) int {
	if c, ok := e.Constant(); ok {
		if v, isFloat := c.Value.(float64); isFloat {
			return constantTweak(v)
		}
	}
	if e.Op == syntax.OpInvokeStatic {
		if m := e.Method(); m != nil {
			switch m.Name {
			case "floor", "round", "rint":
				if m.Owner == "java/lang/Math" {
					return -50
				}
				return -35
			}
		}
	}
	return 0
}

func constantTweak(v float64) int {
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return -50
	}
	switch math.Abs(v) {
	case 1, 2, math.MaxFloat64, math.SmallestNonzeroFloat64:
		return -30
	}
	switch prec := decimalPrecision(v); {
	case prec < 3:
		return -25
	case prec < 7:
		return -20
	case prec < 10:
		return -15
	}
	return -5
}

// decimalPrecision counts the significant digits of the exact decimal
// expansion of v. Integral values keep their trailing zeros.
func decimalPrecision(v float64) int {
	r := new(big.Rat).SetFloat64(v)
	if r == nil {
		return 0
	}
	// The denominator of a finite double is a power of two, so the expansion
	// has exactly that many fractional digits.
	scale := r.Denom().BitLen() - 1
	digits := r.FloatString(scale)
	digits = strings.TrimPrefix(digits, "-")
	digits = strings.Replace(digits, ".", "", 1)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return 1
	}
	return len(digits)
}

// constantNumber returns the literal of a constant operand as annotation evidence.
func constantNumber(e *syntax.Expression) (schemas.Number, bool) {
	c, ok := e.Constant()
	if !ok {
		return schemas.Number{}, false
	}
	kind := e.Type.String()
	switch v := c.Value.(type) {
	case float64:
		return schemas.FloatNumber(kind, v), true
	case int64:
		return schemas.IntNumber(kind, v), true
	}
	return schemas.Number{}, false
}
