package detectors

import (
	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

const (
	stringType         = "java/lang/String"
	noArgStringSig     = "()Ljava/lang/String;"
	localeArgStringSig = "(Ljava/util/Locale;)Ljava/lang/String;"
)

// ConvertCaseRule flags String.toUpperCase() and String.toLowerCase() calls
// that depend on the platform default locale.
type ConvertCaseRule struct {
	core.BaseRule
}

func NewConvertCaseRule() *ConvertCaseRule {
	return &ConvertCaseRule{
		BaseRule: core.NewBaseRule("Internationalization", "Detects case conversion with the default locale"),
	}
}

func (r *ConvertCaseRule) Visit(node syntax.Node, _ *syntax.Chain, mc *core.MethodContext) (core.Continuation, error) {
	expr, ok := node.(*syntax.Expression)
	if !ok || expr.Op != syntax.OpInvokeVirtual {
		return core.Continue, nil
	}
	m := expr.Method()
	if m == nil || m.Owner != stringType || m.Signature != noArgStringSig {
		return core.Continue, nil
	}
	if m.Name != "toUpperCase" && m.Name != "toLowerCase" {
		return core.Continue, nil
	}
	replacement := schemas.MemberRef{Owner: m.Owner, Name: m.Name, Descriptor: localeArgStringSig}
	mc.Report(KindConvertCaseWithDefaultLocale.Name, 0, expr, schemas.ForReplacement(replacement))
	return core.Continue, nil
}
