package detectors

import (
	"testing"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/analysis/flow"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

type sink struct {
	findings []schemas.Finding
	errors   []schemas.ErrorRecord
}

func (s *sink) AddFinding(f schemas.Finding)       { s.findings = append(s.findings, f) }
func (s *sink) AddError(rec schemas.ErrorRecord) { s.errors = append(s.errors, rec) }

// analyze runs the default registry over one method of typ.
func analyze(t *testing.T, typ *syntax.TypeDef, m *syntax.MethodDef) *sink {
	t.Helper()
	s := &sink{}
	core.AnalyzeMethod(core.Unit{
		Type:     typ,
		Method:   m,
		Registry: DefaultRegistry(),
		Flow:     flow.Analyze(m),
		Findings: s,
		Errors:   s,
	})
	if len(s.errors) > 0 {
		t.Fatalf("unexpected error records: %v", s.errors)
	}
	return s
}

func method(name string, body ...syntax.Node) *syntax.MethodDef {
	return &syntax.MethodDef{Name: name, Signature: "()V", Body: &syntax.Block{Body: body}}
}

func ldc(offset int, typ syntax.JvmType, v any) *syntax.Expression {
	return &syntax.Expression{Op: syntax.OpLdc, Offset: offset, Operand: syntax.Constant{Value: v}, Type: typ}
}

func load(offset int, name string, typ syntax.JvmType) *syntax.Expression {
	return &syntax.Expression{Op: syntax.OpLoad, Offset: offset, Operand: &syntax.Variable{Name: name, Index: 1}, Type: typ}
}

func this(offset int) *syntax.Expression {
	return &syntax.Expression{Op: syntax.OpLoad, Offset: offset, Operand: &syntax.Variable{Name: "this"}, Type: syntax.TypeObject}
}

func binary(op syntax.Op, offset int, typ syntax.JvmType, left, right *syntax.Expression) *syntax.Expression {
	return &syntax.Expression{Op: op, Offset: offset, Args: []*syntax.Expression{left, right}, Type: typ}
}
