// internal/analysis/core/helpers_test.go
package core

import (
	"sync"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// -- Test Fixtures --

var (
	kindA = schemas.FindingKind{Name: "KindA", Category: "Correctness", BaseRank: 40}
	kindB = schemas.FindingKind{Name: "KindB", Category: "BadPractice", BaseRank: 10}
)

type recordingFindings struct {
	mu       sync.Mutex
	findings []schemas.Finding
}

func (r *recordingFindings) AddFinding(f schemas.Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, f)
}

func (r *recordingFindings) all() []schemas.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.Finding(nil), r.findings...)
}

type recordingErrors struct {
	mu      sync.Mutex
	records []schemas.ErrorRecord
}

func (r *recordingErrors) AddError(rec schemas.ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingErrors) all() []schemas.ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.ErrorRecord(nil), r.records...)
}

type countingMetrics struct {
	emitted, vetoed int
	dropped         map[string]int
	errors          map[schemas.ErrorKind]int
	retired         []string
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: map[string]int{}, errors: map[schemas.ErrorKind]int{}}
}

func (m *countingMetrics) FindingEmitted(schemas.FindingKind) { m.emitted++ }
func (m *countingMetrics) FindingVetoed(schemas.FindingKind)  { m.vetoed++ }
func (m *countingMetrics) CandidateDropped(reason string)     { m.dropped[reason]++ }
func (m *countingMetrics) ErrorRecorded(kind schemas.ErrorKind) {
	m.errors[kind]++
}
func (m *countingMetrics) RuleRetired(id string) { m.retired = append(m.retired, id) }

// mapFlow resolves variable loads through a fixed table.
type mapFlow map[*syntax.Expression]syntax.Node

func (f mapFlow) Source(expr *syntax.Expression) syntax.Node { return f[expr] }

// checkerFunc adapts a function to Checker.
type checkerFunc func(schemas.Finding) bool

func (c checkerFunc) CheckFinding(f schemas.Finding) bool { return c(f) }

func testType() *syntax.TypeDef {
	return &syntax.TypeDef{InternalName: "com/example/Foo", SourceFile: "Foo.java"}
}

func testMethod(body ...syntax.Node) *syntax.MethodDef {
	return &syntax.MethodDef{
		Name:      "run",
		Signature: "()V",
		Body:      &syntax.Block{Body: body},
		Lines:     syntax.LineTable{{Offset: 0, Line: 10}, {Offset: 5, Line: 11}, {Offset: 12, Line: 14}},
	}
}

func testRegistry(bindings ...Binding) *Registry {
	r := NewRegistry()
	if err := r.Declare(kindA, kindB); err != nil {
		panic(err)
	}
	return r.MustRegister(bindings...)
}

func loc(offset, line int) *schemas.Location {
	return &schemas.Location{Offset: offset, Line: line}
}

func expr(op syntax.Op, offset int, args ...*syntax.Expression) *syntax.Expression {
	return &syntax.Expression{Op: op, Offset: offset, Args: args}
}
