package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// Unit describes one method to analyze together with its collaborators.
// Every field except Type, Method and Registry is optional.
type Unit struct {
	Type     *syntax.TypeDef
	Method   *syntax.MethodDef
	Registry *Registry

	Flow     ValueFlow
	Checker  Checker
	Findings FindingSink
	Errors   ErrorSink
	Metrics  Metrics
	Logger   *zap.Logger
}

// MethodContext is the analysis state of a single method: its pending
// aggregate, its line resolver and its cached evidence. It is created per
// method, used by one goroutine, and discarded when the method is finished.
type MethodContext struct {
	typ      *syntax.TypeDef
	method   *syntax.MethodDef
	registry *Registry
	flow     ValueFlow
	checker  Checker
	findings FindingSink
	errors   ErrorSink
	metrics  Metrics
	logger   *zap.Logger

	methodRef string
	lines     *LineResolver
	agg       *Aggregator

	typeEvidence   schemas.AnnotationSet
	methodEvidence schemas.AnnotationSet

	// currentRule is the ID of the rule being invoked by the dispatcher.
	currentRule string
	finished    bool
}

// NewMethodContext prepares the per-method state for u.
func NewMethodContext(u Unit) *MethodContext {
	mc := &MethodContext{
		typ:      u.Type,
		method:   u.Method,
		registry: u.Registry,
		flow:     u.Flow,
		checker:  u.Checker,
		findings: u.Findings,
		errors:   u.Errors,
		metrics:  u.Metrics,
		logger:   u.Logger,
	}
	if mc.registry == nil {
		mc.registry = NewRegistry()
	}
	if mc.flow == nil {
		mc.flow = noFlow{}
	}
	if mc.checker == nil {
		mc.checker = approveAll{}
	}
	if mc.findings == nil {
		mc.findings = discardFindings{}
	}
	if mc.errors == nil {
		mc.errors = discardErrors{}
	}
	if mc.metrics == nil {
		mc.metrics = noMetrics{}
	}
	if mc.logger == nil {
		mc.logger = zap.NewNop()
	}
	mc.methodRef = u.Type.Ref(u.Method)
	mc.logger = mc.logger.With(zap.String("method", mc.methodRef))
	mc.lines = NewLineResolver(u.Method.Lines)
	mc.agg = NewAggregator(mc.emit)
	return mc
}

func (mc *MethodContext) Type() *syntax.TypeDef     { return mc.typ }
func (mc *MethodContext) Method() *syntax.MethodDef { return mc.method }
func (mc *MethodContext) MethodRef() string         { return mc.methodRef }
func (mc *MethodContext) Logger() *zap.Logger       { return mc.logger }

// Line resolves an offset of this method to a source line.
func (mc *MethodContext) Line(offset int) int {
	return mc.lines.Resolve(offset)
}

// Report submits a candidate finding of the named kind for node. The location
// and node evidence (variable, field or invoked method) are derived from node
// when it is an expression; extra annotations are appended after them.
func (mc *MethodContext) Report(kind string, rankAdjustment int, node syntax.Node, extra ...schemas.Annotation) {
	fk, rank, ok := mc.admit(kind, rankAdjustment)
	if !ok {
		return
	}
	var loc *schemas.Location
	var evidence schemas.AnnotationSet
	if expr, isExpr := node.(*syntax.Expression); isExpr && expr != nil {
		loc = mc.lines.Location(expr.Offset)
		evidence = mc.nodeEvidence(expr)
	}
	mc.submit(fk, rank, loc, evidence, extra)
}

// Submit submits a candidate finding at an explicit location, which may be nil.
// No node evidence is derived.
func (mc *MethodContext) Submit(kind string, rankAdjustment int, loc *schemas.Location, extra ...schemas.Annotation) {
	fk, rank, ok := mc.admit(kind, rankAdjustment)
	if !ok {
		return
	}
	if loc != nil {
		l := *loc
		loc = &l
	}
	mc.submit(fk, rank, loc, nil, extra)
}

// Error records a configuration problem detected by a rule.
func (mc *MethodContext) Error(message string) {
	mc.recordError(schemas.ErrorConfiguration, errors.New(message))
}

// Finish flushes the pending aggregate and lets the checker finalize. It is
// idempotent.
func (mc *MethodContext) Finish() {
	if mc.finished {
		return
	}
	mc.finished = true
	mc.agg.Flush()
	if f, ok := mc.checker.(MethodFinisher); ok {
		f.FinishMethod()
	}
}

// admit resolves the kind and applies the confidence floor.
func (mc *MethodContext) admit(kind string, rankAdjustment int) (schemas.FindingKind, int, bool) {
	fk, ok := mc.registry.Kind(kind)
	if !ok {
		mc.metrics.CandidateDropped(DropUnknownKind)
		mc.recordError(schemas.ErrorConfiguration, fmt.Errorf("%w: %q", ErrUnknownKind, kind))
		return schemas.FindingKind{}, 0, false
	}
	rank := fk.BaseRank + rankAdjustment
	if rank < 0 {
		mc.metrics.CandidateDropped(DropLowConfidence)
		return schemas.FindingKind{}, 0, false
	}
	return fk, rank, true
}

func (mc *MethodContext) submit(kind schemas.FindingKind, rank int, loc *schemas.Location, evidence, extra schemas.AnnotationSet) {
	typeEv := mc.typeAnnotations()
	methodEv := mc.methodAnnotations()
	annotations := make(schemas.AnnotationSet, 0, len(typeEv)+len(methodEv)+len(evidence)+len(extra))
	annotations = append(annotations, typeEv...)
	annotations = append(annotations, methodEv...)
	annotations = append(annotations, evidence...)
	annotations = append(annotations, extra...)
	mc.agg.add(candidate{kind: kind, rank: rank, location: loc, annotations: annotations})
}

func (mc *MethodContext) typeAnnotations() schemas.AnnotationSet {
	if mc.typeEvidence == nil && mc.typ != nil {
		mc.typeEvidence = schemas.AnnotationSet{schemas.ForType(mc.typ.InternalName)}
		if mc.typ.SourceFile != "" {
			mc.typeEvidence = append(mc.typeEvidence, schemas.ForSourceFile(mc.typ.SourceFile))
		}
	}
	return mc.typeEvidence
}

func (mc *MethodContext) methodAnnotations() schemas.AnnotationSet {
	if mc.methodEvidence == nil {
		mc.methodEvidence = schemas.AnnotationSet{schemas.ForMethod(mc.typ.Member(mc.method))}
	}
	return mc.methodEvidence
}

// nodeEvidence describes what the expression reads. A variable read is
// followed to its definition so the field or call that produced the value is
// reported too.
func (mc *MethodContext) nodeEvidence(expr *syntax.Expression) schemas.AnnotationSet {
	var out schemas.AnnotationSet
	operand := expr.Operand
	if v, ok := operand.(*syntax.Variable); ok {
		out = append(out, schemas.ForVariable(v.Name))
		if src, isExpr := mc.flow.Source(expr).(*syntax.Expression); isExpr && src != nil {
			operand = src.Operand
		}
	}
	switch op := operand.(type) {
	case *syntax.FieldRef:
		out = append(out, schemas.ForField(op.Member()))
	case *syntax.MethodRef:
		out = append(out, schemas.ForReturnValue(op.Member()))
	}
	return out
}

func (mc *MethodContext) emit(f schemas.Finding) {
	if !mc.checker.CheckFinding(f) {
		mc.metrics.FindingVetoed(f.Kind)
		mc.logger.Debug("Finding vetoed", zap.String("kind", f.Kind.Name), zap.Int("rank", f.Rank))
		return
	}
	mc.metrics.FindingEmitted(f.Kind)
	mc.findings.AddFinding(f)
}

func (mc *MethodContext) recordError(kind schemas.ErrorKind, cause error) {
	rec := schemas.ErrorRecord{
		Kind:   kind,
		RuleID: mc.currentRule,
		Method: mc.methodRef,
		Offset: schemas.NoOffset,
		Cause:  cause,
	}
	mc.metrics.ErrorRecorded(kind)
	if kind == schemas.ErrorConfiguration {
		mc.logger.Error("Rule configuration error", zap.String("rule", rec.RuleID), zap.Error(cause))
	} else {
		mc.logger.Warn("Rule failed", zap.String("rule", rec.RuleID), zap.Error(cause))
	}
	mc.errors.AddError(rec)
}
