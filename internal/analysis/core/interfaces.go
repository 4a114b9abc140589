package core

import (
	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// FindingSink receives finalized findings. Implementations shared between
// methods must be safe for concurrent use; findings of a single method arrive
// in submission order.
type FindingSink interface {
	AddFinding(f schemas.Finding)
}

// ErrorSink records non-fatal failures. It must never panic and must be safe
// for concurrent use.
type ErrorSink interface {
	AddError(rec schemas.ErrorRecord)
}

// ValueFlow resolves where the value read by an expression was defined.
// Source returns nil when the definition is unknown or ambiguous.
type ValueFlow interface {
	Source(expr *syntax.Expression) syntax.Node
}

// Checker approves or vetoes a finalized finding before it is emitted.
type Checker interface {
	CheckFinding(f schemas.Finding) bool
}

// MethodFinisher is implemented by checkers that need to act once the
// method's last finding has been flushed.
type MethodFinisher interface {
	FinishMethod()
}

// Metrics observes the aggregation pipeline. All methods must be cheap and
// safe for concurrent use.
type Metrics interface {
	FindingEmitted(kind schemas.FindingKind)
	FindingVetoed(kind schemas.FindingKind)
	CandidateDropped(reason string)
	ErrorRecorded(kind schemas.ErrorKind)
	RuleRetired(ruleID string)
}

// Reasons passed to Metrics.CandidateDropped.
const (
	DropUnknownKind   = "unknown_kind"
	DropLowConfidence = "low_confidence"
)

type noFlow struct{}

func (noFlow) Source(*syntax.Expression) syntax.Node { return nil }

type approveAll struct{}

func (approveAll) CheckFinding(schemas.Finding) bool { return true }

type noMetrics struct{}

func (noMetrics) FindingEmitted(schemas.FindingKind) {}
func (noMetrics) FindingVetoed(schemas.FindingKind)  {}
func (noMetrics) CandidateDropped(string)            {}
func (noMetrics) ErrorRecorded(schemas.ErrorKind)    {}
func (noMetrics) RuleRetired(string)                 {}

type discardFindings struct{}

func (discardFindings) AddFinding(schemas.Finding) {}

type discardErrors struct{}

func (discardErrors) AddError(schemas.ErrorRecord) {}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return noMetrics{} }
