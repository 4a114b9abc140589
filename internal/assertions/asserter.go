// Package assertions checks finalized findings before they are emitted: the
// Asserter verifies a method's declared expectations and the Suppressor applies
// the configured kind and rank filters.
package assertions

import (
	"errors"
	"fmt"
	"slices"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
)

// Wildcard matches every finding kind.
const Wildcard = "*"

var (
	// ErrUnexpectedFinding is the cause recorded for a finding a method forbids.
	ErrUnexpectedFinding = errors.New("unexpected finding")
	// ErrMissingFinding is the cause recorded for an expected kind that was not reported.
	ErrMissingFinding = errors.New("expected finding was not reported")
)

// Expectations are the finding kinds a method declares it must and must not produce.
type Expectations struct {
	Expect []string `yaml:"assert_warning"`
	Forbid []string `yaml:"assert_no_warning"`
}

// IsZero reports whether no expectation is declared.
func (e Expectations) IsZero() bool {
	return len(e.Expect) == 0 && len(e.Forbid) == 0
}

func (e Expectations) expects(kind string) bool {
	return slices.Contains(e.Expect, kind) || slices.Contains(e.Expect, Wildcard)
}

func (e Expectations) forbids(kind string) bool {
	if slices.Contains(e.Forbid, kind) {
		return true
	}
	// "*" forbids everything not explicitly expected.
	return slices.Contains(e.Forbid, Wildcard) && !slices.Contains(e.Expect, kind)
}

// Asserter validates the findings of one method. It never vetoes a finding;
// violations are recorded as ASSERTION error records.
type Asserter struct {
	exp    Expectations
	errs   core.ErrorSink
	method string
	seen   map[string]bool
	any    bool
}

// NewAsserter creates an asserter for the method identified by methodRef.
func NewAsserter(exp Expectations, errs core.ErrorSink, methodRef string) *Asserter {
	return &Asserter{
		exp:    exp,
		errs:   errs,
		method: methodRef,
		seen:   make(map[string]bool),
	}
}

func (a *Asserter) CheckFinding(f schemas.Finding) bool {
	a.seen[f.Kind.Name] = true
	a.any = true
	if a.exp.forbids(f.Kind.Name) {
		offset := schemas.NoOffset
		if loc, ok := f.BestLocation(); ok {
			offset = loc.Offset
		}
		a.record(offset, fmt.Errorf("%w: %s", ErrUnexpectedFinding, f))
	}
	return true
}

// FinishMethod records every expected kind that was never reported.
func (a *Asserter) FinishMethod() {
	for _, kind := range a.exp.Expect {
		if kind == Wildcard {
			if !a.any {
				a.record(schemas.NoOffset, fmt.Errorf("%w: any kind", ErrMissingFinding))
			}
			continue
		}
		if !a.seen[kind] {
			a.record(schemas.NoOffset, fmt.Errorf("%w: %s", ErrMissingFinding, kind))
		}
	}
}

func (a *Asserter) record(offset int, cause error) {
	a.errs.AddError(schemas.ErrorRecord{
		Kind:   schemas.ErrorAssertion,
		Method: a.method,
		Offset: offset,
		Cause:  cause,
	})
}
