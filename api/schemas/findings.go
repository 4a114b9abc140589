package schemas

import (
	"fmt"
)

// -- Finding Schemas --

// UnknownLine is the resolved line of a location whose offset could not be
// mapped through a line number table.
const UnknownLine = -1

// NoOffset is the sentinel byte offset used when a node or an error record
// does not refer to a specific instruction.
const NoOffset = -1

// FindingKind describes a declared category of finding. Kinds are registered
// once at startup and never mutated afterwards.
type FindingKind struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	// BaseRank is the confidence a finding of this kind starts with before the
	// reporting rule applies its adjustment.
	BaseRank int `json:"base_rank" yaml:"base_rank"`
}

func (k FindingKind) String() string {
	return fmt.Sprintf("%s/%s(%d)", k.Category, k.Name, k.BaseRank)
}

// Location is a position inside a method body.
type Location struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
}

// HasLine reports whether the location was resolved to a source line.
func (l Location) HasLine() bool {
	return l.Line != UnknownLine
}

func (l Location) String() string {
	if !l.HasLine() {
		return fmt.Sprintf("byte %d", l.Offset)
	}
	return fmt.Sprintf("line %d (byte %d)", l.Line, l.Offset)
}

// Finding is a finalized, deduplicated and ranked issue detected in a method.
// Annotations carry the evidence, including the best location and every
// additional occurrence folded into this finding.
type Finding struct {
	Kind        FindingKind   `json:"kind"`
	Rank        int           `json:"rank"`
	Annotations AnnotationSet `json:"annotations"`
}

// BestLocation returns the primary location of the finding, if it has one.
func (f Finding) BestLocation() (Location, bool) {
	for _, a := range f.Annotations {
		if a.Role == RoleLocation {
			return a.Location, true
		}
	}
	return Location{}, false
}

// SecondaryLocations returns the other places the same finding occurred, in
// the order they were accumulated.
func (f Finding) SecondaryLocations() []Location {
	var locs []Location
	for _, a := range f.Annotations {
		if a.Role == RoleAnotherInstance {
			locs = append(locs, a.Location)
		}
	}
	return locs
}

// Method returns the method evidence attached to the finding.
func (f Finding) Method() (MemberRef, bool) {
	for _, a := range f.Annotations {
		if a.Role == RoleMethod {
			return a.Member, true
		}
	}
	return MemberRef{}, false
}

func (f Finding) String() string {
	s := fmt.Sprintf("%s rank=%d", f.Kind.Name, f.Rank)
	if m, ok := f.Method(); ok {
		s += " in " + m.String()
	}
	if loc, ok := f.BestLocation(); ok {
		s += " at " + loc.String()
	}
	if n := len(f.SecondaryLocations()); n > 0 {
		s += fmt.Sprintf(" (+%d more)", n)
	}
	return s
}

// -- Error Schemas --

// ErrorKind classifies the failures recorded while analyzing a method.
type ErrorKind string

const (
	// ErrorConfiguration means a rule referenced a finding kind that was never declared.
	ErrorConfiguration ErrorKind = "CONFIGURATION"
	// ErrorRuleRuntime means a rule failed or panicked while visiting a node.
	ErrorRuleRuntime ErrorKind = "RULE_RUNTIME"
	// ErrorAssertion means a method's expected or forbidden findings did not match.
	ErrorAssertion ErrorKind = "ASSERTION"
)

// ErrorRecord is a non-fatal failure recorded during a run.
type ErrorRecord struct {
	Kind   ErrorKind `json:"kind"`
	RuleID string    `json:"rule_id,omitempty"`
	Method string    `json:"method"`
	Offset int       `json:"offset"`
	Cause  error     `json:"-"`
}

// Message returns the cause as text, suitable for serialization.
func (e ErrorRecord) Message() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

func (e ErrorRecord) Error() string {
	where := e.Method
	if e.Offset != NoOffset {
		where = fmt.Sprintf("%s@%d", e.Method, e.Offset)
	}
	if e.RuleID != "" {
		return fmt.Sprintf("%s: rule %s in %s: %s", e.Kind, e.RuleID, where, e.Message())
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, where, e.Message())
}

func (e ErrorRecord) Unwrap() error {
	return e.Cause
}

// MarshalJSON adds the cause text under "message".
func (e ErrorRecord) MarshalJSON() ([]byte, error) {
	type plain ErrorRecord
	return json.Marshal(struct {
		plain
		Message string `json:"message,omitempty"`
	}{plain: plain(e), Message: e.Message()})
}
