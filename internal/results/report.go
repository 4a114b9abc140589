package results

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/bugscan/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the complete output of a run.
type Report struct {
	Summary  Summary               `json:"summary"`
	Findings []schemas.Finding     `json:"findings"`
	Errors   []schemas.ErrorRecord `json:"errors"`
}

// NewReport summarizes the run and orders the findings by rank.
func NewReport(s Summary, findings []schemas.Finding, errs []schemas.ErrorRecord) *Report {
	if findings == nil {
		findings = []schemas.Finding{}
	}
	if errs == nil {
		errs = []schemas.ErrorRecord{}
	}
	return &Report{Summary: s, Findings: Prioritize(findings), Errors: errs}
}

// WriteJSON writes the report as one indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteText writes one line per finding and per error, then the summary.
func (r *Report) WriteText(w io.Writer) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintf(w, "[%s] %s\n", f.Kind.Category, f); err != nil {
			return err
		}
		if hint, ok := f.Annotations.Find(schemas.RoleReplacement); ok {
			if _, err := fmt.Fprintf(w, "    use %s instead\n", hint.Member); err != nil {
				return err
			}
		}
	}
	for _, e := range r.Errors {
		if _, err := fmt.Fprintf(w, "error: %s\n", e.Error()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, r.Summary)
	return err
}
