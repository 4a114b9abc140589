package results

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/xkilldash9x/bugscan/api/schemas"
)

// NoRank is the highest rank of a run without findings.
const NoRank = -1

// Summary condenses the outcome of one run.
type Summary struct {
	RunID        uuid.UUID                 `json:"run_id"`
	Findings     int                       `json:"findings"`
	ByCategory   map[string]int            `json:"by_category"`
	ByKind       map[string]int            `json:"by_kind"`
	Errors       int                       `json:"errors"`
	ErrorsByKind map[schemas.ErrorKind]int `json:"errors_by_kind"`
	HighestRank  int                       `json:"highest_rank"`
}

// Summarize counts findings by category and kind and errors by kind.
func Summarize(runID uuid.UUID, findings []schemas.Finding, errs []schemas.ErrorRecord) Summary {
	s := Summary{
		RunID:        runID,
		Findings:     len(findings),
		ByCategory:   map[string]int{},
		ByKind:       map[string]int{},
		Errors:       len(errs),
		ErrorsByKind: map[schemas.ErrorKind]int{},
		HighestRank:  NoRank,
	}
	for _, f := range findings {
		s.ByCategory[f.Kind.Category]++
		s.ByKind[f.Kind.Name]++
		s.HighestRank = max(s.HighestRank, f.Rank)
	}
	for _, e := range errs {
		s.ErrorsByKind[e.Kind]++
	}
	return s
}

// Failed reports whether the run recorded any error.
func (s Summary) Failed() bool {
	return s.Errors > 0
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d findings", s.RunID, s.Findings)
	if len(s.ByCategory) > 0 {
		b.WriteString(" (" + countList(s.ByCategory) + ")")
	}
	fmt.Fprintf(&b, ", %d errors", s.Errors)
	if len(s.ErrorsByKind) > 0 {
		byKind := make(map[string]int, len(s.ErrorsByKind))
		for k, n := range s.ErrorsByKind {
			byKind[string(k)] = n
		}
		b.WriteString(" (" + countList(byKind) + ")")
	}
	if s.HighestRank != NoRank {
		fmt.Fprintf(&b, ", highest rank %d", s.HighestRank)
	}
	return b.String()
}

func countList(counts map[string]int) string {
	keys := slices.Sorted(maps.Keys(counts))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

// Prioritize returns the findings ordered by descending rank. Findings of
// equal rank keep their emission order.
func Prioritize(findings []schemas.Finding) []schemas.Finding {
	out := slices.Clone(findings)
	slices.SortStableFunc(out, func(a, b schemas.Finding) int {
		return cmp.Compare(b.Rank, a.Rank)
	})
	return out
}
