package assertions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
)

type errorLog struct {
	records []schemas.ErrorRecord
}

func (l *errorLog) AddError(rec schemas.ErrorRecord) { l.records = append(l.records, rec) }

func finding(kind string, rank int, offset int) schemas.Finding {
	f := schemas.Finding{Kind: schemas.FindingKind{Name: kind, Category: "Test", BaseRank: 50}, Rank: rank}
	if offset != schemas.NoOffset {
		f.Annotations = schemas.AnnotationSet{schemas.ForLocation(schemas.Location{Offset: offset, Line: schemas.UnknownLine})}
	}
	return f
}

func TestAsserter(t *testing.T) {
	tests := []struct {
		name     string
		exp      Expectations
		findings []schemas.Finding
		want     []error
	}{
		{
			name:     "expected kind reported",
			exp:      Expectations{Expect: []string{"FloatComparison"}},
			findings: []schemas.Finding{finding("FloatComparison", 40, 3)},
		},
		{
			name: "expected kind missing",
			exp:  Expectations{Expect: []string{"FloatComparison"}},
			want: []error{ErrMissingFinding},
		},
		{
			name:     "forbidden kind reported",
			exp:      Expectations{Forbid: []string{"VolatileMath"}},
			findings: []schemas.Finding{finding("VolatileMath", 75, 8), finding("FloatComparison", 40, 9)},
			want:     []error{ErrUnexpectedFinding},
		},
		{
			name:     "wildcard forbids everything not expected",
			exp:      Expectations{Expect: []string{"FloatComparison"}, Forbid: []string{Wildcard}},
			findings: []schemas.Finding{finding("FloatComparison", 40, 1), finding("VolatileMath", 75, 2)},
			want:     []error{ErrUnexpectedFinding},
		},
		{
			name: "wildcard expectation needs any finding",
			exp:  Expectations{Expect: []string{Wildcard}},
			want: []error{ErrMissingFinding},
		},
		{
			name:     "wildcard expectation satisfied",
			exp:      Expectations{Expect: []string{Wildcard}},
			findings: []schemas.Finding{finding("Anything", 1, schemas.NoOffset)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &errorLog{}
			a := NewAsserter(tt.exp, log, "com/example/Foo.run()V")
			for _, f := range tt.findings {
				assert.True(t, a.CheckFinding(f), "the asserter never vetoes")
			}
			a.FinishMethod()

			require.Len(t, log.records, len(tt.want))
			for i, want := range tt.want {
				rec := log.records[i]
				assert.Equal(t, schemas.ErrorAssertion, rec.Kind)
				assert.Equal(t, "com/example/Foo.run()V", rec.Method)
				assert.ErrorIs(t, rec, want)
			}
		})
	}
}

func TestAsserter_UnexpectedCarriesOffset(t *testing.T) {
	log := &errorLog{}
	a := NewAsserter(Expectations{Forbid: []string{"KindA"}}, log, "m")
	a.CheckFinding(finding("KindA", 10, 17))
	a.CheckFinding(finding("KindA", 10, schemas.NoOffset))

	require.Len(t, log.records, 2)
	assert.Equal(t, 17, log.records[0].Offset)
	assert.Equal(t, schemas.NoOffset, log.records[1].Offset)
}

func TestSuppressor(t *testing.T) {
	s := NewSuppressor([]string{"Noisy"}, 20, zaptest.NewLogger(t))

	assert.False(t, s.CheckFinding(finding("Noisy", 90, 1)))
	assert.False(t, s.CheckFinding(finding("Quiet", 19, 1)))
	assert.True(t, s.CheckFinding(finding("Quiet", 20, 1)))
}

type finishCounter struct {
	approve  bool
	checked  int
	finished int
}

func (c *finishCounter) CheckFinding(schemas.Finding) bool { c.checked++; return c.approve }
func (c *finishCounter) FinishMethod()                     { c.finished++ }

func TestChain(t *testing.T) {
	first := &finishCounter{approve: true}
	veto := &finishCounter{approve: false}
	last := &finishCounter{approve: true}
	chain := Chain{first, nil, veto, last}

	assert.False(t, chain.CheckFinding(finding("KindA", 1, 1)))
	assert.Equal(t, 1, first.checked)
	assert.Equal(t, 1, veto.checked)
	assert.Zero(t, last.checked, "checkers after a veto are skipped")

	chain.FinishMethod()
	assert.Equal(t, []int{1, 1, 1}, []int{first.finished, veto.finished, last.finished})

	var _ core.Checker = chain
	var _ core.MethodFinisher = chain
	assert.True(t, Chain{}.CheckFinding(finding("KindA", 1, 1)))
}
