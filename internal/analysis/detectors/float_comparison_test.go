package detectors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

var calculator = &syntax.TypeDef{InternalName: "com/example/Calculator", SourceFile: "Calculator.java"}

func staticCall(offset int, owner, name string, arg *syntax.Expression) *syntax.Expression {
	return &syntax.Expression{
		Op:      syntax.OpInvokeStatic,
		Offset:  offset,
		Operand: &syntax.MethodRef{Owner: owner, Name: name, Signature: "(D)D"},
		Args:    []*syntax.Expression{arg},
		Type:    syntax.TypeDouble,
	}
}

func TestFloatComparison(t *testing.T) {
	d := func(offset int) *syntax.Expression { return load(offset, "d", syntax.TypeDouble) }

	tests := []struct {
		name       string
		method     string
		cmp        *syntax.Expression
		wantRank   int
		wantNumber *schemas.Number
		dropped    bool
	}{
		{
			name:     "two variables",
			method:   "compute",
			cmp:      binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, d(0), load(1, "e", syntax.TypeDouble)),
			wantRank: 40,
		},
		{
			name:    "comparison with zero is dropped",
			method:  "compute",
			cmp:     binary(syntax.OpCmpNe, 2, syntax.TypeBoolean, d(0), ldc(1, syntax.TypeDouble, 0.0)),
			dropped: true,
		},
		{
			name:       "inexact constant",
			method:     "compute",
			cmp:        binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, d(0), ldc(1, syntax.TypeDouble, 0.1)),
			wantRank:   35,
			wantNumber: &schemas.Number{Kind: "double", Literal: "0.1"},
		},
		{
			name:       "short constant on the left",
			method:     "compute",
			cmp:        binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, ldc(0, syntax.TypeDouble, 1.5), d(1)),
			wantRank:   15,
			wantNumber: &schemas.Number{Kind: "double", Literal: "1.5"},
		},
		{
			name:       "well known constant",
			method:     "compute",
			cmp:        binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, d(0), ldc(1, syntax.TypeDouble, -2.0)),
			wantRank:   10,
			wantNumber: &schemas.Number{Kind: "double", Literal: "-2"},
		},
		{
			name:     "equals method",
			method:   "isEqualTo",
			cmp:      binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, d(0), load(1, "e", syntax.TypeDouble)),
			wantRank: 20,
		},
		{
			name:    "rounded by Math",
			method:  "compute",
			cmp:     binary(syntax.OpCmpEq, 3, syntax.TypeBoolean, d(0), staticCall(2, "java/lang/Math", "floor", d(1))),
			dropped: true,
		},
		{
			name:     "rounded by another helper",
			method:   "compute",
			cmp:      binary(syntax.OpCmpEq, 3, syntax.TypeBoolean, d(0), staticCall(2, "com/example/MathUtil", "round", d(1))),
			wantRank: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := analyze(t, calculator, method(tt.method, tt.cmp))
			if tt.dropped {
				assert.Empty(t, s.findings)
				return
			}
			require.Len(t, s.findings, 1)
			f := s.findings[0]
			assert.Equal(t, KindFloatComparison, f.Kind)
			assert.Equal(t, tt.wantRank, f.Rank)
			n, ok := f.Annotations.Find(schemas.RoleNumber)
			if tt.wantNumber == nil {
				assert.False(t, ok)
			} else {
				require.True(t, ok)
				assert.Equal(t, *tt.wantNumber, n.Number)
			}
			best, ok := f.BestLocation()
			require.True(t, ok)
			assert.Equal(t, tt.cmp.Offset, best.Offset)
		})
	}
}

func TestFloatComparison_IgnoresIntegralComparisons(t *testing.T) {
	cmp := binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, load(0, "i", syntax.TypeInt), ldc(1, syntax.TypeInt, int64(3)))
	s := analyze(t, calculator, method("compute", cmp))
	assert.Empty(t, s.findings)
}

func TestFloatComparison_RepeatedComparisonsMerge(t *testing.T) {
	first := binary(syntax.OpCmpEq, 2, syntax.TypeBoolean, load(0, "d", syntax.TypeDouble), load(1, "e", syntax.TypeDouble))
	second := binary(syntax.OpCmpEq, 9, syntax.TypeBoolean, load(7, "d", syntax.TypeDouble), load(8, "e", syntax.TypeDouble))
	m := method("compute", first, second)
	m.Lines = syntax.LineTable{{Offset: 0, Line: 20}, {Offset: 7, Line: 21}}

	s := analyze(t, calculator, m)

	require.Len(t, s.findings, 1)
	assert.Equal(t, []schemas.Location{{Offset: 9, Line: 21}}, s.findings[0].SecondaryLocations())
}

func TestConstantTweak(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{0, -50},
		{math.Inf(-1), -50},
		{math.NaN(), -50},
		{1, -30},
		{-1, -30},
		{2, -30},
		{math.MaxFloat64, -30},
		{-math.SmallestNonzeroFloat64, -30},
		{0.5, -25},
		{3, -25},
		{100, -20},
		{123.25, -20},
		{1234567, -15},
		{0.1, -5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, constantTweak(tt.value), "value %v", tt.value)
	}
}

func TestDecimalPrecision(t *testing.T) {
	assert.Equal(t, 1, decimalPrecision(0.5))
	assert.Equal(t, 2, decimalPrecision(-1.5))
	assert.Equal(t, 3, decimalPrecision(100))
	assert.Equal(t, 5, decimalPrecision(123.25))
	assert.Equal(t, 55, decimalPrecision(0.1))
}
