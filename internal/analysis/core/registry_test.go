// internal/analysis/core/registry_test.go
package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

func noopRule(id string) Rule {
	return NewRule(id, func(syntax.Node, *syntax.Chain, *MethodContext) (Continuation, error) { return Continue, nil })
}

func TestRegistry_Declare(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare(kindA, kindB))
	require.NoError(t, r.Declare(kindA), "identical redeclaration is allowed")

	changed := kindA
	changed.BaseRank = 90
	assert.ErrorIs(t, r.Declare(changed), ErrDuplicateKind)
	assert.ErrorIs(t, r.Declare(schemas.FindingKind{}), ErrInvalidBinding)

	assert.Equal(t, []schemas.FindingKind{kindA, kindB}, r.Kinds())
	k, ok := r.Kind("KindA")
	assert.True(t, ok)
	assert.Equal(t, 40, k.BaseRank)
	_, ok = r.Kind("Missing")
	assert.False(t, ok)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Binding{Rule: noopRule("a"), Kinds: []schemas.FindingKind{kindA}}))
	require.NoError(t, r.Register(Binding{Rule: noopRule("b"), Ops: []syntax.Op{syntax.OpAdd}}))

	assert.ErrorIs(t, r.Register(Binding{Rule: noopRule("a")}), ErrDuplicateRule)
	assert.ErrorIs(t, r.Register(Binding{}), ErrInvalidBinding)
	assert.ErrorIs(t, r.Register(Binding{Rule: noopRule("c"), Kinds: []schemas.FindingKind{{Name: "KindA", BaseRank: 1}}}), ErrDuplicateKind)

	assert.Equal(t, []string{"a", "b"}, r.RuleIDs())
	bindings := r.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, ShapeExpressions, bindings[1].Shape, "an op filter implies expressions")
	assert.True(t, bindings[1].Accepts(&syntax.Expression{Op: syntax.OpAdd}))
	assert.False(t, bindings[1].Accepts(&syntax.Expression{Op: syntax.OpSub}))
	assert.False(t, bindings[1].Accepts(&syntax.Block{}))
	assert.True(t, bindings[0].Accepts(&syntax.Block{}))

	_, declared := r.Kind("KindA")
	assert.True(t, declared, "binding kinds are declared on registration")
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry().MustRegister(Binding{Rule: noopRule("x")}, Binding{Rule: noopRule("x")})
	})
}

func TestRegistry_Without(t *testing.T) {
	r := NewRegistry().MustRegister(
		Binding{Rule: noopRule("a"), Kinds: []schemas.FindingKind{kindA}},
		Binding{Rule: noopRule("b"), Kinds: []schemas.FindingKind{kindB}},
	)

	filtered := r.Without("a", "unknown", "")

	assert.Equal(t, []string{"b"}, filtered.RuleIDs())
	assert.Equal(t, r.Kinds(), filtered.Kinds(), "kinds survive so reports stay resolvable")
	assert.Equal(t, []string{"a", "b"}, r.RuleIDs(), "the source registry is untouched")
}
