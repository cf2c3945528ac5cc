// internal/conditions/validate_test.go
package conditions

import (
	"errors"
	"testing"

	"github.com/meridianins/ratekeeper/internal/types"
)

func TestValidate_AcceptsWellFormedTrees(t *testing.T) {
	trees := []*types.ConditionNode{
		leaf("age", types.OpGTE, 18),
		leaf("notes", types.OpIsNull, nil),
		{Operator: types.OpAnd, Children: []*types.ConditionNode{
			leaf("age", types.OpBetween, []any{18, 65}),
			{Operator: types.OpNot, Children: []*types.ConditionNode{
				leaf("territory", types.OpIn, []any{"TX", "FL"}),
			}},
		}},
	}

	for _, tree := range trees {
		if err := Validate(tree); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	}
}

func TestValidate_RejectsMalformedTrees(t *testing.T) {
	hugeIn := make([]any, types.MaxInOperatorValues+1)
	for i := range hugeIn {
		hugeIn[i] = i
	}

	tests := []struct {
		name string
		node *types.ConditionNode
	}{
		{"nil tree", nil},
		{"leaf without field", &types.ConditionNode{Operator: types.OpEquals, Value: 1}},
		{"leaf with children", &types.ConditionNode{Field: "age", Operator: types.OpGT, Value: 1,
			Children: []*types.ConditionNode{leaf("age", types.OpLT, 2)}}},
		{"and without children", &types.ConditionNode{Operator: types.OpAnd}},
		{"not with zero children", &types.ConditionNode{Operator: types.OpNot}},
		{"unknown operator", leaf("age", "REGEX", ".*")},
		{"oversized in list", leaf("age", types.OpIn, hugeIn)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.node)
			if err == nil {
				t.Fatalf("Validate() error = nil, want ErrInvalidConditionTree")
			}
			if !errors.Is(err, types.ErrInvalidConditionTree) {
				t.Errorf("Validate() error = %v, want ErrInvalidConditionTree", err)
			}
		})
	}
}

func TestValidate_DepthLimit(t *testing.T) {
	node := leaf("age", types.OpGT, 1)
	for i := 0; i < types.MaxConditionDepth+2; i++ {
		node = &types.ConditionNode{Operator: types.OpAnd, Children: []*types.ConditionNode{node}}
	}

	if err := Validate(node); !errors.Is(err, types.ErrConditionTooDeep) {
		t.Errorf("Validate() error = %v, want ErrConditionTooDeep", err)
	}
}

func TestEstimateCost_OrdersByComplexity(t *testing.T) {
	isNull := leaf("a", types.OpIsNull, nil)
	equals := leaf("a", types.OpEquals, 1)
	contains := leaf("a", types.OpContains, "x")
	dotted := leaf("a.b.c", types.OpEquals, 1)

	if EstimateCost(isNull) >= EstimateCost(equals) {
		t.Errorf("IS_NULL cost %d should be below EQUALS cost %d",
			EstimateCost(isNull), EstimateCost(equals))
	}
	if EstimateCost(equals) >= EstimateCost(contains) {
		t.Errorf("EQUALS cost %d should be below CONTAINS cost %d",
			EstimateCost(equals), EstimateCost(contains))
	}
	if EstimateCost(dotted) <= EstimateCost(equals) {
		t.Errorf("dotted lookup cost %d should exceed flat lookup cost %d",
			EstimateCost(dotted), EstimateCost(equals))
	}

	and := &types.ConditionNode{Operator: types.OpAnd,
		Children: []*types.ConditionNode{equals, contains}}
	want := CostLogicalNode + EstimateCost(equals) + EstimateCost(contains)
	if got := EstimateCost(and); got != want {
		t.Errorf("EstimateCost(and) = %d, want %d", got, want)
	}
}

func TestPrimaryField(t *testing.T) {
	tests := []struct {
		name string
		node *types.ConditionNode
		want string
	}{
		{"nil tree", nil, ""},
		{"leaf", leaf("age", types.OpGT, 1), "age"},
		{"first leaf of nested tree", &types.ConditionNode{Operator: types.OpAnd,
			Children: []*types.ConditionNode{
				{Operator: types.OpOr, Children: []*types.ConditionNode{
					leaf("territory", types.OpEquals, "CA"),
					leaf("age", types.OpGT, 1),
				}},
			}}, "territory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryField(tt.node); got != tt.want {
				t.Errorf("PrimaryField() = %q, want %q", got, tt.want)
			}
		})
	}
}
