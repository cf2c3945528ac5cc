// internal/conditions/fieldpath.go
package conditions

import (
	"strings"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Field resolution for condition leaves.
 *
 * Resolves a condition field name against the string-keyed input record.
 * Exact key match wins; otherwise dot-separated segments traverse nested
 * map[string]any values ("profile.age" reaches input["profile"]["age"]).
 *
 * Exact-match-first keeps flat records with literal dots in keys working
 * while still supporting nested demographic context merged by the engine.
 *
 * Depth is bounded by types.MaxFieldPathDepth; paths beyond the limit
 * resolve as not found rather than erroring, matching the fail-closed leaf
 * policy for absent fields.
 */

// Resolve looks up a field in the input record.
// Returns the value and whether the field exists (a present nil is found).
func Resolve(field string, input map[string]any) (any, bool) {
	if field == "" || input == nil {
		return nil, false
	}

	if v, ok := input[field]; ok {
		return v, true
	}

	if !strings.Contains(field, ".") {
		return nil, false
	}

	segments := strings.Split(field, ".")
	if len(segments) > types.MaxFieldPathDepth {
		return nil, false
	}

	var current any = input
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// PrimaryField returns the first leaf field referenced by a condition tree.
// Used by the OPTIMIZED strategy pre-filter to skip rules whose primary
// input is absent. Returns "" for trees without leaves.
func PrimaryField(node *types.ConditionNode) string {
	if node == nil {
		return ""
	}
	if node.IsLeaf() {
		return node.Field
	}
	for _, child := range node.Children {
		if f := PrimaryField(child); f != "" {
			return f
		}
	}
	return ""
}
