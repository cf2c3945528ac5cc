// internal/formula/eval.go
package formula

import (
	"fmt"
	"math"

	"github.com/meridianins/ratekeeper/internal/types"
)

/*
 * Formula evaluation.
 *
 * Walks the parsed AST with named-variable lookup against the calculation
 * context. Only arithmetic operators and the numeric function whitelist
 * below are reachable; unknown variables, unknown functions, wrong arity
 * and division by zero all fail closed with types.ErrFormulaEval.
 */

// Whitelisted numeric functions available in impact formulas.
var functions = map[string]struct {
	arity int
	fn    func(args []float64) float64
}{
	"min":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
}

// Evaluate computes the formula value against named variables.
func Evaluate(expr Expr, vars map[string]any) (float64, error) {
	switch e := expr.(type) {
	case Literal:
		return e.Value, nil

	case Variable:
		raw, ok := lookup(e.Name, vars)
		if !ok {
			return 0, fmt.Errorf("%w: unknown variable %q", types.ErrFormulaEval, e.Name)
		}
		v, ok := toFloat64(raw)
		if !ok {
			return 0, fmt.Errorf("%w: variable %q is not numeric", types.ErrFormulaEval, e.Name)
		}
		return v, nil

	case Binary:
		left, err := Evaluate(e.Left, vars)
		if err != nil {
			return 0, err
		}
		right, err := Evaluate(e.Right, vars)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case '+':
			return left + right, nil
		case '-':
			return left - right, nil
		case '*':
			return left * right, nil
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("%w: division by zero", types.ErrFormulaEval)
			}
			return left / right, nil
		default:
			return 0, fmt.Errorf("%w: unsupported operator %q", types.ErrFormulaEval, e.Op)
		}

	case Call:
		def, ok := functions[e.Name]
		if !ok {
			return 0, fmt.Errorf("%w: unknown function %q", types.ErrFormulaEval, e.Name)
		}
		if len(e.Args) != def.arity {
			return 0, fmt.Errorf("%w: %s expects %d arguments, got %d",
				types.ErrFormulaEval, e.Name, def.arity, len(e.Args))
		}
		args := make([]float64, len(e.Args))
		for i, arg := range e.Args {
			v, err := Evaluate(arg, vars)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return def.fn(args), nil

	default:
		return 0, fmt.Errorf("%w: unsupported expression node %T", types.ErrFormulaEval, expr)
	}
}

// Run parses and evaluates a formula in one step.
func Run(input string, vars map[string]any) (float64, error) {
	expr, err := Parse(input)
	if err != nil {
		return 0, err
	}
	return Evaluate(expr, vars)
}

// lookup resolves a variable name, traversing dotted segments into nested
// map[string]any values after an exact-key miss.
func lookup(name string, vars map[string]any) (any, bool) {
	if vars == nil {
		return nil, false
	}
	if v, ok := vars[name]; ok {
		return v, true
	}

	var current any = vars
	start := 0
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[name[start:i]]
		if !ok {
			return nil, false
		}
		start = i + 1
	}
	return current, true
}

// toFloat64 converts context values to float64 for arithmetic.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
