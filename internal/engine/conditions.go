package engine

import (
	"encoding/json"
	"strings"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
)

// Evaluator decides whether an event payload satisfies a workflow's
// conditions. It is deliberately total: a type mismatch or missing field is
// an ordinary false, never an error, so a badly written condition can only
// stop its own workflow from firing.
type Evaluator struct {
	// trace, when set, observes each condition as it is evaluated. Used by
	// debug logging and short-circuit tests.
	trace func(index int, result bool)
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func NewEvaluatorWithTrace(trace func(index int, result bool)) *Evaluator {
	return &Evaluator{trace: trace}
}

// EvaluateAll reports whether every condition holds for the given context.
// Conditions are combined with AND and evaluation stops at the first false.
// An empty condition list always matches.
func (e *Evaluator) EvaluateAll(conditions []domain.Condition, context map[string]any) bool {
	for i, cond := range conditions {
		result := evaluateCondition(cond, context)
		if e.trace != nil {
			e.trace(i, result)
		}
		if !result {
			return false
		}
	}
	return true
}

func evaluateCondition(cond domain.Condition, context map[string]any) bool {
	value, found := lookupField(context, cond.Field)

	switch cond.Operator {
	case domain.OpExists:
		return found
	case domain.OpNotExists:
		return !found
	}
	if !found {
		return false
	}

	switch cond.Operator {
	case domain.OpEquals:
		return valuesEqual(value, cond.Value)
	case domain.OpNotEquals:
		return !valuesEqual(value, cond.Value)
	case domain.OpGreaterThan:
		a, aOk := asNumber(value)
		b, bOk := asNumber(cond.Value)
		return aOk && bOk && a > b
	case domain.OpLessThan:
		a, aOk := asNumber(value)
		b, bOk := asNumber(cond.Value)
		return aOk && bOk && a < b
	case domain.OpContains:
		return containsValue(value, cond.Value)
	case domain.OpNotContains:
		return !containsValue(value, cond.Value)
	}
	// Unknown operator never matches.
	return false
}

// lookupField resolves a dotted path ("customer.address.city") inside nested
// maps. The second return is false when any path segment is absent.
func lookupField(context map[string]any, field string) (any, bool) {
	if field == "" {
		return nil, false
	}
	parts := strings.Split(field, ".")
	var current any = context
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// valuesEqual compares two values structurally. Numbers compare numerically
// regardless of Go type, since JSON decoding mixes float64 and int.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, aOk := asNumber(a); aOk {
		bn, bOk := asNumber(b)
		return bOk && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, present := bv[k]
			if !present || !valuesEqual(v, bvv) {
				return false
			}
		}
		return true
	}
	return false
}

func containsValue(haystack, needle any) bool {
	switch hv := haystack.(type) {
	case string:
		nv, ok := needle.(string)
		return ok && strings.Contains(hv, nv)
	case []any:
		for _, item := range hv {
			if valuesEqual(item, needle) {
				return true
			}
		}
		return false
	}
	return false
}

func asNumber(v any) (float64, bool) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
