// Package condition implements the pure condition-tree evaluator and its
// pre-persistence structure validator. Nothing in this package performs
// I/O; the evaluator never returns an error or panics — ill-typed input
// evaluates to false (or true for a vacuous "all").
package condition

import (
	"regexp"
	"strings"

	"github.com/complif/rules-engine/internal/app/domain"
)

// Trace mirrors the shape of the evaluated Node, recording the inputs and
// outcome of every leaf and combinator for audit/debugging.
type Trace struct {
	Combinator string  `json:"combinator,omitempty"`
	Fact       string  `json:"fact,omitempty"`
	Operator   string  `json:"operator,omitempty"`
	Expected   any     `json:"expected,omitempty"`
	Actual     any     `json:"actual,omitempty"`
	Satisfied  bool    `json:"satisfied"`
	Children   []Trace `json:"children,omitempty"`
}

// Evaluate walks node against facts and reports whether it is satisfied.
// It never panics: a malformed node (not exactly one of all/any/not/leaf)
// evaluates to false.
func Evaluate(node domain.Node, facts domain.FactBundle) bool {
	satisfied, _ := EvaluateWithTrace(node, facts)
	return satisfied
}

// EvaluateWithTrace evaluates node against facts and additionally returns an
// isomorphic trace tree for audit purposes.
func EvaluateWithTrace(node domain.Node, facts domain.FactBundle) (bool, Trace) {
	switch node.Kind() {
	case domain.KindAll:
		return evaluateAll(node.All, facts)
	case domain.KindAny:
		return evaluateAny(node.Any, facts)
	case domain.KindNot:
		return evaluateNot(node.Not, facts)
	case domain.KindLeaf:
		return evaluateLeaf(node, facts)
	default:
		return false, Trace{Satisfied: false}
	}
}

func evaluateAll(children []domain.Node, facts domain.FactBundle) (bool, Trace) {
	trace := Trace{Combinator: "all"}
	satisfied := true
	for _, child := range children {
		ok, childTrace := EvaluateWithTrace(child, facts)
		trace.Children = append(trace.Children, childTrace)
		if !ok {
			satisfied = false
		}
	}
	trace.Satisfied = satisfied
	return satisfied, trace
}

func evaluateAny(children []domain.Node, facts domain.FactBundle) (bool, Trace) {
	trace := Trace{Combinator: "any"}
	satisfied := false
	for _, child := range children {
		ok, childTrace := EvaluateWithTrace(child, facts)
		trace.Children = append(trace.Children, childTrace)
		if ok {
			satisfied = true
		}
	}
	trace.Satisfied = satisfied
	return satisfied, trace
}

func evaluateNot(child *domain.Node, facts domain.FactBundle) (bool, Trace) {
	if child == nil {
		return false, Trace{Combinator: "not", Satisfied: false}
	}
	ok, childTrace := EvaluateWithTrace(*child, facts)
	trace := Trace{Combinator: "not", Satisfied: !ok, Children: []Trace{childTrace}}
	return !ok, trace
}

func evaluateLeaf(node domain.Node, facts domain.FactBundle) (bool, Trace) {
	actual, present := resolveFact(facts, node.Fact)
	satisfied := applyOperator(node.Operator, actual, present, node.Value)
	trace := Trace{
		Fact:      node.Fact,
		Operator:  string(node.Operator),
		Expected:  node.Value,
		Actual:    actual,
		Satisfied: satisfied,
	}
	return satisfied, trace
}

// resolveFact walks dot-notation path into facts. Any intermediate nil,
// missing key, or non-map value collapses the lookup to (nil, false).
func resolveFact(facts domain.FactBundle, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = map[string]any(facts)
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok || m == nil {
			return nil, false
		}
		value, ok := m[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func applyOperator(op domain.Operator, actual any, present bool, expected any) bool {
	switch op {
	case domain.OpEqual:
		return present && strictEqual(actual, expected)
	case domain.OpNotEqual:
		if !present {
			// undefined != anything, including null, so notEqual holds unless
			// expected is itself "missing" — which cannot be expressed in JSON,
			// so an absent actual always satisfies notEqual.
			return true
		}
		return !strictEqual(actual, expected)
	case domain.OpGreaterThan, domain.OpGreaterThanOrEqual, domain.OpLessThan, domain.OpLessThanOrEqual:
		return compareNumeric(op, actual, expected)
	case domain.OpIn:
		return membership(actual, expected, true)
	case domain.OpNotIn:
		return membership(actual, expected, false)
	case domain.OpContains:
		return stringContains(actual, expected, true)
	case domain.OpNotContains:
		return stringContains(actual, expected, false)
	case domain.OpExists:
		return present
	case domain.OpNotExists:
		return !present
	case domain.OpBetween:
		return between(actual, expected)
	case domain.OpRegex:
		return matchesRegex(actual, expected)
	default:
		return false
	}
}

func strictEqual(actual, expected any) bool {
	af, aok := asFloat(actual)
	ef, eok := asFloat(expected)
	if aok && eok {
		return af == ef
	}
	as, aok := actual.(string)
	es, eok := expected.(string)
	if aok && eok {
		return as == es
	}
	ab, aok := actual.(bool)
	eb, eok := expected.(bool)
	if aok && eok {
		return ab == eb
	}
	return actual == expected
}

func compareNumeric(op domain.Operator, actual, expected any) bool {
	a, aok := asFloat(actual)
	e, eok := asFloat(expected)
	if !aok || !eok {
		return false
	}
	switch op {
	case domain.OpGreaterThan:
		return a > e
	case domain.OpGreaterThanOrEqual:
		return a >= e
	case domain.OpLessThan:
		return a < e
	case domain.OpLessThanOrEqual:
		return a <= e
	default:
		return false
	}
}

func membership(actual, expected any, wantIn bool) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}
	found := false
	for _, item := range list {
		if strictEqual(actual, item) {
			found = true
			break
		}
	}
	if wantIn {
		return found
	}
	return !found
}

func stringContains(actual, expected any, wantContains bool) bool {
	as, aok := actual.(string)
	es, eok := expected.(string)
	if !aok || !eok {
		return false
	}
	contains := strings.Contains(as, es)
	if wantContains {
		return contains
	}
	return !contains
}

func between(actual, expected any) bool {
	a, aok := asFloat(actual)
	if !aok {
		return false
	}
	bounds, ok := expected.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	min, minOk := asFloat(bounds[0])
	max, maxOk := asFloat(bounds[1])
	if !minOk || !maxOk {
		return false
	}
	return a >= min && a <= max
}

func matchesRegex(actual, expected any) bool {
	as, aok := actual.(string)
	pattern, eok := expected.(string)
	if !aok || !eok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(as)
}

// asFloat normalizes the numeric Go types facts/conditions may carry
// (float64 from JSON decoding, int/int64 from typed construction) into a
// single comparable float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
