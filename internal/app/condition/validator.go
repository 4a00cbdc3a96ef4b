package condition

import (
	"fmt"

	"github.com/complif/rules-engine/internal/app/domain"
)

// ValidationIssue is one structural defect found in a condition tree, with
// a JSON-pointer-like path to the offending node.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []ValidationIssue  `json:"errors"`
}

// supportedOperators is the authoritative operator set; Evaluate silently
// treats anything outside it as a non-match, but Validate rejects it.
var supportedOperators = map[domain.Operator]bool{
	domain.OpEqual:              true,
	domain.OpNotEqual:           true,
	domain.OpGreaterThan:        true,
	domain.OpGreaterThanOrEqual: true,
	domain.OpLessThan:           true,
	domain.OpLessThanOrEqual:    true,
	domain.OpIn:                 true,
	domain.OpNotIn:              true,
	domain.OpContains:           true,
	domain.OpNotContains:        true,
	domain.OpExists:             true,
	domain.OpNotExists:          true,
	domain.OpBetween:            true,
	domain.OpRegex:              true,
}

// Validate recursively checks root against the structural rules in §4.2:
// exactly one of all/any/not/leaf per node, non-empty combinator arrays,
// required leaf fields, and per-operator value shape.
func Validate(root domain.Node) ValidationResult {
	var issues []ValidationIssue
	validateNode(root, "$", &issues)
	return ValidationResult{Valid: len(issues) == 0, Errors: issues}
}

func validateNode(node domain.Node, path string, issues *[]ValidationIssue) {
	declared := 0
	if node.All != nil {
		declared++
	}
	if node.Any != nil {
		declared++
	}
	if node.Not != nil {
		declared++
	}
	isLeaf := node.Fact != "" || node.Operator != "" || node.Value != nil
	if isLeaf {
		declared++
	}

	if declared == 0 {
		addIssue(issues, path, "node declares none of all/any/not/leaf")
		return
	}
	if declared > 1 {
		addIssue(issues, path, "node declares more than one of all/any/not/leaf")
		return
	}

	switch {
	case node.All != nil:
		if len(node.All) == 0 {
			addIssue(issues, path+"/all", "all must be a non-empty array")
			return
		}
		for i, child := range node.All {
			validateNode(child, fmt.Sprintf("%s/all/%d", path, i), issues)
		}
	case node.Any != nil:
		if len(node.Any) == 0 {
			addIssue(issues, path+"/any", "any must be a non-empty array")
			return
		}
		for i, child := range node.Any {
			validateNode(child, fmt.Sprintf("%s/any/%d", path, i), issues)
		}
	case node.Not != nil:
		validateNode(*node.Not, path+"/not", issues)
	default:
		validateLeaf(node, path, issues)
	}
}

func validateLeaf(node domain.Node, path string, issues *[]ValidationIssue) {
	if node.Fact == "" {
		addIssue(issues, path+"/fact", "leaf requires a non-empty fact path")
	}
	if node.Operator == "" {
		addIssue(issues, path+"/operator", "leaf requires an operator")
		return
	}
	if !supportedOperators[node.Operator] {
		addIssue(issues, path+"/operator", fmt.Sprintf("unsupported operator %q", node.Operator))
		return
	}

	switch node.Operator {
	case domain.OpExists, domain.OpNotExists:
		if node.Value != nil {
			addIssue(issues, path+"/value", fmt.Sprintf("%s forbids a value", node.Operator))
		}
	case domain.OpIn, domain.OpNotIn:
		list, ok := node.Value.([]any)
		if !ok || len(list) == 0 {
			addIssue(issues, path+"/value", fmt.Sprintf("%s requires a non-empty array value", node.Operator))
		}
	case domain.OpBetween:
		bounds, ok := node.Value.([]any)
		if !ok || len(bounds) != 2 {
			addIssue(issues, path+"/value", "between requires a two-element array")
			return
		}
		if _, ok := asFloat(bounds[0]); !ok {
			addIssue(issues, path+"/value/0", "between bounds must be numeric")
		}
		if _, ok := asFloat(bounds[1]); !ok {
			addIssue(issues, path+"/value/1", "between bounds must be numeric")
		}
	case domain.OpRegex:
		if _, ok := node.Value.(string); !ok {
			addIssue(issues, path+"/value", "regex requires a string pattern")
		}
	case domain.OpGreaterThan, domain.OpGreaterThanOrEqual, domain.OpLessThan, domain.OpLessThanOrEqual:
		if _, ok := asFloat(node.Value); !ok {
			addIssue(issues, path+"/value", fmt.Sprintf("%s requires a numeric value", node.Operator))
		}
	case domain.OpContains, domain.OpNotContains:
		if _, ok := node.Value.(string); !ok {
			addIssue(issues, path+"/value", fmt.Sprintf("%s requires a string value", node.Operator))
		}
	case domain.OpEqual, domain.OpNotEqual:
		if node.Value == nil {
			addIssue(issues, path+"/value", fmt.Sprintf("%s requires a defined value", node.Operator))
		}
	}
}

func addIssue(issues *[]ValidationIssue, path, message string) {
	*issues = append(*issues, ValidationIssue{Path: path, Message: message})
}
