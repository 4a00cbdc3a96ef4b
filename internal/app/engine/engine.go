// Package engine implements the pure, stateless transaction evaluation
// engine: given an ordered rule set and a fact bundle it runs every rule's
// condition tree and derives a decision. It performs no I/O and is a pure
// function of its inputs.
package engine

import (
	"github.com/complif/rules-engine/internal/app/condition"
	"github.com/complif/rules-engine/internal/app/domain"
)

// Evaluate runs rules (expected pre-sorted by priority ascending) against
// facts and returns the aggregate decision, every rule's outcome, the
// subset that triggered, and the flattened actions of triggered rules.
//
// Determinism: Evaluate is a pure function of (rules, facts); two calls
// with structurally equal inputs produce structurally equal outputs.
func Evaluate(rules []domain.RuleVersion, facts domain.FactBundle) domain.EngineOutput {
	var allResults []domain.RuleOutcome
	var triggered []domain.RuleOutcome
	var actions []domain.Action

	for _, rule := range rules {
		satisfied := condition.Evaluate(rule.Conditions, facts)
		outcome := domain.RuleOutcome{
			RuleVersionID: rule.ID,
			Priority:      rule.Priority,
			Satisfied:     satisfied,
		}
		allResults = append(allResults, outcome)
		if satisfied {
			triggered = append(triggered, outcome)
			actions = append(actions, rule.Actions...)
		}
	}

	return domain.EngineOutput{
		Decision:       resolveDecision(actions),
		TriggeredRules: triggered,
		AllRuleResults: allResults,
		Actions:        actions,
	}
}

// resolveDecision applies BLOCK > REVIEW > ALLOW precedence over the
// flattened action set.
func resolveDecision(actions []domain.Action) domain.Decision {
	hasReview := false
	for _, a := range actions {
		if a.Type == domain.ActionBlockTransaction {
			return domain.DecisionBlock
		}
		switch a.Type {
		case domain.ActionCreateAlert, domain.ActionWebhook, domain.ActionPublishQueue:
			hasReview = true
		}
	}
	if hasReview {
		return domain.DecisionReview
	}
	return domain.DecisionAllow
}
