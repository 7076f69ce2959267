package rule

import (
	"fmt"
	"strings"

	"github.com/oarkflow/linkml/expression"
	"github.com/oarkflow/linkml/schema"
)

// Severity of a ValidationIssue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is one rule-evaluation finding. Code is a stable
// string so callers can switch on it programmatically; Context carries
// whatever extra structured data the issue code implies (expected/
// actual values, satisfied counts, branch indices).
type ValidationIssue struct {
	Code     string
	Message  string
	Severity Severity
	Context  map[string]any
}

// Evaluator runs a rule's postconditions against an instance and
// produces ValidationIssues when they fail. Ported from
// original_source/service/src/rule_engine/evaluator.rs.
type Evaluator struct {
	engine  *expression.Engine
	matcher *Matcher
}

// NewEvaluator returns an Evaluator sharing engine with matcher.
func NewEvaluator(engine *expression.Engine, matcher *Matcher) *Evaluator {
	return &Evaluator{engine: engine, matcher: matcher}
}

// EvaluatePostconditions checks whether instance already matches cc; if
// it does, the rule is satisfied and no issues are produced at all — an
// intentionally non-obvious short-circuit carried over verbatim from
// the original: issues are only ever generated when the top-level
// condition as a whole failed, never per-branch against a passing
// overall result.
func (ev *Evaluator) EvaluatePostconditions(cc *CompiledCondition, instance map[string]any, ruleDescription string) ([]ValidationIssue, error) {
	if cc == nil {
		return nil, nil
	}
	matched, err := ev.matcher.Matches(cc, instance)
	if err != nil {
		return nil, err
	}
	if matched {
		return nil, nil
	}

	var issues []ValidationIssue
	if cc.SlotConditions != nil {
		slotIssues, err := ev.evaluateSlotConditions(cc.SlotConditions, instance, ruleDescription)
		if err != nil {
			return nil, err
		}
		issues = append(issues, slotIssues...)
	}
	if cc.Expressions != nil {
		exprIssues, err := ev.evaluateExpressionConditions(cc, instance, ruleDescription)
		if err != nil {
			return nil, err
		}
		issues = append(issues, exprIssues...)
	}
	if cc.Composite != nil {
		compositeIssues, err := ev.evaluateComposite(cc.Composite, instance, ruleDescription)
		if err != nil {
			return nil, err
		}
		issues = append(issues, compositeIssues...)
	}
	return issues, nil
}

func suffix(ruleDescription string) string {
	if ruleDescription == "" {
		return ""
	}
	return fmt.Sprintf(" (rule: %s)", ruleDescription)
}

func fieldNameOf(path string) string {
	parts := strings.Split(path, ".")
	return parts[len(parts)-1]
}

func (ev *Evaluator) evaluateSlotConditions(conds map[string]*schema.SlotCondition, instance map[string]any, ruleDescription string) ([]ValidationIssue, error) {
	var issues []ValidationIssue
	for slotName, cond := range conds {
		value := instance[slotName]
		slotIssues, err := ev.evaluateSlotCondition(slotName, value, cond, instance, ruleDescription)
		if err != nil {
			return nil, err
		}
		issues = append(issues, slotIssues...)
	}
	return issues, nil
}

// evaluateSlotCondition reports the specific way cond failed against
// value. Each branch corresponds to one of matcher.rs's checks, and
// issue codes/messages/context match evaluator.rs exactly.
func (ev *Evaluator) evaluateSlotCondition(slotName string, value any, cond *schema.SlotCondition, instance map[string]any, ruleDescription string) ([]ValidationIssue, error) {
	var issues []ValidationIssue

	if cond.Required && value == nil {
		issues = append(issues, ValidationIssue{
			Code:     "RULE_REQUIRED_FIELD",
			Severity: SeverityError,
			Message:  fmt.Sprintf("Field '%s' is required by rule: %s", fieldNameOf(slotName), ruleDescription),
		})
	}

	if cond.EqualsString != nil {
		s, ok := value.(string)
		if !ok || s != *cond.EqualsString {
			issues = append(issues, ValidationIssue{
				Code:     "RULE_EQUALS_STRING",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Field '%s' must equal %q%s", fieldNameOf(slotName), *cond.EqualsString, suffix(ruleDescription)),
				Context:  map[string]any{"expected": *cond.EqualsString, "actual": value},
			})
		}
	}

	if cond.EqualsExpression != "" {
		computed, err := ev.engine.Eval(cond.EqualsExpression, instance)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Code:     "RULE_EXPRESSION_ERROR",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Failed to evaluate equals_expression for '%s': %v%s", fieldNameOf(slotName), err, suffix(ruleDescription)),
			})
		} else if !expression.ValuesEqual(computed, value) {
			issues = append(issues, ValidationIssue{
				Code:     "RULE_EQUALS_EXPRESSION",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Field '%s' does not match computed value%s", fieldNameOf(slotName), suffix(ruleDescription)),
				Context:  map[string]any{"computed": computed, "actual": value},
			})
		}
	}

	return issues, nil
}

// evaluateExpressionConditions emits one issue per failing (or type-
// invalid, or erroring) expression, with a 1-based expression_index.
func (ev *Evaluator) evaluateExpressionConditions(cc *CompiledCondition, instance map[string]any, ruleDescription string) ([]ValidationIssue, error) {
	var issues []ValidationIssue
	for i, src := range cc.ExpressionSrc {
		result, err := ev.engine.EvalExpr(cc.Expressions[i], instance)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Code:     "RULE_EXPRESSION_ERROR",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Expression %q failed to evaluate: %v%s", src, err, suffix(ruleDescription)),
				Context:  map[string]any{"expression_index": i + 1},
			})
			continue
		}
		b, ok := result.(bool)
		if !ok {
			issues = append(issues, ValidationIssue{
				Code:     "RULE_EXPRESSION_TYPE_ERROR",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Expression %q did not evaluate to a boolean%s", src, suffix(ruleDescription)),
				Context:  map[string]any{"expression_index": i + 1},
			})
			continue
		}
		if !b {
			issues = append(issues, ValidationIssue{
				Code:     "RULE_EXPRESSION_FAILED",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Expression %q evaluated to false%s", src, suffix(ruleDescription)),
				Context:  map[string]any{"expression_index": i + 1},
			})
		}
	}
	return issues, nil
}

// evaluateComposite dispatches AnyOf/AllOf/ExactlyOneOf/NoneOf exactly
// as evaluator.rs's evaluate_composite_condition does: AnyOf treats a
// zero-issue sub-condition as satisfied and stops there; only if every
// branch produced issues does it emit RULE_ANY_OF_FAILED plus all
// accumulated sub-issues downgraded to Warning. AllOf concatenates
// sub-issues with no wrapper. ExactlyOneOf counts zero-issue branches
// and flags a mismatch with the satisfied count/indices. NoneOf flags
// every branch that unexpectedly produced zero issues (i.e. matched).
func (ev *Evaluator) evaluateComposite(c *CompiledComposite, instance map[string]any, ruleDescription string) ([]ValidationIssue, error) {
	var out []ValidationIssue

	if len(c.AnyOf) > 0 {
		satisfied := false
		var accumulated []ValidationIssue
		for _, sub := range c.AnyOf {
			subIssues, err := ev.EvaluatePostconditions(sub, instance, ruleDescription)
			if err != nil {
				return nil, err
			}
			if len(subIssues) == 0 {
				satisfied = true
				break
			}
			accumulated = append(accumulated, subIssues...)
		}
		if !satisfied {
			for i := range accumulated {
				accumulated[i].Severity = SeverityWarning
			}
			out = append(out, ValidationIssue{
				Code:     "RULE_ANY_OF_FAILED",
				Severity: SeverityError,
				Message:  fmt.Sprintf("None of the any_of branches were satisfied%s", suffix(ruleDescription)),
			})
			out = append(out, accumulated...)
		}
	}

	if len(c.AllOf) > 0 {
		for _, sub := range c.AllOf {
			subIssues, err := ev.EvaluatePostconditions(sub, instance, ruleDescription)
			if err != nil {
				return nil, err
			}
			out = append(out, subIssues...)
		}
	}

	if len(c.ExactlyOneOf) > 0 {
		satisfiedCount := 0
		var satisfiedIndices []int
		for i, sub := range c.ExactlyOneOf {
			subIssues, err := ev.EvaluatePostconditions(sub, instance, ruleDescription)
			if err != nil {
				return nil, err
			}
			if len(subIssues) == 0 {
				satisfiedCount++
				satisfiedIndices = append(satisfiedIndices, i+1)
			}
		}
		if satisfiedCount != 1 {
			out = append(out, ValidationIssue{
				Code:     "RULE_EXACTLY_ONE_OF_FAILED",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Expected exactly one exactly_one_of branch to be satisfied, got %d%s", satisfiedCount, suffix(ruleDescription)),
				Context:  map[string]any{"satisfied_count": satisfiedCount, "satisfied_indices": satisfiedIndices},
			})
		}
	}

	if len(c.NoneOf) > 0 {
		for i, sub := range c.NoneOf {
			subIssues, err := ev.EvaluatePostconditions(sub, instance, ruleDescription)
			if err != nil {
				return nil, err
			}
			if len(subIssues) == 0 {
				out = append(out, ValidationIssue{
					Code:     "RULE_NONE_OF_FAILED",
					Severity: SeverityError,
					Message:  fmt.Sprintf("none_of branch %d unexpectedly matched%s", i+1, suffix(ruleDescription)),
					Context:  map[string]any{"violated_condition": i + 1},
				})
			}
		}
	}

	return out, nil
}
