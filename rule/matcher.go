package rule

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/oarkflow/linkml/expression"
	"github.com/oarkflow/linkml/schema"
)

// slotPatternCache caches compiled regexes for SlotCondition.Pattern,
// the same sync.Map-keyed-by-pattern-string idiom the teacher uses for
// compiledRegexPool in jsonschema/v2/jsonschema.go. The richer
// interpolated-pattern cache lives in package pattern; rule conditions
// only ever use plain regex literals, so a flat cache is enough here.
var slotPatternCache sync.Map

func matchesPattern(pat, s string) (bool, error) {
	if cached, ok := slotPatternCache.Load(pat); ok {
		return cached.(*regexp.Regexp).MatchString(s), nil
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return false, fmt.Errorf("rule: invalid pattern %q: %w", pat, err)
	}
	slotPatternCache.Store(pat, re)
	return re.MatchString(s), nil
}

// Matcher evaluates whether an instance satisfies a CompiledCondition.
// Ported from original_source/service/src/rule_engine/matcher.rs:
// Combined conditions AND together whichever of slot/expression/
// composite axes are present, short-circuiting on the first failing
// axis.
type Matcher struct {
	engine *expression.Engine
}

// NewMatcher returns a Matcher backed by engine.
func NewMatcher(engine *expression.Engine) *Matcher {
	return &Matcher{engine: engine}
}

// Matches reports whether instance satisfies cc. A nil cc always
// matches (an absent condition block imposes no constraint).
func (m *Matcher) Matches(cc *CompiledCondition, instance map[string]any) (bool, error) {
	if cc == nil {
		return true, nil
	}
	if cc.SlotConditions != nil {
		ok, err := m.matchSlotConditions(cc.SlotConditions, instance)
		if err != nil || !ok {
			return false, err
		}
	}
	if cc.Expressions != nil {
		ok, err := m.matchExpressionConditions(cc, instance)
		if err != nil || !ok {
			return false, err
		}
	}
	if cc.Composite != nil {
		ok, err := m.matchComposite(cc.Composite, instance)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) matchSlotConditions(conds map[string]*schema.SlotCondition, instance map[string]any) (bool, error) {
	for slotName, cond := range conds {
		value := instance[slotName]
		ok, err := m.matchSlotCondition(value, cond, instance)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchSlotCondition checks a single slot's value against one
// SlotCondition, in the exact order matcher.rs checks them: required,
// pattern, equals_string, equals_number, equals_expression,
// minimum_value, maximum_value, then the any_of/all_of/exactly_one_of/
// none_of combinators.
func (m *Matcher) matchSlotCondition(value any, cond *schema.SlotCondition, instance map[string]any) (bool, error) {
	if cond.Required && value == nil {
		return false, nil
	}
	if cond.Pattern != "" {
		s, ok := value.(string)
		if !ok {
			return false, nil
		}
		matched, err := matchesPattern(cond.Pattern, s)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	if cond.EqualsString != nil {
		s, ok := value.(string)
		if !ok || s != *cond.EqualsString {
			return false, nil
		}
	}
	if cond.EqualsNumber != nil {
		f, ok := expression.AsNumber(value)
		if !ok || abs(f-*cond.EqualsNumber) > 1e-9 {
			return false, nil
		}
	}
	if cond.EqualsExpression != "" {
		result, err := m.engine.Eval(cond.EqualsExpression, instance)
		if err != nil {
			return false, err
		}
		if !expression.ValuesEqual(result, value) {
			return false, nil
		}
	}
	if cond.MinimumValue != nil {
		cmp, err := compareNumericOrLength(value, *cond.MinimumValue)
		if err != nil {
			return false, err
		}
		if cmp < 0 {
			return false, nil
		}
	}
	if cond.MaximumValue != nil {
		cmp, err := compareNumericOrLength(value, *cond.MaximumValue)
		if err != nil {
			return false, err
		}
		if cmp > 0 {
			return false, nil
		}
	}
	if len(cond.AnyOf) > 0 {
		matched := false
		for _, sub := range cond.AnyOf {
			ok, err := m.matchSlotCondition(value, sub, instance)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	if len(cond.AllOf) > 0 {
		for _, sub := range cond.AllOf {
			ok, err := m.matchSlotCondition(value, sub, instance)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	if len(cond.ExactlyOneOf) > 0 {
		count := 0
		for _, sub := range cond.ExactlyOneOf {
			ok, err := m.matchSlotCondition(value, sub, instance)
			if err != nil {
				return false, err
			}
			if ok {
				count++
				if count > 1 {
					return false, nil
				}
			}
		}
		if count != 1 {
			return false, nil
		}
	}
	if len(cond.NoneOf) > 0 {
		for _, sub := range cond.NoneOf {
			ok, err := m.matchSlotCondition(value, sub, instance)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// matchExpressionConditions requires every expression to evaluate to a
// boolean; a non-boolean result is a data error (not simply "no
// match"), matching the original's dedicated error path.
func (m *Matcher) matchExpressionConditions(cc *CompiledCondition, instance map[string]any) (bool, error) {
	for i := 0; i < len(cc.ExpressionSrc); i++ {
		result, err := m.engine.EvalExpr(cc.Expressions[i], instance)
		if err != nil {
			return false, err
		}
		b, ok := result.(bool)
		if !ok {
			return false, fmt.Errorf("rule: expression_conditions[%d] %q did not evaluate to a boolean (got %T)", i, cc.ExpressionSrc[i], result)
		}
		if !b {
			return false, nil
		}
	}
	return true, nil
}

func (m *Matcher) matchComposite(c *CompiledComposite, instance map[string]any) (bool, error) {
	if len(c.AnyOf) > 0 {
		matched := false
		for _, sub := range c.AnyOf {
			ok, err := m.Matches(sub, instance)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	if len(c.AllOf) > 0 {
		for _, sub := range c.AllOf {
			ok, err := m.Matches(sub, instance)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	if len(c.ExactlyOneOf) > 0 {
		count := 0
		for _, sub := range c.ExactlyOneOf {
			ok, err := m.Matches(sub, instance)
			if err != nil {
				return false, err
			}
			if ok {
				count++
				if count > 1 {
					return false, nil
				}
			}
		}
		if count != 1 {
			return false, nil
		}
	}
	if len(c.NoneOf) > 0 {
		for _, sub := range c.NoneOf {
			ok, err := m.Matches(sub, instance)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// compareNumericOrLength compares value against threshold the way
// original_source/service/src/rule_engine/matcher.rs::compare_values
// does: numeric values compare as float64, string values compare by
// rune length. Returns <0, 0, or >0.
func compareNumericOrLength(value any, threshold float64) (float64, error) {
	if f, ok := expression.AsNumber(value); ok {
		return f - threshold, nil
	}
	if s, ok := value.(string); ok {
		return float64(len([]rune(s))) - threshold, nil
	}
	return 0, fmt.Errorf("rule: cannot compare %T against a numeric threshold", value)
}
