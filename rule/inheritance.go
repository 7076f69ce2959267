package rule

import (
	"fmt"
	"hash/fnv"

	"github.com/oarkflow/linkml/schema"
)

// InheritanceResolver computes the full, deduplicated, priority-adjusted
// rule set a class inherits from its is_a/mixin ancestors. Ported from
// original_source/service/src/rule_engine/inheritance.rs.
type InheritanceResolver struct {
	index *schema.Index
	sch   *schema.Schema
}

// NewInheritanceResolver builds a resolver over a compiled schema.
func NewInheritanceResolver(sch *schema.Schema, index *schema.Index) *InheritanceResolver {
	return &InheritanceResolver{index: index, sch: sch}
}

// ResolvedRule is one rule attached to className's effective rule set,
// annotated with the class it actually came from.
type ResolvedRule struct {
	Rule        *schema.Rule
	SourceClass string
	Inherited   bool
}

// GetAllRules returns every rule className is subject to: its own rules
// unmodified, plus each ancestor's rules with priority decayed by
// -10*distance and " [inherited from X]" appended to the description,
// deduplicated by rule identity so an overriding subclass rule with the
// same identity as an ancestor's masks it.
func (r *InheritanceResolver) GetAllRules(className string) ([]ResolvedRule, error) {
	chain := r.index.Ancestors(className)
	if chain == nil {
		return nil, fmt.Errorf("rule: class %q not found", className)
	}

	// dist holds each ancestor's shortest is_a/mixin hop count from className.
	dist := map[string]int{className: 0}
	for queue := []string{className}; len(queue) > 0; queue = queue[1:] {
		c := r.sch.Classes[queue[0]]
		if c == nil {
			continue
		}
		for _, p := range append([]string{c.IsA}, c.Mixins...) {
			if _, ok := dist[p]; p != "" && !ok {
				dist[p] = dist[queue[0]] + 1
				queue = append(queue, p)
			}
		}
	}

	seen := map[string]bool{}
	var out []ResolvedRule

	for _, ancestorName := range chain {
		distance := dist[ancestorName]
		ancestor := r.sch.Classes[ancestorName]
		if ancestor == nil {
			continue
		}
		for _, rl := range ancestor.Rules {
			id := ruleIdentity(rl)
			if seen[id] {
				continue
			}
			seen[id] = true

			if distance == 0 {
				out = append(out, ResolvedRule{Rule: rl, SourceClass: ancestorName, Inherited: false})
				continue
			}
			out = append(out, ResolvedRule{
				Rule:        adjustInheritedRule(rl, ancestorName, distance),
				SourceClass: ancestorName,
				Inherited:   true,
			})
		}
	}
	return out, nil
}

// ruleIdentity mirrors get_rule_id: title first, else the first 50
// runes of description, else a hash of description+title+priority+pre/
// postconditions.
func ruleIdentity(r *schema.Rule) string {
	if r.Title != "" {
		return r.Title
	}
	if r.Description != "" {
		runes := []rune(r.Description)
		if len(runes) > 50 {
			runes = runes[:50]
		}
		return string(runes)
	}
	h := fnv.New64a()
	priority := 0
	if r.Priority != nil {
		priority = *r.Priority
	}
	fmt.Fprintf(h, "%s|%s|%d|%+v|%+v", r.Description, r.Title, priority, r.Preconditions, r.Postconditions)
	return fmt.Sprintf("rule_%x", h.Sum64())
}

// adjustInheritedRule returns a copy of r with priority reduced by
// 10*distance and the description suffixed to note the source class.
func adjustInheritedRule(r *schema.Rule, sourceClass string, distance int) *schema.Rule {
	adjusted := *r
	base := 0
	if r.Priority != nil {
		base = *r.Priority
	}
	newPriority := base - 10*distance
	adjusted.Priority = &newPriority
	adjusted.Description = fmt.Sprintf("%s [inherited from %s]", r.Description, sourceClass)
	return &adjusted
}

// RuleOverride is a per-class, per-rule override: disabling a rule,
// replacing its priority, or unioning extra pre/postcondition branches
// into its existing composite conditions.
type RuleOverride struct {
	Disable                bool
	Priority               *int
	AdditionalPreconditions  *schema.CompositeConditions
	AdditionalPostconditions *schema.CompositeConditions
}

// OverrideManager applies per-class rule overrides. Ported from
// inheritance.rs's RuleOverrideManager.
type OverrideManager struct {
	overrides map[string]map[string]*RuleOverride // className -> ruleID -> override
}

// NewOverrideManager returns an empty OverrideManager.
func NewOverrideManager() *OverrideManager {
	return &OverrideManager{overrides: map[string]map[string]*RuleOverride{}}
}

// AddOverride registers an override for ruleID within className.
func (m *OverrideManager) AddOverride(className, ruleID string, override *RuleOverride) {
	if m.overrides[className] == nil {
		m.overrides[className] = map[string]*RuleOverride{}
	}
	m.overrides[className][ruleID] = override
}

// Apply applies any registered override for (className, ruleIdentity(r))
// onto r in place, returning true if the rule ends up disabled. A
// disable override short-circuits before priority/condition merging is
// applied, matching apply_override in inheritance.rs.
func (m *OverrideManager) Apply(r *schema.Rule, className string) bool {
	classOverrides := m.overrides[className]
	if classOverrides == nil {
		return false
	}
	override, ok := classOverrides[ruleIdentity(r)]
	if !ok {
		return false
	}
	if override.Disable {
		r.Deactivated = true
		return true
	}
	if override.Priority != nil {
		r.Priority = override.Priority
	}
	if override.AdditionalPreconditions != nil {
		r.Preconditions = mergeConditions(r.Preconditions, override.AdditionalPreconditions)
	}
	if override.AdditionalPostconditions != nil {
		r.Postconditions = mergeConditions(r.Postconditions, override.AdditionalPostconditions)
	}
	return false
}

// mergeConditions unions additional's composite branches into base's
// composite_conditions (creating one if base had none), or replaces
// base wholesale if base was nil — union/append, never replacement of
// an existing branch list, matching the original's
// `.into_iter().chain(...).collect()`.
func mergeConditions(base *schema.RuleConditions, additional *schema.CompositeConditions) *schema.RuleConditions {
	if base == nil {
		return &schema.RuleConditions{CompositeConditions: additional}
	}
	if base.CompositeConditions == nil {
		base.CompositeConditions = &schema.CompositeConditions{}
	}
	base.CompositeConditions.AnyOf = append(base.CompositeConditions.AnyOf, additional.AnyOf...)
	base.CompositeConditions.AllOf = append(base.CompositeConditions.AllOf, additional.AllOf...)
	base.CompositeConditions.ExactlyOneOf = append(base.CompositeConditions.ExactlyOneOf, additional.ExactlyOneOf...)
	base.CompositeConditions.NoneOf = append(base.CompositeConditions.NoneOf, additional.NoneOf...)
	return base
}
