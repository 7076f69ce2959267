package rule

import (
	"testing"

	"github.com/oarkflow/linkml/expression"
	"github.com/oarkflow/linkml/schema"
)

func minVal(v float64) *float64 { return &v }

func TestSlotConditionMinimumValue(t *testing.T) {
	c := NewCompiler()
	rc := &schema.RuleConditions{
		SlotConditions: map[string]*schema.SlotCondition{
			"age": {MinimumValue: minVal(18)},
		},
	}
	cc, err := c.Compile(rc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := NewMatcher(expression.NewEngine())
	ok, err := m.Matches(cc, map[string]any{"age": 20.0})
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = m.Matches(cc, map[string]any{"age": 16.0})
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestExpressionConditionMatching(t *testing.T) {
	c := NewCompiler()
	rc := &schema.RuleConditions{
		ExpressionConditions: []string{`{age} >= 18 and {status} == "active"`},
	}
	cc, err := c.Compile(rc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := NewMatcher(expression.NewEngine())
	ok, _ := m.Matches(cc, map[string]any{"age": 20.0, "status": "active"})
	if !ok {
		t.Fatal("expected match")
	}
	ok, _ = m.Matches(cc, map[string]any{"age": 16.0, "status": "active"})
	if ok {
		t.Fatal("expected no match")
	}
}

func TestRequiredFieldEvaluation(t *testing.T) {
	c := NewCompiler()
	rc := &schema.RuleConditions{
		SlotConditions: map[string]*schema.SlotCondition{"email": {Required: true}},
	}
	cc, err := c.Compile(rc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	engine := expression.NewEngine()
	ev := NewEvaluator(engine, NewMatcher(engine))
	issues, err := ev.EvaluatePostconditions(cc, map[string]any{}, "email required")
	if err != nil {
		t.Fatalf("EvaluatePostconditions: %v", err)
	}
	if len(issues) != 1 || issues[0].Code != "RULE_REQUIRED_FIELD" {
		t.Fatalf("got %+v", issues)
	}
}

func TestExpressionConditionIssue(t *testing.T) {
	c := NewCompiler()
	rc := &schema.RuleConditions{ExpressionConditions: []string{`{x} > 10`}}
	cc, err := c.Compile(rc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	engine := expression.NewEngine()
	ev := NewEvaluator(engine, NewMatcher(engine))
	issues, err := ev.EvaluatePostconditions(cc, map[string]any{"x": 5.0}, "")
	if err != nil {
		t.Fatalf("EvaluatePostconditions: %v", err)
	}
	if len(issues) != 1 || issues[0].Code != "RULE_EXPRESSION_FAILED" {
		t.Fatalf("got %+v", issues)
	}
	if issues[0].Context["expression_index"] != 1 {
		t.Fatalf("expected 1-based expression_index, got %+v", issues[0].Context)
	}
}

func TestNoIssuesWhenConditionAlreadyMatches(t *testing.T) {
	c := NewCompiler()
	rc := &schema.RuleConditions{SlotConditions: map[string]*schema.SlotCondition{"age": {MinimumValue: minVal(18)}}}
	cc, err := c.Compile(rc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	engine := expression.NewEngine()
	ev := NewEvaluator(engine, NewMatcher(engine))
	issues, err := ev.EvaluatePostconditions(cc, map[string]any{"age": 30.0}, "")
	if err != nil {
		t.Fatalf("EvaluatePostconditions: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues when condition already matches, got %+v", issues)
	}
}

func TestInheritanceChainAndPriorityDecay(t *testing.T) {
	basePriority := 90
	derivedPriority := 50
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Base": {Name: "Base", Rules: []*schema.Rule{
				{Title: "base_rule", Priority: &basePriority},
			}},
			"Derived": {Name: "Derived", IsA: "Base", Rules: []*schema.Rule{
				{Title: "derived_rule", Priority: &derivedPriority},
			}},
		},
	}
	idx, err := schema.Build(sch)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	resolver := NewInheritanceResolver(sch, idx)
	rules, err := resolver.GetAllRules("Derived")
	if err != nil {
		t.Fatalf("GetAllRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Rule.Title != "derived_rule" || *rules[0].Rule.Priority != 50 {
		t.Errorf("expected derived_rule first with priority 50 unmodified, got %+v", rules[0])
	}
	if rules[1].SourceClass != "Base" || *rules[1].Rule.Priority != 80 {
		t.Errorf("expected base_rule with priority 90-10=80, got %+v", rules[1])
	}
}
