// Package rule compiles, matches, evaluates, and resolves inheritance
// for LinkML rules — the pre/postcondition mechanism attached to
// classes.
package rule

import (
	"fmt"

	"github.com/oarkflow/linkml/expression"
	"github.com/oarkflow/linkml/schema"
)

// CompiledCondition is the compiled form of a schema.RuleConditions: its
// expression strings are pre-parsed once so repeated matching never
// re-parses them, and its composite sub-conditions are compiled
// recursively. Matching ANDs together whichever of SlotConditions /
// Expressions / Composite are present, mirroring the original rule
// matcher's Combined dispatch (service/src/rule_engine/matcher.rs).
type CompiledCondition struct {
	SlotConditions map[string]*schema.SlotCondition
	Expressions    map[int]*expression.Expression // index -> parsed expression, in source order
	ExpressionSrc  []string
	Composite      *CompiledComposite
}

// CompiledComposite is the compiled form of schema.CompositeConditions.
type CompiledComposite struct {
	AnyOf        []*CompiledCondition
	AllOf        []*CompiledCondition
	ExactlyOneOf []*CompiledCondition
	NoneOf       []*CompiledCondition
}

// Compiler turns schema-level condition trees into CompiledConditions,
// parsing every expression_conditions string exactly once.
type Compiler struct{}

// NewCompiler returns a Compiler.
func NewCompiler() *Compiler { return &Compiler{} }

// Compile compiles rc, or returns nil if rc is nil (an absent
// preconditions/postconditions block compiles to a nil
// *CompiledCondition, which Matches treats as "always matches").
func (c *Compiler) Compile(rc *schema.RuleConditions) (*CompiledCondition, error) {
	if rc == nil {
		return nil, nil
	}
	cc := &CompiledCondition{
		SlotConditions: rc.SlotConditions,
		ExpressionSrc:  rc.ExpressionConditions,
	}
	if len(rc.ExpressionConditions) > 0 {
		cc.Expressions = make(map[int]*expression.Expression, len(rc.ExpressionConditions))
		for i, src := range rc.ExpressionConditions {
			expr, err := expression.Parse(src)
			if err != nil {
				return nil, fmt.Errorf("rule: compiling expression_conditions[%d] %q: %w", i, src, err)
			}
			cc.Expressions[i] = expr
		}
	}
	if rc.CompositeConditions != nil {
		composite, err := c.compileComposite(rc.CompositeConditions)
		if err != nil {
			return nil, err
		}
		cc.Composite = composite
	}
	return cc, nil
}

func (c *Compiler) compileComposite(in *schema.CompositeConditions) (*CompiledComposite, error) {
	out := &CompiledComposite{}
	var err error
	if out.AnyOf, err = c.compileAll(in.AnyOf); err != nil {
		return nil, err
	}
	if out.AllOf, err = c.compileAll(in.AllOf); err != nil {
		return nil, err
	}
	if out.ExactlyOneOf, err = c.compileAll(in.ExactlyOneOf); err != nil {
		return nil, err
	}
	if out.NoneOf, err = c.compileAll(in.NoneOf); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Compiler) compileAll(in []*schema.RuleConditions) ([]*CompiledCondition, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]*CompiledCondition, len(in))
	for i, rc := range in {
		compiled, err := c.Compile(rc)
		if err != nil {
			return nil, err
		}
		out[i] = compiled
	}
	return out, nil
}

// CompiledRule is a schema.Rule with its pre-, post-, and else
// conditions compiled.
type CompiledRule struct {
	Source         *schema.Rule
	Preconditions  *CompiledCondition
	Postconditions *CompiledCondition
	Else           *CompiledCondition
}

// CompileRule compiles all three condition blocks of a rule. Else is
// evaluated as postconditions when preconditions fail to match (see
// Evaluator.EvaluatePostconditions), so it is compiled the same way.
func (c *Compiler) CompileRule(r *schema.Rule) (*CompiledRule, error) {
	pre, err := c.Compile(r.Preconditions)
	if err != nil {
		return nil, fmt.Errorf("rule: preconditions: %w", err)
	}
	post, err := c.Compile(r.Postconditions)
	if err != nil {
		return nil, fmt.Errorf("rule: postconditions: %w", err)
	}
	els, err := c.Compile(r.ElseConditions)
	if err != nil {
		return nil, fmt.Errorf("rule: else_conditions: %w", err)
	}
	return &CompiledRule{Source: r, Preconditions: pre, Postconditions: post, Else: els}, nil
}
