package validate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oarkflow/linkml/expression"
	"github.com/oarkflow/linkml/memsafe"
	"github.com/oarkflow/linkml/pattern"
	"github.com/oarkflow/linkml/rule"
	"github.com/oarkflow/linkml/schema"
)

// Engine ties together the schema index, rule compiler/matcher/
// evaluator/inheritance resolver, and pattern compiler needed to
// validate instances against a compiled schema. An Engine is safe for
// concurrent use by ValidateCollection's worker pool.
type Engine struct {
	cs          *schema.CompiledSchema
	exprEngine  *expression.Engine
	ruleCompiler *rule.Compiler
	matcher     *rule.Matcher
	evaluator   *rule.Evaluator
	inheritance *rule.InheritanceResolver
	patterns    *pattern.Compiler

	ruleCacheMu sync.RWMutex
	ruleCache   map[string][]*compiledRule
	uniq        *uniquenessTracker
	mem         *memsafe.Tracker
}

type compiledRule struct {
	resolved rule.ResolvedRule
	compiled *rule.CompiledRule
	declOrder int
}

// NewEngine builds an Engine over a compiled schema.
func NewEngine(cs *schema.CompiledSchema) *Engine {
	exprEngine := expression.NewEngine()
	matcher := rule.NewMatcher(exprEngine)
	return &Engine{
		cs:          cs,
		exprEngine:  exprEngine,
		ruleCompiler: rule.NewCompiler(),
		matcher:     matcher,
		evaluator:   rule.NewEvaluator(exprEngine, matcher),
		inheritance: rule.NewInheritanceResolver(cs.Schema, cs.Index),
		patterns:    pattern.NewCompiler(),
		ruleCache:   map[string][]*compiledRule{},
		uniq:        newUniquenessTracker(),
		mem:         memsafe.NewTracker(memsafe.DefaultConfig()),
	}
}

// ResetUniqueness clears tracked unique-key state for class, the
// external operation named in the spec's interface surface.
func (e *Engine) ResetUniqueness(class string) {
	e.uniq.reset(class)
}

// Validate validates instance against class using opts (DefaultOptions
// if nil).
func (e *Engine) Validate(instance map[string]any, class string, opts *Options) (*Report, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Track the lifetime of this one validation call: a ScopedPool groups
	// whatever transient state it accumulates so it can be released
	// together, and the allocation guard lets leak detection/memory-
	// pressure checks see in-flight validations the same way they'd see
	// any other tracked allocation.
	scope := memsafe.NewScopedPool("validate:" + class)
	guard := e.mem.TrackAllocation("validate."+class, uint64(len(instance))*64)
	scope.OnClear(guard.Release)
	defer scope.Clear()

	report := newReport()
	if err := e.validateAsClass(instance, class, "$", 0, opts, report); err != nil {
		return nil, err
	}
	report.finalize(opts.FailOnWarning)
	return report, nil
}

// runCustomValidators runs opts.CustomValidators in order, each guarded
// by a recover boundary: a panic inside Func is reported as
// CUSTOM_VALIDATOR_PANIC instead of propagating and aborting the whole
// validation run.
func (e *Engine) runCustomValidators(instance map[string]any, class string, report *Report, opts *Options) {
	for _, cv := range opts.CustomValidators {
		func() {
			defer func() {
				if r := recover(); r != nil {
					report.add(Issue{
						Code:    CodeCustomValidatorPanic,
						Path:    "$",
						Message: fmt.Sprintf("custom validator %q panicked: %v", cv.Name, r),
					})
				}
			}()
			if err := cv.Func(instance, class); err != nil {
				report.add(Issue{
					Code:    CodeCustomValidatorPanic,
					Path:    "$",
					Message: fmt.Sprintf("custom validator %q failed: %v", cv.Name, err),
				})
			}
		}()
	}
}

func (e *Engine) validateAsClass(instance map[string]any, class, path string, depth int, opts *Options, report *Report) error {
	classDef, ok := e.cs.Schema.Classes[class]
	if !ok {
		return fmt.Errorf("validate: unknown class %q", class)
	}
	if classDef.Abstract && !opts.AllowAbstract {
		report.add(Issue{Code: CodeAbstractInstantiation, Path: path, Message: fmt.Sprintf("class %q is abstract and cannot be instantiated directly", class)})
		return nil
	}
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		return nil
	}
	slots, err := e.cs.Index.EffectiveSlots(class)
	if err != nil {
		return err
	}

	allowAdditional := opts.AllowAdditionalProperties || classDef.AllowAdditional
	if !allowAdditional {
		for key := range instance {
			if _, ok := slots[key]; !ok {
				report.add(Issue{Code: CodeUnexpectedField, Path: path, Message: fmt.Sprintf("field %q is not declared on class %q", key, class)})
				if opts.FailFast {
					return nil
				}
			}
		}
	}

	slotNames := make([]string, 0, len(slots))
	for name := range slots {
		slotNames = append(slotNames, name)
	}
	sort.Strings(slotNames)

	for _, name := range slotNames {
		slot := slots[name]
		value, present := instance[name]
		slotPath := path + "." + name

		if slot.Required && !present {
			report.add(Issue{Code: CodeRequiredFieldMissing, Path: slotPath, Message: fmt.Sprintf("slot %q is required", name)})
			if opts.FailFast {
				return nil
			}
			continue
		}
		if !present {
			continue
		}

		if slot.Multivalued {
			list, ok := value.([]any)
			if !ok {
				report.add(Issue{Code: CodeTypeMismatch, Path: slotPath, Message: fmt.Sprintf("slot %q is multivalued but value is not a list", name)})
				if opts.FailFast {
					return nil
				}
				continue
			}
			for i, item := range list {
				if err := e.validateSlotValue(item, slot, fmt.Sprintf("%s[%d]", slotPath, i), depth, opts, report); err != nil {
					return err
				}
				if opts.FailFast && !report.Valid {
					return nil
				}
			}
		} else {
			if err := e.validateSlotValue(value, slot, slotPath, depth, opts, report); err != nil {
				return err
			}
			if opts.FailFast && !report.Valid {
				return nil
			}
		}
	}

	if err := e.checkUniqueKeys(instance, classDef, path, opts, report); err != nil {
		return err
	}
	if err := e.checkConditionalRequirements(instance, classDef, path, opts, report); err != nil {
		return err
	}
	if err := e.applyRules(instance, class, path, opts, report); err != nil {
		return err
	}
	e.runCustomValidators(instance, class, report, opts)
	return nil
}

// validateSlotValue dispatches in the fixed order: range (recursing
// into a class range, or checking a scalar type/enum range), pattern,
// structured_pattern, minimum/maximum, equals_string/equals_number/
// equals_expression, then the any_of/all_of/exactly_one_of/none_of
// combinators.
func (e *Engine) validateSlotValue(value any, slot *schema.SlotDef, path string, depth int, opts *Options, report *Report) error {
	if err := e.checkRange(value, slot, path, depth, opts, report); err != nil {
		return err
	}
	if opts.FailFast && !report.Valid {
		return nil
	}

	if slot.Pattern != "" {
		if s, ok := value.(string); ok {
			re, err := e.patterns.Compile(pattern.Spec{Syntax: "regex", Pattern: slot.Pattern}, nil)
			if err != nil {
				return err
			}
			if !re.MatchString(s) {
				report.add(Issue{Code: CodePatternMismatch, Path: path, Message: fmt.Sprintf("value %q does not match pattern %q", s, slot.Pattern)})
			}
		}
	}
	if slot.StructuredPattern != nil {
		if s, ok := value.(string); ok {
			spec := pattern.Spec{
				Syntax:       slot.StructuredPattern.Syntax,
				Pattern:      slot.StructuredPattern.Pattern,
				Interpolated: slot.StructuredPattern.Interpolated,
				PartialMatch: slot.StructuredPattern.PartialMatch,
			}
			re, err := e.patterns.Compile(spec, nil)
			if err != nil {
				return err
			}
			if !re.MatchString(s) {
				report.add(Issue{Code: CodePatternMismatch, Path: path, Message: fmt.Sprintf("value %q does not match structured pattern", s)})
			}
		}
	}
	if opts.FailFast && !report.Valid {
		return nil
	}

	if slot.Minimum != nil {
		if f, ok := expression.AsNumber(value); ok && f < *slot.Minimum {
			report.add(Issue{Code: CodeRangeMin, Path: path, Message: fmt.Sprintf("value %v is below minimum %v", value, *slot.Minimum),
				Context: map[string]any{"min": *slot.Minimum, "actual": value}})
		}
	}
	if slot.Maximum != nil {
		if f, ok := expression.AsNumber(value); ok && f > *slot.Maximum {
			report.add(Issue{Code: CodeRangeMax, Path: path, Message: fmt.Sprintf("value %v exceeds maximum %v", value, *slot.Maximum),
				Context: map[string]any{"max": *slot.Maximum, "actual": value}})
		}
	}
	if slot.MinimumLength != nil {
		if s, ok := value.(string); ok && len([]rune(s)) < *slot.MinimumLength {
			report.add(Issue{Code: CodeRangeMin, Path: path, Message: fmt.Sprintf("length %d is below minimum %d", len([]rune(s)), *slot.MinimumLength),
				Context: map[string]any{"min": *slot.MinimumLength, "actual": len([]rune(s))}})
		}
	}
	if slot.MaximumLength != nil {
		if s, ok := value.(string); ok && len([]rune(s)) > *slot.MaximumLength {
			report.add(Issue{Code: CodeRangeMax, Path: path, Message: fmt.Sprintf("length %d exceeds maximum %d", len([]rune(s)), *slot.MaximumLength),
				Context: map[string]any{"max": *slot.MaximumLength, "actual": len([]rune(s))}})
		}
	}

	if slot.EqualsString != nil {
		if s, ok := value.(string); !ok || s != *slot.EqualsString {
			report.add(Issue{Code: CodeEqualsString, Path: path, Message: fmt.Sprintf("value must equal %q", *slot.EqualsString)})
		}
	}
	if slot.EqualsNumber != nil {
		if f, ok := expression.AsNumber(value); !ok || f != *slot.EqualsNumber {
			report.add(Issue{Code: CodeEqualsNumber, Path: path, Message: fmt.Sprintf("value must equal %v", *slot.EqualsNumber)})
		}
	}
	if slot.EqualsExpression != "" {
		result, err := e.exprEngine.Eval(slot.EqualsExpression, map[string]any{"value": value})
		if err != nil {
			return err
		}
		if !expression.ValuesEqual(result, value) {
			report.add(Issue{Code: CodeEqualsExpression, Path: path, Message: "value does not match computed expression"})
		}
	}

	if err := e.checkSlotCombinators(value, slot, path, depth, opts, report); err != nil {
		return err
	}
	return nil
}

func (e *Engine) checkRange(value any, slot *schema.SlotDef, path string, depth int, opts *Options, report *Report) error {
	if slot.Range == "" {
		return nil
	}
	if _, isClass := e.cs.Schema.Classes[slot.Range]; isClass {
		obj, ok := value.(map[string]any)
		if !ok {
			report.add(Issue{Code: CodeTypeMismatch, Path: path, Message: fmt.Sprintf("expected an object of class %q", slot.Range)})
			return nil
		}
		return e.validateAsClass(obj, slot.Range, path, depth+1, opts, report)
	}
	if enumDef, isEnum := e.cs.Schema.Enums[slot.Range]; isEnum {
		if !opts.CheckPermissibles {
			return nil
		}
		s, ok := value.(string)
		if !ok || !contains(enumDef.PermissibleValues, s) {
			report.add(Issue{Code: CodeEnumNotPermitted, Path: path, Message: fmt.Sprintf("value %v is not one of %v", value, enumDef.PermissibleValues)})
		}
		return nil
	}
	if typeDef, isType := e.cs.Schema.Types[slot.Range]; isType {
		return e.checkBaseType(value, typeDef.BaseType, path, report)
	}
	return e.checkBaseType(value, slot.Range, path, report)
}

func (e *Engine) checkBaseType(value any, baseType, path string, report *Report) error {
	switch baseType {
	case "string", "date", "datetime":
		if _, ok := value.(string); !ok {
			report.add(Issue{Code: CodeTypeMismatch, Path: path, Message: fmt.Sprintf("expected a string, got %T", value)})
		}
	case "integer", "float", "double", "decimal":
		if _, ok := expression.AsNumber(value); !ok {
			report.add(Issue{Code: CodeTypeMismatch, Path: path, Message: fmt.Sprintf("expected a number, got %T", value)})
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			report.add(Issue{Code: CodeTypeMismatch, Path: path, Message: fmt.Sprintf("expected a boolean, got %T", value)})
		}
	}
	return nil
}

func (e *Engine) checkSlotCombinators(value any, slot *schema.SlotDef, path string, depth int, opts *Options, report *Report) error {
	if len(slot.AnyOf) > 0 {
		matched := false
		for _, sub := range slot.AnyOf {
			sub := sub
			trial := newReport()
			if err := e.validateSlotValue(value, sub, path, depth, opts, trial); err != nil {
				return err
			}
			if trial.Valid {
				matched = true
				break
			}
		}
		if !matched {
			report.add(Issue{Code: CodeAnyOfFailed, Path: path, Message: "value did not satisfy any of the any_of branches"})
		}
	}
	if len(slot.AllOf) > 0 {
		for _, sub := range slot.AllOf {
			if err := e.validateSlotValue(value, sub, path, depth, opts, report); err != nil {
				return err
			}
		}
	}
	if len(slot.ExactlyOneOf) > 0 {
		count := 0
		for _, sub := range slot.ExactlyOneOf {
			trial := newReport()
			if err := e.validateSlotValue(value, sub, path, depth, opts, trial); err != nil {
				return err
			}
			if trial.Valid {
				count++
			}
		}
		if count != 1 {
			report.add(Issue{Code: CodeExactlyOneOfFailed, Path: path, Message: fmt.Sprintf("expected exactly one exactly_one_of branch to be satisfied, got %d", count)})
		}
	}
	if len(slot.NoneOf) > 0 {
		for _, sub := range slot.NoneOf {
			trial := newReport()
			if err := e.validateSlotValue(value, sub, path, depth, opts, trial); err != nil {
				return err
			}
			if trial.Valid {
				report.add(Issue{Code: CodeNoneOfFailed, Path: path, Message: "value unexpectedly satisfied a none_of branch"})
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// checkConditionalRequirements evaluates each if_required entry's
// triggering SlotCondition against instance, and if it holds, requires
// every slot named in Then to be present.
func (e *Engine) checkConditionalRequirements(instance map[string]any, classDef *schema.ClassDef, path string, opts *Options, report *Report) error {
	for triggerSlot, condReq := range classDef.IfRequired {
		cc := &rule.CompiledCondition{SlotConditions: map[string]*schema.SlotCondition{triggerSlot: &condReq.Condition}}
		triggered, err := e.matcher.Matches(cc, instance)
		if err != nil {
			return err
		}
		if !triggered {
			continue
		}
		for _, required := range condReq.Then {
			if _, ok := instance[required]; !ok {
				report.add(Issue{
					Code:    CodeConditionalRequirementNotMet,
					Path:    path + "." + required,
					Message: fmt.Sprintf("slot %q is required when %q satisfies its condition", required, triggerSlot),
				})
				if opts.FailFast {
					return nil
				}
			}
		}
	}
	return nil
}

// applyRules runs every rule className's instances are subject to
// (including inherited ones, sorted by priority desc then declaration
// order), skipping deactivated rules and evaluating postconditions only
// when preconditions match.
func (e *Engine) applyRules(instance map[string]any, class, path string, opts *Options, report *Report) error {
	rules, err := e.compiledRulesFor(class, opts.UseCache)
	if err != nil {
		return err
	}
	for _, cr := range rules {
		if cr.resolved.Rule.Deactivated {
			continue
		}
		preMatch, err := e.matcher.Matches(cr.compiled.Preconditions, instance)
		if err != nil {
			return err
		}
		description := cr.resolved.Rule.Description
		if description == "" {
			description = cr.resolved.Rule.Title
		}

		var issues []rule.ValidationIssue
		if preMatch {
			issues, err = e.evaluator.EvaluatePostconditions(cr.compiled.Postconditions, instance, description)
		} else {
			issues, err = e.evaluator.EvaluatePostconditions(cr.compiled.Else, instance, description)
		}
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			report.addRuleIssues(path, issues)
			if opts.FailFast {
				return nil
			}
		}
	}
	return nil
}

// compiledRulesFor returns class's resolved+compiled rule set, sorted by
// (priority desc, declaration order) and cached for reuse across
// Validate calls on the same Engine. useCache false bypasses both the
// read and the write, forcing recompilation on every call.
func (e *Engine) compiledRulesFor(class string, useCache bool) ([]*compiledRule, error) {
	if useCache {
		e.ruleCacheMu.RLock()
		cached, ok := e.ruleCache[class]
		e.ruleCacheMu.RUnlock()
		if ok {
			return cached, nil
		}
	}
	resolved, err := e.inheritance.GetAllRules(class)
	if err != nil {
		return nil, err
	}
	out := make([]*compiledRule, len(resolved))
	for i, r := range resolved {
		compiled, err := e.ruleCompiler.CompileRule(r.Rule)
		if err != nil {
			return nil, err
		}
		out[i] = &compiledRule{resolved: r, compiled: compiled, declOrder: i}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := 0, 0
		if out[i].resolved.Rule.Priority != nil {
			pi = *out[i].resolved.Rule.Priority
		}
		if out[j].resolved.Rule.Priority != nil {
			pj = *out[j].resolved.Rule.Priority
		}
		if pi != pj {
			return pi > pj
		}
		return out[i].declOrder < out[j].declOrder
	})
	if useCache {
		e.ruleCacheMu.Lock()
		e.ruleCache[class] = out
		e.ruleCacheMu.Unlock()
	}
	return out, nil
}
