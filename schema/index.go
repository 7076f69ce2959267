package schema

import "sort"

// Index holds the derived views over a Schema that the rest of the
// engine needs repeatedly: the is_a/mixins ancestor chain per class, the
// inverse subclass map, and the inheritance-flattened effective slot set
// per class. It is built once by Build and then treated as read-only.
type Index struct {
	schema    *Schema
	ancestors map[string][]string // class -> ancestors, self first, most-specific to least
	subclasses map[string][]string
}

// Build computes every index over s. Unlike the teacher's resolveRef /
// findDynamicAnchor walk (which has no cycle guard), ancestor resolution
// here is cycle-checked and returns a *SchemaError on a cyclic is_a/mixin
// chain rather than recursing forever.
func Build(s *Schema) (*Index, error) {
	idx := &Index{schema: s, ancestors: map[string][]string{}, subclasses: map[string][]string{}}
	for name := range s.Classes {
		if _, err := idx.classAncestors(name, nil); err != nil {
			return nil, err
		}
	}
	for name, c := range s.Classes {
		for _, anc := range idx.ancestors[name] {
			if anc == name {
				continue
			}
			idx.subclasses[anc] = append(idx.subclasses[anc], name)
		}
		_ = c
	}
	for _, list := range idx.subclasses {
		sort.Strings(list)
	}
	for name := range s.Classes {
		if _, err := idx.effectiveSlots(name); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// classAncestors returns name's ancestor chain, self first: [name, is_a,
// is_a's is_a, ..., mixins...], deduplicated, most specific to least.
// visited guards against is_a/mixin cycles.
func (idx *Index) classAncestors(name string, visited map[string]bool) ([]string, error) {
	if cached, ok := idx.ancestors[name]; ok {
		return cached, nil
	}
	if visited == nil {
		visited = map[string]bool{}
	}
	if visited[name] {
		chain := make([]string, 0, len(visited)+1)
		for k := range visited {
			chain = append(chain, k)
		}
		return nil, errCyclicInheritance(name, append(chain, name))
	}
	visited[name] = true

	c, ok := idx.schema.Classes[name]
	if !ok {
		return nil, errUnknownClass(name)
	}

	seen := map[string]bool{name: true}
	chain := []string{name}

	if c.IsA != "" {
		parentChain, err := idx.classAncestors(c.IsA, cloneSet(visited))
		if err != nil {
			return nil, err
		}
		for _, p := range parentChain {
			if !seen[p] {
				seen[p] = true
				chain = append(chain, p)
			}
		}
	}
	for _, mixin := range c.Mixins {
		mixinChain, err := idx.classAncestors(mixin, cloneSet(visited))
		if err != nil {
			return nil, err
		}
		for _, p := range mixinChain {
			if !seen[p] {
				seen[p] = true
				chain = append(chain, p)
			}
		}
	}

	idx.ancestors[name] = chain
	return chain, nil
}

func cloneSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Ancestors returns the cached ancestor chain for name, self first.
func (idx *Index) Ancestors(name string) []string {
	return idx.ancestors[name]
}

// Subclasses returns every class whose ancestor chain contains name.
func (idx *Index) Subclasses(name string) []string {
	return idx.subclasses[name]
}

// effectiveSlots resolves a class's full slot set by walking its
// ancestor chain from least to most specific, merging each ancestor's
// slots/attributes in, then finally applying the class's own
// slot_usage overrides on top.
func (idx *Index) effectiveSlots(name string) (map[string]*SlotDef, error) {
	c, ok := idx.schema.Classes[name]
	if !ok {
		return nil, errUnknownClass(name)
	}
	if c.effectiveSlots != nil {
		return c.effectiveSlots, nil
	}

	chain := idx.ancestors[name]
	merged := map[string]*SlotDef{}

	// Walk least-specific to most-specific so the more specific
	// definition wins on conflict.
	for i := len(chain) - 1; i >= 0; i-- {
		anc := idx.schema.Classes[chain[i]]
		if anc == nil {
			continue
		}
		for _, slotName := range anc.Slots {
			def := idx.schema.Slots[slotName]
			if def == nil {
				def = &SlotDef{Name: slotName}
			}
			merged[slotName] = def
		}
		for slotName, def := range anc.Attributes {
			merged[slotName] = def
		}
	}

	// slot_usage from the class itself (and only the class itself;
	// LinkML does not cascade slot_usage across is_a) overrides last.
	for slotName, usage := range c.SlotUsage {
		base := merged[slotName]
		merged[slotName] = mergeSlotUsage(base, usage)
	}

	c.effectiveSlots = merged
	return merged, nil
}

// EffectiveSlots returns the fully resolved slot set for a class.
func (idx *Index) EffectiveSlots(name string) (map[string]*SlotDef, error) {
	return idx.effectiveSlots(name)
}

// mergeSlotUsage overlays a slot_usage override on top of a base slot
// definition, field by field, field-present-wins.
func mergeSlotUsage(base, usage *SlotDef) *SlotDef {
	if base == nil {
		return usage
	}
	out := *base
	if usage.Range != "" {
		out.Range = usage.Range
	}
	if usage.Required {
		out.Required = true
	}
	if usage.Multivalued {
		out.Multivalued = true
	}
	if usage.Pattern != "" {
		out.Pattern = usage.Pattern
	}
	if usage.StructuredPattern != nil {
		out.StructuredPattern = usage.StructuredPattern
	}
	if usage.Minimum != nil {
		out.Minimum = usage.Minimum
	}
	if usage.Maximum != nil {
		out.Maximum = usage.Maximum
	}
	if usage.EqualsString != nil {
		out.EqualsString = usage.EqualsString
	}
	if usage.EqualsNumber != nil {
		out.EqualsNumber = usage.EqualsNumber
	}
	if usage.EqualsExpression != "" {
		out.EqualsExpression = usage.EqualsExpression
	}
	if usage.MinimumLength != nil {
		out.MinimumLength = usage.MinimumLength
	}
	if usage.MaximumLength != nil {
		out.MaximumLength = usage.MaximumLength
	}
	if len(usage.PermissibleValues) > 0 {
		out.PermissibleValues = usage.PermissibleValues
	}
	if len(usage.AnyOf) > 0 {
		out.AnyOf = usage.AnyOf
	}
	if len(usage.AllOf) > 0 {
		out.AllOf = usage.AllOf
	}
	if len(usage.ExactlyOneOf) > 0 {
		out.ExactlyOneOf = usage.ExactlyOneOf
	}
	if len(usage.NoneOf) > 0 {
		out.NoneOf = usage.NoneOf
	}
	return &out
}

// CompiledSchema bundles a Schema with its built Index; this is the
// value returned by Compile and threaded through the validation engine.
type CompiledSchema struct {
	Schema *Schema
	Index  *Index
}
