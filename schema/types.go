// Package schema holds the LinkML schema object model: classes, slots,
// types, enums, and the rules attached to them.
package schema

// Value is the dynamic JSON-like value type used throughout the engine,
// matching the teacher's convention of working over map[string]any / []any
// / string / float64 / bool / nil rather than a typed union.
type Value = any

// Schema is a single LinkML schema document.
type Schema struct {
	Name      string               `json:"name,omitempty"`
	ID        string               `json:"id,omitempty"`
	Prefixes  map[string]string    `json:"prefixes,omitempty"`
	Imports   []string             `json:"imports,omitempty"`
	Classes   map[string]*ClassDef `json:"classes,omitempty"`
	Slots     map[string]*SlotDef  `json:"slots,omitempty"`
	Types     map[string]*TypeDef  `json:"types,omitempty"`
	Enums     map[string]*EnumDef  `json:"enums,omitempty"`
	Subsets   map[string]any       `json:"subsets,omitempty"`
	DefaultRange string            `json:"default_range,omitempty"`
}

// ClassDef describes one class in the schema.
type ClassDef struct {
	Name              string              `json:"name,omitempty"`
	Description       string              `json:"description,omitempty"`
	IsA               string              `json:"is_a,omitempty"`
	Mixins            []string            `json:"mixins,omitempty"`
	Abstract          bool                `json:"abstract,omitempty"`
	Slots             []string            `json:"slots,omitempty"`
	SlotUsage         map[string]*SlotDef `json:"slot_usage,omitempty"`
	Attributes        map[string]*SlotDef `json:"attributes,omitempty"`
	UniqueKeys        map[string]*UniqueKey `json:"unique_keys,omitempty"`
	Rules             []*Rule             `json:"rules,omitempty"`
	IfRequired        map[string]*ConditionalRequirement `json:"if_required,omitempty"`
	TreeRoot          bool                `json:"tree_root,omitempty"`
	AllowAdditional   bool                `json:"allow_additional_properties,omitempty"`

	// effectiveSlots is computed by Index.Build and caches the fully
	// resolved, inheritance-flattened slot set for this class.
	effectiveSlots map[string]*SlotDef
}

// SlotDef describes one slot (field). Slot definitions are merged across
// is_a/mixins/slot_usage by the index builder; see Index.EffectiveSlots.
type SlotDef struct {
	Name              string   `json:"name,omitempty"`
	Description       string   `json:"description,omitempty"`
	Range             string   `json:"range,omitempty"`
	Required          bool     `json:"required,omitempty"`
	Multivalued       bool     `json:"multivalued,omitempty"`
	Identifier        bool     `json:"identifier,omitempty"`
	Pattern           string   `json:"pattern,omitempty"`
	StructuredPattern *StructuredPattern `json:"structured_pattern,omitempty"`
	Minimum           *float64 `json:"minimum_value,omitempty"`
	Maximum           *float64 `json:"maximum_value,omitempty"`
	EqualsString      *string  `json:"equals_string,omitempty"`
	EqualsNumber      *float64 `json:"equals_number,omitempty"`
	EqualsExpression  string   `json:"equals_expression,omitempty"`
	MinimumLength     *int     `json:"minimum_length,omitempty"`
	MaximumLength     *int     `json:"maximum_length,omitempty"`
	PermissibleValues []string `json:"permissible_values,omitempty"`
	Default           any      `json:"ifabsent,omitempty"`
	AnyOf             []*SlotDef `json:"any_of,omitempty"`
	AllOf             []*SlotDef `json:"all_of,omitempty"`
	ExactlyOneOf      []*SlotDef `json:"exactly_one_of,omitempty"`
	NoneOf            []*SlotDef `json:"none_of,omitempty"`
}

// StructuredPattern is a pattern built from an interpolated template plus
// named capture descriptors, rather than a single literal regex/glob.
type StructuredPattern struct {
	Syntax        string              `json:"syntax,omitempty"` // "regex" or "glob"
	Pattern       string              `json:"pattern,omitempty"`
	Interpolated  bool                `json:"interpolated,omitempty"`
	PartialMatch  bool                `json:"partial_match,omitempty"`
	NamedCaptures []NamedCaptureSpec  `json:"named_captures,omitempty"`
}

// NamedCaptureSpec mirrors the capture_type/required/default/validators
// shape from the original rule engine's named-capture support.
type NamedCaptureSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"` // string|integer|float|boolean|enum
	EnumValues  []string `json:"enum_values,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Default     string   `json:"default,omitempty"`
	MinLength   *int     `json:"min_length,omitempty"`
	MaxLength   *int     `json:"max_length,omitempty"`
	MinValue    *float64 `json:"min_value,omitempty"`
	MaxValue    *float64 `json:"max_value,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
}

// TypeDef describes a scalar type (e.g. a restricted string or integer).
type TypeDef struct {
	Name       string `json:"name,omitempty"`
	BaseType   string `json:"base,omitempty"` // string|integer|float|boolean|date|datetime
	Pattern    string `json:"pattern,omitempty"`
	Minimum    *float64 `json:"minimum_value,omitempty"`
	Maximum    *float64 `json:"maximum_value,omitempty"`
}

// EnumDef is a permissible-value enumeration.
type EnumDef struct {
	Name              string   `json:"name,omitempty"`
	PermissibleValues []string `json:"permissible_values,omitempty"`
}

// UniqueKey names the slots whose combined value must be unique across
// instances of a class.
type UniqueKey struct {
	UniqueKeySlots     []string `json:"unique_key_slots"`
	ConsiderNullsInequal bool   `json:"consider_nulls_inequal,omitempty"`
}

// ConditionalRequirement makes a slot required only when another slot
// satisfies a condition.
type ConditionalRequirement struct {
	Condition SlotCondition `json:"condition"`
	Then      []string      `json:"required_slots"`
}

// SlotCondition is a single-slot predicate, reused both by conditional
// requirements and by rule preconditions/postconditions.
type SlotCondition struct {
	Required         bool     `json:"required,omitempty"`
	Range            string   `json:"range,omitempty"`
	Pattern          string   `json:"pattern,omitempty"`
	EqualsString     *string  `json:"equals_string,omitempty"`
	EqualsNumber     *float64 `json:"equals_number,omitempty"`
	EqualsExpression string   `json:"equals_expression,omitempty"`
	MinimumValue     *float64 `json:"minimum_value,omitempty"`
	MaximumValue     *float64 `json:"maximum_value,omitempty"`
	AnyOf            []*SlotCondition `json:"any_of,omitempty"`
	AllOf            []*SlotCondition `json:"all_of,omitempty"`
	ExactlyOneOf     []*SlotCondition `json:"exactly_one_of,omitempty"`
	NoneOf           []*SlotCondition `json:"none_of,omitempty"`
}

// Rule is a pre/postcondition pair attached to a class.
type Rule struct {
	Title           string              `json:"title,omitempty"`
	Description     string              `json:"description,omitempty"`
	Priority        *int                `json:"priority,omitempty"`
	Deactivated     bool                `json:"deactivated,omitempty"`
	Preconditions   *RuleConditions     `json:"preconditions,omitempty"`
	Postconditions  *RuleConditions     `json:"postconditions,omitempty"`
	ElseConditions  *RuleConditions     `json:"else_conditions,omitempty"`
}

// RuleConditions groups the slot-level, expression-level, and composite
// conditions that make up one side of a rule.
type RuleConditions struct {
	SlotConditions      map[string]*SlotCondition `json:"slot_conditions,omitempty"`
	ExpressionConditions []string                 `json:"expression_conditions,omitempty"`
	CompositeConditions *CompositeConditions       `json:"composite_conditions,omitempty"`
}

// CompositeConditions is a boolean combinator over sub-RuleConditions.
type CompositeConditions struct {
	AnyOf        []*RuleConditions `json:"any_of,omitempty"`
	AllOf        []*RuleConditions `json:"all_of,omitempty"`
	ExactlyOneOf []*RuleConditions `json:"exactly_one_of,omitempty"`
	NoneOf       []*RuleConditions `json:"none_of,omitempty"`
}
