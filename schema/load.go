package schema

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"unsafe"

	"github.com/goccy/go-reflect"
)

// jsonParser is the schema loader's own copy of the teacher's
// byte-position JSON scanner (jsonschema/v2/parser.go), pooled the same
// way: schema documents are typically loaded once per process but the
// loader is also used by hot-reload paths in long-running services, so
// the pool avoids re-allocating the scanner on every call.
type jsonParser struct {
	data []byte
	pos  int
}

var jsonParserPool = sync.Pool{New: func() any { return &jsonParser{} }}

func parseJSON(data []byte) (any, error) {
	p := jsonParserPool.Get().(*jsonParser)
	p.data = data
	p.pos = 0
	v, err := p.parseValue()
	p.data = nil
	jsonParserPool.Put(p)
	return v, err
}

func (p *jsonParser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\n', '\t', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) parseValue() (any, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, errors.New("schema: unexpected end of input")
	}
	switch ch := p.data[p.pos]; ch {
	case '{':
		return p.parseObject()
	case '[':
		return p.parseArray()
	case '"':
		return p.parseString()
	case 't':
		return p.parseLiteral("true", true)
	case 'f':
		return p.parseLiteral("false", false)
	case 'n':
		return p.parseLiteral("null", nil)
	default:
		if ch == '-' || (ch >= '0' && ch <= '9') {
			return p.parseNumber()
		}
		return nil, fmt.Errorf("schema: unexpected character %q at position %d", ch, p.pos)
	}
}

func (p *jsonParser) parseLiteral(lit string, value any) (any, error) {
	end := p.pos + len(lit)
	if end > len(p.data) || string(p.data[p.pos:end]) != lit {
		return nil, fmt.Errorf("schema: invalid literal at position %d", p.pos)
	}
	p.pos = end
	return value, nil
}

func (p *jsonParser) parseObject() (any, error) {
	obj := make(map[string]any)
	p.pos++
	p.skipWhitespace()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		return obj, nil
	}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			return nil, errors.New("schema: expected string key in object")
		}
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return nil, errors.New("schema: expected ':' after key")
		}
		p.pos++
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		obj[key] = value
		p.skipWhitespace()
		if p.pos < len(p.data) && p.data[p.pos] == '}' {
			p.pos++
			break
		}
		if p.pos < len(p.data) && p.data[p.pos] == ',' {
			p.pos++
			continue
		}
		return nil, errors.New("schema: expected ',' or '}' in object")
	}
	return obj, nil
}

func (p *jsonParser) parseArray() (any, error) {
	arr := []any{}
	p.pos++
	p.skipWhitespace()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		return arr, nil
	}
	for {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
		p.skipWhitespace()
		if p.pos < len(p.data) && p.data[p.pos] == ']' {
			p.pos++
			break
		}
		if p.pos < len(p.data) && p.data[p.pos] == ',' {
			p.pos++
			continue
		}
		return nil, errors.New("schema: expected ',' or ']' in array")
	}
	return arr, nil
}

func (p *jsonParser) parseString() (string, error) {
	if p.data[p.pos] != '"' {
		return "", errors.New("schema: expected '\"' at beginning of string")
	}
	p.pos++
	var result []rune
	for p.pos < len(p.data) {
		ch := p.data[p.pos]
		if ch == '"' {
			p.pos++
			return string(result), nil
		}
		if ch == '\\' {
			p.pos++
			if p.pos >= len(p.data) {
				return "", errors.New("schema: unexpected end of input in escape")
			}
			esc := p.data[p.pos]
			if esc == 'u' {
				if p.pos+4 >= len(p.data) {
					return "", errors.New("schema: incomplete unicode escape")
				}
				code, err := strconv.ParseInt(string(p.data[p.pos+1:p.pos+5]), 16, 32)
				if err != nil {
					return "", fmt.Errorf("schema: invalid unicode escape: %w", err)
				}
				result = append(result, rune(code))
				p.pos += 5
				continue
			}
			switch esc {
			case '"', '\\', '/':
				result = append(result, rune(esc))
			case 'b':
				result = append(result, '\b')
			case 'f':
				result = append(result, '\f')
			case 'n':
				result = append(result, '\n')
			case 'r':
				result = append(result, '\r')
			case 't':
				result = append(result, '\t')
			default:
				return "", fmt.Errorf("schema: invalid escape character %q", esc)
			}
			p.pos++
		} else {
			result = append(result, rune(ch))
			p.pos++
		}
	}
	return "", errors.New("schema: unexpected end of string")
}

func (p *jsonParser) parseNumber() (any, error) {
	start := p.pos
	if p.data[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '.' {
		p.pos++
		for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			p.pos++
		}
	}
	if p.pos < len(p.data) && (p.data[p.pos] == 'e' || p.data[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.data) && (p.data[p.pos] == '+' || p.data[p.pos] == '-') {
			p.pos++
		}
		for p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			p.pos++
		}
	}
	numBytes := p.data[start:p.pos]
	numStr := *(*string)(unsafe.Pointer(&numBytes))
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// LoadSchema parses source into a Schema. source may be raw JSON/YAML-as-
// JSON bytes, a string of the same, or a Go struct to introspect via
// FromStruct.
func LoadSchema(source any) (*Schema, error) {
	switch v := source.(type) {
	case []byte:
		return loadFromJSON(v)
	case string:
		return loadFromJSON([]byte(v))
	default:
		return FromStruct(source)
	}
}

func loadFromJSON(data []byte) (*Schema, error) {
	raw, err := parseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaError{Code: "SCHEMA_INVALID_DOCUMENT", Msg: "top-level schema document must be an object"}
	}
	return fromMap(m)
}

func fromMap(m map[string]any) (*Schema, error) {
	s := &Schema{
		Name:     asString(m["name"]),
		ID:       asString(m["id"]),
		DefaultRange: asString(m["default_range"]),
		Classes:  map[string]*ClassDef{},
		Slots:    map[string]*SlotDef{},
		Types:    map[string]*TypeDef{},
		Enums:    map[string]*EnumDef{},
	}
	if classes, ok := m["classes"].(map[string]any); ok {
		for name, raw := range classes {
			cm, _ := raw.(map[string]any)
			s.Classes[name] = classFromMap(name, cm)
		}
	}
	if slots, ok := m["slots"].(map[string]any); ok {
		for name, raw := range slots {
			sm, _ := raw.(map[string]any)
			s.Slots[name] = slotFromMap(name, sm)
		}
	}
	if types, ok := m["types"].(map[string]any); ok {
		for name, raw := range types {
			tm, _ := raw.(map[string]any)
			s.Types[name] = &TypeDef{Name: name, BaseType: asString(tm["base"]), Pattern: asString(tm["pattern"])}
		}
	}
	if enums, ok := m["enums"].(map[string]any); ok {
		for name, raw := range enums {
			em, _ := raw.(map[string]any)
			s.Enums[name] = &EnumDef{Name: name, PermissibleValues: asStringSlice(em["permissible_values"])}
		}
	}
	return s, nil
}

func classFromMap(name string, m map[string]any) *ClassDef {
	c := &ClassDef{
		Name:        name,
		Description: asString(m["description"]),
		IsA:         asString(m["is_a"]),
		Mixins:      asStringSlice(m["mixins"]),
		Abstract:    asBool(m["abstract"]),
		Slots:       asStringSlice(m["slots"]),
		AllowAdditional: asBool(m["allow_additional_properties"]),
		TreeRoot:    asBool(m["tree_root"]),
	}
	if su, ok := m["slot_usage"].(map[string]any); ok {
		c.SlotUsage = map[string]*SlotDef{}
		for slotName, raw := range su {
			sm, _ := raw.(map[string]any)
			c.SlotUsage[slotName] = slotFromMap(slotName, sm)
		}
	}
	if attrs, ok := m["attributes"].(map[string]any); ok {
		c.Attributes = map[string]*SlotDef{}
		for slotName, raw := range attrs {
			sm, _ := raw.(map[string]any)
			c.Attributes[slotName] = slotFromMap(slotName, sm)
		}
	}
	if rules, ok := m["rules"].([]any); ok {
		for _, raw := range rules {
			if rm, ok := raw.(map[string]any); ok {
				c.Rules = append(c.Rules, ruleFromMap(rm))
			}
		}
	}
	return c
}

func slotFromMap(name string, m map[string]any) *SlotDef {
	if m == nil {
		return &SlotDef{Name: name}
	}
	return &SlotDef{
		Name:          name,
		Description:   asString(m["description"]),
		Range:         asString(m["range"]),
		Required:      asBool(m["required"]),
		Multivalued:   asBool(m["multivalued"]),
		Identifier:    asBool(m["identifier"]),
		Pattern:       asString(m["pattern"]),
		Minimum:       asFloatPtr(m["minimum_value"]),
		Maximum:       asFloatPtr(m["maximum_value"]),
		EqualsString:  asStringPtr(m["equals_string"]),
		EqualsNumber:  asFloatPtr(m["equals_number"]),
		EqualsExpression: asString(m["equals_expression"]),
		MinimumLength: asIntPtr(m["minimum_length"]),
		MaximumLength: asIntPtr(m["maximum_length"]),
		PermissibleValues: asStringSlice(m["permissible_values"]),
		Default:       m["ifabsent"],
	}
}

func ruleFromMap(m map[string]any) *Rule {
	r := &Rule{
		Title:       asString(m["title"]),
		Description: asString(m["description"]),
		Deactivated: asBool(m["deactivated"]),
		Priority:    asIntPtr(m["priority"]),
	}
	if pre, ok := m["preconditions"].(map[string]any); ok {
		r.Preconditions = conditionsFromMap(pre)
	}
	if post, ok := m["postconditions"].(map[string]any); ok {
		r.Postconditions = conditionsFromMap(post)
	}
	return r
}

func conditionsFromMap(m map[string]any) *RuleConditions {
	rc := &RuleConditions{}
	if sc, ok := m["slot_conditions"].(map[string]any); ok {
		rc.SlotConditions = map[string]*SlotCondition{}
		for name, raw := range sc {
			if cm, ok := raw.(map[string]any); ok {
				rc.SlotConditions[name] = slotConditionFromMap(cm)
			}
		}
	}
	rc.ExpressionConditions = asStringSlice(m["expression_conditions"])
	if cc, ok := m["composite_conditions"].(map[string]any); ok {
		rc.CompositeConditions = compositeFromMap(cc)
	}
	return rc
}

func compositeFromMap(m map[string]any) *CompositeConditions {
	cc := &CompositeConditions{}
	for _, sub := range asMapSlice(m["any_of"]) {
		cc.AnyOf = append(cc.AnyOf, conditionsFromMap(sub))
	}
	for _, sub := range asMapSlice(m["all_of"]) {
		cc.AllOf = append(cc.AllOf, conditionsFromMap(sub))
	}
	for _, sub := range asMapSlice(m["exactly_one_of"]) {
		cc.ExactlyOneOf = append(cc.ExactlyOneOf, conditionsFromMap(sub))
	}
	for _, sub := range asMapSlice(m["none_of"]) {
		cc.NoneOf = append(cc.NoneOf, conditionsFromMap(sub))
	}
	return cc
}

func slotConditionFromMap(m map[string]any) *SlotCondition {
	sc := &SlotCondition{
		Required:         asBool(m["required"]),
		Range:            asString(m["range"]),
		Pattern:          asString(m["pattern"]),
		EqualsString:     asStringPtr(m["equals_string"]),
		EqualsNumber:     asFloatPtr(m["equals_number"]),
		EqualsExpression: asString(m["equals_expression"]),
		MinimumValue:     asFloatPtr(m["minimum_value"]),
		MaximumValue:     asFloatPtr(m["maximum_value"]),
	}
	for _, sub := range asMapSlice(m["any_of"]) {
		sc.AnyOf = append(sc.AnyOf, slotConditionFromMap(sub))
	}
	for _, sub := range asMapSlice(m["all_of"]) {
		sc.AllOf = append(sc.AllOf, slotConditionFromMap(sub))
	}
	for _, sub := range asMapSlice(m["exactly_one_of"]) {
		sc.ExactlyOneOf = append(sc.ExactlyOneOf, slotConditionFromMap(sub))
	}
	for _, sub := range asMapSlice(m["none_of"]) {
		sc.NoneOf = append(sc.NoneOf, slotConditionFromMap(sub))
	}
	return sc
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
func asFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	}
	return nil
}
func asIntPtr(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	}
	return nil
}
func asStringPtr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
func asMapSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// FromStruct builds a minimal Schema by reflecting over a Go struct,
// for callers that define their schema as Go types rather than JSON.
// Uses goccy/go-reflect exactly as the teacher does in jsonschema.go /
// common.go / validator_base.go / util.go, rather than stdlib reflect.
func FromStruct(v any) (*Schema, error) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &SchemaError{Code: "SCHEMA_INVALID_SOURCE", Msg: "FromStruct requires a struct or pointer to struct"}
	}
	class := &ClassDef{Name: t.Name()}
	slots := map[string]*SlotDef{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("json")
		if name == "" {
			name = f.Name
		}
		slots[name] = &SlotDef{Name: name, Range: goKindToRange(f.Type.Kind())}
		class.Slots = append(class.Slots, name)
	}
	return &Schema{
		Name:    t.Name(),
		Classes: map[string]*ClassDef{t.Name(): class},
		Slots:   slots,
	}, nil
}

func goKindToRange(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	default:
		return "string"
	}
}
