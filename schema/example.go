package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/oarkflow/expr"
)

// EvalDefault resolves a slot's ifabsent default. A literal value passes
// through unchanged; a "{{ expr }}" string is evaluated through
// oarkflow/expr, exactly as the teacher's v2/expression.go computes
// JSON Schema "default" values — this shim is kept verbatim for
// computed defaults and is distinct from the hand-rolled expression
// engine in package expression, which implements the rule/constraint
// language itself rather than this templating convenience.
func EvalDefault(def any) (any, error) {
	if def == nil {
		return nil, nil
	}
	defStr, ok := def.(string)
	if !ok {
		return def, nil
	}
	if strings.HasPrefix(defStr, "{{") && strings.HasSuffix(defStr, "}}") {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(defStr, "{{"), "}}")
		return evalExprTemplate(trimmed)
	}
	return def, nil
}

func evalExprTemplate(exprStr string) (any, error) {
	if strings.HasPrefix(exprStr, "{{") && strings.HasSuffix(exprStr, "}}") {
		jsonStr := strings.ReplaceAll(exprStr, "'", "\"")
		var m any
		if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	vm, err := expr.Parse(exprStr)
	if err != nil {
		return nil, err
	}
	return vm.Eval(nil)
}

// GenerateExample produces a fixture value for slot, dispatching on its
// range the same way the teacher's GenerateExample dispatches on
// s.Type: string ranges get gofakeit.Word() (or gofakeit.Email() for an
// email-shaped slot name/pattern), numeric ranges get
// gofakeit.Float64Range, boolean ranges get gofakeit.Bool(), and an
// enum range samples one of its permissible values.
func GenerateExample(slot *SlotDef, enums map[string]*EnumDef) (any, error) {
	if slot.Default != nil {
		return EvalDefault(slot.Default)
	}
	if enumDef, ok := enums[slot.Range]; ok && len(enumDef.PermissibleValues) > 0 {
		return enumDef.PermissibleValues[gofakeit.Number(0, len(enumDef.PermissibleValues)-1)], nil
	}
	switch slot.Range {
	case "", "string":
		if strings.Contains(strings.ToLower(slot.Name), "email") {
			return gofakeit.Email(), nil
		}
		return gofakeit.Word(), nil
	case "integer":
		return gofakeit.Number(1, 1000), nil
	case "float", "double", "decimal":
		return gofakeit.Float64Range(1, 100), nil
	case "boolean":
		return gofakeit.Bool(), nil
	case "date":
		return gofakeit.Date().Format("2006-01-02"), nil
	case "datetime":
		return gofakeit.Date().Format("2006-01-02T15:04:05Z07:00"), nil
	default:
		return nil, fmt.Errorf("schema: cannot generate example for range %q", slot.Range)
	}
}
