package expression

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oarkflow/date"
)

// registerBuiltins wires the minimum function set the expression
// language needs: math, aggregation, string, date/time, logic, and list
// operations. Each group is grounded on a category called out by the
// original implementation's expression module (the math_functions.rs /
// date_functions.rs split under original_source), re-expressed as a
// flat function registry the way the teacher registers format
// validators in jsonschema/v2/validator.go's formatValidators map.
func registerBuiltins(e *Engine) {
	// math
	e.funcs["abs"] = func(args []any) (any, error) { return unaryMath(args, math.Abs) }
	e.funcs["ceil"] = func(args []any) (any, error) { return unaryMath(args, math.Ceil) }
	e.funcs["floor"] = func(args []any) (any, error) { return unaryMath(args, math.Floor) }
	e.funcs["round"] = func(args []any) (any, error) { return unaryMath(args, math.Round) }
	e.funcs["sqrt"] = func(args []any) (any, error) { return unaryMath(args, math.Sqrt) }
	e.funcs["pow"] = func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expression: pow() takes 2 arguments")
		}
		a, ok1 := asNumber(args[0])
		b, ok2 := asNumber(args[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("expression: pow() requires numeric arguments")
		}
		return math.Pow(a, b), nil
	}
	e.funcs["min"] = func(args []any) (any, error) { return extremum(args, true) }
	e.funcs["max"] = func(args []any) (any, error) { return extremum(args, false) }

	// aggregation (operate over a single []any argument, e.g. a
	// multivalued slot or a list literal built from args)
	e.funcs["sum"] = func(args []any) (any, error) {
		nums, err := numericList(args)
		if err != nil {
			return nil, err
		}
		var total float64
		for _, n := range nums {
			total += n
		}
		return total, nil
	}
	e.funcs["avg"] = func(args []any) (any, error) {
		nums, err := numericList(args)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return 0.0, nil
		}
		var total float64
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), nil
	}
	e.funcs["count"] = func(args []any) (any, error) {
		items := flattenArgs(args)
		return float64(len(items)), nil
	}

	// string
	e.funcs["upper"] = func(args []any) (any, error) { return unaryString(args, strings.ToUpper) }
	e.funcs["lower"] = func(args []any) (any, error) { return unaryString(args, strings.ToLower) }
	e.funcs["trim"] = func(args []any) (any, error) { return unaryString(args, strings.TrimSpace) }
	e.funcs["len"] = func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expression: len() takes 1 argument")
		}
		switch v := args[0].(type) {
		case string:
			return float64(len([]rune(v))), nil
		case []any:
			return float64(len(v)), nil
		default:
			return nil, fmt.Errorf("expression: len() requires a string or list, got %T", v)
		}
	}
	e.funcs["concat"] = func(args []any) (any, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(stringify(a))
		}
		return sb.String(), nil
	}
	e.funcs["contains"] = func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expression: contains() takes 2 arguments")
		}
		switch haystack := args[0].(type) {
		case string:
			needle, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("expression: contains() on a string requires a string needle")
			}
			return strings.Contains(haystack, needle), nil
		case []any:
			for _, item := range haystack {
				if valuesEqual(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		default:
			return nil, fmt.Errorf("expression: contains() requires a string or list, got %T", haystack)
		}
	}
	e.funcs["startswith"] = func(args []any) (any, error) { return binaryStringPred(args, strings.HasPrefix) }
	e.funcs["endswith"] = func(args []any) (any, error) { return binaryStringPred(args, strings.HasSuffix) }
	e.funcs["replace"] = func(args []any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("expression: replace() takes 3 arguments")
		}
		s, ok1 := args[0].(string)
		old, ok2 := args[1].(string)
		newS, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("expression: replace() requires 3 string arguments")
		}
		return strings.ReplaceAll(s, old, newS), nil
	}
	e.funcs["split"] = func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expression: split() takes 2 arguments")
		}
		s, ok1 := args[0].(string)
		sep, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("expression: split() requires 2 string arguments")
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	}

	// date/time, via oarkflow/date to match the teacher's own date
	// library choice rather than reaching for stdlib time parsing.
	e.funcs["year"] = func(args []any) (any, error) { return dateField(args, func(t time.Time) int { return t.Year() }) }
	e.funcs["month"] = func(args []any) (any, error) { return dateField(args, func(t time.Time) int { return int(t.Month()) }) }
	e.funcs["day"] = func(args []any) (any, error) { return dateField(args, func(t time.Time) int { return t.Day() }) }

	// logic
	e.funcs["not"] = func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expression: not() takes 1 argument")
		}
		return !truthy(args[0]), nil
	}

	// list
	e.funcs["in"] = func(args []any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("expression: in() takes at least 2 arguments")
		}
		for _, candidate := range args[1:] {
			if valuesEqual(args[0], candidate) {
				return true, nil
			}
		}
		return false, nil
	}
}

func unaryMath(args []any, fn func(float64) float64) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expression: function takes 1 numeric argument")
	}
	f, ok := asNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("expression: function requires a numeric argument, got %T", args[0])
	}
	return fn(f), nil
}

func unaryString(args []any, fn func(string) string) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expression: function takes 1 string argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("expression: function requires a string argument, got %T", args[0])
	}
	return fn(s), nil
}

func binaryStringPred(args []any, fn func(s, prefix string) bool) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expression: function takes 2 string arguments")
	}
	s, ok1 := args[0].(string)
	p, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("expression: function requires 2 string arguments")
	}
	return fn(s, p), nil
}

func extremum(args []any, wantMin bool) (any, error) {
	nums, err := numericList(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("expression: min()/max() requires at least one argument")
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if (wantMin && n < best) || (!wantMin && n > best) {
			best = n
		}
	}
	return best, nil
}

// flattenArgs expands any []any arguments in place, so sum(1,2,3) and
// sum({scores}) both work when {scores} resolves to a list.
func flattenArgs(args []any) []any {
	var out []any
	for _, a := range args {
		if list, ok := a.([]any); ok {
			out = append(out, list...)
			continue
		}
		out = append(out, a)
	}
	return out
}

func numericList(args []any) ([]float64, error) {
	items := flattenArgs(args)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := asNumber(item)
		if !ok {
			return nil, fmt.Errorf("expression: expected numeric value, got %T", item)
		}
		out = append(out, f)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func dateField(args []any, fn func(time.Time) int) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expression: date function takes 1 argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("expression: date function requires a string argument")
	}
	t, err := date.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("expression: cannot parse date %q: %w", s, err)
	}
	return float64(fn(t)), nil
}
