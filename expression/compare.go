package expression

import "fmt"

// ValuesEqual implements == / != . Numbers compare numerically, strings
// compare as strings, everything else falls back to Go equality after
// normalizing numeric-looking types. Exported for use by package rule's
// equals_expression matching.
func ValuesEqual(a, b any) bool {
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
	}
	return a == b
}

func valuesEqual(a, b any) bool { return ValuesEqual(a, b) }

// AsNumber reports whether v is a numeric value and, if so, its
// float64 form. Exported for package rule's numeric comparisons.
func AsNumber(v any) (float64, bool) { return asNumber(v) }

// compareOrdered implements < <= > >= . Two numeric operands compare
// numerically. Two strings compare by rune length, not lexicographic
// order — this mirrors the original rule engine's compare_values
// (service/src/rule_engine/matcher.rs), which treats a string pair's
// ordering as a length comparison wherever the LinkML conditions speak
// of "minimum"/"maximum" against a string-valued slot.
func compareOrdered(op string, a, b any) (bool, error) {
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return applyOrdering(op, af, bf), nil
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return applyOrdering(op, float64(len([]rune(as))), float64(len([]rune(bs)))), nil
		}
	}
	return false, fmt.Errorf("expression: cannot compare %T and %T with %q", a, b, op)
}

func applyOrdering(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func arithAdd(a, b any) (any, error) {
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as + bs, nil
		}
	}
	af, aok := asNumber(a)
	bf, bok := asNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("expression: cannot add %T and %T", a, b)
	}
	return af + bf, nil
}

func arithOp(op string, a, b any) (any, error) {
	af, aok := asNumber(a)
	bf, bok := asNumber(b)
	if !aok || !bok {
		return nil, fmt.Errorf("expression: operator %q requires numeric operands, got %T and %T", op, a, b)
	}
	switch op {
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	case "/":
		if bf == 0 {
			return nil, fmt.Errorf("expression: division by zero")
		}
		return af / bf, nil
	case "%":
		if bf == 0 {
			return nil, fmt.Errorf("expression: modulo by zero")
		}
		return float64(int64(af) % int64(bf)), nil
	}
	return nil, fmt.Errorf("expression: unknown arithmetic operator %q", op)
}
