package expression

import "testing"

func evalOK(t *testing.T, e *Engine, src string, ctx Context) any {
	t.Helper()
	v, err := e.Eval(src, ctx)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v
}

func TestArithmeticAndComparison(t *testing.T) {
	e := NewEngine()
	if v := evalOK(t, e, "1 + 2 * 3", nil); v != 7.0 {
		t.Errorf("got %v, want 7", v)
	}
	if v := evalOK(t, e, "(1 + 2) * 3", nil); v != 9.0 {
		t.Errorf("got %v, want 9", v)
	}
	if v := evalOK(t, e, "10 / 4", nil); v != 2.5 {
		t.Errorf("got %v, want 2.5", v)
	}
}

func TestVariablesAndConditions(t *testing.T) {
	e := NewEngine()
	ctx := Context{"age": 20.0, "status": "active"}
	if v := evalOK(t, e, `{age} >= 18 and {status} == "active"`, ctx); v != true {
		t.Errorf("got %v, want true", v)
	}
	ctx2 := Context{"age": 16.0, "status": "active"}
	if v := evalOK(t, e, `{age} >= 18 and {status} == "active"`, ctx2); v != false {
		t.Errorf("got %v, want false", v)
	}
}

func TestTernary(t *testing.T) {
	e := NewEngine()
	if v := evalOK(t, e, `{x} > 0 ? "pos" : "non-pos"`, Context{"x": 5.0}); v != "pos" {
		t.Errorf("got %v", v)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	e := NewEngine()
	if v := evalOK(t, e, "sum(1, 2, 3)", nil); v != 6.0 {
		t.Errorf("sum: got %v", v)
	}
	if v := evalOK(t, e, `concat("a", "b", "c")`, nil); v != "abc" {
		t.Errorf("concat: got %v", v)
	}
	if v := evalOK(t, e, `upper("hi")`, nil); v != "HI" {
		t.Errorf("upper: got %v", v)
	}
}

func TestStringLengthComparison(t *testing.T) {
	// Mirrors the original rule matcher's compare_values: string
	// comparisons with < <= > >= go by rune length, not lexicographic.
	e := NewEngine()
	if v := evalOK(t, e, `"ab" < "abc"`, nil); v != true {
		t.Errorf("got %v, want true (length comparison)", v)
	}
}

func TestEvaluateWithContextsPreservesOrder(t *testing.T) {
	e := NewEngine()
	ctxs := []Context{{"x": 1.0}, {"x": 2.0}, {"x": 3.0}}
	results, errs := e.EvaluateWithContexts("{x} * 2", ctxs, ParallelOptions{})
	want := []float64{2, 4, 6}
	for i, w := range want {
		if errs[i] != nil {
			t.Fatalf("context %d: %v", i, errs[i])
		}
		if results[i] != w {
			t.Errorf("context %d: got %v, want %v", i, results[i], w)
		}
	}
}

func TestBatchEvaluatorMapReduce(t *testing.T) {
	e := NewEngine()
	b := NewBatchEvaluator(e, ParallelOptions{})
	items := []any{
		map[string]any{"price": 10.0, "quantity": 5.0},
		map[string]any{"price": 20.0, "quantity": 3.0},
		map[string]any{"price": 20.0, "quantity": 3.0},
	}
	total, err := b.MapReduce("{price} * {quantity}", "sum({values})", items, nil)
	if err != nil {
		t.Fatalf("MapReduce: %v", err)
	}
	if total != 170.0 {
		t.Errorf("got %v, want 170", total)
	}
}
