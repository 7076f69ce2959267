package expression

import (
	"fmt"
	"strings"
)

// Context is the variable binding environment an expression evaluates
// against — map[string]any mirrors the teacher's Context type in
// jsonschema/value.go rather than introducing a typed struct, since the
// set of bindings is schema-driven and only known at validation time.
type Context = map[string]any

// Engine evaluates parsed expressions against a Context. It is stateless
// and safe for concurrent use; state lives in the Context passed to
// Eval, not in the Engine itself.
type Engine struct {
	funcs map[string]Func
}

// Func is a builtin or user-registered expression function.
type Func func(args []any) (any, error)

// NewEngine returns an Engine with every builtin from builtins.go
// registered.
func NewEngine() *Engine {
	e := &Engine{funcs: map[string]Func{}}
	registerBuiltins(e)
	return e
}

// RegisterFunc adds or overrides a function under name.
func (e *Engine) RegisterFunc(name string, fn Func) {
	e.funcs[name] = fn
}

// Eval parses src and evaluates it against ctx in one step.
func (e *Engine) Eval(src string, ctx Context) (any, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.EvalExpr(expr, ctx)
}

// EvalExpr evaluates an already-parsed Expression against ctx.
func (e *Engine) EvalExpr(expr *Expression, ctx Context) (any, error) {
	return e.eval(expr.root, ctx)
}

func (e *Engine) eval(n node, ctx Context) (any, error) {
	switch n.kind {
	case nodeNull:
		return nil, nil
	case nodeBool:
		return n.boolVal, nil
	case nodeNumber:
		return n.numVal, nil
	case nodeString:
		return n.strVal, nil
	case nodeVariable:
		return lookupPath(ctx, n.path), nil
	case nodeCall:
		return e.evalCall(n, ctx)
	case nodeConditional:
		test, err := e.eval(*n.condTest, ctx)
		if err != nil {
			return nil, err
		}
		if truthy(test) {
			return e.eval(*n.condThen, ctx)
		}
		return e.eval(*n.condElse, ctx)
	case nodeUnaryNot:
		v, err := e.eval(*n.operand, ctx)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case nodeUnaryNeg:
		v, err := e.eval(*n.operand, ctx)
		if err != nil {
			return nil, err
		}
		f, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("expression: cannot negate non-numeric value %v", v)
		}
		return -f, nil
	case nodeBinary:
		return e.evalBinary(n, ctx)
	default:
		return nil, fmt.Errorf("expression: unknown node kind %d", n.kind)
	}
}

func (e *Engine) evalCall(n node, ctx Context) (any, error) {
	fn, ok := e.funcs[n.callName]
	if !ok {
		// bare identifier with no args and no registered function:
		// treat as a context lookup (supports unbraced variable use in
		// some call sites), falling back to a clear error otherwise.
		if n.args == nil {
			if v, ok := ctx[n.callName]; ok {
				return v, nil
			}
		}
		return nil, fmt.Errorf("expression: unknown function %q", n.callName)
	}
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := e.eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args)
}

func (e *Engine) evalBinary(n node, ctx Context) (any, error) {
	// and/or short-circuit and therefore evaluate their right side lazily.
	if n.op == "and" {
		l, err := e.eval(*n.left, ctx)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := e.eval(*n.right, ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}
	if n.op == "or" {
		l, err := e.eval(*n.left, ctx)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := e.eval(*n.right, ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := e.eval(*n.left, ctx)
	if err != nil {
		return nil, err
	}
	r, err := e.eval(*n.right, ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return valuesEqual(l, r), nil
	case "!=":
		return !valuesEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(n.op, l, r)
	case "+":
		return arithAdd(l, r)
	case "-", "*", "/", "%":
		return arithOp(n.op, l, r)
	default:
		return nil, fmt.Errorf("expression: unknown operator %q", n.op)
	}
}

// lookupPath resolves a dotted path ("a.b.c") against a nested
// map[string]any context, returning nil (not an error) for a missing
// segment — consistent with the original matcher's
// instance_obj.get(slot_name).unwrap_or(&Value::Null) convention.
func lookupPath(ctx Context, path string) any {
	var cur any = ctx
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
