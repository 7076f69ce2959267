package expression

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ParallelOptions bounds a batch evaluation run. MaxConcurrency<=0
// defaults to GOMAXPROCS, mirroring the original's num_cpus::get()
// default (service/src/expression/parallel.rs).
type ParallelOptions struct {
	MaxConcurrency int
	FailFast       bool
	Timeout        time.Duration
}

func (o ParallelOptions) withDefaults() ParallelOptions {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = runtime.GOMAXPROCS(0)
	}
	return o
}

// ParallelResult is the outcome of evaluating a map of expressions.
type ParallelResult struct {
	Successful  map[string]any
	Failed      map[string]string
	TotalTimeMs int64
}

// EvaluateParallel evaluates each (key, expression-source) pair in
// exprs against the same ctx, bounded to opts.MaxConcurrency concurrent
// evaluations via a buffered-channel semaphore — the Go idiom for the
// teacher's own bounded fan-out (compileSubschemaAsync/
// compileSubschemaArray's resultChan/errChan pair in
// jsonschema/v2/jsonschema.go), standing in for the original's
// tokio::Semaphore + tokio::spawn + join_all.
func (e *Engine) EvaluateParallel(exprs map[string]string, ctx Context, opts ParallelOptions) (*ParallelResult, error) {
	opts = opts.withDefaults()
	start := time.Now()
	sem := make(chan struct{}, opts.MaxConcurrency)

	type outcome struct {
		key string
		val any
		err error
	}

	results := make(chan outcome, len(exprs))
	var wg sync.WaitGroup

	runOne := func(key, src string) {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()
		v, err := e.Eval(src, ctx)
		results <- outcome{key: key, val: v, err: err}
	}

	for key, src := range exprs {
		wg.Add(1)
		go runOne(key, src)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := &ParallelResult{Successful: map[string]any{}, Failed: map[string]string{}}
	if opts.FailFast {
		// Sequential drain so the first failure stops collecting further
		// results; in-flight goroutines still run to completion, same
		// as the original's fail_fast path (it stops awaiting, it does
		// not cancel).
		for r := range results {
			if r.err != nil {
				out.Failed[r.key] = r.err.Error()
				out.TotalTimeMs = time.Since(start).Milliseconds()
				return out, nil
			}
			out.Successful[r.key] = r.val
		}
	} else {
		for r := range results {
			if r.err != nil {
				out.Failed[r.key] = r.err.Error()
			} else {
				out.Successful[r.key] = r.val
			}
		}
	}
	out.TotalTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

// EvaluateWithContexts parses src once and evaluates the shared AST
// against every context in ctxs, returning results in input order
// regardless of goroutine completion order. A parse failure is
// replicated as the same error for every context, matching
// evaluate_with_contexts in service/src/expression/parallel.rs.
func (e *Engine) EvaluateWithContexts(src string, ctxs []Context, opts ParallelOptions) ([]any, []error) {
	opts = opts.withDefaults()
	expr, err := Parse(src)
	if err != nil {
		results := make([]any, len(ctxs))
		errs := make([]error, len(ctxs))
		for i := range ctxs {
			errs[i] = err
		}
		return results, errs
	}

	results := make([]any, len(ctxs))
	errs := make([]error, len(ctxs))
	sem := make(chan struct{}, opts.MaxConcurrency)
	var wg sync.WaitGroup
	for i, c := range ctxs {
		wg.Add(1)
		go func(i int, c Context) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			v, err := e.EvalExpr(expr, c)
			results[i] = v
			errs[i] = err
		}(i, c)
	}
	wg.Wait()
	return results, errs
}

// BatchEvaluator wraps an Engine with a fixed set of ParallelOptions for
// repeated collection-oriented evaluation, mirroring the original's
// BatchEvaluator (service/src/expression/parallel.rs).
type BatchEvaluator struct {
	engine  *Engine
	options ParallelOptions
}

// NewBatchEvaluator builds a BatchEvaluator over engine with opts.
func NewBatchEvaluator(engine *Engine, opts ParallelOptions) *BatchEvaluator {
	return &BatchEvaluator{engine: engine, options: opts.withDefaults()}
}

// EvaluateCollection evaluates exprTemplate once per item, merging each
// item's object fields into a copy of baseContext (or binding the item
// under "item" if it is not itself an object).
func (b *BatchEvaluator) EvaluateCollection(exprTemplate string, items []any, baseContext Context) ([]any, []error) {
	ctxs := make([]Context, len(items))
	for i, item := range items {
		c := make(Context, len(baseContext)+1)
		for k, v := range baseContext {
			c[k] = v
		}
		if obj, ok := item.(map[string]any); ok {
			for k, v := range obj {
				c[k] = v
			}
		} else {
			c["item"] = item
		}
		ctxs[i] = c
	}
	return b.engine.EvaluateWithContexts(exprTemplate, ctxs, b.options)
}

// MapReduce runs EvaluateCollection as the map phase, silently dropping
// per-item evaluation failures (matching the original's
// filter_map(Result::ok)), then evaluates reduceExpression once against
// baseContext plus a bound "values" list of the surviving map results.
func (b *BatchEvaluator) MapReduce(mapExpression, reduceExpression string, items []any, baseContext Context) (any, error) {
	mapped, errs := b.EvaluateCollection(mapExpression, items, baseContext)
	values := make([]any, 0, len(mapped))
	for i, v := range mapped {
		if errs[i] == nil {
			values = append(values, v)
		}
	}
	reduceCtx := make(Context, len(baseContext)+1)
	for k, v := range baseContext {
		reduceCtx[k] = v
	}
	reduceCtx["values"] = values
	return b.engine.Eval(reduceExpression, reduceCtx)
}

// EvalWithTimeout evaluates src against ctx, returning a timeout error
// if evaluation does not complete within d. Evaluation itself is
// synchronous and cannot be preempted mid-expression, so this bounds
// wall-clock wait time rather than interrupting a runaway evaluation.
func (e *Engine) EvalWithTimeout(parent context.Context, src string, ctx Context, d time.Duration) (any, error) {
	if d <= 0 {
		return e.Eval(src, ctx)
	}
	c, cancel := context.WithTimeout(parent, d)
	defer cancel()
	done := make(chan struct{})
	var val any
	var err error
	go func() {
		val, err = e.Eval(src, ctx)
		close(done)
	}()
	select {
	case <-done:
		return val, err
	case <-c.Done():
		return nil, fmt.Errorf("expression: evaluation of %q timed out after %s", src, d)
	}
}
