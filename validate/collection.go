package validate

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/oarkflow/linkml/memsafe"
)

// ValidateCollection validates every instance in instances against
// class, bounded to opts.MaxConcurrency concurrent workers (defaulting
// to GOMAXPROCS, the same default expression.ParallelOptions.withDefaults
// uses). Results preserve input order regardless of completion order,
// same buffered-channel-semaphore idiom as expression.EvaluateWithContexts.
// Reports are merged in index order so the combined Report.Issues list
// is stable and deterministic across runs.
func (e *Engine) ValidateCollection(instances []map[string]any, class string, opts *Options) (*Report, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.GOMAXPROCS(0)
	}
	if !opts.Parallel {
		maxConcurrency = 1
	}

	// One parent scope for the whole batch; each worker gets its own
	// child scope so a worker's transient state can be released as soon
	// as that worker finishes, without waiting on the slowest sibling.
	batchScope := memsafe.NewScopedPool("validate_collection:" + class)
	batchGuard := e.mem.TrackAllocation("validate_collection."+class, uint64(len(instances))*64)
	batchScope.OnClear(batchGuard.Release)
	defer batchScope.Clear()

	reports := make([]*Report, len(instances))
	errs := make([]error, len(instances))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, instance := range instances {
		wg.Add(1)
		go func(i int, instance map[string]any) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			workerScope := batchScope.Child(indexPath(i))
			workerGuard := e.mem.TrackAllocation("validate_collection.item", uint64(len(instance))*64)
			workerScope.OnClear(workerGuard.Release)
			defer workerScope.Clear()
			r := newReport()
			err := e.validateAsClass(instance, class, indexPath(i), 0, opts, r)
			r.finalize(opts.FailOnWarning)
			reports[i] = r
			errs[i] = err
		}(i, instance)
	}
	wg.Wait()

	combined := newReport()
	for i, r := range reports {
		if errs[i] != nil {
			return nil, errs[i]
		}
		combined.merge(r)
		if opts.FailFast && !combined.Valid {
			break
		}
	}
	combined.finalize(opts.FailOnWarning)
	return combined, nil
}

func indexPath(i int) string {
	return "$[" + strconv.Itoa(i) + "]"
}
