package validate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oarkflow/linkml/schema"
)

// uniquenessTracker records which unique_key value-tuples have already
// been seen per class, across calls to Validate/ValidateCollection,
// until ResetUniqueness clears it. Grounded on the teacher's own
// sync.Map-guarded caches (compiledRegexPool, cache.go's Compiler.cache)
// for the concurrency-safe-map-of-sets idiom.
type uniquenessTracker struct {
	mu   sync.Mutex
	seen map[string]map[string]bool // class -> "keyName|encodedTuple" -> true
}

func newUniquenessTracker() *uniquenessTracker {
	return &uniquenessTracker{seen: map[string]map[string]bool{}}
}

func (t *uniquenessTracker) reset(class string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, class)
}

// observe records key for class, returning false if it was already
// seen (a uniqueness violation).
func (t *uniquenessTracker) observe(class, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	classSeen := t.seen[class]
	if classSeen == nil {
		classSeen = map[string]bool{}
		t.seen[class] = classSeen
	}
	if classSeen[key] {
		return false
	}
	classSeen[key] = true
	return true
}

// checkUniqueKeys enforces every unique_key declared on classDef. A
// unique_key whose tuple contains a null slot is skipped (treated as
// automatically distinct) when nulls are considered inequal, matching
// standard SQL UNIQUE-constraint semantics; otherwise nulls participate
// in the tuple like any other value.
func (e *Engine) checkUniqueKeys(instance map[string]any, classDef *schema.ClassDef, path string, opts *Options, report *Report) error {
	for keyName, uk := range classDef.UniqueKeys {
		considerNullsInequal := opts.ConsiderNullsInequal || uk.ConsiderNullsInequal

		hasNull := false
		parts := make([]string, 0, len(uk.UniqueKeySlots))
		for _, slotName := range uk.UniqueKeySlots {
			v, ok := instance[slotName]
			if !ok || v == nil {
				hasNull = true
				parts = append(parts, "\x00null")
				continue
			}
			parts = append(parts, fmt.Sprintf("%v", v))
		}
		if hasNull && considerNullsInequal {
			continue
		}

		encoded := keyName + "|" + strings.Join(parts, "\x1f")
		if !e.uniq.observe(classDef.Name, encoded) {
			report.add(Issue{
				Code:    CodeUniqueKeyViolation,
				Path:    path,
				Message: fmt.Sprintf("duplicate value for unique_key %q on class %q", keyName, classDef.Name),
				Context: map[string]any{"unique_key": keyName, "slots": uk.UniqueKeySlots},
			})
			if opts.FailFast {
				return nil
			}
		}
	}
	return nil
}
