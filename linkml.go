package linkml

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/oarkflow/linkml/cache"
	"github.com/oarkflow/linkml/schema"
	"github.com/oarkflow/linkml/validate"
)

// compileCache holds compiled schemas keyed by a hash of their
// canonical JSON form, so that compiling the same schema document twice
// (a common pattern for callers that reload a schema file per request)
// builds the Index once. Grounded on jsonschema/v2/cache.go's
// canonicalize-then-sha256 computeCacheKey idiom.
var compileCache = cache.New(cache.DefaultConfig())

// engines maps a compiled schema to the validate.Engine built over it.
// Keyed by pointer identity: compileCache.GetOrCompile returns the same
// *schema.CompiledSchema for repeat calls on an identical document, so
// the same Engine (and therefore the same uniqueness/rule caches) is
// reused across Validate calls against it.
var (
	enginesMu sync.Mutex
	engines   = map[*schema.CompiledSchema]*validate.Engine{}
)

// LoadSchema parses source (JSON bytes, a JSON string, or a Go struct
// introspected via schema.FromStruct) into a Schema.
func LoadSchema(source any) (*schema.Schema, error) {
	return schema.LoadSchema(source)
}

// Compile builds a CompiledSchema (Schema plus its Index) from s,
// reusing a previously compiled result for an identical schema document
// instead of rebuilding the Index from scratch.
func Compile(s *schema.Schema) (*schema.CompiledSchema, error) {
	key, err := schemaCacheKey(s)
	if err != nil {
		return nil, err
	}
	v, err := compileCache.GetOrCompile(key, cache.L2, func() (any, error) {
		idx, err := schema.Build(s)
		if err != nil {
			return nil, err
		}
		return &schema.CompiledSchema{Schema: s, Index: idx}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.CompiledSchema), nil
}

func schemaCacheKey(s *schema.Schema) (string, error) {
	b, err := Marshal(s)
	if err != nil {
		return "", fmt.Errorf("linkml: hashing schema for compile cache: %w", err)
	}
	sum := sha256.Sum256(b)
	return "schema:" + hex.EncodeToString(sum[:]), nil
}

func engineFor(cs *schema.CompiledSchema) *validate.Engine {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if e, ok := engines[cs]; ok {
		return e
	}
	e := validate.NewEngine(cs)
	engines[cs] = e
	return e
}

func toInstance(instance any) (map[string]any, error) {
	m, ok := instance.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("linkml: instance must be map[string]any, got %T", instance)
	}
	return m, nil
}

// Validate validates instance (a map[string]any) against class within
// cs, using opts (validate.DefaultOptions() if nil).
func Validate(cs *schema.CompiledSchema, instance any, class string, opts *validate.Options) (*validate.Report, error) {
	m, err := toInstance(instance)
	if err != nil {
		return nil, err
	}
	return engineFor(cs).Validate(m, class, opts)
}

// ValidateCollection validates every instance in instances (each a
// map[string]any) against class within cs, concurrently.
func ValidateCollection(cs *schema.CompiledSchema, instances []any, class string, opts *validate.Options) (*validate.Report, error) {
	converted := make([]map[string]any, len(instances))
	for i, instance := range instances {
		m, err := toInstance(instance)
		if err != nil {
			return nil, fmt.Errorf("linkml: instances[%d]: %w", i, err)
		}
		converted[i] = m
	}
	return engineFor(cs).ValidateCollection(converted, class, opts)
}

// ResetUniqueness clears tracked unique_key state for class within cs,
// so a subsequent Validate/ValidateCollection call no longer considers
// previously observed values duplicates.
func ResetUniqueness(cs *schema.CompiledSchema, class string) {
	engineFor(cs).ResetUniqueness(class)
}
