// Package validate implements the validation engine: given a compiled
// schema, a class, and an instance, it walks effective slots, rules,
// and uniqueness constraints and produces a structured Report.
package validate

// CustomValidator is one entry in Options.CustomValidators: a
// user-supplied check run after the built-in slot/rule validators,
// named so a panic inside Func can be reported against it.
type CustomValidator struct {
	Name string
	Func func(instance map[string]any, class string) error
}

// Options configures a validation run via the functional-options
// pattern, matching the teacher's own Options/Option shape in
// jsonschema/v2/compiler.go (WithDraftVersion/WithAsyncSubschemaCompilation/
// WithErrorReportingMode/...). Field names mirror spec.md's recognized
// option keys (max_depth, fail_fast, check_permissibles, use_cache,
// parallel, allow_additional_properties, fail_on_warning,
// custom_validators, allow_abstract).
type Options struct {
	FailFast                  bool
	AllowAdditionalProperties bool
	ConsiderNullsInequal      bool
	MaxConcurrency            int
	MaxDepth                  int
	CheckPermissibles         bool
	UseCache                  bool
	Parallel                  bool
	FailOnWarning             bool
	AllowAbstract             bool
	CustomValidators          []CustomValidator
}

// Option mutates an Options in place.
type Option func(*Options)

// DefaultOptions mirrors NewCompiler's defaults: fail_fast off,
// additional properties disallowed unless the class says otherwise,
// nulls considered inequal for uniqueness (a unique_key's own
// consider_nulls_inequal flag can turn this on but not off), abstract
// classes rejected unless allow_abstract is set.
func DefaultOptions() *Options {
	return &Options{
		FailFast:                  false,
		AllowAdditionalProperties: false,
		ConsiderNullsInequal:      true,
		MaxConcurrency:            0,
		MaxDepth:                  0,
		CheckPermissibles:         true,
		UseCache:                  true,
		Parallel:                  true,
		FailOnWarning:             false,
		AllowAbstract:             false,
	}
}

// WithFailFast stops validation at the first issue found.
func WithFailFast(v bool) Option { return func(o *Options) { o.FailFast = v } }

// WithAllowAdditionalProperties permits instance fields not declared on
// the class's effective slots.
func WithAllowAdditionalProperties(v bool) Option {
	return func(o *Options) { o.AllowAdditionalProperties = v }
}

// WithConsiderNullsInequal controls whether two null values in a
// unique_key are treated as distinct (true, the default) or as equal
// to each other (false).
func WithConsiderNullsInequal(v bool) Option {
	return func(o *Options) { o.ConsiderNullsInequal = v }
}

// WithMaxConcurrency bounds ValidateCollection's worker pool size.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithMaxDepth bounds recursion depth when a class range nests other
// classes; 0 means unbounded.
func WithMaxDepth(n int) Option { return func(o *Options) { o.MaxDepth = n } }

// WithCheckPermissibles toggles enum permissible-value checking.
func WithCheckPermissibles(v bool) Option { return func(o *Options) { o.CheckPermissibles = v } }

// WithUseCache toggles whether the engine's rule cache is consulted;
// disabling it forces recompilation of a class's rule set on every call.
func WithUseCache(v bool) Option { return func(o *Options) { o.UseCache = v } }

// WithParallel toggles whether ValidateCollection runs its worker pool
// concurrently (false forces sequential, single-worker validation).
func WithParallel(v bool) Option { return func(o *Options) { o.Parallel = v } }

// WithFailOnWarning promotes warnings to errors for the final
// report.valid boolean only; individual issues keep their original
// severity.
func WithFailOnWarning(v bool) Option { return func(o *Options) { o.FailOnWarning = v } }

// WithAllowAbstract permits instantiating an abstract class directly.
func WithAllowAbstract(v bool) Option { return func(o *Options) { o.AllowAbstract = v } }

// WithCustomValidators appends user-supplied validators run after the
// built-in checks, each guarded by a recover boundary that reports
// CUSTOM_VALIDATOR_PANIC instead of propagating.
func WithCustomValidators(v ...CustomValidator) Option {
	return func(o *Options) { o.CustomValidators = append(o.CustomValidators, v...) }
}

// Apply returns a copy of DefaultOptions with every opt applied.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
