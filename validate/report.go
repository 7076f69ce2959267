package validate

import (
	"fmt"
	"strings"

	"github.com/oarkflow/linkml/rule"
)

// Issue is one validation finding at a specific instance path, carrying
// a stable Code the same way rule.ValidationIssue does, so that schema
// slot-constraint failures and rule failures share one vocabulary. A
// zero-value Severity is treated as rule.SeverityError: slot-level
// constraint failures (required, range, pattern, ...) are always
// errors, only rule postconditions/else-conditions can downgrade to
// rule.SeverityWarning.
type Issue struct {
	Code     string
	Path     string
	Message  string
	Severity rule.Severity
	Context  map[string]any
}

// Report is the result of one Validate/ValidateCollection call. Valid
// reflects report.valid = (errors == 0) && (warnings == 0 ||
// !fail_on_warning); it is kept up to date as issues are added (with
// fail_on_warning assumed false) and corrected by finalize once the
// caller's Options are known.
type Report struct {
	Valid    bool
	Issues   []Issue
	errors   int
	warnings int
}

func (r *Report) add(issue Issue) {
	if issue.Severity == rule.SeverityWarning {
		r.warnings++
	} else {
		r.errors++
		r.Valid = false
	}
	r.Issues = append(r.Issues, issue)
}

func (r *Report) addRuleIssues(path string, issues []rule.ValidationIssue) {
	for _, i := range issues {
		if i.Severity == rule.SeverityWarning {
			r.warnings++
		} else {
			r.errors++
			r.Valid = false
		}
		r.Issues = append(r.Issues, Issue{Code: i.Code, Path: path, Message: i.Message, Severity: i.Severity, Context: i.Context})
	}
}

// merge folds other's issues and counts into r, as ValidateCollection
// does across per-instance reports before finalizing the combined one.
func (r *Report) merge(other *Report) {
	r.errors += other.errors
	r.warnings += other.warnings
	r.Issues = append(r.Issues, other.Issues...)
	if !other.Valid {
		r.Valid = false
	}
}

// finalize applies fail_on_warning to the errors/warnings tally
// collected so far, matching report.valid = (errors == 0) &&
// (warnings == 0 || !fail_on_warning).
func (r *Report) finalize(failOnWarning bool) {
	r.Valid = r.errors == 0 && (r.warnings == 0 || !failOnWarning)
}

// Error renders the report as a single error, matching the teacher's
// errsToString convention in jsonschema/schema.go (path-quoted,
// semicolon-joined) rather than introducing a new format.
func (r *Report) Error() string {
	if r.Valid {
		return ""
	}
	var sb strings.Builder
	for _, issue := range r.Issues {
		fmt.Fprintf(&sb, "'%s' %s; ", issue.Path, issue.Message)
	}
	return sb.String()
}

func newReport() *Report {
	return &Report{Valid: true}
}
