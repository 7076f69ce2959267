package validate

import (
	"testing"

	"github.com/oarkflow/linkml/schema"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func buildEngine(t *testing.T, sch *schema.Schema) *Engine {
	t.Helper()
	idx, err := schema.Build(sch)
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	return NewEngine(&schema.CompiledSchema{Schema: sch, Index: idx})
}

func TestRequiredSlotMissing(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {Name: "Person", Slots: []string{"name"}},
		},
		Slots: map[string]*schema.SlotDef{
			"name": {Name: "name", Range: "string", Required: true},
		},
	}
	e := buildEngine(t, sch)
	report, err := e.Validate(map[string]any{}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid report for missing required slot")
	}
	if report.Issues[0].Code != CodeRequiredFieldMissing {
		t.Fatalf("got %+v", report.Issues)
	}
}

func TestRangeRecursesIntoClass(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {Name: "Person", Slots: []string{"address"}},
			"Address": {Name: "Address", Slots: []string{"city"}},
		},
		Slots: map[string]*schema.SlotDef{
			"address": {Name: "address", Range: "Address"},
			"city":    {Name: "city", Range: "string", Required: true},
		},
	}
	e := buildEngine(t, sch)
	report, err := e.Validate(map[string]any{"address": map[string]any{}}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid: nested Address.city missing")
	}
	if report.Issues[0].Path != "$.address.city" {
		t.Fatalf("expected nested path $.address.city, got %s", report.Issues[0].Path)
	}
}

func TestMultivaluedSlotIteratesEachElement(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {Name: "Person", Slots: []string{"tags"}},
		},
		Slots: map[string]*schema.SlotDef{
			"tags": {Name: "tags", Range: "string", Multivalued: true, MinimumLength: intPtr(2)},
		},
	}
	e := buildEngine(t, sch)
	report, err := e.Validate(map[string]any{"tags": []any{"ok", "x"}}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid: second tag too short")
	}
	if report.Issues[0].Path != "$.tags[1]" {
		t.Fatalf("expected $.tags[1], got %s", report.Issues[0].Path)
	}
}

func TestAdditionalPropertyRejectedByDefault(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {Name: "Person", Slots: []string{"name"}},
		},
		Slots: map[string]*schema.SlotDef{
			"name": {Name: "name", Range: "string"},
		},
	}
	e := buildEngine(t, sch)
	report, err := e.Validate(map[string]any{"name": "a", "extra": 1}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected invalid: undeclared field")
	}
}

func TestUniqueKeyViolationAcrossCalls(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {
				Name:  "Person",
				Slots: []string{"email"},
				UniqueKeys: map[string]*schema.UniqueKey{
					"email_key": {UniqueKeySlots: []string{"email"}},
				},
			},
		},
		Slots: map[string]*schema.SlotDef{
			"email": {Name: "email", Range: "string"},
		},
	}
	e := buildEngine(t, sch)
	instance := map[string]any{"email": "a@example.com"}
	r1, err := e.Validate(instance, "Person", nil)
	if err != nil || !r1.Valid {
		t.Fatalf("expected first instance valid, got %+v err=%v", r1, err)
	}
	r2, err := e.Validate(instance, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r2.Valid {
		t.Fatal("expected duplicate email to violate unique_key")
	}
	e.ResetUniqueness("Person")
	r3, err := e.Validate(instance, "Person", nil)
	if err != nil || !r3.Valid {
		t.Fatalf("expected instance valid again after ResetUniqueness, got %+v err=%v", r3, err)
	}
}

func TestConditionalRequirement(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Order": {
				Name:  "Order",
				Slots: []string{"status", "cancelled_reason"},
				IfRequired: map[string]*schema.ConditionalRequirement{
					"status": {
						Condition: schema.SlotCondition{EqualsString: strPtr("cancelled")},
						Then:      []string{"cancelled_reason"},
					},
				},
			},
		},
		Slots: map[string]*schema.SlotDef{
			"status":           {Name: "status", Range: "string"},
			"cancelled_reason": {Name: "cancelled_reason", Range: "string"},
		},
	}
	e := buildEngine(t, sch)
	report, err := e.Validate(map[string]any{"status": "cancelled"}, "Order", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected cancelled_reason required when status == cancelled")
	}

	report2, err := e.Validate(map[string]any{"status": "active"}, "Order", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report2.Valid {
		t.Fatalf("expected valid when condition does not trigger, got %+v", report2.Issues)
	}
}

func TestFailFastStopsAtFirstIssue(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {Name: "Person", Slots: []string{"a", "b"}},
		},
		Slots: map[string]*schema.SlotDef{
			"a": {Name: "a", Range: "string", Required: true},
			"b": {Name: "b", Range: "string", Required: true},
		},
	}
	e := buildEngine(t, sch)
	opts := Apply(WithFailFast(true))
	report, err := e.Validate(map[string]any{}, "Person", opts)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected fail_fast to stop after first issue, got %+v", report.Issues)
	}
}

func TestValidateCollectionPreservesOrder(t *testing.T) {
	sch := &schema.Schema{
		Classes: map[string]*schema.ClassDef{
			"Person": {Name: "Person", Slots: []string{"name"}},
		},
		Slots: map[string]*schema.SlotDef{
			"name": {Name: "name", Range: "string", Required: true},
		},
	}
	e := buildEngine(t, sch)
	instances := []map[string]any{
		{"name": "ok"},
		{},
		{"name": "also ok"},
	}
	report, err := e.ValidateCollection(instances, "Person", nil)
	if err != nil {
		t.Fatalf("ValidateCollection: %v", err)
	}
	if report.Valid {
		t.Fatal("expected the middle instance to fail")
	}
	if len(report.Issues) != 1 || report.Issues[0].Path != "$[1].name" {
		t.Fatalf("got %+v", report.Issues)
	}
}

func strPtr(s string) *string { return &s }
