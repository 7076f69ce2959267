package linkml_test

import (
	"testing"

	linkml "github.com/oarkflow/linkml"
	"github.com/oarkflow/linkml/schema"
)

func buildPersonSchema(name string) *schema.Schema {
	return &schema.Schema{
		Name: name,
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
			"email": {Name: "email", Range: "string", Required: true},
		},
	}
}

func TestLoadCompileValidateEndToEnd(t *testing.T) {
	s := buildPersonSchema("people_endtoend")
	cs, err := linkml.Compile(s)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	report, err := linkml.Validate(cs, map[string]any{"email": "a@example.com"}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Valid {
		t.Fatalf("expected valid report, got issues: %v", report.Issues)
	}

	report, err = linkml.Validate(cs, map[string]any{}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected missing required slot to fail validation")
	}
}

func TestCompileReusesCacheForIdenticalSchema(t *testing.T) {
	s := buildPersonSchema("people_cache_reuse")
	cs1, err := linkml.Compile(s)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s2 := buildPersonSchema("people_cache_reuse")
	cs2, err := linkml.Compile(s2)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cs1 != cs2 {
		t.Fatal("expected identical schema documents to share a compiled instance")
	}
}

func TestValidateCollectionAndResetUniqueness(t *testing.T) {
	s := buildPersonSchema("people_collection_reset")
	cs, err := linkml.Compile(s)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	instances := []any{
		map[string]any{"email": "a@example.com"},
		map[string]any{"email": "a@example.com"}, // duplicate unique key
	}
	report, err := linkml.ValidateCollection(cs, instances, "Person", nil)
	if err != nil {
		t.Fatalf("ValidateCollection: %v", err)
	}
	if report.Valid {
		t.Fatal("expected duplicate unique key across the collection to fail")
	}

	linkml.ResetUniqueness(cs, "Person")
	report, err = linkml.Validate(cs, map[string]any{"email": "a@example.com"}, "Person", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Valid {
		t.Fatalf("expected validity restored after ResetUniqueness, got issues: %v", report.Issues)
	}
}
