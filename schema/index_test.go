package schema

import "testing"

func TestAncestorsAndEffectiveSlots(t *testing.T) {
	s := &Schema{
		Classes: map[string]*ClassDef{
			"Animal": {Name: "Animal", Slots: []string{"name"}},
			"Pet":    {Name: "Pet", IsA: "Animal", Mixins: []string{"Owned"}, Slots: []string{"nickname"}},
			"Owned":  {Name: "Owned", Slots: []string{"owner"}},
		},
		Slots: map[string]*SlotDef{
			"name":     {Name: "name", Range: "string"},
			"nickname": {Name: "nickname", Range: "string"},
			"owner":    {Name: "owner", Range: "string"},
		},
	}
	idx, err := Build(s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	anc := idx.Ancestors("Pet")
	if len(anc) != 3 || anc[0] != "Pet" {
		t.Fatalf("unexpected ancestors: %v", anc)
	}
	slots, err := idx.EffectiveSlots("Pet")
	if err != nil {
		t.Fatalf("EffectiveSlots: %v", err)
	}
	for _, want := range []string{"name", "nickname", "owner"} {
		if _, ok := slots[want]; !ok {
			t.Errorf("expected effective slot %q", want)
		}
	}
}

func TestCyclicInheritanceDetected(t *testing.T) {
	s := &Schema{
		Classes: map[string]*ClassDef{
			"A": {Name: "A", IsA: "B"},
			"B": {Name: "B", IsA: "A"},
		},
	}
	if _, err := Build(s); err == nil {
		t.Fatal("expected cyclic inheritance error, got nil")
	}
}

func TestSlotUsageOverride(t *testing.T) {
	s := &Schema{
		Classes: map[string]*ClassDef{
			"Base": {Name: "Base", Slots: []string{"age"}},
			"Derived": {
				Name: "Derived", IsA: "Base",
				SlotUsage: map[string]*SlotDef{"age": {Required: true}},
			},
		},
		Slots: map[string]*SlotDef{"age": {Name: "age", Range: "integer"}},
	}
	idx, err := Build(s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	slots, _ := idx.EffectiveSlots("Derived")
	if !slots["age"].Required {
		t.Fatal("expected slot_usage override to mark age required")
	}
	if slots["age"].Range != "integer" {
		t.Fatalf("expected range preserved from base slot, got %q", slots["age"].Range)
	}
}
