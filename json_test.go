package linkml_test

import (
	"testing"

	linkml "github.com/oarkflow/linkml"
)

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	b, err := linkml.Marshal(person{Name: "Ada", Age: 30})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got person
	if err := linkml.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != "Ada" || got.Age != 30 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestUnmarshalRejectsNonPointer(t *testing.T) {
	var dst person
	if err := linkml.Unmarshal([]byte(`{}`), dst); err == nil {
		t.Fatal("expected error for non-pointer destination")
	}
}
