package schema

import "fmt"

// SchemaError is the error type returned by schema loading and index
// construction; it carries enough context to point at the offending
// class/slot without forcing callers to parse a message string.
type SchemaError struct {
	Code  string
	Class string
	Slot  string
	Msg   string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Class != "" && e.Slot != "":
		return fmt.Sprintf("%s: class %q slot %q: %s", e.Code, e.Class, e.Slot, e.Msg)
	case e.Class != "":
		return fmt.Sprintf("%s: class %q: %s", e.Code, e.Class, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
}

func errCyclicInheritance(class string, chain []string) *SchemaError {
	return &SchemaError{Code: "SCHEMA_CYCLIC_INHERITANCE", Class: class, Msg: fmt.Sprintf("inheritance cycle: %v", chain)}
}

func errUnknownClass(name string) *SchemaError {
	return &SchemaError{Code: "SCHEMA_UNKNOWN_CLASS", Class: name, Msg: "class not found in schema"}
}

func errUnknownSlot(class, slot string) *SchemaError {
	return &SchemaError{Code: "SCHEMA_UNKNOWN_SLOT", Class: class, Slot: slot, Msg: "slot not found"}
}
