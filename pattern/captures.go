package pattern

import (
	"fmt"
	"regexp"
	"strconv"
)

// CaptureType is the expected type of one named capture group.
type CaptureType string

const (
	CaptureString  CaptureType = "string"
	CaptureInteger CaptureType = "integer"
	CaptureFloat   CaptureType = "float"
	CaptureBoolean CaptureType = "boolean"
	CaptureEnum    CaptureType = "enum"
)

// Validator is one post-conversion check applied to a capture, mirroring
// CaptureValidator in original_source/service/src/pattern/named_captures.rs.
type Validator struct {
	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64
	Pattern   *regexp.Regexp
}

// CaptureSpec is a named capture's full definition: type, requiredness,
// default, and validators, applied in that order (extract, convert,
// validate) exactly as named_captures.rs's CaptureExtractor does.
type CaptureSpec struct {
	Name       string
	Type       CaptureType
	EnumValues []string
	Required   bool
	Default    string
	Validators []Validator
}

// Value is an extracted, type-converted capture value.
type Value struct {
	Kind    CaptureType
	Str     string
	Int     int64
	Float   float64
	Bool    bool
	IsNull  bool
}

// CaptureError reports which named capture failed and how, distinguishing
// "not found" from "failed to convert" from "failed validation" the way
// named_captures.rs's CaptureError enum does.
type CaptureError struct {
	Kind string // "not_found" | "conversion" | "validation" | "pattern"
	Name string
	Msg  string
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("pattern: capture %q %s: %s", e.Name, e.Kind, e.Msg)
}

// Extract runs re against s and converts/validates every named capture
// listed in specs, in definition order. A capture that did not
// participate in the match falls back to its Default, or to Value{IsNull:
// true} if there is no default and it is not Required; a missing
// Required capture is an error.
func Extract(re *regexp.Regexp, s string, specs []CaptureSpec) (map[string]Value, error) {
	match := re.FindStringSubmatchIndex(s)
	if match == nil {
		return nil, &CaptureError{Kind: "pattern", Name: "", Msg: "pattern did not match input"}
	}
	names := re.SubexpNames()

	raw := map[string]string{}
	for i, name := range names {
		if name == "" || 2*i+1 >= len(match) || match[2*i] < 0 {
			continue
		}
		raw[name] = s[match[2*i]:match[2*i+1]]
	}

	result := make(map[string]Value, len(specs))
	for _, spec := range specs {
		text, ok := raw[spec.Name]
		if !ok {
			if spec.Required {
				return nil, &CaptureError{Kind: "not_found", Name: spec.Name, Msg: "required capture missing from pattern"}
			}
			if spec.Default != "" {
				text = spec.Default
			} else {
				result[spec.Name] = Value{IsNull: true}
				continue
			}
		}

		v, err := convert(spec, text)
		if err != nil {
			return nil, err
		}
		for _, validator := range spec.Validators {
			if err := validate(spec.Name, v, validator); err != nil {
				return nil, err
			}
		}
		result[spec.Name] = v
	}
	return result, nil
}

func convert(spec CaptureSpec, text string) (Value, error) {
	switch spec.Type {
	case "", CaptureString:
		return Value{Kind: CaptureString, Str: text}, nil
	case CaptureInteger:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, &CaptureError{Kind: "conversion", Name: spec.Name, Msg: fmt.Sprintf("cannot convert %q to integer: %v", text, err)}
		}
		return Value{Kind: CaptureInteger, Int: i}, nil
	case CaptureFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, &CaptureError{Kind: "conversion", Name: spec.Name, Msg: fmt.Sprintf("cannot convert %q to float: %v", text, err)}
		}
		return Value{Kind: CaptureFloat, Float: f}, nil
	case CaptureBoolean:
		switch text {
		case "true":
			return Value{Kind: CaptureBoolean, Bool: true}, nil
		case "false":
			return Value{Kind: CaptureBoolean, Bool: false}, nil
		default:
			return Value{}, &CaptureError{Kind: "conversion", Name: spec.Name, Msg: fmt.Sprintf("cannot convert %q to boolean", text)}
		}
	case CaptureEnum:
		for _, allowed := range spec.EnumValues {
			if allowed == text {
				return Value{Kind: CaptureEnum, Str: text}, nil
			}
		}
		return Value{}, &CaptureError{Kind: "conversion", Name: spec.Name, Msg: fmt.Sprintf("%q is not one of %v", text, spec.EnumValues)}
	default:
		return Value{}, &CaptureError{Kind: "conversion", Name: spec.Name, Msg: fmt.Sprintf("unknown capture type %q", spec.Type)}
	}
}

func validate(name string, v Value, validator Validator) error {
	if validator.MinLength != nil || validator.MaxLength != nil {
		n := len([]rune(v.Str))
		if validator.MinLength != nil && n < *validator.MinLength {
			return &CaptureError{Kind: "validation", Name: name, Msg: fmt.Sprintf("length %d is below minimum %d", n, *validator.MinLength)}
		}
		if validator.MaxLength != nil && n > *validator.MaxLength {
			return &CaptureError{Kind: "validation", Name: name, Msg: fmt.Sprintf("length %d exceeds maximum %d", n, *validator.MaxLength)}
		}
	}
	if validator.MinValue != nil || validator.MaxValue != nil {
		f := numericValue(v)
		if validator.MinValue != nil && f < *validator.MinValue {
			return &CaptureError{Kind: "validation", Name: name, Msg: fmt.Sprintf("value %v is below minimum %v", f, *validator.MinValue)}
		}
		if validator.MaxValue != nil && f > *validator.MaxValue {
			return &CaptureError{Kind: "validation", Name: name, Msg: fmt.Sprintf("value %v exceeds maximum %v", f, *validator.MaxValue)}
		}
	}
	if validator.Pattern != nil && !validator.Pattern.MatchString(v.Str) {
		return &CaptureError{Kind: "validation", Name: name, Msg: fmt.Sprintf("value %q does not match validator pattern", v.Str)}
	}
	return nil
}

func numericValue(v Value) float64 {
	switch v.Kind {
	case CaptureInteger:
		return float64(v.Int)
	case CaptureFloat:
		return v.Float
	default:
		return 0
	}
}
