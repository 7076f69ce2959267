package pattern

import "testing"

func TestCompileAndCache(t *testing.T) {
	c := NewCompiler()
	re1, err := c.Compile(Spec{Syntax: "regex", Pattern: `[a-z]+`}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	re2, err := c.Compile(Spec{Syntax: "regex", Pattern: `[a-z]+`}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if re1 != re2 {
		t.Error("expected cached compile to return the same *regexp.Regexp")
	}
	if !re1.MatchString("abc") {
		t.Error("expected match")
	}
}

func TestGlobSyntax(t *testing.T) {
	c := NewCompiler()
	re, err := c.Compile(Spec{Syntax: "glob", Pattern: "foo*.txt"}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !re.MatchString("foobar.txt") {
		t.Error("expected glob match")
	}
	if re.MatchString("foobar.csv") {
		t.Error("expected glob mismatch")
	}
}

func TestInterpolation(t *testing.T) {
	bindings := map[string]any{"prefix": map[string]any{"code": "ABC"}}
	out, err := Interpolate(`^{prefix.code}-[0-9]+$`, bindings)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if out != `^ABC-[0-9]+$` {
		t.Errorf("got %q", out)
	}
}

func TestInterpolationEscapesSpecialChars(t *testing.T) {
	bindings := map[string]any{"tag": "a.b*c"}
	out, err := Interpolate(`{tag}`, bindings)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if out != `a\.b\*c` {
		t.Errorf("got %q, expected regex-escaped literal", out)
	}
}

func TestNamedCaptureTypedExtraction(t *testing.T) {
	c := NewCompiler()
	re, err := c.Compile(Spec{Syntax: "regex", Pattern: `(?P<id>[A-Z]+)-(?P<num>[0-9]+)`, PartialMatch: true}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	specs := []CaptureSpec{
		{Name: "id", Type: CaptureString, Required: true},
		{Name: "num", Type: CaptureInteger, Required: true},
	}
	vals, err := Extract(re, "order ABC-42 shipped", specs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if vals["id"].Str != "ABC" {
		t.Errorf("id: got %q", vals["id"].Str)
	}
	if vals["num"].Int != 42 {
		t.Errorf("num: got %d", vals["num"].Int)
	}
}

func TestNamedCaptureRequiredMissing(t *testing.T) {
	c := NewCompiler()
	re, err := c.Compile(Spec{Syntax: "regex", Pattern: `(?P<id>[A-Z]+)`, PartialMatch: true}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	specs := []CaptureSpec{{Name: "missing", Required: true}}
	if _, err := Extract(re, "ABC", specs); err == nil {
		t.Fatal("expected error for required-but-missing capture")
	}
}
