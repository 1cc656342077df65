package config

import (
	"strings"
	"testing"
)

func TestSplitQuotedFields(t *testing.T) {
	in := `field'A' 'fieldB' fieldC 'field D' fieldE`
	tgt := []string{"fieldA", "fieldB", "fieldC", "field D", "fieldE"}
	out := SplitQuotedFields(in, '\'')

	if len(tgt) != len(out) {
		t.Fatalf("expected %#v, got %#v (len mismatch)", tgt, out)
	}

	for i := range tgt {
		if tgt[i] != out[i] {
			t.Fatalf("expected %#v, got %#v (mismatch at %d)", tgt, out, i)
		}
	}
}

func TestSplitDoubleQuotedFields(t *testing.T) {
	in := `field'A' "fieldB" fieldC "field D" "field_\"E\""`
	tgt := []string{"field'A'", "fieldB", "fieldC", "field D", `field_"E"`}
	out := SplitQuotedFields(in, '"')

	if len(tgt) != len(out) {
		t.Fatalf("expected %#v, got %#v (len mismatch)", tgt, out)
	}

	for i := range tgt {
		if tgt[i] != out[i] {
			t.Fatalf("expected %#v, got %#v (mismatch at %d)", tgt, out, i)
		}
	}
}

// The REPL's plain tokenization is strings.Split; its contract of
// preserving empty tokens (one empty token for empty input) is what the
// location parser relies on for forms like "file.cpp:12".
func TestPlainTokenize(t *testing.T) {
	if out := strings.Split("", " "); len(out) != 1 || out[0] != "" {
		t.Fatalf("got %#v", out)
	}
	out := strings.Split("hello world more tokens", " ")
	tgt := []string{"hello", "world", "more", "tokens"}
	if len(out) != len(tgt) {
		t.Fatalf("got %#v", out)
	}
	for i := range tgt {
		if out[i] != tgt[i] {
			t.Fatalf("got %#v", out)
		}
	}
}
