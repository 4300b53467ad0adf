package testutils

import (
	"testing"
)

func TestTextAsserterDefaultOptions(t *testing.T) {
	ta := NewTextAsserter(t)

	if !ta.options.IgnoreTrailingWhitespace {
		t.Error("IgnoreTrailingWhitespace should default to true")
	}
	if ta.options.IgnoreEmptyLines {
		t.Error("IgnoreEmptyLines should default to false")
	}
	if !ta.options.TrimSpace {
		t.Error("TrimSpace should default to true")
	}
}

func TestTextAsserterIdenticalText(t *testing.T) {
	ta := NewTextAsserter(t)
	ta.Assert("line one\nline two", "line one\nline two")
}

func TestTextAsserterTrailingWhitespace(t *testing.T) {
	ta := NewTextAsserter(t)
	ta.Assert("line one   \nline two\t", "line one\nline two")
}

func TestTextAsserterOuterWhitespace(t *testing.T) {
	ta := NewTextAsserter(t)
	ta.Assert("\n\nbody\n\n", "body")
}

func TestTextAsserterIgnoreEmptyLines(t *testing.T) {
	ta := NewTextAsserter(t, WithIgnoreEmptyLines(true))
	ta.Assert("a\n\n\nb", "a\nb")
}

func TestTextAsserterDetectsDifference(t *testing.T) {
	ta := NewTextAsserter(t)
	if ta.normalize("alpha") == ta.normalize("beta") {
		t.Error("normalize should not collapse different text")
	}
}

func TestTextAsserterStrictOptions(t *testing.T) {
	ta := NewTextAsserter(t, WithTrimSpace(false), WithIgnoreTrailingWhitespace(false))
	if ta.normalize("x ") == ta.normalize("x") {
		t.Error("strict options should preserve trailing whitespace")
	}
}
