package service

import "testing"

func testIndex() *LanguageIndex {
	return NewLanguageIndex([]Language{
		{Name: "English", Code: "en"},
		{Name: "Portuguese", Code: "pt"},
		{Name: "Chinese", Code: "zh"},
	})
}

func TestLanguageCodeByName(t *testing.T) {
	idx := testIndex()
	if code, ok := idx.Code("portuguese"); !ok || code != "pt" {
		t.Errorf("Code(portuguese) = %q, %v", code, ok)
	}
	if code, ok := idx.Code("  English "); !ok || code != "en" {
		t.Errorf("Code with padding = %q, %v", code, ok)
	}
}

func TestLanguageCodePassthrough(t *testing.T) {
	idx := testIndex()
	if code, ok := idx.Code("zh"); !ok || code != "zh" {
		t.Errorf("known code should pass through, got %q, %v", code, ok)
	}
}

func TestLanguageCodeUnknown(t *testing.T) {
	idx := testIndex()
	if _, ok := idx.Code("klingon"); ok {
		t.Error("unknown language should not resolve")
	}
	if _, ok := idx.Code(""); ok {
		t.Error("empty input should not resolve")
	}
}
