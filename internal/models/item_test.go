package models

import (
	"testing"
)

func TestItem_DisplayContent(t *testing.T) {
	tests := []struct {
		name     string
		item     Item
		expected string
	}{
		{
			name:     "web content wins",
			item:     Item{RawContent: "raw", CleanContent: "clean", WebContent: "web"},
			expected: "web",
		},
		{
			name:     "clean content over raw",
			item:     Item{RawContent: "raw", CleanContent: "clean"},
			expected: "clean",
		},
		{
			name:     "raw content as last resort",
			item:     Item{RawContent: "raw"},
			expected: "raw",
		},
		{
			name:     "all empty",
			item:     Item{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.DisplayContent(); got != tt.expected {
				t.Errorf("DisplayContent() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestItem_EffectiveContent(t *testing.T) {
	item := Item{RawContent: "raw", CleanContent: "clean", WebContent: "web"}
	if got := item.EffectiveContent(); got != "clean" {
		t.Errorf("EffectiveContent() = %v, want clean (web content must not leak in)", got)
	}

	item.CleanContent = ""
	if got := item.EffectiveContent(); got != "raw" {
		t.Errorf("EffectiveContent() = %v, want raw", got)
	}
}

func TestStringList_Scan(t *testing.T) {
	var l StringList
	if err := l.Scan([]byte(`["ai","chips"]`)); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(l) != 2 || l[0] != "ai" || l[1] != "chips" {
		t.Errorf("Scan() = %v, want [ai chips]", l)
	}

	if err := l.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if len(l) != 0 {
		t.Errorf("Scan(nil) = %v, want empty", l)
	}
}

func TestStringList_Value(t *testing.T) {
	var nilList StringList
	v, err := nilList.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if string(v.([]byte)) != "[]" {
		t.Errorf("nil list Value() = %s, want []", v)
	}
}
