package grocery

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Milk", "milk"},
		{"  Greek   Yogurt ", "greek yogurt"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCheckLength(t *testing.T) {
	if err := CheckLength("notes", strings.Repeat("a", MaxNotesLen), MaxNotesLen); err != nil {
		t.Errorf("expected no error at limit, got %v", err)
	}

	err := CheckLength("notes", strings.Repeat("a", MaxNotesLen+1), MaxNotesLen)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "notes" {
		t.Errorf("Field = %q, want %q", verr.Field, "notes")
	}

	// Multi-byte characters count once.
	if err := CheckLength("quantity", strings.Repeat("é", MaxQuantityLen), MaxQuantityLen); err != nil {
		t.Errorf("expected rune-counted length to pass, got %v", err)
	}
}

func TestMergeMenuNotes(t *testing.T) {
	tests := []struct {
		existing string
		menu     string
		want     string
	}{
		{"", "Taco Night", "Taco Night"},
		{"spicy", "Taco Night", "spicy, Taco Night"},
		{"spicy, Taco Night", "Taco Night", "spicy, Taco Night"},
		{"  ", "Brunch", "Brunch"},
	}
	for _, tt := range tests {
		if got := MergeMenuNotes(tt.existing, tt.menu); got != tt.want {
			t.Errorf("MergeMenuNotes(%q, %q) = %q, want %q", tt.existing, tt.menu, got, tt.want)
		}
	}
}

func TestMergeMenuNotesTruncates(t *testing.T) {
	existing := strings.Repeat("x", MaxNotesLen-3)
	got := MergeMenuNotes(existing, "Taco Night")
	if len([]rune(got)) != MaxNotesLen {
		t.Fatalf("len = %d, want %d", len([]rune(got)), MaxNotesLen)
	}
	if !strings.HasPrefix(got, existing+", T") {
		t.Errorf("unexpected merge result prefix: %q", got[len(got)-10:])
	}
}

func TestOrDefault(t *testing.T) {
	if got := OrDefault("", "1"); got != "1" {
		t.Errorf("OrDefault empty = %q, want %q", got, "1")
	}
	if got := OrDefault("2 lbs", "1"); got != "2 lbs" {
		t.Errorf("OrDefault = %q, want %q", got, "2 lbs")
	}
}
