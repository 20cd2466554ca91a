package builtin

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"sepal length", "sepalLength"},
		{"Sepal Length", "sepalLength"},
		{"Petal-Width (cm)", "petalWidthCm"},
		{"  species  ", "species"},
		{"Pétale largeur", "petaleLargeur"},
		{"ID", "id"},
		{"row 2 value", "row2Value"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasEdgeSpace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"a", false},
		{"a b", false},
		{" a", true},
		{"a\t", true},
		{"\n", true},
	}
	for _, tt := range tests {
		if got := HasEdgeSpace(tt.in); got != tt.want {
			t.Fatalf("HasEdgeSpace(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCaseFolding(t *testing.T) {
	t.Parallel()

	if got := Lower("SETOSA"); got != "setosa" {
		t.Fatalf("Lower = %q", got)
	}
	if got := Upper("straße"); got != "STRASSE" {
		t.Fatalf("Upper = %q, want STRASSE", got)
	}
	if got := Fold("Ångström"); got != "Angstrom" {
		t.Fatalf("Fold = %q, want Angstrom", got)
	}
}
