package images

import (
	"reflect"
	"testing"
)

func TestCandidatesCoversEverySuffixAndExtension(t *testing.T) {
	candidates := Candidates("Q")
	if len(candidates) != 88 {
		t.Fatalf("expected 88 candidates, got %d", len(candidates))
	}
	if candidates[0].Name != "Q.png" {
		t.Fatalf("expected first candidate Q.png, got %q", candidates[0].Name)
	}
	last := candidates[len(candidates)-1]
	if last.Name != "Q_10.JPEG" || last.Suffix != 10 {
		t.Fatalf("unexpected last candidate: %+v", last)
	}

	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.Name] {
			t.Fatalf("duplicate candidate %q", c.Name)
		}
		seen[c.Name] = true
	}
	if !seen["Q_7.webp"] || !seen["Q.svg"] || !seen["Q_3.JPG"] {
		t.Fatalf("missing expected candidates")
	}
}

func TestCandidatesEmptyCode(t *testing.T) {
	if got := Candidates("  "); got != nil {
		t.Fatalf("expected no candidates for blank code, got %d", len(got))
	}
}

func TestIsNumericCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"482", true},
		{" 7 ", true},
		{"", false},
		{"Q482", false},
		{"4.2", false},
		{"-1", false},
	}
	for _, tt := range tests {
		if got := IsNumericCode(tt.code); got != tt.want {
			t.Fatalf("IsNumericCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestSortNamesNumericNotLexicographic(t *testing.T) {
	names := []string{"Q.png", "Q_2.png", "Q_1.png", "Q_10.png"}
	SortNames("Q", names)

	want := []string{"Q.png", "Q_1.png", "Q_2.png", "Q_10.png"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestSortNamesCodeEndingInNumber(t *testing.T) {
	names := MatchNames("AWS_12", []string{"AWS_12_1.png", "AWS_12.png", "aws_12_2.PNG", "AWS_12_10.svg"})
	SortNames("AWS_12", names)

	want := []string{"AWS_12.png", "AWS_12_1.png", "aws_12_2.PNG", "AWS_12_10.svg"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestMatchNamesRejectsUnrelatedListing(t *testing.T) {
	listed := []string{
		"CS101.png",
		"CS101_1.JPG",
		"cs101_10.webp",
		"CS101_11.png",
		"CS101_0.png",
		"CS1010.png",
		"CS101.gif",
		"other.png",
		"folder/CS101_2.svg",
		"CS101.png",
	}

	got := MatchNames("CS101", listed)
	want := []string{"CS101.png", "CS101_1.JPG", "cs101_10.webp", "CS101_2.svg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMatchNamesEscapesCode(t *testing.T) {
	got := MatchNames("a.b", []string{"a.b.png", "axb.png"})
	if len(got) != 1 || got[0] != "a.b.png" {
		t.Fatalf("expected only a.b.png, got %v", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf("diagram.svg") != KindVector || KindOf("diagram.SVG") != KindVector {
		t.Fatalf("expected svg to be vector")
	}
	if KindOf("diagram.png") != KindRaster {
		t.Fatalf("expected png to be raster")
	}
}
