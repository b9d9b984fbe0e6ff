package content

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Casa São João", "casa-sao-joao"},
		{"  The  Quiet   House!! ", "the-quiet-house"},
		{"Über Haus / 2021", "uber-haus-2021"},
		{"---", ""},
		{"Mies's Pavilion (phase 2)", "mies-s-pavilion-phase-2"},
	}
	for _, test := range tests {
		if got := Slugify(test.input); got != test.expected {
			t.Fatalf("Slugify(%q) = %q, want %q", test.input, got, test.expected)
		}
	}
	long := Slugify(strings.Repeat("abcdefghij ", 10))
	if len(long) > MaxSlugLength || strings.HasSuffix(long, "-") {
		t.Fatalf("long slug not truncated cleanly: %q", long)
	}
	if !slugPattern.MatchString(long) {
		t.Fatalf("long slug has invalid format: %q", long)
	}
}

func TestSortTitleIgnoresCaseAccentsAndArticles(t *testing.T) {
	if SortTitle("The Élan Studio") != "elan studio" {
		t.Fatalf("unexpected sort key %q", SortTitle("The Élan Studio"))
	}
	if SortTitle("A") != "a" {
		t.Fatalf("single article must be kept, got %q", SortTitle("A"))
	}
}

func TestSplitCollaboratorLabel(t *testing.T) {
	tests := []struct {
		label        string
		name         string
		organization string
	}{
		{"Ana Costa — Studio Norte", "Ana Costa", "Studio Norte"},
		{"Ana Costa - Studio Norte", "Ana Costa", "Studio Norte"},
		{"Ana Costa–Studio Norte", "Ana Costa", "Studio Norte"},
		{"Jean-Luc Martin", "Jean-Luc Martin", ""},
	}
	for _, test := range tests {
		name, organization := splitCollaboratorLabel(test.label)
		if name != test.name || organization != test.organization {
			t.Fatalf("split %q = (%q, %q)", test.label, name, organization)
		}
	}
	if collaboratorIdentity("Ana Costa", "Studio Norte") != "ana-costa|studio-norte" {
		t.Fatalf("unexpected identity key %q", collaboratorIdentity("Ana Costa", "Studio Norte"))
	}
}

func TestSlugDerivesFrom(t *testing.T) {
	if !slugDerivesFrom("forest-cabin", "forest-cabin") || !slugDerivesFrom("forest-cabin-12", "forest-cabin") {
		t.Fatalf("expected base and suffixed variants to match")
	}
	if slugDerivesFrom("forest-cabin-copy", "forest-cabin") || slugDerivesFrom("forest", "forest-cabin") {
		t.Fatalf("unrelated slugs must not match")
	}
}

func TestSearchTokensAreFoldedAndUnique(t *testing.T) {
	tokens := searchTokens("Café Müller", "café, a café")
	if strings.Join(tokens, " ") != "cafe muller" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}
