package profile

import "testing"

func TestSearchableText(t *testing.T) {
	p := Profile{
		Name:            "Meera Devi",
		Craft:           "Handloom Weaving",
		Skills:          []string{"Ikat"},
		Materials:       []string{"Cotton"},
		Specializations: []string{"Scarves"},
	}
	want := "meera devi handloom weaving ikat cotton scarves"
	if got := p.SearchableText(); got != want {
		t.Errorf("SearchableText() = %q, want %q", got, want)
	}
}

func TestSearchableText_Empty(t *testing.T) {
	if got := (Profile{}).SearchableText(); got != "" {
		t.Errorf("SearchableText() = %q, want empty", got)
	}
}

func TestDeclared(t *testing.T) {
	p := Profile{
		Skills:          []string{"a"},
		Materials:       []string{"b"},
		Techniques:      []string{"c"},
		Specializations: []string{"ignored"},
	}
	got := p.Declared()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Declared() = %v", got)
	}
}
