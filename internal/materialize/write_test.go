package materialize

import "testing"

func TestYamlStringQuotesSpecialValues(t *testing.T) {
	cases := map[string]string{
		"":            `""`,
		"plain":       "plain",
		" leading":    `" leading"`,
		"has: colon":  `"has: colon"`,
		"true":        `"true"`,
		"42":          `"42"`,
		`quote"inner`: `"quote\"inner"`,
	}
	for input, want := range cases {
		if got := yamlString(input); got != want {
			t.Errorf("yamlString(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestWriteYAMLFieldOrder(t *testing.T) {
	contents := []string{"[A](/a.md)"}
	fm := FrontMatter{
		Title:       "T",
		PartOf:      "[P](/p.md)",
		Contents:    &contents,
		Audience:    []string{"public"},
		Description: "desc",
		Updated:     1700000000000,
		Extra:       map[string]any{"z_key": "z", "a_key": "a"},
	}
	out := WriteYAML(fm)

	order := []string{"title:", "part_of:", "contents:", "audience:", "description:", "updated:", "a_key:", "z_key:"}
	lastIdx := -1
	for _, marker := range order {
		idx := indexOf(out, marker)
		if idx == -1 {
			t.Fatalf("expected marker %q in output:\n%s", marker, out)
		}
		if idx < lastIdx {
			t.Fatalf("marker %q out of order in output:\n%s", marker, out)
		}
		lastIdx = idx
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestAssembleEmptyFrontMatterOmitsDelimiters(t *testing.T) {
	out := Assemble(FrontMatter{}, "just body\n")
	if out != "just body\n" {
		t.Errorf("expected bare body, got %q", out)
	}
}
