package extract

import "testing"

func TestExtractEntitiesDeterministic(t *testing.T) {
	in := Plain("Decided to use Postgres over MySQL for ACID guarantees")
	a := ExtractEntities(in)
	b := ExtractEntities(in)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic at %d: %q vs %q", i, a[i], b[i])
		}
	}
	if len(a) > maxEntities {
		t.Fatalf("entities exceed max: %d", len(a))
	}
	for _, e := range a {
		if e != lower(e) {
			t.Errorf("entity not lowercased: %q", e)
		}
		if stopWords[e] {
			t.Errorf("stop word leaked into entities: %q", e)
		}
	}
}

func lower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 32
		}
	}
	return string(out)
}

func TestExtractEntitiesIncludesDomainWords(t *testing.T) {
	in := Plain("Decided to use Postgres over MySQL for ACID guarantees")
	entities := ExtractEntities(in)
	want := map[string]bool{"postgres": false, "mysql": false, "acid": false}
	for _, e := range entities {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for w, found := range want {
		if !found {
			t.Errorf("expected entity %q to be present, got %v", w, entities)
		}
	}
}

func TestExtractEntitiesDottedPrefix(t *testing.T) {
	entities := ExtractEntities(Structured(map[string]any{"topic": "pkg.store"}))
	if entities[0] != "pkg.store" {
		t.Fatalf("expected first entity pkg.store, got %v", entities)
	}
	found := false
	for _, e := range entities {
		if e == "pkg" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected dotted prefix 'pkg' to be contributed, got %v", entities)
	}
}

func TestClassifyStructuredTypeWins(t *testing.T) {
	got := Classify(Structured(map[string]any{"type": "custom-tag-that-is-too-long-to-fit"}))
	if len(got) != 20 {
		t.Fatalf("expected truncation to 20 chars, got %q (%d)", got, len(got))
	}
}

func TestClassifyStructuredContentFallsThroughToKeywords(t *testing.T) {
	// No "type" key: the structured content value feeds the keyword table,
	// same as plain text.
	got := Classify(Structured(map[string]any{
		"content":    "Decided to use Postgres over MySQL for ACID guarantees",
		"importance": 5.0,
		"project":    "eva",
	}))
	if got != "decision" {
		t.Fatalf("Classify(structured content) = %q, want decision", got)
	}
	if got := Classify(Structured(map[string]any{"text": "I prefer dark mode"})); got != "preference" {
		t.Fatalf("Classify(structured text) = %q, want preference", got)
	}
}

func TestClassifyKeywordTable(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"We decided to go with Postgres", "decision"},
		{"Always use tabs, never spaces", "instruction"},
		{"I prefer dark mode", "preference"},
		{"I learned that bbolt uses mmap", "learning"},
		{"TODO: wire up the queue", "task"},
		{"Curious about broker latency under load", "question"},
		{"Note: the build is flaky on arm64", "note"},
		{"Finished the migration, milestone achieved", "progress"},
		{"The sky is blue today", "info"},
	}
	for _, c := range cases {
		if got := Classify(Plain(c.text)); got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := Summarize(string(long))
	if len(got) != 200 {
		t.Fatalf("expected 200 chars, got %d", len(got))
	}
	short := "hello"
	if Summarize(short) != short {
		t.Fatalf("expected short content unchanged")
	}
}
