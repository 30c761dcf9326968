// Package extract derives entities, a type classification, and a summary
// from raw memory content. It is pure: identical input always produces
// identical output.
package extract

import (
	"sort"
	"strings"
	"unicode"
)

// Input is the union the extractor accepts: either free text, or a
// structured mapping carrying well-known keys (topic, tags, type, ...).
// Callers construct one of the two constructors below.
type Input struct {
	text       string
	structured map[string]any
}

// Plain wraps free text input.
func Plain(text string) Input { return Input{text: text} }

// Structured wraps a key/value input, e.g. decoded from a JSON object.
func Structured(m map[string]any) Input { return Input{structured: m} }

// priorityKeys are structured-input keys whose scalar string value is
// promoted ahead of mined entities.
var priorityKeys = []string{
	"topic", "about", "subject", "name", "title", "category", "area",
	"domain", "field", "concept", "item", "what", "learning", "studying",
	"project", "goal", "target",
}

// priorityListKeys are structured-input keys whose list value contributes
// each element as a priority entity.
var priorityListKeys = []string{
	"topics", "tags", "categories", "items", "subjects", "areas",
}

const maxEntities = 15

// ExtractEntities returns an ordered, deduplicated, lowercased, stop-worded
// list of at most 15 entities: priority entities (from structured input)
// first, then generic entities mined from the text.
func ExtractEntities(in Input) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if stopWords[s] {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if dot := strings.IndexByte(s, '.'); dot > 0 {
			prefix := s[:dot]
			if prefix != "" && !stopWords[prefix] {
				if _, ok := seen[prefix]; !ok {
					seen[prefix] = struct{}{}
					out = append(out, prefix)
				}
			}
		}
	}

	text := in.text
	if in.structured != nil {
		for _, key := range priorityKeys {
			if v, ok := in.structured[key]; ok {
				if s, ok := v.(string); ok {
					add(s)
				}
			}
		}
		for _, key := range priorityListKeys {
			if v, ok := in.structured[key]; ok {
				switch vv := v.(type) {
				case []string:
					for _, s := range vv {
						add(s)
					}
				case []any:
					for _, e := range vv {
						if s, ok := e.(string); ok {
							add(s)
						}
					}
				}
			}
		}
		if t, ok := in.structured["content"].(string); ok {
			text = t
		} else if t, ok := in.structured["text"].(string); ok {
			text = t
		}
	}

	generic := mineGeneric(text)
	for _, g := range generic {
		add(g)
		if len(out) >= maxEntities {
			break
		}
	}

	if len(out) > maxEntities {
		out = out[:maxEntities]
	}
	return out
}

type generic struct {
	text  string
	words int
}

// mineGeneric finds hashtags, quoted phrases (<=4 words), capitalized
// 1-3 word phrases, individual words (len 3..20) and bigrams, then sorts
// by (word count asc, length asc) so short, specific entities surface
// before long, generic ones.
func mineGeneric(text string) []string {
	var cands []generic

	for _, h := range hashtagRe.FindAllString(text, -1) {
		cands = append(cands, generic{text: strings.TrimPrefix(h, "#"), words: 1})
	}
	for _, q := range quotedRe.FindAllStringSubmatch(text, -1) {
		phrase := q[1]
		wc := len(strings.Fields(phrase))
		if wc >= 1 && wc <= 4 {
			cands = append(cands, generic{text: phrase, words: wc})
		}
	}
	for _, c := range capitalizedRe.FindAllString(text, -1) {
		wc := len(strings.Fields(c))
		if wc >= 1 && wc <= 3 {
			cands = append(cands, generic{text: c, words: wc})
		}
	}

	words := tokenize(text)
	for _, w := range words {
		if len(w) >= 3 && len(w) <= 20 {
			cands = append(cands, generic{text: w, words: 1})
		}
	}
	for i := 0; i+1 < len(words); i++ {
		bg := words[i] + " " + words[i+1]
		cands = append(cands, generic{text: bg, words: 2})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].words != cands[j].words {
			return cands[i].words < cands[j].words
		}
		return len(cands[i].text) < len(cands[j].text)
	})

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.text
	}
	return out
}

// tokenize splits on non-letter/digit runes, mirroring the canonicalization
// style used for text mining elsewhere in the codebase: fold case, keep
// letters/digits, split on everything else.
func tokenize(s string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return words
}

// Classify returns a type string. A structured "type" field wins outright
// (first 20 chars); otherwise the textual form (plain text, or a
// structured input's content/text value) is matched against an ordered
// keyword table, first match wins, default "info".
func Classify(in Input) string {
	text := in.text
	if in.structured != nil {
		if t, ok := in.structured["type"].(string); ok && t != "" {
			if len(t) > 20 {
				return t[:20]
			}
			return t
		}
		if t, ok := in.structured["content"].(string); ok {
			text = t
		} else if t, ok := in.structured["text"].(string); ok {
			text = t
		}
	}
	text = strings.ToLower(text)
	for _, row := range classifierTable {
		for _, kw := range row.keywords {
			if strings.Contains(text, kw) {
				return row.label
			}
		}
	}
	return "info"
}

// Summarize returns a <=200 char summary: the content prefix.
func Summarize(content string) string {
	if len(content) <= 200 {
		return content
	}
	return content[:200]
}
