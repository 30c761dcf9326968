package extract

import "regexp"

var (
	hashtagRe     = regexp.MustCompile(`#\w+`)
	quotedRe      = regexp.MustCompile(`"([^"]{1,80})"`)
	capitalizedRe = regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*){0,2})\b`)
)

type classifierRow struct {
	label    string
	keywords []string
}

// classifierTable is the ordered keyword table; first matching row wins.
var classifierTable = []classifierRow{
	{"instruction", []string{"always", "never", "rule", "instruction", "standing order", "must always", "must never", "guideline", "policy"}},
	{"decision", []string{"decided", "decision", "chose", "choice", "picked", "selected", "going with", "will use", "opted"}},
	{"preference", []string{"prefer", "preference", "favorite", "like best", "rather", "better to", "style"}},
	{"learning", []string{"learned", "learning", "studied", "studying", "understood", "realized", "discovered", "insight"}},
	{"task", []string{"todo", "task", "need to", "should", "must", "will do", "plan to", "going to", "next step"}},
	{"question", []string{"question", "wondering", "curious", "ask about", "find out", "research", "investigate"}},
	{"note", []string{"note", "noticed", "observed", "important", "remember that", "keep in mind"}},
	{"progress", []string{"completed", "finished", "done", "progress", "achieved", "accomplished", "milestone"}},
}

// stopWords filters ~100 function words out of mined entities, in the
// style of a fixed package-level tunable default rather than config.
var stopWords = func() map[string]bool {
	words := []string{
		"the", "a", "an", "and", "or", "but", "of", "to", "in", "on", "for",
		"at", "by", "with", "from", "into", "is", "it", "as", "be", "was",
		"are", "been", "that", "this", "these", "those", "has", "have", "had",
		"his", "her", "its", "their", "our", "your", "my", "i", "you", "he",
		"she", "we", "they", "them", "us", "me", "him", "so", "if", "then",
		"than", "not", "no", "yes", "do", "does", "did", "done", "can",
		"could", "will", "would", "shall", "should", "may", "might", "must",
		"about", "above", "after", "again", "against", "all", "am", "any",
		"because", "before", "below", "between", "both", "during", "each",
		"few", "further", "here", "how", "itself", "just", "more", "most",
		"once", "only", "other", "out", "over", "own", "same", "some",
		"such", "there", "through", "too", "under", "until", "up", "very",
		"what", "when", "where", "which", "while", "who", "whom", "why",
		"mr", "mrs", "ms", "dr", "prof", "etc", "eg", "ie",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
