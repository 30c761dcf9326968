package store

import "strings"

// reservedMetachars are the fulltext query-engine metacharacters that must
// be escaped before a raw, caller-supplied query string reaches bleve.
const reservedMetachars = `+-&|!(){}[]^"~*?:\/`

// EscapeQuery escapes reserved metacharacters in a raw query string. Used
// centrally by every fulltext call site; callers never escape their own
// input.
func EscapeQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q) * 2)
	for _, r := range q {
		if strings.ContainsRune(reservedMetachars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
