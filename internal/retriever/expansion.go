package retriever

import "regexp"

// Expansion holds candidate symbols, file paths, and module names pulled
// out of a raw query, used as retrieval hints (adaptive k, scope
// narrowing) and as the §4.9 step 8 query-expansion boost signal.
type Expansion struct {
	Symbols []string
	Paths   []string
	Modules []string
}

var (
	quotedRe    = regexp.MustCompile(`"([^"]+)"|` + "`([^`]+)`")
	camelCaseRe = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+\b`)
	snakeCaseRe = regexp.MustCompile(`\b[a-z]+(?:_[a-z0-9]+)+\b`)
	dottedPathRe = regexp.MustCompile(`\b[a-zA-Z_][\w]*(?:[./][a-zA-Z_][\w]*)+\b`)
)

// Expand extracts symbol/path/module candidates from a query string.
func Expand(query string) Expansion {
	var e Expansion
	seen := map[string]struct{}{}
	add := func(dst *[]string, s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		*dst = append(*dst, s)
	}

	for _, m := range quotedRe.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			add(&e.Symbols, m[1])
		} else if m[2] != "" {
			add(&e.Symbols, m[2])
		}
	}
	for _, m := range camelCaseRe.FindAllString(query, -1) {
		add(&e.Symbols, m)
	}
	for _, m := range snakeCaseRe.FindAllString(query, -1) {
		add(&e.Symbols, m)
	}
	for _, m := range dottedPathRe.FindAllString(query, -1) {
		if containsRune(m, '/') {
			add(&e.Paths, m)
		} else {
			add(&e.Modules, m)
		}
	}
	return e
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
