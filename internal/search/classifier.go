// Package search provides semantic code search functionality.
package search

import (
	"regexp"
	"strings"

	"github.com/codeintel/codeindex/internal/retriever"
)

// QueryType represents the type of search query.
type QueryType string

const (
	QueryTypeSymbol       QueryType = "symbol"
	QueryTypeConcept      QueryType = "concept"
	QueryTypeRelationship QueryType = "relationship"
	QueryTypeFlow         QueryType = "flow"
	QueryTypePattern      QueryType = "pattern"
)

// Classifier determines the type of a search query. Relationship and
// Pattern have no equivalent in retriever.Intent (that package only scores
// symbol/flow/concept/code/balanced), so those two stay locally detected;
// Symbol and Flow detection defer to retriever.Classifier's dominant
// intent as well as this package's own word lists, so a query either
// source recognizes is classified, rather than forking two independent
// judgments of the same signal.
type Classifier struct {
	intent            *retriever.Classifier
	quotedTermRe      *regexp.Regexp
	identifierRe      *regexp.Regexp
	relationshipWords []string
	flowWords         []string
	patternWords      []string
	patternRegexes    []*regexp.Regexp
}

// NewClassifier creates a new query classifier.
func NewClassifier() *Classifier {
	c := &Classifier{
		intent:       retriever.NewClassifier(),
		quotedTermRe: regexp.MustCompile(`"[^"]+"` + "|`[^`]+`"),
		identifierRe: regexp.MustCompile(
			`\b(get|set|is|has|find|handle|create|delete|update|validate|check|process)[A-Z][a-zA-Z]*\b|` + // camelCase methods
				`\b[a-z]+(_[a-z]+)+\b|` + // snake_case
				`\b[A-Z][a-z]+([A-Z][a-z]+)+\b`), // PascalCase
		relationshipWords: []string{
			"calls", "call", "calling",
			"uses", "use", "using",
			"imports", "import", "importing",
			"depends", "dependency", "dependencies",
			"references", "reference", "referencing",
			"invokes", "invoke", "invoking",
		},
		flowWords: []string{
			"flow", "flows",
			"path from", "path to",
			"get to", "gets to",
			"route", "routing",
			"pipeline",
			"chain",
		},
		patternWords: []string{
			"pattern", "patterns",
			"typical", "typically",
			"standard", "convention",
			"structure of",
			"example of",
		},
	}

	c.patternRegexes = []*regexp.Regexp{
		regexp.MustCompile(`how do .* work`),
		regexp.MustCompile(`how does .* work`),
	}

	return c
}

// Classify determines the query type.
func (c *Classifier) Classify(query string) QueryType {
	lower := strings.ToLower(query)
	scores := c.intent.Classify(query)
	dominant, _ := scores.Dominant()

	// Quoted terms are an explicit symbol lookup, highest priority.
	if c.quotedTermRe.MatchString(query) {
		return QueryTypeSymbol
	}

	for _, re := range c.patternRegexes {
		if re.MatchString(lower) {
			return QueryTypePattern
		}
	}
	for _, word := range c.patternWords {
		if strings.Contains(lower, word) {
			return QueryTypePattern
		}
	}

	// Relationship queries (calls/uses/imports/references) have no
	// retriever.Intent equivalent; retriever's Flow intent is narrower
	// (call-chain/pipeline language only), so this stays a local check.
	for _, word := range c.relationshipWords {
		if containsWord(lower, word) {
			return QueryTypeRelationship
		}
	}

	if dominant == retriever.IntentFlow {
		return QueryTypeFlow
	}
	for _, word := range c.flowWords {
		if strings.Contains(lower, word) {
			return QueryTypeFlow
		}
	}

	if dominant == retriever.IntentSymbol || c.identifierRe.MatchString(query) {
		return QueryTypeSymbol
	}

	return QueryTypeConcept
}

// containsWord checks if the text contains the word as a separate word.
func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	if idx == -1 {
		return false
	}

	if idx > 0 {
		prev := text[idx-1]
		if prev != ' ' && prev != '\t' && prev != '\n' && prev != ',' && prev != '.' {
			return false
		}
	}

	end := idx + len(word)
	if end < len(text) {
		next := text[end]
		if next != ' ' && next != '\t' && next != '\n' && next != ',' && next != '.' && next != 's' {
			return false
		}
	}

	return true
}

// Route returns the retrieval strategy for a query type.
func (c *Classifier) Route(qt QueryType) RetrievalStrategy {
	switch qt {
	case QueryTypeSymbol:
		return RetrievalStrategy{
			UseSemanticSearch: false,
			UseSymbolIndex:    true,
			UseGraphExpansion: false,
			MaxResults:        10,
		}
	case QueryTypeRelationship:
		return RetrievalStrategy{
			UseSemanticSearch: false,
			UseSymbolIndex:    true,
			UseGraphExpansion: true,
			GraphDepth:        1,
			MaxResults:        20,
		}
	case QueryTypeFlow:
		return RetrievalStrategy{
			UseSemanticSearch: true,
			UseSymbolIndex:    false,
			UseGraphExpansion: true,
			GraphDepth:        3,
			MaxResults:        15,
		}
	case QueryTypePattern:
		return RetrievalStrategy{
			UseSemanticSearch: false,
			UsePatternIndex:   true,
			UseGraphExpansion: false,
			MaxResults:        5,
		}
	default: // Concept
		return RetrievalStrategy{
			UseSemanticSearch: true,
			UseSymbolIndex:    false,
			UseGraphExpansion: true,
			GraphDepth:        1,
			MaxResults:        10,
		}
	}
}

// RetrievalStrategy defines how to execute a search.
type RetrievalStrategy struct {
	UseSemanticSearch bool
	UseSymbolIndex    bool
	UsePatternIndex   bool
	UseGraphExpansion bool
	GraphDepth        int
	MaxResults        int
}

// extractSymbolName extracts a symbol name from a query.
func extractSymbolName(query string) string {
	re := regexp.MustCompile(`"([^"]+)"`)
	if matches := re.FindStringSubmatch(query); len(matches) > 1 {
		return matches[1]
	}

	re = regexp.MustCompile("`([^`]+)`")
	if matches := re.FindStringSubmatch(query); len(matches) > 1 {
		return matches[1]
	}

	re = regexp.MustCompile(`\b(get|set|is|has|find|handle|create|delete|update|validate|check|process)[A-Z][a-zA-Z]*\b`)
	if match := re.FindString(query); match != "" {
		return match
	}

	re = regexp.MustCompile(`\b[A-Z][a-z]+([A-Z][a-z]+)+\b`)
	if match := re.FindString(query); match != "" {
		return match
	}

	re = regexp.MustCompile(`\b([a-z]+_[a-z_]+)\b`)
	if match := re.FindString(query); match != "" {
		return match
	}

	return ""
}
