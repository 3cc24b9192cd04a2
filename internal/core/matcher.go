package core

// matcher.go proposes a column mapping for each file header.
//
// Assignment is greedy: headers are visited in file order and each one
// claims the best still-unused column. A later header that would have been
// a better fit for an already-claimed column is left unmapped.

import (
	"strings"

	"github.com/JonMunkholm/tabimport/internal/schema"
)

// MatchThreshold is the score a column must exceed to be auto-mapped.
const MatchThreshold = 0.6

// Token scoring weights.
const (
	exactTokenWeight    = 0.3
	partialTokenWeight  = 0.15
	synonymTokenWeight  = 0.25
	synonymPhraseScore  = 0.9
	exactHeaderMatchHit = 1.0
)

// SynonymGroups lists header vocabularies that mean the same thing.
// Multi-word entries are compared as whole phrases.
var SynonymGroups = [][]string{
	{"id", "identifier", "key", "uid", "uuid"},
	{"email", "mail", "e-mail", "email_address"},
	{"name", "full_name", "fullname", "display_name"},
	{"phone", "telephone", "tel", "mobile", "cell", "phone_number"},
	{"address", "street", "addr", "street_address"},
	{"date", "dt", "day"},
	{"created", "created_at", "creation", "added"},
	{"updated", "updated_at", "modified", "changed", "last_modified"},
	{"first", "firstname", "first_name", "given", "given_name", "forename"},
	{"last", "lastname", "last_name", "surname", "family", "family_name"},
	{"company", "company_name", "organization", "organisation", "org", "business", "employer"},
	{"status", "state"},
	{"type", "kind", "category"},
	{"amount", "total", "price", "value", "cost"},
	{"quantity", "qty", "count"},
}

// synonymIndex maps a normalized phrase to its group in SynonymGroups.
var synonymIndex = buildSynonymIndex(SynonymGroups)

func buildSynonymIndex(groups [][]string) map[string]int {
	idx := make(map[string]int)
	for g, words := range groups {
		for _, w := range words {
			idx[phrase(w)] = g
		}
	}
	return idx
}

// AutoMap returns one mapping per header, in header order. No two returned
// mappings share a column.
func AutoMap(headers []string, columns []schema.Column) []ColumnMapping {
	used := make([]bool, len(columns))
	mappings := make([]ColumnMapping, len(headers))

	for i, header := range headers {
		best := exactColumnMatch(header, columns, used)
		if best < 0 {
			best = bestColumnMatch(header, columns, used)
		}
		if best < 0 {
			mappings[i] = Unmapped(header)
			continue
		}
		used[best] = true
		mappings[i] = MapTo(header, columns[best].Name)
	}

	return mappings
}

// exactColumnMatch returns the first unused column whose name or display
// name equals header, ignoring case, or -1.
func exactColumnMatch(header string, columns []schema.Column, used []bool) int {
	h := strings.TrimSpace(header)
	for i, c := range columns {
		if used[i] {
			continue
		}
		if strings.EqualFold(h, c.Name) || strings.EqualFold(h, c.DisplayName) {
			return i
		}
	}
	return -1
}

// bestColumnMatch returns the unused column with the strictly highest score
// above MatchThreshold, or -1. Ties go to the earlier column.
func bestColumnMatch(header string, columns []schema.Column, used []bool) int {
	best, bestScore := -1, MatchThreshold
	for i, c := range columns {
		if used[i] {
			continue
		}
		if score := Similarity(header, c); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// Similarity scores how well header describes column, in [0, 1].
func Similarity(header string, column schema.Column) float64 {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return 0
	}
	if h == strings.ToLower(column.Name) || h == strings.ToLower(column.DisplayName) {
		return exactHeaderMatchHit
	}

	if synonymPhrase(header, column) {
		return synonymPhraseScore
	}

	headerTokens := tokenize(header)
	columnTokens := dedupe(append(tokenize(column.Name), tokenize(column.DisplayName)...))
	if len(headerTokens) == 0 || len(columnTokens) == 0 {
		return 0
	}

	var score float64
	for _, ht := range headerTokens {
		for _, ct := range columnTokens {
			switch {
			case ht == ct:
				score += exactTokenWeight
			case strings.Contains(ht, ct) || strings.Contains(ct, ht):
				score += partialTokenWeight
			}
		}
		if g, ok := synonymIndex[ht]; ok && groupContainsAny(g, columnTokens) {
			score += synonymTokenWeight
		}
	}

	score /= float64(max(len(headerTokens), len(columnTokens)))
	return min(max(score, 0), 1)
}

// synonymPhrase reports whether header and the column's name or display name
// are entries of the same synonym group and at least one of the pair spans
// several tokens. Single-word pairs such as "Key" and "id" are left to token
// scoring.
func synonymPhrase(header string, column schema.Column) bool {
	hp := phrase(header)
	g, ok := synonymIndex[hp]
	if !ok {
		return false
	}
	for _, p := range []string{phrase(column.Name), phrase(column.DisplayName)} {
		cg, ok := synonymIndex[p]
		if !ok || cg != g {
			continue
		}
		if strings.Contains(hp, "_") || strings.Contains(p, "_") {
			return true
		}
	}
	return false
}

func groupContainsAny(group int, tokens []string) bool {
	for _, t := range tokens {
		if g, ok := synonymIndex[t]; ok && g == group {
			return true
		}
	}
	return false
}

// tokenize lowercases s and splits it on whitespace, underscores and hyphens.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// phrase normalizes s to its tokens joined by underscores.
func phrase(s string) string {
	return strings.Join(tokenize(s), "_")
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
