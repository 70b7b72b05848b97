package catalog

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const fuzzyThreshold = 0.8

// queryVariants expands a query word with its probable Russian singular
// forms so plural queries still match catalog names: "фикусы" matches
// "фикус", "монстеры" matches "монстера".
func queryVariants(word string) []string {
	variants := []string{word}
	runes := []rune(word)
	n := len(runes)
	if n < 4 {
		return variants
	}

	switch runes[n-1] {
	case 'ы', 'и':
		stem := string(runes[:n-1])
		variants = append(variants, stem, stem+"а", stem+"я")
		if n >= 5 && runes[n-2] == 'и' {
			variants = append(variants, string(runes[:n-2])+"ия")
		}
		if runes[n-2] == 'с' {
			variants = append(variants, string(runes[:n-1]))
		}
	case 'я':
		stem := string(runes[:n-1])
		variants = append(variants, stem, stem+"о")
	}
	return variants
}

// wordMatches reports whether any variant of a query word occurs in the
// text, either as a substring or within edit distance of one of its
// words.
func wordMatches(word, text string) bool {
	for _, variant := range queryVariants(word) {
		if strings.Contains(text, variant) {
			return true
		}
		for _, textWord := range strings.Fields(text) {
			if similarity(variant, textWord) >= fuzzyThreshold {
				return true
			}
		}
	}
	return false
}

// similarity is 1 minus the normalized Levenshtein distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// SearchByName finds plants whose name or description contains the query.
// Exact substring hits win; otherwise every significant query word must
// match fuzzily.
func (c *Catalog) SearchByName(query string) []Plant {
	query = strings.ToLower(strings.TrimSpace(punctPattern.ReplaceAllString(query, " ")))
	query = spacePattern.ReplaceAllString(query, " ")
	if query == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var exact []Plant
	for _, p := range c.plants {
		if strings.Contains(p.searchText(), query) {
			exact = append(exact, p)
		}
	}
	if len(exact) > 0 {
		log.Info("Name search %q: %d exact matches", query, len(exact))
		return exact
	}

	var words []string
	for _, w := range strings.Fields(query) {
		if utf8.RuneCountInString(w) >= 3 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil
	}

	var fuzzy []Plant
	for _, p := range c.plants {
		text := p.searchText()
		all := true
		for _, w := range words {
			if !wordMatches(w, text) {
				all = false
				break
			}
		}
		if all {
			fuzzy = append(fuzzy, p)
		}
	}

	// In-stock positions first, then by name for stable output.
	sort.SliceStable(fuzzy, func(i, j int) bool {
		if (fuzzy[i].Stock >= 1) != (fuzzy[j].Stock >= 1) {
			return fuzzy[i].Stock >= 1
		}
		return fuzzy[i].Name < fuzzy[j].Name
	})
	log.Info("Name search %q: %d fuzzy matches", query, len(fuzzy))
	return fuzzy
}
