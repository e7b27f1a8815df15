// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

// Synonyms lists words treated as equivalent when comparing field names.
// The relation is not required to be symmetric.
var Synonyms = map[string][]string{
	"client":      {"customer", "account", "company"},
	"customer":    {"client", "account", "company"},
	"location":    {"site", "place", "address"},
	"site":        {"location", "place"},
	"name":        {"title", "label"},
	"description": {"desc", "summary", "details"},
	"amount":      {"total", "sum", "value", "price", "cost"},
	"price":       {"cost", "amount", "rate", "fee"},
	"cost":        {"price", "amount", "expense"},
	"quantity":    {"qty", "count", "number"},
	"qty":         {"quantity", "count", "number"},
	"address":     {"location", "street"},
	"phone":       {"telephone", "tel", "mobile"},
	"email":       {"mail"},
	"date":        {"datetime", "timestamp"},
	"id":          {"identifier", "key"},
	"user":        {"person", "contact", "member"},
	"item":        {"product", "line", "entry"},
	"task":        {"job", "work", "activity"},
}

func isSynonym(w1, w2 string) bool {
	for _, s := range Synonyms[w1] {
		if s == w2 {
			return true
		}
	}
	return false
}

// synonymScore averages word scores (1 per exact word, 0.85 per synonym)
// over the longer word list. It returns 0 unless at least one synonym
// matched.
func synonymScore(n1, n2 string) float64 {
	words1 := SplitWords(n1)
	words2 := SplitWords(n2)

	used := make(map[string]bool)
	exact, synonyms := 0, 0
	for _, w1 := range words1 {
		if contains(words2, w1) && !used[w1] {
			exact++
			used[w1] = true
			continue
		}
		for _, w2 := range words2 {
			if !used[w2] && isSynonym(w1, w2) {
				synonyms++
				used[w2] = true
				break
			}
		}
	}
	if synonyms == 0 {
		return 0
	}
	total := max(len(words1), len(words2))
	return (float64(exact) + 0.85*float64(synonyms)) / float64(total)
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
