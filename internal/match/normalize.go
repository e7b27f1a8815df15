// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"regexp"
	"strings"
)

var arrayIndexRe = regexp.MustCompile(`\[\d+\]`)

// NormalizeName drops array indices, lowercases, and removes "_" and "-".
func NormalizeName(name string) string {
	name = arrayIndexRe.ReplaceAllString(name, "")
	name = strings.ToLower(name)
	return strings.NewReplacer("_", "", "-", "").Replace(name)
}

// FieldName returns the last path segment with array indices removed.
func FieldName(path string) string {
	path = arrayIndexRe.ReplaceAllString(path, "")
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

// knownSuffixes are dictionary words recognised at the end of a compound
// identifier, checked in order.
var knownSuffixes = []string{
	"name", "id", "date", "time", "type", "code", "number", "count",
	"price", "cost", "amount", "total", "address", "phone", "email",
}

// SplitWords splits a normalized identifier into a singularized prefix and a
// known suffix ("clientname" -> ["client", "name"]). Identifiers without a
// known suffix come back as one singularized word.
func SplitWords(name string) []string {
	for _, suffix := range knownSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return []string{Singularize(name[:len(name)-len(suffix)]), suffix}
		}
	}
	if name == "" {
		return []string{name}
	}
	return []string{Singularize(name)}
}

var irregularPlurals = map[string]string{
	"addresses":  "address",
	"quantities": "quantity",
	"activities": "activity",
	"entries":    "entry",
}

// Singularize applies naive English plural rules.
func Singularize(word string) string {
	if len(word) <= 2 {
		return word
	}
	if s, ok := irregularPlurals[word]; ok {
		return s
	}
	if strings.HasSuffix(word, "ies") && len(word) > 3 {
		return word[:len(word)-3] + "y"
	}
	if strings.HasSuffix(word, "es") {
		base := word[:len(word)-2]
		for _, end := range []string{"s", "x", "z", "ch", "sh"} {
			if strings.HasSuffix(base, end) {
				return base
			}
		}
	}
	if strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		return word[:len(word)-1]
	}
	return word
}
