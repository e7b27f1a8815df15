// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"html"
	"regexp"
	"strings"
)

// markerRe matches source-dialect control markers. A bare ":end" is not
// included: "w:end" is a legitimate WordprocessingML attribute.
var markerRe = regexp.MustCompile(`:each\([^)]*\)|:endEach\b|:endIf\b|:if(?:\([^)]*\)|\b)|:else\b`)

var (
	instrAttrRe    = regexp.MustCompile(`(w:instr=")([^"]*)(")`)
	instrTextRe    = regexp.MustCompile(`(<w:instrText\b[^>]*>)([^<]*)(</w:instrText>)`)
	textElementRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	standaloneRe   = regexp.MustCompile(`^\s*(?:«|&#171;)?[\w.?]*(?:` + markerRe.String() + `)(?:»|&#187;)?\s*$`)
	mergeKeywordRe = regexp.MustCompile(`(?i)MERGEFIELD`)
)

// Cleanup strips control markers the first two passes did not consume:
// from w:instr attributes of merge fields, from instrText runs, and text
// nodes that hold nothing but a marker. Running it on its own output is a
// no-op.
func Cleanup(markup string) string {
	markup = instrAttrRe.ReplaceAllStringFunc(markup, func(m string) string {
		sub := instrAttrRe.FindStringSubmatch(m)
		if !mergeKeywordRe.MatchString(sub[2]) {
			return m
		}
		return sub[1] + markerRe.ReplaceAllString(sub[2], "") + sub[3]
	})

	markup = instrTextRe.ReplaceAllStringFunc(markup, func(m string) string {
		sub := instrTextRe.FindStringSubmatch(m)
		return sub[1] + markerRe.ReplaceAllString(sub[2], "") + sub[3]
	})

	return textElementRe.ReplaceAllStringFunc(markup, func(m string) string {
		sub := textElementRe.FindStringSubmatch(m)
		if standaloneRe.MatchString(sub[1]) {
			return ""
		}
		return m
	})
}

// ResidualMarkers returns the control markers left in field instructions
// and display text, grouped in that order. A converted template must have
// none.
func ResidualMarkers(markup string) []string {
	var out []string
	collect := func(re *regexp.Regexp, group int) {
		for _, sub := range re.FindAllStringSubmatch(markup, -1) {
			out = append(out, markerRe.FindAllString(html.UnescapeString(sub[group]), -1)...)
		}
	}
	collect(instrAttrRe, 2)
	collect(instrTextRe, 2)
	collect(textElementRe, 1)
	return out
}

// VisibleText concatenates the content of every w:t element, unescaped.
func VisibleText(markup string) string {
	var b strings.Builder
	for _, sub := range textElementRe.FindAllStringSubmatch(markup, -1) {
		b.WriteString(html.UnescapeString(sub[1]))
	}
	return b.String()
}
