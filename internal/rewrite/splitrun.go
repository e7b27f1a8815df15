// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"html"
	"regexp"
	"strings"

	"github.com/pdiddy/template-converter/internal/fields"
)

// textNodeRe matches w:t elements and paragraph ends. It does not match
// w:tab, w:tbl or w:tc.
var textNodeRe = regexp.MustCompile(`<w:t(?:\s[^>]*)?>[^<]*</w:t>|</w:p>`)

// textNode is one w:t element; content offsets are absolute.
type textNode struct {
	start, end int
	content    string
}

type edit struct {
	start, end int
	text       string
}

// splitRunEdits finds MERGEFIELD instructions typed into display text,
// including ones whose keyword Word split across adjacent text runs.
// Runs are chained per paragraph; a chain never crosses a paragraph end
// or a scanned field, and text inside a scanned field is not read. A
// resolved match is rewritten inside the text nodes it touches, so
// surrounding runs and their formatting stay intact. resolveBefore is
// called with each match position before the match is resolved.
func (e *Engine) splitRunEdits(markup string, spans []fields.Span, r *run, resolveBefore func(pos int)) []edit {
	var edits []edit
	var chain []textNode

	flush := func() {
		edits = append(edits, e.rewriteChain(chain, r, resolveBefore)...)
		chain = chain[:0]
	}
	j := 0
	for _, loc := range textNodeRe.FindAllStringIndex(markup, -1) {
		if j < len(spans) && spans[j].End <= loc[0] {
			flush()
			for j < len(spans) && spans[j].End <= loc[0] {
				j++
			}
		}
		if j < len(spans) && spans[j].Start <= loc[0] {
			continue
		}
		tok := markup[loc[0]:loc[1]]
		if tok == "</w:p>" {
			flush()
			continue
		}
		open := strings.IndexByte(tok, '>')
		chain = append(chain, textNode{
			start:   loc[0],
			end:     loc[1],
			content: tok[open+1 : len(tok)-len("</w:t>")],
		})
	}
	flush()
	return edits
}

// rewriteChain resolves every split field in one paragraph's text nodes and
// returns the node replacements, in document order.
func (e *Engine) rewriteChain(chain []textNode, r *run, resolveBefore func(pos int)) []edit {
	if len(chain) == 0 {
		return nil
	}
	contents := make([]string, len(chain))
	for i, n := range chain {
		contents[i] = n.content
	}
	changed := make([]bool, len(chain))

	from := 0
	for {
		joined := strings.Join(contents, "")
		m, ok := matchSplitField(joined, from, e.cfg.SplitRunWindow)
		if !ok {
			break
		}
		resolveBefore(chain[nodeAt(contents, m.start)].start)
		name := html.UnescapeString(m.name)
		tag, resolved := r.resolver.Resolve(name)
		if !resolved {
			r.unresolved(name, joined[m.start:m.end])
			from = m.start + 1
			continue
		}
		replacement := escapeText(tag)
		spliceNodes(contents, changed, m.start, m.end, replacement)
		r.converted(name, tag, StrategySplitRun)
		from = m.start + len(replacement)
	}

	var edits []edit
	for i, n := range chain {
		if changed[i] {
			edits = append(edits, edit{
				start: n.start,
				end:   n.end,
				text:  `<w:t xml:space="preserve">` + contents[i] + `</w:t>`,
			})
		}
	}
	return edits
}

// nodeAt returns the index of the node holding joined offset pos.
func nodeAt(contents []string, pos int) int {
	offset := 0
	for i, c := range contents {
		offset += len(c)
		if pos < offset {
			return i
		}
	}
	return len(contents) - 1
}

// spliceNodes replaces the joined range [start,end) with text. The text
// goes into the node holding start; the rest of the range is cut from the
// nodes it covers.
func spliceNodes(contents []string, changed []bool, start, end int, text string) {
	offset := 0
	placed := false
	for i, c := range contents {
		nodeStart, nodeEnd := offset, offset+len(c)
		offset = nodeEnd
		if nodeEnd <= start || nodeStart >= end {
			continue
		}
		lo := max(start, nodeStart) - nodeStart
		hi := min(end, nodeEnd) - nodeStart
		if !placed {
			contents[i] = c[:lo] + text + c[hi:]
			placed = true
		} else {
			contents[i] = c[:lo] + c[hi:]
		}
		changed[i] = true
	}
}

// splitMatch is a MERGEFIELD instruction found in joined display text.
type splitMatch struct {
	start, end int
	name       string
}

type splitState int

const (
	stateKeywordHead splitState = iota // reading "MERGE"
	stateGap                           // up to window characters before "FIELD"
	stateSpace                         // whitespace after "FIELD"
	stateName                          // field name
)

// matchSplitField runs a small state machine over joined text starting at
// from. It accepts "MERGE", at most window characters, "FIELD", at least
// one space, then a name ended by whitespace, a backslash or the end of
// the paragraph. The window keeps a stray "MERGE" from pairing with a
// distant "FIELD".
func matchSplitField(s string, from, window int) (splitMatch, bool) {
	for start := indexFold(s, "merge", from); start >= 0; start = indexFold(s, "merge", start+1) {
		state := stateKeywordHead
		i := start + len("merge")
		gap := 0
		nameStart := -1
	scan:
		for i <= len(s) {
			switch state {
			case stateKeywordHead:
				state = stateGap
			case stateGap:
				if hasPrefixFold(s[i:], "field") {
					i += len("field")
					state = stateSpace
					continue
				}
				if i >= len(s) || gap >= window {
					break scan
				}
				gap++
				i++
			case stateSpace:
				if i < len(s) && isSpace(s[i]) {
					i++
					continue
				}
				if i == start+len("merge")+gap+len("field") {
					break scan
				}
				nameStart = i
				state = stateName
			case stateName:
				if i < len(s) && !isSpace(s[i]) && s[i] != '\\' {
					i++
					continue
				}
				if i > nameStart {
					return splitMatch{start: start, end: i, name: s[nameStart:i]}, true
				}
				break scan
			}
		}
	}
	return splitMatch{}, false
}

func indexFold(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if hasPrefixFold(s[i:], sub) {
			return i
		}
	}
	return -1
}

// hasPrefixFold compares ASCII letters case-insensitively; sub must be
// lower case.
func hasPrefixFold(s, sub string) bool {
	if len(s) < len(sub) {
		return false
	}
	for i := 0; i < len(sub); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != sub[i] {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
