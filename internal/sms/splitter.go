// Package sms turns raw carrier SMS text into structured transactions.
// Splitting and extraction are pure functions of the text.
package sms

import (
	"regexp"
	"strings"
)

// Segment is a slice of a raw message believed to describe exactly one
// transaction, plus its byte offset in the original text.
type Segment struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// minSegmentLen is the shortest fragment worth parsing.
const minSegmentLen = 15

// openerPattern matches text that looks like the start of a new
// transaction notification. Matches are used as split points with the
// opener kept on the following segment.
var openerPattern = regexp.MustCompile(`(?i)(your payment|new balance|cash out|payment for|confirmed\. ghs|\d{13}\s*confirmed)`)

// sentencePattern matches a sentence boundary followed by a capitalized
// word. Only honored when the remainder still looks transactional, so
// ordinary prose is not broken apart.
var sentencePattern = regexp.MustCompile(`\.\s+[A-Z][a-z]`)

// transactionalHint decides whether a remainder justifies a sentence
// split: it must still carry a currency marker or a money keyword.
var transactionalHint = regexp.MustCompile(`(?i)(₵|GHS|payment|Cash|Financial|Confirmed)`)

// Split divides a raw message into candidate transaction segments.
// Multi-transaction messages yield multiple segments; messages with no
// qualifying content yield none.
func Split(raw string) []Segment {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	pieces := splitAtOpeners(Segment{Text: raw, Offset: 0})

	var refined []Segment
	for _, p := range pieces {
		refined = append(refined, splitAtSentences(p)...)
	}

	var segments []Segment
	for _, p := range refined {
		text := strings.TrimSpace(p.Text)
		if len(text) < minSegmentLen {
			continue
		}
		if !hasCurrencyMarker(text) {
			continue
		}
		offset := p.Offset + strings.Index(p.Text, text)
		segments = append(segments, Segment{Text: text, Offset: offset})
	}
	return segments
}

// splitAtOpeners cuts the segment at every opener occurrence past the
// start, keeping the opener with the segment it introduces.
func splitAtOpeners(seg Segment) []Segment {
	matches := openerPattern.FindAllStringIndex(seg.Text, -1)
	if len(matches) == 0 {
		return []Segment{seg}
	}

	var cuts []int
	for _, m := range matches {
		if m[0] > 0 {
			cuts = append(cuts, m[0])
		}
	}
	return cutAt(seg, cuts)
}

// splitAtSentences cuts at sentence boundaries whose remainder still
// contains transactional content.
func splitAtSentences(seg Segment) []Segment {
	matches := sentencePattern.FindAllStringIndex(seg.Text, -1)
	if len(matches) == 0 {
		return []Segment{seg}
	}

	var cuts []int
	for _, m := range matches {
		// Cut after the period and whitespace, at the capitalized word.
		cut := m[1] - 2
		if cut <= 0 {
			continue
		}
		if transactionalHint.MatchString(seg.Text[cut:]) {
			cuts = append(cuts, cut)
		}
	}
	return cutAt(seg, cuts)
}

// cutAt slices a segment at the given ascending cut positions.
func cutAt(seg Segment, cuts []int) []Segment {
	if len(cuts) == 0 {
		return []Segment{seg}
	}

	var out []Segment
	prev := 0
	for _, cut := range cuts {
		if cut <= prev || cut >= len(seg.Text) {
			continue
		}
		out = append(out, Segment{Text: seg.Text[prev:cut], Offset: seg.Offset + prev})
		prev = cut
	}
	out = append(out, Segment{Text: seg.Text[prev:], Offset: seg.Offset + prev})
	return out
}

func hasCurrencyMarker(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "GHS") || strings.Contains(text, "₵")
}
