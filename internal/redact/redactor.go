// Package redact masks personally-identifying substrings in communication
// text before it crosses the process boundary, while preserving the
// domain-relevant tokens detection depends on (property addresses, monetary
// amounts, listing ids).
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind identifies the category of a masked or preserved substring.
type Kind string

// Masked PII categories.
const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
	KindSSN   Kind = "ssn"
)

// Preserved domain categories. These are never masked.
const (
	KindAddress Kind = "address"
	KindMoney   Kind = "money"
	KindListing Kind = "listing"
)

// MaskedItem records one redaction performed during a sanitize call. The
// Original value is sensitive and must never be logged outside debug scope.
type MaskedItem struct {
	Kind     Kind
	Original string
	Masked   string
	Start    int
	End      int
}

// Result holds the sanitized text and the redactions that produced it.
type Result struct {
	Sanitized string
	Masked    []MaskedItem
}

type rule struct {
	re   *regexp.Regexp
	kind Kind
}

// Redactor applies masking rules with pre-compiled patterns. It is stateless
// and safe for concurrent use.
type Redactor struct {
	preserve []rule
	mask     []rule
}

// New creates a Redactor with the default rule set.
func New() *Redactor {
	return &Redactor{
		preserve: []rule{
			{kind: KindAddress, re: regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Za-z]+\s+){1,4}(?i:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Court|Ct|Way|Place|Pl|Circle|Cir|Terrace|Ter)\b`)},
			{kind: KindMoney, re: regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?`)},
			{kind: KindListing, re: regexp.MustCompile(`(?i)\bMLS[\s#:-]*[A-Z0-9]{4,12}\b`)},
		},
		mask: []rule{
			{kind: KindEmail, re: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
			{kind: KindSSN, re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{kind: KindPhone, re: regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)},
		},
	}
}

type span struct {
	start int
	end   int
}

// placeholder tokens use NUL delimiters so no masking pattern can match
// across or inside them.
func placeholderToken(i int) string {
	return fmt.Sprintf("\x00%d\x00", i)
}

// Sanitize masks PII in text while preserving domain-relevant substrings.
// Preservation markers are installed before any masking runs and restored
// only after masking completes, so a preserved substring cannot be caught by
// a later, broader masking pattern.
func (r *Redactor) Sanitize(text string) Result {
	// Phase 1: replace preserved spans with placeholders.
	preserved := r.findPreserved(text)

	var working strings.Builder
	working.Grow(len(text))
	originals := make([]string, len(preserved))
	// offsetAt maps a working-text offset back to the original text.
	type shift struct {
		workingPos int
		delta      int
	}
	var shifts []shift

	last := 0
	delta := 0
	for i, p := range preserved {
		working.WriteString(text[last:p.start])
		token := placeholderToken(i)
		originals[i] = text[p.start:p.end]
		workingPos := p.start - delta + len(token)
		delta += (p.end - p.start) - len(token)
		shifts = append(shifts, shift{workingPos: workingPos, delta: delta})
		working.WriteString(token)
		last = p.end
	}
	working.WriteString(text[last:])
	workText := working.String()

	offsetAt := func(w int) int {
		orig := w
		for _, s := range shifts {
			if w >= s.workingPos {
				orig = w + s.delta
			}
		}
		return orig
	}

	// Phase 2: collect PII matches on the placeholder text, then replace
	// from the end so earlier indices stay valid.
	type hit struct {
		kind Kind
		span span
	}
	var hits []hit
	taken := make([]span, 0)
	for _, m := range r.mask {
		for _, loc := range m.re.FindAllStringIndex(workText, -1) {
			s := span{start: loc[0], end: loc[1]}
			if overlapsAny(s, taken) {
				continue
			}
			taken = append(taken, s)
			hits = append(hits, hit{kind: m.kind, span: s})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].span.start > hits[j].span.start })

	masked := make([]MaskedItem, 0, len(hits))
	out := workText
	for _, h := range hits {
		replacement := fmt.Sprintf("[REDACTED:%s]", h.kind)
		masked = append(masked, MaskedItem{
			Kind:     h.kind,
			Original: out[h.span.start:h.span.end],
			Masked:   replacement,
			Start:    offsetAt(h.span.start),
			End:      offsetAt(h.span.end),
		})
		out = out[:h.span.start] + replacement + out[h.span.end:]
	}

	// Items were collected back-to-front; report them in document order.
	sort.Slice(masked, func(i, j int) bool { return masked[i].Start < masked[j].Start })

	// Phase 3: restore preserved substrings.
	for i, original := range originals {
		out = strings.Replace(out, placeholderToken(i), original, 1)
	}

	return Result{Sanitized: out, Masked: masked}
}

// ContainsPII reports whether text contains unpreserved PII, without
// mutating anything. Used for gating decisions.
func (r *Redactor) ContainsPII(text string) (bool, []Kind) {
	preserved := r.findPreserved(text)

	var kinds []Kind
	seen := make(map[Kind]bool)
	for _, m := range r.mask {
		for _, loc := range m.re.FindAllStringIndex(text, -1) {
			if overlapsAny(span{start: loc[0], end: loc[1]}, preserved) {
				continue
			}
			if !seen[m.kind] {
				seen[m.kind] = true
				kinds = append(kinds, m.kind)
			}
		}
	}

	return len(kinds) > 0, kinds
}

// findPreserved returns the non-overlapping preserved spans in document
// order. Earlier preserve rules win overlaps.
func (r *Redactor) findPreserved(text string) []span {
	var spans []span
	for _, p := range r.preserve {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			s := span{start: loc[0], end: loc[1]}
			if overlapsAny(s, spans) {
				continue
			}
			spans = append(spans, s)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

func overlapsAny(s span, existing []span) bool {
	for _, e := range existing {
		if s.start < e.end && e.start < s.end {
			return true
		}
	}
	return false
}
