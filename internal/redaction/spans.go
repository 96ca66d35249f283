package redaction

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maskPattern matches every placeholder this package writes.
var maskPattern = regexp.MustCompile(`\[REDACTED(?:_[A-Z_]+)?\]`)

// normalizeSpans clamps spans to text, drops empty or misaligned ones, cuts
// existing masks out of the rest, and merges overlaps. The result is sorted
// by Start and non-overlapping.
func normalizeSpans(text string, spans []Span, minConfidence float64) []Span {
	masks := maskPattern.FindAllStringIndex(text, -1)

	kept := make([]Span, 0, len(spans))
	for _, s := range spans {
		s.Start = max(s.Start, 0)
		s.End = min(s.End, len(text))
		if s.Start >= s.End || s.Confidence < minConfidence {
			continue
		}
		if !onRuneBoundary(text, s.Start) || !onRuneBoundary(text, s.End) {
			continue
		}
		kept = append(kept, subtractRegions(text, s, masks)...)
	}
	return mergeSpans(kept)
}

// subtractRegions returns the parts of s outside every region, trimmed of
// surrounding whitespace. regions must be sorted and non-overlapping.
func subtractRegions(text string, s Span, regions [][]int) []Span {
	var parts []Span
	start := s.Start
	for _, r := range regions {
		if r[1] <= start {
			continue
		}
		if r[0] >= s.End {
			break
		}
		parts = appendTrimmed(parts, text, s, start, r[0])
		start = r[1]
	}
	return appendTrimmed(parts, text, s, start, s.End)
}

func appendTrimmed(parts []Span, text string, s Span, start, end int) []Span {
	if start >= end {
		return parts
	}
	segment := text[start:end]
	start += len(segment) - len(strings.TrimLeftFunc(segment, unicode.IsSpace))
	end -= len(segment) - len(strings.TrimRightFunc(segment, unicode.IsSpace))
	if start >= end {
		return parts
	}
	s.Start, s.End = start, end
	return append(parts, s)
}

func onRuneBoundary(text string, i int) bool {
	return i == len(text) || utf8.RuneStart(text[i])
}

// mergeSpans unions overlapping spans. A merged span takes the type of its
// most confident member.
func mergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b Span) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return b.End - a.End
	})

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if s.Start >= cur.End {
			merged = append(merged, s)
			continue
		}
		cur.End = max(cur.End, s.End)
		if s.Confidence > cur.Confidence {
			cur.Confidence = s.Confidence
			cur.EntityType = s.EntityType
		}
	}
	return merged
}

// applyMasks replaces spans from the highest start down so earlier offsets
// stay valid. spans must be normalized.
func applyMasks(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}
	out := text
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		out = out[:s.Start] + s.EntityType.Mask() + out[s.End:]
	}
	return out
}

func summarize(spans []Span) Result {
	res := Result{Count: len(spans), PIIDetected: len(spans) > 0, Applied: true}
	for _, s := range spans {
		t := string(s.EntityType)
		if !slices.Contains(res.Types, t) {
			res.Types = append(res.Types, t)
		}
	}
	slices.Sort(res.Types)
	return res
}

// ContainsMask reports whether text already carries a placeholder.
func ContainsMask(text string) bool {
	return strings.Contains(text, "[REDACTED") && maskPattern.MatchString(text)
}
